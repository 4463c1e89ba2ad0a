package quality

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FilePlaceholder in a tool command is replaced by the checked file's path.
const FilePlaceholder = "{file}"

// Tool is one static-analysis command applied to files matching Pattern.
type Tool struct {
	Name string `yaml:"name" json:"name"`
	// Pattern is a doublestar glob matched against slash-separated paths,
	// e.g. "**/*.py".
	Pattern string   `yaml:"pattern" json:"pattern"`
	Command []string `yaml:"command" json:"command"`
}

// Validate checks that the tool can be run.
func (t Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("quality tool: name is required")
	}
	if len(t.Command) == 0 || strings.TrimSpace(t.Command[0]) == "" {
		return fmt.Errorf("quality tool %q: command is required", t.Name)
	}
	if t.Pattern == "" || !doublestar.ValidatePattern(t.Pattern) {
		return fmt.Errorf("quality tool %q: invalid pattern %q", t.Name, t.Pattern)
	}
	return nil
}

// DefaultTools are syntax checks for the languages the workflow touches.
func DefaultTools() []Tool {
	return []Tool{
		{Name: "gofmt", Pattern: "**/*.go", Command: []string{"gofmt", "-e", "-l", FilePlaceholder}},
		{Name: "py_compile", Pattern: "**/*.py", Command: []string{"python3", "-m", "py_compile", FilePlaceholder}},
	}
}

// commandFunc runs argv in dir and returns its combined output.
type commandFunc func(ctx context.Context, dir string, argv []string) ([]byte, error)

func execCommand(ctx context.Context, dir string, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Runner checks files with the configured tools concurrently.
type Runner struct {
	tools       []Tool
	dir         string
	concurrency int
	log         *zap.Logger
	run         commandFunc
}

// NewRunner creates a Runner for tools, run from dir. concurrency <= 0
// leaves the fan-out unbounded.
func NewRunner(tools []Tool, dir string, concurrency int, log *zap.Logger) (*Runner, error) {
	for _, t := range tools {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{tools: tools, dir: dir, concurrency: concurrency, log: log, run: execCommand}, nil
}

// Tools returns the configured tools.
func (r *Runner) Tools() []Tool { return r.tools }

// Check runs every tool whose pattern matches each file. A tool that exits
// non-zero or cannot be started yields an issue carrying the tool name and
// the first line of its output. Only context cancellation is returned as
// an error; a file no tool matches passes.
func (r *Runner) Check(ctx context.Context, files []string) (*Result, error) {
	var (
		mu     sync.Mutex
		issues []Issue
	)
	addIssue := func(is Issue) {
		mu.Lock()
		issues = append(issues, is)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	for _, file := range files {
		slash := filepath.ToSlash(file)
		for _, tool := range r.tools {
			ok, err := doublestar.Match(tool.Pattern, slash)
			if err != nil || !ok {
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := r.run(gctx, r.dir, expand(tool.Command, file))
				if err == nil {
					return nil
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				msg := firstLine(out)
				var exitErr *exec.ExitError
				if msg == "" || !errors.As(err, &exitErr) {
					msg = strings.TrimSpace(msg + " " + err.Error())
				}
				r.log.Debug("quality issue",
					zap.String("tool", tool.Name),
					zap.String("file", file),
					zap.String("message", msg))
				addIssue(Issue{Tool: tool.Name, File: file, Message: msg})
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("quality: check cancelled: %w", err)
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		return issues[i].Tool < issues[j].Tool
	})
	return &Result{Passed: len(issues) == 0, Issues: issues}, nil
}

func expand(argv []string, file string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, FilePlaceholder, file)
	}
	return out
}

func firstLine(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
