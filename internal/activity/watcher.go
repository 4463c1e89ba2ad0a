// Package activity turns file-system changes in a workspace into entries
// of the memory store's activity log, optionally checked by the quality
// gate.
package activity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/quality"
)

const (
	// DefaultProfile is recorded as the actor of file activity.
	DefaultProfile = "file-watcher"
	// DefaultDebounce is how long the watcher waits for a burst of changes
	// to settle before recording them.
	DefaultDebounce = 500 * time.Millisecond
)

// DefaultExclude lists the globs ignored when none are configured.
var DefaultExclude = []string{"**/.git/**", "**/node_modules/**", "**/vendor/**", "**/__pycache__/**", "**/*.swp", "**/*~"}

// Op is the kind of change recorded for a file.
type Op string

const (
	OpCreate Op = "created"
	OpModify Op = "modified"
	OpRemove Op = "removed"
)

// Config configures a Watcher.
type Config struct {
	Root string
	// Exclude holds doublestar globs matched against root-relative,
	// slash-separated paths.
	Exclude  []string
	Debounce time.Duration
	Profile  string
}

// Appender receives activity entries.
type Appender interface {
	AppendActivity(ctx context.Context, e memory.ActivityEntry) (memory.ActivityEntry, error)
}

// Checker runs the quality gate over changed files.
type Checker interface {
	Check(ctx context.Context, files []string) (*quality.Result, error)
}

// Watcher records file changes under a root directory.
type Watcher struct {
	cfg     Config
	sink    Appender
	checker Checker
	log     *zap.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]fsnotify.Op
}

// New creates a Watcher. checker may be nil to skip quality checks.
func New(cfg Config, sink Appender, checker Checker, log *zap.Logger) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("activity: root directory is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("activity: resolve root: %w", err)
	}
	cfg.Root = root
	if cfg.Exclude == nil {
		cfg.Exclude = DefaultExclude
	}
	for _, g := range cfg.Exclude {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("activity: invalid exclude glob %q", g)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	if log == nil {
		log = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("activity: create watcher: %w", err)
	}
	w := &Watcher{
		cfg:     cfg,
		sink:    sink,
		checker: checker,
		log:     log,
		fsw:     fsw,
		pending: make(map[string]fsnotify.Op),
	}
	if err := w.addRecursive(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the watcher without running it. Run closes it itself.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run records changes until ctx is cancelled, then flushes what is still
// pending and releases the underlying watcher. It returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.log.Info("watching workspace",
		zap.String("root", w.cfg.Root),
		zap.Duration("debounce", w.cfg.Debounce),
		zap.Strings("exclude", w.cfg.Exclude))

	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				timer.Reset(w.cfg.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// excluded reports whether the root-relative path matches an exclude glob.
func (w *Watcher) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, g := range w.cfg.Exclude {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
		// Directory globs like "**/.git/**" should also prune the
		// directory itself.
		if ok, _ := doublestar.Match(g, rel+"/"); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		return path
	}
	return rel
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.cfg.Root && w.excluded(w.rel(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("activity: watch %s: %w", path, err)
		}
		return nil
	})
}

// handle records one event. It reports whether anything became pending.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	rel := w.rel(ev.Name)
	if w.excluded(rel) {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.log.Warn("watch new directory failed", zap.String("path", rel), zap.Error(err))
			}
			return false
		}
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}

	w.mu.Lock()
	w.pending[ev.Name] |= ev.Op
	w.mu.Unlock()
	return true
}

// Change is one file change recorded by a flush.
type Change struct {
	Path string
	Op   Op
}

// drain returns and clears pending changes, ordered by path.
func (w *Watcher) drain() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Change, 0, len(w.pending))
	for path, op := range w.pending {
		c := Change{Path: path, Op: OpModify}
		_, statErr := os.Stat(path)
		switch {
		case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename), errors.Is(statErr, fs.ErrNotExist):
			c.Op = OpRemove
		case op.Has(fsnotify.Create):
			c.Op = OpCreate
		}
		out = append(out, c)
	}
	w.pending = make(map[string]fsnotify.Op)

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// flush records every pending change as one activity entry.
func (w *Watcher) flush(ctx context.Context) {
	changes := w.drain()
	if len(changes) == 0 {
		return
	}

	results := w.check(ctx, changes)
	for _, c := range changes {
		rel := filepath.ToSlash(w.rel(c.Path))
		entry := memory.ActivityEntry{
			Profile: w.cfg.Profile,
			Action:  string(c.Op) + " " + rel,
			Source:  memory.SourceFile,
			Quality: results[c.Path],
		}
		if _, err := w.sink.AppendActivity(ctx, entry); err != nil {
			w.log.Warn("record file activity failed", zap.String("path", rel), zap.Error(err))
		}
	}
	w.log.Debug("file activity recorded", zap.Int("changes", len(changes)))
}

// check runs the quality gate over the surviving files and splits the
// verdict per file. Files no tool examined get no result.
func (w *Watcher) check(ctx context.Context, changes []Change) map[string]*quality.Result {
	if w.checker == nil {
		return nil
	}
	var files []string
	for _, c := range changes {
		if c.Op != OpRemove {
			files = append(files, c.Path)
		}
	}
	if len(files) == 0 {
		return nil
	}

	res, err := w.checker.Check(ctx, files)
	if err != nil {
		w.log.Warn("quality check failed", zap.Error(err))
		return nil
	}

	out := make(map[string]*quality.Result, len(files))
	for _, f := range files {
		out[f] = quality.Pass()
	}
	for _, is := range res.Issues {
		if r, ok := out[is.File]; ok {
			r.Passed = false
			r.Issues = append(r.Issues, is)
		}
	}
	return out
}
