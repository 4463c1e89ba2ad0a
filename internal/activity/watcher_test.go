package activity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/quality"
)

// --- Fakes ---

type sink struct {
	mu      sync.Mutex
	entries []memory.ActivityEntry
	notify  chan struct{}
}

func newSink() *sink { return &sink{notify: make(chan struct{}, 64)} }

func (s *sink) AppendActivity(_ context.Context, e memory.ActivityEntry) (memory.ActivityEntry, error) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return e, nil
}

// waitFor blocks until an entry whose action has the given suffix shows up.
func (s *sink) waitFor(t *testing.T, suffix string) memory.ActivityEntry {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		for _, e := range s.entries {
			if strings.HasSuffix(e.Action, suffix) {
				s.mu.Unlock()
				return e
			}
		}
		s.mu.Unlock()
		select {
		case <-s.notify:
		case <-deadline:
			t.Fatalf("no activity ending in %q; got %+v", suffix, s.snapshot())
		}
	}
}

func (s *sink) snapshot() []memory.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]memory.ActivityEntry(nil), s.entries...)
}

type checker struct{}

func (checker) Check(_ context.Context, files []string) (*quality.Result, error) {
	res := quality.Pass()
	for _, f := range files {
		if strings.HasSuffix(f, "bad.go") {
			res.Merge(&quality.Result{Issues: []quality.Issue{{Tool: "vet", File: f, Message: "unreachable code"}}})
		}
	}
	return res, nil
}

// run starts the watcher and returns a stop function that waits for Run
// to return.
func run(t *testing.T, w *Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	}
}

// --- New ---

func TestNew_Validation(t *testing.T) {
	defer goleak.VerifyNone(t)

	if _, err := New(Config{}, newSink(), nil, nil); err == nil {
		t.Error("missing root should fail")
	}
	if _, err := New(Config{Root: t.TempDir(), Exclude: []string{"["}}, newSink(), nil, nil); err == nil {
		t.Error("invalid glob should fail")
	}

	w, err := New(Config{Root: t.TempDir()}, newSink(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.cfg.Profile != DefaultProfile || w.cfg.Debounce != DefaultDebounce {
		t.Errorf("defaults not applied: %+v", w.cfg)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// --- excluded ---

func TestExcluded(t *testing.T) {
	w := &Watcher{cfg: Config{Exclude: DefaultExclude}}
	tests := []struct {
		rel  string
		want bool
	}{
		{".git", true},
		{".git/HEAD", true},
		{"web/node_modules/react/index.js", true},
		{"notes.txt.swp", true},
		{"src/main.go", false},
		{"gitignore.md", false},
	}
	for _, tt := range tests {
		if got := w.excluded(tt.rel); got != tt.want {
			t.Errorf("excluded(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

// --- Run ---

func TestRun_RecordsFileChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	s := newSink()
	w, err := New(Config{Root: root, Debounce: 20 * time.Millisecond}, s, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop := run(t, w)

	if err := os.WriteFile(filepath.Join(root, "forecast.py"), []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := s.waitFor(t, "forecast.py")
	if e.Source != memory.SourceFile || e.Profile != DefaultProfile {
		t.Errorf("entry = %+v, want file source and default profile", e)
	}
	if e.Quality != nil {
		t.Errorf("no checker configured, got quality %+v", e.Quality)
	}

	// New directories are picked up while running.
	sub := filepath.Join(root, "models")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "arima.py"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s.waitFor(t, "models/arima.py")

	if err := os.Remove(filepath.Join(root, "forecast.py")); err != nil {
		t.Fatal(err)
	}
	e = s.waitFor(t, "removed forecast.py")
	if e.Action != "removed forecast.py" {
		t.Errorf("action = %q", e.Action)
	}

	stop()
}

func TestRun_SkipsExcluded(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	s := newSink()
	w, err := New(Config{Root: root, Debounce: 20 * time.Millisecond}, s, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop := run(t, w)

	if err := os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s.waitFor(t, "main.go")
	stop()

	for _, e := range s.snapshot() {
		if strings.Contains(e.Action, ".git") {
			t.Errorf("excluded path recorded: %q", e.Action)
		}
	}
}

func TestRun_AttachesQuality(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	s := newSink()
	w, err := New(Config{Root: root, Debounce: 20 * time.Millisecond}, s, checker{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop := run(t, w)

	for _, name := range []string{"bad.go", "good.go"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("package x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	bad := s.waitFor(t, "bad.go")
	good := s.waitFor(t, "good.go")
	stop()

	if bad.Quality == nil || bad.Quality.Passed || len(bad.Quality.Issues) != 1 {
		t.Errorf("bad.go quality = %+v, want one failing issue", bad.Quality)
	}
	if good.Quality == nil || !good.Quality.Passed {
		t.Errorf("good.go quality = %+v, want pass", good.Quality)
	}
}
