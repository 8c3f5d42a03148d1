package spool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/hecship/pkg/log"
)

func waitForFile(t *testing.T, files <-chan string, timeout time.Duration) string {
	t.Helper()
	select {
	case path := <-files:
		return path
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a spool file")
		return ""
	}
}

func TestWatcherEmitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.ndjson")
	if err := os.WriteFile(path, []byte("{\"event\":\"one\"}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := NewWatcher(dir, 50*time.Millisecond, log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if got := waitForFile(t, w.Files(), 5*time.Second); got != path {
		t.Errorf("emitted file = %v, want %v", got, path)
	}
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	dir := t.TempDir()

	w := NewWatcher(dir, 50*time.Millisecond, log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give fsnotify a moment to register the directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "fresh.ndjson")
	if err := os.WriteFile(path, []byte("{\"event\":\"one\"}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if got := waitForFile(t, w.Files(), 5*time.Second); got != path {
		t.Errorf("emitted file = %v, want %v", got, path)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".staged.ndjson"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := NewWatcher(dir, 50*time.Millisecond, log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	select {
	case path := <-w.Files():
		t.Errorf("unexpected file emitted: %v", path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()

	w := NewWatcher(dir, 200*time.Millisecond, log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "busy.ndjson")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString("{\"event\":\"one\"}\n"); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := waitForFile(t, w.Files(), 5*time.Second); got != path {
		t.Errorf("emitted file = %v, want %v", got, path)
	}

	// The writes above all land inside one settle window, so a second
	// emission would mean the debounce failed.
	select {
	case path := <-w.Files():
		t.Errorf("file emitted twice: %v", path)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "absent"), 50*time.Millisecond, log.NewNoopLogger())

	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() = nil, want error for missing directory")
	}
}
