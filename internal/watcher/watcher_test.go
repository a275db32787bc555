package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recorder) ingest(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return r.err
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestWatcher_IngestsAndMovesNewFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.ingest, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "beneficios.txt"), "vale transporte"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	processed := filepath.Join(dir, ProcessedDir, "beneficios.txt")
	waitFor(t, func() bool { return exists(processed) })

	seen := rec.seen()
	if len(seen) != 1 || !strings.HasSuffix(seen[0], "beneficios.txt") {
		t.Errorf("ingested = %v", seen)
	}
	if exists(filepath.Join(dir, "beneficios.txt")) {
		t.Error("file should have left the inbox")
	}
	if !exists(filepath.Join(dir, "ignore.xyz")) {
		t.Error("non-matching file should stay in the inbox")
	}
}

func TestWatcher_FailedIngestion(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{err: errors.New("remote call failed")}
	w := NewWatcher([]string{dir}, []string{".pdf"}, rec.ingest, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "termo.pdf"), "%PDF"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return exists(filepath.Join(dir, FailedDir, "termo.pdf")) })
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, ProcessedDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, ProcessedDir, "old.txt"), "done"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, rec.ingest)
	w.SyncExistingFiles(context.Background())

	seen := rec.seen()
	if len(seen) != 1 || !strings.HasSuffix(seen[0], "a.txt") {
		t.Errorf("expected only a.txt, got %v", seen)
	}
	if !exists(filepath.Join(dir, ProcessedDir, "a.txt")) {
		t.Error("a.txt should be in processed/")
	}
}

func TestWatcher_process_concurrentCallsIngestOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "termo.txt")
	if err := writeFile(path, "Eu Maria Souza, portador do RG"); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	calls := 0
	started := make(chan struct{})
	unblock := make(chan struct{})
	ingest := func(ctx context.Context, p string) error {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-unblock
		}
		return nil
	}
	w := NewWatcher([]string{dir}, []string{".txt"}, ingest)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.process(context.Background(), path)
	}()
	<-started

	// the file is still in the inbox while the first ingestion runs
	for i := 0; i < 3; i++ {
		w.process(context.Background(), path)
	}
	close(unblock)
	wg.Wait()
	// once moved, a late caller finds nothing to do
	w.process(context.Background(), path)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("ingest called %d times, want 1", calls)
	}
	if !exists(filepath.Join(dir, ProcessedDir, "termo.txt")) {
		t.Error("file should be moved to processed")
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox", "rh")
	w := NewWatcher([]string{root}, nil, (&recorder{}).ingest)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if !exists(root) {
		t.Error("root directory should exist after Start")
	}
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != root {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestMoveInto_nameCollision(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "doc.txt")
	if err := writeFile(first, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := moveInto(first, ProcessedDir); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(first, "2"); err != nil {
		t.Fatal(err)
	}
	dest, err := moveInto(first, ProcessedDir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dest) == "doc.txt" || !strings.HasSuffix(dest, ".txt") {
		t.Errorf("second move should get a unique name, got %s", dest)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, ProcessedDir))
	if len(entries) != 2 {
		t.Errorf("expected 2 processed files, got %d", len(entries))
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.PDF", []string{".pdf"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
