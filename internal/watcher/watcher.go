// Package watcher ingests files dropped into inbox directories, using fsnotify
// with per-file debouncing.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/pkg/utils"
)

const (
	defaultDebounce = 400 * time.Millisecond

	// ProcessedDir receives files that were ingested successfully.
	ProcessedDir = "processed"
	// FailedDir receives files whose ingestion failed.
	FailedDir = "failed"
)

// IngestFunc ingests the file at path.
type IngestFunc func(ctx context.Context, path string) error

// Watcher watches inbox directories and ingests new files. Each file is moved
// out of the inbox once handled so it is never ingested twice.
type Watcher struct {
	roots       []string
	extensions  []string
	ingest      IngestFunc
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	ctx         context.Context
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	processing  map[string]struct{}
	inflight    sync.WaitGroup
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over roots. extensions filter which files are
// ingested (empty = all).
func NewWatcher(roots []string, extensions []string, ingest IngestFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:       roots,
		extensions:  extensions,
		ingest:      ingest,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		processing:  make(map[string]struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// Start creates missing inbox directories and starts watching. It runs until
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0755); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return fmt.Errorf("create inbox %s: %w", root, err)
		}
		if err := watcher.Add(filepath.Clean(root)); err != nil {
			_ = watcher.Close()
			w.mu.Unlock()
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}
	w.watcher = watcher
	w.ctx = ctx
	w.started = true
	w.mu.Unlock()

	w.logger.Debug("watcher starting", zap.Strings("roots", w.roots), zap.Strings("extensions", w.extensions))
	go w.run(ctx, watcher)
	return nil
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !w.inRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		if matchExtension(path, w.extensions) {
			w.debounceIngest(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

// inRoot reports whether path sits directly inside one of the inboxes.
func (w *Watcher) inRoot(path string) bool {
	dir := filepath.Dir(filepath.Clean(path))
	for _, root := range w.roots {
		if filepath.Clean(root) == dir {
			return true
		}
	}
	return false
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	extNorm := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == extNorm {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		if !w.started {
			w.mu.Unlock()
			return
		}
		ctx := w.ctx
		w.inflight.Add(1)
		w.mu.Unlock()
		defer w.inflight.Done()
		w.process(ctx, path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// process ingests path and moves it to the processed or failed subdirectory.
// A path already being processed by another goroutine is skipped.
func (w *Watcher) process(ctx context.Context, path string) {
	if !w.claim(path) {
		w.logger.Debug("inbox file already in progress", zap.String("path", path))
		return
	}
	defer w.release(path)
	if _, err := os.Stat(path); err != nil {
		return
	}
	target := ProcessedDir
	if err := w.ingest(ctx, path); err != nil {
		w.logger.Warn("inbox ingestion failed", zap.String("path", path), zap.Error(err))
		target = FailedDir
	} else {
		w.logger.Info("inbox file ingested", zap.String("path", path))
	}
	dest, err := moveInto(path, target)
	if err != nil {
		w.logger.Warn("inbox move failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Debug("inbox file moved", zap.String("from", path), zap.String("to", dest))
}

func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.processing[path]; busy {
		return false
	}
	w.processing[path] = struct{}{}
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.processing, path)
	w.mu.Unlock()
}

// moveInto renames path into sub, a subdirectory of its parent. An existing
// file with the same name gets a timestamp suffix.
func moveInto(path, sub string) (string, error) {
	dir := filepath.Join(filepath.Dir(path), sub)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(dest)
		dest = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(dest, ext), time.Now().UnixNano(), ext)
	}
	return dest, os.Rename(path, dest)
}

// Directories returns a copy of the watched inbox directories.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExistingFiles ingests files already waiting in the inboxes. Call it after Start.
func (w *Watcher) SyncExistingFiles(ctx context.Context) {
	for _, root := range w.Directories() {
		entries, err := os.ReadDir(root)
		if err != nil {
			w.logger.Warn("inbox read failed", zap.String("root", root), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			path := filepath.Join(root, e.Name())
			if matchExtension(path, w.extensions) {
				w.process(ctx, path)
			}
		}
	}
}

// Stop stops the watcher, waits for in-flight ingestions and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	w.inflight.Wait()
}
