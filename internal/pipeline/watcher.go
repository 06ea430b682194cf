package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher processes package-insert files as they appear under a
// directory. Bursts of events are debounced into one batch.
type Watcher struct {
	discovery *Discovery
	worker    *Worker
	watcher   *fsnotify.Watcher
	log       *slog.Logger
	debounce  time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches the discovery root and every directory below it.
func NewWatcher(d *Discovery, w *Worker, log *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	pw := &Watcher{
		discovery: d,
		worker:    w,
		watcher:   fw,
		log:       log,
		debounce:  DefaultDebounce,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	if err := pw.addRecursive(d.Root()); err != nil {
		fw.Close()
		return nil, err
	}
	return pw, nil
}

// SetDebounce overrides DefaultDebounce. Call before Start.
func (pw *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		pw.debounce = d
	}
}

// Start begins watching in the background.
func (pw *Watcher) Start(ctx context.Context) {
	go pw.watch(ctx)
}

// Stop ends the watch loop and releases the OS watcher.
func (pw *Watcher) Stop() {
	pw.stopOnce.Do(func() {
		close(pw.stopCh)
		<-pw.doneCh
		pw.watcher.Close()
	})
}

func (pw *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if err := pw.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (pw *Watcher) watch(ctx context.Context) {
	defer close(pw.doneCh)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	pending := make(map[string]bool)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return
		case <-pw.stopCh:
			stopTimer()
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := pw.addRecursive(event.Name); err != nil {
					pw.log.Warn("failed to watch new directory", "dir", event.Name, "error", err)
				}
				continue
			}
			rel, err := filepath.Rel(pw.discovery.Root(), event.Name)
			if err != nil || !pw.discovery.Matches(rel) {
				continue
			}
			pending[event.Name] = true

			stopTimer()
			timer = time.AfterFunc(pw.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			pw.flush(ctx, pending)
			pending = make(map[string]bool)

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.log.Warn("watcher error", "error", err)
		}
	}
}

// flush processes the settled files in path order.
func (pw *Watcher) flush(ctx context.Context, pending map[string]bool) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		rel, _ := filepath.Rel(pw.discovery.Root(), path)
		res := pw.worker.Process(ctx, Input{Name: filepath.ToSlash(rel), Path: path})
		switch {
		case res.Err != nil:
			pw.log.Warn("watched file failed", "file", res.Name, "error", res.Err)
		case res.Skipped:
		default:
			pw.log.Info("watched file processed", "file", res.Name, "medicines", len(res.Medicines))
		}
	}
}
