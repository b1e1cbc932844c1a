package environment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reconciler runs a reconcile pass.
type Reconciler interface {
	Reconcile(ctx context.Context, det Detector) (ReconcileReport, error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchDebounce sets the quiet period before a reconcile runs.
func WithWatchDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher reconciles whenever the base path's direct children change.
type Watcher struct {
	root       string
	reconciler Reconciler
	detector   Detector
	debounce   time.Duration
	logger     *slog.Logger

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu        sync.Mutex
	pendingAt time.Time
	pending   bool
}

// NewWatcher constructs a Watcher over root.
func NewWatcher(root string, reconciler Reconciler, det Detector, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:       root,
		reconciler: reconciler,
		detector:   det,
		debounce:   2 * time.Second,
		logger:     slog.Default(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("base path watcher: create fsnotify: %w", err)
	}
	if err := fsw.Add(w.root); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("base path watcher: watch %s: %w", w.root, err)
	}
	w.fsWatcher = fsw
	w.wg.Add(1)
	go w.loop()
	w.logger.Info("watching base path", "path", w.root, "debounce", w.debounce.String())
	return nil
}

// Stop terminates the watcher and waits for a running reconcile to finish.
// It is safe to call Stop multiple times.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	tick := w.debounce / 4
	if tick <= 0 {
		tick = w.debounce
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = true
				w.pendingAt = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("base path watcher error", "error", err)

		case <-ticker.C:
			if w.ready() {
				w.reconcile()
			}
		}
	}
}

func (w *Watcher) ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.pending || time.Since(w.pendingAt) < w.debounce {
		return false
	}
	w.pending = false
	return true
}

func (w *Watcher) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	report, err := w.reconciler.Reconcile(ctx, w.detector)
	if err != nil {
		w.logger.Error("reconcile after base path change", "error", err)
		return
	}
	w.logger.Info("reconciled after base path change", "created", len(report.Created), "deactivated", len(report.Deactivated))
}
