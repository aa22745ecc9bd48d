// Package watcher reloads a configuration file when it changes on disk.
//
// Raw file system events are fired on a signal. A debounced listener,
// owned by the watcher's lifetime, collapses bursts of writes into a
// single reload, and the reloaded configuration is fired on Changes.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/signals/internal/config"
	"github.com/dshills/signals/internal/signal"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrWatcherClosed is returned when operating on a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Watcher monitors one configuration file.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	opts     []signal.Option

	fsw  *fsnotify.Watcher
	life *signal.Lifetime

	events  *signal.Signal[fsnotify.Event]
	changes *signal.Signal[*config.Config]
	errs    *signal.Signal[error]

	reloads atomic.Uint64

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long to wait after the first change before
// reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithSignalOptions passes options to the watcher's signals, for example
// an observer or a scheduler.
func WithSignalOptions(opts ...signal.Option) Option {
	return func(w *Watcher) {
		w.opts = append(w.opts, opts...)
	}
}

// New starts watching path. The containing directory is watched so that
// editors replacing the file through a rename are noticed.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		debounce: config.DefaultDebounce,
		logger:   zerolog.Nop(),
		life:     signal.NewLifetime(),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.events = signal.New[fsnotify.Event](w.signalOptions("config.fs")...)
	w.changes = signal.New[*config.Config](w.signalOptions("config.changes")...)
	w.errs = signal.New[error](w.signalOptions("config.errors")...)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw

	w.events.Listen(w.life, w.onChange).
		Filter(w.relevant).
		QueueAndDelayBy(w.debounce)

	w.wg.Add(1)
	go w.processLoop()

	w.logger.Debug().Str("path", abs).Dur("debounce", w.debounce).Msg("config watcher started")
	return w, nil
}

func (w *Watcher) signalOptions(name string) []signal.Option {
	opts := append([]signal.Option{signal.WithLogger(w.logger)}, w.opts...)
	return append(opts, signal.WithName(name))
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Events returns the signal carrying raw file system events for the
// watched directory.
func (w *Watcher) Events() *signal.Signal[fsnotify.Event] {
	return w.events
}

// Changes returns the signal fired with every successfully reloaded
// configuration.
func (w *Watcher) Changes() *signal.Signal[*config.Config] {
	return w.changes
}

// Errors returns the signal fired when reloading or watching fails.
func (w *Watcher) Errors() *signal.Signal[error] {
	return w.errs
}

// Reloads returns the number of reload attempts.
func (w *Watcher) Reloads() uint64 {
	return w.reloads.Load()
}

// Reload loads the file now and fires the result.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWatcherClosed
	}

	w.reloads.Add(1)
	cfg, err := config.Load(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		w.errs.Fire(err)
		return err
	}

	w.logger.Info().Str("path", w.path).Msg("config reloaded")
	w.changes.Fire(cfg)
	return nil
}

// Close stops watching. Pending reloads are discarded.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.life.End()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) ||
		ev.Op.Has(fsnotify.Rename) || ev.Op.Has(fsnotify.Remove)
}

func (w *Watcher) onChange(ev fsnotify.Event) {
	w.logger.Debug().Str("path", ev.Name).Stringer("op", ev.Op).Msg("config file changed")
	_ = w.Reload()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.events.Fire(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errs.Fire(fmt.Errorf("watching %s: %w", w.path, err))
		}
	}
}
