package confloader

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces the burst of events editors emit on save.
const defaultDebounce = 100 * time.Millisecond

// Watcher watches configuration files for changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu        sync.Mutex
	files     map[string]bool
	callbacks []func(string)
	pending   map[string]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets how long the watcher waits for events to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a new configuration file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		logger:   slog.Default(),
		debounce: defaultDebounce,
		files:    make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch starts watching path. The parent directory is watched so that
// editors that save by rename are still seen.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}

	w.mu.Lock()
	w.files[abs] = true
	w.mu.Unlock()

	w.logger.Debug("watching config file", "path", abs)
	return nil
}

// OnChange registers a callback invoked with the changed file's path.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}

// schedule fires the callbacks for name once events stop arriving.
func (w *Watcher) schedule(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[abs] {
		return
	}
	if t, ok := w.pending[abs]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[abs] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, abs)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.logger.Info("configuration file changed", "path", abs)
		w.notify(abs)
	})
}

func (w *Watcher) notify(path string) {
	w.mu.Lock()
	callbacks := append(([]func(string))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(path)
	}
}
