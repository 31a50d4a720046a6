package definition

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces editor save bursts into one reload signal.
const DefaultDebounce = 250 * time.Millisecond

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Files are the definition files to observe, usually Document.Sources.
	Files []string
	// Extensions of new files that also trigger a reload, so freshly created
	// includes are picked up. Defaults to .yaml, .yml and .json.
	Extensions  []string
	DebounceDur time.Duration
}

// Watcher signals when any observed definition file changes.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	files      map[string]struct{}
	dirs       []string
	extensions []string
	debounce   time.Duration
	onChange   chan struct{}
	errs       chan error
	done       chan struct{}
	stopOnce   sync.Once
}

// NewWatcher creates a watcher for cfg.Files.
func NewWatcher(cfg WatchConfig) (*Watcher, error) {
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("definition: no files to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("definition: creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher:  fsw,
		files:      map[string]struct{}{},
		extensions: cfg.Extensions,
		debounce:   cfg.DebounceDur,
		onChange:   make(chan struct{}, 1),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
	}
	if len(w.extensions) == 0 {
		w.extensions = []string{".yaml", ".yml", ".json"}
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	for _, file := range cfg.Files {
		abs, err := filepath.Abs(file)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("definition: resolve %q: %w", file, err)
		}
		w.files[abs] = struct{}{}
		if dir := filepath.Dir(abs); !slices.Contains(w.dirs, dir) {
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Start begins watching the directories of the observed files. The returned
// channel receives one signal per debounced burst of changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	// editors replace files by rename, so watch directories
	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, fmt.Errorf("definition: watching directory %s: %w", dir, err)
		}
	}
	go w.loop()
	return w.onChange, nil
}

// Errors reports errors raised by the underlying watcher. Errors are dropped
// when nobody reads them.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Stop terminates the watcher and releases resources. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending bool
	)
	timerC := func() <-chan time.Time {
		if timer != nil {
			return timer.C
		}
		return nil
	}

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = true

		case <-timerC():
			if pending {
				select {
				case w.onChange <- struct{}{}:
				default:
				}
				pending = false
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if _, ok := w.files[name]; ok {
		return true
	}
	return event.Op&fsnotify.Create != 0 && slices.Contains(w.extensions, filepath.Ext(name))
}
