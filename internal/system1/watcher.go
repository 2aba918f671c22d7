package system1

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"cogito/internal/logging"
)

// Watcher reloads the cache snapshot when an external writer atomically
// renames a new cache file into place, so hot-swapped patterns are visible
// on the next lookup without restart.
type Watcher struct {
	cache    *Cache
	watcher  *fsnotify.Watcher
	debounce time.Duration
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for the cache's directory. Watching the
// directory rather than the file survives the rename dance.
func NewWatcher(cache *Cache) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(cache.path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		cache:    cache,
		watcher:  fw,
		debounce: 100 * time.Millisecond,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine until ctx is canceled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(w.cache.path) {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Debounce rapid rename sequences.
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := w.cache.Reload(); err != nil {
				logging.Get(logging.CategorySystem1).Warn("Cache reload failed: %v", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategorySystem1).Warn("Watcher error: %v", err)
		}
	}
}

// Stop closes the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.doneCh
}
