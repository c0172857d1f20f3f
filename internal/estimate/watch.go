package estimate

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the estimator's cost table when the backing file changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchTable starts watching the cost table file and swaps the estimator's
// table on every write. A bad edit is logged and ignored; the previous
// table stays in effect.
func WatchTable(path string, est *Estimator) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files on save, which drops
	// a watch registered on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}

	go func() {
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				table, err := LoadTable(path)
				if err != nil {
					log.Printf("[estimate] cost table reload failed, keeping previous: %v", err)
					continue
				}
				est.SetTable(table)
				log.Printf("[estimate] cost table reloaded from %s", path)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Printf("[estimate] watch error: %v", err)
			}
		}
	}()

	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
