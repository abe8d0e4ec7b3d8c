package surface

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/taigrr/showroom/pkg/logging"
)

// watcher reports writes to a single file. The parent directory is watched
// so editors that replace the file by rename are still seen.
type watcher struct {
	fs      *fsnotify.Watcher
	path    string
	changes chan string
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func newWatcher(path string) (*watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &watcher{
		fs:      fw,
		path:    abs,
		changes: make(chan string, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Changes yields the watched path after it changes. Bursts of events
// coalesce into one pending notification.
func (w *watcher) Changes() <-chan string { return w.changes }

func (w *watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				select {
				case w.changes <- w.path:
				default:
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Logger().Warn("watch error", "path", w.path, "err", err)
		}
	}
}

func (w *watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
