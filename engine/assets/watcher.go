package assets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/dubu/engine/core"
)

// Watcher reports changes to a model file and to the resources that usually
// sit next to it (external buffers and images).
type Watcher struct {
	modelPath string
	dir       string

	fsnotify *fsnotify.Watcher
	changes  chan string
	done     chan struct{}
	wg       sync.WaitGroup

	mu       sync.Mutex
	isClosed bool
}

// NewWatcher starts watching the directory that contains modelPath.
func NewWatcher(modelPath string) (*Watcher, error) {
	abs, err := filepath.Abs(modelPath)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		modelPath: abs,
		dir:       filepath.Dir(abs),
		fsnotify:  fsWatch,
		// one pending change is enough, the reload reads the latest state
		changes: make(chan string, 1),
		done:    make(chan struct{}),
	}
	if err := fsWatch.Add(w.dir); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.start()
	return w, nil
}

// Changes delivers the path of a changed file. Bursts of events are
// coalesced while the receiver is busy.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.isClosed {
		w.mu.Unlock()
		return errors.New("watcher already closed")
	}
	w.isClosed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.fsnotify.Close()
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			// Editors often save through a rename, which shows up as Create.
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.isRelevant(e.Name) {
				continue
			}
			if s, err := os.Stat(e.Name); err != nil || s.IsDir() {
				continue
			}
			select {
			case w.changes <- e.Name:
			default:
			}

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) isRelevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if abs == w.modelPath {
		return true
	}
	return isModelResource(abs)
}

func isModelResource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".gif":
		return true
	default:
		return false
	}
}
