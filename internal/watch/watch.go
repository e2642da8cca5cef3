// Package watch translates filesystem events into index mutations,
// consulting the same filter rules used by the initial walk (spec §4.6).
package watch

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/nghiat/Hanoi/internal/content"
	"github.com/nghiat/Hanoi/internal/filter"
	"github.com/nghiat/Hanoi/internal/index"
)

// Watcher owns an fsnotify watch covering root's subtree and applies
// filtered Create/Write/Remove events to idx. It runs on its own
// goroutine and acquires the index lock per event (spec §4.6, §5).
type Watcher struct {
	fsw     *fsnotify.Watcher
	root    string
	filters *filter.Set
	idx     *index.Index
	done    chan struct{}
}

// New creates a Watcher rooted at root. The caller must call Start to
// begin recursively watching, and Close to release resources.
func New(root string, filters *filter.Set, idx *index.Index) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{fsw: fsw, root: root, filters: filters, idx: idx, done: make(chan struct{})}, nil
}

// Start walks root, registering a watch on every directory the filter
// engine allows traversal into (the fsnotify API watches one directory at
// a time, unlike inotify's recursive-by-convention usage in other
// ecosystems), then begins the event-processing goroutine.
func (w *Watcher) Start() error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) addTree(dir string) error {
	if !w.filters.Decide(dir, w.root, true) && dir != w.root {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		log.Warn("watch: failed to watch directory", "path", dir, "err", err)
		return nil
	}

	entries, err := osReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.addTree(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("watch: fsnotify error", "err", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := ev.Name

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		// A created directory under a watched tree needs its own watch
		// registered so its future contents are observed too.
		if isDir(path) {
			if w.filters.Decide(path, w.root, true) {
				if err := w.addTree(path); err != nil {
					log.Warn("watch: failed to extend watch to new directory", "path", path, "err", err)
				}
			}
			return
		}
		if !w.filters.Decide(path, w.root, false) {
			return
		}
		entry, err := content.Load(path)
		if err != nil {
			log.Debug("watch: skipping unreadable file", "path", path, "err", err)
			return
		}
		w.idx.Insert(path, entry)

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// Unconditionally remove when the filter passes: there is no
		// "is it still a file" check post-removal (spec §4.6).
		if w.filters.Decide(path, w.root, false) {
			w.idx.Remove(path)
		}
	}
}

// Close stops the watcher and releases its fsnotify resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
