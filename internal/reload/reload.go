// Package reload hot-reloads a rules path and swaps the active correlation
// engine atomically, so ProcessEvent callers never observe a half-loaded
// rule set.
package reload

import (
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/huntseq/seqhound/internal/correlation"
	"github.com/huntseq/seqhound/internal/logutil"
	"github.com/huntseq/seqhound/internal/rule"
)

// Watcher builds a fresh correlation.Engine from a rules path whenever the
// path changes on disk, and exposes the currently active engine through a
// single atomic pointer.
type Watcher struct {
	path       string
	shardCount int
	gcInterval int
	debounce   time.Duration

	active atomic.Pointer[correlation.Engine]

	fsWatcher *fsnotify.Watcher
	stop      chan struct{}
}

// New builds a Watcher and performs an initial synchronous load, so Engine
// never returns nil once New succeeds.
func New(path string, shardCount, gcInterval int, debounce time.Duration) (*Watcher, error) {
	w := &Watcher{
		path:       path,
		shardCount: shardCount,
		gcInterval: gcInterval,
		debounce:   debounce,
		stop:       make(chan struct{}),
	}
	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Engine returns the currently active engine. Safe to call concurrently
// with Start's background reload loop.
func (w *Watcher) Engine() *correlation.Engine {
	return w.active.Load()
}

// Start begins watching w's rules path for filesystem changes in a
// background goroutine. A failed reload is logged and leaves the
// previously active engine untouched.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}
	w.fsWatcher = fw

	go w.loop()
	return nil
}

// Stop ends the background watch loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
}

func (w *Watcher) loop() {
	var timer *time.Timer
	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case _, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if err := w.reload(); err != nil {
					logutil.CompileError(w.path, err)
				}
			})
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logutil.Warn("rules watcher error: %v", err)
		}
	}
}

// reload loads and compiles w.path into a brand new engine, then swaps it
// in atomically. A prior active engine (and its in-flight correlation
// state) is discarded wholesale, matching a rules-path change being a
// deliberate operator action, not a live edit of one rule's logic.
func (w *Watcher) reload() error {
	docs, err := rule.Load(w.path)
	if err != nil {
		return err
	}

	engine := correlation.New(w.shardCount)
	engine.SetGCInterval(w.gcInterval)
	if _, err := engine.LoadRules(docs); err != nil {
		return err
	}

	w.active.Store(engine)
	logutil.Reload(w.path, len(docs))
	return nil
}
