// Package watcher reports debounced changes to individual files.
//
// Directories are watched instead of the files themselves so that files
// replaced by rename (as qdoc's own saves do) keep being tracked.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kobzarvs/qdoc/internal/logger"
)

var ErrClosed = errors.New("watcher closed")

type Op int

const (
	OpWrite Op = iota
	OpCreate
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler is called from the Run goroutine, one event at a time.
type Handler func(Event)

type Watcher struct {
	fsw     *fsnotify.Watcher
	delay   time.Duration
	handler Handler

	mu       sync.Mutex
	targets  map[string]bool
	dirs     map[string]bool
	suppress map[string]time.Time
	closed   bool
}

// New returns a watcher coalescing events that arrive within delay.
func New(delay time.Duration, handler Handler) (*Watcher, error) {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		delay:    delay,
		handler:  handler,
		targets:  make(map[string]bool),
		dirs:     make(map[string]bool),
		suppress: make(map[string]time.Time),
	}, nil
}

// Add starts tracking path. The file does not need to exist yet, but its
// directory does.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	w.targets[abs] = true
	return nil
}

// Suppress drops events for path for the duration d, used around writes
// made by the caller itself.
func (w *Watcher) Suppress(path string, d time.Duration) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.suppress[abs] = time.Now().Add(d)
	w.mu.Unlock()
}

func (w *Watcher) wanted(path string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.targets[path] {
		return false
	}
	if until, ok := w.suppress[path]; ok {
		if now.Before(until) {
			return false
		}
		delete(w.suppress, path)
	}
	return true
}

func translate(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	}
	return 0, false
}

// Run delivers events until ctx is cancelled, then releases the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	pending := make(map[string]Event)
	timer := time.NewTimer(w.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return ErrClosed
			}
			op, ok := translate(ev.Op)
			if !ok {
				continue
			}
			path := filepath.Clean(ev.Name)
			now := time.Now()
			if !w.wanted(path, now) {
				continue
			}
			pending[path] = Event{Path: path, Op: op, Time: now}
			timer.Reset(w.delay)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrClosed
			}
			logger.Warn("watch error", "err", err)
		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				ev := pending[p]
				delete(pending, p)
				logger.Debug("file changed", "path", ev.Path, "op", ev.Op.String())
				w.handler(ev)
			}
		}
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	_ = w.fsw.Close()
}
