package spy

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yukimemi/spyrun/internal/config"
	"github.com/yukimemi/spyrun/internal/matcher"
)

// source abstracts watcher selection: an fsnotify backend and a
// polling backend both deliver the same (kind, paths) abstraction
// through identical channels.
type source interface {
	Events() <-chan matcher.Event
	Errors() <-chan error
	Close() error
}

// newSource picks the polling backend when spy declares a Poll config,
// otherwise the OS-native fsnotify backend.
func newSource(spy config.Spy) (source, error) {
	if spy.Poll != nil {
		return newPollSource(spy), nil
	}
	return newFsnotifySource(spy)
}

// fsnotifySource wraps fsnotify.Watcher, translating its events into
// matcher.Event and its op bitmask into the five event kinds, with
// subdirectory watching gated by the spy's `recursive` flag.
type fsnotifySource struct {
	watcher *fsnotify.Watcher
	events  chan matcher.Event
	errors  chan error
}

func newFsnotifySource(spy config.Spy) (*fsnotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if spy.Input != "" {
		if spy.Recursive {
			walkErr := filepath.WalkDir(spy.Input, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return w.Add(path)
				}
				return nil
			})
			if walkErr != nil {
				w.Close()
				return nil, walkErr
			}
		} else {
			if err := w.Add(spy.Input); err != nil {
				w.Close()
				return nil, err
			}
		}
	}

	fs := &fsnotifySource{
		watcher: w,
		events:  make(chan matcher.Event, 256),
		errors:  make(chan error, 16),
	}
	go fs.loop()
	return fs, nil
}

func (fs *fsnotifySource) loop() {
	for {
		select {
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				close(fs.events)
				return
			}
			fs.events <- matcher.Event{Kind: mapOp(ev.Op), Paths: []string{ev.Name}}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				continue
			}
			select {
			case fs.errors <- err:
			default:
			}
		}
	}
}

func mapOp(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return string(config.EventCreate)
	case op&fsnotify.Write == fsnotify.Write:
		return string(config.EventModify)
	case op&fsnotify.Remove == fsnotify.Remove:
		return string(config.EventRemove)
	case op&fsnotify.Rename == fsnotify.Rename:
		return string(config.EventRemove)
	case op&fsnotify.Chmod == fsnotify.Chmod:
		return string(config.EventAccess)
	default:
		return string(config.EventOther)
	}
}

func (fs *fsnotifySource) Events() <-chan matcher.Event { return fs.events }
func (fs *fsnotifySource) Errors() <-chan error          { return fs.errors }
func (fs *fsnotifySource) Close() error                  { return fs.watcher.Close() }

// pollSource implements the polling backend: on each tick, it re-walks
// the input directory and diffs modification times against its
// previous scan to synthesize Create/Modify/Remove events.
type pollSource struct {
	spy    config.Spy
	ctx    context.Context
	cancel context.CancelFunc
	events chan matcher.Event
	errors chan error
	done   chan struct{}
}

func newPollSource(spy config.Spy) *pollSource {
	ctx, cancel := context.WithCancel(context.Background())
	ps := &pollSource{
		spy:    spy,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan matcher.Event, 256),
		errors: make(chan error, 16),
		done:   make(chan struct{}),
	}
	go ps.loop()
	return ps
}

func (ps *pollSource) loop() {
	defer close(ps.done)
	defer close(ps.events)

	interval := time.Duration(ps.spy.Poll.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := ps.scan()
	for {
		select {
		case <-ps.ctx.Done():
			return
		case <-ticker.C:
			cur := ps.scan()
			ps.diff(prev, cur)
			prev = cur
		}
	}
}

func (ps *pollSource) scan() map[string]time.Time {
	seen := make(map[string]time.Time)
	if ps.spy.Input == "" {
		return seen
	}

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		seen[path] = info.ModTime()
		return nil
	}
	if ps.spy.Recursive {
		_ = filepath.Walk(ps.spy.Input, walkFn)
	} else {
		entries, err := os.ReadDir(ps.spy.Input)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if info, err := e.Info(); err == nil {
					seen[filepath.Join(ps.spy.Input, e.Name())] = info.ModTime()
				}
			}
		}
	}
	return seen
}

func (ps *pollSource) diff(prev, cur map[string]time.Time) {
	for path, mtime := range cur {
		prevMtime, existed := prev[path]
		switch {
		case !existed:
			ps.emit(matcher.Event{Kind: string(config.EventCreate), Paths: []string{path}})
		case !mtime.Equal(prevMtime):
			ps.emit(matcher.Event{Kind: string(config.EventModify), Paths: []string{path}})
		}
	}
	for path := range prev {
		if _, still := cur[path]; !still {
			ps.emit(matcher.Event{Kind: string(config.EventRemove), Paths: []string{path}})
		}
	}
}

func (ps *pollSource) emit(ev matcher.Event) {
	select {
	case ps.events <- ev:
	case <-ps.ctx.Done():
	}
}

func (ps *pollSource) Events() <-chan matcher.Event { return ps.events }
func (ps *pollSource) Errors() <-chan error          { return ps.errors }

func (ps *pollSource) Close() error {
	ps.cancel()
	<-ps.done
	return nil
}
