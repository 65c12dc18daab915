// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hotreload watches shader sources and reloads the effects built
// from them.
//
// A Watcher forwards debounced file changes over a channel from its own
// goroutine. Nothing else in the package is concurrent: the frame loop
// drains the channel between frames and hands each path to a Reloader,
// which reloads the affected effects and swaps them into the graph.
//
//	w, err := hotreload.New(hotreload.Options{}, "shaders")
//	r := hotreload.NewReloader(graph, effect.Options{})
//	r.Track("blit", "shaders/blit.toml")
//	for running {
//	    for _, path := range w.Pending() {
//	        if _, err := r.Apply(path); err != nil { log(err) }
//	    }
//	    renderFrame()
//	}
package hotreload

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before events
// are delivered. Editors often write a file several times per save.
const DefaultDebounce = 100 * time.Millisecond

// DefaultExtensions are the file types watched when Options.Extensions is
// empty.
var DefaultExtensions = []string{".toml", ".wgsl"}

// Options configure a Watcher.
type Options struct {
	// Extensions filters events by file extension, including the dot.
	Extensions []string
	// Debounce overrides DefaultDebounce. Negative disables debouncing.
	Debounce time.Duration
	// Buffer is the capacity of the events channel. Defaults to 16.
	Buffer int
}

// Watcher reports changed files below watched paths.
type Watcher struct {
	fs       *fsnotify.Watcher
	events   chan string
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	exts     []string
	debounce time.Duration
}

// New starts a watcher on paths. Directories are watched non-recursively.
func New(opts Options, paths ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hotreload: %w", err)
	}
	w := &Watcher{
		fs:       fw,
		done:     make(chan struct{}),
		exts:     opts.Extensions,
		debounce: opts.Debounce,
	}
	if len(w.exts) == 0 {
		w.exts = DefaultExtensions
	}
	if w.debounce == 0 {
		w.debounce = DefaultDebounce
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = 16
	}
	w.events = make(chan string, buf)

	for _, p := range paths {
		if err := fw.Add(p); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("hotreload: watch %s: %w", p, err)
		}
	}
	w.wg.Add(1)
	go w.loop()
	slogger().Info("hotreload: watching", "paths", paths)
	return w, nil
}

// Add watches another path.
func (w *Watcher) Add(path string) error {
	if err := w.fs.Add(path); err != nil {
		return fmt.Errorf("hotreload: watch %s: %w", path, err)
	}
	return nil
}

// Events returns the channel of changed paths. It is closed by Close.
func (w *Watcher) Events() <-chan string { return w.events }

// Pending returns the paths delivered so far without blocking.
func (w *Watcher) Pending() []string {
	var out []string
	for {
		select {
		case p, ok := <-w.events:
			if !ok {
				return out
			}
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		default:
			return out
		}
	}
}

// Close stops the watcher and closes the events channel.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
		close(w.events)
	})
	return err
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	for _, ext := range w.exts {
		if strings.HasSuffix(ev.Name, ext) {
			return true
		}
	}
	return false
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var pending []string
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	flush := func() bool {
		for _, p := range pending {
			select {
			case w.events <- p:
			case <-w.done:
				return false
			}
		}
		pending = pending[:0]
		return true
	}

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			slogger().Debug("hotreload: change", "path", ev.Name, "op", ev.Op.String())
			if !slices.Contains(pending, ev.Name) {
				pending = append(pending, ev.Name)
			}
			if w.debounce < 0 {
				if !flush() {
					return
				}
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slogger().Warn("hotreload: watcher error", "error", err)
		case <-timer.C:
			if !flush() {
				return
			}
		}
	}
}
