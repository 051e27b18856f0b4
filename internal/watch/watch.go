// Package watch reports debounced changes under a project tree.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config tunes a Watcher.
type Config struct {
	Debounce time.Duration
	Ignore   []string // base names of files or directories to skip
	Logger   *log.Logger
}

// Watcher watches a directory tree. New directories are picked up as they
// are created.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   map[string]bool
	watcher  *fsnotify.Watcher
	logger   *log.Logger
}

// New starts watching root and every non-ignored directory below it.
func New(root string, cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "[watch] ", log.LstdFlags|log.Lmsgprefix)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: cfg.Debounce,
		ignore:   make(map[string]bool, len(cfg.Ignore)),
		watcher:  fw,
		logger:   cfg.Logger,
	}
	for _, name := range cfg.Ignore {
		w.ignore[name] = true
	}

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run calls onChange once per burst of changes until ctx is done or the
// watcher is closed. Changes made while onChange runs, such as build
// output written into the tree, are discarded. An onChange error is logged
// and watching continues.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context) error) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Printf("change: %s %s", event.Op, event.Name)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := onChange(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Printf("on change: %v", err)
			}
			w.drain()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watcher error: %v", err)
		}
	}
}

// relevant filters out ignored paths and attribute-only changes, and
// starts watching newly created directories.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if w.ignored(event.Name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Printf("watch %s: %v", event.Name, err)
		}
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *Watcher) drain() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.relevant(event)
		default:
			return
		}
	}
}

// ignored reports whether any path element of name below root is ignored.
func (w *Watcher) ignored(name string) bool {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignore[part] {
			return true
		}
	}
	return false
}

// addTree watches dir and its subdirectories. Non-directories are ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
