// Package watch reports debounced batches of file changes under a repository.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/snapshot"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait after the last change before flushing a batch.
	Debounce time.Duration

	// Ignore holds snapshot-style patterns, relative to the root, that are not watched.
	Ignore []string
}

// ChangeFunc receives the sorted, deduplicated relative paths of one batch.
type ChangeFunc func(paths []string)

// Watcher watches a directory tree with fsnotify.
type Watcher struct {
	root     string
	fw       *fsnotify.Watcher
	debounce time.Duration
	ignore   []string
}

// New creates a Watcher for root. Call Run to start watching.
func New(root string, opts Options) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		root:     absRoot,
		fw:       fw,
		debounce: opts.Debounce,
		ignore:   opts.Ignore,
	}, nil
}

// Run blocks until ctx is done, calling onChange once per debounced batch.
// onChange runs on the watch goroutine, so batches never overlap; changes
// made while it runs are collected into the next batch.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.fw.Close()

	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	klog.Infof("[watch] watching %s (debounce %s)", w.root, w.debounce)

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			rel, ok := w.relative(ev.Name)
			if !ok {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						klog.Warningf("[watch] failed to watch %s: %v", rel, err)
					}
				}
			}
			pending[rel] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			klog.Warningf("[watch] %v", err)

		case <-timerC:
			timer, timerC = nil, nil
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			klog.V(2).Infof("[watch] %d changed paths", len(batch))
			onChange(batch)
		}
	}
}

// relative returns the slash path of name under the root, or false when it
// is outside the root or ignored.
func (w *Watcher) relative(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if snapshot.IsIgnored(rel, w.ignore) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) addRecursive(dir string) error {
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
		if path != w.root {
			if _, ok := w.relative(path); !ok {
				return filepath.SkipDir
			}
		}
		return w.fw.Add(path)
	})
}
