package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chazu/stagecraft/compiler"
	"github.com/chazu/stagecraft/compiler/hash"
)

// settle is how long a file must stay quiet before it is recompiled.
// Editors often write a file in several steps.
const settle = 100 * time.Millisecond

// watcher recompiles files whose tree content changed.
type watcher struct {
	b      *builder
	files  map[string]bool
	hashes map[string]string
}

func newWatcher(b *builder, files []string) *watcher {
	w := &watcher{b: b, files: make(map[string]bool), hashes: make(map[string]string)}
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			w.files[abs] = true
		}
	}
	return w
}

// rebuild recompiles path unless its tree hashes the same as last time.
// Renaming a local does not change the hash, so it is not rebuilt either.
func (w *watcher) rebuild(ctx context.Context, path string) (bool, error) {
	tree, err := compiler.DecodeFile(path)
	if err != nil {
		return false, err
	}
	sum := hash.Hex(tree)
	if w.hashes[path] == sum {
		return false, nil
	}
	w.hashes[path] = sum
	unit := compiler.NewUnit(unitName(path), tree)
	return true, w.b.compile(ctx, []compiler.Unit{unit})
}

// watch compiles every file once, then again whenever one changes, until
// ctx is done.
func watch(ctx context.Context, b *builder, files []string) error {
	w := newWatcher(b, files)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("cannot watch %s: %w", d, err)
		}
	}

	for f := range w.files {
		if _, err := w.rebuild(ctx, f); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.files[ev.Name] {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(settle)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-timer.C:
			for path := range pending {
				delete(pending, path)
				changed, err := w.rebuild(ctx, path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					continue
				}
				if changed && b.verbose {
					fmt.Fprintf(os.Stderr, "Rebuilt %s\n", path)
				}
			}
		}
	}
}
