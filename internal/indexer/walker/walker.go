// Package walker finds indexable source files and watches them for changes.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/haasonsaas/buildli/pkg/core/apperr"
	"github.com/haasonsaas/buildli/pkg/core/logging"
)

var log = logging.New("walker")

// ignoredDirs are never descended into
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".venv":        true,
	"venv":         true,
}

// ignoredExts are binary or generated formats that never get indexed
var ignoredExts = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".bin": true, ".dat": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".svg": true, ".webp": true, ".bmp": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	".lock": true, ".sum": true,
	".pyc": true, ".class": true, ".jar": true, ".war": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
}

// maxFileSize skips files too large to be hand-written source
const maxFileSize = 1 << 20 // 1MB

// Walker finds indexable files under a set of roots
type Walker struct {
	extraIgnores []string
}

// New creates a walker. extraIgnores are directory or file names to skip in
// addition to the built-in set.
func New(extraIgnores ...string) *Walker {
	return &Walker{extraIgnores: extraIgnores}
}

// ShouldIndex reports whether a path looks like indexable source
func (w *Walker) ShouldIndex(path string, info fs.FileInfo) bool {
	if info == nil || !info.Mode().IsRegular() {
		return false
	}
	if info.Size() == 0 || info.Size() > maxFileSize {
		return false
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if ignoredExts[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	for _, ig := range w.extraIgnores {
		if name == ig {
			return false
		}
	}
	return true
}

func (w *Walker) skipDir(name string) bool {
	if ignoredDirs[name] {
		return true
	}
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	for _, ig := range w.extraIgnores {
		if name == ig {
			return true
		}
	}
	return false
}

// Walk returns all indexable files under root
func (w *Walker) Walk(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("walk error, skipping", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && w.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if w.ShouldIndex(path, info) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "failed to walk "+root).
			WithCode(apperr.CodeIndexing).
			WithOperation("walker.Walk")
	}

	return files, nil
}

// EventKind classifies a file change
type EventKind int

const (
	Created EventKind = iota
	Modified
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Event is a file change under a watched root
type Event struct {
	Path string
	Kind EventKind
}

// Watcher emits change events for indexable files under its roots
type Watcher struct {
	walker  *Walker
	watcher *fsnotify.Watcher
	events  chan Event
	done    chan struct{}
}

// NewWatcher starts watching all directories under the given roots
func (w *Walker) NewWatcher(roots ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create file watcher").
			WithCode(apperr.CodeIndexing)
	}

	watcher := &Watcher{
		walker:  w,
		watcher: fsw,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}

	for _, root := range roots {
		if err := watcher.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	go watcher.loop()
	return watcher, nil
}

// Events returns the change event channel. It closes when the watcher stops.
func (wt *Watcher) Events() <-chan Event {
	return wt.events
}

// Close stops the watcher
func (wt *Watcher) Close() error {
	close(wt.done)
	return wt.watcher.Close()
}

func (wt *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && wt.walker.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := wt.watcher.Add(path); err != nil {
			log.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (wt *Watcher) loop() {
	defer close(wt.events)

	for {
		select {
		case <-wt.done:
			return
		case err, ok := <-wt.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		case ev, ok := <-wt.watcher.Events:
			if !ok {
				return
			}
			wt.handle(ev)
		}
	}
}

func (wt *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		// No stat possible; let the consumer drop whatever was indexed.
		wt.emit(Event{Path: ev.Name, Kind: Deleted})

	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if !wt.walker.skipDir(filepath.Base(ev.Name)) {
				wt.addRecursive(ev.Name)
			}
			return
		}
		if wt.walker.ShouldIndex(ev.Name, info) {
			wt.emit(Event{Path: ev.Name, Kind: Created})
		}

	case ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return
		}
		if wt.walker.ShouldIndex(ev.Name, info) {
			wt.emit(Event{Path: ev.Name, Kind: Modified})
		}
	}
}

func (wt *Watcher) emit(ev Event) {
	select {
	case wt.events <- ev:
	case <-wt.done:
	}
}
