package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/spanidx/internal/debug"
)

// Watcher re-packs analyzer JSON files when they are created or rewritten
// under the watched roots. Removed inputs are only logged: the stored rows
// are keyed by the project and path inside the JSON, which is gone.
type Watcher struct {
	uploader *Uploader
	debounce time.Duration
	onResult func(input string, r FileResult)
	ready    chan struct{}

	dirs  []string        // recursive roots
	files map[string]bool // explicitly named inputs
}

// NewWatcher creates a watcher that uploads through s, waiting
// upload.watch_debounce_ms for writes to settle.
func NewWatcher(s *Session) *Watcher {
	return &Watcher{
		uploader: s.Uploader(),
		debounce: time.Duration(s.cfg.Upload.WatchDebounceMs) * time.Millisecond,
		ready:    make(chan struct{}),
		files:    make(map[string]bool),
	}
}

// OnResult sets the callback run after each re-pack. It runs on the
// goroutine that called Run.
func (w *Watcher) OnResult(fn func(input string, r FileResult)) {
	w.onResult = fn
}

// Ready is closed once every root is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches roots until ctx is done. Directory roots are watched
// recursively; file roots only for that file.
func (w *Watcher) Run(ctx context.Context, roots ...string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, root := range roots {
		if err := w.addRoot(fsw, root); err != nil {
			return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
		}
	}
	debug.LogIndexing("watching %d root(s)\n", len(roots))
	close(w.ready)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			if len(pending) > 0 {
				debug.LogIndexing("watch stopped with %d pending file(s)\n", len(pending))
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(fsw, event) {
				pending[event.Name] = struct{}{}
				timer.Reset(w.debounce)
				fire = timer.C
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			debug.LogIndexing("watch error: %v\n", err)

		case <-fire:
			fire = nil
			w.flush(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.files[abs] = true
		return fsw.Add(filepath.Dir(abs))
	}
	w.dirs = append(w.dirs, abs)
	return w.addTree(fsw, abs)
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[resolved] {
			return filepath.SkipDir
		}
		visited[resolved] = true
		if err := fsw.Add(path); err != nil {
			debug.LogIndexing("failed to watch %s: %v\n", path, err)
		}
		return nil
	})
}

// handleEvent reports whether event should queue a re-pack of event.Name.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	path := event.Name
	debug.LogIndexing("watch event %v for %s\n", event.Op, path)

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if w.wants(path) {
			debug.LogIndexing("input %s removed; stored rows kept\n", path)
		}
		return false
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && w.underDir(path) {
			if err := w.addTree(fsw, path); err != nil {
				debug.LogIndexing("failed to watch new directory %s: %v\n", path, err)
			}
		}
		return false
	}
	return w.wants(path)
}

func (w *Watcher) wants(path string) bool {
	if w.files[path] {
		return true
	}
	return strings.EqualFold(filepath.Ext(path), ".json") && w.underDir(path)
}

func (w *Watcher) underDir(path string) bool {
	for _, dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	inputs := make([]string, 0, len(pending))
	for path := range pending {
		inputs = append(inputs, path)
	}
	slices.Sort(inputs)
	debug.LogIndexing("re-packing %d changed file(s)\n", len(inputs))

	for _, input := range inputs {
		r := w.repack(ctx, input)
		if w.onResult != nil {
			w.onResult(input, r)
		}
	}
}

func (w *Watcher) repack(ctx context.Context, input string) FileResult {
	f, err := os.Open(input)
	if err != nil {
		return FileResult{Path: input, Err: err}
	}
	src, err := ReadSourceFile(f)
	f.Close()
	if err != nil {
		return FileResult{Path: input, Err: err}
	}
	r, err := w.uploader.UploadOne(ctx, src)
	if err != nil && r.Err == nil {
		r.Path, r.Err = input, err
	}
	return r
}
