// Package watch reloads model assets when their files change on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/ThatOtherAndrew/Turntable/internal/loader"
	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc is called with the asset name of a changed file.
type ReloadFunc func(ctx context.Context, name string) error

type Watcher struct {
	dir      string
	assets   map[string]bool
	reload   ReloadFunc
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(dir string, assets []string, reload ReloadFunc) *Watcher {
	w := &Watcher{
		dir:      dir,
		assets:   make(map[string]bool, len(assets)),
		reload:   reload,
		debounce: DefaultDebounce,
		timers:   make(map[string]*time.Timer),
	}
	for _, a := range assets {
		w.assets[a] = true
	}
	return w
}

// SetDebounce changes how long a file must stay quiet before it is reloaded.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run watches until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	log := logging.Logger().With("dir", w.dir)
	log.Info("watching assets")

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	name := loader.AssetName(filepath.Base(ev.Name))
	if name == "" || !w.assets[name] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[name]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, name)
		w.mu.Unlock()

		if err := w.reload(ctx, name); err != nil {
			logging.Logger().Warn("reload failed", "asset", name, "err", err)
			return
		}
		logging.Logger().Info("asset reloaded", "asset", name)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
}
