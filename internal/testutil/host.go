// Package testutil provides in-memory stand-ins for the host capabilities
// (surfaces, graphics device, frame pacing, asset fetch) used across tests.
package testutil

import (
	"sync"

	"github.com/ThatOtherAndrew/Turntable/internal/surface"
)

type Canvas struct {
	id   string
	mu   sync.Mutex
	size surface.Size
}

func (c *Canvas) ID() string { return c.id }

func (c *Canvas) Size() surface.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Host is a fake page with named canvases that can be resized by the test.
type Host struct {
	mu        sync.Mutex
	canvases  map[string]*Canvas
	observers map[string]map[int]func(surface.Size)
	next      int
	observed  int

	// Eager makes ObserveSize report the current size before it returns,
	// the way some platform observers do.
	Eager bool
}

func NewHost() *Host {
	return &Host{
		canvases:  make(map[string]*Canvas),
		observers: make(map[string]map[int]func(surface.Size)),
	}
}

func (h *Host) AddCanvas(id string, w, ht int) *Canvas {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Canvas{id: id, size: surface.Size{Width: w, Height: ht}}
	h.canvases[id] = c
	return c
}

func (h *Host) Lookup(id string) (surface.Canvas, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.canvases[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func (h *Host) ObserveSize(c surface.Canvas, fn func(surface.Size)) func() {
	cancel := h.observe(c, fn)
	h.mu.Lock()
	eager := h.Eager
	h.mu.Unlock()
	if eager {
		fn(c.Size())
	}
	return cancel
}

func (h *Host) observe(c surface.Canvas, fn func(surface.Size)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	key := h.next
	if h.observers[c.ID()] == nil {
		h.observers[c.ID()] = make(map[int]func(surface.Size))
	}
	h.observers[c.ID()][key] = fn
	h.observed++
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers[c.ID()], key)
	}
}

// Resize changes the canvas size and notifies the observers synchronously.
func (h *Host) Resize(id string, w, ht int) {
	h.mu.Lock()
	c := h.canvases[id]
	c.mu.Lock()
	c.size = surface.Size{Width: w, Height: ht}
	c.mu.Unlock()
	var fns []func(surface.Size)
	for _, fn := range h.observers[id] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(surface.Size{Width: w, Height: ht})
	}
}

// Observers is the number of live host-level observers for the canvas.
func (h *Host) Observers(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers[id])
}

// ObserveCalls counts every ObserveSize call ever made.
func (h *Host) ObserveCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.observed
}
