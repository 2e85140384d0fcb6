// Package surface resolves drawing surfaces by name and fans out their size
// changes to any number of subscribers.
package surface

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

var ErrNotFound = errors.New("surface: canvas not found")

// Size is measured in device pixels.
type Size struct {
	Width  int
	Height int
}

// Canvas is a drawing surface owned by the host.
type Canvas interface {
	ID() string
	Size() Size
}

// Host is the page-side capability the binding sits on: surface lookup and
// one size observer per canvas.
type Host interface {
	Lookup(id string) (Canvas, bool)
	ObserveSize(c Canvas, fn func(Size)) (cancel func())
}

type ResizeFunc func(width, height int)

type Binding struct {
	host Host

	mu       sync.Mutex
	surfaces map[string]*observed
	nextID   uint64
}

type observed struct {
	canvas    Canvas
	listeners []*Subscription
	cancel    func()
}

// Subscription is one registered resize listener.
type Subscription struct {
	b      *Binding
	id     uint64
	canvas string
	fn     ResizeFunc

	delivered atomic.Bool
}

func NewBinding(host Host) *Binding {
	return &Binding{
		host:     host,
		surfaces: make(map[string]*observed),
	}
}

func (b *Binding) Resolve(id string) (Canvas, error) {
	c, ok := b.host.Lookup(id)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c, nil
}

// ObserveResize adds fn to the canvas's listener list and calls it once with
// the current size before returning, unless the host already reported a size
// to it while the observer was being installed. Later size changes reach
// every listener, in subscription order.
func (b *Binding) ObserveResize(c Canvas, fn ResizeFunc) *Subscription {
	b.mu.Lock()
	b.nextID++
	sub := &Subscription{b: b, id: b.nextID, canvas: c.ID(), fn: fn}

	obs, ok := b.surfaces[c.ID()]
	if !ok {
		obs = &observed{canvas: c}
		b.surfaces[c.ID()] = obs
	}
	obs.listeners = append(obs.listeners, sub)
	first := !ok
	b.mu.Unlock()

	if first {
		cancel := b.host.ObserveSize(c, func(s Size) { b.publish(c.ID(), s) })
		b.mu.Lock()
		if cur, live := b.surfaces[c.ID()]; live && cur == obs {
			obs.cancel = cancel
			cancel = nil
		}
		b.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	if !sub.delivered.Load() {
		size := c.Size()
		sub.deliver(size.Width, size.Height)
	}
	return sub
}

// Listeners reports how many subscriptions are live for the canvas.
func (b *Binding) Listeners(c Canvas) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if obs, ok := b.surfaces[c.ID()]; ok {
		return len(obs.listeners)
	}
	return 0
}

func (b *Binding) publish(id string, s Size) {
	b.mu.Lock()
	obs, ok := b.surfaces[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	listeners := slices.Clone(obs.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		if l.active() {
			l.deliver(s.Width, s.Height)
		}
	}
}

func (s *Subscription) deliver(width, height int) {
	s.delivered.Store(true)
	s.fn(width, height)
}

func (s *Subscription) active() bool {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	obs, ok := s.b.surfaces[s.canvas]
	return ok && slices.Contains(obs.listeners, s)
}

// Cancel stops further callbacks for this subscription. The canvas itself is
// left alone; the host observer is released with the last subscription.
func (s *Subscription) Cancel() {
	b := s.b
	b.mu.Lock()
	obs, ok := b.surfaces[s.canvas]
	if !ok {
		b.mu.Unlock()
		return
	}
	obs.listeners = slices.DeleteFunc(obs.listeners, func(l *Subscription) bool { return l == s })
	var cancel func()
	if len(obs.listeners) == 0 {
		delete(b.surfaces, s.canvas)
		cancel = obs.cancel
	}
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
