// Package glfwhost hosts a canvas in a desktop window: it resolves the
// canvas by id, reports framebuffer resizes, paces frames to the display and
// owns the OpenGL context the Stage draws into.
package glfwhost

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ThatOtherAndrew/Turntable/internal/surface"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type WindowError struct {
	msg string
	err error
}

func (e *WindowError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *WindowError) Unwrap() error { return e.err }

type Config struct {
	Canvas string
	Title  string
	Width  int
	Height int
	VSync  bool
}

// Window must be created, run and destroyed on the main thread.
type Window struct {
	id  string
	win *glfw.Window

	mu        sync.Mutex
	size      surface.Size
	observers map[uint64]func(surface.Size)
	frames    map[uint64]func(time.Time)
	nextID    uint64
	iconified bool
	destroyed bool
	onKey     func(glfw.Key)
}

func NewWindow(cfg Config) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, &WindowError{"failed to initialise glfw", err}
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, &WindowError{"failed to create window", err}
	}

	w := &Window{
		id:        cfg.Canvas,
		win:       win,
		observers: make(map[uint64]func(surface.Size)),
		frames:    make(map[uint64]func(time.Time)),
	}
	fbw, fbh := win.GetFramebufferSize()
	w.size = surface.Size{Width: fbw, Height: fbh}

	win.MakeContextCurrent()
	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	win.SetFramebufferSizeCallback(w.fbResized)
	win.SetIconifyCallback(w.iconify)
	win.SetKeyCallback(w.keyEvent)
	return w, nil
}

func (w *Window) ID() string { return w.id }

func (w *Window) Size() surface.Size {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Lookup implements surface.Host; the window hosts exactly one canvas.
func (w *Window) Lookup(id string) (surface.Canvas, bool) {
	if id != w.id {
		return nil, false
	}
	return w, true
}

func (w *Window) ObserveSize(c surface.Canvas, fn func(surface.Size)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	w.observers[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.observers, id)
	}
}

func (w *Window) fbResized(_ *glfw.Window, width, height int) {
	w.mu.Lock()
	s := surface.Size{Width: width, Height: height}
	w.size = s
	fns := make([]func(surface.Size), 0, len(w.observers))
	for _, fn := range w.observers {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (w *Window) iconify(_ *glfw.Window, iconified bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.iconified = iconified
}

// OnKey sets the handler for key presses.
func (w *Window) OnKey(fn func(glfw.Key)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onKey = fn
}

func (w *Window) keyEvent(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	w.mu.Lock()
	fn := w.onKey
	w.mu.Unlock()
	if fn != nil {
		fn(key)
	}
}

// RequestFrame queues fn for the next refresh. Safe from any goroutine.
func (w *Window) RequestFrame(fn func(time.Time)) uint64 {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.frames[id] = fn
	w.mu.Unlock()
	glfw.PostEmptyEvent()
	return id
}

func (w *Window) CancelFrame(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.frames, id)
}

func (w *Window) MakeContextCurrent() { w.win.MakeContextCurrent() }

func (w *Window) SwapBuffers() { w.win.SwapBuffers() }

// ContextValid is false once the window is closing or destroyed.
func (w *Window) ContextValid() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.destroyed && !w.win.ShouldClose()
}

func (w *Window) Close() { w.win.SetShouldClose(true) }

func (w *Window) visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.iconified && w.win.GetAttrib(glfw.Visible) == glfw.True
}

// Run pumps window events and runs queued frame callbacks until the window
// closes or ctx ends. Nothing is drawn while the window is iconified or
// hidden; queued callbacks wait for it to come back.
func (w *Window) Run(ctx context.Context) {
	for !w.win.ShouldClose() {
		if ctx.Err() != nil {
			return
		}
		if !w.visible() {
			glfw.WaitEventsTimeout(0.25)
			continue
		}

		w.mu.Lock()
		idle := len(w.frames) == 0
		w.mu.Unlock()
		if idle {
			glfw.WaitEventsTimeout(0.1)
		} else {
			glfw.PollEvents()
		}
		w.runFrames(time.Now())
	}
}

func (w *Window) runFrames(now time.Time) {
	w.mu.Lock()
	ids := make([]uint64, 0, len(w.frames))
	for id := range w.frames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(time.Time), len(ids))
	for i, id := range ids {
		fns[i] = w.frames[id]
		delete(w.frames, id)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		if w.win.ShouldClose() {
			return
		}
		fn(now)
	}
}

func (w *Window) Destroy() {
	w.mu.Lock()
	w.destroyed = true
	w.mu.Unlock()
	w.win.Destroy()
	glfw.Terminate()
}
