// Package stage owns the graphics context bound to one canvas: its viewport,
// camera and draw submission.
//
// A Stage is driven from a single goroutine (the host's render thread). Only
// the Stage talks to its Device.
package stage

import (
	"errors"
	"fmt"

	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/ThatOtherAndrew/Turntable/internal/models"
	"github.com/ThatOtherAndrew/Turntable/internal/surface"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrContextUnavailable = errors.New("stage: graphics context unavailable")
	ErrContextLost        = errors.New("stage: graphics context lost")
)

// Resource is whatever a Device hands back for an uploaded model.
type Resource any

// Device is the live graphics context.
type Device interface {
	Viewport(width, height int)
	Clear()
	Upload(m *models.Model) (Resource, error)
	Draw(r Resource, mvp mgl32.Mat4)
	Release(r Resource)
	Present()
	Lost() bool
	// Close frees what the device owns beyond uploaded resources. The Stage
	// never uses a Device after closing it.
	Close()
}

type DeviceFactory func(c surface.Canvas) (Device, error)

type State int

const (
	Ready State = iota
	ContextLost
	Closed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case ContextLost:
		return "context-lost"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Stage struct {
	canvas    surface.Canvas
	factory   DeviceFactory
	device    Device
	resources map[uint64]Resource
	failed    map[uint64]bool
	viewport  Viewport
	camera    Camera
	view      mgl32.Mat4
	state     State
}

type Option func(*Stage)

func WithCamera(c Camera) Option {
	return func(s *Stage) { s.camera = c }
}

func New(c surface.Canvas, factory DeviceFactory, opts ...Option) (*Stage, error) {
	dev, err := factory(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextUnavailable, err)
	}
	if dev == nil {
		return nil, ErrContextUnavailable
	}

	s := &Stage{
		canvas:    c,
		factory:   factory,
		device:    dev,
		resources: make(map[uint64]Resource),
		failed:    make(map[uint64]bool),
		camera:    DefaultCamera(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.view = s.camera.View()

	size := c.Size()
	s.applyViewport(size.Width, size.Height)
	return s, nil
}

func (s *Stage) State() State { return s.state }

func (s *Stage) Viewport() Viewport { return s.viewport }

func (s *Stage) Camera() Camera { return s.camera }

// SetCamera replaces the camera and rebuilds the projection.
func (s *Stage) SetCamera(c Camera) {
	s.camera = c
	s.view = c.View()
	s.viewport = newViewport(s.viewport.Width, s.viewport.Height, c)
}

// Resize applies new device-pixel dimensions. Repeating the current size does
// nothing.
func (s *Stage) Resize(width, height int) {
	width, height = clampDim(width), clampDim(height)
	if width == s.viewport.Width && height == s.viewport.Height {
		return
	}
	s.applyViewport(width, height)
}

func (s *Stage) applyViewport(width, height int) {
	s.viewport = newViewport(clampDim(width), clampDim(height), s.camera)
	if s.state == Ready {
		s.device.Viewport(s.viewport.Width, s.viewport.Height)
	}
	logging.Logger().Debug("viewport resized",
		"canvas", s.canvas.ID(),
		"width", s.viewport.Width,
		"height", s.viewport.Height)
}

// DrawFrame draws one frame: one Draw call per instance, in order. It returns
// ErrContextLost on the frame where loss is first seen and is a no-op while
// the context stays lost.
func (s *Stage) DrawFrame(instances []models.Instance) error {
	if s.state != Ready {
		return nil
	}
	if s.device.Lost() {
		s.loseContext()
		return ErrContextLost
	}

	s.device.Clear()
	vp := s.viewport.Projection.Mul4(s.view)
	for _, in := range instances {
		res, ok := s.resource(in.Model)
		if !ok {
			continue
		}
		s.device.Draw(res, vp.Mul4(in.Model.Transform(in.State)))
	}
	s.device.Present()

	if s.device.Lost() {
		s.loseContext()
		return ErrContextLost
	}
	return nil
}

func (s *Stage) resource(m *models.Model) (Resource, bool) {
	if res, ok := s.resources[m.ID()]; ok {
		return res, true
	}
	if s.failed[m.ID()] {
		return nil, false
	}
	res, err := s.device.Upload(m)
	if err != nil {
		s.failed[m.ID()] = true
		logging.Logger().Warn("model upload failed", "model", m.Name(), "err", err)
		return nil, false
	}
	s.resources[m.ID()] = res
	return res, true
}

func (s *Stage) loseContext() {
	s.state = ContextLost
	clear(s.resources)
	clear(s.failed)
	logging.Logger().Warn("graphics context lost", "canvas", s.canvas.ID())
}

// Recover acquires a fresh Device after context loss. Models are uploaded
// again on their next draw.
func (s *Stage) Recover() error {
	if s.state == Closed {
		return fmt.Errorf("%w: stage closed", ErrContextUnavailable)
	}
	dev, err := s.factory(s.canvas)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContextUnavailable, err)
	}
	if dev == nil {
		return ErrContextUnavailable
	}
	if s.state == Ready {
		s.releaseAll()
	}
	s.device.Close()
	s.device = dev
	clear(s.resources)
	clear(s.failed)
	s.state = Ready

	size := s.canvas.Size()
	s.applyViewport(size.Width, size.Height)
	logging.Logger().Info("graphics context recovered", "canvas", s.canvas.ID())
	return nil
}

// Close releases every uploaded resource. DrawFrame is a no-op afterwards.
func (s *Stage) Close() {
	switch s.state {
	case Ready:
		s.releaseAll()
		s.device.Close()
	case ContextLost:
		s.device.Close()
	}
	s.state = Closed
}

func (s *Stage) releaseAll() {
	for id, res := range s.resources {
		s.device.Release(res)
		delete(s.resources, id)
	}
}

func clampDim(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
