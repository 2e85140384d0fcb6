// Package app wires canvas binding, stage, animator and loader together and
// hands the host an explicit handle once the initial loads have settled.
package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ThatOtherAndrew/Turntable/internal/animator"
	"github.com/ThatOtherAndrew/Turntable/internal/loader"
	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/ThatOtherAndrew/Turntable/internal/models"
	"github.com/ThatOtherAndrew/Turntable/internal/stage"
	"github.com/ThatOtherAndrew/Turntable/internal/surface"
)

// Deps are the host capabilities the assembly needs.
type Deps struct {
	Host      surface.Host
	Devices   stage.DeviceFactory
	Scheduler animator.Scheduler
	Fetcher   loader.Fetcher
	Decoder   loader.Decoder
}

type Options struct {
	Canvas          string
	Assets          []string
	AutoStart       bool
	Rate            float64
	Rates           map[string]float64
	MaxFrameDelta   time.Duration
	Camera          stage.Camera
	LoadConcurrency int
}

// Session is a running assembly. Close it to detach from the canvas.
type Session struct {
	binding  *surface.Binding
	resize   *surface.Subscription
	stage    *stage.Stage
	animator *animator.Animator
	loader   *loader.Loader
	registry *Registry

	settled chan struct{}
	handle  *Handle

	closeOnce sync.Once
}

// Init resolves the canvas and builds the stage synchronously; either
// failing aborts startup. The asset loads then run in the background,
// registering each model with the animator as soon as it is ready.
func Init(ctx context.Context, d Deps, opts Options) (*Session, error) {
	binding := surface.NewBinding(d.Host)
	canvas, err := binding.Resolve(opts.Canvas)
	if err != nil {
		return nil, err
	}

	var stageOpts []stage.Option
	if opts.Camera != (stage.Camera{}) {
		stageOpts = append(stageOpts, stage.WithCamera(opts.Camera))
	}
	st, err := stage.New(canvas, d.Devices, stageOpts...)
	if err != nil {
		return nil, fmt.Errorf("canvas %q: %w", opts.Canvas, err)
	}

	animOpts := []animator.Option{animator.WithRates(opts.Rates)}
	if opts.Rate != 0 {
		animOpts = append(animOpts, animator.WithRate(opts.Rate))
	}
	if opts.MaxFrameDelta > 0 {
		animOpts = append(animOpts, animator.WithMaxDelta(opts.MaxFrameDelta))
	}

	s := &Session{
		binding:  binding,
		stage:    st,
		animator: animator.New(st, d.Scheduler, animOpts...),
		loader:   loader.New(d.Fetcher, d.Decoder, loader.WithConcurrency(opts.LoadConcurrency)),
		registry: newRegistry(),
		settled:  make(chan struct{}),
	}
	s.resize = binding.ObserveResize(canvas, st.Resize)

	if opts.AutoStart {
		s.animator.Start()
	}

	assets := slices.Clone(opts.Assets)
	go func() {
		defer close(s.settled)
		res := s.loader.LoadAll(ctx, assets, s.register)
		s.handle = &Handle{
			animator: s.animator,
			registry: s.registry,
			failures: res.Errors,
		}
		logging.Logger().Info("initial assets settled",
			"loaded", res.Loaded(),
			"failed", res.Failed())
	}()
	return s, nil
}

func (s *Session) register(name string, m *models.Model) {
	s.registry.put(name, m)
	s.animator.Register(name, m)
}

// Settled is closed once every initial load has succeeded or failed.
func (s *Session) Settled() <-chan struct{} { return s.settled }

// Wait blocks until the initial loads settle and returns the handle.
func (s *Session) Wait(ctx context.Context) (*Handle, error) {
	select {
	case <-s.settled:
		return s.handle, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stage is for the host's render thread only.
func (s *Session) Stage() *stage.Stage { return s.stage }

func (s *Session) Animator() *animator.Animator { return s.animator }

// Reload loads name again and swaps the result in. On failure the model
// already on display stays.
func (s *Session) Reload(ctx context.Context, name string) error {
	m, err := s.loader.Load(ctx, name).Wait(ctx)
	if err != nil {
		return err
	}
	s.register(name, m)
	return nil
}

// Close stops the animator and the resize subscription. The stage is left
// for the render thread to close.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.animator.Stop()
		s.resize.Cancel()
	})
}

// Handle is what the host gets once loading has settled.
type Handle struct {
	animator *animator.Animator
	registry *Registry
	failures map[string]error
}

func (h *Handle) Animator() *animator.Animator { return h.animator }

func (h *Handle) Registry() *Registry { return h.registry }

// Failures maps each asset that did not load to its error.
func (h *Handle) Failures() map[string]error {
	out := make(map[string]error, len(h.failures))
	for k, v := range h.failures {
		out[k] = v
	}
	return out
}
