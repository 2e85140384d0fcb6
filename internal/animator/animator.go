// Package animator runs the per-frame update/draw loop and owns the
// animation state of every registered model.
package animator

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ThatOtherAndrew/Turntable/internal/logging"
	"github.com/ThatOtherAndrew/Turntable/internal/models"
)

// Drawer is implemented by *stage.Stage.
type Drawer interface {
	DrawFrame(instances []models.Instance) error
}

// Scheduler is the host's frame-pacing primitive: fn runs once, on the
// render thread, at the next display refresh. RequestFrame must not call fn
// before returning.
type Scheduler interface {
	RequestFrame(fn func(now time.Time)) uint64
	CancelFrame(id uint64)
}

type Status int

const (
	Idle Status = iota
	Running
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

const DefaultRate = math.Pi / 4

// Advance moves phase forward by dt at rate radians per second and wraps the
// result into [0, 2π).
func Advance(phase float64, dt time.Duration, rate float64) float64 {
	p := math.Mod(phase+dt.Seconds()*rate, models.FullTurn)
	if p < 0 {
		p += models.FullTurn
	}
	// Mod can round a value just below -0 up to exactly FullTurn.
	if p >= models.FullTurn {
		p = 0
	}
	return p
}

type entry struct {
	name  string
	model *models.Model
	state models.AnimationState
}

type Animator struct {
	drawer Drawer
	sched  Scheduler
	rate   float64
	rates  map[string]float64
	maxDt  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	entries []*entry
	index   map[string]*entry
	status  Status
	pending uint64
	gen     uint64
	last    time.Time
	primed  bool
	drawing bool
}

type Option func(*Animator)

// WithRate sets the angular rate, in radians per second, for models without
// their own rate.
func WithRate(r float64) Option {
	return func(a *Animator) { a.rate = r }
}

// WithRates sets per-model angular rates keyed by registration name.
func WithRates(rates map[string]float64) Option {
	return func(a *Animator) {
		for k, v := range rates {
			a.rates[k] = v
		}
	}
}

// WithMaxDelta caps the time step of a single frame, so a long pause does
// not show up as a jump. Zero disables the cap.
func WithMaxDelta(d time.Duration) Option {
	return func(a *Animator) { a.maxDt = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Animator) { a.logger = l }
}

func New(d Drawer, s Scheduler, opts ...Option) *Animator {
	a := &Animator{
		drawer: d,
		sched:  s,
		rate:   DefaultRate,
		rates:  make(map[string]float64),
		index:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.Logger()
	}
	return a
}

// Register adds a model with phase 0. It may be called from any goroutine;
// the model is drawn from the next frame on. Registering a name again swaps
// the model in place and keeps its slot and phase.
func (a *Animator) Register(name string, m *models.Model) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.index[name]; ok {
		e.model = m
		a.logger.Info("model replaced", "name", name)
		return
	}

	rate, ok := a.rates[name]
	if !ok {
		rate = a.rate
	}
	e := &entry{name: name, model: m, state: models.AnimationState{Rate: rate}}
	a.entries = append(a.entries, e)
	a.index[name] = e
	a.logger.Info("model registered", "name", name, "count", len(a.entries))
}

// Start moves an idle animator to Running and schedules the first frame.
func (a *Animator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != Idle {
		return
	}
	a.run()
}

// Restart resumes a stopped animator. Elapsed time while stopped is not
// applied to the models.
func (a *Animator) Restart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != Stopped {
		return
	}
	a.run()
}

func (a *Animator) run() {
	a.status = Running
	a.primed = false
	a.gen++
	a.schedule()
	a.logger.Debug("animator running", "models", len(a.entries))
}

// Stop cancels the next frame. A frame already executing finishes; nothing
// is scheduled after it.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != Running {
		return
	}
	a.status = Stopped
	a.gen++
	if a.pending != 0 {
		a.sched.CancelFrame(a.pending)
		a.pending = 0
	}
	a.logger.Debug("animator stopped")
}

func (a *Animator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Animator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Names lists registered models in registration order.
func (a *Animator) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.name
	}
	return names
}

func (a *Animator) State(name string) (models.AnimationState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.index[name]
	if !ok {
		return models.AnimationState{}, false
	}
	return e.state, true
}

// must hold a.mu
func (a *Animator) schedule() {
	gen := a.gen
	a.pending = a.sched.RequestFrame(func(now time.Time) { a.frame(gen, now) })
}

func (a *Animator) frame(gen uint64, now time.Time) {
	a.mu.Lock()
	if a.status != Running || gen != a.gen || a.drawing {
		a.mu.Unlock()
		return
	}
	a.pending = 0

	var dt time.Duration
	if a.primed {
		dt = now.Sub(a.last)
	}
	if dt < 0 {
		dt = 0
	}
	if a.maxDt > 0 && dt > a.maxDt {
		dt = a.maxDt
	}
	a.last = now
	a.primed = true

	batch := make([]models.Instance, len(a.entries))
	for i, e := range a.entries {
		e.state.Phase = Advance(e.state.Phase, dt, e.state.Rate)
		batch[i] = models.Instance{Name: e.name, Model: e.model, State: e.state}
	}
	a.drawing = true
	a.mu.Unlock()

	err := a.drawer.DrawFrame(batch)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.drawing = false
	if err != nil {
		a.logger.Warn("frame not drawn", "err", err)
	}
	if a.status == Running && gen == a.gen {
		a.schedule()
	}
}
