package testutil

import (
	"errors"
	"sync"

	"github.com/ThatOtherAndrew/Turntable/internal/models"
	"github.com/ThatOtherAndrew/Turntable/internal/stage"
	"github.com/ThatOtherAndrew/Turntable/internal/surface"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrNoGPU = errors.New("testutil: no gpu")

// DrawCall is one recorded Device.Draw.
type DrawCall struct {
	Model string
	MVP   mgl32.Mat4
}

// Frame is everything drawn between Clear and Present.
type Frame struct {
	Draws []DrawCall
}

// Device records the calls a Stage makes.
type Device struct {
	mu        sync.Mutex
	Viewports [][2]int
	Uploads   []string
	Released  int
	Closed    int
	Frames    []Frame
	FailOn    map[string]bool
	lost      bool
	open      *Frame
}

type resource struct{ name string }

func NewDevice() *Device {
	return &Device{FailOn: make(map[string]bool)}
}

// Factory returns a stage.DeviceFactory that always yields d.
func (d *Device) Factory() stage.DeviceFactory {
	return func(surface.Canvas) (stage.Device, error) { return d, nil }
}

// Sequence returns a factory that hands out the given devices in order and
// then fails.
func Sequence(devs ...*Device) stage.DeviceFactory {
	var mu sync.Mutex
	return func(surface.Canvas) (stage.Device, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(devs) == 0 {
			return nil, ErrNoGPU
		}
		d := devs[0]
		devs = devs[1:]
		return d, nil
	}
}

func FailingFactory() stage.DeviceFactory {
	return func(surface.Canvas) (stage.Device, error) { return nil, ErrNoGPU }
}

func (d *Device) Viewport(w, h int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Viewports = append(d.Viewports, [2]int{w, h})
}

func (d *Device) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = &Frame{}
}

func (d *Device) Upload(m *models.Model) (stage.Resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailOn[m.Name()] {
		return nil, errors.New("upload rejected")
	}
	d.Uploads = append(d.Uploads, m.Name())
	return &resource{name: m.Name()}, nil
}

func (d *Device) Draw(r stage.Resource, mvp mgl32.Mat4) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open.Draws = append(d.open.Draws, DrawCall{Model: r.(*resource).name, MVP: mvp})
}

func (d *Device) Release(stage.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Released++
}

func (d *Device) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Frames = append(d.Frames, *d.open)
	d.open = nil
}

func (d *Device) Lost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed++
}

// Lose simulates the platform dropping the context.
func (d *Device) Lose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lost = true
}

func (d *Device) FrameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Frames)
}

// LastFrame returns the names drawn in the most recent frame.
func (d *Device) LastFrame() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Frames) == 0 {
		return nil
	}
	var names []string
	for _, c := range d.Frames[len(d.Frames)-1].Draws {
		names = append(names, c.Model)
	}
	return names
}
