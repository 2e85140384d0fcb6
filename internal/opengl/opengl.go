// Package opengl is the OpenGL 4.1 core graphics context behind a Stage.
// Every call must come from the thread that owns the window's context.
package opengl

import (
	"errors"
	"fmt"

	"github.com/ThatOtherAndrew/Turntable/internal/shaders"
	"github.com/ThatOtherAndrew/Turntable/internal/stage"
	"github.com/ThatOtherAndrew/Turntable/internal/surface"
	"github.com/go-gl/gl/v4.1-core/gl"
)

// Surface is the window side of the context.
type Surface interface {
	MakeContextCurrent()
	SwapBuffers()
	ContextValid() bool
}

var errNotASurface = errors.New("canvas has no OpenGL surface")

type Device struct {
	surface Surface
	clear   [4]float32

	program      uint32
	mvpLoc       int32
	texLoc       int32
	hasTexLoc    int32
	baseColorLoc int32

	lost bool
}

// Factory builds Devices for canvases that are also Surfaces.
func Factory(clearColor [4]float32) stage.DeviceFactory {
	return func(c surface.Canvas) (stage.Device, error) {
		s, ok := c.(Surface)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errNotASurface, c.ID())
		}
		return New(s, clearColor)
	}
}

func New(s Surface, clearColor [4]float32) (*Device, error) {
	if !s.ContextValid() {
		return nil, errors.New("surface has no live context")
	}
	s.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return nil, err
	}

	program, err := shaders.LinkProgram(shaders.ModelVertex, shaders.ModelFragment)
	if err != nil {
		return nil, err
	}

	d := &Device{
		surface:      s,
		clear:        clearColor,
		program:      program,
		mvpLoc:       gl.GetUniformLocation(program, gl.Str("mvp\x00")),
		texLoc:       gl.GetUniformLocation(program, gl.Str("tex\x00")),
		hasTexLoc:    gl.GetUniformLocation(program, gl.Str("hasTexture\x00")),
		baseColorLoc: gl.GetUniformLocation(program, gl.Str("baseColor\x00")),
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.ClearColor(clearColor[0], clearColor[1], clearColor[2], clearColor[3])

	return d, nil
}

func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) Clear() {
	gl.ClearColor(d.clear[0], d.clear[1], d.clear[2], d.clear[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *Device) Present() {
	d.surface.SwapBuffers()
	d.checkError()
}

// Lost reports whether the window's context went away or the driver ran out
// of memory. Either way the Device is unusable.
// Close deletes the shader program. A lost context took it down already.
func (d *Device) Close() {
	if d.program == 0 || d.Lost() {
		return
	}
	d.surface.MakeContextCurrent()
	gl.DeleteProgram(d.program)
	d.program = 0
}

func (d *Device) Lost() bool {
	if d.lost {
		return true
	}
	if !d.surface.ContextValid() {
		d.lost = true
	}
	return d.lost
}

func (d *Device) checkError() {
	if err := gl.GetError(); err == gl.OUT_OF_MEMORY {
		d.lost = true
	}
}
