package stage

import "github.com/go-gl/mathgl/mgl32"

// Camera looks at the origin from Distance along +Z.
type Camera struct {
	FOV      float32 // vertical, degrees
	Distance float32
	Near     float32
	Far      float32
}

func DefaultCamera() Camera {
	return Camera{FOV: 45, Distance: 3, Near: 0.1, Far: 100}
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(
		mgl32.Vec3{0, 0, c.Distance},
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 1, 0},
	)
}

type Viewport struct {
	Width      int
	Height     int
	Aspect     float32
	Projection mgl32.Mat4
}

func newViewport(width, height int, c Camera) Viewport {
	aspect := float32(width) / float32(height)
	return Viewport{
		Width:      width,
		Height:     height,
		Aspect:     aspect,
		Projection: mgl32.Perspective(mgl32.DegToRad(c.FOV), aspect, c.Near, c.Far),
	}
}
