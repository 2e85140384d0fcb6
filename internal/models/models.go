package models

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Position [3]float32
	UV       [2]float32
}

type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Texture is tightly packed RGBA8, row-major from the top-left corner.
type Texture struct {
	Width  int
	Height int
	Pixels []byte
}

var nextID atomic.Uint64

// Model is a renderable asset. Nothing mutates a Model after NewModel
// returns; the slices behind Mesh and Texture are shared read-only with the
// renderer.
type Model struct {
	id      uint64
	name    string
	mesh    Mesh
	texture *Texture
	base    mgl32.Mat4
	color   [4]float32
}

type Option func(*Model)

func WithTexture(t *Texture) Option {
	return func(m *Model) { m.texture = t }
}

func WithBaseTransform(mat mgl32.Mat4) Option {
	return func(m *Model) { m.base = mat }
}

func NewModel(name string, mesh Mesh, opts ...Option) *Model {
	m := &Model{
		id:    nextID.Add(1),
		name:  name,
		mesh:  mesh,
		base:  mgl32.Ident4(),
		color: [4]float32{0.8, 0.8, 0.8, 1},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID is unique per Model for the life of the process.
func (m *Model) ID() uint64 { return m.id }

func (m *Model) Name() string { return m.name }

func (m *Model) Mesh() Mesh { return m.mesh }

// Texture returns nil for untextured models.
func (m *Model) Texture() *Texture { return m.texture }

func (m *Model) BaseTransform() mgl32.Mat4 { return m.base }

func (m *Model) Color() [4]float32 { return m.color }

// Transform composes the base transform with a rotation about the Y axis
// by the state's phase.
func (m *Model) Transform(s AnimationState) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(float32(s.Phase)).Mul4(m.base)
}

const FullTurn = 2 * math.Pi

// AnimationState is the per-model mutable part of an animated model.
// Phase stays in [0, FullTurn).
type AnimationState struct {
	Phase float64
	Rate  float64 // radians per second
}

// Instance pairs a Model with the state it should be drawn in.
type Instance struct {
	Name  string
	Model *Model
	State AnimationState
}
