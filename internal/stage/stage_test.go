package stage_test

import (
	"math"
	"testing"

	"github.com/ThatOtherAndrew/Turntable/internal/models"
	"github.com/ThatOtherAndrew/Turntable/internal/stage"
	"github.com/ThatOtherAndrew/Turntable/internal/surface"
	"github.com/ThatOtherAndrew/Turntable/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStage(t *testing.T, w, h int) (*stage.Stage, *testutil.Device, *testutil.Host) {
	t.Helper()
	host := testutil.NewHost()
	c := host.AddCanvas("stage", w, h)
	dev := testutil.NewDevice()
	s, err := stage.New(c, dev.Factory())
	require.NoError(t, err)
	return s, dev, host
}

func instances(ms ...*models.Model) []models.Instance {
	out := make([]models.Instance, len(ms))
	for i, m := range ms {
		out[i] = models.Instance{Name: m.Name(), Model: m}
	}
	return out
}

func TestNewContextUnavailable(t *testing.T) {
	host := testutil.NewHost()
	c := host.AddCanvas("stage", 800, 600)

	_, err := stage.New(c, testutil.FailingFactory())
	assert.ErrorIs(t, err, stage.ErrContextUnavailable)
	assert.ErrorIs(t, err, testutil.ErrNoGPU)
}

func TestNewUsesCanvasSize(t *testing.T) {
	s, dev, _ := newStage(t, 800, 600)

	vp := s.Viewport()
	assert.Equal(t, 800, vp.Width)
	assert.Equal(t, 600, vp.Height)
	assert.InDelta(t, 800.0/600.0, vp.Aspect, 1e-6)
	assert.Equal(t, [][2]int{{800, 600}}, dev.Viewports)
}

func TestResizeIsIdempotent(t *testing.T) {
	s, dev, _ := newStage(t, 800, 600)

	s.Resize(1024, 768)
	before := s.Viewport().Projection
	s.Resize(1024, 768)

	assert.Equal(t, before, s.Viewport().Projection)
	assert.Equal(t, [][2]int{{800, 600}, {1024, 768}}, dev.Viewports)
}

func TestResizeClampsZero(t *testing.T) {
	s, _, _ := newStage(t, 800, 600)

	s.Resize(0, -5)
	vp := s.Viewport()
	assert.Equal(t, 1, vp.Width)
	assert.Equal(t, 1, vp.Height)
	assert.False(t, math.IsNaN(float64(vp.Aspect)))
}

func TestResizeFollowsBinding(t *testing.T) {
	host := testutil.NewHost()
	c := host.AddCanvas("stage", 800, 600)
	dev := testutil.NewDevice()
	s, err := stage.New(c, dev.Factory())
	require.NoError(t, err)

	b := surface.NewBinding(host)
	b.ObserveResize(c, s.Resize)
	assert.InDelta(t, 800.0/600.0, s.Viewport().Aspect, 1e-6)

	host.Resize("stage", 400, 300)
	require.NoError(t, s.DrawFrame(nil))
	assert.Equal(t, 400, s.Viewport().Width)
	assert.InDelta(t, 400.0/300.0, s.Viewport().Aspect, 1e-6)

	host.Resize("stage", 300, 400)
	assert.InDelta(t, 300.0/400.0, s.Viewport().Aspect, 1e-6)
}

func TestDrawFrameOrderAndLazyUpload(t *testing.T) {
	s, dev, _ := newStage(t, 800, 600)
	tomato := models.NewModel("tomato", models.Mesh{})
	latte := models.NewModel("latte", models.Mesh{})

	require.NoError(t, s.DrawFrame(instances(tomato, latte)))
	require.NoError(t, s.DrawFrame(instances(tomato, latte)))

	assert.Equal(t, 2, dev.FrameCount())
	assert.Equal(t, []string{"tomato", "latte"}, dev.LastFrame())
	assert.Equal(t, []string{"tomato", "latte"}, dev.Uploads)
}

func TestDrawFrameUsesPhase(t *testing.T) {
	s, dev, _ := newStage(t, 800, 600)
	m := models.NewModel("tomato", models.Mesh{})

	require.NoError(t, s.DrawFrame([]models.Instance{{Model: m}}))
	require.NoError(t, s.DrawFrame([]models.Instance{{Model: m, State: models.AnimationState{Phase: 1}}}))

	assert.NotEqual(t, dev.Frames[0].Draws[0].MVP, dev.Frames[1].Draws[0].MVP)
}

func TestDrawFrameSkipsFailedUpload(t *testing.T) {
	s, dev, _ := newStage(t, 800, 600)
	dev.FailOn["espresso"] = true

	err := s.DrawFrame(instances(
		models.NewModel("tomato", models.Mesh{}),
		models.NewModel("espresso", models.Mesh{}),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"tomato"}, dev.LastFrame())
}

func TestContextLossDegradesToNoop(t *testing.T) {
	s, dev, _ := newStage(t, 800, 600)
	m := models.NewModel("tomato", models.Mesh{})
	require.NoError(t, s.DrawFrame(instances(m)))

	dev.Lose()
	assert.ErrorIs(t, s.DrawFrame(instances(m)), stage.ErrContextLost)
	assert.Equal(t, stage.ContextLost, s.State())

	assert.NoError(t, s.DrawFrame(instances(m)))
	assert.Equal(t, 1, dev.FrameCount())

	// resizes while lost are remembered but not sent to the dead device
	s.Resize(640, 480)
	assert.Equal(t, [][2]int{{800, 600}}, dev.Viewports)
}

func TestRecover(t *testing.T) {
	host := testutil.NewHost()
	c := host.AddCanvas("stage", 800, 600)
	first, second := testutil.NewDevice(), testutil.NewDevice()
	s, err := stage.New(c, testutil.Sequence(first, second))
	require.NoError(t, err)

	m := models.NewModel("tomato", models.Mesh{})
	require.NoError(t, s.DrawFrame(instances(m)))
	first.Lose()
	assert.ErrorIs(t, s.DrawFrame(instances(m)), stage.ErrContextLost)

	host.Resize("stage", 400, 300)
	require.NoError(t, s.Recover())
	assert.Equal(t, stage.Ready, s.State())
	assert.Equal(t, [][2]int{{400, 300}}, second.Viewports)
	assert.Equal(t, 1, first.Closed)
	assert.Equal(t, 0, second.Closed)

	require.NoError(t, s.DrawFrame(instances(m)))
	assert.Equal(t, []string{"tomato"}, second.Uploads)
	assert.Equal(t, 1, second.FrameCount())

	first.Lose()
	second.Lose()
	assert.ErrorIs(t, s.DrawFrame(nil), stage.ErrContextLost)
	assert.ErrorIs(t, s.Recover(), stage.ErrContextUnavailable)
	assert.Equal(t, stage.ContextLost, s.State())
	assert.Equal(t, 0, second.Closed)

	s.Close()
	assert.Equal(t, 1, second.Closed)
}

func TestClose(t *testing.T) {
	s, dev, _ := newStage(t, 800, 600)
	require.NoError(t, s.DrawFrame(instances(models.NewModel("tomato", models.Mesh{}))))

	s.Close()
	assert.Equal(t, 1, dev.Released)
	assert.Equal(t, 1, dev.Closed)
	assert.NoError(t, s.DrawFrame(nil))
	assert.Equal(t, 1, dev.FrameCount())
}

func TestSetCamera(t *testing.T) {
	s, _, _ := newStage(t, 800, 600)
	before := s.Viewport().Projection

	cam := s.Camera()
	cam.FOV = 60
	s.SetCamera(cam)

	assert.Equal(t, float32(60), s.Camera().FOV)
	assert.NotEqual(t, before, s.Viewport().Projection)
	assert.InDelta(t, 800.0/600.0, s.Viewport().Aspect, 1e-6)
}
