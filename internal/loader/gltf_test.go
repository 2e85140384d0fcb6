package loader_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/ThatOtherAndrew/Turntable/internal/loader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangle builds a .gltf document with its buffer inlined as a data URI. If
// tex is non-nil it is stored as an embedded image.
func triangle(t *testing.T, tex []byte) []byte {
	t.Helper()
	return triangleWith(t, tex, `{"attributes":{"POSITION":0},"indices":1}`)
}

func triangleWith(t *testing.T, tex []byte, primitive string) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range []float32{0, 0, 0, 2, 0, 0, 0, 1, 0} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, math.Float32bits(f)))
	}
	for _, i := range []uint16{0, 1, 2} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, i))
	}
	buf.Write([]byte{0, 0})

	views := `{"buffer":0,"byteOffset":0,"byteLength":36},{"buffer":0,"byteOffset":36,"byteLength":6}`
	images := ""
	if tex != nil {
		views += fmt.Sprintf(`,{"buffer":0,"byteOffset":%d,"byteLength":%d}`, buf.Len(), len(tex))
		buf.Write(tex)
		images = `,"images":[{"bufferView":2,"mimeType":"image/png"}]`
	}

	doc := fmt.Sprintf(`{
		"asset":{"version":"2.0"},
		"buffers":[{"byteLength":%d,"uri":"data:application/octet-stream;base64,%s"}],
		"bufferViews":[%s],
		"accessors":[
			{"bufferView":0,"componentType":5126,"count":3,"type":"VEC3","min":[0,0,0],"max":[2,1,0]},
			{"bufferView":1,"componentType":5123,"count":3,"type":"SCALAR"}
		],
		"meshes":[{"primitives":[%s]}]%s
	}`, buf.Len(), base64.StdEncoding.EncodeToString(buf.Bytes()), views, primitive, images)
	return []byte(doc)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGLTFDecodeTriangle(t *testing.T) {
	m, err := loader.GLTFDecoder{}.Decode("tomato", triangle(t, nil))
	require.NoError(t, err)

	mesh := m.Mesh()
	require.Len(t, mesh.Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
	assert.Equal(t, [3]float32{2, 0, 0}, mesh.Vertices[1].Position)
	assert.Nil(t, m.Texture())

	p := m.BaseTransform().Mul4x1(mgl32.Vec4{2, 0, 0, 1})
	assert.InDelta(t, 0.5, p.X(), 1e-6)
	assert.InDelta(t, -0.25, p.Y(), 1e-6)
	assert.InDelta(t, 0, p.Z(), 1e-6)
}

func TestGLTFDecodeEmbeddedTexture(t *testing.T) {
	m, err := loader.GLTFDecoder{MaxTextureSize: 4}.Decode("latte", triangle(t, pngBytes(t, 8, 2)))
	require.NoError(t, err)

	tex := m.Texture()
	require.NotNil(t, tex)
	assert.Equal(t, 4, tex.Width)
	assert.Equal(t, 1, tex.Height)
	assert.Len(t, tex.Pixels, 4*4)
	assert.Equal(t, byte(255), tex.Pixels[3])
}

func TestGLTFDecodeErrors(t *testing.T) {
	_, err := loader.GLTFDecoder{}.Decode("espresso", []byte("definitely not gltf"))
	assert.ErrorIs(t, err, loader.ErrAssetDecode)

	_, err = loader.GLTFDecoder{}.Decode("espresso", []byte(`{"asset":{"version":"2.0"}}`))
	assert.ErrorIs(t, err, loader.ErrAssetDecode)

	var decErr *loader.AssetDecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "espresso", decErr.Name)

	_, err = loader.GLTFDecoder{}.Decode("espresso",
		[]byte(`{"asset":{"version":"2.0"},"meshes":[{"primitives":[{"attributes":{"POSITION":7}}]}]}`))
	assert.ErrorIs(t, err, loader.ErrAssetDecode)

	_, err = loader.GLTFDecoder{}.Decode("espresso",
		triangleWith(t, nil, `{"attributes":{"POSITION":0,"TEXCOORD_0":5},"indices":1}`))
	assert.ErrorIs(t, err, loader.ErrAssetDecode)

	_, err = loader.GLTFDecoder{}.Decode("espresso",
		triangleWith(t, nil, `{"attributes":{"POSITION":0},"indices":9}`))
	assert.ErrorIs(t, err, loader.ErrAssetDecode)
}

// quad is four corners of the unit square in strip order, without indices.
func quad(t *testing.T, mode int) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, math.Float32bits(f)))
	}
	return []byte(fmt.Sprintf(`{
		"asset":{"version":"2.0"},
		"buffers":[{"byteLength":%d,"uri":"data:application/octet-stream;base64,%s"}],
		"bufferViews":[{"buffer":0,"byteOffset":0,"byteLength":%d}],
		"accessors":[{"bufferView":0,"componentType":5126,"count":4,"type":"VEC3","min":[0,0,0],"max":[1,1,0]}],
		"meshes":[{"primitives":[{"attributes":{"POSITION":0},"mode":%d}]}]
	}`, buf.Len(), base64.StdEncoding.EncodeToString(buf.Bytes()), buf.Len(), mode))
}

func TestGLTFDecodePrimitiveModes(t *testing.T) {
	tests := []struct {
		name    string
		mode    int
		indices []uint32
	}{
		{"triangles", 4, []uint32{0, 1, 2}},
		{"strip", 5, []uint32{0, 1, 2, 2, 1, 3}},
		{"fan", 6, []uint32{0, 1, 2, 0, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := loader.GLTFDecoder{}.Decode("tomato", quad(t, tt.mode))
			require.NoError(t, err)
			assert.Len(t, m.Mesh().Vertices, 4)
			assert.Equal(t, tt.indices, m.Mesh().Indices)
		})
	}

	for _, mode := range []int{0, 1, 3} {
		_, err := loader.GLTFDecoder{}.Decode("espresso", quad(t, mode))
		assert.ErrorIs(t, err, loader.ErrAssetDecode, "mode %d", mode)
	}
}

func TestDecodeTexture(t *testing.T) {
	tex, err := loader.DecodeTexture(pngBytes(t, 3, 2), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, tex.Width)
	assert.Equal(t, 2, tex.Height)
	assert.Equal(t, []byte{200, 40, 30, 255}, tex.Pixels[:4])

	_, err = loader.DecodeTexture([]byte("plain text"), 0)
	assert.Error(t, err)
}
