package loader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ThatOtherAndrew/Turntable/internal/models"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/h2non/filetype"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const DefaultMaxTextureSize = 2048

var (
	errNoMesh       = errors.New("document has no mesh")
	errNoPosition   = errors.New("primitive has no POSITION attribute")
	errNotTriangles = errors.New("primitive is not made of triangles")
)

// GLTFDecoder turns self-contained glTF 2.0 documents (GLB, or .gltf with
// data URIs) into models. The first mesh becomes the model; its first
// embedded image, if any, becomes the texture.
type GLTFDecoder struct {
	MaxTextureSize int
}

func (d GLTFDecoder) Decode(name string, data []byte) (*models.Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, &AssetDecodeError{Name: name, Err: err}
	}
	if len(doc.Meshes) == 0 {
		return nil, &AssetDecodeError{Name: name, Err: errNoMesh}
	}

	mesh, err := readMesh(doc, doc.Meshes[0])
	if err != nil {
		return nil, &AssetDecodeError{Name: name, Err: err}
	}

	opts := []models.Option{models.WithBaseTransform(normalize(mesh))}
	tex, err := d.readTexture(doc)
	if err != nil {
		return nil, &AssetDecodeError{Name: name, Err: err}
	}
	if tex != nil {
		opts = append(opts, models.WithTexture(tex))
	}
	return models.NewModel(name, mesh, opts...), nil
}

func readMesh(doc *gltf.Document, m *gltf.Mesh) (models.Mesh, error) {
	var out models.Mesh
	for i, prim := range m.Primitives {
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			return out, fmt.Errorf("primitive %d: %w", i, errNoPosition)
		}
		acr, err := accessor(doc, int(posIdx))
		if err != nil {
			return out, fmt.Errorf("primitive %d positions: %w", i, err)
		}
		positions, err := modeler.ReadPosition(doc, acr, nil)
		if err != nil {
			return out, fmt.Errorf("primitive %d positions: %w", i, err)
		}

		var uvs [][2]float32
		if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			acr, err := accessor(doc, int(uvIdx))
			if err != nil {
				return out, fmt.Errorf("primitive %d texcoords: %w", i, err)
			}
			uvs, err = modeler.ReadTextureCoord(doc, acr, nil)
			if err != nil {
				return out, fmt.Errorf("primitive %d texcoords: %w", i, err)
			}
		}

		var indices []uint32
		if prim.Indices == nil {
			indices = make([]uint32, len(positions))
			for j := range indices {
				indices[j] = uint32(j)
			}
		} else {
			acr, err := accessor(doc, int(*prim.Indices))
			if err != nil {
				return out, fmt.Errorf("primitive %d indices: %w", i, err)
			}
			indices, err = modeler.ReadIndices(doc, acr, nil)
			if err != nil {
				return out, fmt.Errorf("primitive %d indices: %w", i, err)
			}
		}
		for _, idx := range indices {
			if int(idx) >= len(positions) {
				return out, fmt.Errorf("primitive %d: index %d out of range", i, idx)
			}
		}
		indices, err = triangleList(prim.Mode, indices)
		if err != nil {
			return out, fmt.Errorf("primitive %d: %w", i, err)
		}

		base := uint32(len(out.Vertices))
		for j, p := range positions {
			v := models.Vertex{Position: p}
			if j < len(uvs) {
				v.UV = uvs[j]
			}
			out.Vertices = append(out.Vertices, v)
		}
		for _, idx := range indices {
			out.Indices = append(out.Indices, base+idx)
		}
	}
	if len(out.Vertices) == 0 {
		return out, errNoMesh
	}
	return out, nil
}

func accessor(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) || doc.Accessors[idx] == nil {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return doc.Accessors[idx], nil
}

// triangleList rewrites strips and fans as plain triangles. Points and lines
// have no surface to draw.
func triangleList(mode gltf.PrimitiveMode, idx []uint32) ([]uint32, error) {
	switch mode {
	case gltf.PrimitiveTriangles:
		return idx[:len(idx)-len(idx)%3], nil
	case gltf.PrimitiveTriangleStrip:
		var out []uint32
		for i := 0; i+2 < len(idx); i++ {
			if i%2 == 0 {
				out = append(out, idx[i], idx[i+1], idx[i+2])
			} else {
				out = append(out, idx[i+1], idx[i], idx[i+2])
			}
		}
		return out, nil
	case gltf.PrimitiveTriangleFan:
		var out []uint32
		for i := 1; i+1 < len(idx); i++ {
			out = append(out, idx[0], idx[i], idx[i+1])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: mode %d", errNotTriangles, mode)
	}
}

// normalize centres the mesh bounds on the origin and scales the largest
// extent to 1.
func normalize(m models.Mesh) mgl32.Mat4 {
	lo := mgl32.Vec3(m.Vertices[0].Position)
	hi := lo
	for _, v := range m.Vertices[1:] {
		for k := range 3 {
			lo[k] = min(lo[k], v.Position[k])
			hi[k] = max(hi[k], v.Position[k])
		}
	}
	centre := lo.Add(hi).Mul(0.5)
	size := hi.Sub(lo)
	extent := max(size[0], size[1], size[2])
	scale := float32(1)
	if extent > 0 {
		scale = 1 / extent
	}
	return mgl32.Scale3D(scale, scale, scale).Mul4(mgl32.Translate3D(-centre[0], -centre[1], -centre[2]))
}

func (d GLTFDecoder) readTexture(doc *gltf.Document) (*models.Texture, error) {
	for _, img := range doc.Images {
		if img.BufferView == nil {
			continue
		}
		data, err := bufferViewBytes(doc, int(*img.BufferView))
		if err != nil {
			return nil, err
		}
		return DecodeTexture(data, d.maxTextureSize())
	}
	return nil, nil
}

func (d GLTFDecoder) maxTextureSize() int {
	if d.MaxTextureSize > 0 {
		return d.MaxTextureSize
	}
	return DefaultMaxTextureSize
}

func bufferViewBytes(doc *gltf.Document, idx int) ([]byte, error) {
	if idx < 0 || idx >= len(doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", idx)
	}
	bv := doc.BufferViews[idx]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	buf := doc.Buffers[bv.Buffer].Data
	start, end := int(bv.ByteOffset), int(bv.ByteOffset)+int(bv.ByteLength)
	if end > len(buf) {
		return nil, fmt.Errorf("buffer view %d overruns its buffer", idx)
	}
	return buf[start:end], nil
}

// DecodeTexture decodes PNG, JPEG, BMP or WebP bytes into RGBA, scaled down so
// neither edge exceeds maxSize.
func DecodeTexture(data []byte, maxSize int) (*models.Texture, error) {
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("texture is not an image (detected %q)", kind.MIME.Value)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize > 0 && (w > maxSize || h > maxSize) {
		if w >= h {
			w, h = maxSize, max(1, h*maxSize/w)
		} else {
			w, h = max(1, w*maxSize/h), maxSize
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return &models.Texture{Width: w, Height: h, Pixels: dst.Pix}, nil
}
