package opengl

import (
	"fmt"

	"github.com/ThatOtherAndrew/Turntable/internal/models"
	"github.com/ThatOtherAndrew/Turntable/internal/stage"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

const floatSize = 4

type mesh struct {
	vao, vbo, ebo uint32
	count         int32
	texture       uint32
	color         [4]float32
}

// Upload copies a model's mesh, and texture if any, to the GPU.
func (d *Device) Upload(m *models.Model) (stage.Resource, error) {
	src := m.Mesh()
	if len(src.Vertices) == 0 || len(src.Indices) == 0 {
		return nil, fmt.Errorf("model %q has an empty mesh", m.Name())
	}

	vertices := make([]float32, 0, len(src.Vertices)*5)
	for _, v := range src.Vertices {
		vertices = append(vertices, v.Position[0], v.Position[1], v.Position[2], v.UV[0], v.UV[1])
	}

	r := &mesh{count: int32(len(src.Indices)), color: m.Color()}

	gl.GenVertexArrays(1, &r.vao)
	gl.GenBuffers(1, &r.vbo)
	gl.GenBuffers(1, &r.ebo)

	gl.BindVertexArray(r.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*floatSize, gl.Ptr(vertices), gl.STATIC_DRAW)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(src.Indices)*4, gl.Ptr(src.Indices), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 5*floatSize, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 5*floatSize, 3*floatSize)
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)

	if tex := m.Texture(); tex != nil {
		r.texture = uploadTexture(tex)
	}

	d.checkError()
	return r, nil
}

func uploadTexture(t *models.Texture) uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.RGBA8,
		int32(t.Width),
		int32(t.Height),
		0,
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(t.Pixels),
	)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}

func (d *Device) Draw(res stage.Resource, mvp mgl32.Mat4) {
	r := res.(*mesh)

	gl.UseProgram(d.program)
	gl.UniformMatrix4fv(d.mvpLoc, 1, false, &mvp[0])
	gl.Uniform4f(d.baseColorLoc, r.color[0], r.color[1], r.color[2], r.color[3])

	if r.texture != 0 {
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, r.texture)
		gl.Uniform1i(d.texLoc, 0)
		gl.Uniform1i(d.hasTexLoc, 1)
	} else {
		gl.Uniform1i(d.hasTexLoc, 0)
	}

	gl.BindVertexArray(r.vao)
	gl.DrawElements(gl.TRIANGLES, r.count, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

func (d *Device) Release(res stage.Resource) {
	r, ok := res.(*mesh)
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &r.vao)
	gl.DeleteBuffers(1, &r.vbo)
	gl.DeleteBuffers(1, &r.ebo)
	if r.texture != 0 {
		gl.DeleteTextures(1, &r.texture)
	}
}
