package shaders

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

var (
	//go:embed model.vert.glsl
	ModelVertex string
	//go:embed model.frag.glsl
	ModelFragment string
)

// CompileShaderFromSource compiles one stage. The shader object is deleted
// on failure.
func CompileShaderFromSource(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	src, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, src, nil)
	free()
	gl.CompileShader(shader)

	if msg, ok := check(shader, gl.COMPILE_STATUS, gl.GetShaderiv, gl.GetShaderInfoLog); !ok {
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %s", msg)
	}
	return shader, nil
}

// LinkProgram compiles both stages and links them. The shader objects are
// deleted whether or not linking succeeds.
func LinkProgram(vertexSource, fragmentSource string) (uint32, error) {
	vert, err := CompileShaderFromSource(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)

	frag, err := CompileShaderFromSource(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	program := gl.CreateProgram()
	gl.AttachShader(program, vert)
	gl.AttachShader(program, frag)
	gl.LinkProgram(program)

	if msg, ok := check(program, gl.LINK_STATUS, gl.GetProgramiv, gl.GetProgramInfoLog); !ok {
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link program: %s", msg)
	}
	return program, nil
}

type ivFunc func(obj uint32, pname uint32, params *int32)

type infoLogFunc func(obj uint32, bufSize int32, length *int32, infoLog *uint8)

// check reads a status flag off a shader or program and, when it is false,
// the object's info log.
func check(obj, status uint32, iv ivFunc, infoLog infoLogFunc) (string, bool) {
	var ok int32
	iv(obj, status, &ok)
	if ok != gl.FALSE {
		return "", true
	}
	var n int32
	iv(obj, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no info log", false
	}
	buf := make([]uint8, n+1)
	infoLog(obj, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n "), false
}
