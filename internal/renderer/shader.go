package renderer

import (
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"
	"github.com/Bigfoot71/r3d-sub000/internal/logger"
)

// shaderProgram bundles a linked GL program with its uniform cache.
type shaderProgram struct {
	name     string
	program  uint32
	uniforms *UniformCache
}

func newShaderProgram(name, vertexSource, fragmentSource string) *shaderProgram {
	vs := genShader(name, vertexSource, gl.VERTEX_SHADER)
	fs := genShader(name, fragmentSource, gl.FRAGMENT_SHADER)
	program := genShaderProgram(name, vs, fs)
	return &shaderProgram{
		name:     name,
		program:  program,
		uniforms: NewUniformCache(program),
	}
}

func (s *shaderProgram) use() {
	gl.UseProgram(s.program)
}

func (s *shaderProgram) unload() {
	if s.program != 0 {
		gl.DeleteProgram(s.program)
		s.program = 0
	}
	s.uniforms.Clear()
}

func genShader(name, source string, shaderType uint32) uint32 {
	shader := gl.CreateShader(shaderType)
	cSources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, cSources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))

		stage := "vertex"
		if shaderType == gl.FRAGMENT_SHADER {
			stage = "fragment"
		}
		logger.Log.Error("Failed to compile shader",
			zap.String("shader", name),
			zap.String("stage", stage),
			zap.String("log", log))
	}
	return shader
}

func genShaderProgram(name string, vertexShader, fragmentShader uint32) uint32 {
	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))

		logger.Log.Error("Failed to link shader program",
			zap.String("shader", name),
			zap.String("log", log))
	}
	gl.DetachShader(program, vertexShader)
	gl.DeleteShader(vertexShader)
	gl.DetachShader(program, fragmentShader)
	gl.DeleteShader(fragmentShader)
	return program
}
