package renderer

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// UniformCache caches uniform locations and last-written values for one
// shader program, skipping both gl.GetUniformLocation and redundant uploads.
// Values are compared against what the program already holds, so callers can
// set uniforms unconditionally each frame.
type UniformCache struct {
	locations map[string]int32

	floats map[int32]float32
	ints   map[int32]int32
	vec2s  map[int32]mgl32.Vec2
	vec3s  map[int32]mgl32.Vec3
	vec4s  map[int32]mgl32.Vec4

	program uint32
}

// NewUniformCache creates a new uniform cache for a shader program.
func NewUniformCache(program uint32) *UniformCache {
	return &UniformCache{
		locations: make(map[string]int32),
		floats:    make(map[int32]float32),
		ints:      make(map[int32]int32),
		vec2s:     make(map[int32]mgl32.Vec2),
		vec3s:     make(map[int32]mgl32.Vec3),
		vec4s:     make(map[int32]mgl32.Vec4),
		program:   program,
	}
}

// GetLocation returns the cached uniform location or fetches and caches it.
// Unknown names cache -1, matching the GL convention for absent uniforms.
func (uc *UniformCache) GetLocation(name string) int32 {
	if loc, exists := uc.locations[name]; exists {
		return loc
	}

	loc := gl.GetUniformLocation(uc.program, gl.Str(name+"\x00"))
	uc.locations[name] = loc
	return loc
}

// SetFloat sets a float uniform when the value changed.
func (uc *UniformCache) SetFloat(name string, value float32) {
	loc := uc.GetLocation(name)
	if loc == -1 {
		return
	}
	if prev, ok := uc.floats[loc]; ok && prev == value {
		return
	}
	gl.Uniform1f(loc, value)
	uc.floats[loc] = value
}

// SetInt sets an int uniform when the value changed.
func (uc *UniformCache) SetInt(name string, value int32) {
	loc := uc.GetLocation(name)
	if loc == -1 {
		return
	}
	if prev, ok := uc.ints[loc]; ok && prev == value {
		return
	}
	gl.Uniform1i(loc, value)
	uc.ints[loc] = value
}

// SetBool sets a bool uniform as 0/1.
func (uc *UniformCache) SetBool(name string, value bool) {
	var v int32
	if value {
		v = 1
	}
	uc.SetInt(name, v)
}

// SetVec2 sets a vec2 uniform when the value changed.
func (uc *UniformCache) SetVec2(name string, v mgl32.Vec2) {
	loc := uc.GetLocation(name)
	if loc == -1 {
		return
	}
	if prev, ok := uc.vec2s[loc]; ok && prev == v {
		return
	}
	gl.Uniform2f(loc, v.X(), v.Y())
	uc.vec2s[loc] = v
}

// SetVec3 sets a vec3 uniform when the value changed.
func (uc *UniformCache) SetVec3(name string, v mgl32.Vec3) {
	loc := uc.GetLocation(name)
	if loc == -1 {
		return
	}
	if prev, ok := uc.vec3s[loc]; ok && prev == v {
		return
	}
	gl.Uniform3f(loc, v.X(), v.Y(), v.Z())
	uc.vec3s[loc] = v
}

// SetVec4 sets a vec4 uniform when the value changed.
func (uc *UniformCache) SetVec4(name string, v mgl32.Vec4) {
	loc := uc.GetLocation(name)
	if loc == -1 {
		return
	}
	if prev, ok := uc.vec4s[loc]; ok && prev == v {
		return
	}
	gl.Uniform4f(loc, v.X(), v.Y(), v.Z(), v.W())
	uc.vec4s[loc] = v
}

// SetMat4 uploads a mat4 uniform. Matrices change nearly every call, so no
// value comparison is worth the copy.
func (uc *UniformCache) SetMat4(name string, m mgl32.Mat4) {
	loc := uc.GetLocation(name)
	if loc != -1 {
		gl.UniformMatrix4fv(loc, 1, false, &m[0])
	}
}

// SetSampler assigns a texture unit to a sampler uniform.
func (uc *UniformCache) SetSampler(name string, unit int32) {
	uc.SetInt(name, unit)
}

// Clear forgets locations and values; call after relinking the program.
func (uc *UniformCache) Clear() {
	uc.locations = make(map[string]int32)
	uc.floats = make(map[int32]float32)
	uc.ints = make(map[int32]int32)
	uc.vec2s = make(map[int32]mgl32.Vec2)
	uc.vec3s = make(map[int32]mgl32.Vec3)
	uc.vec4s = make(map[int32]mgl32.Vec4)
}
