package renderer

import (
	"math/rand"

	"github.com/aquilax/go-perlin"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	ssaoNoiseSize  = 4
	ssaoKernelSize = 32
	ssaoNoiseSeed  = 1337
)

// newSSAONoiseTexture builds the small tiled rotation texture the SSAO and
// SSIL passes use to decorrelate their sample kernels. Gradient noise keeps
// neighbouring rotations coherent, which blurs out cleaner than white noise.
func newSSAONoiseTexture() uint32 {
	p := perlin.NewPerlin(2, 2, 3, ssaoNoiseSeed)

	data := make([]float32, ssaoNoiseSize*ssaoNoiseSize*3)
	for y := 0; y < ssaoNoiseSize; y++ {
		for x := 0; x < ssaoNoiseSize; x++ {
			i := (y*ssaoNoiseSize + x) * 3
			nx := float64(x) / ssaoNoiseSize
			ny := float64(y) / ssaoNoiseSize
			data[i] = float32(p.Noise2D(nx*7.13, ny*7.13))*0.5 + 0.5
			data[i+1] = float32(p.Noise2D(nx*7.13+11.71, ny*7.13+5.23))*0.5 + 0.5
			data[i+2] = 0
		}
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGB16F, ssaoNoiseSize, ssaoNoiseSize, 0, gl.RGB, gl.FLOAT, gl.Ptr(data))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	return tex
}

// newSSAOKernel generates hemisphere sample points, denser near the origin.
func newSSAOKernel() [ssaoKernelSize]mgl32.Vec3 {
	rng := rand.New(rand.NewSource(ssaoNoiseSeed))

	var kernel [ssaoKernelSize]mgl32.Vec3
	for i := range kernel {
		v := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32(),
		}.Normalize().Mul(rng.Float32())

		// Bias samples toward the center of the hemisphere.
		scale := float32(i) / ssaoKernelSize
		scale = 0.1 + scale*scale*0.9
		kernel[i] = v.Mul(scale)
	}
	return kernel
}
