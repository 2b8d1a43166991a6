package renderer

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	xdraw "golang.org/x/image/draw"
)

// defaultTextures holds the 1x1 fallbacks bound whenever a material leaves a
// map unset, plus the shared BRDF integration LUT.
type defaultTextures struct {
	white   uint32
	black   uint32
	normal  uint32
	brdfLUT uint32
}

func newDefaultTextures() defaultTextures {
	return defaultTextures{
		white:   newPixelTexture(255, 255, 255, 255),
		black:   newPixelTexture(0, 0, 0, 255),
		normal:  newPixelTexture(128, 128, 255, 255),
		brdfLUT: newBrdfLUT(512),
	}
}

func (d *defaultTextures) unload() {
	for _, tex := range []uint32{d.white, d.black, d.normal, d.brdfLUT} {
		if tex != 0 {
			gl.DeleteTextures(1, &tex)
		}
	}
	*d = defaultTextures{}
}

func newPixelTexture(r, g, b, a uint8) uint32 {
	pixel := []uint8{r, g, b, a}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, 1, 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixel))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	return tex
}

// newBrdfLUT precomputes the split-sum BRDF integration table on the CPU.
// 512x512 RG16F, sampled by the ambient pass with (NdotV, roughness).
func newBrdfLUT(size int) uint32 {
	data := make([]float32, size*size*2)
	for y := 0; y < size; y++ {
		roughness := (float32(y) + 0.5) / float32(size)
		for x := 0; x < size; x++ {
			ndotv := (float32(x) + 0.5) / float32(size)
			a, b := integrateBRDF(ndotv, roughness)
			i := (y*size + x) * 2
			data[i] = a
			data[i+1] = b
		}
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RG16F, int32(size), int32(size), 0, gl.RG, gl.FLOAT, gl.Ptr(data))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return tex
}

func integrateBRDF(ndotv, roughness float32) (float32, float32) {
	v := mgl32.Vec3{sqrt32(1 - ndotv*ndotv), 0, ndotv}
	n := mgl32.Vec3{0, 0, 1}

	const sampleCount = 256
	var a, b float32

	for i := 0; i < sampleCount; i++ {
		xi := hammersley(i, sampleCount)
		h := importanceSampleGGX(xi, n, roughness)
		l := h.Mul(2 * v.Dot(h)).Sub(v)

		ndotl := l.Z()
		if ndotl <= 0 {
			continue
		}
		ndoth := h.Z()
		vdoth := v.Dot(h)

		g := geometrySmithIBL(ndotv, ndotl, roughness)
		gVis := (g * vdoth) / (ndoth * ndotv)
		fc := pow32(1-vdoth, 5)

		a += (1 - fc) * gVis
		b += fc * gVis
	}
	return a / sampleCount, b / sampleCount
}

func hammersley(i, n int) mgl32.Vec2 {
	bits := uint32(i)
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return mgl32.Vec2{float32(i) / float32(n), float32(bits) * 2.3283064365386963e-10}
}

func importanceSampleGGX(xi mgl32.Vec2, n mgl32.Vec3, roughness float32) mgl32.Vec3 {
	a := roughness * roughness

	phi := 2 * pi32 * xi.X()
	cosTheta := sqrt32((1 - xi.Y()) / (1 + (a*a-1)*xi.Y()))
	sinTheta := sqrt32(1 - cosTheta*cosTheta)

	h := mgl32.Vec3{cos32(phi) * sinTheta, sin32(phi) * sinTheta, cosTheta}

	up := mgl32.Vec3{0, 0, 1}
	if abs32(n.Z()) > 0.999 {
		up = mgl32.Vec3{1, 0, 0}
	}
	tangent := up.Cross(n).Normalize()
	bitangent := n.Cross(tangent)

	return tangent.Mul(h.X()).Add(bitangent.Mul(h.Y())).Add(n.Mul(h.Z())).Normalize()
}

func geometrySmithIBL(ndotv, ndotl, roughness float32) float32 {
	k := roughness * roughness / 2
	gv := ndotv / (ndotv*(1-k) + k)
	gn := ndotl / (ndotl*(1-k) + k)
	return gv * gn
}

const pi32 = float32(math.Pi)

func sqrt32(x float32) float32   { return float32(math.Sqrt(float64(x))) }
func sin32(x float32) float32    { return float32(math.Sin(float64(x))) }
func pow32(x, y float32) float32 { return float32(math.Pow(float64(x), float64(y))) }

// LoadTexture decodes an image file into an RGBA GL texture. Non-power-of-two
// images are rescaled so cubemap and IBL source faces mip cleanly.
func LoadTexture(path string, mipmaps bool) (uint32, error) {
	imgFile, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer imgFile.Close()

	img, _, err := image.Decode(imgFile)
	if err != nil {
		return 0, err
	}
	return UploadTexture(img, mipmaps), nil
}

// UploadTexture converts any image to RGBA, rescaling to power-of-two
// dimensions when needed, and uploads it.
func UploadTexture(img image.Image, mipmaps bool) uint32 {
	b := img.Bounds()
	w, h := nextPow2(b.Dx()), nextPow2(b.Dy())

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(rgba, rgba.Bounds(), img, b, xdraw.Src, nil)
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	if mipmaps {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
		gl.GenerateMipmap(gl.TEXTURE_2D)
	} else {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	}
	return tex
}

// LoadCubemap uploads six face images (+X -X +Y -Y +Z -Z) as a cubemap.
// All faces are rescaled to the first face's power-of-two size.
func LoadCubemap(paths [6]string) (uint32, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, tex)

	size := 0
	for i, path := range paths {
		imgFile, err := os.Open(path)
		if err != nil {
			gl.DeleteTextures(1, &tex)
			return 0, err
		}
		img, _, err := image.Decode(imgFile)
		imgFile.Close()
		if err != nil {
			gl.DeleteTextures(1, &tex)
			return 0, err
		}

		b := img.Bounds()
		if size == 0 {
			size = nextPow2(b.Dx())
		}
		rgba := image.NewRGBA(image.Rect(0, 0, size, size))
		if b.Dx() == size && b.Dy() == size {
			xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
		} else {
			xdraw.CatmullRom.Scale(rgba, rgba.Bounds(), img, b, xdraw.Src, nil)
		}

		gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(i), 0, gl.RGBA8,
			int32(size), int32(size), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	}

	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)
	gl.GenerateMipmap(gl.TEXTURE_CUBE_MAP)
	return tex, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
