package loader

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Bigfoot71/r3d-sub000/internal/renderer"
)

// GenPlane creates a flat grid on the XZ plane centered at the origin, with
// UVs spanning the full surface once.
func GenPlane(cols, rows int, spacing float32) *renderer.Mesh {
	verts, indices := planeGeometry(cols, rows, spacing)
	return renderer.UploadMesh(verts, indices)
}

func planeGeometry(cols, rows int, spacing float32) ([]renderer.Vertex, []uint32) {
	if cols < 2 {
		cols = 2
	}
	if rows < 2 {
		rows = 2
	}

	halfW := float32(cols-1) * spacing * 0.5
	halfD := float32(rows-1) * spacing * 0.5

	verts := make([]renderer.Vertex, 0, cols*rows)
	for z := 0; z < rows; z++ {
		for x := 0; x < cols; x++ {
			verts = append(verts, renderer.Vertex{
				Position: mgl32.Vec3{float32(x)*spacing - halfW, 0, float32(z)*spacing - halfD},
				TexCoord: mgl32.Vec2{float32(x) / float32(cols-1), float32(z) / float32(rows-1)},
				Normal:   mgl32.Vec3{0, 1, 0},
				Color:    [4]uint8{255, 255, 255, 255},
				Tangent:  mgl32.Vec4{1, 0, 0, 1},
			})
		}
	}

	indices := make([]uint32, 0, (cols-1)*(rows-1)*6)
	for z := 0; z < rows-1; z++ {
		for x := 0; x < cols-1; x++ {
			tl := uint32(z*cols + x)
			tr := tl + 1
			bl := uint32((z+1)*cols + x)
			br := bl + 1
			indices = append(indices, tl, bl, br, tl, br, tr)
		}
	}
	return verts, indices
}

// GenSphere creates a UV sphere of the given radius.
func GenSphere(radius float32, rings, sectors int) *renderer.Mesh {
	verts, indices := sphereGeometry(radius, rings, sectors)
	return renderer.UploadMesh(verts, indices)
}

func sphereGeometry(radius float32, rings, sectors int) ([]renderer.Vertex, []uint32) {
	if rings < 3 {
		rings = 3
	}
	if sectors < 3 {
		sectors = 3
	}

	verts := make([]renderer.Vertex, 0, (rings+1)*(sectors+1))
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		y := float32(math.Cos(phi))
		ringR := float32(math.Sin(phi))

		for s := 0; s <= sectors; s++ {
			theta := 2 * math.Pi * float64(s) / float64(sectors)
			n := mgl32.Vec3{ringR * float32(math.Cos(theta)), y, ringR * float32(math.Sin(theta))}

			// Tangent along the ring direction.
			tx := mgl32.Vec3{-float32(math.Sin(theta)), 0, float32(math.Cos(theta))}

			verts = append(verts, renderer.Vertex{
				Position: n.Mul(radius),
				TexCoord: mgl32.Vec2{float32(s) / float32(sectors), float32(r) / float32(rings)},
				Normal:   n,
				Color:    [4]uint8{255, 255, 255, 255},
				Tangent:  tx.Vec4(1),
			})
		}
	}

	indices := make([]uint32, 0, rings*sectors*6)
	stride := uint32(sectors + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < sectors; s++ {
			a := uint32(r)*stride + uint32(s)
			b := a + stride
			indices = append(indices, a, b, b+1, a, b+1, a+1)
		}
	}
	return verts, indices
}
