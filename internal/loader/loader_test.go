package loader

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Bigfoot71/r3d-sub000/internal/renderer"
)

func TestObjIndex(t *testing.T) {
	cases := []struct {
		in    string
		count int
		want  int
		err   bool
	}{
		{"1", 5, 0, false},
		{"5", 5, 4, false},
		{"-1", 5, 4, false},
		{"-5", 5, 0, false},
		{"0", 5, 0, true},
		{"6", 5, 0, true},
		{"-6", 5, 0, true},
		{"x", 5, 0, true},
	}
	for _, c := range cases {
		got, err := objIndex(c.in, c.count)
		if c.err {
			if err == nil {
				t.Errorf("objIndex(%q, %d): expected error", c.in, c.count)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("objIndex(%q, %d) = %d, %v; want %d", c.in, c.count, got, err, c.want)
		}
	}
}

func TestResolveVertexDedup(t *testing.T) {
	positions := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	texCoords := []mgl32.Vec2{{0, 0}, {1, 1}}
	normals := []mgl32.Vec3{{0, 0, 1}}

	g := newMeshGroup(renderer.DefaultMaterial())

	a, err := resolveVertex(g, "1/1/1", positions, texCoords, normals)
	if err != nil {
		t.Fatal(err)
	}
	b, err := resolveVertex(g, "2/2/1", positions, texCoords, normals)
	if err != nil {
		t.Fatal(err)
	}
	again, err := resolveVertex(g, "1/1/1", positions, texCoords, normals)
	if err != nil {
		t.Fatal(err)
	}

	if a == b {
		t.Fatal("distinct references must produce distinct vertices")
	}
	if again != a {
		t.Fatalf("repeated reference must reuse vertex %d, got %d", a, again)
	}
	if len(g.verts) != 2 {
		t.Fatalf("vertex count = %d, want 2", len(g.verts))
	}

	// Position-only references and missing components are accepted.
	c, err := resolveVertex(g, "3", positions, texCoords, normals)
	if err != nil {
		t.Fatal(err)
	}
	if g.verts[c].Position != (mgl32.Vec3{0, 1, 0}) {
		t.Fatalf("position-only vertex = %+v", g.verts[c])
	}

	if _, err := resolveVertex(g, "9/1/1", positions, texCoords, normals); err == nil {
		t.Fatal("out-of-range position index must fail")
	}
}

func TestGenerateNormals(t *testing.T) {
	// One CCW triangle in the XY plane: the face normal is +Z.
	verts := []renderer.Vertex{
		{Position: mgl32.Vec3{0, 0, 0}},
		{Position: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{0, 1, 0}},
	}
	indices := []uint32{0, 1, 2}

	generateNormals(verts, indices)
	for i, v := range verts {
		if v.Normal.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-5 {
			t.Fatalf("vertex %d normal = %v, want +Z", i, v.Normal)
		}
	}
}

func TestGenerateTangents(t *testing.T) {
	// Quad with UVs aligned to world axes: tangent must follow +X.
	verts := []renderer.Vertex{
		{Position: mgl32.Vec3{0, 0, 0}, TexCoord: mgl32.Vec2{0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{1, 1, 0}, TexCoord: mgl32.Vec2{1, 1}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 1}, Normal: mgl32.Vec3{0, 0, 1}},
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}

	generateTangents(verts, indices)
	for i, v := range verts {
		tangent := v.Tangent.Vec3()
		if tangent.Sub(mgl32.Vec3{1, 0, 0}).Len() > 1e-4 {
			t.Fatalf("vertex %d tangent = %v, want +X", i, tangent)
		}
		if v.Tangent.W() != 1 {
			t.Fatalf("vertex %d handedness = %v, want 1", i, v.Tangent.W())
		}
		// Orthogonal to the normal by construction.
		if abs32f(tangent.Dot(v.Normal)) > 1e-5 {
			t.Fatalf("vertex %d tangent not orthogonal to normal", i)
		}
	}

	// Degenerate UVs still produce a usable orthonormal tangent.
	degen := []renderer.Vertex{
		{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		{Position: mgl32.Vec3{0, 1, 0}, Normal: mgl32.Vec3{0, 0, 1}},
	}
	generateTangents(degen, []uint32{0, 1, 2})
	for i, v := range degen {
		tangent := v.Tangent.Vec3()
		if d := tangent.Len(); abs32f(d-1) > 1e-5 {
			t.Fatalf("vertex %d tangent not unit length: %v", i, d)
		}
	}
}

func TestPlaneGeometry(t *testing.T) {
	verts, indices := planeGeometry(3, 2, 2.0)

	if len(verts) != 6 {
		t.Fatalf("vertex count = %d, want 6", len(verts))
	}
	if len(indices) != 2*1*6 {
		t.Fatalf("index count = %d, want 12", len(indices))
	}

	// Centered on the origin.
	var center mgl32.Vec3
	for _, v := range verts {
		center = center.Add(v.Position)
	}
	if center.Mul(1 / float32(len(verts))).Len() > 1e-5 {
		t.Fatalf("plane not centered: %v", center)
	}

	for i, v := range verts {
		if v.Normal != (mgl32.Vec3{0, 1, 0}) {
			t.Fatalf("vertex %d normal = %v", i, v.Normal)
		}
	}

	// Degenerate sizes are clamped, never panic.
	verts, _ = planeGeometry(0, -3, 1)
	if len(verts) != 4 {
		t.Fatalf("clamped plane vertex count = %d, want 4", len(verts))
	}
}

func TestSphereGeometry(t *testing.T) {
	const radius = 2.5
	verts, indices := sphereGeometry(radius, 8, 12)

	if len(indices)%3 != 0 {
		t.Fatalf("index count %d not a multiple of 3", len(indices))
	}
	for i, v := range verts {
		if d := v.Position.Len(); abs32f(d-radius) > 1e-4 {
			t.Fatalf("vertex %d at distance %v, want %v", i, d, radius)
		}
		// Normals point radially outward.
		if v.Normal.Sub(v.Position.Mul(1 / radius)).Len() > 1e-4 {
			t.Fatalf("vertex %d normal %v not radial", i, v.Normal)
		}
	}
	for _, idx := range indices {
		if int(idx) >= len(verts) {
			t.Fatalf("index %d out of range (%d verts)", idx, len(verts))
		}
	}
}
