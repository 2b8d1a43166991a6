package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Bigfoot71/r3d-sub000/internal/logger"
	"github.com/Bigfoot71/r3d-sub000/internal/renderer"
)

// meshGroup accumulates one material's worth of geometry during parsing.
type meshGroup struct {
	material renderer.Material
	verts    []renderer.Vertex
	indices  []uint32
	lookup   map[string]uint32
}

func newMeshGroup(mat renderer.Material) *meshGroup {
	return &meshGroup{material: mat, lookup: map[string]uint32{}}
}

// LoadOBJ parses a Wavefront OBJ file into a model, one sub-mesh per material
// group. Referenced MTL files contribute albedo color, texture, and opacity.
// recalcNormals forces per-face normal regeneration even when the file
// carries its own.
func LoadOBJ(path string, recalcNormals bool) (*renderer.Model, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open obj: %w", err)
	}
	defer file.Close()

	materials := map[string]renderer.Material{}

	var positions []mgl32.Vec3
	var texCoords []mgl32.Vec2
	var normals []mgl32.Vec3

	current := newMeshGroup(renderer.DefaultMaterial())
	groups := []*meshGroup{current}
	hasNormals := false

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			positions = append(positions, v)

		case "vt":
			v, err := parseVec2(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			texCoords = append(texCoords, v)

		case "vn":
			v, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			normals = append(normals, v)
			hasNormals = true

		case "mtllib":
			mtlPath := filepath.Join(filepath.Dir(path), strings.Join(fields[1:], " "))
			if err := loadMTL(mtlPath, materials); err != nil {
				logger.Log.Warn("Material library skipped",
					zap.String("path", mtlPath), zap.Error(err))
			}

		case "usemtl":
			name := strings.Join(fields[1:], " ")
			mat, ok := materials[name]
			if !ok {
				logger.Log.Warn("Unknown material", zap.String("name", name))
				mat = renderer.DefaultMaterial()
			}
			// Reuse the open group while it is still empty.
			if len(current.indices) > 0 {
				current = newMeshGroup(mat)
				groups = append(groups, current)
			} else {
				current.material = mat
			}

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face with %d vertices", line, len(fields)-1)
			}
			// Triangulate as a fan around the first vertex.
			first, err := resolveVertex(current, fields[1], positions, texCoords, normals)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			prev, err := resolveVertex(current, fields[2], positions, texCoords, normals)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			for _, ref := range fields[3:] {
				next, err := resolveVertex(current, ref, positions, texCoords, normals)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				current.indices = append(current.indices, first, prev, next)
				prev = next
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}

	model := &renderer.Model{}
	for _, g := range groups {
		if len(g.indices) == 0 {
			continue
		}
		if recalcNormals || !hasNormals {
			generateNormals(g.verts, g.indices)
		}
		generateTangents(g.verts, g.indices)

		model.Meshes = append(model.Meshes, renderer.UploadMesh(g.verts, g.indices))
		model.Materials = append(model.Materials, g.material)
	}
	if len(model.Meshes) == 0 {
		return nil, fmt.Errorf("obj %q contains no faces", path)
	}

	model.AABB = model.Meshes[0].AABB
	for _, m := range model.Meshes[1:] {
		model.AABB = model.AABB.Union(m.AABB)
	}

	logger.Log.Info("Model loaded",
		zap.String("path", path),
		zap.Int("meshes", len(model.Meshes)))
	return model, nil
}

func parseVec2(fields []string) (mgl32.Vec2, error) {
	if len(fields) < 2 {
		return mgl32.Vec2{}, fmt.Errorf("expected 2 components, got %d", len(fields))
	}
	var v mgl32.Vec2
	for i := 0; i < 2; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return mgl32.Vec2{}, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

func parseVec3(fields []string) (mgl32.Vec3, error) {
	if len(fields) < 3 {
		return mgl32.Vec3{}, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	var v mgl32.Vec3
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return mgl32.Vec3{}, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

// objIndex resolves a 1-based OBJ index, including the negative relative
// form, to a 0-based slice index.
func objIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = count + i
	} else {
		i--
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("index %s out of range (%d elements)", s, count)
	}
	return i, nil
}

func resolveVertex(g *meshGroup, ref string, positions []mgl32.Vec3, texCoords []mgl32.Vec2, normals []mgl32.Vec3) (uint32, error) {
	if idx, ok := g.lookup[ref]; ok {
		return idx, nil
	}

	parts := strings.Split(ref, "/")
	vert := renderer.Vertex{Color: [4]uint8{255, 255, 255, 255}}

	pi, err := objIndex(parts[0], len(positions))
	if err != nil {
		return 0, err
	}
	vert.Position = positions[pi]

	if len(parts) > 1 && parts[1] != "" {
		ti, err := objIndex(parts[1], len(texCoords))
		if err != nil {
			return 0, err
		}
		vert.TexCoord = texCoords[ti]
	}
	if len(parts) > 2 && parts[2] != "" {
		ni, err := objIndex(parts[2], len(normals))
		if err != nil {
			return 0, err
		}
		vert.Normal = normals[ni]
	}

	idx := uint32(len(g.verts))
	g.verts = append(g.verts, vert)
	g.lookup[ref] = idx
	return idx, nil
}

// loadMTL fills the material table from a Wavefront MTL file. Unsupported
// statements are ignored.
func loadMTL(path string, materials map[string]renderer.Material) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	dir := filepath.Dir(path)
	var name string
	mat := renderer.DefaultMaterial()

	flush := func() {
		if name != "" {
			materials[name] = mat
		}
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "newmtl":
			flush()
			name = strings.Join(fields[1:], " ")
			mat = renderer.DefaultMaterial()

		case "Kd":
			if kd, err := parseVec3(fields[1:]); err == nil {
				a := mat.Albedo.Color.W()
				mat.Albedo.Color = mgl32.Vec4{kd.X(), kd.Y(), kd.Z(), a}
			}

		case "d":
			if d, err := strconv.ParseFloat(fields[1], 32); err == nil {
				mat.Albedo.Color[3] = float32(d)
				if d < 1.0 {
					mat.Transparency = renderer.TransparencyAlpha
				}
			}

		case "Ke":
			if ke, err := parseVec3(fields[1:]); err == nil && ke.Len() > 0 {
				mat.Emission.Color = ke
				mat.Emission.Energy = 1.0
			}

		case "map_Kd":
			texPath := filepath.Join(dir, strings.Join(fields[1:], " "))
			tex, err := renderer.LoadTexture(texPath, true)
			if err != nil {
				logger.Log.Warn("Albedo texture skipped",
					zap.String("path", texPath), zap.Error(err))
				continue
			}
			mat.Albedo.Texture = tex

		case "map_Bump", "bump":
			texPath := filepath.Join(dir, fields[len(fields)-1])
			tex, err := renderer.LoadTexture(texPath, true)
			if err != nil {
				logger.Log.Warn("Normal map skipped",
					zap.String("path", texPath), zap.Error(err))
				continue
			}
			mat.Normal.Texture = tex
		}
	}
	flush()
	return scanner.Err()
}

// generateNormals replaces vertex normals with area-weighted face normals.
func generateNormals(verts []renderer.Vertex, indices []uint32) {
	for i := range verts {
		verts[i].Normal = mgl32.Vec3{}
	}
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		e1 := verts[b].Position.Sub(verts[a].Position)
		e2 := verts[c].Position.Sub(verts[a].Position)
		n := e1.Cross(e2) // length encodes the face area
		verts[a].Normal = verts[a].Normal.Add(n)
		verts[b].Normal = verts[b].Normal.Add(n)
		verts[c].Normal = verts[c].Normal.Add(n)
	}
	for i := range verts {
		if verts[i].Normal.LenSqr() > 0 {
			verts[i].Normal = verts[i].Normal.Normalize()
		} else {
			verts[i].Normal = mgl32.Vec3{0, 1, 0}
		}
	}
}

// generateTangents accumulates per-triangle tangents from the UV gradients
// and orthonormalizes against the normal, storing handedness in w.
func generateTangents(verts []renderer.Vertex, indices []uint32) {
	tan := make([]mgl32.Vec3, len(verts))
	bitan := make([]mgl32.Vec3, len(verts))

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]

		e1 := verts[b].Position.Sub(verts[a].Position)
		e2 := verts[c].Position.Sub(verts[a].Position)
		du1 := verts[b].TexCoord.Sub(verts[a].TexCoord)
		du2 := verts[c].TexCoord.Sub(verts[a].TexCoord)

		det := du1.X()*du2.Y() - du2.X()*du1.Y()
		if det == 0 {
			continue
		}
		r := 1.0 / det

		t := e1.Mul(du2.Y()).Sub(e2.Mul(du1.Y())).Mul(r)
		bt := e2.Mul(du1.X()).Sub(e1.Mul(du2.X())).Mul(r)

		for _, vi := range [3]uint32{a, b, c} {
			tan[vi] = tan[vi].Add(t)
			bitan[vi] = bitan[vi].Add(bt)
		}
	}

	for i := range verts {
		n := verts[i].Normal
		t := tan[i].Sub(n.Mul(n.Dot(tan[i])))
		if t.LenSqr() < 1e-12 {
			// Degenerate UVs: pick any vector orthogonal to the normal.
			ref := mgl32.Vec3{1, 0, 0}
			if abs32f(n.X()) > 0.9 {
				ref = mgl32.Vec3{0, 1, 0}
			}
			t = ref.Sub(n.Mul(n.Dot(ref)))
		}
		t = t.Normalize()

		w := float32(1.0)
		if n.Cross(t).Dot(bitan[i]) < 0 {
			w = -1.0
		}
		verts[i].Tangent = t.Vec4(w)
	}
}

func abs32f(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
