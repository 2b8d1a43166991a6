package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func planStages(plan []passStage) map[passStage]int {
	m := make(map[passStage]int, len(plan))
	for i, s := range plan {
		m[s] = i
	}
	return m
}

func TestFramePlanMinimal(t *testing.T) {
	env := NewEnvironment()
	plan := framePlan(&env, 0)
	got := planStages(plan)

	// Everything optional is off by default; the core chain still runs.
	for _, s := range []passStage{stageShadow, stageGeometry, stageAmbient, stageCompose, stageForward, stageTonemap, stagePresent} {
		if _, ok := got[s]; !ok {
			t.Fatalf("core stage %d missing from minimal plan %v", s, plan)
		}
	}
	for _, s := range []passStage{stageSSAO, stageSSIL, stageSSR, stageDeferredLights, stageSky, stageFog, stageDOF, stageBloom, stageFXAA} {
		if _, ok := got[s]; ok {
			t.Fatalf("optional stage %d present in minimal plan %v", s, plan)
		}
	}
}

func TestFramePlanNoLightsKeepsAmbient(t *testing.T) {
	env := NewEnvironment()
	got := planStages(framePlan(&env, 0))

	if _, ok := got[stageDeferredLights]; ok {
		t.Fatal("no visible lights must skip per-light accumulation")
	}
	if _, ok := got[stageAmbient]; !ok {
		t.Fatal("ambient must run even without lights")
	}
	if _, ok := got[stageCompose]; !ok {
		t.Fatal("compose must run even without lights")
	}
}

func TestFramePlanFullPipeline(t *testing.T) {
	env := NewEnvironment()
	env.SSAOEnabled = true
	env.SSILEnabled = true
	env.SSREnabled = true
	env.Sky = &Skybox{Cubemap: 1}
	env.FogMode = FogExp
	env.DOFEnabled = true
	env.BloomMode = BloomAdditive
	env.FXAAEnabled = true

	plan := framePlan(&env, 3)
	got := planStages(plan)

	if len(got) != len(plan) {
		t.Fatalf("duplicate stages in plan %v", plan)
	}

	// The pipeline order is fixed; every enabled stage slots into it.
	order := []passStage{
		stageShadow, stageGeometry, stageSSAO, stageSSIL, stageSSR,
		stageDeferredLights, stageAmbient, stageCompose, stageSky, stageForward,
		stageFog, stageDOF, stageBloom, stageTonemap, stageFXAA, stagePresent,
	}
	if len(plan) != len(order) {
		t.Fatalf("plan length = %d, want %d: %v", len(plan), len(order), plan)
	}
	for i, s := range order {
		if plan[i] != s {
			t.Fatalf("stage %d = %d, want %d", i, plan[i], s)
		}
	}
}

func TestFramePlanTonemapAlwaysRuns(t *testing.T) {
	env := NewEnvironment()
	env.Tonemap = TonemapLinear
	env.Exposure = 1.0

	got := planStages(framePlan(&env, 0))
	ti, ok := got[stageTonemap]
	if !ok {
		t.Fatal("tonemap stage must always be present")
	}
	if pi := got[stagePresent]; pi < ti {
		t.Fatal("present must come after tonemap")
	}
}

func TestLetterbox(t *testing.T) {
	// Same aspect: exact fit.
	x, y, w, h := letterbox(1280, 720, 1280, 720)
	if x != 0 || y != 0 || w != 1280 || h != 720 {
		t.Fatalf("identity fit = %d,%d %dx%d", x, y, w, h)
	}

	// Wider window: pillarbox, vertically filled.
	x, y, w, h = letterbox(800, 600, 1600, 600)
	if h != 600 || y != 0 {
		t.Fatalf("pillarbox must fill height, got %d,%d %dx%d", x, y, w, h)
	}
	if w != 800 || x != 400 {
		t.Fatalf("pillarbox = %d,%d %dx%d", x, y, w, h)
	}

	// Taller window: letterbox, horizontally filled.
	x, y, w, h = letterbox(800, 600, 800, 1200)
	if w != 800 || x != 0 {
		t.Fatalf("letterbox must fill width, got %d,%d %dx%d", x, y, w, h)
	}
	if h != 600 || y != 300 {
		t.Fatalf("letterbox = %d,%d %dx%d", x, y, w, h)
	}

	// The scaled rectangle never exceeds the window.
	for _, c := range [][4]int{{1920, 1080, 333, 777}, {640, 480, 3000, 100}} {
		x, y, w, h = letterbox(c[0], c[1], c[2], c[3])
		if x < 0 || y < 0 || x+w > c[2] || y+h > c[3] {
			t.Fatalf("rect %d,%d %dx%d escapes window %dx%d", x, y, w, h, c[2], c[3])
		}
	}
}

func TestApplyBillboardFront(t *testing.T) {
	// View from +Z looking at the origin: invView rotates identity.
	cam := NewDefaultCamera()
	cam.Position = mgl32.Vec3{0, 0, 10}
	cam.Target = mgl32.Vec3{0, 0, 0}
	view := cam.ViewMatrix()

	r := &Renderer{invView: view.Inv(), viewPos: cam.Position}

	base := mgl32.Translate3D(3, 4, 5).Mul4(mgl32.Scale3D(2, 2, 2))
	out := r.applyBillboard(base, BillboardFront)

	// Translation and scale survive.
	if got := (mgl32.Vec3{out[12], out[13], out[14]}); got != (mgl32.Vec3{3, 4, 5}) {
		t.Fatalf("translation lost: %v", got)
	}
	if s := (mgl32.Vec3{out[0], out[1], out[2]}).Len(); abs32(s-2) > 1e-5 {
		t.Fatalf("scale lost: %v", s)
	}

	// The local Z axis points back toward the camera plane.
	z := mgl32.Vec3{out[8], out[9], out[10]}.Normalize()
	if z.Dot(mgl32.Vec3{0, 0, 1}) < 0.99 {
		t.Fatalf("front billboard not facing the camera: %v", z)
	}
}

func TestApplyBillboardYAxis(t *testing.T) {
	r := &Renderer{viewPos: mgl32.Vec3{10, 7, 0}}

	base := mgl32.Translate3D(0, 0, 0)
	out := r.applyBillboard(base, BillboardYAxis)

	// Y axis stays the world up vector.
	yAxis := mgl32.Vec3{out[4], out[5], out[6]}
	if yAxis.Sub(mgl32.Vec3{0, 1, 0}).Len() > 1e-5 {
		t.Fatalf("Y-axis billboard tilted: %v", yAxis)
	}

	// The local Z axis points at the camera, flattened to the ground plane.
	z := mgl32.Vec3{out[8], out[9], out[10]}.Normalize()
	want := mgl32.Vec3{1, 0, 0}
	if z.Dot(want) < 0.99 {
		t.Fatalf("Y-axis billboard facing %v, want %v", z, want)
	}

	// Camera directly above: direction degenerates, transform unchanged.
	r.viewPos = mgl32.Vec3{0, 50, 0}
	if got := r.applyBillboard(base, BillboardYAxis); got != base {
		t.Fatal("degenerate overhead view must leave the transform untouched")
	}
}

func TestApplyBillboardDisabled(t *testing.T) {
	r := &Renderer{}
	m := mgl32.HomogRotate3DY(1.3).Mul4(mgl32.Translate3D(1, 2, 3))
	if got := r.applyBillboard(m, BillboardDisabled); got != m {
		t.Fatal("disabled billboard must be a pass-through")
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	env := NewEnvironment()

	if env.hasSky() {
		t.Fatal("default environment must not report a sky")
	}
	env.Sky = &Skybox{}
	if env.hasSky() {
		t.Fatal("sky without a cubemap must not count")
	}
	env.Sky.Cubemap = 7
	if !env.hasSky() {
		t.Fatal("sky with a cubemap must count")
	}

	if env.SSAOEnabled || env.SSILEnabled || env.SSREnabled || env.DOFEnabled || env.FXAAEnabled {
		t.Fatal("optional effects must default to off")
	}
	if env.BloomMode != BloomDisabled || env.FogMode != FogDisabled {
		t.Fatal("bloom and fog must default to disabled")
	}
	if env.adjustmentActive() {
		t.Fatal("default color adjustment must be neutral")
	}
}
