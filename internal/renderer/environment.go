package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// FogMode selects the distance fog falloff.
type FogMode int

const (
	FogDisabled FogMode = iota
	FogLinear
	FogExp
	FogExp2
)

// BloomMode selects how bloom combines with the scene.
type BloomMode int

const (
	BloomDisabled BloomMode = iota
	BloomMix
	BloomAdditive
	BloomScreen
)

// TonemapMode selects the HDR-to-LDR operator.
type TonemapMode int

const (
	TonemapLinear TonemapMode = iota
	TonemapReinhard
	TonemapFilmic
	TonemapACES
)

// Skybox holds the cubemaps for background and image-based lighting.
type Skybox struct {
	Cubemap    uint32
	Irradiance uint32
	Prefilter  uint32
}

// Environment carries every scene-wide rendering parameter: ambient light,
// sky, and the post-processing chain tunables. Feature toggles live here;
// disabled features skip their passes entirely.
type Environment struct {
	// BackgroundColor fills the screen where nothing was drawn and no sky is
	// set; AmbientColor is the constant ambient term without a sky.
	BackgroundColor mgl32.Vec3
	AmbientColor    mgl32.Vec3
	AmbientEnergy   float32

	Sky         *Skybox
	SkyRotation mgl32.Quat
	SkyEnergy   float32

	SSAOEnabled    bool
	SSAORadius     float32
	SSAOBias       float32
	SSAOIterations int
	SSAOPower      float32

	SSILEnabled   bool
	SSILRadius    float32
	SSILIntensity float32

	SSREnabled    bool
	SSRMaxSteps   int
	SSRThickness  float32
	SSRIntensity  float32

	BloomMode         BloomMode
	BloomIntensity    float32
	BloomFilterRadius float32
	BloomLevels       int

	FogMode    FogMode
	FogColor   mgl32.Vec3
	FogStart   float32
	FogEnd     float32
	FogDensity float32

	DOFEnabled       bool
	DOFFocusDistance float32
	DOFFocusRange    float32

	Tonemap  TonemapMode
	Exposure float32
	White    float32

	Brightness float32
	Contrast   float32
	Saturation float32

	FXAAEnabled   bool
	DitherEnabled bool
}

// NewEnvironment returns the defaults: neutral adjustment, everything
// optional disabled, dim grey ambient.
func NewEnvironment() Environment {
	return Environment{
		BackgroundColor: mgl32.Vec3{0.2, 0.2, 0.2},
		AmbientColor:    mgl32.Vec3{0.2, 0.2, 0.2},
		AmbientEnergy:   1.0,

		SkyRotation: mgl32.QuatIdent(),
		SkyEnergy:   1.0,

		SSAORadius:     0.5,
		SSAOBias:       0.025,
		SSAOIterations: 10,
		SSAOPower:      1.0,

		SSILRadius:    1.0,
		SSILIntensity: 1.0,

		SSRMaxSteps:  32,
		SSRThickness: 0.5,
		SSRIntensity: 1.0,

		BloomIntensity:    1.0,
		BloomFilterRadius: 0.005,
		BloomLevels:       10,

		FogColor:   mgl32.Vec3{1, 1, 1},
		FogStart:   1.0,
		FogEnd:     50.0,
		FogDensity: 0.05,

		DOFFocusDistance: 10.0,
		DOFFocusRange:    5.0,

		Exposure: 1.0,
		White:    1.0,

		Brightness: 1.0,
		Contrast:   1.0,
		Saturation: 1.0,
	}
}

// hasSky reports whether a sky cubemap is set.
func (e *Environment) hasSky() bool {
	return e.Sky != nil && e.Sky.Cubemap != 0
}

// tonemapActive reports whether the tonemap pass can be skipped.
func (e *Environment) tonemapActive() bool {
	return e.Tonemap != TonemapLinear || e.Exposure != 1.0 || e.White != 1.0
}

// adjustmentActive reports whether color adjustment changes anything.
func (e *Environment) adjustmentActive() bool {
	return e.Brightness != 1.0 || e.Contrast != 1.0 || e.Saturation != 1.0
}
