package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BlendMode selects the blending equation used in the forward pass. Opaque
// geometry with BlendMix goes through the deferred path instead.
type BlendMode int

const (
	BlendMix BlendMode = iota
	BlendAdditive
	BlendMultiply
	BlendPremultiplied
)

// CullMode selects face culling for a material.
type CullMode int

const (
	CullBack CullMode = iota
	CullNone
	CullFront
)

// TransparencyMode selects how alpha is resolved.
type TransparencyMode int

const (
	// TransparencyDisabled renders fully opaque.
	TransparencyDisabled TransparencyMode = iota
	// TransparencyAlpha blends in the forward pass, back to front.
	TransparencyAlpha
	// TransparencyPrepass runs a depth-only pass first, then shades with an
	// equal-depth test so overlapping layers never double-shade.
	TransparencyPrepass
)

// BillboardMode orients geometry toward the viewer at submission time.
type BillboardMode int

const (
	BillboardDisabled BillboardMode = iota
	// BillboardFront makes the transform face the camera completely.
	BillboardFront
	// BillboardYAxis rotates only around the world Y axis.
	BillboardYAxis
)

// ShadowCastMode controls participation in shadow passes. The Only variants
// render exclusively into shadow maps and are excluded from camera passes.
type ShadowCastMode int

const (
	ShadowCastDisabled ShadowCastMode = iota
	ShadowCastAuto
	ShadowCastDoubleSided
	ShadowCastFrontSide
	ShadowCastBackSide
	ShadowCastOnlyAuto
	ShadowCastOnlyDoubleSided
	ShadowCastOnlyFrontSide
	ShadowCastOnlyBackSide
)

func (m ShadowCastMode) castsShadows() bool { return m != ShadowCastDisabled }
func (m ShadowCastMode) shadowOnly() bool   { return m >= ShadowCastOnlyAuto }

// AlbedoMap is a base color texture modulated by a constant.
type AlbedoMap struct {
	Texture uint32
	Color   mgl32.Vec4
}

// EmissionMap adds self-illumination scaled by Energy.
type EmissionMap struct {
	Texture uint32
	Color   mgl32.Vec3
	Energy  float32
}

// NormalMap perturbs the surface normal; Scale 0 disables the perturbation.
type NormalMap struct {
	Texture uint32
	Scale   float32
}

// ORMMap packs occlusion, roughness, and metalness factors, each multiplied
// with the corresponding texture channel.
type ORMMap struct {
	Texture   uint32
	Occlusion float32
	Roughness float32
	Metalness float32
}

// Material describes how a mesh surface is shaded and which render path it
// takes.
type Material struct {
	// Shader overrides the built-in surface program when nonzero.
	Shader uint32

	Albedo   AlbedoMap
	Emission EmissionMap
	Normal   NormalMap
	ORM      ORMMap

	// AlphaCutoff discards fragments below the threshold before blending.
	AlphaCutoff float32

	Transparency TransparencyMode
	Blend        BlendMode
	Cull         CullMode
	ShadowCast   ShadowCastMode
	Billboard    BillboardMode
}

// DefaultMaterial returns an opaque white PBR material.
func DefaultMaterial() Material {
	return Material{
		Albedo:     AlbedoMap{Color: mgl32.Vec4{1, 1, 1, 1}},
		Emission:   EmissionMap{Color: mgl32.Vec3{1, 1, 1}},
		Normal:     NormalMap{Scale: 1.0},
		ORM:        ORMMap{Occlusion: 1.0, Roughness: 1.0, Metalness: 0.0},
		ShadowCast: ShadowCastAuto,
	}
}

// Decal projects a material onto existing G-buffer geometry inside a unit
// cube volume.
type Decal struct {
	Shader   uint32
	Albedo   AlbedoMap
	Emission EmissionMap
	Normal   NormalMap
	ORM      ORMMap
}
