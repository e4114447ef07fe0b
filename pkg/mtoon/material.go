// Package mtoon models VRM MToon materials: the texture channel slots,
// the scalar/vector shading parameters and their defaults.
package mtoon

// AlphaMode is the render/blend mode of a material.
type AlphaMode int

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

func (m AlphaMode) String() string {
	switch m {
	case AlphaMask:
		return "mask"
	case AlphaBlend:
		return "blend"
	}
	return "opaque"
}

// OutlineWidthMode selects how outline width is interpreted.
type OutlineWidthMode string

const (
	OutlineNone              OutlineWidthMode = "none"
	OutlineWorldCoordinates  OutlineWidthMode = "worldCoordinates"
	OutlineScreenCoordinates OutlineWidthMode = "screenCoordinates"
)

// Material is an immutable MToon material descriptor read from the
// source model: one optional texture reference per channel slot plus
// the scalar/vector shading parameters.
type Material struct {
	Name  string
	Index int // position in the source material list

	// MToon is false when the source material lacks the MToon
	// extension; such materials cannot be consolidated.
	MToon bool

	Textures [SlotCount]*Texture

	BaseColorFactor                 [4]float32
	ShadeColorFactor                [3]float32
	ShadingShiftFactor              float32
	ShadingToonyFactor              float32
	GIEqualizationFactor            float32
	MatcapFactor                    [3]float32
	ParametricRimColorFactor        [3]float32
	ParametricRimFresnelPowerFactor float32
	ParametricRimLiftFactor         float32
	RimLightingMixFactor            float32
	NormalScale                     float32
	EmissiveFactor                  [3]float32
	EmissiveStrength                float32
	OutlineWidthFactor              float32
	OutlineColorFactor              [3]float32
	OutlineLightingMixFactor        float32
	UVAnimationScrollXSpeed         float32
	UVAnimationScrollYSpeed         float32
	UVAnimationRotationSpeed        float32

	OutlineWidthMode      OutlineWidthMode
	AlphaMode             AlphaMode
	AlphaCutoff           float32
	DoubleSided           bool
	TransparentWithZWrite bool
}

// NewMaterial returns a material with the documented MToon defaults.
func NewMaterial(name string) *Material {
	return &Material{
		Name:                            name,
		Index:                           -1,
		BaseColorFactor:                 [4]float32{1, 1, 1, 1},
		ShadeColorFactor:                [3]float32{1, 1, 1},
		ShadingToonyFactor:              0.9,
		GIEqualizationFactor:            0.9,
		MatcapFactor:                    [3]float32{1, 1, 1},
		ParametricRimFresnelPowerFactor: 5,
		RimLightingMixFactor:            1,
		NormalScale:                     1,
		EmissiveStrength:                1,
		OutlineLightingMixFactor:        1,
		OutlineWidthMode:                OutlineNone,
		AlphaCutoff:                     0.5,
	}
}

// HasOutline reports whether the material renders an outline pass.
func (m *Material) HasOutline() bool {
	return m.OutlineWidthMode != "" && m.OutlineWidthMode != OutlineNone && m.OutlineWidthFactor > 0
}
