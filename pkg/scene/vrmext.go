package scene

import (
	"encoding/json"

	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

// VRM 1.0 extension names.
const (
	ExtVRMCore  = "VRMC_vrm"
	ExtVRMMToon = "VRMC_materials_mtoon"

	// ExtEmissiveStrength is the standard glTF emissive strength extension.
	ExtEmissiveStrength = "KHR_materials_emissive_strength"
)

// textureRef is a glTF textureInfo as it appears inside the MToon
// extension: only the texture index matters here.
type textureRef struct {
	Index *int     `json:"index"`
	Scale *float32 `json:"scale,omitempty"`
}

// mtoonExt mirrors the VRMC_materials_mtoon extension JSON. Pointer
// fields distinguish "absent, use default" from explicit zeros.
type mtoonExt struct {
	SpecVersion           string `json:"specVersion,omitempty"`
	TransparentWithZWrite *bool  `json:"transparentWithZWrite,omitempty"`

	ShadeColorFactor     *[3]float32 `json:"shadeColorFactor,omitempty"`
	ShadeMultiplyTexture *textureRef `json:"shadeMultiplyTexture,omitempty"`
	ShadingShiftFactor   *float32    `json:"shadingShiftFactor,omitempty"`
	ShadingShiftTexture  *textureRef `json:"shadingShiftTexture,omitempty"`
	ShadingToonyFactor   *float32    `json:"shadingToonyFactor,omitempty"`
	GIEqualizationFactor *float32    `json:"giEqualizationFactor,omitempty"`

	MatcapFactor  *[3]float32 `json:"matcapFactor,omitempty"`
	MatcapTexture *textureRef `json:"matcapTexture,omitempty"`

	ParametricRimColorFactor        *[3]float32 `json:"parametricRimColorFactor,omitempty"`
	RimMultiplyTexture              *textureRef `json:"rimMultiplyTexture,omitempty"`
	RimLightingMixFactor            *float32    `json:"rimLightingMixFactor,omitempty"`
	ParametricRimFresnelPowerFactor *float32    `json:"parametricRimFresnelPowerFactor,omitempty"`
	ParametricRimLiftFactor         *float32    `json:"parametricRimLiftFactor,omitempty"`

	OutlineWidthMode            string      `json:"outlineWidthMode,omitempty"`
	OutlineWidthFactor          *float32    `json:"outlineWidthFactor,omitempty"`
	OutlineWidthMultiplyTexture *textureRef `json:"outlineWidthMultiplyTexture,omitempty"`
	OutlineColorFactor          *[3]float32 `json:"outlineColorFactor,omitempty"`
	OutlineLightingMixFactor    *float32    `json:"outlineLightingMixFactor,omitempty"`

	UVAnimationMaskTexture         *textureRef `json:"uvAnimationMaskTexture,omitempty"`
	UVAnimationScrollXSpeedFactor  *float32    `json:"uvAnimationScrollXSpeedFactor,omitempty"`
	UVAnimationScrollYSpeedFactor  *float32    `json:"uvAnimationScrollYSpeedFactor,omitempty"`
	UVAnimationRotationSpeedFactor *float32    `json:"uvAnimationRotationSpeedFactor,omitempty"`
}

// emissiveStrengthExt mirrors KHR_materials_emissive_strength.
type emissiveStrengthExt struct {
	EmissiveStrength *float32 `json:"emissiveStrength,omitempty"`
}

// MToonExtension serializes a material's MToon fields back into
// VRMC_materials_mtoon JSON. texFor maps a channel slot to an output
// texture index, nil when the slot has no texture.
func MToonExtension(mat *mtoon.Material, texFor func(mtoon.TextureSlot) *int) (json.RawMessage, error) {
	ref := func(slot mtoon.TextureSlot) *textureRef {
		idx := texFor(slot)
		if idx == nil {
			return nil
		}
		return &textureRef{Index: idx}
	}
	f := func(v float32) *float32 { return &v }
	v3 := func(v [3]float32) *[3]float32 { return &v }

	ext := mtoonExt{
		SpecVersion:           "1.0",
		TransparentWithZWrite: &mat.TransparentWithZWrite,

		ShadeColorFactor:     v3(mat.ShadeColorFactor),
		ShadeMultiplyTexture: ref(mtoon.SlotShadeMultiply),
		ShadingShiftFactor:   f(mat.ShadingShiftFactor),
		ShadingShiftTexture:  ref(mtoon.SlotShadingShift),
		ShadingToonyFactor:   f(mat.ShadingToonyFactor),
		GIEqualizationFactor: f(mat.GIEqualizationFactor),

		MatcapFactor:  v3(mat.MatcapFactor),
		MatcapTexture: ref(mtoon.SlotMatcap),

		ParametricRimColorFactor:        v3(mat.ParametricRimColorFactor),
		RimMultiplyTexture:              ref(mtoon.SlotRimMultiply),
		RimLightingMixFactor:            f(mat.RimLightingMixFactor),
		ParametricRimFresnelPowerFactor: f(mat.ParametricRimFresnelPowerFactor),
		ParametricRimLiftFactor:         f(mat.ParametricRimLiftFactor),

		OutlineWidthMode:            string(mat.OutlineWidthMode),
		OutlineWidthFactor:          f(mat.OutlineWidthFactor),
		OutlineWidthMultiplyTexture: ref(mtoon.SlotOutlineWidthMultiply),
		OutlineColorFactor:          v3(mat.OutlineColorFactor),
		OutlineLightingMixFactor:    f(mat.OutlineLightingMixFactor),

		UVAnimationMaskTexture:         ref(mtoon.SlotUVAnimationMask),
		UVAnimationScrollXSpeedFactor:  f(mat.UVAnimationScrollXSpeed),
		UVAnimationScrollYSpeedFactor:  f(mat.UVAnimationScrollYSpeed),
		UVAnimationRotationSpeedFactor: f(mat.UVAnimationRotationSpeed),
	}
	return json.Marshal(ext)
}
