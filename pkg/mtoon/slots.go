package mtoon

// TextureSlot enumerates the MToon texture channel slots.
type TextureSlot int

const (
	SlotBaseColor TextureSlot = iota
	SlotNormal
	SlotEmissive
	SlotShadeMultiply
	SlotShadingShift
	SlotMatcap
	SlotRimMultiply
	SlotOutlineWidthMultiply
	SlotUVAnimationMask

	// SlotCount is the number of texture channel slots.
	SlotCount
)

var slotNames = [SlotCount]string{
	"baseColor",
	"normal",
	"emissive",
	"shadeMultiply",
	"shadingShift",
	"matcap",
	"rimMultiply",
	"outlineWidthMultiply",
	"uvAnimationMask",
}

func (s TextureSlot) String() string {
	if s < 0 || s >= SlotCount {
		return "unknown"
	}
	return slotNames[s]
}

// SRGB reports whether the slot holds perceptual (sRGB) color data.
// Base color, emissive and matcap are perceptual; everything else is
// linear data (normals, masks, multipliers).
func (s TextureSlot) SRGB() bool {
	switch s {
	case SlotBaseColor, SlotEmissive, SlotMatcap:
		return true
	}
	return false
}
