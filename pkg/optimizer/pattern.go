// Package optimizer implements the atlas-packing and draw-call
// consolidation pipeline: materials are grouped by texture-usage
// pattern, their textures packed into shared atlases, mesh UVs
// remapped to the new placement, scalar parameters encoded into a
// lookup texture, and all geometry merged into one buffer set per
// render mode.
package optimizer

import (
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

// TexturePattern is, per channel slot, the texture identity a group
// of materials shares. Missing slots are nil; two patterns match iff
// every slot holds the same *Texture pointer (missing == missing).
type TexturePattern [mtoon.SlotCount]*mtoon.Texture

// TextureSize is a texture footprint in pixels. Zero width/height
// marks an unknown size, resolved by the packer.
type TextureSize struct {
	Width  int
	Height int
}

// PatternGroup is the equivalence class of materials sharing one
// texture combination pattern.
type PatternGroup struct {
	Pattern         TexturePattern
	MaterialIndices []int // slots of member materials, in encounter order
	Size            TextureSize
}

// GroupByTexturePattern partitions materials into pattern groups in
// first-seen order. Comparison is identity per slot; slot count is
// fixed, so the linear group scan stays cheap.
func GroupByTexturePattern(materials []*mtoon.Material) []*PatternGroup {
	var groups []*PatternGroup
	for i, m := range materials {
		pattern := TexturePattern(m.Textures)

		var group *PatternGroup
		for _, g := range groups {
			if g.Pattern == pattern {
				group = g
				break
			}
		}
		if group == nil {
			group = &PatternGroup{Pattern: pattern}
			if base := pattern[mtoon.SlotBaseColor]; base.SizeKnown() {
				group.Size = TextureSize{Width: base.Width, Height: base.Height}
			}
			groups = append(groups, group)
		}
		group.MaterialIndices = append(group.MaterialIndices, i)
	}
	return groups
}

// Uses reports whether any material in the group references a texture
// in the given slot.
func (g *PatternGroup) Uses(slot mtoon.TextureSlot) bool {
	return g.Pattern[slot] != nil
}
