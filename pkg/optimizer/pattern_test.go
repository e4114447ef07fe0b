package optimizer

import (
	"testing"

	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

func TestGroupByTexturePattern(t *testing.T) {
	base := &mtoon.Texture{Name: "base", Width: 256, Height: 128}
	shade := &mtoon.Texture{Name: "shade", Width: 256, Height: 128}

	shared1 := mtoon.NewMaterial("skirt")
	shared1.Textures[mtoon.SlotBaseColor] = base
	shared1.Textures[mtoon.SlotShadeMultiply] = shade

	shared2 := mtoon.NewMaterial("ribbon")
	shared2.Textures[mtoon.SlotBaseColor] = base
	shared2.Textures[mtoon.SlotShadeMultiply] = shade

	// Same slots occupied but a different shade texture.
	other := mtoon.NewMaterial("hair")
	other.Textures[mtoon.SlotBaseColor] = base
	other.Textures[mtoon.SlotShadeMultiply] = &mtoon.Texture{Name: "shade2"}

	groups := GroupByTexturePattern([]*mtoon.Material{shared1, shared2, other})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0].MaterialIndices) != 2 {
		t.Errorf("first group has %d materials, want 2", len(groups[0].MaterialIndices))
	}
	if groups[0].MaterialIndices[0] != 0 || groups[0].MaterialIndices[1] != 1 {
		t.Errorf("first group indices = %v, want [0 1]", groups[0].MaterialIndices)
	}
	if len(groups[1].MaterialIndices) != 1 || groups[1].MaterialIndices[0] != 2 {
		t.Errorf("second group indices = %v, want [2]", groups[1].MaterialIndices)
	}
}

func TestGroupSizeFromBaseColor(t *testing.T) {
	mat := mtoon.NewMaterial("body")
	mat.Textures[mtoon.SlotBaseColor] = &mtoon.Texture{Name: "body", Width: 1024, Height: 512}

	groups := GroupByTexturePattern([]*mtoon.Material{mat})
	if got := groups[0].Size; got.Width != 1024 || got.Height != 512 {
		t.Errorf("group size = %dx%d, want 1024x512", got.Width, got.Height)
	}
}

func TestGroupTexturelessMaterials(t *testing.T) {
	a := mtoon.NewMaterial("a")
	b := mtoon.NewMaterial("b")

	groups := GroupByTexturePattern([]*mtoon.Material{a, b})
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1: materials without textures share the empty pattern", len(groups))
	}
	if groups[0].Size.Width != 0 {
		t.Errorf("textureless group size = %d, want 0 (unknown)", groups[0].Size.Width)
	}
	if groups[0].Uses(mtoon.SlotBaseColor) {
		t.Error("empty pattern should not report any slot as used")
	}
}
