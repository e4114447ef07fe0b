package mtoon

import "testing"

func TestNewMaterialDefaults(t *testing.T) {
	m := NewMaterial("test")

	if m.ShadingToonyFactor != 0.9 {
		t.Errorf("expected toony 0.9, got %f", m.ShadingToonyFactor)
	}
	if m.ParametricRimFresnelPowerFactor != 5 {
		t.Errorf("expected rim fresnel power 5, got %f", m.ParametricRimFresnelPowerFactor)
	}
	if m.BaseColorFactor != [4]float32{1, 1, 1, 1} {
		t.Errorf("expected white base color, got %v", m.BaseColorFactor)
	}
	if m.AlphaMode != AlphaOpaque {
		t.Errorf("expected opaque alpha mode, got %v", m.AlphaMode)
	}
	if m.HasOutline() {
		t.Error("default material must not have an outline pass")
	}
}

func TestParameterLayoutShape(t *testing.T) {
	if len(ParameterLayout) != 19 {
		t.Fatalf("expected 19 layout entries, got %d", len(ParameterLayout))
	}

	// No two entries may overlap a texel/channel cell, and every
	// entry must stay inside its row.
	seen := map[[2]int]string{}
	for _, f := range ParameterLayout {
		if f.Texel < 0 || f.Texel >= TexelsPerSlot {
			t.Errorf("%s: texel %d out of range", f.Name, f.Texel)
		}
		if f.Channel+f.Count > 4 {
			t.Errorf("%s: channels %d..%d overflow the texel", f.Name, f.Channel, f.Channel+f.Count-1)
		}
		for c := f.Channel; c < f.Channel+f.Count; c++ {
			key := [2]int{f.Texel, c}
			if prev, ok := seen[key]; ok {
				t.Errorf("%s overlaps %s at texel %d channel %d", f.Name, prev, f.Texel, c)
			}
			seen[key] = f.Name
		}
	}
}

func TestTextureSlotColorSpace(t *testing.T) {
	srgb := map[TextureSlot]bool{
		SlotBaseColor: true,
		SlotEmissive:  true,
		SlotMatcap:    true,
	}
	for s := TextureSlot(0); s < SlotCount; s++ {
		if got := s.SRGB(); got != srgb[s] {
			t.Errorf("slot %s: SRGB() = %v, want %v", s, got, srgb[s])
		}
	}
}
