package scene

import (
	"encoding/json"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

func TestMToonExtensionRoundTrip(t *testing.T) {
	src := mtoon.NewMaterial("cloth")
	src.ShadeColorFactor = [3]float32{0.25, 0.5, 0.75}
	src.ShadingToonyFactor = 0.6
	src.OutlineWidthMode = mtoon.OutlineWorldCoordinates
	src.OutlineWidthFactor = 0.03
	src.TransparentWithZWrite = true
	src.UVAnimationScrollXSpeed = 0.1

	atlasIdx := 4
	raw, err := MToonExtension(src, func(slot mtoon.TextureSlot) *int {
		if slot == mtoon.SlotShadeMultiply {
			return &atlasIdx
		}
		return nil
	})
	if err != nil {
		t.Fatalf("MToonExtension: %v", err)
	}

	var ext mtoonExt
	if err := json.Unmarshal(raw, &ext); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ext.SpecVersion != "1.0" {
		t.Errorf("specVersion = %q, want 1.0", ext.SpecVersion)
	}
	if ext.ShadeColorFactor == nil || *ext.ShadeColorFactor != src.ShadeColorFactor {
		t.Errorf("shadeColorFactor = %v, want %v", ext.ShadeColorFactor, src.ShadeColorFactor)
	}
	if ext.ShadingToonyFactor == nil || *ext.ShadingToonyFactor != 0.6 {
		t.Errorf("shadingToonyFactor = %v, want 0.6", ext.ShadingToonyFactor)
	}
	if ext.OutlineWidthMode != string(mtoon.OutlineWorldCoordinates) {
		t.Errorf("outlineWidthMode = %q", ext.OutlineWidthMode)
	}
	if ext.TransparentWithZWrite == nil || !*ext.TransparentWithZWrite {
		t.Error("transparentWithZWrite not carried")
	}
	if ext.ShadeMultiplyTexture == nil || ext.ShadeMultiplyTexture.Index == nil || *ext.ShadeMultiplyTexture.Index != 4 {
		t.Errorf("shadeMultiplyTexture = %+v, want index 4", ext.ShadeMultiplyTexture)
	}
	if ext.MatcapTexture != nil {
		t.Error("unused slot serialized a texture reference")
	}
}

func TestMToonExtensionSurvivesLoad(t *testing.T) {
	src := mtoon.NewMaterial("hair")
	src.ShadingShiftFactor = -0.3
	src.ParametricRimLiftFactor = 0.15
	src.OutlineWidthMode = mtoon.OutlineScreenCoordinates
	src.OutlineWidthFactor = 0.01

	raw, err := MToonExtension(src, func(mtoon.TextureSlot) *int { return nil })
	if err != nil {
		t.Fatalf("MToonExtension: %v", err)
	}

	gm := &gltf.Material{
		Name:       "hair",
		Extensions: gltf.Extensions{ExtVRMMToon: raw},
	}
	got := loadMaterial(gm, 0, func(int) *mtoon.Texture { return nil })

	if !got.MToon {
		t.Fatal("reloaded material lost the MToon flag")
	}
	if got.ShadingShiftFactor != -0.3 {
		t.Errorf("shadingShiftFactor = %g, want -0.3", got.ShadingShiftFactor)
	}
	if got.ParametricRimLiftFactor != 0.15 {
		t.Errorf("parametricRimLiftFactor = %g, want 0.15", got.ParametricRimLiftFactor)
	}
	if got.OutlineWidthMode != mtoon.OutlineScreenCoordinates || got.OutlineWidthFactor != 0.01 {
		t.Errorf("outline = %v/%g, want screenCoordinates/0.01", got.OutlineWidthMode, got.OutlineWidthFactor)
	}
}
