package optimizer

import (
	"errors"
	"image/color"
	"testing"

	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/scene"
)

func avatarModel(t *testing.T) *scene.Model {
	t.Helper()

	bodyTex := solidTexture("body", 64, 64, color.NRGBA{200, 150, 120, 255})
	hairTex := solidTexture("hair", 32, 32, color.NRGBA{80, 40, 20, 255})

	body := mtoon.NewMaterial("body")
	body.Textures[mtoon.SlotBaseColor] = bodyTex
	// Skin shares the body texture: same pattern, one atlas cell.
	skin := mtoon.NewMaterial("skin")
	skin.Textures[mtoon.SlotBaseColor] = bodyTex
	hair := mtoon.NewMaterial("hair")
	hair.Textures[mtoon.SlotBaseColor] = hairTex
	hair.AlphaMode = mtoon.AlphaBlend

	for _, m := range []*mtoon.Material{body, skin, hair} {
		m.MToon = true
	}

	meshes := []*scene.Mesh{
		triangleMesh("body", 0, math.Identity()),
		triangleMesh("skin", 1, math.Identity()),
		triangleMesh("hair", 2, math.Identity()),
	}
	return &scene.Model{
		Name:      "avatar",
		Meshes:    meshes,
		Materials: []*mtoon.Material{body, skin, hair},
		Textures:  []*mtoon.Texture{bodyTex, hairTex},
		Excluded:  map[*scene.Mesh]bool{},
	}
}

func TestRunPipeline(t *testing.T) {
	model := avatarModel(t)
	res, err := Run(model, Options{AtlasWidth: 128, AtlasHeight: 128})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Groups) != 2 {
		t.Errorf("got %d pattern groups, want 2 (body and skin share)", len(res.Groups))
	}
	if res.Scale != 1 {
		t.Errorf("scale = %g, want 1 for small textures", res.Scale)
	}
	if _, ok := res.Atlases[mtoon.SlotBaseColor]; !ok {
		t.Error("base color atlas missing")
	}
	if res.Parameters == nil || res.Parameters.SlotCount != 3 {
		t.Fatalf("parameter texture rows = %v, want 3", res.Parameters)
	}

	// One merged group per render mode in use: opaque, blend.
	if len(res.Merged) != 2 {
		t.Fatalf("got %d merged groups, want 2", len(res.Merged))
	}
	if res.Merged[0].Mode != mtoon.AlphaOpaque || res.Merged[1].Mode != mtoon.AlphaBlend {
		t.Errorf("modes = %v, %v, want opaque then blend", res.Merged[0].Mode, res.Merged[1].Mode)
	}
	if got := res.Merged[0].Geometry.VertexCount(); got != 6 {
		t.Errorf("opaque group vertices = %d, want 6", got)
	}

	if len(res.Materials) != len(res.Merged) {
		t.Fatalf("got %d materials for %d groups", len(res.Materials), len(res.Merged))
	}
	for i, im := range res.Materials {
		if im.Mode != res.Merged[i].Mode {
			t.Errorf("material %d mode %v does not match group mode %v", i, im.Mode, res.Merged[i].Mode)
		}
		if im.SlotAttribute != "_MATERIAL_SLOT" {
			t.Errorf("material %d slot attribute = %q", i, im.SlotAttribute)
		}
	}

	// UVs were remapped into the materials' atlas cells.
	uv := res.Merged[0].Geometry.Attributes[scene.AttrUV]
	for i := 0; i < uv.Count(); i++ {
		x, y := uv.Data[i*2], uv.Data[i*2+1]
		if x < 0 || x > 1 || y < 0 || y > 1 {
			t.Errorf("uv %d = (%g,%g), want inside [0,1]", i, x, y)
		}
	}
}

func TestRunNoMaterials(t *testing.T) {
	model := &scene.Model{Name: "empty", Excluded: map[*scene.Mesh]bool{}}
	_, err := Run(model, Options{})
	if !errors.Is(err, ErrNoMaterials) {
		t.Errorf("err = %v, want ErrNoMaterials", err)
	}
}

func TestRunRejectsNonMToon(t *testing.T) {
	pbr := mtoon.NewMaterial("pbr")
	pbr.MToon = false
	model := testModel(
		[]*scene.Mesh{triangleMesh("m", 0, math.Identity())},
		[]*mtoon.Material{pbr},
	)
	_, err := Run(model, Options{})
	if !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("err = %v, want ErrInvalidMaterial", err)
	}
}

func TestRunRejectsMissingMaterial(t *testing.T) {
	model := testModel(
		[]*scene.Mesh{triangleMesh("m", 5, math.Identity())},
		[]*mtoon.Material{mtoon.NewMaterial("only")},
	)
	_, err := Run(model, Options{})
	if !errors.Is(err, ErrInvalidMaterial) {
		t.Errorf("err = %v, want ErrInvalidMaterial", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	d := DefaultOptions()
	if opts != d {
		t.Errorf("got %+v, want %+v", opts, d)
	}

	custom := Options{AtlasWidth: 512}.withDefaults()
	if custom.AtlasWidth != 512 || custom.AtlasHeight != d.AtlasHeight {
		t.Errorf("partial options not merged: %+v", custom)
	}
}
