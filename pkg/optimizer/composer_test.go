package optimizer

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

func solidTexture(name string, w, h int, c color.NRGBA) *mtoon.Texture {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return &mtoon.Texture{Name: name, Image: img, Width: w, Height: h, Source: -1}
}

func TestComposeAtlases(t *testing.T) {
	red := solidTexture("red", 64, 64, color.NRGBA{255, 0, 0, 255})
	blue := solidTexture("blue", 64, 64, color.NRGBA{0, 0, 255, 255})

	groups := []*PatternGroup{
		{Pattern: TexturePattern{mtoon.SlotBaseColor: red}, Size: TextureSize{64, 64}},
		{Pattern: TexturePattern{mtoon.SlotBaseColor: blue}, Size: TextureSize{64, 64}},
	}
	placements := []Placement{
		{Offset: math.Vec2{}, Scale: math.Vec2{X: 0.5, Y: 0.5}},
		{Offset: math.Vec2{X: 0.5, Y: 0}, Scale: math.Vec2{X: 0.5, Y: 0.5}},
	}

	set, err := ComposeAtlases(groups, placements, 128, 128)
	if err != nil {
		t.Fatalf("ComposeAtlases: %v", err)
	}
	atlas, ok := set[mtoon.SlotBaseColor]
	if !ok {
		t.Fatal("base color atlas missing")
	}
	if !atlas.SRGB {
		t.Error("base color atlas should be sRGB")
	}
	if got := atlas.Image.NRGBAAt(10, 10); got.R != 255 || got.B != 0 {
		t.Errorf("left cell pixel = %v, want red", got)
	}
	if got := atlas.Image.NRGBAAt(100, 10); got.B != 255 || got.R != 0 {
		t.Errorf("right cell pixel = %v, want blue", got)
	}
	if got := atlas.Image.NRGBAAt(10, 100); got.A != 0 {
		t.Errorf("unplaced area pixel = %v, want transparent", got)
	}

	// No group uses the normal slot, so no atlas is composed for it.
	if _, ok := set[mtoon.SlotNormal]; ok {
		t.Error("normal atlas composed for unused slot")
	}
}

func TestComposeAtlasesDownscale(t *testing.T) {
	red := solidTexture("red", 128, 128, color.NRGBA{255, 0, 0, 255})
	groups := []*PatternGroup{
		{Pattern: TexturePattern{mtoon.SlotBaseColor: red}, Size: TextureSize{128, 128}},
	}
	placements := []Placement{
		{Offset: math.Vec2{}, Scale: math.Vec2{X: 0.25, Y: 0.25}},
	}

	set, err := ComposeAtlases(groups, placements, 128, 128)
	if err != nil {
		t.Fatalf("ComposeAtlases: %v", err)
	}
	atlas := set[mtoon.SlotBaseColor]
	if got := atlas.Image.NRGBAAt(16, 16); got.R != 255 {
		t.Errorf("downscaled pixel = %v, want red", got)
	}
	if got := atlas.Image.NRGBAAt(64, 64); got.A != 0 {
		t.Errorf("outside cell = %v, want transparent", got)
	}
}

func TestComposeAtlasesUndecodedTexture(t *testing.T) {
	groups := []*PatternGroup{
		{Pattern: TexturePattern{mtoon.SlotBaseColor: {Name: "lost", Width: 64, Height: 64}}},
	}
	_, err := ComposeAtlases(groups, []Placement{{Scale: math.Vec2{X: 1, Y: 1}}}, 64, 64)
	if !errors.Is(err, ErrAtlasGeneration) {
		t.Errorf("err = %v, want ErrAtlasGeneration", err)
	}
}

func TestComposeAtlasesLengthMismatch(t *testing.T) {
	_, err := ComposeAtlases([]*PatternGroup{{}}, nil, 64, 64)
	if !errors.Is(err, ErrAtlasGeneration) {
		t.Errorf("err = %v, want ErrAtlasGeneration", err)
	}
}
