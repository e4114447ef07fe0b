package optimizer

import (
	"errors"
	"testing"

	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
)

func TestPackAtlasFitsUnscaled(t *testing.T) {
	sizes := []TextureSize{
		{Width: 512, Height: 512},
		{Width: 512, Height: 512},
		{Width: 1024, Height: 1024},
	}
	placements, scale, err := PackAtlas(sizes, 2048, 2048)
	if err != nil {
		t.Fatalf("PackAtlas: %v", err)
	}
	if scale != 1 {
		t.Errorf("scale = %g, want exactly 1 when everything fits", scale)
	}
	if len(placements) != len(sizes) {
		t.Fatalf("got %d placements, want %d", len(placements), len(sizes))
	}
	assertPlacementsValid(t, placements, sizes, 2048, 2048, 1)
}

func TestPackAtlasDownscales(t *testing.T) {
	// Three full-size textures cannot share one atlas unscaled.
	sizes := []TextureSize{
		{Width: 2048, Height: 2048},
		{Width: 2048, Height: 2048},
		{Width: 2048, Height: 2048},
	}
	placements, scale, err := PackAtlas(sizes, 2048, 2048)
	if err != nil {
		t.Fatalf("PackAtlas: %v", err)
	}
	if scale >= 1 {
		t.Errorf("scale = %g, want < 1", scale)
	}
	if scale <= 0 {
		t.Errorf("scale = %g, want > 0", scale)
	}
	for i, p := range placements {
		x, y, w, h := p.PixelRect(2048, 2048)
		if w < 1 || h < 1 {
			t.Errorf("placement %d degenerate: %dx%d", i, w, h)
		}
		if x < 0 || y < 0 || x+w > 2048 || y+h > 2048 {
			t.Errorf("placement %d out of bounds: (%d,%d) %dx%d", i, x, y, w, h)
		}
	}
	assertNoOverlap(t, placements, 2048, 2048)
}

func TestPackAtlasUniformScale(t *testing.T) {
	sizes := []TextureSize{
		{Width: 2048, Height: 2048},
		{Width: 1024, Height: 1024},
		{Width: 2048, Height: 2048},
	}
	placements, scale, err := PackAtlas(sizes, 2048, 2048)
	if err != nil {
		t.Fatalf("PackAtlas: %v", err)
	}
	// Every texture shrinks by the same factor, so the placed pixel
	// ratio between the large and small entries stays 2:1.
	_, _, w0, _ := placements[0].PixelRect(2048, 2048)
	_, _, w1, _ := placements[1].PixelRect(2048, 2048)
	if w0 != 2*w1 {
		t.Errorf("placed widths %d and %d, want uniform scale %g to preserve the 2:1 ratio", w0, w1, scale)
	}
}

func TestPackAtlasEmpty(t *testing.T) {
	placements, scale, err := PackAtlas(nil, 2048, 2048)
	if err != nil {
		t.Fatalf("PackAtlas: %v", err)
	}
	if len(placements) != 0 || scale != 1 {
		t.Errorf("got %d placements scale %g, want none at scale 1", len(placements), scale)
	}
}

func TestPackAtlasInvalidSize(t *testing.T) {
	_, _, err := PackAtlas([]TextureSize{{Width: 64, Height: 64}}, 0, 2048)
	if !errors.Is(err, ErrPackingFailed) {
		t.Errorf("err = %v, want ErrPackingFailed", err)
	}
}

func TestResolveSizesUnknown(t *testing.T) {
	sizes := []TextureSize{
		{Width: 1024, Height: 512},
		{}, // unknown
		{Width: 512, Height: 512},
	}
	resolved := resolveSizes(sizes)
	if resolved[0] != sizes[0] || resolved[2] != sizes[2] {
		t.Error("known sizes must pass through untouched")
	}
	// Averages are 768x512; 768 is the midpoint of 512 and 1024 and
	// ties round up.
	if resolved[1].Width != 1024 || resolved[1].Height != 512 {
		t.Errorf("unknown resolved to %dx%d, want 1024x512", resolved[1].Width, resolved[1].Height)
	}
}

func TestResolveSizesAllUnknown(t *testing.T) {
	resolved := resolveSizes([]TextureSize{{}, {}})
	for i, s := range resolved {
		if s.Width != fallbackTextureSize || s.Height != fallbackTextureSize {
			t.Errorf("size %d = %dx%d, want %dx%d fallback", i, s.Width, s.Height, fallbackTextureSize, fallbackTextureSize)
		}
	}
}

func TestNearestPow2(t *testing.T) {
	cases := []struct {
		in   float32
		want int
	}{
		{1, 1},
		{3, 4},   // midpoint of 2 and 4, ties up
		{5, 4},   // closer to 4
		{7, 8},   // closer to 8
		{512, 512},
		{700, 512},
		{768, 1024}, // midpoint, ties up
	}
	for _, c := range cases {
		if got := nearestPow2(c.in); got != c.want {
			t.Errorf("nearestPow2(%g) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestPlacementMapsCorners(t *testing.T) {
	p := Placement{
		Offset: math.Vec2{X: 0.25, Y: 0.25},
		Scale:  math.Vec2{X: 0.5, Y: 0.5},
	}
	x, y, w, h := p.PixelRect(1024, 1024)
	if x != 256 || y != 256 || w != 512 || h != 512 {
		t.Errorf("pixel rect (%d,%d) %dx%d, want (256,256) 512x512", x, y, w, h)
	}
}

func assertPlacementsValid(t *testing.T, placements []Placement, sizes []TextureSize, atlasW, atlasH int, scale float32) {
	t.Helper()
	for i, p := range placements {
		x, y, w, h := p.PixelRect(atlasW, atlasH)
		wantW := scaledDim(sizes[i].Width, scale)
		wantH := scaledDim(sizes[i].Height, scale)
		if w != wantW || h != wantH {
			t.Errorf("placement %d is %dx%d, want %dx%d", i, w, h, wantW, wantH)
		}
		if x < 0 || y < 0 || x+w > atlasW || y+h > atlasH {
			t.Errorf("placement %d out of bounds: (%d,%d) %dx%d", i, x, y, w, h)
		}
	}
	assertNoOverlap(t, placements, atlasW, atlasH)
}

func assertNoOverlap(t *testing.T, placements []Placement, atlasW, atlasH int) {
	t.Helper()
	rects := make([]rectangle, len(placements))
	for i, p := range placements {
		x, y, w, h := p.PixelRect(atlasW, atlasH)
		rects[i] = rectangle{x, y, w, h}
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if rects[i].intersects(rects[j]) {
				t.Errorf("placements %d and %d overlap: %+v %+v", i, j, rects[i], rects[j])
			}
		}
	}
}
