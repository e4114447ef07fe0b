package optimizer

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
)

const (
	// fallbackTextureSize is assumed when no group has a known size.
	fallbackTextureSize = 512

	maxExponentialSteps = 32
	maxBinarySteps      = 25
	scaleTolerance      = 1e-4
)

// Placement is the affine map from a source texture's wrapped UV
// space into its atlas sub-rectangle: newUV = Offset + Scale*frac(uv).
// Offset and Scale are in atlas-normalized [0,1] space and apply
// identically to every channel slot's atlas.
type Placement struct {
	Offset math.Vec2
	Scale  math.Vec2
}

// PixelRect returns the placement's pixel rectangle in an atlas of
// the given size.
func (p Placement) PixelRect(atlasWidth, atlasHeight int) (x, y, w, h int) {
	x = int(math32.Round(p.Offset.X * float32(atlasWidth)))
	y = int(math32.Round(p.Offset.Y * float32(atlasHeight)))
	w = int(math32.Round(p.Scale.X * float32(atlasWidth)))
	h = int(math32.Round(p.Scale.Y * float32(atlasHeight)))
	return
}

// PackAtlas bin-packs one texture footprint per pattern group into a
// single fixed-size atlas. When the footprints do not fit at scale 1,
// all of them are uniformly scaled down: an exponential search finds
// any fitting scale, then a bounded binary search recovers precision.
// The returned scale is 1 exactly when unscaled packing succeeds.
func PackAtlas(sizes []TextureSize, atlasWidth, atlasHeight int) ([]Placement, float32, error) {
	if atlasWidth <= 0 || atlasHeight <= 0 {
		return nil, 0, fmt.Errorf("%w: non-positive atlas size %dx%d", ErrPackingFailed, atlasWidth, atlasHeight)
	}
	if len(sizes) == 0 {
		return nil, 1, nil
	}
	resolved := resolveSizes(sizes)

	if placements, ok := tryPack(resolved, atlasWidth, atlasHeight, 1); ok {
		return placements, 1, nil
	}

	// The floor keeps the largest texture at 1x1 or above, so the
	// search cannot underflow.
	maxDim := 1
	for _, s := range resolved {
		if s.Width > maxDim {
			maxDim = s.Width
		}
		if s.Height > maxDim {
			maxDim = s.Height
		}
	}
	floor := 1 / float32(maxDim)

	fail := float32(1)
	ok := float32(0)
	var okPlacements []Placement
	scale := float32(1)
	for step := 0; step < maxExponentialSteps; step++ {
		scale *= 0.5
		if scale < floor {
			scale = floor
		}
		if placements, fits := tryPack(resolved, atlasWidth, atlasHeight, scale); fits {
			ok = scale
			okPlacements = placements
			break
		}
		fail = scale
		if scale == floor {
			return nil, 0, fmt.Errorf("%w: %d textures cannot fit %dx%d even at scale %g",
				ErrPackingFailed, len(sizes), atlasWidth, atlasHeight, floor)
		}
	}
	if okPlacements == nil {
		return nil, 0, fmt.Errorf("%w: scale search exhausted", ErrPackingFailed)
	}

	// Binary search between the last failing and succeeding scales.
	for step := 0; step < maxBinarySteps && fail-ok > scaleTolerance; step++ {
		mid := (fail + ok) / 2
		if placements, fits := tryPack(resolved, atlasWidth, atlasHeight, mid); fits {
			ok = mid
			okPlacements = placements
		} else {
			fail = mid
		}
	}

	logger.Debug("atlas packed with downscale", zap.Float32("scale", ok))
	return okPlacements, ok, nil
}

// resolveSizes replaces unknown (zero) footprints with the average of
// the known ones, each dimension independently rounded to the nearest
// power of two with ties rounding up. With no known footprint at all,
// every group falls back to 512x512.
func resolveSizes(sizes []TextureSize) []TextureSize {
	var sumW, sumH, known int
	for _, s := range sizes {
		if s.Width > 0 && s.Height > 0 {
			sumW += s.Width
			sumH += s.Height
			known++
		}
	}
	avg := TextureSize{Width: fallbackTextureSize, Height: fallbackTextureSize}
	if known > 0 {
		avg = TextureSize{
			Width:  nearestPow2(float32(sumW) / float32(known)),
			Height: nearestPow2(float32(sumH) / float32(known)),
		}
	}

	out := make([]TextureSize, len(sizes))
	for i, s := range sizes {
		if s.Width > 0 && s.Height > 0 {
			out[i] = s
		} else {
			out[i] = avg
		}
	}
	return out
}

func nearestPow2(v float32) int {
	if v <= 1 {
		return 1
	}
	lower := 1 << uint(math32.Floor(math32.Log2(v)))
	upper := lower << 1
	if float32(lower) == v {
		return lower
	}
	// Ties round up.
	if v-float32(lower) < float32(upper)-v {
		return lower
	}
	return upper
}

// tryPack attempts a single-bin packing pass at the given uniform
// scale. Rotation stays off: placements are pure offset/scale affine
// maps, and a rotated cell cannot be expressed as one.
func tryPack(sizes []TextureSize, atlasWidth, atlasHeight int, scale float32) ([]Placement, bool) {
	order := make([]int, len(sizes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sizes[order[a]].Width*sizes[order[a]].Height >
			sizes[order[b]].Width*sizes[order[b]].Height
	})

	bin := newMaxRects(atlasWidth, atlasHeight, false)
	placements := make([]Placement, len(sizes))
	for _, idx := range order {
		w := scaledDim(sizes[idx].Width, scale)
		h := scaledDim(sizes[idx].Height, scale)
		cell, ok := bin.insert(w, h)
		if !ok {
			return nil, false
		}
		placements[idx] = Placement{
			Offset: math.Vec2{
				X: float32(cell.x) / float32(atlasWidth),
				Y: float32(cell.y) / float32(atlasHeight),
			},
			Scale: math.Vec2{
				X: float32(cell.w) / float32(atlasWidth),
				Y: float32(cell.h) / float32(atlasHeight),
			},
		}
	}
	return placements, true
}

func scaledDim(dim int, scale float32) int {
	d := int(math32.Round(float32(dim) * scale))
	if d < 1 {
		return 1
	}
	return d
}
