package optimizer

import (
	"fmt"
	"image"
	stdraw "image/draw"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

// AtlasImage is one composed channel-slot atlas.
type AtlasImage struct {
	Slot  mtoon.TextureSlot
	Image *image.NRGBA
	SRGB  bool // perceptual color data (base color, emissive, matcap)
}

// AtlasSet holds the composed atlas for every channel slot actually
// used by any pattern group.
type AtlasSet map[mtoon.TextureSlot]*AtlasImage

// ComposeAtlases rasterizes each group's source texture into its
// placement rectangle, one atlas per used channel slot. A failing
// slot does not stop the remaining slots from being attempted, but
// any failure fails the whole composition.
func ComposeAtlases(groups []*PatternGroup, placements []Placement, atlasWidth, atlasHeight int) (AtlasSet, error) {
	if atlasWidth <= 0 || atlasHeight <= 0 {
		return nil, fmt.Errorf("%w: non-positive atlas size %dx%d", ErrAtlasGeneration, atlasWidth, atlasHeight)
	}
	if len(groups) != len(placements) {
		return nil, fmt.Errorf("%w: %d groups but %d placements", ErrAtlasGeneration, len(groups), len(placements))
	}

	set := AtlasSet{}
	var errs error
	for slot := mtoon.TextureSlot(0); slot < mtoon.SlotCount; slot++ {
		used := false
		for _, g := range groups {
			if g.Uses(slot) {
				used = true
				break
			}
		}
		if !used {
			continue
		}
		atlas, err := composeSlot(slot, groups, placements, atlasWidth, atlasHeight)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("slot %s: %w", slot, err))
			continue
		}
		set[slot] = atlas
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %v", ErrAtlasGeneration, errs)
	}

	logger.Info("atlases composed",
		zap.Int("slots", len(set)),
		zap.Int("width", atlasWidth),
		zap.Int("height", atlasHeight))
	return set, nil
}

func composeSlot(slot mtoon.TextureSlot, groups []*PatternGroup, placements []Placement, atlasWidth, atlasHeight int) (*AtlasImage, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, atlasWidth, atlasHeight))
	for i, g := range groups {
		tex := g.Pattern[slot]
		if tex == nil {
			continue
		}
		if tex.Image == nil {
			return nil, fmt.Errorf("texture %q has no decoded pixels", tex.Name)
		}

		x, y, w, h := placements[i].PixelRect(atlasWidth, atlasHeight)
		rect := image.Rect(x, y, x+w, y+h)
		src := tex.Image
		bounds := src.Bounds()

		switch {
		case rect.Dx() == bounds.Dx() && rect.Dy() == bounds.Dy():
			stdraw.Draw(dst, rect, src, bounds.Min, stdraw.Src)
		case rect.Dx() < bounds.Dx() || rect.Dy() < bounds.Dy():
			// Downscale with filtering; cells never overlap, so Src
			// composition order does not matter.
			draw.BiLinear.Scale(dst, rect, src, bounds, draw.Src, nil)
		default:
			draw.NearestNeighbor.Scale(dst, rect, src, bounds, draw.Src, nil)
		}
	}
	return &AtlasImage{Slot: slot, Image: dst, SRGB: slot.SRGB()}, nil
}
