package optimizer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

// ParameterTexture is the float32 lookup texture holding every
// material's non-texture parameters. Row i holds material slot i's
// parameters laid out per mtoon.ParameterLayout; the texture is
// TexelsPerSlot wide and SlotCount tall, RGBA float32 per texel.
type ParameterTexture struct {
	TexelsPerSlot int
	SlotCount     int
	Data          []float32 // len = TexelsPerSlot * SlotCount * 4
}

// At returns the value at (slot row, texel, channel).
func (t *ParameterTexture) At(slot, texel, channel int) float32 {
	return t.Data[(slot*t.TexelsPerSlot+texel)*4+channel]
}

// PackParameterTexture encodes the materials' scalar/vector
// parameters into a parameter texture. Row order is the slot order
// used by the consolidated mesh's slot attribute; rows are
// independent. An empty material list is a fatal precondition.
func PackParameterTexture(materials []*mtoon.Material, texelsPerSlot int) (*ParameterTexture, error) {
	if len(materials) == 0 {
		return nil, fmt.Errorf("%w: no materials", ErrParameterTexture)
	}
	if texelsPerSlot < mtoon.TexelsPerSlot {
		return nil, fmt.Errorf("%w: %d texels per slot, layout needs %d",
			ErrParameterTexture, texelsPerSlot, mtoon.TexelsPerSlot)
	}

	t := &ParameterTexture{
		TexelsPerSlot: texelsPerSlot,
		SlotCount:     len(materials),
		Data:          make([]float32, texelsPerSlot*len(materials)*4),
	}
	for row, m := range materials {
		for _, field := range mtoon.ParameterLayout {
			vals := field.Get(m)
			base := (row*texelsPerSlot + field.Texel) * 4
			for c := 0; c < field.Count; c++ {
				t.Data[base+field.Channel+c] = vals[c]
			}
		}
	}

	logger.Debug("parameter texture packed",
		zap.Int("slots", t.SlotCount),
		zap.Int("texelsPerSlot", t.TexelsPerSlot))
	return t, nil
}
