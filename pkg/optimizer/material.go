package optimizer

import (
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

// InstancedMaterial is the single output material of one render-mode
// group: the composed atlases, the parameter texture, and the
// attribute name the engine uses to index parameters per vertex.
// Every other component must agree with these names and counts.
type InstancedMaterial struct {
	Name          string
	Mode          mtoon.AlphaMode
	Atlases       AtlasSet
	Parameters    *ParameterTexture
	SlotCount     int
	TexelsPerSlot int
	SlotAttribute string
	DoubleSided   bool

	// Representative carries the MToon fields that are not encoded in
	// the parameter texture (outline mode, z-write) into the output
	// container.
	Representative *mtoon.Material
}

// BuildInstancedMaterial assembles the consolidated material
// descriptor for one render-mode group.
func BuildInstancedMaterial(name string, rep *mtoon.Material, mode mtoon.AlphaMode, atlases AtlasSet, params *ParameterTexture, slotAttribute string) *InstancedMaterial {
	im := &InstancedMaterial{
		Name:           name,
		Mode:           mode,
		Atlases:        atlases,
		Parameters:     params,
		SlotCount:      params.SlotCount,
		TexelsPerSlot:  params.TexelsPerSlot,
		SlotAttribute:  slotAttribute,
		Representative: rep,
	}
	if rep != nil {
		im.DoubleSided = rep.DoubleSided
	}
	return im
}
