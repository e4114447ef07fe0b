package optimizer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/scene"
)

// Options are the pipeline's configuration points.
type Options struct {
	AtlasWidth    int
	AtlasHeight   int
	TexelsPerSlot int
	SlotAttribute string
}

// DefaultOptions returns the default pipeline configuration.
func DefaultOptions() Options {
	return Options{
		AtlasWidth:    2048,
		AtlasHeight:   2048,
		TexelsPerSlot: 8,
		SlotAttribute: "_MATERIAL_SLOT",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.AtlasWidth <= 0 {
		o.AtlasWidth = d.AtlasWidth
	}
	if o.AtlasHeight <= 0 {
		o.AtlasHeight = d.AtlasHeight
	}
	if o.TexelsPerSlot <= 0 {
		o.TexelsPerSlot = d.TexelsPerSlot
	}
	if o.SlotAttribute == "" {
		o.SlotAttribute = d.SlotAttribute
	}
	return o
}

// Result is everything one optimize invocation derives. All entities
// are read-only artifacts scoped to the call; source mesh buffers are
// consumed and should be released by the caller.
type Result struct {
	Groups     []*PatternGroup
	Placements []Placement
	Scale      float32
	Atlases    AtlasSet
	Parameters *ParameterTexture
	Merged     []*MergedGeometry
	Materials  []*InstancedMaterial // index-aligned with Merged
	Options    Options
}

// Run executes the full pipeline on a model. The first failing stage
// aborts the invocation and its error is returned untouched; no
// partial atlases or merges are produced.
func Run(model *scene.Model, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	if len(model.Materials) == 0 {
		return nil, ErrNoMaterials
	}
	for _, mesh := range model.Meshes {
		if model.Excluded[mesh] {
			continue
		}
		mat := model.MaterialFor(mesh)
		if mat == nil {
			return nil, fmt.Errorf("%w: mesh %q has no material", ErrInvalidMaterial, mesh.Name)
		}
		if !mat.MToon {
			return nil, fmt.Errorf("%w: material %q is not an MToon material", ErrInvalidMaterial, mat.Name)
		}
	}

	groups := GroupByTexturePattern(model.Materials)
	logger.Info("materials grouped",
		zap.Int("materials", len(model.Materials)),
		zap.Int("groups", len(groups)))

	sizes := make([]TextureSize, len(groups))
	for i, g := range groups {
		sizes[i] = g.Size
	}
	placements, scale, err := PackAtlas(sizes, opts.AtlasWidth, opts.AtlasHeight)
	if err != nil {
		return nil, err
	}
	logger.Info("atlas packed", zap.Int("cells", len(placements)), zap.Float32("scale", scale))

	atlases, err := ComposeAtlases(groups, placements, opts.AtlasWidth, opts.AtlasHeight)
	if err != nil {
		return nil, err
	}

	byMaterial := map[int]Placement{}
	for gi, g := range groups {
		for _, mi := range g.MaterialIndices {
			byMaterial[mi] = placements[gi]
		}
	}
	if err := RemapUVs(model.Meshes, byMaterial); err != nil {
		return nil, err
	}

	params, err := PackParameterTexture(model.Materials, opts.TexelsPerSlot)
	if err != nil {
		return nil, err
	}

	merged, err := ConsolidateMeshes(model, opts.SlotAttribute)
	if err != nil {
		return nil, err
	}

	materials := make([]*InstancedMaterial, len(merged))
	for i, m := range merged {
		rep := model.Materials[m.Slots[0]]
		name := fmt.Sprintf("optimized_%s", m.Mode)
		materials[i] = BuildInstancedMaterial(name, rep, m.Mode, atlases, params, opts.SlotAttribute)
	}

	return &Result{
		Groups:     groups,
		Placements: placements,
		Scale:      scale,
		Atlases:    atlases,
		Parameters: params,
		Merged:     merged,
		Materials:  materials,
		Options:    opts,
	}, nil
}
