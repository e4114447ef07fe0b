package optimizer

import "errors"

// Stage failures. Every pipeline stage returns one of these sentinels
// (wrapped with context); the orchestration short-circuits on the
// first failure and returns it to the caller untouched.
var (
	// ErrNoMaterials means the model contains no materials to consolidate.
	ErrNoMaterials = errors.New("no materials found")

	// ErrInvalidMaterial means a mesh references a material that is not
	// an MToon material and therefore cannot be consolidated.
	ErrInvalidMaterial = errors.New("invalid material type")

	// ErrPackingFailed means the texture footprints cannot fit the
	// atlas even at the scale floor. A single 1x1 rectangle per group
	// always fits a non-trivial atlas, so this indicates a logic error.
	ErrPackingFailed = errors.New("texture packing failed")

	// ErrAtlasGeneration means composing one or more channel slot
	// atlases failed.
	ErrAtlasGeneration = errors.New("atlas generation failed")

	// ErrUVRemap means one or more meshes that needed UV remapping
	// could not be remapped.
	ErrUVRemap = errors.New("uv remap failed")

	// ErrParameterTexture means the parameter texture could not be
	// packed (empty material list).
	ErrParameterTexture = errors.New("parameter texture packing failed")

	// ErrGeometryMerge means no render-mode group produced a merged
	// geometry (no meshes, or no mesh with vertices).
	ErrGeometryMerge = errors.New("geometry merge failed")
)
