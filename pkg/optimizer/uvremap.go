package optimizer

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/scene"
)

// RemapUVs rewrites every mesh's UV attribute to its material's atlas
// placement: newUV = offset + scale*frac(oldUV). Coordinates are
// fractionally wrapped before the transform, so tiled and animated
// source UVs stay inside their atlas cell.
//
// Each underlying vertex of each attribute buffer is transformed
// exactly once, no matter how many meshes or sub-mesh groups share
// the buffer; a per-buffer visited set guards against double
// application. Meshes whose material has no placement are left alone.
// Per-mesh failures do not stop the remaining meshes, but are
// reported as one aggregate error.
func RemapUVs(meshes []*scene.Mesh, placements map[int]Placement) error {
	visited := map[*scene.Attribute][]bool{}
	var errs error
	remapped := 0

	for _, mesh := range meshes {
		geom := mesh.Geometry
		if geom == nil {
			continue
		}
		needed := meshNeedsRemap(mesh, placements)
		if !needed {
			continue
		}

		uv, ok := geom.Attributes[scene.AttrUV]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("mesh %q: missing UV attribute", mesh.Name))
			continue
		}
		if uv.ItemSize != 2 {
			errs = multierr.Append(errs, fmt.Errorf("mesh %q: UV attribute item size %d, want 2", mesh.Name, uv.ItemSize))
			continue
		}
		seen := visited[uv]
		if seen == nil {
			seen = make([]bool, uv.Count())
			visited[uv] = seen
		}

		if len(geom.Groups) > 0 {
			for _, g := range geom.Groups {
				pl, ok := placements[g.MaterialIndex]
				if !ok {
					continue
				}
				forEachGroupVertex(geom, g, func(v int) {
					remapVertex(uv, v, pl, seen)
				})
			}
		} else {
			pl := placements[mesh.MaterialIndex]
			for v := 0; v < uv.Count(); v++ {
				remapVertex(uv, v, pl, seen)
			}
		}
		remapped++
	}

	if errs != nil {
		return fmt.Errorf("%w: %v", ErrUVRemap, errs)
	}
	logger.Debug("uv remap complete", zap.Int("meshes", remapped))
	return nil
}

func meshNeedsRemap(mesh *scene.Mesh, placements map[int]Placement) bool {
	if len(mesh.Geometry.Groups) > 0 {
		for _, g := range mesh.Geometry.Groups {
			if _, ok := placements[g.MaterialIndex]; ok {
				return true
			}
		}
		return false
	}
	_, ok := placements[mesh.MaterialIndex]
	return ok
}

// forEachGroupVertex visits the vertices owned by a sub-mesh group:
// through the index buffer when the geometry is indexed, directly as
// a vertex range otherwise.
func forEachGroupVertex(geom *scene.Geometry, g scene.Group, fn func(v int)) {
	if geom.Index != nil {
		end := g.Start + g.Count
		if end > len(geom.Index) {
			end = len(geom.Index)
		}
		for i := g.Start; i < end; i++ {
			fn(int(geom.Index[i]))
		}
		return
	}
	for v := g.Start; v < g.Start+g.Count; v++ {
		fn(v)
	}
}

func remapVertex(uv *scene.Attribute, v int, pl Placement, seen []bool) {
	if v < 0 || v >= len(seen) || seen[v] {
		return
	}
	seen[v] = true
	old := math.Vec2{X: uv.Data[v*2], Y: uv.Data[v*2+1]}
	mapped := pl.Offset.Add(pl.Scale.MulComp(old.Fract()))
	uv.Data[v*2] = mapped.X
	uv.Data[v*2+1] = mapped.Y
}
