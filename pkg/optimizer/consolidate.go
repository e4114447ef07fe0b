package optimizer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/scene"
)

// MergedGeometry is one render-mode group's consolidated output: all
// contributing meshes' buffers concatenated, world/bind transforms
// baked in, skin indices rewritten into the unified skeleton, and a
// per-vertex material-slot attribute stamped on.
type MergedGeometry struct {
	Mode     mtoon.AlphaMode
	Geometry *scene.Geometry

	// Outline shares the merged buffers and renders the outline pass;
	// nil when no material in the group has an outline.
	Outline *scene.Geometry

	// Skin is the unified skeleton; nil when no contributing mesh was
	// skinned. All render-mode groups share one unified skeleton.
	Skin *scene.Skin

	// Slots are the material slot indices contributing to this group,
	// in encounter order.
	Slots []int
}

// ConsolidateMeshes merges the model's meshes into one geometry per
// render mode (opaque / mask / blend). Excluded meshes keep their own
// geometry and morph targets and are only stamped with their slot
// attribute; merged meshes lose their morph targets. Source meshes
// are consumed: their buffers are not safe to reuse afterwards.
func ConsolidateMeshes(model *scene.Model, slotAttribute string) ([]*MergedGeometry, error) {
	var mergeable []*scene.Mesh
	for _, mesh := range model.Meshes {
		if model.Excluded[mesh] || mesh.Geometry == nil {
			continue
		}
		if mesh.Geometry.VertexCount() == 0 {
			logger.Warn("skipping empty mesh", zap.String("mesh", mesh.Name))
			continue
		}
		mergeable = append(mergeable, mesh)
	}
	if len(mergeable) == 0 {
		return nil, fmt.Errorf("%w: no meshes with vertices to merge", ErrGeometryMerge)
	}

	unified := unifySkeletons(mergeable)
	rigid := attachRigidJoints(model, mergeable, unified)

	buckets := map[mtoon.AlphaMode][]*scene.Mesh{}
	for _, mesh := range mergeable {
		mode := mtoon.AlphaOpaque
		if mat := model.MaterialFor(mesh); mat != nil {
			mode = mat.AlphaMode
		}
		buckets[mode] = append(buckets[mode], mesh)
	}

	var out []*MergedGeometry
	for _, mode := range []mtoon.AlphaMode{mtoon.AlphaOpaque, mtoon.AlphaMask, mtoon.AlphaBlend} {
		meshes := buckets[mode]
		if len(meshes) == 0 {
			continue
		}
		merged, err := mergeBucket(model, meshes, mode, unified, rigid, slotAttribute)
		if err != nil {
			return nil, err
		}
		out = append(out, merged)
	}

	stampExcluded(model, slotAttribute)

	logger.Info("meshes consolidated",
		zap.Int("sources", len(mergeable)),
		zap.Int("groups", len(out)),
		zap.Int("excluded", len(model.Excluded)))
	return out, nil
}

// unifySkeletons builds one joint list by identity-deduplication
// across every contributing skeleton. Returns nil when no mesh is
// skinned.
func unifySkeletons(meshes []*scene.Mesh) *scene.Skin {
	var unified *scene.Skin
	index := map[*scene.Node]int{}
	for _, mesh := range meshes {
		if !mesh.Skinned() {
			continue
		}
		if unified == nil {
			unified = &scene.Skin{}
		}
		for j, joint := range mesh.Skin.Joints {
			if _, ok := index[joint]; ok {
				continue
			}
			index[joint] = len(unified.Joints)
			unified.Joints = append(unified.Joints, joint)
			unified.InverseBind = append(unified.InverseBind, mesh.Skin.InverseBind[j])
		}
	}
	return unified
}

// attachRigidJoints extends the unified skeleton with one joint per
// non-skinned mesh when any mesh in the merge is skinned. A skinned
// draw poses every vertex through its joints, so rigid vertices must
// bind fully to a joint of their own: the mesh's node, with the
// inverse of the baked world transform as bind matrix so the bind
// pose reproduces the baked positions. Returns the joint index per
// rigid mesh, nil when nothing is skinned.
func attachRigidJoints(model *scene.Model, meshes []*scene.Mesh, unified *scene.Skin) map[*scene.Mesh]int {
	if unified == nil {
		return nil
	}
	index := map[*scene.Node]int{}
	for i, j := range unified.Joints {
		index[j] = i
	}
	out := map[*scene.Mesh]int{}
	for _, mesh := range meshes {
		if mesh.Skinned() {
			continue
		}
		node := nodeFor(model, mesh)
		idx, ok := index[node]
		if !ok {
			idx = len(unified.Joints)
			index[node] = idx
			unified.Joints = append(unified.Joints, node)
			unified.InverseBind = append(unified.InverseBind, mesh.World.Inverse())
		}
		out[mesh] = idx
	}
	return out
}

// nodeFor resolves the mesh's source node, synthesizing one for
// meshes built in memory without a container node.
func nodeFor(model *scene.Model, mesh *scene.Mesh) *scene.Node {
	if mesh.NodeIndex >= 0 {
		for _, n := range model.Nodes {
			if n.Index == mesh.NodeIndex {
				return n
			}
		}
	}
	return &scene.Node{Name: mesh.Name, Index: mesh.NodeIndex, World: mesh.World}
}

func mergeBucket(model *scene.Model, meshes []*scene.Mesh, mode mtoon.AlphaMode, unified *scene.Skin, rigid map[*scene.Mesh]int, slotAttribute string) (*MergedGeometry, error) {
	// Union of attribute names; item size comes from the first mesh
	// that carries the attribute, later meshes must agree.
	itemSizes := map[string]int{}
	var names []string
	for _, mesh := range meshes {
		for name, attr := range mesh.Geometry.Attributes {
			if prev, ok := itemSizes[name]; ok {
				if prev != attr.ItemSize {
					return nil, fmt.Errorf("%w: attribute %s item size %d vs %d across meshes",
						ErrGeometryMerge, name, prev, attr.ItemSize)
				}
				continue
			}
			itemSizes[name] = attr.ItemSize
			names = append(names, name)
		}
	}
	if unified != nil {
		// A skinned merge needs skin data on every vertex, even when
		// the bucket itself holds only rigid meshes.
		for _, name := range []string{scene.AttrJoints, scene.AttrWeights} {
			if _, ok := itemSizes[name]; !ok {
				itemSizes[name] = 4
				names = append(names, name)
			}
		}
	}

	totalVerts := 0
	for _, mesh := range meshes {
		totalVerts += mesh.Geometry.VertexCount()
	}
	if totalVerts == 0 {
		return nil, fmt.Errorf("%w: render-mode group %s has no vertices", ErrGeometryMerge, mode)
	}

	merged := scene.NewGeometry()
	for _, name := range names {
		merged.Attributes[name] = &scene.Attribute{
			ItemSize: itemSizes[name],
			Data:     make([]float32, 0, totalVerts*itemSizes[name]),
		}
	}
	slotAttr := &scene.Attribute{ItemSize: 1, Data: make([]float32, 0, totalVerts)}

	jointIndex := map[*scene.Node]int{}
	if unified != nil {
		for i, j := range unified.Joints {
			jointIndex[j] = i
		}
	}

	var slots []int
	slotSeen := map[int]bool{}
	offset := uint32(0)
	hasOutline := false
	for _, mesh := range meshes {
		count := mesh.Geometry.VertexCount()
		slot := mesh.MaterialIndex
		if !slotSeen[slot] {
			slotSeen[slot] = true
			slots = append(slots, slot)
		}
		if mat := model.MaterialFor(mesh); mat != nil && mat.HasOutline() {
			hasOutline = true
		}

		rigJoint, rigged := rigid[mesh]
		for _, name := range names {
			dst := merged.Attributes[name]
			if rigged && (name == scene.AttrJoints || name == scene.AttrWeights) {
				// Rigid vertices bind fully to the mesh's own joint;
				// zero weights would collapse them to the origin.
				for v := 0; v < count; v++ {
					if name == scene.AttrJoints {
						dst.Data = append(dst.Data, float32(rigJoint), 0, 0, 0)
					} else {
						dst.Data = append(dst.Data, 1, 0, 0, 0)
					}
				}
				continue
			}
			src, ok := mesh.Geometry.Attributes[name]
			if !ok {
				// Zero-fill keeps every merged attribute aligned to
				// the vertex count.
				dst.Data = append(dst.Data, make([]float32, count*dst.ItemSize)...)
				continue
			}
			dst.Data = append(dst.Data, transformedData(mesh, name, src, jointIndex)...)
		}

		for v := 0; v < count; v++ {
			slotAttr.Data = append(slotAttr.Data, float32(slot))
		}

		if mesh.Geometry.Index != nil {
			for _, idx := range mesh.Geometry.Index {
				merged.Index = append(merged.Index, idx+offset)
			}
		} else {
			for v := uint32(0); v < uint32(count); v++ {
				merged.Index = append(merged.Index, v+offset)
			}
		}
		offset += uint32(count)
	}
	merged.Attributes[slotAttribute] = slotAttr

	out := &MergedGeometry{Mode: mode, Geometry: merged, Skin: unified, Slots: slots}
	if hasOutline {
		// The outline pass shares the merged buffers; only the
		// material-side outline parameters differ.
		out.Outline = &scene.Geometry{Attributes: merged.Attributes, Index: merged.Index}
	}
	return out, nil
}

// transformedData returns the mesh's attribute data ready for
// concatenation: positions and normals with the mesh transform baked
// in, skin indices remapped into the unified skeleton, anything else
// passed through. Transformed attributes are copies; the source
// buffer is left untouched in case it is shared.
func transformedData(mesh *scene.Mesh, name string, src *scene.Attribute, jointIndex map[*scene.Node]int) []float32 {
	switch name {
	case scene.AttrPosition:
		m := bakeMatrix(mesh)
		out := make([]float32, len(src.Data))
		for v := 0; v < src.Count(); v++ {
			p := m.TransformPoint(math.Vec3{X: src.Data[v*3], Y: src.Data[v*3+1], Z: src.Data[v*3+2]})
			out[v*3], out[v*3+1], out[v*3+2] = p.X, p.Y, p.Z
		}
		return out
	case scene.AttrNormal:
		nm := bakeMatrix(mesh).NormalMatrix()
		out := make([]float32, len(src.Data))
		for v := 0; v < src.Count(); v++ {
			n := nm.TransformDirection(math.Vec3{X: src.Data[v*3], Y: src.Data[v*3+1], Z: src.Data[v*3+2]}).Normalize()
			out[v*3], out[v*3+1], out[v*3+2] = n.X, n.Y, n.Z
		}
		return out
	case scene.AttrJoints:
		if !mesh.Skinned() {
			return src.Data
		}
		out := make([]float32, len(src.Data))
		for i, v := range src.Data {
			local := int(v)
			if local >= 0 && local < len(mesh.Skin.Joints) {
				out[i] = float32(jointIndex[mesh.Skin.Joints[local]])
			}
		}
		return out
	}
	return src.Data
}

// bakeMatrix is the transform baked into a mesh's vertices: the bind
// transform for skinned meshes (joint matrices place the vertices at
// render time), the world transform otherwise.
func bakeMatrix(mesh *scene.Mesh) math.Mat4 {
	if mesh.Skinned() {
		return mesh.Bind
	}
	return mesh.World
}

// stampExcluded gives every excluded mesh the same per-vertex slot
// attribute so it can render with the consolidated material while
// keeping its own geometry and morph targets. Excluded meshes are
// not split by render mode; each stays its own draw unit.
func stampExcluded(model *scene.Model, slotAttribute string) {
	for mesh := range model.Excluded {
		if mesh.Geometry == nil {
			continue
		}
		count := mesh.Geometry.VertexCount()
		attr := &scene.Attribute{ItemSize: 1, Data: make([]float32, count)}
		for v := range attr.Data {
			attr.Data[v] = float32(mesh.MaterialIndex)
		}
		mesh.Geometry.Attributes[slotAttribute] = attr
	}
}
