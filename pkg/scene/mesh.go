package scene

import (
	"github.com/qmuntal/gltf"

	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
)

// Node is a joint or transform node resolved from the container.
// Nodes are identity-comparable; skeleton unification dedupes on the
// *Node pointer.
type Node struct {
	Name  string
	Index int // node index in the source container
	World math.Mat4
}

// Skin is a skeleton: an ordered joint list plus one inverse bind
// matrix per joint. Per-vertex skin indices refer to this order.
type Skin struct {
	Joints      []*Node
	InverseBind []math.Mat4
}

// Mesh is one drawable unit: a geometry, the material it uses, its
// world transform and an optional skin.
type Mesh struct {
	Name          string
	Geometry      *Geometry
	MaterialIndex int
	NodeIndex     int // source container node carrying this mesh, -1 if none
	Skin          *Skin

	// World is the node's world transform, baked into vertices when
	// the mesh is consolidated. For skinned meshes Bind is baked
	// instead: joint matrices already position skinned vertices.
	World math.Mat4
	Bind  math.Mat4
}

// Skinned reports whether the mesh carries skinning data.
func (m *Mesh) Skinned() bool {
	return m.Skin != nil && len(m.Skin.Joints) > 0
}

// HasMorphTargets reports whether the mesh's geometry carries morph targets.
func (m *Mesh) HasMorphTargets() bool {
	return m.Geometry != nil && len(m.Geometry.MorphTargets) > 0
}

// Model is the flat scene the optimizer consumes and produces into.
type Model struct {
	Name      string
	Meshes    []*Mesh
	Materials []*mtoon.Material
	Textures  []*mtoon.Texture
	Nodes     []*Node

	// Excluded marks meshes that must keep their own morph targets
	// and cannot be merged (expression/animation bound).
	Excluded map[*Mesh]bool

	// doc is the source container, retained so the writer can carry
	// over the node hierarchy and VRM metadata untouched.
	doc *gltf.Document
}

// SourceDocument returns the container the model was loaded from,
// or nil for models built in memory.
func (m *Model) SourceDocument() *gltf.Document {
	return m.doc
}

// MaterialFor returns the mesh's material, or nil when out of range.
func (m *Model) MaterialFor(mesh *Mesh) *mtoon.Material {
	if mesh.MaterialIndex < 0 || mesh.MaterialIndex >= len(m.Materials) {
		return nil
	}
	return m.Materials[mesh.MaterialIndex]
}

// MeshesByMaterial groups meshes by material index, in first-seen
// material order. Excluded meshes are skipped.
func (m *Model) MeshesByMaterial() map[int][]*Mesh {
	out := map[int][]*Mesh{}
	for _, mesh := range m.Meshes {
		if m.Excluded[mesh] {
			continue
		}
		out[mesh.MaterialIndex] = append(out[mesh.MaterialIndex], mesh)
	}
	return out
}
