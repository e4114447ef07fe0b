// Package scene holds the flat mesh/material/skin model the optimizer
// operates on, plus the glTF/VRM container bridge that builds it.
//
// The model is deliberately flat: the container's node tree is resolved
// once at load time into an owned list of meshes with baked transform
// references, so the pipeline never re-traverses a mutable scene graph.
package scene

// Vertex attribute names, matching glTF semantics.
const (
	AttrPosition = "POSITION"
	AttrNormal   = "NORMAL"
	AttrUV       = "TEXCOORD_0"
	AttrJoints   = "JOINTS_0"
	AttrWeights  = "WEIGHTS_0"
)

// Attribute is a per-vertex buffer of float32 tuples. Attributes are
// identity-comparable: two meshes share a buffer iff they hold the
// same *Attribute pointer.
type Attribute struct {
	ItemSize int
	Data     []float32
}

// NewAttribute allocates a zeroed attribute for count vertices.
func NewAttribute(itemSize, count int) *Attribute {
	return &Attribute{ItemSize: itemSize, Data: make([]float32, itemSize*count)}
}

// Count returns the number of vertices in the buffer.
func (a *Attribute) Count() int {
	if a == nil || a.ItemSize == 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

// Clone returns a deep copy of the attribute.
func (a *Attribute) Clone() *Attribute {
	data := make([]float32, len(a.Data))
	copy(data, a.Data)
	return &Attribute{ItemSize: a.ItemSize, Data: data}
}

// Group is a sub-mesh: an index range owned by one material of a
// multi-material mesh.
type Group struct {
	Start         int
	Count         int
	MaterialIndex int
}

// MorphTarget is a named set of delta attributes.
type MorphTarget struct {
	Name       string
	Attributes map[string]*Attribute
}

// Geometry is a set of named vertex attribute buffers with an optional
// index buffer, optional sub-mesh groups and optional morph targets.
type Geometry struct {
	Attributes   map[string]*Attribute
	Index        []uint32
	Groups       []Group
	MorphTargets []MorphTarget
}

// NewGeometry returns an empty geometry.
func NewGeometry() *Geometry {
	return &Geometry{Attributes: map[string]*Attribute{}}
}

// VertexCount returns the vertex count of the position attribute,
// or of any attribute when position is absent.
func (g *Geometry) VertexCount() int {
	if a, ok := g.Attributes[AttrPosition]; ok {
		return a.Count()
	}
	for _, a := range g.Attributes {
		return a.Count()
	}
	return 0
}
