// Package export writes an optimized model back to a GLB/VRM
// container: merged geometry, composed atlases, the parameter
// texture, and one consolidated material per render-mode group.
package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image/png"
	stdmath "math"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/optimizer"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/scene"
)

// ExtParameterTexture is the material extension carrying the
// parameter lookup texture: a raw float32 buffer view plus the
// indexing contract (slot attribute name, texels per slot).
const ExtParameterTexture = "WEBXR_avatar_params"

type paramsExt struct {
	BufferView    uint32 `json:"bufferView"`
	TexelsPerSlot int    `json:"texelsPerSlot"`
	SlotCount     int    `json:"slotCount"`
	SlotAttribute string `json:"slotAttribute"`
}

// WriteGLB writes the optimize result as a binary glTF container.
// The source node hierarchy and root-level VRM metadata are carried
// over; the original meshes and materials are replaced by the
// consolidated set.
func WriteGLB(model *scene.Model, res *optimizer.Result, path string) error {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "avatar-optimizer"

	src := model.SourceDocument()
	copyNodes(doc, src)

	atlasTex, err := writeAtlases(doc, res.Atlases)
	if err != nil {
		return err
	}
	paramsBV, err := writeParameterTexture(doc, res.Parameters)
	if err != nil {
		return err
	}

	for i, im := range res.Materials {
		mat, err := buildMaterial(im, atlasTex, paramsBV)
		if err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
		doc.Materials = append(doc.Materials, mat)
	}

	skinIdx := map[*scene.Skin]uint32{}
	writeSkin := func(s *scene.Skin) (uint32, error) {
		if idx, ok := skinIdx[s]; ok {
			return idx, nil
		}
		gs, err := buildSkin(doc, s)
		if err != nil {
			return 0, err
		}
		doc.Skins = append(doc.Skins, gs)
		idx := uint32(len(doc.Skins) - 1)
		skinIdx[s] = idx
		return idx, nil
	}

	for i, merged := range res.Merged {
		if err := appendMerged(doc, merged, uint32(i), writeSkin); err != nil {
			return fmt.Errorf("render-mode group %s: %w", merged.Mode, err)
		}
	}

	// Excluded meshes keep their own geometry (morph targets intact)
	// but point at the consolidated material of their render mode.
	// The loader splits a multi-primitive source mesh into one Mesh
	// per primitive; regroup them by node so none is orphaned.
	var groups [][]*scene.Mesh
	byNode := map[int]int{}
	for _, mesh := range model.Meshes {
		if !model.Excluded[mesh] {
			continue
		}
		if mesh.NodeIndex >= 0 {
			if gi, ok := byNode[mesh.NodeIndex]; ok {
				groups[gi] = append(groups[gi], mesh)
				continue
			}
			byNode[mesh.NodeIndex] = len(groups)
		}
		groups = append(groups, []*scene.Mesh{mesh})
	}
	for _, group := range groups {
		if err := appendExcluded(doc, model, res, group, writeSkin); err != nil {
			return fmt.Errorf("excluded mesh %q: %w", group[0].Name, err)
		}
	}

	carryExtensions(doc, src)

	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logger.Info("model written",
		zap.String("path", path),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Int("materials", len(doc.Materials)))
	return nil
}

// copyNodes carries the source node hierarchy over unchanged except
// that mesh/skin bindings are cleared; skins and meshes are rebuilt
// against the new buffer.
func copyNodes(doc *gltf.Document, src *gltf.Document) {
	if src == nil {
		return
	}
	for _, n := range src.Nodes {
		c := *n
		c.Mesh = nil
		c.Skin = nil
		doc.Nodes = append(doc.Nodes, &c)
	}
	if len(src.Scenes) > 0 {
		roots := src.Scenes[0]
		if src.Scene != nil && int(*src.Scene) < len(src.Scenes) {
			roots = src.Scenes[*src.Scene]
		}
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, roots.Nodes...)
	}
}

func carryExtensions(doc *gltf.Document, src *gltf.Document) {
	used := []string{scene.ExtVRMMToon, ExtParameterTexture}
	if src != nil {
		if raw, ok := src.Extensions[scene.ExtVRMCore]; ok {
			if doc.Extensions == nil {
				doc.Extensions = gltf.Extensions{}
			}
			doc.Extensions[scene.ExtVRMCore] = raw
			used = append(used, scene.ExtVRMCore)
		}
	}
	doc.ExtensionsUsed = append(doc.ExtensionsUsed, used...)
}

// writeAtlases PNG-encodes every composed atlas into the buffer and
// returns the texture index per channel slot.
func writeAtlases(doc *gltf.Document, atlases optimizer.AtlasSet) (map[mtoon.TextureSlot]uint32, error) {
	out := map[mtoon.TextureSlot]uint32{}
	for slot := mtoon.TextureSlot(0); slot < mtoon.SlotCount; slot++ {
		atlas, ok := atlases[slot]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, atlas.Image); err != nil {
			return nil, fmt.Errorf("encoding %s atlas: %w", slot, err)
		}
		bv := appendBufferView(doc, buf.Bytes(), gltf.TargetNone)
		doc.Images = append(doc.Images, &gltf.Image{
			Name:       fmt.Sprintf("atlas_%s", slot),
			MimeType:   "image/png",
			BufferView: gltf.Index(bv),
		})
		doc.Textures = append(doc.Textures, &gltf.Texture{
			Source: gltf.Index(uint32(len(doc.Images) - 1)),
		})
		out[slot] = uint32(len(doc.Textures) - 1)
	}
	return out, nil
}

func writeParameterTexture(doc *gltf.Document, t *optimizer.ParameterTexture) (uint32, error) {
	if t == nil {
		return 0, fmt.Errorf("missing parameter texture")
	}
	raw := make([]byte, len(t.Data)*4)
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(raw[i*4:], stdmath.Float32bits(v))
	}
	return appendBufferView(doc, raw, gltf.TargetNone), nil
}

func buildMaterial(im *optimizer.InstancedMaterial, atlasTex map[mtoon.TextureSlot]uint32, paramsBV uint32) (*gltf.Material, error) {
	mat := &gltf.Material{
		Name:        im.Name,
		DoubleSided: im.DoubleSided,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	}
	if idx, ok := atlasTex[mtoon.SlotBaseColor]; ok {
		mat.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: idx}
	}
	if idx, ok := atlasTex[mtoon.SlotNormal]; ok {
		mat.NormalTexture = &gltf.NormalTexture{Index: gltf.Index(idx)}
	}
	if idx, ok := atlasTex[mtoon.SlotEmissive]; ok {
		mat.EmissiveTexture = &gltf.TextureInfo{Index: idx}
		mat.EmissiveFactor = [3]float32{1, 1, 1}
	}
	switch im.Mode {
	case mtoon.AlphaMask:
		mat.AlphaMode = gltf.AlphaMask
	case mtoon.AlphaBlend:
		mat.AlphaMode = gltf.AlphaBlend
	default:
		mat.AlphaMode = gltf.AlphaOpaque
	}

	texFor := func(slot mtoon.TextureSlot) *int {
		if idx, ok := atlasTex[slot]; ok {
			i := int(idx)
			return &i
		}
		return nil
	}
	rep := im.Representative
	if rep == nil {
		rep = mtoon.NewMaterial(im.Name)
	}
	mtoonJSON, err := scene.MToonExtension(rep, texFor)
	if err != nil {
		return nil, err
	}
	paramsJSON, err := json.Marshal(paramsExt{
		BufferView:    paramsBV,
		TexelsPerSlot: im.TexelsPerSlot,
		SlotCount:     im.SlotCount,
		SlotAttribute: im.SlotAttribute,
	})
	if err != nil {
		return nil, err
	}
	mat.Extensions = gltf.Extensions{
		scene.ExtVRMMToon:   mtoonJSON,
		ExtParameterTexture: json.RawMessage(paramsJSON),
	}
	return mat, nil
}

func buildSkin(doc *gltf.Document, s *scene.Skin) (*gltf.Skin, error) {
	gs := &gltf.Skin{}
	for _, j := range s.Joints {
		if j.Index < 0 || j.Index >= len(doc.Nodes) {
			return nil, fmt.Errorf("joint %q has no node in the output document", j.Name)
		}
		gs.Joints = append(gs.Joints, uint32(j.Index))
	}
	raw := make([]byte, len(s.InverseBind)*64)
	for i, m := range s.InverseBind {
		for c := 0; c < 16; c++ {
			binary.LittleEndian.PutUint32(raw[i*64+c*4:], stdmath.Float32bits(m[c]))
		}
	}
	bv := appendBufferView(doc, raw, gltf.TargetNone)
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(bv),
		ComponentType: gltf.ComponentFloat,
		Type:          gltf.AccessorMat4,
		Count:         uint32(len(s.InverseBind)),
	})
	gs.InverseBindMatrices = gltf.Index(uint32(len(doc.Accessors) - 1))
	return gs, nil
}

func appendMerged(doc *gltf.Document, merged *optimizer.MergedGeometry, materialIndex uint32, writeSkin func(*scene.Skin) (uint32, error)) error {
	prim, err := buildPrimitive(doc, merged.Geometry, materialIndex)
	if err != nil {
		return err
	}
	prims := []*gltf.Primitive{prim}
	if merged.Outline != nil {
		// The outline pass shares the merged buffers, so reuse the
		// accessors instead of writing the data twice.
		outline := &gltf.Primitive{
			Attributes: prim.Attributes,
			Indices:    prim.Indices,
			Material:   gltf.Index(materialIndex),
		}
		prims = append(prims, outline)
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       fmt.Sprintf("merged_%s", merged.Mode),
		Primitives: prims,
	})
	node := &gltf.Node{
		Name: fmt.Sprintf("merged_%s", merged.Mode),
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	}
	if merged.Skin != nil {
		idx, err := writeSkin(merged.Skin)
		if err != nil {
			return err
		}
		node.Skin = gltf.Index(idx)
	}
	doc.Nodes = append(doc.Nodes, node)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	return nil
}

// appendExcluded writes one gltf mesh for all excluded primitives of
// a node; they share the node's transform and skin.
func appendExcluded(doc *gltf.Document, model *scene.Model, res *optimizer.Result, meshes []*scene.Mesh, writeSkin func(*scene.Skin) (uint32, error)) error {
	prims := make([]*gltf.Primitive, 0, len(meshes))
	for _, mesh := range meshes {
		prim, err := buildPrimitive(doc, mesh.Geometry, consolidatedMaterialIndex(model, res, mesh))
		if err != nil {
			return fmt.Errorf("%q: %w", mesh.Name, err)
		}
		prims = append(prims, prim)
	}

	first := meshes[0]
	name := first.Name
	if i := strings.LastIndexByte(name, '/'); i >= 0 && len(meshes) > 1 {
		// Loader names primitives "<mesh>/<n>"; the regrouped mesh
		// takes the source mesh name back.
		name = name[:i]
	}
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: name, Primitives: prims})
	meshIdx := gltf.Index(uint32(len(doc.Meshes) - 1))

	if first.NodeIndex >= 0 && first.NodeIndex < len(doc.Nodes) {
		doc.Nodes[first.NodeIndex].Mesh = meshIdx
		if first.Skin != nil {
			idx, err := writeSkin(first.Skin)
			if err != nil {
				return err
			}
			doc.Nodes[first.NodeIndex].Skin = gltf.Index(idx)
		}
		return nil
	}

	node := &gltf.Node{Name: name, Mesh: meshIdx}
	doc.Nodes = append(doc.Nodes, node)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	return nil
}

// consolidatedMaterialIndex picks the output material matching the
// mesh's render mode; excluded meshes are not split by mode, they
// just reference their mode's consolidated material.
func consolidatedMaterialIndex(model *scene.Model, res *optimizer.Result, mesh *scene.Mesh) uint32 {
	mode := mtoon.AlphaOpaque
	if mat := model.MaterialFor(mesh); mat != nil {
		mode = mat.AlphaMode
	}
	for i, m := range res.Merged {
		if m.Mode == mode {
			return uint32(i)
		}
	}
	return 0
}

func buildPrimitive(doc *gltf.Document, g *scene.Geometry, materialIndex uint32) (*gltf.Primitive, error) {
	prim := &gltf.Primitive{
		Attributes: gltf.Attribute{},
		Material:   gltf.Index(materialIndex),
	}
	for name, attr := range g.Attributes {
		acc, err := writeAttribute(doc, name, attr)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		prim.Attributes[name] = acc
	}
	if g.Index != nil {
		prim.Indices = gltf.Index(uint32(modeler.WriteIndices(doc, g.Index)))
	}
	for _, target := range g.MorphTargets {
		t := gltf.Attribute{}
		for name, attr := range target.Attributes {
			acc, err := writeAttribute(doc, name, attr)
			if err != nil {
				return nil, fmt.Errorf("morph target attribute %s: %w", name, err)
			}
			t[name] = acc
		}
		prim.Targets = append(prim.Targets, t)
	}
	return prim, nil
}

func writeAttribute(doc *gltf.Document, name string, attr *scene.Attribute) (uint32, error) {
	switch name {
	case scene.AttrPosition:
		return uint32(modeler.WritePosition(doc, unflatten3(attr))), nil
	case scene.AttrNormal:
		return uint32(modeler.WriteNormal(doc, unflatten3(attr))), nil
	case scene.AttrUV:
		return uint32(modeler.WriteTextureCoord(doc, unflatten2(attr))), nil
	case scene.AttrJoints:
		return uint32(modeler.WriteJoints(doc, unflattenJoints(attr))), nil
	case scene.AttrWeights:
		return uint32(modeler.WriteWeights(doc, unflatten4(attr))), nil
	}
	return writeFloatAccessor(doc, attr)
}

// writeFloatAccessor emits a generic float accessor for attributes
// modeler has no typed writer for (the slot attribute in particular).
func writeFloatAccessor(doc *gltf.Document, attr *scene.Attribute) (uint32, error) {
	var accType gltf.AccessorType
	switch attr.ItemSize {
	case 1:
		accType = gltf.AccessorScalar
	case 2:
		accType = gltf.AccessorVec2
	case 3:
		accType = gltf.AccessorVec3
	case 4:
		accType = gltf.AccessorVec4
	default:
		return 0, fmt.Errorf("unsupported item size %d", attr.ItemSize)
	}
	raw := make([]byte, len(attr.Data)*4)
	for i, v := range attr.Data {
		binary.LittleEndian.PutUint32(raw[i*4:], stdmath.Float32bits(v))
	}
	bv := appendBufferView(doc, raw, gltf.TargetArrayBuffer)
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(bv),
		ComponentType: gltf.ComponentFloat,
		Type:          accType,
		Count:         uint32(attr.Count()),
	})
	return uint32(len(doc.Accessors) - 1), nil
}

// appendBufferView appends 4-byte-aligned data to the document's
// buffer and returns the new buffer view index.
func appendBufferView(doc *gltf.Document, data []byte, target gltf.Target) uint32 {
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, new(gltf.Buffer))
	}
	buf := doc.Buffers[0]
	if pad := len(buf.Data) % 4; pad != 0 {
		buf.Data = append(buf.Data, make([]byte, 4-pad)...)
	}
	offset := uint32(len(buf.Data))
	buf.Data = append(buf.Data, data...)
	buf.ByteLength = uint32(len(buf.Data))
	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     0,
		ByteOffset: offset,
		ByteLength: uint32(len(data)),
		Target:     target,
	})
	return uint32(len(doc.BufferViews) - 1)
}

func unflatten2(a *scene.Attribute) [][2]float32 {
	out := make([][2]float32, a.Count())
	for i := range out {
		out[i] = [2]float32{a.Data[i*2], a.Data[i*2+1]}
	}
	return out
}

func unflatten3(a *scene.Attribute) [][3]float32 {
	out := make([][3]float32, a.Count())
	for i := range out {
		out[i] = [3]float32{a.Data[i*3], a.Data[i*3+1], a.Data[i*3+2]}
	}
	return out
}

func unflatten4(a *scene.Attribute) [][4]float32 {
	out := make([][4]float32, a.Count())
	for i := range out {
		out[i] = [4]float32{a.Data[i*4], a.Data[i*4+1], a.Data[i*4+2], a.Data[i*4+3]}
	}
	return out
}

func unflattenJoints(a *scene.Attribute) [][4]uint16 {
	out := make([][4]uint16, a.Count())
	for i := range out {
		out[i] = [4]uint16{
			uint16(a.Data[i*4]),
			uint16(a.Data[i*4+1]),
			uint16(a.Data[i*4+2]),
			uint16(a.Data[i*4+3]),
		}
	}
	return out
}
