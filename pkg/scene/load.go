package scene

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg" // glTF image decoders
	_ "image/png"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	stdmath "math"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/math"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/mtoon"
	"go.uber.org/zap"
)

// Load reads a .vrm/.glb/.gltf file into the flat scene model.
func Load(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return FromDocument(doc)
}

// FromDocument flattens a parsed glTF document: textures decoded,
// node tree resolved into world transforms, every triangle primitive
// lifted to one Mesh, materials lifted to mtoon descriptors.
func FromDocument(doc *gltf.Document) (*Model, error) {
	m := &Model{
		Excluded: map[*Mesh]bool{},
		doc:      doc,
	}
	if doc.Asset.Generator != "" {
		m.Name = doc.Asset.Generator
	}

	m.Textures = loadTextures(doc)
	m.Nodes = loadNodes(doc)

	skins := make([]*Skin, len(doc.Skins))
	for i, gs := range doc.Skins {
		s, err := loadSkin(doc, gs, m.Nodes)
		if err != nil {
			return nil, fmt.Errorf("skin %d: %w", i, err)
		}
		skins[i] = s
	}

	texForInfo := func(texIndex int) *mtoon.Texture {
		if texIndex < 0 || texIndex >= len(doc.Textures) {
			return nil
		}
		src := doc.Textures[texIndex].Source
		if src == nil || int(*src) >= len(m.Textures) {
			return nil
		}
		return m.Textures[*src]
	}
	for i, gm := range doc.Materials {
		m.Materials = append(m.Materials, loadMaterial(gm, i, texForInfo))
	}

	for nodeIdx, n := range doc.Nodes {
		if n.Mesh == nil || int(*n.Mesh) >= len(doc.Meshes) {
			continue
		}
		gm := doc.Meshes[*n.Mesh]
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				logger.Warn("skipping non-triangle primitive",
					zap.String("mesh", gm.Name), zap.Int("primitive", pi))
				continue
			}
			geom, err := loadPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
			}
			mesh := &Mesh{
				Name:          fmt.Sprintf("%s/%d", gm.Name, pi),
				Geometry:      geom,
				MaterialIndex: -1,
				NodeIndex:     nodeIdx,
				World:         m.Nodes[nodeIdx].World,
				Bind:          math.Identity(),
			}
			if prim.Material != nil {
				mesh.MaterialIndex = int(*prim.Material)
			}
			if n.Skin != nil && int(*n.Skin) < len(skins) {
				mesh.Skin = skins[*n.Skin]
			}
			if mesh.HasMorphTargets() {
				m.Excluded[mesh] = true
			}
			m.Meshes = append(m.Meshes, mesh)
		}
	}

	logger.Debug("scene loaded",
		zap.Int("meshes", len(m.Meshes)),
		zap.Int("materials", len(m.Materials)),
		zap.Int("textures", len(m.Textures)),
		zap.Int("excluded", len(m.Excluded)))
	return m, nil
}

// loadTextures decodes every image once; texture identity is one
// *mtoon.Texture per source image, so materials referencing the same
// image compare equal by pointer.
func loadTextures(doc *gltf.Document) []*mtoon.Texture {
	out := make([]*mtoon.Texture, len(doc.Images))
	for i, img := range doc.Images {
		t := &mtoon.Texture{Name: img.Name, Source: i}
		data, err := imageBytes(doc, img)
		if err == nil {
			decoded, _, derr := image.Decode(bytes.NewReader(data))
			if derr != nil {
				err = derr
			} else {
				t.Image = decoded
				t.Width = decoded.Bounds().Dx()
				t.Height = decoded.Bounds().Dy()
			}
		}
		if err != nil {
			// Size stays unknown; the packer averages it in later.
			logger.Warn("image not decodable", zap.Int("image", i), zap.Error(err))
		}
		out[i] = t
	}
	return out
}

func imageBytes(doc *gltf.Document, img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		return bufferViewBytes(doc, *img.BufferView)
	}
	if strings.HasPrefix(img.URI, "data:") {
		comma := strings.IndexByte(img.URI, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		return base64.StdEncoding.DecodeString(img.URI[comma+1:])
	}
	return nil, fmt.Errorf("external image URI %q not supported", img.URI)
}

func bufferViewBytes(doc *gltf.Document, idx uint32) ([]byte, error) {
	if int(idx) >= len(doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", idx)
	}
	bv := doc.BufferViews[idx]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	data := doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if int(end) > len(data) {
		return nil, fmt.Errorf("buffer view %d exceeds buffer length", idx)
	}
	return data[bv.ByteOffset:end], nil
}

// loadNodes resolves local TRS/matrix transforms into world matrices.
func loadNodes(doc *gltf.Document) []*Node {
	locals := make([]math.Mat4, len(doc.Nodes))
	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i, n := range doc.Nodes {
		locals[i] = localMatrix(n)
		for _, c := range n.Children {
			if int(c) < len(parents) {
				parents[c] = i
			}
		}
	}

	nodes := make([]*Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		nodes[i] = &Node{Name: n.Name, Index: i}
	}

	var resolve func(i int) math.Mat4
	worlds := make([]*math.Mat4, len(doc.Nodes))
	resolve = func(i int) math.Mat4 {
		if worlds[i] != nil {
			return *worlds[i]
		}
		w := locals[i]
		if p := parents[i]; p >= 0 {
			w = resolve(p).Mul(locals[i])
		}
		worlds[i] = &w
		return w
	}
	for i := range nodes {
		nodes[i].World = resolve(i)
	}
	return nodes
}

func localMatrix(n *gltf.Node) math.Mat4 {
	if mtx := n.MatrixOrDefault(); mtx != gltf.DefaultMatrix {
		var m math.Mat4
		for i, v := range mtx {
			m[i] = float32(v)
		}
		return m
	}
	tr := n.TranslationOrDefault()
	rot := n.RotationOrDefault()
	sc := n.ScaleOrDefault()
	t := math.Vec3{X: float32(tr[0]), Y: float32(tr[1]), Z: float32(tr[2])}
	r := math.Quat{X: float32(rot[0]), Y: float32(rot[1]), Z: float32(rot[2]), W: float32(rot[3])}
	s := math.Vec3{X: float32(sc[0]), Y: float32(sc[1]), Z: float32(sc[2])}
	return math.Compose(t, r, s)
}

func loadSkin(doc *gltf.Document, gs *gltf.Skin, nodes []*Node) (*Skin, error) {
	s := &Skin{}
	for _, j := range gs.Joints {
		if int(j) >= len(nodes) {
			return nil, fmt.Errorf("joint node %d out of range", j)
		}
		s.Joints = append(s.Joints, nodes[j])
	}
	if gs.InverseBindMatrices != nil {
		ibms, err := readMat4Accessor(doc, *gs.InverseBindMatrices)
		if err != nil {
			return nil, fmt.Errorf("inverse bind matrices: %w", err)
		}
		s.InverseBind = ibms
	} else {
		s.InverseBind = make([]math.Mat4, len(s.Joints))
		for i := range s.InverseBind {
			s.InverseBind[i] = math.Identity()
		}
	}
	if len(s.InverseBind) != len(s.Joints) {
		return nil, fmt.Errorf("%d inverse bind matrices for %d joints", len(s.InverseBind), len(s.Joints))
	}
	return s, nil
}

// readMat4Accessor reads a tightly packed float32 MAT4 accessor.
func readMat4Accessor(doc *gltf.Document, idx uint32) ([]math.Mat4, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.Type != gltf.AccessorMat4 || acc.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("accessor %d is not a float MAT4", idx)
	}
	if acc.BufferView == nil {
		return nil, fmt.Errorf("accessor %d has no buffer view", idx)
	}
	raw, err := bufferViewBytes(doc, *acc.BufferView)
	if err != nil {
		return nil, err
	}
	raw = raw[acc.ByteOffset:]
	need := int(acc.Count) * 64
	if len(raw) < need {
		return nil, fmt.Errorf("accessor %d data truncated", idx)
	}
	out := make([]math.Mat4, acc.Count)
	for i := range out {
		for c := 0; c < 16; c++ {
			bits := binary.LittleEndian.Uint32(raw[i*64+c*4:])
			out[i][c] = stdmath.Float32frombits(bits)
		}
	}
	return out, nil
}

// accessorAt bounds-checks an accessor reference before use; a
// malformed container must surface as an error, not a panic.
func accessorAt(doc *gltf.Document, idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	return doc.Accessors[idx], nil
}

func loadPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*Geometry, error) {
	g := NewGeometry()

	readInto := func(attrs gltf.Attribute, dst map[string]*Attribute) error {
		if idx, ok := attrs[gltf.POSITION]; ok {
			acc, err := accessorAt(doc, idx)
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			pos, err := modeler.ReadPosition(doc, acc, nil)
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			dst[AttrPosition] = flatten3(pos)
		}
		if idx, ok := attrs[gltf.NORMAL]; ok {
			acc, err := accessorAt(doc, idx)
			if err != nil {
				return fmt.Errorf("normal: %w", err)
			}
			n, err := modeler.ReadNormal(doc, acc, nil)
			if err != nil {
				return fmt.Errorf("normal: %w", err)
			}
			dst[AttrNormal] = flatten3(n)
		}
		return nil
	}

	if err := readInto(prim.Attributes, g.Attributes); err != nil {
		return nil, err
	}
	if _, ok := g.Attributes[AttrPosition]; !ok {
		return nil, fmt.Errorf("missing POSITION attribute")
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acc, err := accessorAt(doc, idx)
		if err != nil {
			return nil, fmt.Errorf("uv: %w", err)
		}
		uv, err := modeler.ReadTextureCoord(doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("uv: %w", err)
		}
		g.Attributes[AttrUV] = flatten2(uv)
	}
	if idx, ok := prim.Attributes[gltf.JOINTS_0]; ok {
		acc, err := accessorAt(doc, idx)
		if err != nil {
			return nil, fmt.Errorf("joints: %w", err)
		}
		joints, err := modeler.ReadJoints(doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("joints: %w", err)
		}
		g.Attributes[AttrJoints] = flattenJoints(joints)
	}
	if idx, ok := prim.Attributes[gltf.WEIGHTS_0]; ok {
		acc, err := accessorAt(doc, idx)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		weights, err := modeler.ReadWeights(doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		g.Attributes[AttrWeights] = flatten4(weights)
	}

	if prim.Indices != nil {
		acc, err := accessorAt(doc, *prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		indices, err := modeler.ReadIndices(doc, acc, nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		g.Index = indices
	}

	for ti, target := range prim.Targets {
		mt := MorphTarget{
			Name:       fmt.Sprintf("target%d", ti),
			Attributes: map[string]*Attribute{},
		}
		if err := readInto(target, mt.Attributes); err != nil {
			return nil, fmt.Errorf("morph target %d: %w", ti, err)
		}
		g.MorphTargets = append(g.MorphTargets, mt)
	}
	return g, nil
}

func flatten2(in [][2]float32) *Attribute {
	a := &Attribute{ItemSize: 2, Data: make([]float32, 0, len(in)*2)}
	for _, v := range in {
		a.Data = append(a.Data, v[0], v[1])
	}
	return a
}

func flatten3(in [][3]float32) *Attribute {
	a := &Attribute{ItemSize: 3, Data: make([]float32, 0, len(in)*3)}
	for _, v := range in {
		a.Data = append(a.Data, v[0], v[1], v[2])
	}
	return a
}

func flatten4(in [][4]float32) *Attribute {
	a := &Attribute{ItemSize: 4, Data: make([]float32, 0, len(in)*4)}
	for _, v := range in {
		a.Data = append(a.Data, v[0], v[1], v[2], v[3])
	}
	return a
}

func flattenJoints(in [][4]uint16) *Attribute {
	a := &Attribute{ItemSize: 4, Data: make([]float32, 0, len(in)*4)}
	for _, v := range in {
		a.Data = append(a.Data, float32(v[0]), float32(v[1]), float32(v[2]), float32(v[3]))
	}
	return a
}

// loadMaterial lifts a glTF material plus its MToon extension into a
// descriptor. Absent extension fields keep the documented defaults.
func loadMaterial(gm *gltf.Material, index int, texAt func(int) *mtoon.Texture) *mtoon.Material {
	mat := mtoon.NewMaterial(gm.Name)
	mat.Index = index

	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			mat.BaseColorFactor = *pbr.BaseColorFactor
		}
		if pbr.BaseColorTexture != nil {
			mat.Textures[mtoon.SlotBaseColor] = texAt(int(pbr.BaseColorTexture.Index))
		}
	}
	if gm.NormalTexture != nil && gm.NormalTexture.Index != nil {
		mat.Textures[mtoon.SlotNormal] = texAt(int(*gm.NormalTexture.Index))
		if gm.NormalTexture.Scale != nil {
			mat.NormalScale = float32(*gm.NormalTexture.Scale)
		}
	}
	if gm.EmissiveTexture != nil {
		mat.Textures[mtoon.SlotEmissive] = texAt(int(gm.EmissiveTexture.Index))
	}
	mat.EmissiveFactor = gm.EmissiveFactor

	switch gm.AlphaMode {
	case gltf.AlphaMask:
		mat.AlphaMode = mtoon.AlphaMask
	case gltf.AlphaBlend:
		mat.AlphaMode = mtoon.AlphaBlend
	}
	if gm.AlphaCutoff != nil {
		mat.AlphaCutoff = float32(*gm.AlphaCutoff)
	}
	mat.DoubleSided = gm.DoubleSided

	if raw, ok := gm.Extensions[ExtEmissiveStrength]; ok {
		var es emissiveStrengthExt
		if data, ok := raw.(json.RawMessage); ok && json.Unmarshal(data, &es) == nil && es.EmissiveStrength != nil {
			mat.EmissiveStrength = *es.EmissiveStrength
		}
	}

	raw, ok := gm.Extensions[ExtVRMMToon]
	if !ok {
		return mat
	}
	data, ok := raw.(json.RawMessage)
	if !ok {
		return mat
	}
	var ext mtoonExt
	if err := json.Unmarshal(data, &ext); err != nil {
		logger.Warn("malformed MToon extension", zap.String("material", gm.Name), zap.Error(err))
		return mat
	}
	mat.MToon = true

	setTex := func(slot mtoon.TextureSlot, ref *textureRef) {
		if ref != nil && ref.Index != nil {
			mat.Textures[slot] = texAt(*ref.Index)
		}
	}
	setTex(mtoon.SlotShadeMultiply, ext.ShadeMultiplyTexture)
	setTex(mtoon.SlotShadingShift, ext.ShadingShiftTexture)
	setTex(mtoon.SlotMatcap, ext.MatcapTexture)
	setTex(mtoon.SlotRimMultiply, ext.RimMultiplyTexture)
	setTex(mtoon.SlotOutlineWidthMultiply, ext.OutlineWidthMultiplyTexture)
	setTex(mtoon.SlotUVAnimationMask, ext.UVAnimationMaskTexture)

	setF := func(dst *float32, src *float32) {
		if src != nil {
			*dst = *src
		}
	}
	setV := func(dst *[3]float32, src *[3]float32) {
		if src != nil {
			*dst = *src
		}
	}
	setV(&mat.ShadeColorFactor, ext.ShadeColorFactor)
	setF(&mat.ShadingShiftFactor, ext.ShadingShiftFactor)
	setF(&mat.ShadingToonyFactor, ext.ShadingToonyFactor)
	setF(&mat.GIEqualizationFactor, ext.GIEqualizationFactor)
	setV(&mat.MatcapFactor, ext.MatcapFactor)
	setV(&mat.ParametricRimColorFactor, ext.ParametricRimColorFactor)
	setF(&mat.RimLightingMixFactor, ext.RimLightingMixFactor)
	setF(&mat.ParametricRimFresnelPowerFactor, ext.ParametricRimFresnelPowerFactor)
	setF(&mat.ParametricRimLiftFactor, ext.ParametricRimLiftFactor)
	if ext.OutlineWidthMode != "" {
		mat.OutlineWidthMode = mtoon.OutlineWidthMode(ext.OutlineWidthMode)
	}
	setF(&mat.OutlineWidthFactor, ext.OutlineWidthFactor)
	setV(&mat.OutlineColorFactor, ext.OutlineColorFactor)
	setF(&mat.OutlineLightingMixFactor, ext.OutlineLightingMixFactor)
	setF(&mat.UVAnimationScrollXSpeed, ext.UVAnimationScrollXSpeedFactor)
	setF(&mat.UVAnimationScrollYSpeed, ext.UVAnimationScrollYSpeedFactor)
	setF(&mat.UVAnimationRotationSpeed, ext.UVAnimationRotationSpeedFactor)
	if ext.TransparentWithZWrite != nil {
		mat.TransparentWithZWrite = *ext.TransparentWithZWrite
	}
	return mat
}
