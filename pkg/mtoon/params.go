package mtoon

// TexelsPerSlot is the number of RGBA float32 texels a single
// material row occupies in the parameter lookup texture.
const TexelsPerSlot = 8

// ParameterField describes where one material parameter lives inside
// a material's row of the parameter texture: the texel index within
// the row, the first channel it occupies, and its component count.
type ParameterField struct {
	Name    string
	Texel   int // 0..TexelsPerSlot-1
	Channel int // 0..3, first RGBA channel used
	Count   int // components written
	Get     func(m *Material) [4]float32
}

// ParameterLayout is the fixed 19-entry table mapping every MToon
// scalar/vector parameter to its texel and channel subset. The layout
// is shared by all materials; row order is the consolidated slot order.
var ParameterLayout = []ParameterField{
	{"baseColorFactor", 0, 0, 4, func(m *Material) [4]float32 { return m.BaseColorFactor }},
	{"shadeColorFactor", 1, 0, 3, func(m *Material) [4]float32 { return vec3(m.ShadeColorFactor) }},
	{"shadingShiftFactor", 1, 3, 1, func(m *Material) [4]float32 { return scalar(m.ShadingShiftFactor) }},
	{"shadingToonyFactor", 2, 0, 1, func(m *Material) [4]float32 { return scalar(m.ShadingToonyFactor) }},
	{"giEqualizationFactor", 2, 1, 1, func(m *Material) [4]float32 { return scalar(m.GIEqualizationFactor) }},
	{"rimLightingMixFactor", 2, 2, 1, func(m *Material) [4]float32 { return scalar(m.RimLightingMixFactor) }},
	{"parametricRimFresnelPowerFactor", 2, 3, 1, func(m *Material) [4]float32 { return scalar(m.ParametricRimFresnelPowerFactor) }},
	{"parametricRimColorFactor", 3, 0, 3, func(m *Material) [4]float32 { return vec3(m.ParametricRimColorFactor) }},
	{"parametricRimLiftFactor", 3, 3, 1, func(m *Material) [4]float32 { return scalar(m.ParametricRimLiftFactor) }},
	{"matcapFactor", 4, 0, 3, func(m *Material) [4]float32 { return vec3(m.MatcapFactor) }},
	{"normalScale", 4, 3, 1, func(m *Material) [4]float32 { return scalar(m.NormalScale) }},
	{"emissiveFactor", 5, 0, 3, func(m *Material) [4]float32 { return vec3(m.EmissiveFactor) }},
	{"emissiveStrength", 5, 3, 1, func(m *Material) [4]float32 { return scalar(m.EmissiveStrength) }},
	{"outlineColorFactor", 6, 0, 3, func(m *Material) [4]float32 { return vec3(m.OutlineColorFactor) }},
	{"outlineWidthFactor", 6, 3, 1, func(m *Material) [4]float32 { return scalar(m.OutlineWidthFactor) }},
	{"uvAnimationScrollXSpeedFactor", 7, 0, 1, func(m *Material) [4]float32 { return scalar(m.UVAnimationScrollXSpeed) }},
	{"uvAnimationScrollYSpeedFactor", 7, 1, 1, func(m *Material) [4]float32 { return scalar(m.UVAnimationScrollYSpeed) }},
	{"uvAnimationRotationSpeedFactor", 7, 2, 1, func(m *Material) [4]float32 { return scalar(m.UVAnimationRotationSpeed) }},
	{"outlineLightingMixFactor", 7, 3, 1, func(m *Material) [4]float32 { return scalar(m.OutlineLightingMixFactor) }},
}

func scalar(v float32) [4]float32 { return [4]float32{v} }

func vec3(v [3]float32) [4]float32 { return [4]float32{v[0], v[1], v[2]} }
