package core

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// TextureHandle identifies a GPU-resident 2D array texture owned by the asset server.
// The zero value means "no texture".
type TextureHandle struct {
	id uuid.UUID
}

func NewTextureHandle() TextureHandle {
	return TextureHandle{id: uuid.New()}
}

func (h TextureHandle) Valid() bool {
	return h.id != uuid.Nil
}

func (h TextureHandle) String() string {
	if !h.Valid() {
		return "<none>"
	}
	return h.id.String()
}

type AlphaModeKind uint8

const (
	AlphaModeOpaque AlphaModeKind = iota
	AlphaModeMask
	AlphaModeBlend
	AlphaModePremultiplied
	AlphaModeAdd
	AlphaModeMultiply
	AlphaModeAlphaToCoverage
)

var alphaModeNames = [...]string{
	AlphaModeOpaque:          "Opaque",
	AlphaModeMask:            "Mask",
	AlphaModeBlend:           "Blend",
	AlphaModePremultiplied:   "Premultiplied",
	AlphaModeAdd:             "Add",
	AlphaModeMultiply:        "Multiply",
	AlphaModeAlphaToCoverage: "AlphaToCoverage",
}

func (k AlphaModeKind) String() string {
	if int(k) < len(alphaModeNames) {
		return alphaModeNames[k]
	}
	return fmt.Sprintf("AlphaModeKind(%d)", uint8(k))
}

// AlphaMode is a tagged variant; Cutoff is only read for AlphaModeMask.
type AlphaMode struct {
	Kind   AlphaModeKind
	Cutoff float32
}

func AlphaOpaque() AlphaMode             { return AlphaMode{Kind: AlphaModeOpaque} }
func AlphaMask(cutoff float32) AlphaMode { return AlphaMode{Kind: AlphaModeMask, Cutoff: cutoff} }
func AlphaBlend() AlphaMode              { return AlphaMode{Kind: AlphaModeBlend} }
func AlphaPremultiplied() AlphaMode      { return AlphaMode{Kind: AlphaModePremultiplied} }
func AlphaAdd() AlphaMode                { return AlphaMode{Kind: AlphaModeAdd} }
func AlphaMultiply() AlphaMode           { return AlphaMode{Kind: AlphaModeMultiply} }
func AlphaCoverage() AlphaMode           { return AlphaMode{Kind: AlphaModeAlphaToCoverage} }

func (a AlphaMode) String() string {
	if a.Kind == AlphaModeMask {
		return fmt.Sprintf("Mask(%g)", a.Cutoff)
	}
	return a.Kind.String()
}

// CullMode selects which faces the rasterizer discards. CullNone disables culling.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

func (c CullMode) String() string {
	switch c {
	case CullFront:
		return "Front"
	case CullBack:
		return "Back"
	default:
		return "None"
	}
}

// Material describes a splatted surface. Every texture is a 2D array with up to
// four layers, one per blend weight lane. Colours are linear RGBA.
type Material struct {
	BaseColor mgl32.Vec4
	Emissive  mgl32.Vec4

	BaseColorTexture         TextureHandle
	EmissiveTexture          TextureHandle
	MetallicRoughnessTexture TextureHandle
	NormalMapTexture         TextureHandle
	OcclusionTexture         TextureHandle

	PerceptualRoughness float32
	Metallic            float32
	Reflectance         float32
	DepthBias           float32
	UvScale             float32

	// Only meaningful with a normal map.
	FlipNormalMapY bool
	DoubleSided    bool
	Unlit          bool
	AlphaMode      AlphaMode
	CullMode       CullMode
	// Biplanar samples two projections instead of three.
	Biplanar bool
}

type MaterialOption func(*Material)

// DefaultMaterial mirrors the host's standard material defaults.
func DefaultMaterial() Material {
	return Material{
		BaseColor:           mgl32.Vec4{1, 1, 1, 1},
		Emissive:            mgl32.Vec4{0, 0, 0, 1},
		PerceptualRoughness: 0.089,
		Metallic:            0.01,
		Reflectance:         0.5,
		DepthBias:           0,
		UvScale:             1.0,
		AlphaMode:           AlphaOpaque(),
		CullMode:            CullBack,
	}
}

func NewMaterial(opts ...MaterialOption) *Material {
	m := DefaultMaterial()
	for _, opt := range opts {
		opt(&m)
	}
	return &m
}

func WithBaseColor(c mgl32.Vec4) MaterialOption {
	return func(m *Material) { m.BaseColor = c }
}

func WithEmissive(c mgl32.Vec4) MaterialOption {
	return func(m *Material) { m.Emissive = c }
}

func WithBaseColorTexture(h TextureHandle) MaterialOption {
	return func(m *Material) { m.BaseColorTexture = h }
}

func WithEmissiveTexture(h TextureHandle) MaterialOption {
	return func(m *Material) { m.EmissiveTexture = h }
}

func WithMetallicRoughnessTexture(h TextureHandle) MaterialOption {
	return func(m *Material) { m.MetallicRoughnessTexture = h }
}

func WithNormalMapTexture(h TextureHandle) MaterialOption {
	return func(m *Material) { m.NormalMapTexture = h }
}

func WithOcclusionTexture(h TextureHandle) MaterialOption {
	return func(m *Material) { m.OcclusionTexture = h }
}

func WithRoughness(r float32) MaterialOption {
	return func(m *Material) { m.PerceptualRoughness = r }
}

func WithMetallic(v float32) MaterialOption {
	return func(m *Material) { m.Metallic = v }
}

func WithReflectance(v float32) MaterialOption {
	return func(m *Material) { m.Reflectance = v }
}

func WithDepthBias(b float32) MaterialOption {
	return func(m *Material) { m.DepthBias = b }
}

func WithUvScale(s float32) MaterialOption {
	return func(m *Material) { m.UvScale = s }
}

func WithFlipNormalMapY(flip bool) MaterialOption {
	return func(m *Material) { m.FlipNormalMapY = flip }
}

func WithDoubleSided(ds bool) MaterialOption {
	return func(m *Material) { m.DoubleSided = ds }
}

func WithUnlit(unlit bool) MaterialOption {
	return func(m *Material) { m.Unlit = unlit }
}

func WithAlphaMode(a AlphaMode) MaterialOption {
	return func(m *Material) { m.AlphaMode = a }
}

func WithCullMode(c CullMode) MaterialOption {
	return func(m *Material) { m.CullMode = c }
}

func WithBiplanar(biplanar bool) MaterialOption {
	return func(m *Material) { m.Biplanar = biplanar }
}

// Textures lists every bound texture handle in binding order, skipping absent ones.
func (m *Material) Textures() []TextureHandle {
	all := [...]TextureHandle{
		m.BaseColorTexture,
		m.EmissiveTexture,
		m.MetallicRoughnessTexture,
		m.OcclusionTexture,
		m.NormalMapTexture,
	}
	res := make([]TextureHandle, 0, len(all))
	for _, h := range all {
		if h.Valid() {
			res = append(res, h)
		}
	}
	return res
}

// Validate reports values that render wrong but do not break the pipeline.
// Nothing here is fatal.
func (m *Material) Validate() []string {
	var warnings []string
	unit := func(name string, v float32) {
		if math32.IsNaN(v) || v < 0 || v > 1 {
			warnings = append(warnings, fmt.Sprintf("%s %g outside [0, 1]", name, v))
		}
	}
	unit("perceptual_roughness", m.PerceptualRoughness)
	unit("metallic", m.Metallic)
	unit("reflectance", m.Reflectance)
	if math32.IsNaN(m.UvScale) || m.UvScale <= 0 {
		warnings = append(warnings, fmt.Sprintf("uv_scale %g should be positive", m.UvScale))
	}
	if m.AlphaMode.Kind == AlphaModeMask && (m.AlphaMode.Cutoff < 0 || m.AlphaMode.Cutoff > 1) {
		warnings = append(warnings, fmt.Sprintf("alpha cutoff %g outside [0, 1]", m.AlphaMode.Cutoff))
	}
	if m.FlipNormalMapY && !m.NormalMapTexture.Valid() {
		warnings = append(warnings, "flip_normal_map_y set without a normal map; ignored")
	}
	return warnings
}

// SrgbToLinear converts an sRGB-encoded colour to linear space. Alpha is kept as is.
func SrgbToLinear(c mgl32.Vec4) mgl32.Vec4 {
	conv := func(v float32) float32 {
		if v <= 0.04045 {
			return v / 12.92
		}
		return math32.Pow((v+0.055)/1.055, 2.4)
	}
	return mgl32.Vec4{conv(c[0]), conv(c[1]), conv(c[2]), c[3]}
}
