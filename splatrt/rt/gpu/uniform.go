package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gekko3d/splat/splatrt/rt/core"
)

// Flag bits read by the fragment shader. Positions are part of the shader contract.
const (
	FlagBaseColorTexture         uint32 = 1 << 0
	FlagEmissiveTexture          uint32 = 1 << 1
	FlagMetallicRoughnessTexture uint32 = 1 << 2
	FlagOcclusionTexture         uint32 = 1 << 3
	FlagDoubleSided              uint32 = 1 << 4
	FlagUnlit                    uint32 = 1 << 5
	FlagTwoComponentNormalMap    uint32 = 1 << 6
	FlagFlipNormalMapY           uint32 = 1 << 7

	// Alpha modes are one-hot, exactly one is set.
	FlagAlphaModeOpaque          uint32 = 1 << 8
	FlagAlphaModeMask            uint32 = 1 << 9
	FlagAlphaModeBlend           uint32 = 1 << 10
	FlagAlphaModePremultiplied   uint32 = 1 << 11
	FlagAlphaModeAdd             uint32 = 1 << 12
	FlagAlphaModeMultiply        uint32 = 1 << 13
	FlagAlphaModeAlphaToCoverage uint32 = 1 << 14

	FlagAlphaModeBits uint32 = FlagAlphaModeOpaque | FlagAlphaModeMask | FlagAlphaModeBlend |
		FlagAlphaModePremultiplied | FlagAlphaModeAdd | FlagAlphaModeMultiply | FlagAlphaModeAlphaToCoverage
)

// DefaultAlphaCutoff follows the glTF default.
const DefaultAlphaCutoff float32 = 0.5

// UniformSize is the WGSL size of TriplanarMaterialUniform, rounded to 16 bytes.
const UniformSize = 64

// UniformRecord matches the WGSL TriplanarMaterialUniform struct.
type UniformRecord struct {
	BaseColor   [4]float32 // offset 0
	Emissive    [4]float32 // offset 16
	Roughness   float32    // offset 32
	Metallic    float32    // offset 36
	Reflectance float32    // offset 40
	Flags       uint32     // offset 44
	AlphaCutoff float32    // offset 48
	UvScale     float32    // offset 52
}

func (u *UniformRecord) Size() int {
	return UniformSize
}

// Marshal serializes the record for upload, zero padded to UniformSize.
func (u *UniformRecord) Marshal() []byte {
	buf := make([]byte, UniformSize)
	putF := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
	}
	for i := 0; i < 4; i++ {
		putF(i*4, u.BaseColor[i])
		putF(16+i*4, u.Emissive[i])
	}
	putF(32, u.Roughness)
	putF(36, u.Metallic)
	putF(40, u.Reflectance)
	binary.LittleEndian.PutUint32(buf[44:48], u.Flags)
	putF(48, u.AlphaCutoff)
	putF(52, u.UvScale)
	return buf
}

// SpecializationKey selects a compiled pipeline variant.
type SpecializationKey struct {
	NormalMap bool
	CullMode  core.CullMode
	Biplanar  bool
}

func (k SpecializationKey) String() string {
	return fmt.Sprintf("normal_map=%t cull=%s biplanar=%t", k.NormalMap, k.CullMode, k.Biplanar)
}

// KeyFor derives the specialization key of a material.
func KeyFor(m *core.Material) SpecializationKey {
	return SpecializationKey{
		NormalMap: m.NormalMapTexture.Valid(),
		CullMode:  m.CullMode,
		Biplanar:  m.Biplanar,
	}
}

// Derive builds the uniform record and specialization key for a material.
// normalFormat is the resolved class of the normal map texture, or nil when unknown.
// It never fails and touches no GPU state.
func Derive(m *core.Material, normalFormat *TextureFormatClass) (UniformRecord, SpecializationKey) {
	var flags uint32
	if m.BaseColorTexture.Valid() {
		flags |= FlagBaseColorTexture
	}
	if m.EmissiveTexture.Valid() {
		flags |= FlagEmissiveTexture
	}
	if m.MetallicRoughnessTexture.Valid() {
		flags |= FlagMetallicRoughnessTexture
	}
	if m.OcclusionTexture.Valid() {
		flags |= FlagOcclusionTexture
	}
	if m.DoubleSided {
		flags |= FlagDoubleSided
	}
	if m.Unlit {
		flags |= FlagUnlit
	}
	if m.NormalMapTexture.Valid() {
		if normalFormat != nil && *normalFormat == FormatClassTwoComponent {
			flags |= FlagTwoComponentNormalMap
		}
		if m.FlipNormalMapY {
			flags |= FlagFlipNormalMapY
		}
	}

	alphaCutoff := DefaultAlphaCutoff
	switch m.AlphaMode.Kind {
	case core.AlphaModeMask:
		alphaCutoff = m.AlphaMode.Cutoff
		flags |= FlagAlphaModeMask
	case core.AlphaModeBlend:
		flags |= FlagAlphaModeBlend
	case core.AlphaModePremultiplied:
		flags |= FlagAlphaModePremultiplied
	case core.AlphaModeAdd:
		flags |= FlagAlphaModeAdd
	case core.AlphaModeMultiply:
		flags |= FlagAlphaModeMultiply
	case core.AlphaModeAlphaToCoverage:
		flags |= FlagAlphaModeAlphaToCoverage
	default:
		flags |= FlagAlphaModeOpaque
	}

	uniform := UniformRecord{
		BaseColor:   m.BaseColor,
		Emissive:    m.Emissive,
		Roughness:   m.PerceptualRoughness,
		Metallic:    m.Metallic,
		Reflectance: m.Reflectance,
		Flags:       flags,
		AlphaCutoff: alphaCutoff,
		UvScale:     m.UvScale,
	}
	return uniform, KeyFor(m)
}
