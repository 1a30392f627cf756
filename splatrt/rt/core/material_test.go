package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMaterial(t *testing.T) {
	m := NewMaterial()

	assert.Equal(t, mgl32.Vec4{1, 1, 1, 1}, m.BaseColor)
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, m.Emissive)
	assert.Equal(t, float32(0.089), m.PerceptualRoughness)
	assert.Equal(t, float32(0.01), m.Metallic)
	assert.Equal(t, float32(0.5), m.Reflectance)
	assert.Equal(t, float32(1.0), m.UvScale)
	assert.Equal(t, CullBack, m.CullMode)
	assert.Equal(t, AlphaModeOpaque, m.AlphaMode.Kind)
	assert.Empty(t, m.Textures())
	assert.Empty(t, m.Validate())
}

func TestNewMaterial_Options(t *testing.T) {
	albedo, normal := NewTextureHandle(), NewTextureHandle()
	m := NewMaterial(
		WithBaseColorTexture(albedo),
		WithEmissiveTexture(albedo),
		WithNormalMapTexture(normal),
		WithRoughness(0.9),
		WithMetallic(0.05),
		WithAlphaMode(AlphaMask(0.3)),
		WithCullMode(CullNone),
		WithDoubleSided(true),
	)

	assert.Equal(t, albedo, m.BaseColorTexture)
	assert.Equal(t, albedo, m.EmissiveTexture)
	assert.False(t, m.OcclusionTexture.Valid())
	assert.Equal(t, float32(0.9), m.PerceptualRoughness)
	assert.Equal(t, float32(0.05), m.Metallic)
	assert.Equal(t, AlphaMask(0.3), m.AlphaMode)
	assert.Equal(t, CullNone, m.CullMode)
	assert.True(t, m.DoubleSided)
	assert.Equal(t, []TextureHandle{albedo, albedo, normal}, m.Textures())
}

func TestMaterial_ValidateIsAdvisory(t *testing.T) {
	m := NewMaterial(WithUvScale(0), WithMetallic(2), WithFlipNormalMapY(true))
	warnings := m.Validate()
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "metallic")
	assert.Contains(t, warnings[1], "uv_scale")
	assert.Contains(t, warnings[2], "flip_normal_map_y")
}

func TestTextureHandle(t *testing.T) {
	var zero TextureHandle
	assert.False(t, zero.Valid())
	assert.Equal(t, "<none>", zero.String())

	h := NewTextureHandle()
	assert.True(t, h.Valid())
	assert.NotEqual(t, h, NewTextureHandle())
	assert.Len(t, h.String(), 36)
}

func TestAlphaMode_String(t *testing.T) {
	assert.Equal(t, "Opaque", AlphaOpaque().String())
	assert.Equal(t, "Mask(0.25)", AlphaMask(0.25).String())
	assert.Equal(t, "AlphaToCoverage", AlphaCoverage().String())
}

func TestSrgbToLinear(t *testing.T) {
	c := SrgbToLinear(mgl32.Vec4{1, 0, 0.5, 0.7})
	assert.InDelta(t, 1.0, c[0], 1e-5)
	assert.InDelta(t, 0.0, c[1], 1e-6)
	assert.InDelta(t, 0.214, c[2], 1e-3)
	assert.Equal(t, float32(0.7), c[3])
}
