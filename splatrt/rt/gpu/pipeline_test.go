package gpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splatMesh(t *testing.T) *core.Mesh {
	t.Helper()
	m := core.NewMesh()
	require.NoError(t, m.InsertAttribute(core.AttributePosition, []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, m.InsertAttribute(core.AttributeNormal, []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}))
	require.NoError(t, m.InsertAttribute(core.AttributeMaterialWeights, []uint32{1, 2, 3}))
	m.Indices = []uint32{0, 1, 2}
	return m
}

func TestSpecializeLocations(t *testing.T) {
	mesh := splatMesh(t)
	cfg, err := Specialize(SpecializationKey{CullMode: core.CullBack}, mesh.Layout())
	require.NoError(t, err)

	require.Len(t, cfg.VertexBuffers, 1)
	vb := cfg.VertexBuffers[0]
	assert.Equal(t, uint64(28), vb.ArrayStride)
	require.Len(t, vb.Attributes, 3)

	assert.Equal(t, uint32(0), vb.Attributes[0].ShaderLocation)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, vb.Attributes[0].Format)
	assert.Equal(t, uint64(0), vb.Attributes[0].Offset)

	assert.Equal(t, uint32(1), vb.Attributes[1].ShaderLocation)
	assert.Equal(t, uint64(12), vb.Attributes[1].Offset)

	assert.Equal(t, uint32(2), vb.Attributes[2].ShaderLocation)
	assert.Equal(t, wgpu.VertexFormatUint32, vb.Attributes[2].Format)
	assert.Equal(t, uint64(24), vb.Attributes[2].Offset)

	assert.Equal(t, wgpu.CullModeBack, cfg.CullMode)
	assert.Empty(t, cfg.FragmentShaderDefs)
}

func TestSpecializeNormalMapDefine(t *testing.T) {
	cfg, err := Specialize(SpecializationKey{NormalMap: true}, splatMesh(t).Layout())
	require.NoError(t, err)
	assert.Equal(t, []string{NormalMapShaderDef}, cfg.FragmentShaderDefs)
	assert.Equal(t, "STANDARDMATERIAL_NORMAL_MAP", NormalMapShaderDef)
}

func TestSpecializeBiplanarDefine(t *testing.T) {
	cfg, err := Specialize(SpecializationKey{NormalMap: true, Biplanar: true}, splatMesh(t).Layout())
	require.NoError(t, err)
	assert.Equal(t, []string{NormalMapShaderDef, BiplanarShaderDef}, cfg.FragmentShaderDefs)

	cfg, err = Specialize(SpecializationKey{Biplanar: true}, splatMesh(t).Layout())
	require.NoError(t, err)
	assert.Equal(t, []string{"BIPLANAR"}, cfg.FragmentShaderDefs)
}

func TestKeyForBiplanar(t *testing.T) {
	m := core.NewMaterial(core.WithBiplanar(true), core.WithCullMode(core.CullNone))
	assert.Equal(t, SpecializationKey{CullMode: core.CullNone, Biplanar: true}, KeyFor(m))

	_, key := Derive(m, nil)
	assert.True(t, key.Biplanar)
	assert.NotEqual(t, key, KeyFor(core.NewMaterial(core.WithCullMode(core.CullNone))))
}

func TestSpecializeCullModes(t *testing.T) {
	layout := splatMesh(t).Layout()
	for in, want := range map[core.CullMode]wgpu.CullMode{
		core.CullNone:  wgpu.CullModeNone,
		core.CullFront: wgpu.CullModeFront,
		core.CullBack:  wgpu.CullModeBack,
	} {
		cfg, err := Specialize(SpecializationKey{CullMode: in}, layout)
		require.NoError(t, err)
		assert.Equal(t, want, cfg.CullMode, in.String())
	}
}

func TestSpecializeMissingAttribute(t *testing.T) {
	for _, attr := range []core.MeshVertexAttribute{core.AttributePosition, core.AttributeNormal, core.AttributeMaterialWeights} {
		mesh := splatMesh(t)
		mesh.RemoveAttribute(attr)

		cfg, err := Specialize(SpecializationKey{}, mesh.Layout())
		assert.Nil(t, cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingVertexAttribute))

		var missing *MissingVertexAttributeError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, attr.Id, missing.Attribute.Id)
	}
}

func TestSpecializeFormatMismatch(t *testing.T) {
	layout := core.VertexLayout{
		Stride: 28,
		Attributes: []core.LayoutAttribute{
			{MeshVertexAttribute: core.AttributePosition, Offset: 0},
			{MeshVertexAttribute: core.AttributeNormal, Offset: 12},
			{MeshVertexAttribute: core.MeshVertexAttribute{
				Name: "MaterialWeights", Id: core.AttributeMaterialWeights.Id, Format: core.VertexFormatFloat32x4,
			}, Offset: 24},
		},
	}
	_, err := Specialize(SpecializationKey{}, layout)
	assert.True(t, errors.Is(err, ErrVertexFormatMismatch))
	assert.False(t, errors.Is(err, ErrMissingVertexAttribute))
}

func TestBlendStateFor(t *testing.T) {
	assert.Nil(t, BlendStateFor(core.AlphaOpaque()))
	assert.Nil(t, BlendStateFor(core.AlphaMask(0.5)))
	assert.Nil(t, BlendStateFor(core.AlphaCoverage()))

	blend := BlendStateFor(core.AlphaBlend())
	require.NotNil(t, blend)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, blend.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, blend.Color.DstFactor)

	add := BlendStateFor(core.AlphaAdd())
	require.NotNil(t, add)
	assert.Equal(t, wgpu.BlendFactorOne, add.Color.DstFactor)

	mul := BlendStateFor(core.AlphaMultiply())
	require.NotNil(t, mul)
	assert.Equal(t, wgpu.BlendFactorDst, mul.Color.SrcFactor)
}

func TestPipelineCache(t *testing.T) {
	cache := NewPipelineCache()
	layout := splatMesh(t).Layout()
	key := SpecializationKey{NormalMap: true, CullMode: core.CullBack}

	a, err := cache.Get(key, layout)
	require.NoError(t, err)
	b, err := cache.Get(key, layout)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := cache.Get(SpecializationKey{CullMode: core.CullBack}, layout)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, cache.Len())

	hits, misses := cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestPipelineCacheDoesNotCacheFailures(t *testing.T) {
	cache := NewPipelineCache()
	mesh := splatMesh(t)
	mesh.RemoveAttribute(core.AttributeMaterialWeights)

	_, err := cache.Get(SpecializationKey{}, mesh.Layout())
	require.Error(t, err)
	_, err = cache.Get(SpecializationKey{}, mesh.Layout())
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestMaterialBindGroupLayoutEntries(t *testing.T) {
	entries := MaterialBindGroupLayoutEntries()
	require.Len(t, entries, 11)

	assert.Equal(t, uint32(UniformBinding), entries[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(UniformSize), entries[0].Buffer.MinBindingSize)

	seen := map[uint32]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Binding], "duplicate binding %d", e.Binding)
		seen[e.Binding] = true
	}
	for _, role := range TextureRoles {
		tex, smp := role.Bindings()
		assert.Equal(t, wgpu.TextureViewDimension2DArray, entries[tex].Texture.ViewDimension, role.String())
		assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[smp].Sampler.Type, role.String())
	}
}

func TestTextureRoleHandle(t *testing.T) {
	normal := core.NewTextureHandle()
	m := core.NewMaterial(core.WithNormalMapTexture(normal))
	assert.Equal(t, normal, RoleNormalMap.Handle(m))
	assert.False(t, RoleBaseColor.Handle(m).Valid())
}

func TestSplatSamplerDescriptor(t *testing.T) {
	d := SplatSamplerDescriptor()
	assert.Equal(t, wgpu.AddressModeRepeat, d.AddressModeU)
	assert.Equal(t, wgpu.AddressModeRepeat, d.AddressModeV)
	assert.Equal(t, wgpu.AddressModeRepeat, d.AddressModeW)
	assert.Equal(t, wgpu.FilterModeLinear, d.MagFilter)
	assert.Equal(t, wgpu.FilterModeLinear, d.MinFilter)
	assert.Equal(t, wgpu.MipmapFilterModeLinear, d.MipmapFilter)
}

func TestClassifyFormat(t *testing.T) {
	assert.Equal(t, FormatClassTwoComponent, ClassifyFormat(wgpu.TextureFormatRG8Unorm))
	assert.Equal(t, FormatClassTwoComponent, ClassifyFormat(wgpu.TextureFormatBC5RGUnorm))
	assert.Equal(t, FormatClassTwoComponent, ClassifyFormat(wgpu.TextureFormatEACRG11Unorm))
	assert.Equal(t, FormatClassTwoComponent, ClassifyFormat(TextureFormatRG16Unorm))
	assert.Equal(t, FormatClassOneComponent, ClassifyFormat(wgpu.TextureFormatR8Unorm))
	assert.Equal(t, FormatClassColor, ClassifyFormat(wgpu.TextureFormatRGBA8UnormSrgb))
	assert.Equal(t, FormatClassOther, ClassifyFormat(wgpu.TextureFormatDepth32Float))
	assert.Equal(t, FormatClassOther, ClassifyFormat(wgpu.TextureFormatRGBA8Snorm))
}

func TestMaterialSamplers(t *testing.T) {
	nearest := &wgpu.SamplerDescriptor{
		Label:        "Nearest",
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeNearest,
		MinFilter:    wgpu.FilterModeNearest,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
	}

	resolved := MaterialSamplers(map[TextureRole]*wgpu.SamplerDescriptor{
		RoleNormalMap: nearest,
		RoleOcclusion: nil,
	})

	require.Len(t, resolved, len(TextureRoles))
	assert.Equal(t, *nearest, resolved[RoleNormalMap])
	assert.Equal(t, *SplatSamplerDescriptor(), resolved[RoleOcclusion])
	assert.Equal(t, *SplatSamplerDescriptor(), resolved[RoleBaseColor])
}

func TestMaterialBindGroupEntries(t *testing.T) {
	uniform := &wgpu.Buffer{}
	views := map[TextureRole]*wgpu.TextureView{}
	samplers := map[TextureRole]*wgpu.Sampler{}
	for _, role := range TextureRoles {
		views[role] = &wgpu.TextureView{}
		samplers[role] = &wgpu.Sampler{}
	}

	entries := MaterialBindGroupEntries(uniform, views, samplers)
	layout := MaterialBindGroupLayoutEntries()
	require.Len(t, entries, len(layout))

	for i := range entries {
		assert.Equal(t, layout[i].Binding, entries[i].Binding)
	}
	assert.Same(t, uniform, entries[0].Buffer)
	assert.Equal(t, uint64(UniformSize), entries[0].Size)
	for i, role := range TextureRoles {
		tex, smp := role.Bindings()
		assert.Same(t, views[role], entries[1+2*i].TextureView, role.String())
		assert.Equal(t, tex, entries[1+2*i].Binding)
		assert.Same(t, samplers[role], entries[2+2*i].Sampler, role.String())
		assert.Equal(t, smp, entries[2+2*i].Binding)
	}
}
