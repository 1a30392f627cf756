package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
)

// MaterialGroup is the bind group index of the material in the pipeline layout.
const MaterialGroup = 1

// UniformBinding holds the TriplanarMaterialUniform buffer.
const UniformBinding = 0

// TextureRole is one of the optional material textures.
type TextureRole uint8

const (
	RoleBaseColor TextureRole = iota
	RoleEmissive
	RoleMetallicRoughness
	RoleOcclusion
	RoleNormalMap
)

// TextureRoles lists every role in binding order.
var TextureRoles = []TextureRole{RoleBaseColor, RoleEmissive, RoleMetallicRoughness, RoleOcclusion, RoleNormalMap}

func (r TextureRole) String() string {
	switch r {
	case RoleBaseColor:
		return "base_color"
	case RoleEmissive:
		return "emissive"
	case RoleMetallicRoughness:
		return "metallic_roughness"
	case RoleOcclusion:
		return "occlusion"
	case RoleNormalMap:
		return "normal_map"
	}
	return "unknown"
}

// Bindings returns the texture and sampler binding slots of the role.
func (r TextureRole) Bindings() (texture, sampler uint32) {
	switch r {
	case RoleBaseColor:
		return 1, 2
	case RoleEmissive:
		return 3, 4
	case RoleMetallicRoughness:
		return 5, 6
	case RoleOcclusion:
		return 7, 8
	default:
		return 9, 10
	}
}

// Handle picks the texture bound to the role on m.
func (r TextureRole) Handle(m *core.Material) core.TextureHandle {
	switch r {
	case RoleBaseColor:
		return m.BaseColorTexture
	case RoleEmissive:
		return m.EmissiveTexture
	case RoleMetallicRoughness:
		return m.MetallicRoughnessTexture
	case RoleOcclusion:
		return m.OcclusionTexture
	default:
		return m.NormalMapTexture
	}
}

// MaterialBindGroupLayoutEntries describes the material bind group: the uniform at
// binding 0 followed by one 2D-array texture and sampler pair per role.
func MaterialBindGroupLayoutEntries() []wgpu.BindGroupLayoutEntry {
	entries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    UniformBinding,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: false,
				MinBindingSize:   UniformSize,
			},
		},
	}
	for _, role := range TextureRoles {
		tex, smp := role.Bindings()
		entries = append(entries,
			wgpu.BindGroupLayoutEntry{
				Binding:    tex,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2DArray,
					Multisampled:  false,
				},
			},
			wgpu.BindGroupLayoutEntry{
				Binding:    smp,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		)
	}
	return entries
}

// SplatSamplerDescriptor repeats on every axis and filters linearly, which the
// triplanar projection relies on for seamless tiling.
func SplatSamplerDescriptor() *wgpu.SamplerDescriptor {
	return &wgpu.SamplerDescriptor{
		Label:         "SplatSampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	}
}

// MaterialSamplers resolves the sampler descriptor of every role. Roles with no
// descriptor, or a nil one, sample with SplatSamplerDescriptor.
func MaterialSamplers(descs map[TextureRole]*wgpu.SamplerDescriptor) map[TextureRole]wgpu.SamplerDescriptor {
	out := make(map[TextureRole]wgpu.SamplerDescriptor, len(TextureRoles))
	for _, role := range TextureRoles {
		if d := descs[role]; d != nil {
			out[role] = *d
			continue
		}
		out[role] = *SplatSamplerDescriptor()
	}
	return out
}

// MaterialBindGroupEntries binds the uniform and one view and sampler per role,
// in the order of MaterialBindGroupLayoutEntries.
func MaterialBindGroupEntries(uniform *wgpu.Buffer, views map[TextureRole]*wgpu.TextureView, samplers map[TextureRole]*wgpu.Sampler) []wgpu.BindGroupEntry {
	entries := []wgpu.BindGroupEntry{
		{Binding: UniformBinding, Buffer: uniform, Size: UniformSize},
	}
	for _, role := range TextureRoles {
		tex, smp := role.Bindings()
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: tex, TextureView: views[role]},
			wgpu.BindGroupEntry{Binding: smp, Sampler: samplers[role]},
		)
	}
	return entries
}
