package gpu

import (
	"github.com/gekko3d/splat/splatrt/rt/core"
)

const (
	VertexShaderPath   = "shaders/triplanar_material_vert.wgsl"
	FragmentShaderPath = "shaders/triplanar_material_frag.wgsl"
)

// SurfaceMaterial is what the renderer needs from a material to draw it.
type SurfaceMaterial interface {
	Uniform(normalFormat *TextureFormatClass) UniformRecord
	Key() SpecializationKey
	VertexShader() string
	FragmentShader() string
	AlphaMode() core.AlphaMode
	DepthBias() float32
}

// TriplanarMaterial adapts a material descriptor to SurfaceMaterial.
type TriplanarMaterial struct {
	Desc *core.Material
}

var _ SurfaceMaterial = TriplanarMaterial{}

func (t TriplanarMaterial) Uniform(normalFormat *TextureFormatClass) UniformRecord {
	u, _ := Derive(t.Desc, normalFormat)
	return u
}

func (t TriplanarMaterial) Key() SpecializationKey {
	return KeyFor(t.Desc)
}

func (t TriplanarMaterial) VertexShader() string {
	return VertexShaderPath
}

func (t TriplanarMaterial) FragmentShader() string {
	return FragmentShaderPath
}

func (t TriplanarMaterial) AlphaMode() core.AlphaMode {
	return t.Desc.AlphaMode
}

func (t TriplanarMaterial) DepthBias() float32 {
	return t.Desc.DepthBias
}
