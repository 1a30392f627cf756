package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
)

// NormalMapShaderDef enables normal map sampling in the fragment stage.
const (
	NormalMapShaderDef = "STANDARDMATERIAL_NORMAL_MAP"
	BiplanarShaderDef  = "BIPLANAR"
)

var (
	ErrMissingVertexAttribute = errors.New("missing vertex attribute")
	ErrVertexFormatMismatch   = errors.New("vertex attribute format mismatch")
)

type MissingVertexAttributeError struct {
	Attribute core.MeshVertexAttribute
	Location  uint32
}

func (e *MissingVertexAttributeError) Error() string {
	return fmt.Sprintf("%s: mesh has no %q for shader location %d", ErrMissingVertexAttribute, e.Attribute.Name, e.Location)
}

func (e *MissingVertexAttributeError) Is(target error) bool {
	return target == ErrMissingVertexAttribute
}

// RequiredAttribute binds a mesh attribute to a fixed shader location.
type RequiredAttribute struct {
	Attribute core.MeshVertexAttribute
	Location  uint32
}

// RequiredAttributes is the vertex contract of the splat shaders.
var RequiredAttributes = []RequiredAttribute{
	{Attribute: core.AttributePosition, Location: 0},
	{Attribute: core.AttributeNormal, Location: 1},
	{Attribute: core.AttributeMaterialWeights, Location: 2},
}

// PipelineConfig is the draw-time state for one specialization.
type PipelineConfig struct {
	Key                SpecializationKey
	VertexBuffers      []wgpu.VertexBufferLayout
	VertexShaderDefs   []string
	FragmentShaderDefs []string
	Topology           wgpu.PrimitiveTopology
	FrontFace          wgpu.FrontFace
	CullMode           wgpu.CullMode
}

// Specialize builds the pipeline configuration for key and the mesh vertex layout.
// Meshes lacking one of RequiredAttributes are rejected with ErrMissingVertexAttribute.
func Specialize(key SpecializationKey, layout core.VertexLayout) (*PipelineConfig, error) {
	attributes := make([]wgpu.VertexAttribute, 0, len(RequiredAttributes))
	for _, req := range RequiredAttributes {
		found, ok := layout.Find(req.Attribute.Id)
		if !ok {
			return nil, &MissingVertexAttributeError{Attribute: req.Attribute, Location: req.Location}
		}
		if found.Format != req.Attribute.Format {
			return nil, fmt.Errorf("%w: %q is %s, shader expects %s",
				ErrVertexFormatMismatch, found.Name, found.Format, req.Attribute.Format)
		}
		attributes = append(attributes, wgpu.VertexAttribute{
			Format:         WgpuVertexFormat(found.Format),
			Offset:         found.Offset,
			ShaderLocation: req.Location,
		})
	}

	cfg := &PipelineConfig{
		Key: key,
		VertexBuffers: []wgpu.VertexBufferLayout{{
			ArrayStride: layout.Stride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attributes,
		}},
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  WgpuCullMode(key.CullMode),
	}
	if key.NormalMap {
		cfg.FragmentShaderDefs = append(cfg.FragmentShaderDefs, NormalMapShaderDef)
	}
	if key.Biplanar {
		cfg.FragmentShaderDefs = append(cfg.FragmentShaderDefs, BiplanarShaderDef)
	}
	return cfg, nil
}

func WgpuCullMode(c core.CullMode) wgpu.CullMode {
	switch c {
	case core.CullFront:
		return wgpu.CullModeFront
	case core.CullBack:
		return wgpu.CullModeBack
	}
	return wgpu.CullModeNone
}

func WgpuVertexFormat(f core.VertexFormat) wgpu.VertexFormat {
	switch f {
	case core.VertexFormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case core.VertexFormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case core.VertexFormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case core.VertexFormatUint32:
		return wgpu.VertexFormatUint32
	}
	return wgpu.VertexFormatUndefined
}

// BlendStateFor returns the colour blend for an alpha mode, nil for replace.
func BlendStateFor(mode core.AlphaMode) *wgpu.BlendState {
	alpha := wgpu.BlendComponent{
		Operation: wgpu.BlendOperationAdd,
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
	}
	color := func(src, dst wgpu.BlendFactor) *wgpu.BlendState {
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: src, DstFactor: dst},
			Alpha: alpha,
		}
	}
	switch mode.Kind {
	case core.AlphaModeBlend:
		return color(wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha)
	case core.AlphaModePremultiplied:
		return color(wgpu.BlendFactorOne, wgpu.BlendFactorOneMinusSrcAlpha)
	case core.AlphaModeAdd:
		return color(wgpu.BlendFactorOne, wgpu.BlendFactorOne)
	case core.AlphaModeMultiply:
		return color(wgpu.BlendFactorDst, wgpu.BlendFactorOneMinusSrcAlpha)
	}
	return nil
}
