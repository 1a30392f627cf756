package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/asset"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	ViewGroup       = 0
	ViewUniformSize = 128
	MeshUniformSize = 128

	DepthFormat = wgpu.TextureFormatDepth32Float
)

var ErrShaderVariant = errors.New("shader variant")

// GpuTexture is an uploaded texture array.
type GpuTexture struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Format  wgpu.TextureFormat
	Class   TextureFormatClass
	Layers  uint32
}

func (t *GpuTexture) Release() {
	if t.View != nil {
		t.View.Release()
	}
	if t.Texture != nil {
		t.Texture.Release()
	}
}

// MaterialGpu holds the uniform buffer and bind group of one material.
type MaterialGpu struct {
	UniformBuf *wgpu.Buffer
	BindGroup  *wgpu.BindGroup
	Key        SpecializationKey
	Alpha      core.AlphaMode
}

// MeshGpu holds the buffers of one mesh instance.
type MeshGpu struct {
	VertexBuf  *wgpu.Buffer
	IndexBuf   *wgpu.Buffer
	IndexCount uint32
	Layout     core.VertexLayout
	ModelBuf   *wgpu.Buffer
	BindGroup  *wgpu.BindGroup
}

// DrawItem pairs a mesh with its material and pipeline.
type DrawItem struct {
	Mesh     *MeshGpu
	Material *MaterialGpu
	Pipeline *wgpu.RenderPipeline
}

// ViewUniform matches the WGSL View struct. LightRange rides in
// light_position.w and Exposure in ambient.w.
type ViewUniform struct {
	ViewProj   mgl32.Mat4
	CameraPos  mgl32.Vec3
	LightPos   mgl32.Vec3
	LightRange float32
	LightColor mgl32.Vec3
	Ambient    mgl32.Vec3
	Exposure   float32
}

func (v *ViewUniform) Marshal() []byte {
	buf := make([]byte, ViewUniformSize)
	copy(buf[0:64], mat4ToBytes(v.ViewProj))
	copy(buf[64:80], vec3ToBytesPadded(v.CameraPos))
	copy(buf[80:96], vec3ToBytesPadded(v.LightPos))
	copy(buf[96:112], vec3ToBytesPadded(v.LightColor))
	copy(buf[112:128], vec3ToBytesPadded(v.Ambient))
	binary.LittleEndian.PutUint32(buf[92:96], math.Float32bits(v.LightRange))
	binary.LittleEndian.PutUint32(buf[124:128], math.Float32bits(v.Exposure))
	return buf
}

func modelBytes(model mgl32.Mat4) []byte {
	normal := model.Mat3().Inv().Transpose().Mat4()
	buf := make([]byte, MeshUniformSize)
	copy(buf[0:64], mat4ToBytes(model))
	copy(buf[64:128], mat4ToBytes(normal))
	return buf
}

// DepthWriteEnabled reports whether a mode writes depth. Blended modes do not.
func DepthWriteEnabled(mode core.AlphaMode) bool {
	switch mode.Kind {
	case core.AlphaModeBlend, core.AlphaModePremultiplied, core.AlphaModeAdd, core.AlphaModeMultiply:
		return false
	}
	return true
}

type renderPipelineKey struct {
	key    SpecializationKey
	alpha  core.AlphaMode
	bias   int32
	layout string
}

// SplatRenderer owns the GPU objects of the splat material: layouts, sampler,
// fallback texture and the compiled pipeline variants.
type SplatRenderer struct {
	Device      *wgpu.Device
	ColorFormat wgpu.TextureFormat

	ViewLayout     *wgpu.BindGroupLayout
	MaterialLayout *wgpu.BindGroupLayout
	PipelineLayout *wgpu.PipelineLayout
	Sampler        *wgpu.Sampler
	Fallback       *GpuTexture
	ViewBuf        *wgpu.Buffer

	// StrictShaders runs full IR validation on composed variants.
	StrictShaders bool

	Configs   *PipelineCache
	pipelines map[renderPipelineKey]*wgpu.RenderPipeline
	samplers  map[wgpu.SamplerDescriptor]*wgpu.Sampler
}

func NewSplatRenderer(device *wgpu.Device, colorFormat wgpu.TextureFormat) (*SplatRenderer, error) {
	r := &SplatRenderer{
		Device:      device,
		ColorFormat: colorFormat,
		Configs:     NewPipelineCache(),
		pipelines:   make(map[renderPipelineKey]*wgpu.RenderPipeline),
		samplers:    make(map[wgpu.SamplerDescriptor]*wgpu.Sampler),
	}

	var err error
	r.ViewLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SplatViewBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: ViewUniformSize,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: MeshUniformSize,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	r.MaterialLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "SplatMaterialBGL",
		Entries: MaterialBindGroupLayoutEntries(),
	})
	if err != nil {
		return nil, err
	}

	r.PipelineLayout, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "SplatPipelineLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.ViewLayout, r.MaterialLayout},
	})
	if err != nil {
		return nil, err
	}

	r.Sampler, err = r.SamplerFor(*SplatSamplerDescriptor())
	if err != nil {
		return nil, err
	}

	r.ViewBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SplatViewBuf",
		Size:  ViewUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	r.Fallback, err = r.UploadTextureArray(FallbackTextureArray())
	if err != nil {
		return nil, fmt.Errorf("fallback texture: %w", err)
	}
	return r, nil
}

// FallbackTextureArray is a white 1x1 array bound for absent roles.
func FallbackTextureArray() *asset.TextureArray {
	layers := make([][]byte, asset.MaxLayers)
	for i := range layers {
		layers[i] = []byte{255, 255, 255, 255}
	}
	return &asset.TextureArray{
		Label:      "SplatFallback",
		Format:     wgpu.TextureFormatRGBA8Unorm,
		ColorSpace: asset.ColorSpaceLinear,
		Layers:     asset.MaxLayers,
		Levels:     []asset.MipLevel{{Width: 1, Height: 1, Data: concat(layers)}},
	}
}

func concat(parts [][]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// UploadTextureArray creates a 2D-array texture with every decoded layer and mip level.
func (r *SplatRenderer) UploadTextureArray(arr *asset.TextureArray) (*GpuTexture, error) {
	if len(arr.Levels) == 0 || arr.Layers == 0 {
		return nil, fmt.Errorf("texture array %q is empty", arr.Label)
	}
	extent := wgpu.Extent3D{
		Width:              arr.Width(),
		Height:             arr.Height(),
		DepthOrArrayLayers: arr.Layers,
	}
	tex, err := r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         arr.Label,
		Size:          extent,
		MipLevelCount: uint32(len(arr.Levels)),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        arr.Format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	queue := r.Device.GetQueue()
	bpp := uint32(arr.BytesPerPixel())
	for level, mip := range arr.Levels {
		err = queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: uint32(level),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			mip.Data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  mip.Width * bpp,
				RowsPerImage: mip.Height,
			},
			&wgpu.Extent3D{
				Width:              mip.Width,
				Height:             mip.Height,
				DepthOrArrayLayers: arr.Layers,
			},
		)
		if err != nil {
			tex.Release()
			return nil, fmt.Errorf("write %q level %d: %w", arr.Label, level, err)
		}
	}

	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           arr.Label + "View",
		Format:          arr.Format,
		Dimension:       wgpu.TextureViewDimension2DArray,
		BaseMipLevel:    0,
		MipLevelCount:   uint32(len(arr.Levels)),
		BaseArrayLayer:  0,
		ArrayLayerCount: arr.Layers,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &GpuTexture{
		Texture: tex,
		View:    view,
		Format:  arr.Format,
		Class:   ClassifyFormat(arr.Format),
		Layers:  arr.Layers,
	}, nil
}

// SamplerFor returns the sampler for a descriptor, creating it on first use.
func (r *SplatRenderer) SamplerFor(desc wgpu.SamplerDescriptor) (*wgpu.Sampler, error) {
	if s, ok := r.samplers[desc]; ok {
		return s, nil
	}
	s, err := r.Device.CreateSampler(&desc)
	if err != nil {
		return nil, err
	}
	r.samplers[desc] = s
	return s, nil
}

// CreateMaterial uploads the material uniform and builds its bind group.
// Roles without a texture are bound to the fallback array. samplers holds the
// descriptor configured on each role's texture array; see MaterialSamplers.
func (r *SplatRenderer) CreateMaterial(m SurfaceMaterial, textures map[TextureRole]*GpuTexture, samplers map[TextureRole]*wgpu.SamplerDescriptor) (*MaterialGpu, error) {
	var normalClass *TextureFormatClass
	if nt, ok := textures[RoleNormalMap]; ok && nt != nil {
		normalClass = nt.Class.Ptr()
	}
	uniform := m.Uniform(normalClass)

	buf, err := r.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SplatMaterialUniform",
		Contents: uniform.Marshal(),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	views := make(map[TextureRole]*wgpu.TextureView, len(TextureRoles))
	bound := make(map[TextureRole]*wgpu.Sampler, len(TextureRoles))
	for role, desc := range MaterialSamplers(samplers) {
		tex := textures[role]
		if tex == nil {
			tex = r.Fallback
		}
		views[role] = tex.View
		if bound[role], err = r.SamplerFor(desc); err != nil {
			buf.Release()
			return nil, fmt.Errorf("sampler for %s: %w", role, err)
		}
	}

	bg, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "SplatMaterialBG",
		Layout:  r.MaterialLayout,
		Entries: MaterialBindGroupEntries(buf, views, bound),
	})
	if err != nil {
		buf.Release()
		return nil, err
	}
	return &MaterialGpu{UniformBuf: buf, BindGroup: bg, Key: m.Key(), Alpha: m.AlphaMode()}, nil
}

// UploadMesh creates vertex, index and model buffers for a mesh instance.
func (r *SplatRenderer) UploadMesh(mesh *core.Mesh, model mgl32.Mat4) (*MeshGpu, error) {
	if mesh.VertexCount() == 0 || len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("mesh has no geometry")
	}
	vb, err := r.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SplatVertexBuf",
		Contents: mesh.VertexBytes(),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, err
	}
	ib, err := r.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SplatIndexBuf",
		Contents: wgpu.ToBytes(mesh.Indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		return nil, err
	}
	mb, err := r.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SplatModelBuf",
		Contents: modelBytes(model),
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	bg, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "SplatViewBG",
		Layout: r.ViewLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.ViewBuf, Size: ViewUniformSize},
			{Binding: 1, Buffer: mb, Size: MeshUniformSize},
		},
	})
	if err != nil {
		return nil, err
	}
	return &MeshGpu{
		VertexBuf:  vb,
		IndexBuf:   ib,
		IndexCount: uint32(len(mesh.Indices)),
		Layout:     mesh.Layout(),
		ModelBuf:   mb,
		BindGroup:  bg,
	}, nil
}

func (r *SplatRenderer) UpdateView(v ViewUniform) {
	r.Device.GetQueue().WriteBuffer(r.ViewBuf, 0, v.Marshal())
}

func (r *SplatRenderer) UpdateModel(mg *MeshGpu, model mgl32.Mat4) {
	r.Device.GetQueue().WriteBuffer(mg.ModelBuf, 0, modelBytes(model))
}

// Pipeline returns the render pipeline for a material drawn with a mesh layout,
// composing and compiling the shader variant on first use.
func (r *SplatRenderer) Pipeline(m SurfaceMaterial, layout core.VertexLayout) (*wgpu.RenderPipeline, error) {
	cfg, err := r.Configs.Get(m.Key(), layout)
	if err != nil {
		return nil, err
	}
	pk := renderPipelineKey{key: cfg.Key, alpha: m.AlphaMode(), bias: int32(m.DepthBias()), layout: layoutSignature(layout)}
	if p, ok := r.pipelines[pk]; ok {
		return p, nil
	}

	variant, err := shaders.NewVariant(m.VertexShader(), m.FragmentShader(), cfg.VertexShaderDefs, cfg.FragmentShaderDefs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrShaderVariant, err)
	}
	check := shaders.Check
	if r.StrictShaders {
		check = shaders.Validate
	}
	if err := check(variant.Vertex); err != nil {
		return nil, fmt.Errorf("%w: vertex %s: %w", ErrShaderVariant, cfg.Key, err)
	}
	if err := check(variant.Fragment); err != nil {
		return nil, fmt.Errorf("%w: fragment %s: %w", ErrShaderVariant, cfg.Key, err)
	}

	vs, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SplatVertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: variant.Vertex},
	})
	if err != nil {
		return nil, err
	}
	defer vs.Release()
	fs, err := r.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SplatFragment",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: variant.Fragment},
	})
	if err != nil {
		return nil, err
	}
	defer fs.Release()

	alpha := m.AlphaMode()
	pipeline, err := r.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "SplatPipeline " + cfg.Key.String(),
		Layout: r.PipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: shaders.VertexEntryPoint,
			Buffers:    cfg.VertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: shaders.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    r.ColorFormat,
					Blend:     BlendStateFor(alpha),
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  cfg.Topology,
			FrontFace: cfg.FrontFace,
			CullMode:  cfg.CullMode,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: DepthWriteEnabled(alpha),
			DepthCompare:      wgpu.CompareFunctionLess,
			DepthBias:         pk.bias,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: alpha.Kind == core.AlphaModeAlphaToCoverage,
		},
	})
	if err != nil {
		return nil, err
	}
	r.pipelines[pk] = pipeline
	return pipeline, nil
}

// Draw records every item into the pass.
func (r *SplatRenderer) Draw(pass *wgpu.RenderPassEncoder, items []DrawItem) {
	for _, it := range items {
		if it.Pipeline == nil || it.Mesh == nil || it.Material == nil {
			continue
		}
		pass.SetPipeline(it.Pipeline)
		pass.SetBindGroup(ViewGroup, it.Mesh.BindGroup, nil)
		pass.SetBindGroup(MaterialGroup, it.Material.BindGroup, nil)
		pass.SetVertexBuffer(0, it.Mesh.VertexBuf, 0, it.Mesh.VertexBuf.GetSize())
		pass.SetIndexBuffer(it.Mesh.IndexBuf, wgpu.IndexFormatUint32, 0, it.Mesh.IndexBuf.GetSize())
		pass.DrawIndexed(it.Mesh.IndexCount, 1, 0, 0, 0)
	}
}

func (r *SplatRenderer) Release() {
	for _, p := range r.pipelines {
		p.Release()
	}
	r.pipelines = map[renderPipelineKey]*wgpu.RenderPipeline{}
	if r.Fallback != nil {
		r.Fallback.Release()
	}
	if r.ViewBuf != nil {
		r.ViewBuf.Release()
	}
	for _, s := range r.samplers {
		s.Release()
	}
	r.samplers = map[wgpu.SamplerDescriptor]*wgpu.Sampler{}
	r.Sampler = nil
	if r.PipelineLayout != nil {
		r.PipelineLayout.Release()
	}
	if r.MaterialLayout != nil {
		r.MaterialLayout.Release()
	}
	if r.ViewLayout != nil {
		r.ViewLayout.Release()
	}
}

func mat4ToBytes(m mgl32.Mat4) []byte {
	buf := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func vec3ToBytesPadded(v mgl32.Vec3) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v[2]))
	return buf
}
