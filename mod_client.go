package splat

import (
	"fmt"
	"maps"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ClientModule opens the window, brings up the GPU and draws every SplatMesh
// entity each frame.
type ClientModule struct {
	WindowWidth   int
	WindowHeight  int
	WindowTitle   string
	StrictShaders bool
	ClearColor    [4]float64
	Ambient       [3]float32
	// Exposure scales scene light before tone mapping.
	Exposure float32
}

type splatDraw struct {
	mesh     *gpu.MeshGpu
	material *gpu.MaterialGpu
	pipeline *wgpu.RenderPipeline
	// versions and samplers the material bind group was built from
	versions map[core.TextureHandle]uint
	samplers map[gpu.TextureRole]wgpu.SamplerDescriptor
	failed   bool
}

type clientState struct {
	renderer *gpu.SplatRenderer
	draws    map[EntityId]*splatDraw
	clear    wgpu.Color
	ambient  mgl32.Vec3
	exposure float32
	log      Logger
}

func (mod ClientModule) Install(app *App, cmd *Commands) {
	log := Prefixed(app.Logger(), "client")
	ensureSingleRenderer(app, "splat")

	window, err := createWindowState(mod.WindowWidth, mod.WindowHeight, mod.WindowTitle)
	if err != nil {
		panic(err)
	}
	gs, err := createGpuState(window)
	if err != nil {
		panic(err)
	}
	renderer, err := gpu.NewSplatRenderer(gs.device, gs.surfaceConfig.Format)
	if err != nil {
		panic(fmt.Errorf("splat renderer: %w", err))
	}
	renderer.StrictShaders = mod.StrictShaders
	if cache, ok := Resource[gpu.PipelineCache](app); ok {
		renderer.Configs = cache
	} else {
		cmd.AddResources(renderer.Configs)
	}
	log.Infof("surface %dx%d format %v", gs.surfaceConfig.Width, gs.surfaceConfig.Height, gs.surfaceConfig.Format)

	cmd.AddResources(window, gs, &clientState{
		renderer: renderer,
		draws:    make(map[EntityId]*splatDraw),
		clear: wgpu.Color{
			R: mod.ClearColor[0], G: mod.ClearColor[1], B: mod.ClearColor[2], A: mod.ClearColor[3],
		},
		ambient:  mgl32.Vec3(mod.Ambient),
		exposure: mod.Exposure,
		log:      log,
	})

	app.UseSystem(System(resizeSystem).InStage(PreRender))
	app.UseSystem(System(prepareSplatSystem).InStage(PreRender))
	app.UseSystem(System(viewUniformSystem).InStage(PreRender))
	app.UseSystem(System(renderSystem).InStage(Render))
}

func (mod ClientModule) Shutdown(app *App) {
	if cs, ok := Resource[clientState](app); ok {
		for _, d := range cs.draws {
			d.release()
		}
		if server, ok := Resource[AssetServer](app); ok {
			server.ReleaseGpu()
		}
		cs.renderer.Release()
	}
	if gs, ok := Resource[GpuState](app); ok {
		gs.release()
	}
	if window, ok := Resource[WindowState](app); ok {
		window.destroy()
	}
}

func (d *splatDraw) release() {
	if d.material != nil {
		d.material.UniformBuf.Release()
		d.material.BindGroup.Release()
		d.material = nil
	}
	if d.mesh != nil {
		d.mesh.VertexBuf.Release()
		d.mesh.IndexBuf.Release()
		d.mesh.ModelBuf.Release()
		d.mesh.BindGroup.Release()
		d.mesh = nil
	}
}

func resizeSystem(window *WindowState, gs *GpuState, cs *clientState) {
	w, h := window.windowGlfw.GetFramebufferSize()
	resized, err := gs.resize(w, h)
	if err != nil {
		cs.log.Errorf("resize: %v", err)
		return
	}
	if resized {
		window.WindowWidth, window.WindowHeight = w, h
		cs.log.Debugf("resized to %dx%d", w, h)
	}
}

// prepareSplatSystem uploads texture arrays, materials and meshes for new
// SplatMesh entities and rebuilds material bind groups after a reload.
func prepareSplatSystem(cmd *Commands, cs *clientState, server *AssetServer) {
	seen := make(map[EntityId]bool)
	MakeQuery2[SplatMesh, TransformComponent](cmd).Map(func(eid EntityId, sm *SplatMesh, tr *TransformComponent) bool {
		seen[eid] = true
		d, ok := cs.draws[eid]
		if !ok {
			d = &splatDraw{}
			cs.draws[eid] = d
		}
		if d.failed {
			return true
		}
		if err := cs.prepare(d, sm, tr, server); err != nil {
			d.failed = true
			cs.log.Errorf("entity %d: %v", eid, err)
		}
		return true
	})
	for eid, d := range cs.draws {
		if !seen[eid] {
			d.release()
			delete(cs.draws, eid)
		}
	}
}

func (cs *clientState) prepare(d *splatDraw, sm *SplatMesh, tr *TransformComponent, server *AssetServer) error {
	r := cs.renderer

	textures := make(map[gpu.TextureRole]*gpu.GpuTexture)
	versions := make(map[core.TextureHandle]uint)
	var stale []*gpu.GpuTexture
	for _, role := range gpu.TextureRoles {
		h := role.Handle(sm.Material)
		if !h.Valid() {
			continue
		}
		a, ok := server.Get(h)
		if !ok || a.Array == nil {
			continue
		}
		if a.NeedsUpload() {
			tex, err := r.UploadTextureArray(a.Array)
			if err != nil {
				return fmt.Errorf("upload %s: %w", role, err)
			}
			if a.Gpu != nil {
				stale = append(stale, a.Gpu)
			}
			a.Gpu = tex
			a.GpuVersion = a.Version()
			cs.log.Debugf("uploaded %s array %dx%d x%d layers", role, a.Array.Width(), a.Array.Height(), a.Array.Layers)
		}
		textures[role] = a.Gpu
		versions[h] = a.GpuVersion
	}

	descs := roleSamplers(sm.Material, server)
	samplers := gpu.MaterialSamplers(descs)
	if d.material == nil || !sameVersions(d.versions, versions) || !maps.Equal(d.samplers, samplers) {
		material, err := r.CreateMaterial(gpu.TriplanarMaterial{Desc: sm.Material}, textures, descs)
		if err != nil {
			return fmt.Errorf("material: %w", err)
		}
		if d.material != nil {
			d.material.UniformBuf.Release()
			d.material.BindGroup.Release()
		}
		d.material = material
		d.versions = versions
		d.samplers = samplers
	}
	for _, t := range stale {
		t.Release()
	}

	model := tr.Matrix()
	if d.mesh == nil {
		mesh, err := r.UploadMesh(sm.Mesh, model)
		if err != nil {
			return fmt.Errorf("mesh: %w", err)
		}
		d.mesh = mesh
	} else {
		r.UpdateModel(d.mesh, model)
	}

	if d.pipeline == nil {
		pipeline, err := r.Pipeline(gpu.TriplanarMaterial{Desc: sm.Material}, d.mesh.Layout)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		d.pipeline = pipeline
	}
	return nil
}

// roleSamplers collects the sampler descriptor set on each role's texture array
// after it loaded. Roles whose array has none are left out.
func roleSamplers(m *core.Material, server *AssetServer) map[gpu.TextureRole]*wgpu.SamplerDescriptor {
	out := make(map[gpu.TextureRole]*wgpu.SamplerDescriptor)
	for _, role := range gpu.TextureRoles {
		h := role.Handle(m)
		if !h.Valid() {
			continue
		}
		if a, ok := server.Get(h); ok && a.Sampler != nil {
			out[role] = a.Sampler
		}
	}
	return out
}

func sameVersions(a, b map[core.TextureHandle]uint) bool {
	if len(a) != len(b) {
		return false
	}
	for h, v := range a {
		if bv, ok := b[h]; !ok || bv != v {
			return false
		}
	}
	return true
}

// BuildViewUniform gathers camera and light state for the frame. Light
// intensity is in lumens and becomes luminous intensity over the sphere.
func BuildViewUniform(cam *CameraComponent, aspect float32, light LightComponent, lightPos mgl32.Vec3, ambient mgl32.Vec3, exposure float32) gpu.ViewUniform {
	return gpu.ViewUniform{
		ViewProj:   cam.ViewProjection(aspect),
		CameraPos:  cam.Position,
		LightPos:   lightPos,
		LightRange: light.Range,
		LightColor: mgl32.Vec3(light.Color).Mul(light.Intensity / (4 * math32.Pi)),
		Ambient:    ambient,
		Exposure:   exposure,
	}
}

func viewUniformSystem(cmd *Commands, cs *clientState, gs *GpuState) {
	var cam *CameraComponent
	MakeQuery1[CameraComponent](cmd).Map(func(eid EntityId, c *CameraComponent) bool {
		cam = c
		return false
	})
	if cam == nil {
		return
	}
	light, lightPos, _ := FirstLight(cmd)
	cs.renderer.UpdateView(BuildViewUniform(cam, gs.aspect(), light, lightPos, cs.ambient, cs.exposure))
}

func renderSystem(cs *clientState, gs *GpuState) {
	items := make([]gpu.DrawItem, 0, len(cs.draws))
	for _, d := range cs.draws {
		if d.failed || d.pipeline == nil {
			continue
		}
		items = append(items, gpu.DrawItem{Mesh: d.mesh, Material: d.material, Pipeline: d.pipeline})
	}
	if err := renderFrame(gs, cs.renderer, items, cs.clear); err != nil {
		cs.log.Warnf("frame skipped: %v", err)
	}
}
