package splat

import (
	"fmt"
	"time"

	"github.com/gekko3d/splat/splatrt/rt/asset"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Roles tracked by the load barrier. Emissive shares the base colour array
// unless a separate file is configured.
const (
	RoleBaseColor         = "base_color"
	RoleEmissive          = "emissive"
	RoleMetallicRoughness = "metallic_roughness"
	RoleNormalMap         = "normal_map"
	RoleOcclusion         = "occlusion"
)

var sessionRoles = []string{RoleBaseColor, RoleEmissive, RoleMetallicRoughness, RoleNormalMap, RoleOcclusion}

// SplatMesh is the spawned surface: geometry with per-vertex weights and the
// material that splats its four layers.
type SplatMesh struct {
	Mesh     *core.Mesh
	Material *core.Material
	Uniform  gpu.UniformRecord
	Key      gpu.SpecializationKey
	Config   *gpu.PipelineConfig
}

// SplatMaterialModule loads one layered material and spawns the splatted
// icosphere once every texture array is in.
type SplatMaterialModule struct {
	Config Config
	// HotReload re-decodes every texture array when R is pressed.
	HotReload bool
}

// SplatSession tracks the one-shot load-then-spawn sequence.
type SplatSession struct {
	Barrier      *core.LoadBarrier
	StallWarning time.Duration
	Entity       EntityId

	cfg         Config
	started     time.Time
	stallWarned bool
	readyLogged bool
	log         Logger
}

func (mod SplatMaterialModule) Install(app *App, cmd *Commands) {
	server := MustResource[AssetServer](app)
	if _, ok := Resource[gpu.PipelineCache](app); !ok {
		cmd.AddResources(gpu.NewPipelineCache())
	}

	session := StartSplatSession(mod.Config, server, Prefixed(app.Logger(), "splat"))
	cmd.AddResources(session)

	cmd.UseSystem(System(splatLoadSystem).InStage(Update))
	cmd.UseSystem(System(splatSpawnSystem).InStage(PostUpdate))
	if mod.HotReload {
		cmd.UseSystem(System(splatReloadSystem).InStage(Update))
	}
}

func (mod SplatMaterialModule) Shutdown(app *App) {
	session, ok := Resource[SplatSession](app)
	if !ok {
		return
	}
	if server, ok := Resource[AssetServer](app); ok {
		session.Release(server)
	}
}

// StartSplatSession issues one texture array load per role and arms the barrier.
// Colour space follows the file name: "normal.linear.png" decodes as linear data,
// everything else as sRGB.
func StartSplatSession(cfg Config, server *AssetServer, log Logger) *SplatSession {
	load := func(role, name string, twoComponent bool) core.TextureHandle {
		opts := asset.Options{
			Label:        role,
			ColorSpace:   asset.ColorSpaceAuto,
			TwoComponent: twoComponent,
			GenerateMips: cfg.Material.GenerateMips,
		}
		return server.LoadTextureArray(opts, cfg.LayerPaths(name)...)
	}

	baseColor := load(RoleBaseColor, cfg.Material.BaseColor, false)
	emissive := baseColor
	if cfg.Material.Emissive != "" {
		emissive = load(RoleEmissive, cfg.Material.Emissive, false)
	} else {
		server.Retain(baseColor)
	}
	metallicRoughness := load(RoleMetallicRoughness, cfg.Material.MetallicRoughness, false)
	normal := load(RoleNormalMap, cfg.Material.NormalMap, cfg.Material.TwoComponentNormals)
	occlusion := load(RoleOcclusion, cfg.Material.Occlusion, false)

	barrier := core.NewLoadBarrier(
		core.Slot(RoleBaseColor, baseColor),
		core.Slot(RoleEmissive, emissive),
		core.Slot(RoleMetallicRoughness, metallicRoughness),
		core.Slot(RoleNormalMap, normal),
		core.Slot(RoleOcclusion, occlusion),
	)
	log.Infof("loading %d texture arrays from %d layer(s)", len(sessionRoles), len(cfg.Material.Dirs))

	return &SplatSession{
		Barrier:      barrier,
		StallWarning: cfg.StallWarning(),
		cfg:          cfg,
		started:      time.Now(),
		log:          log,
	}
}

func (s *SplatSession) handle(role string) core.TextureHandle {
	h, _ := s.Barrier.Handle(role)
	return h
}

// Release drops the session's reference on every slot's texture array.
// Aliased roles took their own reference, so each slot releases once.
func (s *SplatSession) Release(server *AssetServer) {
	for _, slot := range s.Barrier.Slots() {
		server.Release(slot.Expected)
	}
}

// Reload re-decodes each distinct texture array of the session.
func (s *SplatSession) Reload(server *AssetServer) int {
	seen := make(map[core.TextureHandle]bool)
	n := 0
	for _, slot := range s.Barrier.Slots() {
		if seen[slot.Expected] {
			continue
		}
		seen[slot.Expected] = true
		if server.Reload(slot.Expected) {
			n++
		}
	}
	return n
}

// HandleEvents folds one tick of asset events into the barrier.
func (s *SplatSession) HandleEvents(events []AssetEvent, server *AssetServer) {
	for _, ev := range events {
		switch ev.Kind {
		case AssetCreated, AssetModified:
			if s.Barrier.Observe(ev.Handle) == 0 {
				continue
			}
			server.SetSampler(ev.Handle, gpu.SplatSamplerDescriptor())
			s.log.Debugf("texture array %s %s, waiting for %v", ev.Handle, ev.Kind, s.Barrier.Pending())
		case AssetFailed:
			if s.Barrier.Fail(ev.Handle) {
				s.log.Errorf("texture array %s failed, material will not spawn: %v", ev.Handle, ev.Err)
			}
		}
	}

	switch s.Barrier.State() {
	case core.LoadReady:
		if !s.readyLogged {
			s.readyLogged = true
			s.log.Infof("all texture arrays loaded in %s", time.Since(s.started).Round(time.Millisecond))
		}
	case core.LoadPending:
		s.checkStall(time.Now())
	}
}

func (s *SplatSession) checkStall(now time.Time) {
	if s.stallWarned || s.StallWarning <= 0 {
		return
	}
	if now.Sub(s.started) < s.StallWarning {
		return
	}
	s.stallWarned = true
	s.log.Warnf("still waiting after %s for %v", s.StallWarning, s.Barrier.Pending())
}

// BuildSplatMesh builds the icosphere, its weights and the material bound to the
// session's texture arrays.
func (s *SplatSession) BuildSplatMesh(server *AssetServer, cache *gpu.PipelineCache) (SplatMesh, error) {
	mesh := core.NewIcosphere(s.cfg.Scene.Radius, s.cfg.Scene.Subdivisions)
	weights := core.GenerateSplatWeights(mesh.Normals(), s.cfg.WeightAxis(), s.cfg.Scene.Sharpness)
	if err := mesh.InsertAttribute(core.AttributeMaterialWeights, weights); err != nil {
		return SplatMesh{}, err
	}

	opts := append(s.cfg.MaterialOptions(),
		core.WithBaseColorTexture(s.handle(RoleBaseColor)),
		core.WithEmissiveTexture(s.handle(RoleEmissive)),
		core.WithMetallicRoughnessTexture(s.handle(RoleMetallicRoughness)),
		core.WithNormalMapTexture(s.handle(RoleNormalMap)),
		core.WithOcclusionTexture(s.handle(RoleOcclusion)),
	)
	material := core.NewMaterial(opts...)
	for _, w := range material.Validate() {
		s.log.Warnf("material: %s", w)
	}

	var normalClass *gpu.TextureFormatClass
	if a, ok := server.Get(material.NormalMapTexture); ok && a.Array != nil {
		normalClass = gpu.ClassifyFormat(a.Array.Format).Ptr()
	}
	uniform, key := gpu.Derive(material, normalClass)
	pipeline, err := cache.Get(key, mesh.Layout())
	if err != nil {
		return SplatMesh{}, fmt.Errorf("specialize %s: %w", key, err)
	}
	return SplatMesh{
		Mesh:     mesh,
		Material: material,
		Uniform:  uniform,
		Key:      key,
		Config:   pipeline,
	}, nil
}

func splatLoadSystem(session *SplatSession, events *AssetEvents, server *AssetServer) {
	session.HandleEvents(events.Events, server)
}

func splatSpawnSystem(cmd *Commands, session *SplatSession, server *AssetServer, cache *gpu.PipelineCache) {
	if !session.Barrier.Ready() {
		return
	}
	sm, err := session.BuildSplatMesh(server, cache)
	if err != nil {
		session.log.Errorf("cannot spawn splat mesh: %v", err)
		// Spawning is one-shot even when it fails.
		session.Barrier.MarkSpawned()
		return
	}
	session.Entity = cmd.AddEntity(sm, NewTransform(mgl32.Vec3{}))
	session.Barrier.MarkSpawned()
	hits, misses := cache.Stats()
	session.log.Infof("spawned splat mesh %d: %d vertices, variant %s (cache %d/%d)",
		session.Entity, sm.Mesh.VertexCount(), sm.Key, hits, misses)
}

func splatReloadSystem(input *Input, session *SplatSession, server *AssetServer) {
	if !input.JustPressed[KeyR] {
		return
	}
	n := session.Reload(server)
	session.log.Infof("reloading %d texture array(s)", n)
}
