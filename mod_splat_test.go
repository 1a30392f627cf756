package splat

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gekko3d/splat/splatrt/rt/asset"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+": "+fmt.Sprintf(format, args...))
}

func (l *captureLogger) DebugEnabled() bool                { return true }
func (l *captureLogger) SetDebug(bool)                     {}
func (l *captureLogger) Debugf(format string, args ...any) { l.add("DEBUG", format, args...) }
func (l *captureLogger) Infof(format string, args ...any)  { l.add("INFO", format, args...) }
func (l *captureLogger) Warnf(format string, args ...any)  { l.add("WARN", format, args...) }
func (l *captureLogger) Errorf(format string, args ...any) { l.add("ERROR", format, args...) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+":") {
			n++
		}
	}
	return n
}

func (l *captureLogger) containing(sub string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			n++
		}
	}
	return n
}

type captureLoggingModule struct {
	log *captureLogger
}

func (m captureLoggingModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(m.log)
}

func testSplatConfig() Config {
	cfg := DefaultConfig()
	cfg.Assets.Root = "/textures"
	cfg.Scene.Subdivisions = 1
	return cfg
}

func buildSplatApp(t *testing.T, cfg Config, dec *fakeDecoder) (*App, *captureLogger) {
	t.Helper()
	log := &captureLogger{}
	app := NewAppBuilder().
		UseModule(
			captureLoggingModule{log: log},
			TimeModule{},
			AssetServerModule{Decoder: dec, MaxConcurrentDecodes: 2},
			SplatMaterialModule{Config: cfg},
		).
		Build()
	t.Cleanup(app.Shutdown)
	return app, log
}

func settle(app *App) {
	MustResource[AssetServer](app).Wait()
	app.Tick()
}

func TestSplatMaterial_SpawnsOnceWhenAllLoaded(t *testing.T) {
	cfg := testSplatConfig()
	app, log := buildSplatApp(t, cfg, newFakeDecoder())
	session := MustResource[SplatSession](app)
	server := MustResource[AssetServer](app)

	base, _ := session.Barrier.Handle(RoleBaseColor)
	emissive, _ := session.Barrier.Handle(RoleEmissive)
	assert.Equal(t, base, emissive, "emissive reuses the base colour array")
	assert.Equal(t, 2, server.RefCount(base))
	assert.Equal(t, core.LoadPending, session.Barrier.State())

	settle(app)
	assert.Equal(t, core.LoadSpawned, session.Barrier.State())

	cmd := app.Commands()
	require.Equal(t, 1, MakeQuery2[SplatMesh, TransformComponent](cmd).Count())

	var sm SplatMesh
	MakeQuery1[SplatMesh](cmd).Map(func(eid EntityId, s *SplatMesh) bool {
		assert.Equal(t, session.Entity, eid)
		sm = *s
		return false
	})
	require.NotNil(t, sm.Mesh)
	assert.True(t, sm.Mesh.HasAttribute(core.AttributeMaterialWeights))
	assert.Len(t, sm.Mesh.MaterialWeights(), sm.Mesh.VertexCount())
	assert.Equal(t, base, sm.Material.EmissiveTexture)
	assert.Equal(t, float32(0.9), sm.Material.PerceptualRoughness)
	assert.Equal(t, float32(0.05), sm.Material.Metallic)
	assert.True(t, sm.Key.NormalMap)
	assert.Equal(t, core.CullBack, sm.Key.CullMode)
	assert.NotZero(t, sm.Uniform.Flags&gpu.FlagBaseColorTexture)
	assert.NotZero(t, sm.Uniform.Flags&gpu.FlagEmissiveTexture)
	assert.Zero(t, sm.Uniform.Flags&gpu.FlagTwoComponentNormalMap)
	require.NotNil(t, sm.Config)
	assert.Contains(t, sm.Config.FragmentShaderDefs, "STANDARDMATERIAL_NORMAL_MAP")

	for i := 0; i < 3; i++ {
		settle(app)
	}
	assert.Equal(t, 1, MakeQuery1[SplatMesh](cmd).Count(), "spawn is one-shot")
	assert.Equal(t, 1, log.containing("spawned splat mesh"))
}

func TestSplatMaterial_SamplerSetOnMatchedLoads(t *testing.T) {
	app, _ := buildSplatApp(t, testSplatConfig(), newFakeDecoder())
	session := MustResource[SplatSession](app)
	server := MustResource[AssetServer](app)

	settle(app)
	for _, slot := range session.Barrier.Slots() {
		a, ok := server.Get(slot.Expected)
		require.True(t, ok)
		require.NotNil(t, a.Sampler, slot.Role)
		assert.Equal(t, gpu.SplatSamplerDescriptor().MipmapFilter, a.Sampler.MipmapFilter)
	}
}

func TestSplatMaterial_SeparateEmissive(t *testing.T) {
	cfg := testSplatConfig()
	cfg.Material.Emissive = "emissive.png"
	app, _ := buildSplatApp(t, cfg, newFakeDecoder())
	session := MustResource[SplatSession](app)

	base, _ := session.Barrier.Handle(RoleBaseColor)
	emissive, _ := session.Barrier.Handle(RoleEmissive)
	assert.NotEqual(t, base, emissive)
	assert.Equal(t, 1, MustResource[AssetServer](app).RefCount(base))
}

func TestSplatMaterial_TwoComponentNormals(t *testing.T) {
	cfg := testSplatConfig()
	cfg.Material.TwoComponentNormals = true
	cfg.Material.FlipNormalMapY = true
	app, _ := buildSplatApp(t, cfg, newFakeDecoder())

	settle(app)
	var flags uint32
	MakeQuery1[SplatMesh](app.Commands()).Map(func(eid EntityId, s *SplatMesh) bool {
		flags = s.Uniform.Flags
		return false
	})
	assert.NotZero(t, flags&gpu.FlagTwoComponentNormalMap)
	assert.NotZero(t, flags&gpu.FlagFlipNormalMapY)
}

func TestSplatMaterial_FailureStopsSpawn(t *testing.T) {
	cfg := testSplatConfig()
	dec := newFakeDecoder()
	dec.fail[cfg.LayerPaths(cfg.Material.NormalMap)[0]] = errors.New("truncated file")
	app, log := buildSplatApp(t, cfg, dec)
	session := MustResource[SplatSession](app)

	settle(app)
	settle(app)

	assert.Equal(t, core.LoadFailed, session.Barrier.State())
	failed, ok := session.Barrier.FailedHandle()
	require.True(t, ok)
	normal, _ := session.Barrier.Handle(RoleNormalMap)
	assert.Equal(t, normal, failed)
	assert.Equal(t, 0, MakeQuery1[SplatMesh](app.Commands()).Count())
	assert.Equal(t, 1, log.count("ERROR"))
}

func newDirectSession(t *testing.T, dec *fakeDecoder) (*SplatSession, *AssetServer, *captureLogger) {
	t.Helper()
	server := NewAssetServer(dec, 4, nil)
	t.Cleanup(server.Close)
	log := &captureLogger{}
	return StartSplatSession(testSplatConfig(), server, log), server, log
}

func TestSplatSession_DuplicateAndIrrelevantEvents(t *testing.T) {
	dec := newFakeDecoder()
	dec.gate = make(chan struct{})
	session, server, _ := newDirectSession(t, dec)
	defer close(dec.gate)

	base, _ := session.Barrier.Handle(RoleBaseColor)
	stranger := core.NewTextureHandle()

	session.HandleEvents([]AssetEvent{
		{Kind: AssetCreated, Handle: stranger},
		{Kind: AssetFailed, Handle: stranger, Err: errors.New("not ours")},
	}, server)
	assert.Equal(t, core.LoadPending, session.Barrier.State())
	assert.Len(t, session.Barrier.Pending(), 5)

	// One event satisfies both aliased roles; repeating it changes nothing.
	for i := 0; i < 3; i++ {
		session.HandleEvents([]AssetEvent{{Kind: AssetCreated, Handle: base}}, server)
	}
	assert.ElementsMatch(t, []string{RoleMetallicRoughness, RoleNormalMap, RoleOcclusion}, session.Barrier.Pending())
	assert.Equal(t, core.LoadPending, session.Barrier.State())

	var rest []AssetEvent
	for _, role := range []string{RoleOcclusion, RoleNormalMap, RoleMetallicRoughness} {
		h, _ := session.Barrier.Handle(role)
		rest = append(rest, AssetEvent{Kind: AssetCreated, Handle: h})
	}
	session.HandleEvents(rest, server)
	assert.Equal(t, core.LoadReady, session.Barrier.State())

	// A failure after everything arrived does not undo readiness.
	session.HandleEvents([]AssetEvent{{Kind: AssetFailed, Handle: base}}, server)
	assert.Equal(t, core.LoadReady, session.Barrier.State())
}

func TestSplatSession_StallWarnsOnce(t *testing.T) {
	dec := newFakeDecoder()
	dec.gate = make(chan struct{})
	session, server, log := newDirectSession(t, dec)
	defer close(dec.gate)

	session.StallWarning = time.Millisecond
	session.started = time.Now().Add(-time.Second)

	session.HandleEvents(nil, server)
	session.HandleEvents(nil, server)
	session.HandleEvents(nil, server)

	assert.Equal(t, 1, log.count("WARN"))
	assert.Equal(t, core.LoadPending, session.Barrier.State(), "a slow load never fails on its own")
}

func TestSplatSession_NoStallWarningBeforeDeadline(t *testing.T) {
	dec := newFakeDecoder()
	dec.gate = make(chan struct{})
	session, server, log := newDirectSession(t, dec)
	defer close(dec.gate)

	session.StallWarning = time.Hour
	session.HandleEvents(nil, server)
	assert.Equal(t, 0, log.count("WARN"))
}

func TestSplatSession_ReleaseDropsEveryReference(t *testing.T) {
	session, server, _ := newDirectSession(t, newFakeDecoder())
	server.Wait()

	slots := session.Barrier.Slots()
	session.Release(server)
	for _, s := range slots {
		assert.Equal(t, 0, server.RefCount(s.Expected), s.Role)
	}
}

func TestSplatSession_ReloadDistinctArrays(t *testing.T) {
	session, server, _ := newDirectSession(t, newFakeDecoder())
	server.Wait()
	server.Drain()

	assert.Equal(t, 4, session.Reload(server), "emissive shares the base colour array")
	server.Wait()
	for _, ev := range server.Drain() {
		assert.Equal(t, AssetModified, ev.Kind)
	}
}

func TestSplatSession_LayerPathsPerRole(t *testing.T) {
	cfg := testSplatConfig()
	paths := cfg.LayerPaths(cfg.Material.BaseColor)
	require.Len(t, paths, 4)
	assert.Equal(t, filepath.Join("/textures", "angled-blocks-vegetation-ue", "albedo.png"), paths[0])
	assert.Equal(t, filepath.Join("/textures", "ice_field", "albedo.png"), paths[3])
}

func TestSplatMaterial_ColorSpaceFollowsFileNames(t *testing.T) {
	cfg := testSplatConfig()
	cfg.Assets.Root = t.TempDir()
	cfg.Material.Dirs = []string{"grass", "rock"}
	cfg.Material.GenerateMips = false
	for _, dir := range cfg.Material.Dirs {
		for _, name := range []string{cfg.Material.BaseColor, cfg.Material.Occlusion, cfg.Material.MetallicRoughness, cfg.Material.NormalMap} {
			writePNG(t, filepath.Join(cfg.Assets.Root, dir, name), 2, 2, color.RGBA{R: 128, G: 128, B: 255, A: 255})
		}
	}

	server := NewAssetServer(asset.ImageDecoder{}, 2, nil)
	t.Cleanup(server.Close)
	session := StartSplatSession(cfg, server, NewNopLogger())
	server.Wait()
	session.HandleEvents(server.Drain(), server)
	require.True(t, session.Barrier.Ready(), "pending: %v", session.Barrier.Pending())

	want := map[string]asset.ColorSpace{
		RoleBaseColor:         asset.ColorSpaceSrgb,
		RoleEmissive:          asset.ColorSpaceSrgb,
		RoleMetallicRoughness: asset.ColorSpaceSrgb,
		RoleOcclusion:         asset.ColorSpaceSrgb,
		RoleNormalMap:         asset.ColorSpaceLinear,
	}
	for role, space := range want {
		a, ok := server.Get(session.handle(role))
		require.True(t, ok, role)
		assert.Equal(t, space, a.Array.ColorSpace, role)
		assert.Equal(t, asset.ColorSpaceAuto, a.Opts.ColorSpace, role)
	}
}
