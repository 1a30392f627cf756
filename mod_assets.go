package splat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/splat/splatrt/rt/asset"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/gekko3d/splat/splatrt/rt/gpu"
	"golang.org/x/sync/semaphore"
)

var ErrAssetServerClosed = errors.New("asset server closed")

type AssetEventKind uint8

const (
	AssetCreated AssetEventKind = iota
	AssetModified
	AssetFailed
)

func (k AssetEventKind) String() string {
	switch k {
	case AssetCreated:
		return "Created"
	case AssetModified:
		return "Modified"
	case AssetFailed:
		return "Failed"
	}
	return fmt.Sprintf("AssetEventKind(%d)", uint8(k))
}

// AssetEvent reports that a texture array finished decoding, was reloaded, or failed.
type AssetEvent struct {
	Kind   AssetEventKind
	Handle core.TextureHandle
	Err    error
}

// AssetEvents holds the events drained at the start of the current tick.
type AssetEvents struct {
	Events []AssetEvent
}

type TextureArrayState uint8

const (
	TextureLoading TextureArrayState = iota
	TextureLoaded
	TextureFailed
)

// TextureArrayAsset is one texture array owned by the server.
// Array is nil until the first decode succeeds.
type TextureArrayAsset struct {
	Handle  core.TextureHandle
	State   TextureArrayState
	Array   *asset.TextureArray
	Sampler *wgpu.SamplerDescriptor
	Paths   []string
	Opts    asset.Options
	Err     error
	// Gpu is filled in by the client once the array is uploaded.
	// GpuVersion is the decode it was uploaded from.
	Gpu        *gpu.GpuTexture
	GpuVersion uint

	refs    int
	version uint
}

// AssetServer decodes texture arrays on background goroutines and reports
// completions as events. Identical loads share one handle.
type AssetServer struct {
	mu       sync.Mutex
	decoder  asset.Decoder
	sem      *semaphore.Weighted
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	byKey    map[string]core.TextureHandle
	textures map[core.TextureHandle]*TextureArrayAsset
	events   []AssetEvent
	done     []decodeResult
	inFlight int
	closed   bool
	log      Logger
}

type AssetServerModule struct {
	Decoder              asset.Decoder
	MaxConcurrentDecodes int64
}

func NewAssetServer(decoder asset.Decoder, maxConcurrent int64, log Logger) *AssetServer {
	if decoder == nil {
		decoder = asset.ImageDecoder{}
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if log == nil {
		log = NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AssetServer{
		decoder:  decoder,
		sem:      semaphore.NewWeighted(maxConcurrent),
		ctx:      ctx,
		cancel:   cancel,
		byKey:    make(map[string]core.TextureHandle),
		textures: make(map[core.TextureHandle]*TextureArrayAsset),
		log:      log,
	}
}

func loadKey(opts asset.Options, paths []string) string {
	return fmt.Sprintf("%s|%d|%t|%t", strings.Join(paths, "\x00"), opts.ColorSpace, opts.TwoComponent, opts.GenerateMips)
}

// LoadTextureArray starts decoding the layer files and returns the handle at once.
// Loading the same files with the same options again returns the same handle and
// takes another reference.
func (server *AssetServer) LoadTextureArray(opts asset.Options, paths ...string) core.TextureHandle {
	server.mu.Lock()
	defer server.mu.Unlock()

	key := loadKey(opts, paths)
	if h, ok := server.byKey[key]; ok {
		if a, ok := server.textures[h]; ok {
			a.refs++
			return h
		}
	}

	h := core.NewTextureHandle()
	a := &TextureArrayAsset{
		Handle: h,
		State:  TextureLoading,
		Paths:  append([]string(nil), paths...),
		Opts:   opts,
		refs:   1,
	}
	server.byKey[key] = h
	server.textures[h] = a
	server.startLocked(a, AssetCreated)
	return h
}

// Reload decodes an already loaded array again. Success is reported as AssetModified.
func (server *AssetServer) Reload(h core.TextureHandle) bool {
	server.mu.Lock()
	defer server.mu.Unlock()
	a, ok := server.textures[h]
	if !ok || a.State == TextureLoading {
		return false
	}
	a.State = TextureLoading
	server.startLocked(a, AssetModified)
	return true
}

func (server *AssetServer) startLocked(a *TextureArrayAsset, kind AssetEventKind) {
	if server.closed {
		a.State = TextureFailed
		a.Err = ErrAssetServerClosed
		server.events = append(server.events, AssetEvent{Kind: AssetFailed, Handle: a.Handle, Err: ErrAssetServerClosed})
		return
	}
	server.inFlight++
	server.wg.Add(1)
	h, paths, opts := a.Handle, a.Paths, a.Opts
	go func() {
		defer server.wg.Done()
		arr, err := server.decode(paths, opts)
		server.complete(h, kind, arr, err)
	}()
}

func (server *AssetServer) decode(paths []string, opts asset.Options) (*asset.TextureArray, error) {
	if err := server.sem.Acquire(server.ctx, 1); err != nil {
		return nil, err
	}
	defer server.sem.Release(1)
	return server.decoder.Decode(server.ctx, paths, opts)
}

type decodeResult struct {
	handle core.TextureHandle
	kind   AssetEventKind
	array  *asset.TextureArray
	err    error
}

func (server *AssetServer) complete(h core.TextureHandle, kind AssetEventKind, arr *asset.TextureArray, err error) {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.inFlight--
	server.done = append(server.done, decodeResult{handle: h, kind: kind, array: arr, err: err})
}

// Drain applies finished decodes and returns one event per completion since the
// previous call, in completion order. Assets only change inside Drain, so the
// main loop sees them consistent between calls.
func (server *AssetServer) Drain() []AssetEvent {
	server.mu.Lock()
	defer server.mu.Unlock()

	events := server.events
	server.events = nil
	for _, r := range server.done {
		a, ok := server.textures[r.handle]
		if !ok {
			// Released while decoding.
			continue
		}
		if r.err != nil {
			a.State = TextureFailed
			a.Err = r.err
			events = append(events, AssetEvent{Kind: AssetFailed, Handle: r.handle, Err: r.err})
			continue
		}
		a.State = TextureLoaded
		a.Array = r.array
		a.Err = nil
		a.version++
		events = append(events, AssetEvent{Kind: r.kind, Handle: r.handle})
	}
	server.done = nil
	return events
}

// Get returns the asset for a handle. The returned value must only be touched
// from the main loop.
func (server *AssetServer) Get(h core.TextureHandle) (*TextureArrayAsset, bool) {
	server.mu.Lock()
	defer server.mu.Unlock()
	a, ok := server.textures[h]
	return a, ok
}

// Version counts successful decodes of the array.
func (a *TextureArrayAsset) Version() uint {
	return a.version
}

// NeedsUpload reports whether the decoded array is newer than its GPU copy.
func (a *TextureArrayAsset) NeedsUpload() bool {
	return a.State == TextureLoaded && (a.Gpu == nil || a.GpuVersion != a.version)
}

func (server *AssetServer) SetSampler(h core.TextureHandle, desc *wgpu.SamplerDescriptor) bool {
	server.mu.Lock()
	defer server.mu.Unlock()
	a, ok := server.textures[h]
	if !ok {
		return false
	}
	a.Sampler = desc
	return true
}

// Retain adds a reference to a live handle.
func (server *AssetServer) Retain(h core.TextureHandle) bool {
	server.mu.Lock()
	defer server.mu.Unlock()
	a, ok := server.textures[h]
	if !ok {
		return false
	}
	a.refs++
	return true
}

// Release drops a reference and frees the array when none remain.
func (server *AssetServer) Release(h core.TextureHandle) {
	server.mu.Lock()
	defer server.mu.Unlock()
	a, ok := server.textures[h]
	if !ok {
		return
	}
	a.refs--
	if a.refs > 0 {
		return
	}
	delete(server.textures, h)
	for k, v := range server.byKey {
		if v == h {
			delete(server.byKey, k)
		}
	}
	if a.Gpu != nil {
		a.Gpu.Release()
	}
	server.log.Debugf("released texture array %s", h)
}

func (server *AssetServer) RefCount(h core.TextureHandle) int {
	server.mu.Lock()
	defer server.mu.Unlock()
	if a, ok := server.textures[h]; ok {
		return a.refs
	}
	return 0
}

func (server *AssetServer) InFlight() int {
	server.mu.Lock()
	defer server.mu.Unlock()
	return server.inFlight
}

// Wait blocks until every started decode has finished.
func (server *AssetServer) Wait() {
	server.wg.Wait()
}

// Close cancels pending decodes and waits for the workers to exit.
func (server *AssetServer) Close() {
	server.mu.Lock()
	server.closed = true
	server.mu.Unlock()
	server.cancel()
	server.wg.Wait()
}

// ReleaseGpu drops every uploaded copy. Decoded arrays are kept.
func (server *AssetServer) ReleaseGpu() {
	server.mu.Lock()
	defer server.mu.Unlock()
	for _, a := range server.textures {
		if a.Gpu != nil {
			a.Gpu.Release()
			a.Gpu = nil
		}
	}
}

func (mod AssetServerModule) Install(app *App, cmd *Commands) {
	server := NewAssetServer(mod.Decoder, mod.MaxConcurrentDecodes, Prefixed(app.Logger(), "assets"))
	cmd.AddResources(server, &AssetEvents{})
	cmd.UseSystem(System(assetEventsSystem).InStage(PreUpdate))
}

func assetEventsSystem(server *AssetServer, events *AssetEvents) {
	events.Events = server.Drain()
}

func (mod AssetServerModule) Shutdown(app *App) {
	if server, ok := Resource[AssetServer](app); ok {
		server.Close()
	}
}
