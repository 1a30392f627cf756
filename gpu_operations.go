package splat

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/splat/splatrt/rt/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type WindowState struct {
	// glfw
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
	windowTitle  string
}

type GpuState struct {
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView
}

func createWindowState(windowWidth int, windowHeight int, windowTitle string) (*WindowState, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Important: tell GLFW we don't want OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}

	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  windowWidth,
		WindowHeight: windowHeight,
		windowTitle:  windowTitle,
	}, nil
}

func (s *WindowState) destroy() {
	if s.windowGlfw != nil {
		s.windowGlfw.Destroy()
		s.windowGlfw = nil
	}
	glfw.Terminate()
}

func createGpuState(s *WindowState) (*GpuState, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	// wraps GLFW window into a wgpu surface.
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(s.windowGlfw))
	// finds a suitable GPU (discrete GPU preferred)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	// allocates the device and command queue
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:            "Main Device",
		RequiredFeatures: nil,
		RequiredLimits:   nil,
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	width, height := s.windowGlfw.GetFramebufferSize()
	// defines how the swapchain behaves (size, format, vsync)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(max(width, 1)),
		Height:      uint32(max(height, 1)),
		PresentMode: wgpu.PresentModeFifo, // vsync
		AlphaMode:   caps.AlphaModes[0],
	}

	surface.Configure(adapter, device, &surfaceConfig)

	gs := &GpuState{
		surface:       surface,
		adapter:       adapter,
		device:        device,
		queue:         queue,
		surfaceConfig: &surfaceConfig,
	}
	if err := gs.createDepthTexture(); err != nil {
		return nil, err
	}
	return gs, nil
}

func (gs *GpuState) createDepthTexture() error {
	if gs.depthView != nil {
		gs.depthView.Release()
	}
	if gs.depthTexture != nil {
		gs.depthTexture.Release()
	}
	tex, err := gs.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth",
		Size: wgpu.Extent3D{
			Width:              gs.surfaceConfig.Width,
			Height:             gs.surfaceConfig.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        gpu.DepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("depth view: %w", err)
	}
	gs.depthTexture = tex
	gs.depthView = view
	return nil
}

// resize reconfigures the swapchain and depth buffer. A zero-sized (minimized)
// window is ignored.
func (gs *GpuState) resize(width, height int) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, nil
	}
	if uint32(width) == gs.surfaceConfig.Width && uint32(height) == gs.surfaceConfig.Height {
		return false, nil
	}
	gs.surfaceConfig.Width = uint32(width)
	gs.surfaceConfig.Height = uint32(height)
	gs.surface.Configure(gs.adapter, gs.device, gs.surfaceConfig)
	return true, gs.createDepthTexture()
}

func (gs *GpuState) aspect() float32 {
	if gs.surfaceConfig.Height == 0 {
		return 1
	}
	return float32(gs.surfaceConfig.Width) / float32(gs.surfaceConfig.Height)
}

func (gs *GpuState) release() {
	if gs.depthView != nil {
		gs.depthView.Release()
	}
	if gs.depthTexture != nil {
		gs.depthTexture.Release()
	}
	if gs.queue != nil {
		gs.queue.Release()
	}
	if gs.device != nil {
		gs.device.Release()
	}
	if gs.adapter != nil {
		gs.adapter.Release()
	}
	if gs.surface != nil {
		gs.surface.Release()
	}
}

// renderFrame clears the surface and depth buffer and records every draw item.
func renderFrame(gs *GpuState, renderer *gpu.SplatRenderer, items []gpu.DrawItem, clear wgpu.Color) error {
	nextTexture, err := gs.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := gs.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	renderPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clear,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            gs.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	defer renderPass.Release()

	renderer.Draw(renderPass, items)

	if err := renderPass.End(); err != nil {
		return err
	}

	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmdBuffer.Release()

	gs.queue.Submit(cmdBuffer)
	gs.surface.Present()
	return nil
}
