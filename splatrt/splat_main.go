package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/splat"
	"github.com/gekko3d/splat/splatrt/rt/asset"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML config file (defaults to the built-in scene)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	strict := flag.Bool("strict-shaders", false, "Run full IR validation on every shader variant")
	flag.Parse()

	cfg := splat.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = splat.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *debug {
		cfg.Logging.Debug = true
	}
	if *strict {
		cfg.Render.StrictShaders = true
	}

	app := splat.NewAppBuilder().
		UseModule(
			splat.LoggingModule{Prefix: cfg.Logging.Prefix, Debug: cfg.Logging.Debug},
			splat.TimeModule{},
			splat.ClientModule{
				WindowWidth:   cfg.Window.Width,
				WindowHeight:  cfg.Window.Height,
				WindowTitle:   cfg.Window.Title,
				StrictShaders: cfg.Render.StrictShaders,
				ClearColor:    cfg.Render.ClearColor,
				Ambient:       cfg.Render.Ambient,
				Exposure:      cfg.Render.Exposure,
			},
			splat.InputModule{},
			splat.AssetServerModule{
				Decoder:              asset.ImageDecoder{},
				MaxConcurrentDecodes: cfg.Assets.MaxConcurrentDecodes,
			},
			splat.SplatMaterialModule{Config: cfg, HotReload: cfg.Render.HotReload},
			splat.LightModule{
				Radius:    cfg.Scene.LightRadius,
				Height:    cfg.Scene.LightHeight,
				Intensity: cfg.Scene.LightIntensity,
			},
			splat.FlyingCameraModule{
				Position: mgl32.Vec3(cfg.Scene.CameraPosition),
				Target:   mgl32.Vec3{},
				Speed:    8,
			},
		).
		Build()

	app.Run()
}
