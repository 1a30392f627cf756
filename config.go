package splat

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gekko3d/splat/splatrt/rt/asset"
	"github.com/gekko3d/splat/splatrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

type LoggingConfig struct {
	Debug  bool   `toml:"debug"`
	Prefix string `toml:"prefix"`
}

// MaterialConfig names one file per texture role inside every layer directory.
// Layer i of each texture array comes from Dirs[i].
type MaterialConfig struct {
	Dirs              []string `toml:"dirs"`
	BaseColor         string   `toml:"base_color"`
	Occlusion         string   `toml:"occlusion"`
	MetallicRoughness string   `toml:"metallic_roughness"`
	NormalMap         string   `toml:"normal_map"`
	// Empty reuses the base colour array.
	Emissive string `toml:"emissive"`

	TwoComponentNormals bool    `toml:"two_component_normals"`
	FlipNormalMapY      bool    `toml:"flip_normal_map_y"`
	GenerateMips        bool    `toml:"generate_mips"`
	Roughness           float32 `toml:"roughness"`
	Metallic            float32 `toml:"metallic"`
	Reflectance         float32 `toml:"reflectance"`
	UvScale             float32 `toml:"uv_scale"`
	DepthBias           float32 `toml:"depth_bias"`
	CullMode            string  `toml:"cull_mode"`
	AlphaMode           string  `toml:"alpha_mode"`
	AlphaCutoff         float32 `toml:"alpha_cutoff"`
	DoubleSided         bool    `toml:"double_sided"`
	Unlit               bool    `toml:"unlit"`
	Biplanar            bool    `toml:"biplanar"`
	// Tints are sRGB as picked in a colour chooser.
	BaseColorTint [4]float32 `toml:"base_color_tint"`
	EmissiveTint  [4]float32 `toml:"emissive_tint"`
}

type SceneConfig struct {
	Radius         float32    `toml:"radius"`
	Subdivisions   int        `toml:"subdivisions"`
	Sharpness      float32    `toml:"sharpness"`
	WeightAxis     [3]float32 `toml:"weight_axis"`
	LightRadius    float32    `toml:"light_radius"`
	LightHeight    float32    `toml:"light_height"`
	LightIntensity float32    `toml:"light_intensity"`
	CameraPosition [3]float32 `toml:"camera_position"`
}

type AssetsConfig struct {
	Root                 string  `toml:"root"`
	MaxConcurrentDecodes int64   `toml:"max_concurrent_decodes"`
	StallWarningSeconds  float64 `toml:"stall_warning_seconds"`
}

type RenderConfig struct {
	StrictShaders bool       `toml:"strict_shaders"`
	ClearColor    [4]float64 `toml:"clear_color"`
	Ambient       [3]float32 `toml:"ambient"`
	Exposure      float32    `toml:"exposure"`
	HotReload     bool       `toml:"hot_reload"`
}

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Logging  LoggingConfig  `toml:"logging"`
	Material MaterialConfig `toml:"material"`
	Scene    SceneConfig    `toml:"scene"`
	Assets   AssetsConfig   `toml:"assets"`
	Render   RenderConfig   `toml:"render"`
}

// DefaultConfig is the reference scene: four terrain materials on a radius 5 icosphere.
func DefaultConfig() Config {
	return Config{
		Window:  WindowConfig{Width: 1280, Height: 720, Title: "splat"},
		Logging: LoggingConfig{Prefix: "splat"},
		Material: MaterialConfig{
			Dirs: []string{
				"angled-blocks-vegetation-ue",
				"broken-down-stonework1-ue",
				"sand-dunes1-ue",
				"ice_field",
			},
			BaseColor:         "albedo.png",
			Occlusion:         "ao.png",
			MetallicRoughness: "metal_rough.png",
			NormalMap:         "normal.linear.png",
			GenerateMips:      true,
			Roughness:         0.9,
			Metallic:          0.05,
			Reflectance:       0.5,
			UvScale:           1.0,
			CullMode:          "back",
			AlphaMode:         "opaque",
			AlphaCutoff:       0.5,
			BaseColorTint:     [4]float32{1, 1, 1, 1},
			EmissiveTint:      [4]float32{0, 0, 0, 1},
		},
		Scene: SceneConfig{
			Radius:         5,
			Subdivisions:   6,
			Sharpness:      core.DefaultSharpness,
			WeightAxis:     [3]float32{1, 0, 0},
			LightRadius:    15,
			LightHeight:    1,
			LightIntensity: 50000,
			CameraPosition: [3]float32{12, 12, 12},
		},
		Assets: AssetsConfig{
			Root:                 "assets/textures",
			MaxConcurrentDecodes: 4,
			StallWarningSeconds:  10,
		},
		Render: RenderConfig{
			ClearColor: [4]float64{0.05, 0.05, 0.08, 1},
			Ambient:    [3]float32{0.05, 0.05, 0.05},
			Exposure:   1,
			HotReload:  true,
		},
	}
}

// LoadConfig overlays a TOML file on DefaultConfig. Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if !filepath.IsAbs(cfg.Assets.Root) {
		cfg.Assets.Root = filepath.Join(filepath.Dir(path), cfg.Assets.Root)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Material.Dirs) == 0 {
		return fmt.Errorf("material.dirs is empty")
	}
	if len(c.Material.Dirs) > asset.MaxLayers {
		return fmt.Errorf("material.dirs has %d entries, at most %d layers are supported", len(c.Material.Dirs), asset.MaxLayers)
	}
	if c.Material.BaseColor == "" {
		return fmt.Errorf("material.base_color is required")
	}
	if _, err := ParseCullMode(c.Material.CullMode); err != nil {
		return err
	}
	if _, err := ParseAlphaMode(c.Material.AlphaMode, c.Material.AlphaCutoff); err != nil {
		return err
	}
	if c.Scene.Subdivisions < 0 {
		return fmt.Errorf("scene.subdivisions must not be negative")
	}
	if c.Assets.MaxConcurrentDecodes < 1 {
		return fmt.Errorf("assets.max_concurrent_decodes must be at least 1")
	}
	return nil
}

// LayerPaths returns one path per layer directory for a file name.
// An empty name yields nil.
func (c Config) LayerPaths(name string) []string {
	if name == "" {
		return nil
	}
	paths := make([]string, len(c.Material.Dirs))
	for i, dir := range c.Material.Dirs {
		paths[i] = filepath.Join(c.Assets.Root, dir, name)
	}
	return paths
}

func (c Config) StallWarning() time.Duration {
	return time.Duration(c.Assets.StallWarningSeconds * float64(time.Second))
}

func (c Config) WeightAxis() mgl32.Vec3 {
	return mgl32.Vec3(c.Scene.WeightAxis)
}

func ParseCullMode(s string) (core.CullMode, error) {
	switch strings.ToLower(s) {
	case "", "back":
		return core.CullBack, nil
	case "front":
		return core.CullFront, nil
	case "none":
		return core.CullNone, nil
	}
	return core.CullNone, fmt.Errorf("unknown cull mode %q", s)
}

func ParseAlphaMode(s string, cutoff float32) (core.AlphaMode, error) {
	switch strings.ToLower(s) {
	case "", "opaque":
		return core.AlphaOpaque(), nil
	case "mask":
		return core.AlphaMask(cutoff), nil
	case "blend":
		return core.AlphaBlend(), nil
	case "premultiplied":
		return core.AlphaPremultiplied(), nil
	case "add":
		return core.AlphaAdd(), nil
	case "multiply":
		return core.AlphaMultiply(), nil
	case "alpha_to_coverage":
		return core.AlphaCoverage(), nil
	}
	return core.AlphaOpaque(), fmt.Errorf("unknown alpha mode %q", s)
}

// MaterialOptions turns the material section into descriptor options.
// Texture handles are added by the caller once loads are issued.
func (c Config) MaterialOptions() []core.MaterialOption {
	cull, _ := ParseCullMode(c.Material.CullMode)
	alpha, _ := ParseAlphaMode(c.Material.AlphaMode, c.Material.AlphaCutoff)
	return []core.MaterialOption{
		core.WithRoughness(c.Material.Roughness),
		core.WithMetallic(c.Material.Metallic),
		core.WithReflectance(c.Material.Reflectance),
		core.WithUvScale(c.Material.UvScale),
		core.WithDepthBias(c.Material.DepthBias),
		core.WithFlipNormalMapY(c.Material.FlipNormalMapY),
		core.WithDoubleSided(c.Material.DoubleSided),
		core.WithUnlit(c.Material.Unlit),
		core.WithCullMode(cull),
		core.WithAlphaMode(alpha),
		core.WithBiplanar(c.Material.Biplanar),
		core.WithBaseColor(core.SrgbToLinear(mgl32.Vec4(c.Material.BaseColorTint))),
		core.WithEmissive(core.SrgbToLinear(mgl32.Vec4(c.Material.EmissiveTint))),
	}
}
