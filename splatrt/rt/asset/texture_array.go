package asset

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// MaxLayers is the number of material layers the splat shaders blend.
const MaxLayers = 4

type ColorSpace uint8

const (
	// ColorSpaceAuto picks linear for files carrying a ".linear" infix, sRGB otherwise.
	ColorSpaceAuto ColorSpace = iota
	ColorSpaceSrgb
	ColorSpaceLinear
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceSrgb:
		return "srgb"
	case ColorSpaceLinear:
		return "linear"
	}
	return "auto"
}

// Options controls how layer images become one texture array.
type Options struct {
	Label      string
	ColorSpace ColorSpace
	// TwoComponent keeps only red and green, for tangent-space normal maps.
	TwoComponent bool
	GenerateMips bool
}

// MipLevel holds every layer of one mip level, layer after layer.
type MipLevel struct {
	Width  uint32
	Height uint32
	Data   []byte
}

// TextureArray is a decoded 2D array texture ready for upload.
type TextureArray struct {
	Label      string
	Format     wgpu.TextureFormat
	ColorSpace ColorSpace
	Layers     uint32
	Levels     []MipLevel
}

func (t *TextureArray) Width() uint32 {
	if len(t.Levels) == 0 {
		return 0
	}
	return t.Levels[0].Width
}

func (t *TextureArray) Height() uint32 {
	if len(t.Levels) == 0 {
		return 0
	}
	return t.Levels[0].Height
}

func (t *TextureArray) BytesPerPixel() uint32 {
	return BytesPerPixel(t.Format)
}

// Layer returns the texels of one layer at a mip level.
func (t *TextureArray) Layer(level, layer int) ([]byte, error) {
	if level < 0 || level >= len(t.Levels) {
		return nil, fmt.Errorf("mip level %d out of range [0, %d)", level, len(t.Levels))
	}
	if layer < 0 || uint32(layer) >= t.Layers {
		return nil, fmt.Errorf("layer %d out of range [0, %d)", layer, t.Layers)
	}
	lvl := t.Levels[level]
	size := int(lvl.Width * lvl.Height * t.BytesPerPixel())
	return lvl.Data[layer*size : (layer+1)*size], nil
}

func BytesPerPixel(format wgpu.TextureFormat) uint32 {
	switch format {
	case wgpu.TextureFormatR8Unorm:
		return 1
	case wgpu.TextureFormatRG8Unorm:
		return 2
	default:
		return 4
	}
}
