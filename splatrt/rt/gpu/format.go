package gpu

import "github.com/cogentcore/webgpu/wgpu"

// TextureFormatRG16Unorm is the native-only 16-bit two-channel format.
const TextureFormatRG16Unorm = wgpu.TextureFormat(wgpu.NativeTextureFormatRg16Unorm)

// TextureFormatClass groups pixel formats by how many channels a sampler returns.
type TextureFormatClass uint8

const (
	FormatClassOther TextureFormatClass = iota
	FormatClassOneComponent
	FormatClassTwoComponent
	FormatClassColor
)

func (c TextureFormatClass) String() string {
	switch c {
	case FormatClassOneComponent:
		return "OneComponent"
	case FormatClassTwoComponent:
		return "TwoComponent"
	case FormatClassColor:
		return "Color"
	}
	return "Other"
}

// ClassifyFormat maps a texture format to its class. Only unsigned normalized
// two-channel layouts count as two-component normal maps.
func ClassifyFormat(format wgpu.TextureFormat) TextureFormatClass {
	switch format {
	case wgpu.TextureFormatRG8Unorm,
		TextureFormatRG16Unorm,
		wgpu.TextureFormatBC5RGUnorm,
		wgpu.TextureFormatEACRG11Unorm:
		return FormatClassTwoComponent
	case wgpu.TextureFormatR8Unorm,
		wgpu.TextureFormatBC4RUnorm,
		wgpu.TextureFormatEACR11Unorm:
		return FormatClassOneComponent
	case wgpu.TextureFormatRGBA8Unorm,
		wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatBGRA8Unorm,
		wgpu.TextureFormatBGRA8UnormSrgb,
		wgpu.TextureFormatRGBA16Float,
		wgpu.TextureFormatRGBA32Float,
		wgpu.TextureFormatBC1RGBAUnorm,
		wgpu.TextureFormatBC1RGBAUnormSrgb,
		wgpu.TextureFormatBC3RGBAUnorm,
		wgpu.TextureFormatBC3RGBAUnormSrgb,
		wgpu.TextureFormatBC7RGBAUnorm,
		wgpu.TextureFormatBC7RGBAUnormSrgb:
		return FormatClassColor
	}
	return FormatClassOther
}

// Ptr returns a pointer to a copy of c, handy for Derive.
func (c TextureFormatClass) Ptr() *TextureFormatClass {
	return &c
}
