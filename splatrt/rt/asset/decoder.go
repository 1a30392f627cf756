package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/h2non/filetype"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNoLayers          = errors.New("texture array has no layers")
	ErrTooManyLayers     = fmt.Errorf("texture array has more than %d layers", MaxLayers)
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Decoder turns layer files into one texture array. Implementations wrap an image codec.
type Decoder interface {
	Decode(ctx context.Context, paths []string, opts Options) (*TextureArray, error)
}

// ImageDecoder decodes PNG, JPEG, BMP, TIFF and WebP layers.
// Layers with a different size than the first are resized to match it.
type ImageDecoder struct{}

var _ Decoder = ImageDecoder{}

func (d ImageDecoder) Decode(ctx context.Context, paths []string, opts Options) (*TextureArray, error) {
	if len(paths) == 0 {
		return nil, ErrNoLayers
	}
	if len(paths) > MaxLayers {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyLayers, len(paths))
	}

	space := opts.ColorSpace
	if space == ColorSpaceAuto {
		space = DetectColorSpace(paths[0])
	}

	layers := make([]*image.RGBA, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := decodeLayer(path)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			img = resize(img, layers[0].Bounds().Dx(), layers[0].Bounds().Dy())
		}
		layers = append(layers, img)
	}

	label := opts.Label
	if label == "" {
		label = filepath.Base(paths[0])
	}
	arr := &TextureArray{
		Label:      label,
		Format:     formatFor(space, opts.TwoComponent),
		ColorSpace: space,
		Layers:     uint32(len(layers)),
	}

	for {
		w, h := layers[0].Bounds().Dx(), layers[0].Bounds().Dy()
		level := MipLevel{Width: uint32(w), Height: uint32(h)}
		for _, l := range layers {
			level.Data = append(level.Data, pack(l, opts.TwoComponent)...)
		}
		arr.Levels = append(arr.Levels, level)

		if !opts.GenerateMips || (w == 1 && h == 1) {
			break
		}
		nw, nh := max(w/2, 1), max(h/2, 1)
		for i := range layers {
			layers[i] = resize(layers[i], nw, nh)
		}
	}
	return arr, nil
}

// DetectColorSpace treats "name.linear.ext" files as linear data.
func DetectColorSpace(path string) ColorSpace {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(base, ".linear") || strings.HasSuffix(base, "_linear") {
		return ColorSpaceLinear
	}
	return ColorSpaceSrgb
}

// MipLevelCount is the length of a full mip chain for a w x h texture.
func MipLevelCount(w, h uint32) uint32 {
	n := uint32(1)
	for w > 1 || h > 1 {
		w, h = max(w/2, 1), max(h/2, 1)
		n++
	}
	return n
}

func formatFor(space ColorSpace, twoComponent bool) wgpu.TextureFormat {
	switch {
	case twoComponent:
		return wgpu.TextureFormatRG8Unorm
	case space == ColorSpaceLinear:
		return wgpu.TextureFormatRGBA8Unorm
	default:
		return wgpu.TextureFormatRGBA8UnormSrgb
	}
}

func decodeLayer(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layer %s: %w", path, err)
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode layer %s (%s): %w", path, kind.MIME.Value, err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}

func resize(img *image.RGBA, w, h int) *image.RGBA {
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func pack(img *image.RGBA, twoComponent bool) []byte {
	if !twoComponent {
		out := make([]byte, len(img.Pix))
		copy(out, img.Pix)
		return out
	}
	out := make([]byte, 0, len(img.Pix)/2)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		out = append(out, img.Pix[i], img.Pix[i+1])
	}
	return out
}
