package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/dubu/engine/renderer/metadata"
	"github.com/spaghettifunk/dubu/engine/resources"
)

const rgbaChannels = 4

// DecodeTexture turns an embedded texture into RGBA8 pixels. Compressed
// streams (zero height) go through the registered image decoders, raw
// textures are taken as RGBA8 and must hold exactly width*height*4 bytes.
func DecodeTexture(tex *resources.EmbeddedTexture) (*metadata.ImageResourceData, error) {
	if tex.IsCompressed() {
		return decodeCompressed(tex.Data)
	}

	size := uint64(tex.Width) * uint64(tex.Height) * rgbaChannels
	if tex.Width == 0 {
		return nil, fmt.Errorf("raw texture has zero width")
	}
	if uint64(len(tex.Data)) != size {
		return nil, fmt.Errorf("raw %dx%d texture holds %d bytes, expected %d", tex.Width, tex.Height, len(tex.Data), size)
	}
	return &metadata.ImageResourceData{
		ChannelCount: rgbaChannels,
		Width:        tex.Width,
		Height:       tex.Height,
		Pixels:       tex.Data,
	}, nil
}

func decodeCompressed(data []byte) (*metadata.ImageResourceData, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode compressed texture: %w", err)
	}

	rgba := toRGBA(img)
	bounds := rgba.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("decoded %s texture is empty", format)
	}
	return &metadata.ImageResourceData{
		ChannelCount: rgbaChannels,
		Width:        uint32(bounds.Dx()),
		Height:       uint32(bounds.Dy()),
		Pixels:       rgba.Pix,
	}, nil
}

// toRGBA returns img as a tightly packed, origin based, non premultiplied
// RGBA image.
func toRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) && nrgba.Stride == nrgba.Rect.Dx()*rgbaChannels {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
