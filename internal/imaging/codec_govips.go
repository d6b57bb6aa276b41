//go:build govips && cgo

package imaging

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"golang.org/x/image/bmp"
)

type govipsCodec struct{}

func (govipsCodec) Convert(data []byte, target Format, opts EncodeOptions) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	// Decoding owns the pixels now; drop the input reference so it is
	// collectable during export.
	data = nil

	out, err := exportImage(img, target, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return out, nil
}

func (govipsCodec) Dimensions(data []byte) (Dimensions, error) {
	// libvips loads lazily; constructing the image reads headers only.
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	return Dimensions{Width: uint32(img.Width()), Height: uint32(img.Height())}, nil
}

func exportImage(img *vips.ImageRef, target Format, opts EncodeOptions) ([]byte, error) {
	switch target {
	case PNG:
		data, _, err := img.ExportPng(vips.NewPngExportParams())
		return data, err
	case JPEG:
		params := vips.NewJpegExportParams()
		if opts.Quality > 0 && opts.Quality <= 100 {
			params.Quality = opts.Quality
		}
		data, _, err := img.ExportJpeg(params)
		return data, err
	case GIF:
		data, _, err := img.ExportGIF(vips.NewGifExportParams())
		return data, err
	case BMP:
		// libvips has no BMP saver; round-trip through PNG into the
		// stdlib bmp encoder.
		pngData, _, err := img.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, err
		}
		decoded, err := png.Decode(bytes.NewReader(pngData))
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := bmp.Encode(&buf, decoded); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("no encoder for format %s", target)
	}
}
