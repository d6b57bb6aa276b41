//go:build !govips || !cgo

package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const defaultJPEGQuality = 80

type stdlibCodec struct{}

func (stdlibCodec) Convert(data []byte, target Format, opts EncodeOptions) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	// The input is fully decoded; drop the reference so the buffer is
	// collectable before the encoder starts allocating. Peak memory per
	// call must not hold input, pixels, and output at once.
	data = nil

	out, err := encodeImage(img, target, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return out, nil
}

func (stdlibCodec) Dimensions(data []byte) (Dimensions, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Dimensions{Width: uint32(cfg.Width), Height: uint32(cfg.Height)}, nil
}

func encodeImage(img image.Image, target Format, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer

	switch target {
	case PNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, err
		}
	case JPEG:
		quality := opts.Quality
		if quality <= 0 || quality > 100 {
			quality = defaultJPEGQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case GIF:
		return encodeGIF(img)
	case BMP:
		// The bmp writer only keeps alpha for NRGBA/RGBA inputs; anything
		// else with transparency goes through the generic 24-bit path, so
		// normalize first.
		if !imageIsOpaque(img) {
			if _, ok := img.(*image.NRGBA); !ok {
				img = toNRGBA(img)
			}
		}
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no encoder for format %s", target)
	}

	return buf.Bytes(), nil
}

// encodeGIF encodes img as a single-frame GIF. GIF carries 1-bit alpha:
// sources with transparency get a palette whose first slot is reserved
// as fully transparent, and every pixel's alpha is binarized at the
// midpoint before palette matching.
func encodeGIF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer

	if imageIsOpaque(img) {
		if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := gif.Encode(&buf, binarizeAlpha(img), nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func binarizeAlpha(img image.Image) *image.Paletted {
	b := img.Bounds()

	pal := make(color.Palette, 0, 256)
	pal = append(pal, color.RGBA{}) // index 0: the transparent slot
	pal = append(pal, palette.Plan9[:255]...)
	opaquePal := pal[1:]

	pm := image.NewPaletted(b, pal)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.At(x, y)
			_, _, _, a := c.RGBA()
			if a < 0x8000 {
				pm.SetColorIndex(x, y, 0)
				continue
			}
			pm.SetColorIndex(x, y, uint8(1+opaquePal.Index(flattenOpaque(c))))
		}
	}
	return pm
}

// flattenOpaque snaps a color to full alpha, undoing premultiplication
// for partially transparent pixels so their hue survives binarization.
func flattenOpaque(c color.Color) color.Color {
	r, g, b, a := c.RGBA()
	if a == 0xffff || a == 0 {
		return color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0xffff}
	}
	return color.RGBA64{
		R: uint16(r * 0xffff / a),
		G: uint16(g * 0xffff / a),
		B: uint16(b * 0xffff / a),
		A: 0xffff,
	}
}

func imageIsOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
