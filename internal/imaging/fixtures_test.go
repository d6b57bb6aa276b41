package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

// Minimal valid 1x1 WebP streams. There is deliberately no WebP encoder
// in this package, so WebP source fixtures are embedded rather than
// generated.
const (
	webpLossless1x1 = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="
	webpLossy1x1    = "UklGRiIAAABXRUJQVlA4IBYAAAAwAQCdASoBAAEADsD+JaQAA3AAAAAA"
	webpAlpha1x1    = "UklGRkoAAABXRUJQVlA4WAoAAAAQAAAAAAAAAAAAQUxQSAwAAAARBxAR/Q9ERP8DAABWUDggGAAAABQBAJ0BKgEAAQAAAP4AAA3AAP7mtQAAAA=="
)

func webpBytes(t *testing.T, b64 string) []byte {
	t.Helper()

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("decode webp fixture: %v", err)
	}
	return data
}

func patternedNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 37) % 256),
				G: uint8((y * 53) % 256),
				B: uint8(((x + y) * 17) % 256),
				A: 255,
			})
		}
	}
	return img
}

// binaryAlphaNRGBA is a red image with a checkerboard of fully
// transparent and fully opaque pixels.
func binaryAlphaNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			alpha := uint8(255)
			if (x+y)%2 != 0 {
				alpha = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: alpha})
		}
	}
	return img
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	return encodeFixture(t, patternedNRGBA(w, h), "png")
}

func makeAlphaPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	return encodeFixture(t, binaryAlphaNRGBA(w, h), "png")
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	return encodeFixture(t, patternedNRGBA(w, h), "jpeg")
}

func makeGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	return encodeFixture(t, patternedNRGBA(w, h), "gif")
}

func makeBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	return encodeFixture(t, patternedNRGBA(w, h), "bmp")
}

func encodeFixture(t *testing.T, img image.Image, format string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		t.Fatalf("no fixture encoder for %s", format)
	}
	if err != nil {
		t.Fatalf("encode %s fixture: %v", format, err)
	}
	return buf.Bytes()
}

func decodeNRGBA(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return toNRGBA(img)
}
