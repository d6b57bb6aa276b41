package imaging

import (
	"bytes"
	"errors"
	"image"
	"testing"
)

// assertConversion converts input to target and checks the output is
// classified as target, keeps the source dimensions, and re-decodes.
func assertConversion(t *testing.T, input []byte, target Format, w, h uint32) []byte {
	t.Helper()

	out, err := Convert(append([]byte(nil), input...), target)
	if err != nil {
		t.Fatalf("convert to %s: %v", target, err)
	}

	detected, err := Detect(out)
	if err != nil {
		t.Fatalf("detect output: %v", err)
	}
	if detected != target {
		t.Fatalf("expected output format %s, got %s", target, detected)
	}

	dims, err := GetDimensions(out)
	if err != nil {
		t.Fatalf("dimensions of output: %v", err)
	}
	if dims.Width != w || dims.Height != h {
		t.Fatalf("expected %dx%d, got %dx%d", w, h, dims.Width, dims.Height)
	}

	if _, _, err := image.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not re-decodable: %v", err)
	}
	return out
}

func TestConvertMatrix(t *testing.T) {
	sources := []struct {
		format Format
		data   []byte
		w, h   uint32
	}{
		{PNG, makePNG(t, 50, 40), 50, 40},
		{JPEG, makeJPEG(t, 50, 40), 50, 40},
		{WebP, webpBytes(t, webpLossless1x1), 1, 1},
		{GIF, makeGIF(t, 50, 40), 50, 40},
		{BMP, makeBMP(t, 50, 40), 50, 40},
	}
	targets := []Format{PNG, JPEG, GIF, BMP}

	for _, src := range sources {
		for _, target := range targets {
			if src.format == target {
				continue
			}
			t.Run(src.format.String()+"_to_"+target.String(), func(t *testing.T) {
				assertConversion(t, src.data, target, src.w, src.h)
			})
		}
	}
}

func TestConvertWebPTargetRejected(t *testing.T) {
	// The target check precedes decode, so even invalid input fails
	// with the target error.
	for _, input := range [][]byte{makePNG(t, 2, 2), nil, []byte("not an image")} {
		if _, err := Convert(input, WebP); !errors.Is(err, ErrUnsupportedTarget) {
			t.Fatalf("expected ErrUnsupportedTarget, got %v", err)
		}
	}
}

func TestConvertEmptyInput(t *testing.T) {
	for _, target := range []Format{PNG, JPEG, GIF, BMP} {
		if _, err := Convert(nil, target); !errors.Is(err, ErrDecode) {
			t.Fatalf("%s: expected ErrDecode for empty input, got %v", target, err)
		}
	}
}

func TestConvertTruncatedInput(t *testing.T) {
	full := makePNG(t, 100, 100)
	truncated := full[:100]

	if _, err := Convert(truncated, JPEG); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for truncated input, got %v", err)
	}
}

func TestConvertRandomBytes(t *testing.T) {
	random := make([]byte, 1024)
	for i := range random {
		random[i] = byte(i*137 + 43)
	}

	if _, err := Convert(random, PNG); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for random bytes, got %v", err)
	}
}

func TestConvertSizeVariants(t *testing.T) {
	sizes := []struct {
		name string
		w, h uint32
	}{
		{"tiny", 1, 1},
		{"small", 100, 100},
		{"wide", 2000, 20},
		{"tall", 20, 2000},
	}

	for _, size := range sizes {
		t.Run(size.name, func(t *testing.T) {
			assertConversion(t, makePNG(t, int(size.w), int(size.h)), JPEG, size.w, size.h)
			assertConversion(t, makeBMP(t, int(size.w), int(size.h)), GIF, size.w, size.h)
		})
	}
}

func TestConvertPNGRoundTripIsLossless(t *testing.T) {
	original := patternedNRGBA(50, 50)
	input := encodeFixture(t, original, "png")

	out, err := Convert(input, PNG)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	decoded := decodeNRGBA(t, out)
	if !decoded.Rect.Eq(original.Rect) {
		t.Fatalf("expected bounds %v, got %v", original.Rect, decoded.Rect)
	}
	if !bytes.Equal(original.Pix, decoded.Pix) {
		t.Fatal("png round-trip changed pixel data")
	}
}

func TestConvertPNGAlphaRoundTripIsLossless(t *testing.T) {
	original := binaryAlphaNRGBA(50, 50)
	input := encodeFixture(t, original, "png")

	out, err := Convert(input, PNG)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	decoded := decodeNRGBA(t, out)
	if !bytes.Equal(original.Pix, decoded.Pix) {
		t.Fatal("png round-trip changed alpha or pixel data")
	}
}

func TestConvertBMPToPNGIsLossless(t *testing.T) {
	original := patternedNRGBA(50, 50)
	input := encodeFixture(t, original, "bmp")

	out, err := Convert(input, PNG)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	decoded := decodeNRGBA(t, out)
	if !bytes.Equal(original.Pix, decoded.Pix) {
		t.Fatal("bmp to png changed pixel data")
	}
}

func TestConvertGIFBinarizesAlphaExactly(t *testing.T) {
	original := binaryAlphaNRGBA(10, 10)
	input := encodeFixture(t, original, "png")

	out, err := Convert(input, GIF)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	decoded := decodeNRGBA(t, out)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			origAlpha := original.NRGBAAt(x, y).A
			gotAlpha := decoded.NRGBAAt(x, y).A
			if origAlpha == 0 && gotAlpha != 0 {
				t.Fatalf("pixel (%d,%d): transparent pixel became opaque", x, y)
			}
			if origAlpha == 255 && gotAlpha == 0 {
				t.Fatalf("pixel (%d,%d): opaque pixel became transparent", x, y)
			}
		}
	}
}

func TestConvertJPEGDropsAlpha(t *testing.T) {
	input := encodeFixture(t, binaryAlphaNRGBA(8, 8), "png")

	out, err := Convert(input, JPEG)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	decoded := decodeNRGBA(t, out)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if decoded.NRGBAAt(x, y).A != 255 {
				t.Fatalf("pixel (%d,%d): jpeg output should be fully opaque", x, y)
			}
		}
	}
}

func TestConvertWebPAlphaSource(t *testing.T) {
	out := assertConversion(t, webpBytes(t, webpAlpha1x1), PNG, 1, 1)
	if _, err := Detect(out); err != nil {
		t.Fatalf("detect: %v", err)
	}
}

func TestGetDimensionsPerFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		w, h uint32
	}{
		{"png", makePNG(t, 10, 20), 10, 20},
		{"jpeg", makeJPEG(t, 15, 25), 15, 25},
		{"gif", makeGIF(t, 8, 12), 8, 12},
		{"bmp", makeBMP(t, 5, 7), 5, 7},
		{"webp", webpBytes(t, webpLossless1x1), 1, 1},
	}

	for _, tc := range cases {
		dims, err := GetDimensions(tc.data)
		if err != nil {
			t.Fatalf("%s: dimensions returned error: %v", tc.name, err)
		}
		if dims.Width != tc.w || dims.Height != tc.h {
			t.Fatalf("%s: expected %dx%d, got %dx%d", tc.name, tc.w, tc.h, dims.Width, dims.Height)
		}
	}
}

func TestGetDimensionsExtremeAspectRatios(t *testing.T) {
	wide, err := GetDimensions(makePNG(t, 10000, 100))
	if err != nil {
		t.Fatalf("wide: %v", err)
	}
	if wide.Width != 10000 || wide.Height != 100 {
		t.Fatalf("wide: expected 10000x100, got %dx%d", wide.Width, wide.Height)
	}

	tall, err := GetDimensions(makePNG(t, 100, 10000))
	if err != nil {
		t.Fatalf("tall: %v", err)
	}
	if tall.Width != 100 || tall.Height != 10000 {
		t.Fatalf("tall: expected 100x10000, got %dx%d", tall.Width, tall.Height)
	}
}

func TestGetDimensionsDegenerate(t *testing.T) {
	dims, err := GetDimensions(makePNG(t, 1, 1))
	if err != nil {
		t.Fatalf("dimensions returned error: %v", err)
	}
	if dims.Width != 1 || dims.Height != 1 {
		t.Fatalf("expected 1x1, got %dx%d", dims.Width, dims.Height)
	}
}

func TestGetDimensionsFailures(t *testing.T) {
	if _, err := GetDimensions(nil); !errors.Is(err, ErrDecode) {
		t.Fatalf("empty: expected ErrDecode, got %v", err)
	}

	if _, err := GetDimensions([]byte{0xDE, 0xAD, 0xBE, 0xEF}); !errors.Is(err, ErrDecode) {
		t.Fatalf("garbage: expected ErrDecode, got %v", err)
	}

	// Signature present, header truncated before the dimension fields.
	truncated := makePNG(t, 10, 10)[:10]
	if _, err := GetDimensions(truncated); !errors.Is(err, ErrDecode) {
		t.Fatalf("truncated header: expected ErrDecode, got %v", err)
	}
}
