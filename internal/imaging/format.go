// Package imaging converts raster images between container formats and
// inspects format and dimensions from raw bytes. It orchestrates a codec
// backend selected at build time; it implements no codecs of its own.
package imaging

import (
	"bytes"
	"fmt"
	"strings"
)

// Format is one of the five container formats this package understands.
// WebP is decode-only: it is never a valid encode target.
type Format int

const (
	PNG Format = iota
	JPEG
	WebP
	GIF
	BMP
)

// Formats lists every supported format in detection order.
var Formats = []Format{PNG, JPEG, WebP, GIF, BMP}

// String returns the canonical lowercase name ("png", "jpeg", "webp",
// "gif", "bmp").
func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case WebP:
		return "webp"
	case GIF:
		return "gif"
	case BMP:
		return "bmp"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// CanEncode reports whether f is a valid convert target.
func (f Format) CanEncode() bool {
	return f == PNG || f == JPEG || f == GIF || f == BMP
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	case GIF:
		return "image/gif"
	case BMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

// ParseFormat resolves a format name to a Format. Matching is
// case-insensitive and accepts "jpg" as an alias for "jpeg". Any other
// string fails with ErrUnknownFormatName carrying the original input.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	case "gif":
		return GIF, nil
	case "bmp":
		return BMP, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormatName, name)
	}
}

var (
	pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	gif87aHeader = []byte("GIF87a")
	gif89aHeader = []byte("GIF89a")
	riffHeader   = []byte("RIFF")
	webpFourCC   = []byte("WEBP")
)

// Detect classifies data by its leading file-header signature. Only a
// complete prefix is required, never the full file; a signature truncated
// mid-way is unrecognized rather than a false positive.
//
// Signatures the codec backends recognize but this package does not
// support (TIFF, ICO, AVIF/HEIC) fail with ErrUnsupportedFormat naming
// the detected format, so callers can distinguish "not an image" from
// "not a supported image".
func Detect(data []byte) (Format, error) {
	if len(data) == 0 {
		return 0, ErrEmptyInput
	}

	switch {
	case bytes.HasPrefix(data, pngSignature):
		return PNG, nil
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return JPEG, nil
	case bytes.HasPrefix(data, gif87aHeader), bytes.HasPrefix(data, gif89aHeader):
		return GIF, nil
	case len(data) >= 12 && bytes.HasPrefix(data, riffHeader) && bytes.Equal(data[8:12], webpFourCC):
		return WebP, nil
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return BMP, nil
	}

	if name := sniffKnownOther(data); name != "" {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	return 0, ErrUnrecognized
}

// sniffKnownOther matches signatures of image formats outside the
// supported set. Returns the format name, or "" if nothing matched.
func sniffKnownOther(data []byte) string {
	switch {
	case len(data) >= 4 && (bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A})):
		return "tiff"
	case len(data) >= 4 && bytes.HasPrefix(data, []byte{0x00, 0x00, 0x01, 0x00}):
		return "ico"
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		switch string(data[8:12]) {
		case "avif", "avis":
			return "avif"
		case "heic", "heix", "heif", "mif1":
			return "heic"
		}
	}
	return ""
}
