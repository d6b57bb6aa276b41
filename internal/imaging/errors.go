package imaging

import "errors"

// Format identification and name parsing failures. Each kind is a
// sentinel so callers branch with errors.Is instead of matching message
// text; context is attached by wrapping.
var (
	ErrEmptyInput        = errors.New("image data is empty")
	ErrUnrecognized      = errors.New("unrecognized image format")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrUnknownFormatName = errors.New("unknown format name")
)

// Conversion failures. Decode and encode errors wrap the codec backend's
// diagnostic so it can be surfaced to the caller verbatim.
var (
	ErrDecode            = errors.New("decode image")
	ErrEncode            = errors.New("encode image")
	ErrUnsupportedTarget = errors.New("format is not supported as a convert target")
)
