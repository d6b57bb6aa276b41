package imaging

import "fmt"

// Dimensions is an image's pixel size, read from container headers.
type Dimensions struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// EncodeOptions tunes the encode stage. Quality applies to JPEG only
// (1-100); zero means the backend default.
type EncodeOptions struct {
	Quality int
}

// converter is the codec backend behind Convert and Dimensions. The
// implementation is chosen at build time: libvips under the govips build
// tag, Go's image codecs otherwise.
type converter interface {
	Convert(data []byte, target Format, opts EncodeOptions) ([]byte, error)
	Dimensions(data []byte) (Dimensions, error)
}

// Convert decodes data and re-encodes it as target.
//
// The target is validated before any decode work, so requesting a
// non-encodable target (WebP) never pays decode cost. Convert takes
// ownership of data: the backend drops its reference to the input once
// decoding completes so the buffer is collectable while the encoder
// runs. Callers that need the bytes afterwards must pass a copy.
//
// Failures are ErrUnsupportedTarget, ErrDecode, or ErrEncode, each
// wrapping the backend diagnostic.
func Convert(data []byte, target Format) ([]byte, error) {
	return ConvertWith(data, target, EncodeOptions{})
}

// ConvertWith is Convert with explicit encode options.
func ConvertWith(data []byte, target Format, opts EncodeOptions) ([]byte, error) {
	if !target.CanEncode() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
	return newConverter().Convert(data, target, opts)
}

// GetDimensions reads width and height from the container headers
// without decoding pixel data. It fails with an ErrDecode-kind error on
// empty input, unrecognizable bytes, or a header truncated before the
// dimension fields.
func GetDimensions(data []byte) (Dimensions, error) {
	return newConverter().Dimensions(data)
}
