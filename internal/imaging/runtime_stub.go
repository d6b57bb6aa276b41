//go:build !govips || !cgo

package imaging

// Startup and Shutdown are no-ops for the stdlib codec backend.
func Startup() error {
	return nil
}

func Shutdown() {}

func newConverter() converter {
	return stdlibCodec{}
}
