// internal/bus/transport.go
package bus

import "github.com/sungw5/lcfs/internal/frame"

// Transport performs exactly one command/response round trip.
//
// buf is either nil or frame.BlockSize bytes. For a write-direction block
// transfer the caller fills buf before the call; for a read-direction transfer
// the transport fills it after an acknowledged response.
//
// A transport-level failure is reported either as a non-nil error or as the
// frame.Failure sentinel. Callers check both before decoding.
type Transport interface {
	Transfer(f frame.Frame, buf []byte) (frame.Frame, error)
}

// Failed reports whether a round trip result is a transport-level failure.
func Failed(resp frame.Frame, err error) bool {
	return err != nil || resp == frame.Failure
}
