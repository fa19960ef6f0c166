package modem

//go:generate go tool mockgen -source=transport.go -destination=mock_transport_test.go -package=modem

import (
	"context"
	"io"
	"time"
)

// Transport represents an established, bidirectional byte stream between the
// emulated modem and the driver under test.
//
// A Transport is assumed to be already connected and ready for use. Reads
// honour the timeout set with SetReadTimeout: when no byte arrives within the
// window, Read returns 0 and a nil error. Typical implementations include
// serial ports, TCP connections, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
	// SetReadTimeout bounds every subsequent Read. A zero or negative value
	// blocks until data arrives.
	SetReadTimeout(t time.Duration) error
}

// Dialer opens a Transport.
//
// Dialer abstracts how the connection is created (for example, via a
// serial port, an accepted TCP connection, or test double) and is intended
// to be used during construction only. Once a Transport is obtained, the
// Dialer is no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts an ordinary function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// writeFull writes p to w, retrying partial writes until every byte has been
// accepted. A writer that makes no progress without reporting an error is
// retried as long as ctx allows.
func writeFull(ctx context.Context, w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
		if n == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
