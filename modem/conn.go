package modem

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// ConnTransport adapts a net.Conn (a TCP connection to a serial bridge, or
// one accepted from a listener) to Transport. Read timeouts are implemented
// with read deadlines; an expired deadline is reported as an idle read.
//
// The stream must be buffered like a UART. An unbuffered net.Pipe stalls as
// soon as both ends write at once.
type ConnTransport struct {
	conn net.Conn

	mu      sync.Mutex
	timeout time.Duration
}

// NewConnTransport wraps conn. Reads block until SetReadTimeout is called.
func NewConnTransport(conn net.Conn) *ConnTransport {
	return &ConnTransport{conn: conn}
}

func (c *ConnTransport) SetReadTimeout(t time.Duration) error {
	c.mu.Lock()
	c.timeout = t
	c.mu.Unlock()
	if t <= 0 {
		return c.conn.SetReadDeadline(time.Time{})
	}
	return nil
}

func (c *ConnTransport) Read(p []byte) (int, error) {
	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()

	if timeout > 0 {
		// Fails only on a closed conn, which Read reports more precisely
		_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	}

	n, err := c.conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

// SetWriteDeadline bounds subsequent writes. The zero time removes the bound.
func (c *ConnTransport) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *ConnTransport) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *ConnTransport) Close() error {
	return c.conn.Close()
}

// ConnDialer hands out an already established connection, typically one
// accepted from a net.Listener.
type ConnDialer struct {
	Conn net.Conn
}

func (d ConnDialer) Dial(ctx context.Context) (Transport, error) {
	if d.Conn == nil {
		return nil, errors.New("fakemodem: connection is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewConnTransport(d.Conn), nil
}
