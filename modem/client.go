package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"i4.energy/across/fakemodem/at"
)

// DefaultReplyTimeout is how long Exec waits for a final result when the
// context carries no deadline.
const DefaultReplyTimeout = 300 * time.Millisecond

const clientPollInterval = 20 * time.Millisecond

// writeDeadliner is implemented by transports whose writes can be bounded,
// such as ConnTransport.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Client is the driver side of the link: it sends one AT command at a time
// and collects the response lines. It is what the firmware under test does,
// and is used to probe an emulator from the command line and in tests.
//
// A Client is not safe for concurrent use.
type Client struct {
	transport Transport
	timeout   time.Duration
	// buf holds received bytes not yet split into lines
	buf []byte
}

// NewClient wraps t. A non-positive timeout selects DefaultReplyTimeout.
func NewClient(t Transport, timeout time.Duration) (*Client, error) {
	if t == nil {
		return nil, ErrNotInitialized
	}
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	if err := t.SetReadTimeout(clientPollInterval); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &Client{transport: t, timeout: timeout}, nil
}

// Exec writes cmd, byte for byte, terminated by CRLF and waits for a final
// result. When the transport supports write deadlines the write is bounded by
// the same deadline as the reply.
//
// Data lines are joined with "\n" and returned together with the final
// result line. A final result other than OK yields an error wrapping
// ErrCommandFailed; silence until the deadline yields ErrNoResponse. URCs
// and empty lines are skipped.
func (c *Client) Exec(ctx context.Context, cmd string) (string, error) {
	if c.transport == nil {
		return "", ErrNotInitialized
	}

	// Apply per-command timeout if context has none
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Anything left over belongs to an earlier, abandoned command
	c.buf = c.buf[:0]

	if wd, ok := c.transport.(writeDeadliner); ok {
		deadline, _ := ctx.Deadline()
		if err := wd.SetWriteDeadline(deadline); err != nil {
			return "", fmt.Errorf("set write deadline: %w", err)
		}
		defer wd.SetWriteDeadline(time.Time{})
	}

	wire := cmd + at.CRLF
	if err := writeFull(ctx, c.transport, []byte(wire)); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", fmt.Errorf("%w for %q: write stalled: %w", ErrNoResponse, cmd, err)
		}
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}

	var lines []string
	chunk := make([]byte, 64)

	for {
		for {
			advance, token, _ := at.Splitter(c.buf, false)
			if advance == 0 {
				break
			}
			line := string(token)
			c.buf = c.buf[advance:]

			if line == "" {
				continue
			}

			switch at.Classify(line) {
			case at.TypeFinal:
				lines = append(lines, line)
				response := strings.Join(lines, "\n")
				if line == at.OK {
					return response, nil
				}
				return response, fmt.Errorf("%w: %s", ErrCommandFailed, line)

			case at.TypeData:
				lines = append(lines, line)

			case at.TypeURC:
				// Not part of the command's response
				continue
			}
		}

		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return strings.Join(lines, "\n"), fmt.Errorf("%w for %q", ErrNoResponse, cmd)
			}
			return strings.Join(lines, "\n"), err
		}

		n, err := c.transport.Read(chunk)
		c.buf = append(c.buf, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return strings.Join(lines, "\n"), io.EOF
			}
			return strings.Join(lines, "\n"), fmt.Errorf("read error: %w", err)
		}
	}
}
