package modem_test

import (
	"io"
	"time"

	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/fakemodem/modem"
)

// MockSequenceBuilder scripts what the driving loop sees on a MockTransport:
// one single-byte Read per input byte, idle polls, response writes and the
// final hang-up.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Open expects the read timeout to be armed with the poll window.
func (b *MockSequenceBuilder) Open(poll time.Duration) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().SetReadTimeout(poll).Return(nil),
	)
	return b
}

// Input expects data to be read byte by byte.
func (b *MockSequenceBuilder) Input(data string) *MockSequenceBuilder {
	for i := 0; i < len(data); i++ {
		c := data[i]
		b.calls = append(b.calls,
			b.transport.EXPECT().Read(gomock.Len(1)).DoAndReturn(func(p []byte) (int, error) {
				p[0] = c
				return 1, nil
			}),
		)
	}
	return b
}

// Idle expects a read that times out with nothing received.
func (b *MockSequenceBuilder) Idle() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).Return(0, nil),
	)
	return b
}

// Response expects resp to be written in one call. The loop answers on the
// first terminator, so script it right after the CR or LF that ends the line.
func (b *MockSequenceBuilder) Response(resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(resp)).Return(len(resp), nil),
	)
	return b
}

// OK expects the acknowledgment response.
func (b *MockSequenceBuilder) OK() *MockSequenceBuilder {
	return b.Response("\r\nOK\r\n")
}

// Error expects the generic failure response.
func (b *MockSequenceBuilder) Error() *MockSequenceBuilder {
	return b.Response("\r\nERROR\r\n")
}

// Hangup expects a read reporting that the peer went away.
func (b *MockSequenceBuilder) Hangup() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).Return(0, io.EOF),
	)
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
