package modem

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// TestTransport is a test helper that simulates a serial port using channels.
// Reads block until data is queued, the read timeout elapses (returning 0
// and a nil error, like a real port) or the transport is closed. Every
// write is recorded.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	pending  []byte
	timeout  time.Duration
	written  bytes.Buffer
	writes   chan []byte
	done     chan struct{}
	closed   bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
		writes:   make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

func (t *TestTransport) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
	return nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	if len(t.pending) > 0 {
		n = copy(p, t.pending)
		t.pending = t.pending[n:]
		t.mu.Unlock()
		return n, nil
	}
	timeout := t.timeout
	t.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case data := <-t.readChan:
		t.mu.Lock()
		defer t.mu.Unlock()
		n = copy(p, data)
		t.pending = append(t.pending, data[n:]...)
		return n, nil
	case <-expired:
		return 0, nil
	case <-t.done:
		return 0, io.EOF
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	t.written.Write(p)
	select {
	case t.writes <- bytes.Clone(p):
	default:
	}
	return len(p), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates bytes arriving from the peer.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	select {
	case t.readChan <- []byte(data):
	case <-t.done:
	}
}

// Written returns everything written so far.
func (t *TestTransport) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written.String()
}

// NextWrite waits up to timeout for the next Write call and returns its
// bytes. The second result is false on timeout.
func (t *TestTransport) NextWrite(timeout time.Duration) ([]byte, bool) {
	select {
	case p := <-t.writes:
		return p, true
	case <-time.After(timeout):
		return nil, false
	}
}
