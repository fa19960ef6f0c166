package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/fakemodem/at"
)

// Modem is an emulated cellular modem. It answers AT commands arriving on
// its transport with canned responses, so that a modem driver can be
// exercised without hardware. All transport I/O happens in Loop.
type Modem struct {
	// transport is the modem's end of the link to the driver under test
	transport Transport
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	// assembler and responder are owned by Loop; nothing else touches them
	assembler *at.LineAssembler
	responder *at.Responder

	stats counters

	mu sync.Mutex
	// closed indicates if the modem has been shut down
	closed bool
	// loopRunning indicates if the Loop is currently running
	loopRunning bool
	// loopCancel stops the running Loop
	loopCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Stats is a snapshot of the emulator's counters.
type Stats struct {
	BytesReceived uint64            `json:"bytes_received"`
	BytesSent     uint64            `json:"bytes_sent"`
	Commands      map[string]uint64 `json:"commands"`
	Overflows     uint64            `json:"overflows"`
	WriteErrors   uint64            `json:"write_errors"`
}

type counters struct {
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
	overflows   atomic.Uint64
	writeErrors atomic.Uint64
	commands    [at.CommandSignalQuality + 1]atomic.Uint64
}

// New creates a new Modem with the given configuration. It opens the
// transport and arms its read timeout with the poll window; answering
// commands starts with Loop.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	if err := transport.SetReadTimeout(config.pollTimeout); err != nil {
		transport.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	return &Modem{
		transport: transport,
		config:    config,
		logger:    config.logger,
		assembler: at.NewLineAssembler(config.lineCapacity),
		responder: at.NewResponder(*config.signalQuality),
	}, nil
}

// Loop is the background driving loop. It receives one byte at a time with
// a bounded wait, feeds complete lines to the responder and writes the
// responses back, strictly in arrival order.
//
// Loop runs until ctx is cancelled, Close is called or the transport fails.
// It returns ctx.Err() on a cooperative stop and io.EOF when the peer hangs
// up. Idle polls, unknown commands and over-long lines never stop it.
// Cancelling ctx closes the transport, so the Modem cannot loop again.
//
// Usage:
//
//	m, err := New(ctx, config)
//	if err != nil { return err }
//	defer m.Close()
//
//	go m.Loop(ctx)
func (m *Modem) Loop(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.loopRunning {
		m.mu.Unlock()
		return ErrLoopRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	m.loopRunning = true
	m.loopCancel = cancel
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.loopRunning = false
		m.loopCancel = nil
		m.mu.Unlock()
	}()

	// A response write blocked on a silent peer only returns once the
	// transport is closed.
	stop := context.AfterFunc(ctx, func() { m.closeTransport() })
	defer stop()

	m.logger.Info("Fake modem listening",
		"poll_timeout", m.config.pollTimeout,
		"line_capacity", m.assembler.Cap(),
	)

	var b [1]byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := m.transport.Read(b[:])
		if n > 0 {
			m.handleByte(ctx, b[0])
		}
		if err != nil {
			// Close unblocks a pending read by closing the transport
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				m.logger.Info("Transport closed by peer")
				return io.EOF
			}
			return fmt.Errorf("read error: %w", err)
		}
		// n == 0 && err == nil: poll window elapsed, nothing to do
	}
}

func (m *Modem) handleByte(ctx context.Context, b byte) {
	m.stats.bytesIn.Add(1)

	line, err := m.assembler.Feed(b)
	if errors.Is(err, at.ErrLineTooLong) {
		m.stats.overflows.Add(1)
		m.logger.Warn("Line too long, discarding", "max_length", m.assembler.MaxLineLength())
		return
	}
	if line == nil {
		return
	}

	command, resp := m.responder.Lookup(line)
	m.stats.commands[command].Add(1)
	m.logger.Debug("Received command", "line", string(line), "command", command.String())

	start := time.Now()
	if err := writeFull(ctx, m.transport, resp); err != nil {
		m.stats.writeErrors.Add(1)
		m.logger.Error("Failed to write response", "error", err, "command", command.String())
		return
	}
	m.stats.bytesOut.Add(uint64(len(resp)))
	m.logger.Debug("Sent response", "command", command.String(), "bytes", len(resp), "took", time.Since(start))
}

// Stats returns a snapshot of the counters. It is safe to call while Loop
// is running.
func (m *Modem) Stats() Stats {
	s := Stats{
		BytesReceived: m.stats.bytesIn.Load(),
		BytesSent:     m.stats.bytesOut.Load(),
		Overflows:     m.stats.overflows.Load(),
		WriteErrors:   m.stats.writeErrors.Load(),
		Commands:      make(map[string]uint64, len(at.Commands)),
	}
	for _, c := range at.Commands {
		s.Commands[c.String()] = m.stats.commands[c].Load()
	}
	return s
}

// Close shuts down the modem and releases all resources.
// It stops the event loop, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.closed = true
	cancel := m.loopCancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	return m.closeTransport()
}

// closeTransport closes the transport exactly once, whether Close or a
// cancelled Loop gets there first.
func (m *Modem) closeTransport() error {
	m.closeOnce.Do(func() {
		if m.transport != nil {
			m.closeErr = m.transport.Close()
		}
	})
	return m.closeErr
}
