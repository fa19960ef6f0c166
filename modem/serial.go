package modem

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate matches the UART setup of the firmware under test.
const DefaultBaudRate = 115200

// SerialDialer opens the emulated modem's end of a serial link using
// go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyUSB1" or "COM4".
	PortName string
	// BaudRate is used when Mode is nil. Defaults to DefaultBaudRate.
	BaudRate int
	// Mode overrides the default 8N1 framing.
	Mode *serial.Mode
	// FlowControl enables RTS/CTS pacing: RTS and DTR are asserted on open
	// and writes wait for the peer to assert CTS.
	FlowControl bool
	// CTSPollInterval is how often CTS is sampled while waiting.
	CTSPollInterval time.Duration
}

// Dial opens the configured serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("fakemodem: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("fakemodem: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.mode()
	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", d.PortName, err)
	}

	if !d.FlowControl {
		return port, nil
	}

	interval := d.CTSPollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &flowControlPort{Port: port, interval: interval}, nil
}

func (d SerialDialer) mode() *serial.Mode {
	var mode serial.Mode
	if d.Mode != nil {
		mode = *d.Mode
	} else {
		baud := d.BaudRate
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		mode = serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}
	if d.FlowControl {
		mode.InitialStatusBits = &serial.ModemOutputBits{RTS: true, DTR: true}
	}
	return &mode
}

// flowControlPort holds every write until the peer asserts CTS, then waits
// for the bytes to leave the output buffer.
type flowControlPort struct {
	serial.Port
	interval time.Duration
	closed   atomic.Bool
}

func (p *flowControlPort) Write(b []byte) (int, error) {
	if err := p.waitCTS(); err != nil {
		return 0, err
	}
	n, err := p.Port.Write(b)
	if err != nil {
		return n, err
	}
	return n, p.Port.Drain()
}

func (p *flowControlPort) waitCTS() error {
	for {
		if p.closed.Load() {
			return ErrAlreadyClosed
		}
		bits, err := p.Port.GetModemStatusBits()
		if err != nil {
			return fmt.Errorf("read modem status: %w", err)
		}
		if bits.CTS {
			return nil
		}
		time.Sleep(p.interval)
	}
}

func (p *flowControlPort) Close() error {
	p.closed.Store(true)
	return p.Port.Close()
}

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// ListPorts enumerates the serial ports available to SerialDialer.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}
