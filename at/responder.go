package at

import (
	"bytes"
	"errors"
	"fmt"
)

// Canned responses. Every response is framed by CRLF on both sides.
const (
	ResponseOK    = CRLF + OK + CRLF
	ResponseError = CRLF + ERROR + CRLF
)

// Command is the kind of a recognized command line.
type Command int

const (
	// CommandUnknown is any line that is not an exact match for a known command.
	CommandUnknown Command = iota
	// CommandAttention is the bare "AT" liveness check.
	CommandAttention
	// CommandSignalQuality is "AT+CSQ".
	CommandSignalQuality
)

// Commands lists every known command kind, CommandUnknown included.
var Commands = []Command{CommandUnknown, CommandAttention, CommandSignalQuality}

func (c Command) String() string {
	switch c {
	case CommandAttention:
		return "attention"
	case CommandSignalQuality:
		return "signal_quality"
	default:
		return "unknown"
	}
}

// ParseCommand maps a command line to its kind. Matching is byte-for-byte:
// no prefix matching, trimming or case folding.
func ParseCommand(line []byte) Command {
	switch string(line) {
	case CmdAt:
		return CommandAttention
	case CmdSignalQuality:
		return CommandSignalQuality
	default:
		return CommandUnknown
	}
}

// ErrInvalidSignalQuality is returned for CSQ fields outside the 3GPP ranges.
var ErrInvalidSignalQuality = errors.New("invalid signal quality")

// SignalQuality holds the two scripted fields of the +CSQ response.
type SignalQuality struct {
	// RSSI is 0..31, or 99 for unknown.
	RSSI int
	// BER is 0..7, or 99 for unknown.
	BER int
}

// DefaultSignalQuality is a moderate signal (about -73 dBm) with unknown BER.
var DefaultSignalQuality = SignalQuality{RSSI: 20, BER: 99}

func (q SignalQuality) Validate() error {
	if (q.RSSI < 0 || q.RSSI > 31) && q.RSSI != 99 {
		return fmt.Errorf("%w: rssi %d", ErrInvalidSignalQuality, q.RSSI)
	}
	if (q.BER < 0 || q.BER > 7) && q.BER != 99 {
		return fmt.Errorf("%w: ber %d", ErrInvalidSignalQuality, q.BER)
	}
	return nil
}

// String renders the information line, e.g. "+CSQ: 20,99".
func (q SignalQuality) String() string {
	return fmt.Sprintf("%s %d,%d", UrcSignalStrength, q.RSSI, q.BER)
}

// Responder maps command lines to canned responses. Its table is fixed at
// construction and every input maps to exactly one response.
type Responder struct {
	table map[Command][]byte
}

// NewResponder builds the response table. An invalid signal quality falls
// back to DefaultSignalQuality.
func NewResponder(q SignalQuality) *Responder {
	if q.Validate() != nil {
		q = DefaultSignalQuality
	}

	table := make(map[Command][]byte, len(Commands))
	for _, c := range Commands {
		switch c {
		case CommandAttention:
			table[c] = []byte(ResponseOK)
		case CommandSignalQuality:
			table[c] = []byte(CRLF + q.String() + ResponseOK)
		case CommandUnknown:
			table[c] = []byte(ResponseError)
		}
	}
	return &Responder{table: table}
}

// Lookup classifies line and returns the response to transmit. The returned
// slice is owned by the caller.
func (r *Responder) Lookup(line []byte) (Command, []byte) {
	c := ParseCommand(line)
	return c, bytes.Clone(r.table[c])
}

// Respond returns the response bytes for line. line is never empty when it
// comes from a LineAssembler; an empty line gets the failure response.
func (r *Responder) Respond(line []byte) []byte {
	_, resp := r.Lookup(line)
	return resp
}
