package at_test

import (
	"errors"
	"testing"

	"i4.energy/across/fakemodem/at"
)

func TestResponder_Respond(t *testing.T) {
	r := at.NewResponder(at.DefaultSignalQuality)

	tests := []struct {
		name     string
		line     string
		command  at.Command
		expected string
	}{
		{name: "Attention", line: "AT", command: at.CommandAttention, expected: "\r\nOK\r\n"},
		{name: "Signal quality", line: "AT+CSQ", command: at.CommandSignalQuality, expected: "\r\n+CSQ: 20,99\r\nOK\r\n"},
		{name: "Unknown command", line: "AT+UNKNOWN", command: at.CommandUnknown, expected: "\r\nERROR\r\n"},
		{name: "Lowercase is not folded", line: "at", command: at.CommandUnknown, expected: "\r\nERROR\r\n"},
		{name: "Trailing space is not trimmed", line: "AT ", command: at.CommandUnknown, expected: "\r\nERROR\r\n"},
		{name: "Prefix is not matched", line: "AT+CSQ?", command: at.CommandUnknown, expected: "\r\nERROR\r\n"},
		{name: "Concatenated commands unsupported", line: "AT;+CSQ", command: at.CommandUnknown, expected: "\r\nERROR\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, resp := r.Lookup([]byte(tt.line))
			if command != tt.command {
				t.Errorf("expected command %v, got %v", tt.command, command)
			}
			if string(resp) != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, resp)
			}
			if got := r.Respond([]byte(tt.line)); string(got) != tt.expected {
				t.Errorf("Respond: expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestResponder_TableIsNotMutatedByCallers(t *testing.T) {
	r := at.NewResponder(at.DefaultSignalQuality)

	resp := r.Respond([]byte("AT"))
	copy(resp, "XXXXXX")

	if got := r.Respond([]byte("AT")); string(got) != at.ResponseOK {
		t.Errorf("expected %q after caller mutation, got %q", at.ResponseOK, got)
	}
}

func TestResponder_SignalQuality(t *testing.T) {
	t.Run("Custom fields", func(t *testing.T) {
		r := at.NewResponder(at.SignalQuality{RSSI: 31, BER: 0})
		if got := r.Respond([]byte("AT+CSQ")); string(got) != "\r\n+CSQ: 31,0\r\nOK\r\n" {
			t.Errorf("unexpected response %q", got)
		}
	})

	t.Run("Invalid fields fall back to default", func(t *testing.T) {
		r := at.NewResponder(at.SignalQuality{RSSI: 42, BER: 99})
		if got := r.Respond([]byte("AT+CSQ")); string(got) != "\r\n+CSQ: 20,99\r\nOK\r\n" {
			t.Errorf("unexpected response %q", got)
		}
	})
}

func TestSignalQuality_Validate(t *testing.T) {
	tests := []struct {
		name  string
		q     at.SignalQuality
		valid bool
	}{
		{name: "Default", q: at.DefaultSignalQuality, valid: true},
		{name: "Lowest", q: at.SignalQuality{RSSI: 0, BER: 0}, valid: true},
		{name: "Highest", q: at.SignalQuality{RSSI: 31, BER: 7}, valid: true},
		{name: "Unknown both", q: at.SignalQuality{RSSI: 99, BER: 99}, valid: true},
		{name: "RSSI out of range", q: at.SignalQuality{RSSI: 32, BER: 0}},
		{name: "Negative RSSI", q: at.SignalQuality{RSSI: -1, BER: 0}},
		{name: "BER out of range", q: at.SignalQuality{RSSI: 10, BER: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, at.ErrInvalidSignalQuality) {
				t.Errorf("expected ErrInvalidSignalQuality, got: %v", err)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	if at.ParseCommand([]byte(at.CmdAt)) != at.CommandAttention {
		t.Error("AT should parse as attention")
	}
	if at.ParseCommand([]byte(at.CmdSignalQuality)) != at.CommandSignalQuality {
		t.Error("AT+CSQ should parse as signal quality")
	}
	if at.ParseCommand(nil) != at.CommandUnknown {
		t.Error("empty line should parse as unknown")
	}
	if at.CommandSignalQuality.String() != "signal_quality" {
		t.Errorf("unexpected name %q", at.CommandSignalQuality.String())
	}
}
