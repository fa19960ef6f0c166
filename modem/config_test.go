package modem_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"i4.energy/across/fakemodem/at"
	"i4.energy/across/fakemodem/modem"
)

func TestConfig(t *testing.T) {
	dialer := modem.DialerFunc(func(context.Context) (modem.Transport, error) {
		return modem.NewTestTransport(), nil
	})

	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Invalid signal quality is rejected", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().
			WithDialer(dialer).
			WithSignalQuality(at.SignalQuality{RSSI: 50, BER: 0}).
			Build()

		if !errors.Is(err, at.ErrInvalidSignalQuality) {
			t.Errorf("expected ErrInvalidSignalQuality, got: %v", err)
		}
	})

	t.Run("Line capacity too small is rejected", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().
			WithDialer(dialer).
			WithLineCapacity(2).
			Build()

		if err == nil {
			t.Error("expected error for line capacity 2")
		}
	})

	t.Run("Zero signal quality is honoured", func(t *testing.T) {
		transport := modem.NewTestTransport()
		config, err := modem.NewConfigBuilder().
			WithDialer(modem.DialerFunc(func(context.Context) (modem.Transport, error) {
				return transport, nil
			})).
			WithSignalQuality(at.SignalQuality{RSSI: 0, BER: 0}).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		m, err := modem.New(context.Background(), config)
		if err != nil {
			t.Fatalf("unexpected error from New(): %v", err)
		}
		defer m.Close()
		go m.Loop(context.Background())

		transport.SendData("AT+CSQ\r\n")
		resp, _ := transport.NextWrite(time.Second)
		if string(resp) != "\r\n+CSQ: 0,0\r\nOK\r\n" {
			t.Errorf("unexpected response %q", resp)
		}
	})
}
