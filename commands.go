package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"i4.energy/across/fakemodem/at"
	"i4.energy/across/fakemodem/modem"
)

// app carries what the persistent pre-run loads for every subcommand
type app struct {
	configPath string
	config     *Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "fakemodem",
		Short:         "Emulate a cellular modem's AT command interface on a serial link",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config, err := LoadConfig(WithDefaults(), WithFile(a.configPath), WithEnv(), WithFlags(cmd.Flags()))
			if err != nil {
				slog.Error("Failed to load configuration", "error", err)
				return err
			}
			a.config = config
			a.logger = newLogger(cmd.ErrOrStderr(), config.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(a), newProbeCmd(a), newPortsCmd())
	return cmd
}

func addSerialFlags(cmd *cobra.Command) {
	cmd.Flags().String("serial-port", "/dev/ttyUSB1", "Serial port to open")
	cmd.Flags().Int("baud-rate", modem.DefaultBaudRate, "Baud rate for serial communication")
	cmd.Flags().Bool("flow-control", false, "Enable RTS/CTS hardware flow control")
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer AT commands on a serial port or TCP address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	addSerialFlags(cmd)
	cmd.Flags().String("listen", "", "Serve over TCP on this address instead of a serial port")
	cmd.Flags().String("bind-address", "", "Bind address for the diagnostics HTTP server (disabled if empty)")
	cmd.Flags().Duration("poll-timeout", 100*time.Millisecond, "Bounded wait of each receive")
	cmd.Flags().Int("line-capacity", at.DefaultLineCapacity, "Line buffer size in bytes")
	cmd.Flags().Int("rssi", at.DefaultSignalQuality.RSSI, "Scripted +CSQ RSSI (0-31, 99)")
	cmd.Flags().Int("ber", at.DefaultSignalQuality.BER, "Scripted +CSQ BER (0-7, 99)")
	return cmd
}

func (a *app) modemConfig(dialer modem.Dialer, logger *slog.Logger) (modem.Config, error) {
	return modem.NewConfigBuilder().
		WithDialer(dialer).
		WithPollTimeout(a.config.PollTimeout).
		WithLineCapacity(a.config.LineCapacity).
		WithSignalQuality(a.config.SignalQuality()).
		WithLogger(logger).
		Build()
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	fleet := NewFleet()

	var httpServer *http.Server
	if a.config.BindAddress != "" {
		httpServer = &http.Server{
			Addr: a.config.BindAddress,
			Handler: &Server{
				Logger: logger.With("component", "server"),
				Fleet:  fleet,
			},
		}

		go func() {
			logger.Info("Starting HTTP server", "address", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
	}

	var err error
	if a.config.ListenAddress != "" {
		err = a.serveTCP(ctx, fleet)
	} else {
		err = a.serveSerial(ctx, fleet)
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logger.Info("Closing HTTP server")
		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			logger.Error("Failed to gracefully shutdown server", "error", serr)
		}
	}

	return err
}

func (a *app) serveSerial(ctx context.Context, fleet *Fleet) error {
	logger := a.logger.With("component", "modem", "port", a.config.SerialPort)

	config, err := a.modemConfig(modem.SerialDialer{
		PortName:    a.config.SerialPort,
		BaudRate:    a.config.BaudRate,
		FlowControl: a.config.FlowControl,
	}, logger)
	if err != nil {
		return fmt.Errorf("create modem config: %w", err)
	}

	return runModem(ctx, config, a.config.SerialPort, fleet, logger)
}

func (a *app) serveTCP(ctx context.Context, fleet *Fleet) error {
	ln, err := net.Listen("tcp", a.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.logger.Info("Accepting connections", "address", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		peer := conn.RemoteAddr().String()
		logger := a.logger.With("component", "modem", "peer", peer)

		config, err := a.modemConfig(modem.ConnDialer{Conn: conn}, logger)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create modem config: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runModem(ctx, config, peer, fleet, logger); err != nil {
				logger.Error("Emulator stopped", "error", err)
			}
		}()
	}
}

// runModem drives one emulator until ctx is cancelled or its peer goes away
func runModem(ctx context.Context, config modem.Config, name string, fleet *Fleet, logger *slog.Logger) error {
	m, err := modem.New(ctx, config)
	if err != nil {
		return fmt.Errorf("create modem: %w", err)
	}

	fleet.Add(name, m)
	defer fleet.Remove(name)

	err = m.Loop(ctx)

	logger.Info("Closing modem connection", "stats", m.Stats())
	if cerr := m.Close(); cerr != nil {
		logger.Error("Failed to close modem", "error", cerr)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func newProbeCmd(a *app) *cobra.Command {
	var (
		connect  string
		interval time.Duration
		count    int
		commands []string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Act as the modem driver: send AT commands and print the responses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var dialer modem.Dialer = modem.SerialDialer{
				PortName:    a.config.SerialPort,
				BaudRate:    a.config.BaudRate,
				FlowControl: a.config.FlowControl,
			}
			if connect != "" {
				dialer = modem.DialerFunc(func(ctx context.Context) (modem.Transport, error) {
					var d net.Dialer
					conn, err := d.DialContext(ctx, "tcp", connect)
					if err != nil {
						return nil, err
					}
					return modem.NewConnTransport(conn), nil
				})
			}

			transport, err := dialer.Dial(ctx)
			if err != nil {
				return fmt.Errorf("dial: %w", err)
			}
			defer transport.Close()

			client, err := modem.NewClient(transport, a.config.ReplyTimeout)
			if err != nil {
				return err
			}

			return probe(ctx, client, commands, interval, count, a.logger.With("component", "probe"))
		},
	}

	addSerialFlags(cmd)
	cmd.Flags().StringVar(&connect, "connect", "", "Probe an emulator served over TCP at this address")
	cmd.Flags().Duration("timeout", modem.DefaultReplyTimeout, "Time to wait for each response")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Delay between commands")
	cmd.Flags().IntVar(&count, "count", 1, "Number of rounds to send, 0 runs until interrupted")
	cmd.Flags().StringSliceVar(&commands, "command", []string{at.CmdAt, at.CmdSignalQuality, "AT+UNKNOWN"}, "Commands to send each round")
	return cmd
}

// probe sends every command once per round and logs what came back. Failed
// or missing responses are logged, not returned.
func probe(ctx context.Context, client *modem.Client, commands []string, interval time.Duration, count int, logger *slog.Logger) error {
	for round := 0; count == 0 || round < count; round++ {
		for i, cmd := range commands {
			if round > 0 || i > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}

			logger.Info("Sending command", "command", cmd)
			resp, err := client.Exec(ctx, cmd)
			switch {
			case errors.Is(err, modem.ErrNoResponse):
				logger.Warn("No response received", "command", cmd)
			case errors.Is(err, modem.ErrCommandFailed):
				logger.Info("Command failed", "command", cmd, "response", resp)
			case err != nil:
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("exec %q: %w", cmd, err)
			default:
				logger.Info("Response received", "command", cmd, "response", resp)
			}
		}
	}
	return nil
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := modem.ListPorts()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.IsUSB {
					fmt.Fprintf(out, "%s\tUSB %s:%s serial=%s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
				} else {
					fmt.Fprintln(out, p.Name)
				}
			}
			return nil
		},
	}
}
