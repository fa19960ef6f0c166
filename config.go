package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"i4.energy/across/fakemodem/at"
	"i4.energy/across/fakemodem/modem"
)

// Config holds the application configuration
type Config struct {
	// SerialPort is the path to the emulator's serial port (e.g. "/dev/ttyUSB1")
	SerialPort string
	// BaudRate is the baud rate of the serial link (e.g. 115200)
	BaudRate int
	// FlowControl enables RTS/CTS hardware flow control on the serial link
	FlowControl bool
	// ListenAddress serves the emulator over TCP instead of a serial port (e.g. ":7000")
	ListenAddress string
	// BindAddress is the address of the diagnostics HTTP server, empty disables it
	BindAddress string
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// PollTimeout is the bounded wait of each receive in the emulator loop
	PollTimeout time.Duration
	// ReplyTimeout is how long the probe waits for each response
	ReplyTimeout time.Duration
	// LineCapacity is the emulator's line buffer size
	LineCapacity int
	// RSSI and BER are the scripted +CSQ fields
	RSSI int
	BER  int
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings no component can run with
func (c *Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("invalid poll timeout %s", c.PollTimeout)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("invalid reply timeout %s", c.ReplyTimeout)
	}
	if c.LineCapacity < 3 {
		return fmt.Errorf("invalid line capacity %d", c.LineCapacity)
	}
	return c.SignalQuality().Validate()
}

// SignalQuality returns the configured +CSQ fields
func (c *Config) SignalQuality() at.SignalQuality {
	return at.SignalQuality{RSSI: c.RSSI, BER: c.BER}
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.SerialPort = "/dev/ttyUSB1"
		c.BaudRate = modem.DefaultBaudRate
		c.LogLevel = "info"
		c.PollTimeout = 100 * time.Millisecond
		c.ReplyTimeout = modem.DefaultReplyTimeout
		c.LineCapacity = at.DefaultLineCapacity
		c.RSSI = at.DefaultSignalQuality.RSSI
		c.BER = at.DefaultSignalQuality.BER
		return nil
	}
}

// fileConfig is the YAML layout of the configuration file. Pointers tell
// unset keys apart from zero values.
type fileConfig struct {
	SerialPort    *string `yaml:"serial_port"`
	BaudRate      *int    `yaml:"baud_rate"`
	FlowControl   *bool   `yaml:"flow_control"`
	ListenAddress *string `yaml:"listen_address"`
	BindAddress   *string `yaml:"bind_address"`
	LogLevel      *string `yaml:"log_level"`
	PollTimeout   *string `yaml:"poll_timeout"`
	ReplyTimeout  *string `yaml:"reply_timeout"`
	LineCapacity  *int    `yaml:"line_capacity"`
	CSQ           struct {
		RSSI *int `yaml:"rssi"`
		BER  *int `yaml:"ber"`
	} `yaml:"csq"`
}

// WithFile loads configuration from a YAML file. An empty path is a no-op
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}

		var f fileConfig
		if err := yaml.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}

		if f.SerialPort != nil {
			c.SerialPort = *f.SerialPort
		}
		if f.BaudRate != nil {
			c.BaudRate = *f.BaudRate
		}
		if f.FlowControl != nil {
			c.FlowControl = *f.FlowControl
		}
		if f.ListenAddress != nil {
			c.ListenAddress = *f.ListenAddress
		}
		if f.BindAddress != nil {
			c.BindAddress = *f.BindAddress
		}
		if f.LogLevel != nil {
			c.LogLevel = *f.LogLevel
		}
		if f.PollTimeout != nil {
			d, err := time.ParseDuration(*f.PollTimeout)
			if err != nil {
				return fmt.Errorf("parse poll_timeout: %w", err)
			}
			c.PollTimeout = d
		}
		if f.ReplyTimeout != nil {
			d, err := time.ParseDuration(*f.ReplyTimeout)
			if err != nil {
				return fmt.Errorf("parse reply_timeout: %w", err)
			}
			c.ReplyTimeout = d
		}
		if f.LineCapacity != nil {
			c.LineCapacity = *f.LineCapacity
		}
		if f.CSQ.RSSI != nil {
			c.RSSI = *f.CSQ.RSSI
		}
		if f.CSQ.BER != nil {
			c.BER = *f.CSQ.BER
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if fc := os.Getenv("FLOW_CONTROL"); fc != "" {
			if b, err := strconv.ParseBool(fc); err == nil {
				c.FlowControl = b
			}
		}

		if addr := os.Getenv("LISTEN_ADDRESS"); addr != "" {
			c.ListenAddress = addr
		}

		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if poll := os.Getenv("POLL_TIMEOUT"); poll != "" {
			if d, err := time.ParseDuration(poll); err == nil {
				c.PollTimeout = d
			}
		}

		if reply := os.Getenv("REPLY_TIMEOUT"); reply != "" {
			if d, err := time.ParseDuration(reply); err == nil {
				c.ReplyTimeout = d
			}
		}

		if capacity := os.Getenv("LINE_CAPACITY"); capacity != "" {
			if n, err := strconv.Atoi(capacity); err == nil {
				c.LineCapacity = n
			}
		}

		if rssi := os.Getenv("CSQ_RSSI"); rssi != "" {
			if n, err := strconv.Atoi(rssi); err == nil {
				c.RSSI = n
			}
		}

		if ber := os.Getenv("CSQ_BER"); ber != "" {
			if n, err := strconv.Atoi(ber); err == nil {
				c.BER = n
			}
		}

		return nil
	}
}

// WithFlags loads configuration from the command-line flags that were set
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var errs []error
		fSet.Visit(func(f *pflag.Flag) {
			value := f.Value.String()
			switch f.Name {
			case "serial-port":
				c.SerialPort = value
			case "baud-rate":
				if b, err := strconv.Atoi(value); err == nil {
					c.BaudRate = b
				}
			case "flow-control":
				if b, err := strconv.ParseBool(value); err == nil {
					c.FlowControl = b
				}
			case "listen":
				c.ListenAddress = value
			case "bind-address":
				c.BindAddress = value
			case "log-level":
				c.LogLevel = value
			case "poll-timeout":
				if d, err := time.ParseDuration(value); err == nil {
					c.PollTimeout = d
				} else {
					errs = append(errs, fmt.Errorf("--poll-timeout: %w", err))
				}
			case "timeout":
				if d, err := time.ParseDuration(value); err == nil {
					c.ReplyTimeout = d
				} else {
					errs = append(errs, fmt.Errorf("--timeout: %w", err))
				}
			case "line-capacity":
				if n, err := strconv.Atoi(value); err == nil {
					c.LineCapacity = n
				}
			case "rssi":
				if n, err := strconv.Atoi(value); err == nil {
					c.RSSI = n
				}
			case "ber":
				if n, err := strconv.Atoi(value); err == nil {
					c.BER = n
				}
			}
		})
		return errors.Join(errs...)
	}
}
