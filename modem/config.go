package modem

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"i4.energy/across/fakemodem/at"
)

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if c.lineCapacity != 0 && c.lineCapacity < 3 {
		return fmt.Errorf("line capacity %d too small", c.lineCapacity)
	}
	if c.signalQuality != nil {
		return c.signalQuality.Validate()
	}
	return nil
}

// Config carries the settings of an emulated modem. Build one with
// NewConfigBuilder; New applies the same defaults to a hand-made Config.
type Config struct {
	dialer        Dialer
	pollTimeout   time.Duration
	lineCapacity  int
	signalQuality *at.SignalQuality
	logger        *slog.Logger
}

func (c *Config) setDefaults() {
	if c.pollTimeout == 0 {
		c.pollTimeout = 100 * time.Millisecond
	}
	if c.lineCapacity == 0 {
		c.lineCapacity = at.DefaultLineCapacity
	}
	if c.signalQuality == nil {
		q := at.DefaultSignalQuality
		c.signalQuality = &q
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets how the transport is opened. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithPollTimeout sets the bounded wait of each receive in the driving loop.
func (b *ConfigBuilder) WithPollTimeout(d time.Duration) *ConfigBuilder {
	b.config.pollTimeout = d
	return b
}

// WithLineCapacity sets the line buffer size, terminator slot included.
func (b *ConfigBuilder) WithLineCapacity(n int) *ConfigBuilder {
	b.config.lineCapacity = n
	return b
}

// WithSignalQuality sets the scripted +CSQ fields.
func (b *ConfigBuilder) WithSignalQuality(q at.SignalQuality) *ConfigBuilder {
	b.config.signalQuality = &q
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
