package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rfwatch/rfwatch/internal/instrument"
	"github.com/rfwatch/rfwatch/internal/spectrum"
)

type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d *TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) Validate() error {
	duration := time.Duration(*d)

	if duration < 0 {
		return fmt.Errorf("app.TimeDuration: must not be negative: %s", duration)
	}
	if duration > 0 && duration < time.Second {
		return fmt.Errorf("app.TimeDuration: must be at least 1 second: %s given", duration)
	}

	return nil
}

func (d *TimeDuration) String() string {
	duration := time.Duration(*d)
	if duration%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(duration/time.Hour))
	} else if duration%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(duration/time.Minute))
	} else {
		return fmt.Sprintf("%ds", int(duration/time.Second))
	}
}

// Config represents the main application configuration
type Config struct {
	Settings   Settings         `yaml:"settings"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Span       SpanConfig       `yaml:"span"`
	Recording  RecordingConfig  `yaml:"recording"`
	Storage    StorageConfig    `yaml:"storage"`
	Live       LiveConfig       `yaml:"live"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InstrumentConfig describes the serial link to the analyzer.
type InstrumentConfig struct {
	SerialPort string `yaml:"serialPort"` // e.g. /dev/ttyUSB0
	BaudRate   uint   `yaml:"baudRate"`   // instrument UART runs at 500000
}

// SpanConfig selects the frequency span to sweep. A named preset and
// explicit bounds are mutually exclusive; when neither is given the
// instrument keeps whatever span it is currently on.
type SpanConfig struct {
	Preset   string `yaml:"preset"`
	StartKHz int64  `yaml:"startKHz"`
	EndKHz   int64  `yaml:"endKHz"`
}

// Resolve returns the requested span bounds. ok is false when the
// configuration leaves the instrument on its current span.
func (s SpanConfig) Resolve() (startKHz, endKHz int64, ok bool) {
	if s.Preset != "" {
		p, found := instrument.PresetByName(s.Preset)
		if !found {
			return 0, 0, false
		}
		return p.StartKHz, p.EndKHz, true
	}
	if s.StartKHz != 0 && s.EndKHz != 0 {
		return s.StartKHz, s.EndKHz, true
	}
	return 0, 0, false
}

// RecordingConfig bounds the capture session.
type RecordingConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Duration TimeDuration `yaml:"duration"`
	Interval TimeDuration `yaml:"interval"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// LiveConfig toggles the terminal spectrum view.
type LiveConfig struct {
	Enabled      bool `yaml:"enabled"`
	HistoryDepth int  `yaml:"historyDepth"`
}

// DefaultConfig returns the configuration used when no file is given:
// log-only monitoring on the instrument's current span.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Instrument: InstrumentConfig{
			SerialPort: "/dev/ttyUSB0",
			BaudRate:   500_000,
		},
		Recording: RecordingConfig{
			Duration: TimeDuration(5 * time.Minute),
			Interval: TimeDuration(time.Second),
		},
		Storage: StorageConfig{DataDirectory: storageDir},
		Live:    LiveConfig{HistoryDepth: spectrum.DefaultHistoryDepth},
	}
}

// LoadConfig reads and validates a configuration file. An empty path
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration file: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	// Instrument
	if c.Instrument.SerialPort == "" {
		return fmt.Errorf("app.Config: serial port is required")
	}
	if c.Instrument.BaudRate == 0 {
		return fmt.Errorf("app.Config: baud rate must be positive")
	}

	// Span
	if c.Span.Preset != "" {
		if c.Span.StartKHz != 0 || c.Span.EndKHz != 0 {
			return fmt.Errorf("app.Config: span preset and explicit bounds are mutually exclusive")
		}
		if _, ok := instrument.PresetByName(c.Span.Preset); !ok {
			return fmt.Errorf("app.Config: unknown span preset: %s", c.Span.Preset)
		}
	} else if c.Span.StartKHz != 0 || c.Span.EndKHz != 0 {
		if c.Span.StartKHz == 0 || c.Span.EndKHz == 0 {
			return fmt.Errorf("app.Config: span requires both startKHz and endKHz")
		}
		if c.Span.StartKHz >= c.Span.EndKHz {
			return fmt.Errorf("app.Config: span end must be greater than start: %d <= %d", c.Span.EndKHz, c.Span.StartKHz)
		}
		if c.Span.StartKHz < instrument.MinFrequencyKHz || c.Span.EndKHz > instrument.MaxFrequencyKHz {
			return fmt.Errorf("app.Config: span must be between %d and %d kHz: %d-%d given",
				instrument.MinFrequencyKHz, instrument.MaxFrequencyKHz, c.Span.StartKHz, c.Span.EndKHz)
		}
	}

	// Recording
	if c.Recording.Enabled {
		if time.Duration(c.Recording.Duration) <= 0 {
			return fmt.Errorf("app.Config: recording duration must be positive")
		}
		if time.Duration(c.Recording.Interval) <= 0 {
			return fmt.Errorf("app.Config: recording interval must be positive")
		}
		if err := c.Recording.Duration.Validate(); err != nil {
			return fmt.Errorf("app.Config: invalid recording duration: %w", err)
		}
		if err := c.Recording.Interval.Validate(); err != nil {
			return fmt.Errorf("app.Config: invalid recording interval: %w", err)
		}
	}

	// Live view
	if c.Live.HistoryDepth < 0 {
		return fmt.Errorf("app.Config: history depth must not be negative: %d given", c.Live.HistoryDepth)
	}

	return nil
}
