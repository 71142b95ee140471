package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.Instrument.SerialPort != "/dev/ttyUSB0" {
		t.Errorf("Expected default serial port /dev/ttyUSB0, got %s", config.Instrument.SerialPort)
	}
	if config.Instrument.BaudRate != 500_000 {
		t.Errorf("Expected default baud rate 500000, got %d", config.Instrument.BaudRate)
	}
	if config.Settings.Level() != slog.LevelInfo {
		t.Errorf("Expected default log level info, got %s", config.Settings.Level())
	}
	if config.Recording.Enabled {
		t.Error("Expected recording disabled by default")
	}
	if got := time.Duration(config.Recording.Duration); got != 5*time.Minute {
		t.Errorf("Expected default recording duration 5m, got %s", got)
	}
	if got := time.Duration(config.Recording.Interval); got != time.Second {
		t.Errorf("Expected default recording interval 1s, got %s", got)
	}
	if config.Live.Enabled {
		t.Error("Expected live view disabled by default")
	}
	if _, _, ok := config.Span.Resolve(); ok {
		t.Error("Expected default configuration to keep the instrument span")
	}
}

func TestLoadConfig_File(t *testing.T) {
	content := `
settings:
  logLevel: debug
instrument:
  serialPort: /dev/ttyACM0
  baudRate: 500000
span:
  preset: Kanal 8
recording:
  enabled: true
  duration: 2m
  interval: 10s
storage:
  dataDirectory: rf-data
live:
  enabled: true
  historyDepth: 80
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected no error writing config, got %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("Expected log level debug, got %s", config.Settings.Level())
	}
	if config.Instrument.SerialPort != "/dev/ttyACM0" {
		t.Errorf("Expected serial port /dev/ttyACM0, got %s", config.Instrument.SerialPort)
	}

	startKHz, endKHz, ok := config.Span.Resolve()
	if !ok {
		t.Fatal("Expected span preset to resolve")
	}
	if startKHz != 5_600_000 || endKHz != 5_800_000 {
		t.Errorf("Expected span 5600000-5800000 kHz, got %d-%d", startKHz, endKHz)
	}

	if !config.Recording.Enabled {
		t.Error("Expected recording enabled")
	}
	if got := time.Duration(config.Recording.Duration); got != 2*time.Minute {
		t.Errorf("Expected recording duration 2m, got %s", got)
	}
	if got := time.Duration(config.Recording.Interval); got != 10*time.Second {
		t.Errorf("Expected recording interval 10s, got %s", got)
	}
	if config.Storage.DataDirectory != "rf-data" {
		t.Errorf("Expected data directory rf-data, got %s", config.Storage.DataDirectory)
	}
	if !config.Live.Enabled || config.Live.HistoryDepth != 80 {
		t.Errorf("Expected live view enabled with history depth 80, got %v/%d",
			config.Live.Enabled, config.Live.HistoryDepth)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("settings: ["), 0o644); err != nil {
		t.Fatalf("Expected no error writing config, got %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing serial port",
			mutate:  func(c *Config) { c.Instrument.SerialPort = "" },
			wantErr: true,
		},
		{
			name:    "zero baud rate",
			mutate:  func(c *Config) { c.Instrument.BaudRate = 0 },
			wantErr: true,
		},
		{
			name:    "unknown preset",
			mutate:  func(c *Config) { c.Span.Preset = "Kanal 99" },
			wantErr: true,
		},
		{
			name: "preset and explicit bounds",
			mutate: func(c *Config) {
				c.Span.Preset = "Kanal 4"
				c.Span.StartKHz = 5_500_000
				c.Span.EndKHz = 5_700_000
			},
			wantErr: true,
		},
		{
			name:    "one-sided span",
			mutate:  func(c *Config) { c.Span.StartKHz = 5_500_000 },
			wantErr: true,
		},
		{
			name: "inverted span",
			mutate: func(c *Config) {
				c.Span.StartKHz = 5_700_000
				c.Span.EndKHz = 5_500_000
			},
			wantErr: true,
		},
		{
			name: "span outside tuning range",
			mutate: func(c *Config) {
				c.Span.StartKHz = 100_000
				c.Span.EndKHz = 200_000
			},
			wantErr: true,
		},
		{
			name: "explicit span in range",
			mutate: func(c *Config) {
				c.Span.StartKHz = 5_450_000
				c.Span.EndKHz = 5_850_000
			},
		},
		{
			name: "recording without interval",
			mutate: func(c *Config) {
				c.Recording.Enabled = true
				c.Recording.Interval = 0
			},
			wantErr: true,
		},
		{
			name: "sub-second recording interval",
			mutate: func(c *Config) {
				c.Recording.Enabled = true
				c.Recording.Interval = TimeDuration(500 * time.Millisecond)
			},
			wantErr: true,
		},
		{
			name:    "negative history depth",
			mutate:  func(c *Config) { c.Live.HistoryDepth = -1 },
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)

			err := config.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestTimeDuration_UnmarshalYAML(t *testing.T) {
	var doc struct {
		D TimeDuration `yaml:"d"`
	}

	if err := yaml.Unmarshal([]byte("d: 90s"), &doc); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := time.Duration(doc.D); got != 90*time.Second {
		t.Errorf("Expected 90s, got %s", got)
	}

	if err := yaml.Unmarshal([]byte("d: fast"), &doc); err == nil {
		t.Error("Expected error for unparseable duration, got nil")
	}
}

func TestTimeDuration_String(t *testing.T) {
	testCases := []struct {
		duration time.Duration
		want     string
	}{
		{2 * time.Hour, "2h"},
		{10 * time.Minute, "10m"},
		{90 * time.Second, "90s"},
	}

	for _, tc := range testCases {
		d := TimeDuration(tc.duration)
		if got := d.String(); got != tc.want {
			t.Errorf("Expected %s, got %s", tc.want, got)
		}
	}
}

func TestSettings_Level(t *testing.T) {
	testCases := []struct {
		logLevel string
		want     slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}

	for _, tc := range testCases {
		s := Settings{LogLevel: tc.logLevel}
		if got := s.Level(); got != tc.want {
			t.Errorf("Expected level %s for %q, got %s", tc.want, tc.logLevel, got)
		}
	}
}
