package instrument

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Instrument defaults applied at connection time, matching the deployment
// band the analyzer ships configured for.
const (
	DefaultStartKHz  int64 = 5_100_000
	DefaultEndKHz    int64 = 5_900_000
	DefaultTopDBM          = -20
	DefaultBottomDBM       = -90
	DefaultBinCount        = 112
)

// Plausibility bounds for bin counts carried by config echoes.
const (
	minBinCount = 2
	maxBinCount = 4096
)

var (
	// ErrConfigRejected is returned when a config echo is implausible.
	// The previously confirmed configuration stays in effect.
	ErrConfigRejected = errors.New("config echo rejected")

	// ErrSpanMismatch flags a sweep whose bin count disagrees with the
	// active configuration. The sweep itself is still usable; the flag
	// tells the caller the span has changed under it.
	ErrSpanMismatch = errors.New("sweep does not match active span")
)

// Config is the instrument's confirmed spectrum configuration.
type Config struct {
	StartKHz  int64
	EndKHz    int64
	TopDBM    int
	BottomDBM int
	BinCount  int
}

// DefaultConfig returns the configuration assumed before the first echo.
func DefaultConfig() Config {
	return Config{
		StartKHz:  DefaultStartKHz,
		EndKHz:    DefaultEndKHz,
		TopDBM:    DefaultTopDBM,
		BottomDBM: DefaultBottomDBM,
		BinCount:  DefaultBinCount,
	}
}

// DeviceInfo identifies the connected instrument. Fields stay empty until
// the corresponding directives arrive.
type DeviceInfo struct {
	MainModel      string
	ExpansionModel string
	Firmware       string
	SerialNumber   string
}

// ParseConfigEcho parses the comma-separated fields of a config echo:
// "StartKHz,EndKHz,TopDBM,BottomDBM" with an optional fifth bin count
// field. A missing bin count is returned as zero, meaning "keep current".
func ParseConfigEcho(body []byte) (Config, error) {
	fields := strings.Split(string(body), ",")
	if len(fields) < 4 {
		return Config{}, fmt.Errorf("%w: %d fields given, want at least 4", ErrConfigRejected, len(fields))
	}

	var (
		cfg Config
		err error
	)
	if cfg.StartKHz, err = parseKHz(fields[0]); err != nil {
		return Config{}, fmt.Errorf("%w: parsing start frequency: %w", ErrConfigRejected, err)
	}
	if cfg.EndKHz, err = parseKHz(fields[1]); err != nil {
		return Config{}, fmt.Errorf("%w: parsing end frequency: %w", ErrConfigRejected, err)
	}
	if cfg.TopDBM, err = parseIntField(fields[2]); err != nil {
		return Config{}, fmt.Errorf("%w: parsing top amplitude: %w", ErrConfigRejected, err)
	}
	if cfg.BottomDBM, err = parseIntField(fields[3]); err != nil {
		return Config{}, fmt.Errorf("%w: parsing bottom amplitude: %w", ErrConfigRejected, err)
	}
	if len(fields) >= 5 {
		if cfg.BinCount, err = parseIntField(fields[4]); err != nil {
			return Config{}, fmt.Errorf("%w: parsing bin count: %w", ErrConfigRejected, err)
		}
	}

	return cfg, nil
}

func parseKHz(field string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(field), 10, 64)
}

func parseIntField(field string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(field))
}

// Model tracks the last confirmed instrument state for one connection.
// A single ingestion goroutine writes it; readers take copies.
type Model struct {
	mu   sync.Mutex
	cfg  Config
	info DeviceInfo
}

// NewModel returns a model seeded with the instrument defaults.
func NewModel() *Model {
	return &Model{cfg: DefaultConfig()}
}

// Apply installs a parsed config echo. Implausible configurations (inverted
// or non-positive span, absurd bin count) are rejected and the prior
// configuration is retained. A zero bin count keeps the current one.
func (m *Model) Apply(c Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.BinCount == 0 {
		c.BinCount = m.cfg.BinCount
	}
	if c.StartKHz <= 0 || c.StartKHz >= c.EndKHz {
		return fmt.Errorf("%w: span %d-%d kHz is inverted or empty", ErrConfigRejected, c.StartKHz, c.EndKHz)
	}
	if c.BinCount < minBinCount || c.BinCount > maxBinCount {
		return fmt.Errorf("%w: implausible bin count %d", ErrConfigRejected, c.BinCount)
	}

	m.cfg = c
	return nil
}

// Validate checks a sweep's bin count against the active configuration.
// A mismatch means a span change was observed before its echo; the caller
// decides whether to reset derived state.
func (m *Model) Validate(binCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if binCount != m.cfg.BinCount {
		return fmt.Errorf("%w: %d bins given, configuration expects %d", ErrSpanMismatch, binCount, m.cfg.BinCount)
	}
	return nil
}

// Config returns a copy of the current configuration.
func (m *Model) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Info returns a copy of the device identity collected so far.
func (m *Model) Info() DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// ApplyDeviceInfo folds a device info directive into the identity:
// "C2-M:<main>,<expansion>,<firmware>" or "Sn<serial>".
func (m *Model) ApplyDeviceInfo(body []byte) {
	line := string(body)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.HasPrefix(line, modelInfoPrefix):
		fields := strings.Split(strings.TrimPrefix(line, modelInfoPrefix), ",")
		if len(fields) >= 3 {
			m.info.MainModel = strings.TrimSpace(fields[0])
			m.info.ExpansionModel = strings.TrimSpace(fields[1])
			m.info.Firmware = strings.TrimSpace(fields[2])
		}
	case strings.HasPrefix(line, serialPrefix):
		m.info.SerialNumber = strings.TrimPrefix(line, serialPrefix)
	}
}
