package instrument

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/rfwatch/rfwatch/internal/spectrum"
)

const readBufferSize = 2048

var (
	// ErrDeviceBusy is returned when sampling is already running.
	ErrDeviceBusy = errors.New("device is already sampling")

	// ErrTransportFault wraps unrecoverable serial stream errors. It is the
	// only condition fatal to a capture; everything below it resynchronizes.
	ErrTransportFault = errors.New("transport fault")
)

// PortConfig describes the serial link to the instrument.
type PortConfig struct {
	Port     string
	BaudRate uint
}

// DefaultPortConfig returns the instrument's fixed UART parameters.
func DefaultPortConfig() PortConfig {
	return PortConfig{Port: "/dev/ttyUSB0", BaudRate: 500_000}
}

// WithLogger sets the logger for the device.
func WithLogger(logger *slog.Logger) func(*Device) {
	return func(d *Device) {
		d.logger = logger.With(slog.String("component", "instrument"))
	}
}

// Device drives one instrument over an established byte stream: it owns the
// single ingestion goroutine that decodes frames, keeps the configuration
// model current and forwards decoded sweeps.
type Device struct {
	rw    io.ReadWriteCloser
	model *Model
	dec   *Decoder

	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	writeMu sync.Mutex
	logger  *slog.Logger
}

// Open connects to the instrument's serial port.
func Open(cfg PortConfig, options ...func(*Device)) (*Device, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:        cfg.Port,
		BaudRate:        cfg.BaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Port, err)
	}

	return New(port, options...), nil
}

// New wraps an established byte stream. Open is the production entry point;
// New exists so the stream can be substituted.
func New(rw io.ReadWriteCloser, options ...func(*Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		rw:     rw,
		model:  NewModel(),
		dec:    NewDecoder(),
		logger: logger,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// BeginSampling starts the ingestion loop, sending decoded sweeps to the
// sweeps channel until the context ends or the transport fails. The current
// configuration is requested once at startup. The returned channel closes
// when sampling stops and carries the terminal error, if any.
func (d *Device) BeginSampling(ctx context.Context, sweeps chan<- spectrum.Sweep) (<-chan error, error) {
	if d.isSampling.Load() {
		return nil, ErrDeviceBusy
	}

	d.isSampling.Store(true)

	ctx, d.cancel = context.WithCancel(ctx)

	if err := d.RequestConfig(); err != nil {
		d.cancel()
		d.isSampling.Store(false)
		return nil, err
	}

	samplingStopped := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer close(samplingStopped)

		d.logger.Info("starting sweep collection...")

		done := make(chan error, 2) // expects two results from two goroutines

		go d.handleRead(ctx, sweeps, done)
		go d.handleShutdown(ctx, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				d.cancel() // cancel context on error
				d.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		close(done)

		d.logger.Info("sweep collection stopped")

		d.isSampling.Store(false)
		d.wg.Done()

		if len(errs) > 0 {
			samplingStopped <- errors.Join(errs...)
		}
	}()

	return samplingStopped, nil
}

// StopSampling cancels the ingestion loop and waits for it to finish.
func (d *Device) StopSampling() {
	if !d.isSampling.Load() {
		return // already stopped
	}

	d.cancel()
	d.wg.Wait()
	d.isSampling.Store(false)
}

// IsSampling returns true if the ingestion loop is running.
func (d *Device) IsSampling() bool {
	return d.isSampling.Load()
}

// Close stops sampling and releases the serial port.
func (d *Device) Close() error {
	d.StopSampling()
	return d.closePort()
}

// Config returns the last confirmed instrument configuration.
func (d *Device) Config() Config {
	return d.model.Config()
}

// Info returns the device identity collected so far.
func (d *Device) Info() DeviceInfo {
	return d.model.Info()
}

// SkippedBytes reports how many stream bytes were discarded during
// resynchronization since the connection opened.
func (d *Device) SkippedBytes() uint64 {
	return d.dec.SkippedBytes()
}

// RequestConfig asks the instrument to echo its current configuration.
func (d *Device) RequestConfig() error {
	return d.send(BuildConfigQuery())
}

// SetSpan requests a new frequency span, keeping the current amplitude
// bounds. Delivery is best-effort: success means the bytes were written,
// not that the instrument obeyed. Compliance shows up as a config echo.
func (d *Device) SetSpan(startKHz, endKHz int64) error {
	cfg := d.model.Config()

	frame, err := BuildSpanCommand(startKHz, endKHz, cfg.TopDBM, cfg.BottomDBM)
	if err != nil {
		return err
	}
	return d.send(frame)
}

// send writes a framed command followed by the line terminator the
// instrument expects on its command channel.
func (d *Device) send(frame []byte) error {
	msg := make([]byte, 0, len(frame)+2)
	msg = append(msg, frame...)
	msg = append(msg, '\r', '\n')

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if _, err := d.rw.Write(msg); err != nil {
		return fmt.Errorf("%w: writing command: %w", ErrTransportFault, err)
	}
	return nil
}

// handleRead drains the serial stream, feeding the decoder and dispatching
// every complete frame in arrival order.
func (d *Device) handleRead(ctx context.Context, sweeps chan<- spectrum.Sweep, done chan<- error) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := d.rw.Read(buf)
		if n > 0 {
			d.dec.Feed(buf[:n])
			d.dispatch(ctx, sweeps)
		}
		if err != nil {
			if ctx.Err() != nil {
				done <- nil // shut down on request, not a fault
				return
			}
			done <- fmt.Errorf("%w: reading serial stream: %w", ErrTransportFault, err)
			return
		}
	}
}

// handleShutdown closes the port once the context ends, unblocking the
// pending read.
func (d *Device) handleShutdown(ctx context.Context, done chan<- error) {
	<-ctx.Done()

	if err := d.closePort(); err != nil {
		done <- fmt.Errorf("closing serial port: %w", err)
		return
	}
	done <- nil
}

func (d *Device) closePort() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.rw.Close()
	})
	return d.closeErr
}

// dispatch drains every frame currently decodable.
func (d *Device) dispatch(ctx context.Context, sweeps chan<- spectrum.Sweep) {
	for {
		frame, ok := d.dec.Next()
		if !ok {
			return
		}

		switch frame.Kind {
		case FrameSweep:
			d.dispatchSweep(ctx, frame.Body, sweeps)

		case FrameConfigEcho:
			cfg, err := ParseConfigEcho(frame.Body)
			if err != nil {
				d.logger.Warn("ignoring config echo", slog.String("error", err.Error()))
				continue
			}
			if err := d.model.Apply(cfg); err != nil {
				d.logger.Warn("ignoring config echo", slog.String("error", err.Error()))
				continue
			}
			d.logger.Info("instrument configuration confirmed",
				slog.Int64("startKHz", cfg.StartKHz),
				slog.Int64("endKHz", cfg.EndKHz),
				slog.Int("bins", cfg.BinCount))

		case FrameDeviceInfo:
			d.model.ApplyDeviceInfo(frame.Body)

		default:
			d.logger.Debug("unrecognized directive", slog.String("body", string(frame.Body)))
		}
	}
}

// dispatchSweep converts raw amplitude bytes to dBm, tags the sweep with
// the active span and forwards it. A bin count mismatch is flagged but the
// sweep still flows: the analysis engine resets its own state on span
// changes.
func (d *Device) dispatchSweep(ctx context.Context, body []byte, sweeps chan<- spectrum.Sweep) {
	if err := d.model.Validate(len(body)); err != nil {
		d.logger.Warn("sweep does not match active span", slog.String("error", err.Error()))
	}

	cfg := d.model.Config()

	bins := make([]float64, len(body))
	for i, b := range body {
		bins[i] = -float64(b) / 2.0
	}

	sweep := spectrum.Sweep{
		Timestamp: time.Now(),
		StartKHz:  cfg.StartKHz,
		EndKHz:    cfg.EndKHz,
		Bins:      bins,
	}

	select {
	case sweeps <- sweep:
	case <-ctx.Done():
	}
}
