package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rfwatch/rfwatch/internal/instrument"
	"github.com/rfwatch/rfwatch/internal/recording"
	"github.com/rfwatch/rfwatch/internal/spectrum"
	"github.com/rfwatch/rfwatch/internal/storage"
)

const sweepChannelDepth = 16

// WithRecording attaches a bounded capture session, the store persisting
// its accepted samples and the directory receiving the CSV export.
func WithRecording(session *recording.Session, store storage.Store, exportDir string) func(*Collector) {
	return func(c *Collector) {
		c.session = session
		c.store = store
		c.exportDir = exportDir
	}
}

// WithSpan requests a frequency span right after sampling starts.
func WithSpan(startKHz, endKHz int64) func(*Collector) {
	return func(c *Collector) {
		c.spanStartKHz = startKHz
		c.spanEndKHz = endKHz
	}
}

// Collector drives one instrument: decoded sweeps flow through the
// analysis engine and, when a recording session is attached, accepted
// samples are persisted until the session reaches a terminal state.
type Collector struct {
	device *instrument.Device
	engine *spectrum.Engine
	logger *slog.Logger

	session   *recording.Session
	store     storage.Store
	exportDir string

	spanStartKHz int64
	spanEndKHz   int64

	cancel context.CancelFunc
}

// NewCollector creates a new Collector
func NewCollector(device *instrument.Device, engine *spectrum.Engine, logger *slog.Logger, options ...func(*Collector)) *Collector {
	c := Collector{
		device: device,
		engine: engine,
		logger: logger,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Run begins sweep collection and blocks until the context ends, the
// transport fails or the recording session completes.
func (c *Collector) Run(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()

	sweeps := make(chan spectrum.Sweep, sweepChannelDepth)

	stopped, err := c.device.BeginSampling(ctx, sweeps)
	if err != nil {
		return fmt.Errorf("starting sweep collection: %w", err)
	}

	if c.spanStartKHz != 0 || c.spanEndKHz != 0 {
		if err := c.device.SetSpan(c.spanStartKHz, c.spanEndKHz); err != nil {
			c.device.StopSampling()
			return fmt.Errorf("requesting span: %w", err)
		}
	}

	if c.session != nil {
		if err := c.beginSession(ctx); err != nil {
			c.device.StopSampling()
			return err
		}
	}

	for {
		select {
		case sweep := <-sweeps:
			c.handleSweep(ctx, sweep)

			if c.session != nil && c.session.State() == recording.StateCompleted {
				c.device.StopSampling()
				return c.finalize()
			}

		case err := <-stopped:
			if c.session == nil {
				return err
			}

			if err != nil {
				if failErr := c.session.Fail(err); failErr != nil {
					c.logger.Error(failErr.Error())
				}
			}
			if finErr := c.finalize(); finErr != nil {
				c.logger.Error(finErr.Error())
			}
			return err
		}
	}
}

// beginSession starts the recording session and registers it with the
// store. A just-requested span is reflected in the session row before
// its config echo lands.
func (c *Collector) beginSession(ctx context.Context) error {
	if err := c.session.Start(); err != nil {
		return fmt.Errorf("starting recording session: %w", err)
	}

	cfg := c.device.Config()
	startKHz, endKHz := cfg.StartKHz, cfg.EndKHz
	if c.spanStartKHz != 0 || c.spanEndKHz != 0 {
		startKHz, endKHz = c.spanStartKHz, c.spanEndKHz
	}

	info := c.device.Info()
	rec := storage.SessionRecord{
		ID:             c.session.ID().String(),
		StartedAt:      c.session.StartedAt(),
		State:          string(c.session.State()),
		Duration:       c.session.Duration(),
		Interval:       c.session.Interval(),
		StartKHz:       startKHz,
		EndKHz:         endKHz,
		BinCount:       cfg.BinCount,
		DeviceSerial:   info.SerialNumber,
		DeviceFirmware: info.Firmware,
	}
	if err := c.store.CreateSession(ctx, &rec); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	c.logger.Info("recording session started",
		slog.String("session", rec.ID),
		slog.Duration("duration", c.session.Duration()),
		slog.Duration("interval", c.session.Interval()))
	return nil
}

// handleSweep folds a sweep into the engine and offers the result to the
// recording session. Storage failures are logged, not fatal: the sample
// is already counted and the capture goes on.
func (c *Collector) handleSweep(ctx context.Context, sweep spectrum.Sweep) {
	analysis := c.engine.Ingest(sweep)

	c.logger.Debug("sweep",
		slog.Float64("peakDBM", analysis.PeakDBM),
		slog.Float64("peakKHz", analysis.PeakKHz),
		slog.Float64("noiseFloorDBM", analysis.NoiseFloorDBM),
		slog.Float64("snrDB", analysis.SNRDB))

	if c.session == nil {
		return
	}
	if !c.session.Offer(recording.Sample{Sweep: sweep, Analysis: analysis}) {
		return
	}

	c.logger.Info("sample recorded",
		slog.Duration("elapsed", time.Since(c.session.StartedAt()).Round(time.Second)),
		slog.Float64("peakDBM", analysis.PeakDBM),
		slog.String("peakFrequency", humanize.SI(analysis.PeakKHz*1000, "Hz")),
		slog.Float64("meanDBM", analysis.MeanDBM))

	if err := c.store.StoreSweep(ctx, c.session.ID().String(), sweep); err != nil {
		c.logger.Error(fmt.Sprintf("storing sweep: %s", err.Error()))
	}
}

// finalize settles the session into a terminal state, persists its
// summary and exports the samples as CSV. It runs after the run context
// has ended, so store calls use their own context.
func (c *Collector) finalize() error {
	report, err := c.session.Stop()
	if err != nil {
		return fmt.Errorf("finalizing recording session: %w", err)
	}

	ctx := context.Background()
	summary := storage.Summary{
		EndedAt:     report.EndedAt,
		State:       string(report.State),
		SampleCount: report.SampleCount,
		PeakDBM:     report.PeakDBM,
		PeakKHz:     report.PeakKHz,
		Quality:     report.Quality,
	}
	if err := c.store.FinalizeSession(ctx, report.SessionID.String(), summary); err != nil {
		c.logger.Error(err.Error())
	}

	if err := c.exportCSV(report.SessionID.String()); err != nil {
		c.logger.Error(err.Error())
	}

	c.logReport(report)
	return nil
}

func (c *Collector) exportCSV(sessionID string) error {
	path := filepath.Join(c.exportDir, fmt.Sprintf("rf_session_%s.csv", sessionID))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV export: %w", err)
	}
	if err := recording.WriteCSV(f, c.session); err != nil {
		f.Close()
		return fmt.Errorf("exporting CSV: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing CSV export: %w", err)
	}

	c.logger.Info("session exported", slog.String("path", path))
	return nil
}

func (c *Collector) logReport(report *recording.Report) {
	logger := c.logger.With(slog.String("session", report.SessionID.String()))

	logger.Info("recording session finished",
		slog.String("state", string(report.State)),
		slog.Bool("partial", report.IsPartial),
		slog.Duration("elapsed", report.Elapsed),
		slog.Int("samples", report.SampleCount))

	if report.SampleCount == 0 {
		return
	}

	logger.Info("signal report",
		slog.Float64("peakDBM", report.PeakDBM),
		slog.String("peakFrequency", humanize.SI(report.PeakKHz*1000, "Hz")),
		slog.Float64("meanPeakDBM", report.MeanPeakDBM),
		slog.Float64("meanSNRDB", report.SNRMeanDB),
		slog.Float64("meanNoiseFloorDBM", report.NoiseFloorMeanDBM),
		slog.Float64("activePct", report.ActivePct),
		slog.String("quality", report.Quality))

	for _, bin := range report.BusiestBins {
		logger.Info("busiest bin",
			slog.String("frequency", humanize.SI(bin.KHz*1000, "Hz")),
			slog.Float64("meanDBM", bin.MeanDBM),
			slog.Float64("maxDBM", bin.MaxDBM))
	}
	for _, bin := range report.QuietestBins {
		logger.Info("quietest bin",
			slog.String("frequency", humanize.SI(bin.KHz*1000, "Hz")),
			slog.Float64("meanDBM", bin.MeanDBM),
			slog.Float64("maxDBM", bin.MaxDBM))
	}
}
