package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	termbox "github.com/nsf/termbox-go"

	"github.com/rfwatch/rfwatch/internal/instrument"
	"github.com/rfwatch/rfwatch/internal/recording"
	"github.com/rfwatch/rfwatch/internal/spectrum"
)

const (
	redrawInterval = 100 * time.Millisecond

	plotLeft    = 8 // room for amplitude labels
	plotTop     = 3
	minViewCols = 20
	minViewRows = 10
)

// WithSessionProgress shows the recording session state in the footer.
func WithSessionProgress(session *recording.Session) func(*LiveView) {
	return func(v *LiveView) {
		v.session = session
	}
}

// LiveView renders the spectrum as a terminal bar chart: the latest
// sweep as filled columns, the cumulative peak-hold as markers above
// them. Quitting the view cancels the whole run.
type LiveView struct {
	device  *instrument.Device
	engine  *spectrum.Engine
	logger  *slog.Logger
	cancel  context.CancelFunc
	session *recording.Session
}

// NewLiveView creates a new LiveView
func NewLiveView(device *instrument.Device, engine *spectrum.Engine, cancel context.CancelFunc, logger *slog.Logger, options ...func(*LiveView)) *LiveView {
	v := LiveView{
		device: device,
		engine: engine,
		logger: logger,
		cancel: cancel,
	}

	for _, option := range options {
		option(&v)
	}

	return &v
}

// Run owns the terminal until the context ends or the operator quits.
// Key presses act on the instrument and the engine; the screen redraws
// on a fixed cadence.
func (v *LiveView) Run(ctx context.Context) error {
	if err := termbox.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	defer termbox.Close()

	termbox.HideCursor()

	// The poll goroutine exits through the interrupt event, so the
	// events channel closing is the single shutdown path.
	events := make(chan termbox.Event)
	go func() {
		for {
			ev := termbox.PollEvent()
			if ev.Type == termbox.EventInterrupt {
				close(events)
				return
			}
			events <- ev
		}
	}()
	go func() {
		<-ctx.Done()
		termbox.Interrupt()
	}()

	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()

	var runErr error
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return runErr
			}
			switch ev.Type {
			case termbox.EventKey:
				if v.handleKey(ev) {
					v.cancel()
				}
			case termbox.EventError:
				runErr = fmt.Errorf("terminal event: %w", ev.Err)
				v.cancel()
			}

		case <-ticker.C:
			if err := v.draw(); err != nil {
				runErr = err
				v.cancel()
			}
		}
	}
}

// handleKey reacts to one key press and reports whether to quit.
func (v *LiveView) handleKey(ev termbox.Event) bool {
	switch ev.Key {
	case termbox.KeyEsc, termbox.KeyCtrlC:
		return true
	}

	switch ev.Ch {
	case 'q':
		return true

	case 'r':
		v.engine.ResetPeakHold()
		v.logger.Debug("peak-hold reset")

	case 'c':
		if err := v.device.RequestConfig(); err != nil {
			v.logger.Warn("config request failed", slog.String("error", err.Error()))
		}

	case '1', '2', '3', '4':
		idx := int(ev.Ch - '1')
		if idx >= len(instrument.Presets) {
			break
		}
		preset := instrument.Presets[idx]
		if err := v.device.SetSpan(preset.StartKHz, preset.EndKHz); err != nil {
			v.logger.Warn("span preset request failed",
				slog.String("preset", preset.Name),
				slog.String("error", err.Error()))
			break
		}
		v.logger.Info("span preset requested", slog.String("preset", preset.Name))
	}

	return false
}

func (v *LiveView) draw() error {
	if err := termbox.Clear(termbox.ColorDefault, termbox.ColorDefault); err != nil {
		return fmt.Errorf("clearing terminal: %w", err)
	}

	width, height := termbox.Size()
	if width < minViewCols || height < minViewRows {
		putString(0, 0, "terminal too small", termbox.ColorDefault, termbox.ColorDefault)
		return flush()
	}

	snap := v.engine.Snapshot()
	cfg := v.device.Config()

	v.drawHeader(snap, cfg)

	top, bottom := plotTop, height-3
	left, right := plotLeft, width-1

	// Axis
	for x := left; x < right; x++ {
		termbox.SetCell(x, bottom, '-', termbox.ColorDefault, termbox.ColorDefault)
	}
	for y := top; y < bottom; y++ {
		termbox.SetCell(left-1, y, '|', termbox.ColorDefault, termbox.ColorDefault)
	}
	termbox.SetCell(left-1, bottom, '+', termbox.ColorDefault, termbox.ColorDefault)

	ampTop, ampBottom := float64(cfg.TopDBM), float64(cfg.BottomDBM)
	if ampTop <= ampBottom {
		ampTop, ampBottom = instrument.DefaultTopDBM, instrument.DefaultBottomDBM
	}
	ampToY := func(amp float64) int {
		y := top + int(float64(bottom-top)*(amp-ampTop)/(ampBottom-ampTop)+0.5)
		if y < top {
			y = top
		}
		if y > bottom {
			y = bottom
		}
		return y
	}

	// Amplitude labels
	s := strconv.Itoa(int(ampTop))
	putString(left-len(s)-1, top, s, termbox.ColorDefault, termbox.ColorDefault)
	s = strconv.Itoa(int(ampBottom))
	putString(left-len(s)-1, bottom-1, s, termbox.ColorDefault, termbox.ColorDefault)

	// Frequency labels
	startKHz, endKHz := snap.SpanStartKHz, snap.SpanEndKHz
	if snap.Count == 0 {
		startKHz, endKHz = cfg.StartKHz, cfg.EndKHz
	}
	s = fmt.Sprintf("%.3f", float64(startKHz)/1000.0)
	putString(left, bottom+1, s, termbox.ColorDefault, termbox.ColorDefault)
	s = fmt.Sprintf("%.3f", float64(endKHz)/1000.0)
	putString(right-len(s), bottom+1, s, termbox.ColorDefault, termbox.ColorDefault)
	s = fmt.Sprintf("%.3f", float64(startKHz+endKHz)/2000.0)
	putString(left+(right-left)/2-len(s)/2, bottom+1, s, termbox.ColorDefault, termbox.ColorDefault)

	putString(0, height-1, "q:quit  r:reset peak  c:config  1-4:presets", termbox.ColorDefault, termbox.ColorDefault)
	if v.session != nil {
		s = v.recordingStatus()
		putString(width-len(s), height-1, s, termbox.ColorDefault, termbox.ColorDefault)
	}

	bins := snap.Latest.Bins
	plotW := right - left
	if len(bins) == 0 || plotW <= 0 {
		putString(left+2, top+1, "waiting for sweeps...", termbox.ColorDefault, termbox.ColorDefault)
		return flush()
	}

	for x := 0; x < plotW; x++ {
		i := x * len(bins) / plotW

		y := ampToY(bins[i])
		termbox.SetCell(left+x, y, '.', termbox.ColorDefault, termbox.ColorDefault)
		for y++; y < bottom; y++ {
			termbox.SetCell(left+x, y, '.', termbox.ColorDefault, termbox.ColorDefault)
		}

		if i < len(snap.PeakHold) {
			termbox.SetCell(left+x, ampToY(snap.PeakHold[i]), '#', termbox.ColorDefault, termbox.ColorDefault)
		}
	}

	// Peak marker
	px := left + snap.Analysis.PeakBin*plotW/len(bins)
	py := ampToY(snap.Analysis.PeakDBM)
	if py-3 > top {
		termbox.SetCell(px, py-1, 'V', termbox.ColorDefault, termbox.ColorDefault)
		putString(px-2, py-3, fmt.Sprintf("%.3f", snap.Analysis.PeakKHz/1000.0), termbox.ColorDefault, termbox.ColorDefault)
		putString(px-2, py-2, fmt.Sprintf("%.1f", snap.Analysis.PeakDBM), termbox.ColorDefault, termbox.ColorDefault)
	}

	return flush()
}

func (v *LiveView) drawHeader(snap spectrum.Snapshot, cfg instrument.Config) {
	info := v.device.Info()

	identity := "RF Explorer"
	if info.MainModel != "" {
		identity = fmt.Sprintf("%s model %s fw %s", identity, info.MainModel, info.Firmware)
	}
	if info.SerialNumber != "" {
		identity = fmt.Sprintf("%s sn %s", identity, info.SerialNumber)
	}

	header := fmt.Sprintf("%s | %s - %s | %d bins | sweeps %d",
		identity,
		humanize.SI(float64(cfg.StartKHz)*1000, "Hz"),
		humanize.SI(float64(cfg.EndKHz)*1000, "Hz"),
		cfg.BinCount,
		snap.Count)
	if skipped := v.device.SkippedBytes(); skipped > 0 {
		header = fmt.Sprintf("%s | skipped %d", header, skipped)
	}
	putString(0, 0, header, termbox.ColorDefault, termbox.ColorDefault)

	if snap.Count == 0 {
		return
	}

	a := snap.Analysis
	putString(0, 1, fmt.Sprintf("peak %.1f dBm @ %s | floor %.1f dBm | SNR %.1f dB | mean %.1f dBm",
		a.PeakDBM,
		humanize.SI(a.PeakKHz*1000, "Hz"),
		a.NoiseFloorDBM,
		a.SNRDB,
		a.MeanDBM),
		termbox.ColorDefault, termbox.ColorDefault)
}

// recordingStatus summarizes the attached session for the footer.
func (v *LiveView) recordingStatus() string {
	state := v.session.State()
	if state != recording.StateRunning {
		return fmt.Sprintf("recording %s", state)
	}

	elapsed := time.Since(v.session.StartedAt()).Round(time.Second)
	if total := v.session.Duration(); elapsed > total {
		elapsed = total
	}

	return fmt.Sprintf("REC %s/%s | %d samples", elapsed, v.session.Duration(), v.session.SampleCount())
}

func flush() error {
	if err := termbox.Flush(); err != nil {
		return fmt.Errorf("flushing terminal: %w", err)
	}
	return nil
}

func putString(x, y int, s string, fg, bg termbox.Attribute) {
	for i, r := range s {
		termbox.SetCell(x+i, y, r, fg, bg)
	}
}
