package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi            = 120.0
	fontSize       = 12.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	defaultTimeFormat     = "15:04"
	defaultDatetimeFormat = time.DateTime
)

// BorderConfig defines the sizes of white space around the waterfall
type BorderConfig struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for waterfall visualization
type RenderConfig struct {
	// Time display configuration
	TimeFormat     string         // Format string for time display (e.g. "15:04")
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display

	// Visual configuration
	FontPath     string     // Path to the TTF font used for annotations
	FontSize     float64    // Font size in points
	ColorTheme   ColorTheme // Color scheme for power values
	ColorMapSize int        // Number of colors in gradient (0 for default)

	// Annotations enables the frequency scale, time scale and info bar.
	// When disabled the image is rendered borderless.
	Annotations bool

	// Border configuration
	Borders BorderConfig
}

// WaterfallRenderer handles the visualization of recorded sweep data
type WaterfallRenderer struct {
	colorMap *ColorMapper
	config   RenderConfig
}

// NewWaterfallRenderer creates a new waterfall renderer with the given
// configuration
func NewWaterfallRenderer(config RenderConfig) (*WaterfallRenderer, error) {
	if config.Annotations && config.FontPath == "" {
		return nil, errors.New("font path is required for annotations")
	}

	// Set defaults for zero values
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	return &WaterfallRenderer{config: config}, nil
}

// Render creates an image of the waterfall data with annotations
func (r *WaterfallRenderer) Render(data *WaterfallData, bounds PowerBounds) (*image.RGBA, error) {
	borders := r.config.Borders
	if !r.config.Annotations {
		borders = BorderConfig{}
	}

	// Create image with space for borders
	fullWidth := data.Width + borders.Left + borders.Right
	fullHeight := data.Height + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	// Define waterfall area (1:1 mapping)
	area := image.Rect(
		borders.Left,
		borders.Top,
		borders.Left+data.Width,
		borders.Top+data.Height,
	)

	// Update or create color map
	if r.colorMap == nil {
		r.colorMap = NewColorMapperWithSize(r.config.ColorTheme, bounds, r.config.ColorMapSize)
	} else {
		r.colorMap.UpdateBounds(bounds)
	}

	if r.config.Annotations {
		ann, err := newAnnotator(annotatorConfig{
			TimeFormat:     r.config.TimeFormat,
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			FontPath:       r.config.FontPath,
			FontSize:       r.config.FontSize,
			Borders:        borders,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, data); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	// Render waterfall data last, overwriting any overlapping annotations
	r.renderWaterfall(img, area, data)

	return img, nil
}

// renderWaterfall draws the actual sweep data using the color map
func (r *WaterfallRenderer) renderWaterfall(img *image.RGBA, area image.Rectangle, data *WaterfallData) {
	for y, row := range data.Rows {
		imgY := area.Min.Y + y
		for x, power := range row {
			imgX := area.Min.X + x
			if power != nil {
				img.Set(imgX, imgY, r.colorMap.GetColor(power))
			}
		}
	}
}

// Internal annotator implementation
type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontPath       string
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	fontBytes, err := os.ReadFile(config.FontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font %s: %w", config.FontPath, err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, data *WaterfallData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawFrequencyScale(img, data); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawTimeScale(img, data); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(img, data); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, data *WaterfallData) error {
	freqMin := data.FrequencyMinKHz * 1e3
	freqMax := data.FrequencyMaxKHz * 1e3
	if freqMax <= freqMin {
		return nil
	}

	freqStep := calculateNiceFrequencyStep(freqMax-freqMin, data.Width)
	startFreq := math.Ceil(freqMin/freqStep) * freqStep

	// Get actual font height in pixels
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Calculate centered Y position in the top border
	textY := a.config.Borders.Top - fontHeight/2

	for freq := startFreq; freq <= freqMax; freq += freqStep {
		// Convert frequency to x coordinate
		xRatio := (freq - freqMin) / (freqMax - freqMin)
		x := a.config.Borders.Left + int(xRatio*float64(data.Width))

		// Draw tick mark
		for y := a.config.Borders.Top - tickMarkHeight; y < a.config.Borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		// Format and draw frequency label
		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, data *WaterfallData) error {
	duration := data.TimestampEnd.Sub(data.TimestampStart)

	// Get font metrics once
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Rows are one sweep apart, not one second, so the tick spacing is
	// derived from the session's actual sweep cadence.
	rowsPerTick := max(1, data.Height)
	var rowInterval time.Duration
	if data.Height > 1 && duration > 0 {
		rowInterval = duration / time.Duration(data.Height-1)
		timeStep := calculateNiceTimeStep(duration)
		rowsPerTick = 1
		if n := int(timeStep / rowInterval); n > 1 {
			rowsPerTick = n
		}
	}

	for y := 0; y < data.Height; y += rowsPerTick {
		imgY := y + a.config.Borders.Top

		// Draw tick mark
		for x := a.config.Borders.Left - tickMarkHeight; x < a.config.Borders.Left; x++ {
			img.Set(x, imgY, color.Black)
		}

		// Center text vertically relative to the tick mark position
		textY := imgY + fontHeight/2 - metrics.Descent.Round()

		// Format and draw time label
		rowTime := data.TimestampStart.Add(time.Duration(y) * rowInterval)
		label := rowTime.In(a.config.Location).Format(a.config.TimeFormat)
		pt := freetype.Pt(10, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, data *WaterfallData) error {
	freqMin := data.FrequencyMinKHz * 1e3
	freqMax := data.FrequencyMaxKHz * 1e3

	var sb strings.Builder

	sb.WriteString(formatFrequencyRange(freqMin, freqMax))
	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		data.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		data.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))

	// Calculate pixel resolution in frequency
	freqPerPixel := (freqMax - freqMin) / float64(data.Width)

	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("1px = %s", formatFrequency(freqPerPixel)))

	// Calculate text position in bottom border
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Center text vertically in bottom border
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	// Draw info
	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// Helper functions

func calculateNiceFrequencyStep(range_ float64, width int) float64 {
	// Standard step sizes in Hz
	steps := []float64{
		1,             // 1 Hz
		10,            // 10 Hz
		100,           // 100 Hz
		1_000,         // 1 kHz
		10_000,        // 10 kHz
		100_000,       // 100 kHz
		1_000_000,     // 1 MHz
		10_000_000,    // 10 MHz
		100_000_000,   // 100 MHz
		1_000_000_000, // 1 GHz
	}

	desiredSteps := float64(width) / pixelsPerLabel
	targetStep := range_ / desiredSteps

	// Find the closest standard step size
	for _, step := range steps {
		if step >= targetStep {
			// If this step would give us at least 2 points
			if range_/step >= 2 {
				return step
			}
			break
		}
	}

	// If we can't find a suitable step or would get too few points,
	// return half the range to show at least center frequency
	return range_ / 2
}

func formatFrequency(freq float64) string {
	value, prefix := humanize.ComputeSI(freq)
	return fmt.Sprintf("%0.2f %sHz", value, prefix)
}

func formatFrequencyRange(min, max float64) string {
	return fmt.Sprintf("Freq: %s - %s", formatFrequency(min), formatFrequency(max))
}

func calculateNiceTimeStep(duration time.Duration) time.Duration {
	seconds := duration.Seconds()
	roughStep := seconds / 8 // Aim for about 8 time labels

	// Nice time intervals in seconds
	niceIntervals := []float64{
		60,    // 1 minute
		300,   // 5 minutes
		600,   // 10 minutes
		900,   // 15 minutes
		1800,  // 30 minutes
		3600,  // 1 hour
		7200,  // 2 hours
		14400, // 4 hours
	}

	// Find the first interval larger than our rough step
	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval) * time.Second
		}
	}

	return time.Hour * 6 // Default for very long durations
}
