package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	defaultFontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf"
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     string
	OutputFile    string
	Format        ImageFormat
	Theme         ColorTheme
	FontPath      string
	TimeZone      *time.Location
	MinPower      *float64
	MaxPower      *float64
	MinFreqKHz    *float64
	MaxFreqKHz    *float64
	MinTimestamp  *time.Time
	MaxTimestamp  *time.Time
	Verbose       bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Theme:    ClassicTheme,
		FontPath: defaultFontPath,
		TimeZone: time.Local,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, theme, timeZone string
	var minPower, maxPower float64
	var minFreq, maxFreq float64
	var from, to string
	flag.StringVar(&c.DBPath, "db", "", "Path to the session database file")
	flag.StringVar(&c.SessionID, "s", "", "Session ID, defaults to the most recent session")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&theme, "theme", string(ClassicTheme), "Color theme. [classic, grayscale, jungle, thermal, marine]")
	flag.StringVar(&c.FontPath, "font", defaultFontPath, "Path to the TTF font used for annotations")
	flag.StringVar(&timeZone, "tz", "Local", "Time zone for time scale labels")
	flag.Float64Var(&minPower, "min-power", 0, "Define a manual minimum power (format nn.n)")
	flag.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum power (format nn.n)")
	flag.Float64Var(&minFreq, "min-freq", 0, "Lowest frequency to render, in kHz")
	flag.Float64Var(&maxFreq, "max-freq", 0, "Highest frequency to render, in kHz")
	flag.StringVar(&from, "from", "", "Render sweeps from this time (format '2006-01-02 15:04:05')")
	flag.StringVar(&to, "to", "", "Render sweeps up to this time (format '2006-01-02 15:04:05')")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and frequency scales")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)
	theme = strings.ToLower(theme)

	// Zero is a valid manual bound, so only flags the user actually set
	// become overrides.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-power":
			c.MinPower = &minPower
		case "max-power":
			c.MaxPower = &maxPower
		case "min-freq":
			c.MinFreqKHz = &minFreq
		case "max-freq":
			c.MaxFreqKHz = &maxFreq
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validColorThemes[ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	}

	if err == nil {
		c.TimeZone, err = time.LoadLocation(timeZone)
		if err != nil {
			err = fmt.Errorf("invalid time zone: %s", timeZone)
		}
	}
	if err == nil && from != "" {
		var t time.Time
		if t, err = time.ParseInLocation(time.DateTime, from, c.TimeZone); err != nil {
			err = fmt.Errorf("invalid from time: %s", from)
		} else {
			c.MinTimestamp = &t
		}
	}
	if err == nil && to != "" {
		var t time.Time
		if t, err = time.ParseInLocation(time.DateTime, to, c.TimeZone); err != nil {
			err = fmt.Errorf("invalid to time: %s", to)
		} else {
			c.MaxTimestamp = &t
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = ColorTheme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
