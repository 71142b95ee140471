package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/rfwatch/rfwatch/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	sessionID := config.SessionID
	if sessionID == "" {
		var err error
		if sessionID, err = store.LatestSessionID(ctx); err != nil {
			return fmt.Errorf("finding most recent session: %w", err)
		}
		logger.Info("using most recent session", slog.String("sessionID", sessionID))
	}

	return renderWaterfall(ctx, store, sessionID, config, logger)
}

func renderWaterfall(ctx context.Context, store *storage.SqliteStore, sessionID string, config *Config, logger *slog.Logger) error {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinFreqKHz != nil && config.MaxFreqKHz != nil:
		opts = append(opts, storage.WithFreqRange(*config.MinFreqKHz, *config.MaxFreqKHz))

		filters = append(filters,
			slog.String("minFreq", fmt.Sprintf("%0.2fkHz", *config.MinFreqKHz)),
			slog.String("maxFreq", fmt.Sprintf("%0.2fkHz", *config.MaxFreqKHz)))

	case config.MinFreqKHz != nil:
		opts = append(opts, storage.WithMinFreq(*config.MinFreqKHz))
		filters = append(filters, slog.String("minFreq", fmt.Sprintf("%0.2fkHz", *config.MinFreqKHz)))

	case config.MaxFreqKHz != nil:
		opts = append(opts, storage.WithMaxFreq(*config.MaxFreqKHz))
		filters = append(filters, slog.String("maxFreq", fmt.Sprintf("%0.2fkHz", *config.MaxFreqKHz)))
	}

	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(config.MinTimestamp.UTC(), config.MaxTimestamp.UTC()))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(config.MinTimestamp.UTC()))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(config.MaxTimestamp.UTC()))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", filters...)

	reader, err := store.ReadSweeps(sessionID, opts...)
	if err != nil {
		return err
	}
	defer reader.Close()

	if session := reader.Session(); session != nil {
		logger.Info("session",
			slog.String("sessionID", session.ID),
			slog.String("state", session.State),
			slog.String("startedAt", session.StartedAt.Local().Format(time.DateTime)),
			slog.String("device", session.DeviceSerial))
	}

	logger.Info("reading sweeps, hold on tight, it will take a while")

	data := NewWaterfallData(NewSmoothBounds(0.3))
	for reader.Next(ctx) {
		data.Update(reader.Current())
	}
	if err = reader.Error(); err != nil {
		return err
	}

	if data.Height == 0 {
		return fmt.Errorf("session %s has no sweeps to render", sessionID)
	}

	bounds := data.Bounds(config.MinPower, config.MaxPower)

	logger.Info("finished reading sweeps",
		slog.Group("stats",
			slog.String("minTimestamp", data.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", data.TimestampEnd.Local().Format(time.DateTime)),
			slog.String("minFreq", fmt.Sprintf("%0.2fkHz", data.FrequencyMinKHz)),
			slog.String("maxFreq", fmt.Sprintf("%0.2fkHz", data.FrequencyMaxKHz)),
			slog.String("minPower", fmt.Sprintf("%0.2fdBm", bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdBm", bounds.Max)),
		))

	renderer, err := NewWaterfallRenderer(RenderConfig{
		Location:    config.TimeZone,
		ColorTheme:  config.Theme,
		FontPath:    config.FontPath,
		Annotations: !config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating waterfall renderer: %w", err)
	}

	logger.Info("rendering waterfall",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", data.Width),
			slog.Int("height", data.Height),
		))

	img, err := renderer.Render(data, bounds)
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	if err != nil {
		out.Close()
		return fmt.Errorf("encoding image: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	logger.Info("waterfall rendered", slog.String("file", config.OutputFile))
	return nil
}
