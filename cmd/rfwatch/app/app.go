package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rfwatch/rfwatch/internal/instrument"
	"github.com/rfwatch/rfwatch/internal/recording"
	"github.com/rfwatch/rfwatch/internal/spectrum"
	"github.com/rfwatch/rfwatch/internal/storage"
)

const (
	storageDir = "data"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	device, err := instrument.Open(instrument.PortConfig{
		Port:     config.Instrument.SerialPort,
		BaudRate: config.Instrument.BaudRate,
	}, instrument.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open instrument: %w", err)
	}
	defer device.Close()

	engine := spectrum.NewEngine(spectrum.WithHistoryDepth(config.Live.HistoryDepth))

	var options []func(*Collector)
	if startKHz, endKHz, ok := config.Span.Resolve(); ok {
		options = append(options, WithSpan(startKHz, endKHz))
	}

	var session *recording.Session
	if config.Recording.Enabled {
		session, err = recording.NewSession(
			time.Duration(config.Recording.Duration),
			time.Duration(config.Recording.Interval),
		)
		if err != nil {
			return fmt.Errorf("failed to create recording session: %w", err)
		}

		store, dataDir, err := createStorage(&config.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		options = append(options, WithRecording(session, store, dataDir))
	}

	collector := NewCollector(device, engine, logger, options...)

	if !config.Live.Enabled {
		return collector.Run(ctx)
	}

	// The view owns the keyboard: quitting it cancels the collector, and
	// the collector finishing (session complete, transport fault) tears
	// down the view.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var viewOptions []func(*LiveView)
	if session != nil {
		viewOptions = append(viewOptions, WithSessionProgress(session))
	}
	view := NewLiveView(device, engine, cancel, logger, viewOptions...)

	viewStopped := make(chan error, 1)
	go func() {
		viewStopped <- view.Run(ctx)
	}()

	err = collector.Run(ctx)
	cancel()

	if viewErr := <-viewStopped; viewErr != nil && err == nil {
		err = viewErr
	}
	return err
}

// createStorage opens a sweep store in the configured data directory,
// creating the directory when missing. The database file is named after
// the capture start time.
func createStorage(config *StorageConfig) (*storage.SqliteStore, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	dir := config.DataDirectory
	if dir == "" {
		dir = storageDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("creating storage directory '%s': %w", dir, err)
		}
	case err != nil:
		return nil, "", fmt.Errorf("checking storage directory '%s': %w", dir, err)
	case !stat.IsDir():
		return nil, "", fmt.Errorf("invalid storage directory '%s'", dir)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("rf_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), dir, nil
}
