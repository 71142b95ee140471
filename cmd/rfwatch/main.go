package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rfwatch/rfwatch/cmd/rfwatch/app"
)

const logFileName = "rfwatch.log"

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	var verbose bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Parse()

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.Level())
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}

	if config.Live.Enabled {
		// The terminal belongs to the spectrum view; logs go to a file.
		logFile, err := os.Create(logFileName)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to create log file: %s", err.Error()), slog.String("path", logFileName))
			os.Exit(1)
		}
		defer logFile.Close()

		logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: &logLevel}))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
