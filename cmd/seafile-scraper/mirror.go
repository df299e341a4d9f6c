package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/lysogeny/seafile-scraper/internal/config"
	"github.com/lysogeny/seafile-scraper/internal/crawl"
	"github.com/lysogeny/seafile-scraper/internal/fetch"
	"github.com/lysogeny/seafile-scraper/internal/logging"
	"github.com/lysogeny/seafile-scraper/internal/progress"
	"github.com/lysogeny/seafile-scraper/internal/seafile"
	"github.com/lysogeny/seafile-scraper/internal/storage"
)

// runMirror crawls a share link and stores every reachable resource.
func runMirror(args []string) int {
	fs := flag.NewFlagSet("mirror", flag.ExitOnError)

	token := fs.String("token", "", "Share link token (required)")
	baseURL := fs.String("base-url", "", "Seafile server URL (required)")
	output := fs.String("output", "", "Destination directory or bucket URL (required)")
	workers := fs.Int("workers", 0, "Parallel downloads per batch (default 5)")
	timeout := fs.Duration("timeout", 0, "Timeout per request (default 60s)")
	retries := fs.Int("retries", 0, "Retries per request after the first attempt (default 5)")
	backoff := fs.Duration("backoff", 0, "Wait between retries (default 10s)")
	pollInterval := fs.Duration("poll-interval", 0, "Wait between archive progress polls (default 1s)")
	overwrite := fs.Bool("overwrite", false, "Overwrite resources that already exist")
	showProgress := fs.Bool("progress", false, "Show periodic progress output")
	configPath := fs.String("config", "", "Path to YAML config file")
	verbose := fs.Bool("verbose", false, "Log at debug level (shorthand for -log-level debug)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	logFormat := fs.String("log-format", "", "Log format: console, json (default console)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: seafile-scraper mirror [options]

Crawl a share link and mirror its file tree to the output. Folders are
stored as zip archives where the server allows it; where it refuses,
the crawl descends and mirrors the folder's entries one by one.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if *verbose && *logLevel == "" {
		*logLevel = "debug"
	}

	cfg, err := loadConfig(*configPath, config.Config{
		BaseURL:      *baseURL,
		Token:        *token,
		Output:       *output,
		Workers:      *workers,
		Timeout:      *timeout,
		Overwrite:    *overwrite,
		Progress:     *showProgress,
		PollInterval: *pollInterval,
		Retry: config.RetryConfig{
			Attempts: *retries,
			Backoff:  *backoff,
		},
		Log: config.LogConfig{Level: *logLevel, Format: *logFormat},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return ExitConfigError
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return ExitGeneralError
	}
	defer logging.Sync()

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[seafile-scraper] Received interrupt, shutting down...")
		cancel()
	}()

	sink, err := storage.Open(ctx, cfg.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output: %v\n", err)
		return ExitStorageError
	}
	defer sink.Close()

	client := fetch.NewClient(fetch.Options{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.Retry.Attempts,
		Backoff:    cfg.Retry.Backoff,
		Logger:     logging.L().Named("fetch"),
	})

	source, err := seafile.New(seafile.Options{
		BaseURL:      cfg.BaseURL,
		Token:        cfg.Token,
		Endpoints:    cfg.Endpoints,
		PollInterval: cfg.PollInterval,
		Fetcher:      client,
		Logger:       logging.L().Named("seafile"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSourceError
	}

	// Setup progress reporter
	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			Source:  cfg.Token,
			Target:  cfg.Output,
			Workers: cfg.Workers,
		})
		reporter.Start()
		defer reporter.Stop()
	}

	scheduler := crawl.New(source, sink, crawl.Options{
		Width:     cfg.Workers,
		Overwrite: cfg.Overwrite,
		Logger:    logging.L().Named("crawl"),
		Reporter:  reporter,
	})

	stats, err := scheduler.Run(ctx, crawl.Root())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logging.Warn("mirror interrupted",
				zap.Int("files", stats.FilesStored),
				zap.Int("archives", stats.ArchivesStored))
			return ExitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	logging.Info("mirror finished",
		zap.Int("files", stats.FilesStored),
		zap.Int("archives", stats.ArchivesStored),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("discovered", stats.Discovered),
		zap.String("bytes", progress.FormatBytes(stats.BytesStored)))
	return ExitSuccess
}
