package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/lysogeny/seafile-scraper/internal/config"
	"github.com/lysogeny/seafile-scraper/internal/fetch"
	"github.com/lysogeny/seafile-scraper/internal/logging"
	"github.com/lysogeny/seafile-scraper/internal/progress"
	"github.com/lysogeny/seafile-scraper/internal/seafile"
)

// runExport downloads one folder of a share as a zip archive.
func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)

	token := fs.String("token", "", "Share link token (required)")
	baseURL := fs.String("base-url", "", "Seafile server URL (required)")
	folder := fs.String("path", "/", "Folder path inside the share")
	output := fs.String("output", "", "Output file (default: <folder>.zip)")
	timeout := fs.Duration("timeout", 0, "Timeout per request (default 60s)")
	pollInterval := fs.Duration("poll-interval", 0, "Wait between archive progress polls (default 1s)")
	configPath := fs.String("config", "", "Path to YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: seafile-scraper export [options]

Ask the server to archive one folder of a share and download the
resulting zip. The server may refuse folders above its size cap.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{
		BaseURL:      *baseURL,
		Token:        *token,
		Timeout:      *timeout,
		PollInterval: *pollInterval,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return ExitConfigError
	}
	if cfg.BaseURL == "" || cfg.Token == "" {
		fmt.Fprintln(os.Stderr, "Error: -token and -base-url are required")
		fs.Usage()
		return ExitInvalidArgs
	}

	out := *output
	if out == "" {
		if *folder == "/" {
			out = "share.zip"
		} else {
			out = path.Base(*folder) + ".zip"
		}
	}

	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return ExitGeneralError
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[seafile-scraper] Received interrupt, shutting down...")
		cancel()
	}()

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

	data, err := source.ExportFolder(ctx, *folder)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ExitInterrupted
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSourceError
	}

	if err := os.WriteFile(out, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
		return ExitStorageError
	}

	fmt.Fprintf(os.Stderr, "[seafile-scraper] Wrote %s (%s)\n", out, progress.FormatBytes(int64(len(data))))
	return ExitSuccess
}
