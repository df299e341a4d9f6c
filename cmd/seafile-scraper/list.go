package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lysogeny/seafile-scraper/internal/config"
	"github.com/lysogeny/seafile-scraper/internal/fetch"
	"github.com/lysogeny/seafile-scraper/internal/logging"
	"github.com/lysogeny/seafile-scraper/internal/seafile"
)

// runList prints the entries of one folder in a share without
// downloading anything.
func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)

	token := fs.String("token", "", "Share link token (required)")
	baseURL := fs.String("base-url", "", "Seafile server URL (required)")
	folder := fs.String("path", "/", "Folder path inside the share")
	timeout := fs.Duration("timeout", 0, "Timeout per request (default 60s)")
	configPath := fs.String("config", "", "Path to YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: seafile-scraper list [options]

List the files and folders of one folder in a share.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{
		BaseURL: *baseURL,
		Token:   *token,
		Timeout: *timeout,
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
		cancel()
	}()

	client := fetch.NewClient(fetch.Options{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.Retry.Attempts,
		Backoff:    cfg.Retry.Backoff,
		Logger:     logging.L().Named("fetch"),
	})

	source, err := seafile.New(seafile.Options{
		BaseURL:   cfg.BaseURL,
		Token:     cfg.Token,
		Endpoints: cfg.Endpoints,
		Fetcher:   client,
		Logger:    logging.L().Named("seafile"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSourceError
	}

	refs, err := source.ListChildren(ctx, *folder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSourceError
	}

	for _, ref := range refs {
		fmt.Printf("%-6s  %s\n", ref.Kind, ref.Path)
	}
	fmt.Printf("Total: %d entries\n", len(refs))
	return ExitSuccess
}
