package main

import (
	"fmt"
	"os"

	"github.com/lysogeny/seafile-scraper/internal/config"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitConfigError  = 3
	ExitSourceError  = 4
	ExitStorageError = 5
	ExitInterrupted  = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "mirror":
		return runMirror(cmdArgs)
	case "list":
		return runList(cmdArgs)
	case "export":
		return runExport(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: seafile-scraper <command> [options]

Commands:
  mirror    Mirror a share link's file tree to local or object storage
  list      List the entries of one folder in a share
  export    Download one folder of a share as a zip archive

Run 'seafile-scraper <command> -h' for command-specific help.`)
}

// loadConfig builds the effective configuration: defaults, then the
// config file, then environment variables, then flag overrides.
func loadConfig(path string, override config.Config) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		fileCfg, err := config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg.Merge(override), nil
}
