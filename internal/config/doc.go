// Package config defines configuration structures for the
// seafile-scraper CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (SCRAPER_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    BaseURL      string
//	    Token        string
//	    Output       string
//	    Workers      int
//	    Timeout      time.Duration
//	    Overwrite    bool
//	    Progress     bool
//	    PollInterval time.Duration
//	    Retry        RetryConfig
//	    Endpoints    seafile.Endpoints
//	    Log          LogConfig
//	}
//
//	type RetryConfig struct {
//	    Attempts int
//	    Backoff  time.Duration
//	}
//
// Endpoint templates default to the layout of a stock Seafile server
// and only need overriding for servers with a custom URL scheme.
package config
