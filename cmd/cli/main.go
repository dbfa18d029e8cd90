package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/cli/command"
	"github.com/AmrMustafa282/skillify-analysis/internal/cli/config"
	httpclient "github.com/AmrMustafa282/skillify-analysis/internal/cli/http"
	"github.com/AmrMustafa282/skillify-analysis/internal/cli/repl"
	"github.com/AmrMustafa282/skillify-analysis/internal/cli/state"
)

// cliOptions are the command line flags; each non-zero value overrides the
// corresponding config file setting.
type cliOptions struct {
	configPath string
	baseURL    string
	timeout    time.Duration
	token      string
	statePath  string
	pretty     bool
}

func parseOptions() cliOptions {
	var opts cliOptions
	flag.StringVar(&opts.configPath, "config", "configs/cli.yaml", "config file path")
	flag.StringVar(&opts.baseURL, "base", "", "override the service base URL")
	flag.DurationVar(&opts.timeout, "timeout", 0, "override the HTTP timeout, e.g. 10s")
	flag.StringVar(&opts.token, "token", "", "access token to use instead of the stored one")
	flag.StringVar(&opts.statePath, "state", "", "override the token state file")
	flag.BoolVar(&opts.pretty, "pretty", false, "pretty-print JSON responses")
	flag.Parse()
	return opts
}

func main() {
	if err := run(parseOptions()); err != nil {
		fmt.Fprintf(os.Stderr, "cli: %v\n", err)
		os.Exit(1)
	}
}

func run(opts cliOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	applyOverrides(&cfg, opts)

	tokenState, err := state.Load(cfg.TokenStatePath)
	if err != nil {
		return fmt.Errorf("load token state failed: %w", err)
	}
	if opts.token != "" {
		tokenState.AccessToken = opts.token
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout, func() string {
		return tokenState.AccessToken
	})

	pretty := cfg.PrettyJSON != nil && *cfg.PrettyJSON
	session, err := repl.New(client, command.Registry(), &tokenState, cfg.TokenStatePath, cfg.HistoryPath, pretty)
	if err != nil {
		return fmt.Errorf("start session failed: %w", err)
	}
	defer func() { _ = session.Close() }()
	session.Run(context.Background())
	return nil
}

func applyOverrides(cfg *config.Config, opts cliOptions) {
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}
	if opts.statePath != "" {
		cfg.TokenStatePath = opts.statePath
	}
	if opts.pretty {
		enabled := true
		cfg.PrettyJSON = &enabled
	}
}
