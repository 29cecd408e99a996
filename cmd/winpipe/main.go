// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Winpipe is the protocol proxy server. It accepts Wayland clients
// bridged over TCP and forwards their protocol events and mirrored
// buffer deltas toward a remote renderer.
//
// Configuration is read from --config, or the file named by
// WINPIPE_CONFIG, over built-in defaults; without either the server
// listens on 0.0.0.0:9999. --listen and --metrics-listen override the
// file.
//
// SIGINT and SIGTERM stop the server: every connection receives a
// close frame and has its send queue drained before the process exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/J-x-Z/winpipe/lib/config"
	"github.com/J-x-Z/winpipe/lib/metrics"
	"github.com/J-x-Z/winpipe/lib/process"
	"github.com/J-x-Z/winpipe/lib/version"
	"github.com/J-x-Z/winpipe/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// options holds the parsed command line.
type options struct {
	configPath    string
	listen        string
	metricsListen string
	logFormat     string
	verbose       bool
	showVersion   bool
	showHelp      bool
}

func parseFlags(args []string, output io.Writer) (options, *pflag.FlagSet, error) {
	var opts options
	flagSet := pflag.NewFlagSet("winpipe", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file, YAML or JSONC (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.listen, "listen", "", "TCP address for client connections (overrides the config file)")
	flagSet.StringVar(&opts.metricsListen, "metrics-listen", "", "TCP address for /metrics, /healthz and /sessions (overrides the config file)")
	flagSet.StringVar(&opts.logFormat, "log-format", "auto", "log output format: auto, text or json (auto is text on a terminal, json otherwise)")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log every message and delta record")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.showHelp, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		return opts, flagSet, err
	}
	if flagSet.NArg() > 0 {
		return opts, flagSet, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	switch opts.logFormat {
	case "auto", "text", "json":
	default:
		return opts, flagSet, fmt.Errorf("--log-format must be auto, text or json, got %q", opts.logFormat)
	}
	return opts, flagSet, nil
}

func run(args []string) error {
	opts, flagSet, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showHelp {
		printHelp(flagSet)
		return nil
	}
	if opts.showVersion {
		version.Print("winpipe")
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, opts, term.IsTerminal(int(os.Stderr.Fd())))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &server.Server{
		Config:  cfg,
		Metrics: metrics.New(prometheus.DefaultRegisterer),
		Logger:  logger,
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("winpipe running", "version", version.Info())

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Stop()
	return nil
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.metricsListen != "" {
		cfg.MetricsListen = opts.metricsListen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. The auto format writes text to
// a terminal and JSON to anything else.
func newLogger(w io.Writer, opts options, terminal bool) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: slog.LevelInfo}
	if opts.verbose {
		handlerOptions.Level = slog.LevelDebug
	}
	if opts.logFormat == "json" || (opts.logFormat == "auto" && !terminal) {
		return slog.New(slog.NewJSONHandler(w, handlerOptions))
	}
	return slog.New(slog.NewTextHandler(w, handlerOptions))
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `winpipe: Wayland protocol proxy over TCP.

Accepts Wayland clients bridged over TCP, tracks their protocol objects,
and sends protocol events and compressed buffer deltas toward a remote
renderer.

Usage:
  winpipe [flags]

Examples:
  # Serve with defaults on 0.0.0.0:9999
  winpipe

  # Use a config file and expose metrics
  winpipe --config /etc/winpipe.yaml --metrics-listen 127.0.0.1:9998

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
