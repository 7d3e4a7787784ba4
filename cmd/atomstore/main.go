package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/atoms/internal/config"
	"github.com/vango-dev/atoms/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌┬┐┌─┐┌┬┐┌─┐┌┬┐┌─┐┬─┐┌─┐
  ├─┤ │ │ ││││└─┐ │ │ │├┬┘├┤
  ┴ ┴ ┴ └─┘┴ ┴└─┘ ┴ └─┘┴└─└─┘
`

// app carries what every command needs once flags are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout, errOut: os.Stderr}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		a.printError(err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "atomstore",
		Short: "Run and inspect dependency-tracked atom stores",
		Long: `atomstore drives the atom state library from YAML scenario files.

Scenarios declare numeric atoms, primitive or derived, and a script of
get, set, subscribe and unsubscribe steps. atomstore runs them, draws
their dependency graph and serves a live inspector.

Examples:
  atomstore run counter.yaml
  atomstore graph counter.yaml --format svg -o counter.svg
  atomstore inspect counter.yaml --addr :7070
  atomstore bench --stores 16 --depth 32`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: nearest atomstore.json or atomstore.toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text, json, pretty")

	rootCmd.AddCommand(
		runCmd(a),
		graphCmd(a),
		inspectCmd(a),
		benchCmd(a),
		versionCmd(a),
	)

	return rootCmd
}

// setup loads the configuration, applies flag overrides and installs the
// logger.
func (a *app) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(a.errOut, cfg)
	slog.SetDefault(a.logger)
	if path := cfg.Path(); path != "" {
		a.logger.Debug("loaded config", "path", path)
	}
	return nil
}

// printError reports err on the error writer, as a JSON line when logs are
// JSON so that log collectors can parse it.
func (a *app) printError(err error) {
	format := a.logFormat
	if a.cfg != nil {
		format = a.cfg.Log.Format
	}
	if format == "json" {
		errors.FprintJSON(a.errOut, err)
		return
	}
	errors.Fprint(a.errOut, err)
}

// printBanner prints the atomstore ASCII art banner.
func (a *app) printBanner() {
	fmt.Fprint(a.out, StyleTitle.Render(banner))
}
