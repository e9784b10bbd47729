package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/platinummonkey/protolink/pkg/config"
	"github.com/platinummonkey/protolink/pkg/observability"
)

// rootCommand holds the persistent flags of the protolink command.
type rootCommand struct {
	gs  *globalState
	cmd *cobra.Command

	configPath string
	logLevel   string
	logFormat  string
	roots      []string
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{gs: gs}
	c.cmd = &cobra.Command{
		Use:                "protolink",
		Short:              "Link, validate and compare protobuf schemas",
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.persistentPreRunE,
		PersistentPostRunE: c.persistentPostRunE,
	}
	c.cmd.SetOut(gs.stdout)
	c.cmd.SetErr(gs.stderr)
	c.cmd.PersistentFlags().AddFlagSet(c.persistentFlagSet())

	c.cmd.AddCommand(
		getLinkCmd(gs),
		getLintCmd(gs),
		getCheckCmd(gs),
		getGraphCmd(gs),
		getSnapshotCmd(gs),
		getWatchCmd(gs),
		getServeCmd(gs),
		getVersionCmd(gs),
	)
	return c
}

func (c *rootCommand) persistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default: nearest "+config.FileName+")")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&c.logFormat, "log-format", "", "log format: text, json")
	flags.StringSliceVar(&c.roots, "root", nil, "proto root directory, repeatable (overrides link.roots)")
	return flags
}

func (c *rootCommand) persistentPreRunE(cmd *cobra.Command, _ []string) error {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Observability.LogLevel = c.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Observability.LogFormat = c.logFormat
	}
	if len(c.roots) > 0 {
		cfg.Link.Roots = c.roots
	}

	logger, err := cfg.NewLogger(c.gs.stderr)
	if err != nil {
		return err
	}

	c.gs.cfg = cfg
	c.gs.logger = logger
	c.gs.registry = prometheus.NewRegistry()
	c.gs.metrics = observability.NewMetrics(c.gs.registry)
	c.gs.loaderWatched = false

	if cfg.Path != "" {
		logger.WithField("config", cfg.Path).Debug("Loaded configuration")
	}
	return nil
}

// persistentPostRunE writes the run's metrics for node_exporter when a
// textfile path is configured.
func (c *rootCommand) persistentPostRunE(_ *cobra.Command, _ []string) error {
	cfg := c.gs.cfg
	if cfg == nil || !cfg.Observability.MetricsEnabled || cfg.Observability.MetricsTextfile == "" {
		return nil
	}
	return observability.WriteTextfile(c.gs.registry, cfg.Observability.MetricsTextfile)
}

// execute runs the command line args and returns the process exit code.
func (c *rootCommand) execute(args []string) int {
	c.cmd.SetArgs(args)
	err := c.cmd.ExecuteContext(c.gs.ctx)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(c.gs.stderr, "Error: %v\n", exit.err)
		}
		return exit.code
	}
	fmt.Fprintf(c.gs.stderr, "Error: %v\n", err)
	return 1
}

// Execute runs protolink with the process arguments and exits. It is called
// by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	gs := newGlobalState(ctx)
	code := newRootCommand(gs).execute(os.Args[1:])
	stop()
	os.Exit(code)
}
