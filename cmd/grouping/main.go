package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/config"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/logging"
	"github.com/mrodz/mql-grouping-engine/pkg/interfaces/cli/commands"
	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "grouping",
		Short:         "Allocate courses and placements to prioritised degree requirements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	root.PersistentFlags().String("log-level", "info", "Log level: error, warn, info, debug, trace")
	root.PersistentFlags().String("log-format", logging.FormatConsole, "Log format: console, json")

	root.AddCommand(newAllocateCommand(&configFile), newServeCommand(&configFile))
	return root
}

func addSolverFlags(flags *pflag.FlagSet) {
	flags.String("backend", config.BackendPBSat, "Solver backend: pbsat, exhaustive")
	flags.Duration("time-limit", optimization.DefaultTimeLimit, "Time budget per requirement set")
	flags.Int("workers", optimization.DefaultWorkers, "Search parallelism hint")
	flags.Int("max-vars", 0, "Largest model the exhaustive backend accepts (0 for default)")
	flags.String("store", config.StoreMemory, "Solution store: none, memory, postgres")
	flags.String("dsn", "", "PostgreSQL connection string for the postgres store")
	flags.Bool("echo-query", false, "Echo each requirement's compiled query")
}

func newAllocateCommand(configFile *string) *cobra.Command {
	var (
		input   string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "allocate [input.json|-]",
		Short: "Solve requirement sets from a file, stdin, or the query compiler and matcher",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				input = args[0]
			}
			cfg, ctx, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			return commands.NewAllocateCommand(cfg, input, cmd.InOrStdin(), cmd.OutOrStdout(), verbose).Execute(ctx)
		},
	}

	flags := cmd.Flags()
	addSolverFlags(flags)
	flags.String("query", "", "MQL query file to compile and match instead of reading input")
	flags.String("compiler", "mql", "Query compiler command")
	flags.String("matcher", "npm run dev --silent", "Candidate matcher command")
	flags.String("format", config.FormatText, "Output format: text, json, yaml")
	flags.String("output-dir", "", "Write one file per solution to this directory")
	flags.String("metrics", "", "Write Prometheus metrics to this textfile after the run")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Report written files")
	return cmd
}

func newServeCommand(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve allocation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ctx, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			return commands.NewServeCommand(cfg).Execute(ctx)
		},
	}

	addSolverFlags(cmd.Flags())
	cmd.Flags().String("addr", ":8080", "Listen address")
	return cmd
}

// setup loads the configuration and puts the logger in the command context
func setup(cmd *cobra.Command, configFile string) (*config.Config, context.Context, error) {
	v := config.New()
	if err := bindAll(v, cmd); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logr.NewContext(cmd.Context(), logger), nil
}

func bindAll(v *viper.Viper, cmd *cobra.Command) error {
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	return config.BindFlags(v, cmd.InheritedFlags())
}
