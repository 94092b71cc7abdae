package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/application/services/orchestration"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/config"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/repositories/jsonio"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/upstream"
	"github.com/mrodz/mql-grouping-engine/pkg/interfaces/cli/output"
)

// AllocateCommand solves requirement sets read from a file, stdin, or the upstream
// compiler and matcher
type AllocateCommand struct {
	config *config.Config
	// input is a JSON file path or "-"; empty when the upstream pipeline is used
	input   string
	stdin   io.Reader
	stdout  io.Writer
	verbose bool
}

// NewAllocateCommand creates an allocate command
func NewAllocateCommand(cfg *config.Config, input string, stdin io.Reader, stdout io.Writer, verbose bool) *AllocateCommand {
	return &AllocateCommand{
		config:  cfg,
		input:   input,
		stdin:   stdin,
		stdout:  stdout,
		verbose: verbose,
	}
}

// Execute runs every requirement set through the allocator and reports the solutions.
// Solutions produced before a failing set are still reported.
func (c *AllocateCommand) Execute(ctx context.Context) error {
	if err := c.validateInputs(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	logger := logr.FromContextOrDiscard(ctx)

	source, err := c.source()
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, c.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	orchestrator := orchestration.NewBatchOrchestrator(rt.service, rt.store)
	result, runErr := orchestrator.RunFromSource(ctx, source)

	if result != nil && len(result.Solutions) > 0 {
		err := output.Generate(c.stdout, result.Solutions, output.Config{
			Format:    c.config.Output.Format,
			OutputDir: c.config.Output.Dir,
			EchoQuery: c.config.Output.EchoQuery,
			Verbose:   c.verbose,
		})
		if err != nil {
			return fmt.Errorf("error generating output: %w", err)
		}
		logger.Info("Batch finished",
			"sets", len(result.Solutions),
			"satisfied", result.Satisfied(),
			"elapsed", result.Elapsed)
		logger.V(1).Info(result.GetSummary())
	}

	if c.config.Metrics.Textfile != "" {
		if err := rt.recorder.WriteTextfile(c.config.Metrics.Textfile); err != nil {
			logger.Error(err, "Failed to export metrics", "path", c.config.Metrics.Textfile)
		}
	}

	if runErr != nil {
		return fmt.Errorf("error running allocation: %w", runErr)
	}
	return nil
}

func (c *AllocateCommand) validateInputs() error {
	if c.input == "" && !c.config.Upstream.Enabled() {
		return fmt.Errorf("must specify either an input file (or - for stdin) or an upstream query file")
	}
	if c.input != "" && c.config.Upstream.Enabled() {
		return fmt.Errorf("an input file and an upstream query file are mutually exclusive")
	}
	return nil
}

func (c *AllocateCommand) source() (orchestration.Source, error) {
	if c.input != "" {
		loader := jsonio.NewLoader(c.input)
		if c.stdin != nil {
			loader.WithStdin(c.stdin)
		}
		return loader, nil
	}

	up := c.config.Upstream
	pipeline, err := upstream.NewPipelineFromCommands(up.Compiler, up.Matcher, up.QueryFile, up.Dir)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream configuration: %w", err)
	}
	return pipeline, nil
}
