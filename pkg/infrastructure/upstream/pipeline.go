// Package upstream runs the query compiler and the candidate matcher and reads the
// matcher's requirement sets.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/application/services/orchestration"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/logging"
	"github.com/mrodz/mql-grouping-engine/pkg/infrastructure/repositories/jsonio"
)

var (
	// ErrCompilerFailed marks a failed query compiler run
	ErrCompilerFailed = errors.New("query compilation failed")
	// ErrMatcherFailed marks a failed candidate matcher run
	ErrMatcherFailed = errors.New("candidate matching failed")
)

// CommandError describes a failed upstream command
type CommandError struct {
	Stage    error
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%v: %s exited with code %d", e.Stage, e.Command, e.ExitCode)
	if e.ExitCode < 0 {
		msg = fmt.Sprintf("%v: %s: %v", e.Stage, e.Command, e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

// Pipeline compiles a query file and feeds the result to the matcher
type Pipeline struct {
	compiler  []string
	matcher   []string
	queryFile string
	dir       string
}

// NewPipeline creates a pipeline. The query file is appended to the compiler's
// arguments; dir is the matcher's working directory and may be empty.
func NewPipeline(compiler, matcher []string, queryFile, dir string) (*Pipeline, error) {
	if len(compiler) == 0 {
		return nil, fmt.Errorf("compiler command is empty")
	}
	if len(matcher) == 0 {
		return nil, fmt.Errorf("matcher command is empty")
	}
	if queryFile == "" {
		return nil, fmt.Errorf("query file is empty")
	}
	return &Pipeline{
		compiler:  compiler,
		matcher:   matcher,
		queryFile: queryFile,
		dir:       dir,
	}, nil
}

// NewPipelineFromCommands splits whitespace-separated command lines
func NewPipelineFromCommands(compiler, matcher, queryFile, dir string) (*Pipeline, error) {
	return NewPipeline(strings.Fields(compiler), strings.Fields(matcher), queryFile, dir)
}

var _ orchestration.Source = (*Pipeline)(nil)

// Load runs both stages and decodes the matcher's output
func (p *Pipeline) Load(ctx context.Context) ([]*dto.RequirementSet, error) {
	logger := logr.FromContextOrDiscard(ctx).WithName("upstream")

	compilerArgs := append(append([]string(nil), p.compiler[1:]...), p.queryFile)
	compiled, err := run(ctx, ErrCompilerFailed, "", p.compiler[0], compilerArgs, nil)
	if err != nil {
		return nil, err
	}
	logger.V(logging.DEBUG).Info("Compiled query", "queryFile", p.queryFile, "bytes", len(compiled))

	matched, err := run(ctx, ErrMatcherFailed, p.dir, p.matcher[0], p.matcher[1:], compiled)
	if err != nil {
		return nil, err
	}
	logger.V(logging.DEBUG).Info("Matched candidates", "bytes", len(matched))

	sets, err := jsonio.Decode(bytes.NewReader(matched))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable matcher output: %w", ErrMatcherFailed, err)
	}
	logger.Info("Loaded requirement sets from upstream", "sets", len(sets))
	return sets, nil
}

func run(ctx context.Context, stage error, dir, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &CommandError{
			Stage:    stage,
			Command:  strings.Join(append([]string{name}, args...), " "),
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}
