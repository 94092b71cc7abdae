package jsonio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/application/services/orchestration"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

// Stdin is the path that selects standard input
const Stdin = "-"

// Loader reads requirement sets from a JSON file or standard input
type Loader struct {
	path  string
	stdin io.Reader
}

// NewLoader creates a loader for path. Stdin reads from os.Stdin.
func NewLoader(path string) *Loader {
	return &Loader{path: path, stdin: os.Stdin}
}

// WithStdin replaces the reader used for Stdin
func (l *Loader) WithStdin(r io.Reader) *Loader {
	l.stdin = r
	return l
}

var _ orchestration.Source = (*Loader)(nil)

// Load reads and decodes every requirement set
func (l *Loader) Load(ctx context.Context) ([]*dto.RequirementSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.path == Stdin || l.path == "" {
		sets, err := Decode(l.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read requirement sets from stdin: %w", err)
		}
		return sets, nil
	}

	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open requirement sets file %s: %w", l.path, err)
	}
	defer file.Close()

	sets, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read requirement sets file %s: %w", l.path, err)
	}
	return sets, nil
}

// Decode accepts a single requirement set object or an array of them
func Decode(r io.Reader) ([]*dto.RequirementSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input: %w", entities.ErrMalformedInput)
	}

	switch trimmed[0] {
	case '[':
		var sets []*dto.RequirementSet
		if err := json.Unmarshal(trimmed, &sets); err != nil {
			return nil, fmt.Errorf("%w: %v", entities.ErrMalformedInput, err)
		}
		for i, set := range sets {
			if set == nil {
				return nil, fmt.Errorf("requirement set %d is null: %w", i, entities.ErrMalformedInput)
			}
		}
		return sets, nil
	case '{':
		var set dto.RequirementSet
		if err := json.Unmarshal(trimmed, &set); err != nil {
			return nil, fmt.Errorf("%w: %v", entities.ErrMalformedInput, err)
		}
		return []*dto.RequirementSet{&set}, nil
	default:
		return nil, fmt.Errorf("expected a JSON object or array: %w", entities.ErrMalformedInput)
	}
}
