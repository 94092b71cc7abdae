package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/mrodz/mql-grouping-engine/pkg/application/dto"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	EchoQuery bool
	Verbose   bool
}

// Generate writes the solutions to w, or to one file per solution when OutputDir is set
func Generate(w io.Writer, solutions []*entities.Solution, config Config) error {
	render, ext, err := renderer(config.Format)
	if err != nil {
		return err
	}

	if config.OutputDir == "" {
		var buf bytes.Buffer
		if err := render(&buf, solutions, config); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for i, solution := range solutions {
		var buf bytes.Buffer
		if err := render(&buf, []*entities.Solution{solution}, config); err != nil {
			return err
		}
		filename := filepath.Join(config.OutputDir, fileStem(i, solution)+ext)
		if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
		if config.Verbose {
			fmt.Fprintf(w, "Results saved to: %s\n", filename)
		}
	}
	return nil
}

type renderFunc func(w io.Writer, solutions []*entities.Solution, config Config) error

func renderer(format string) (renderFunc, string, error) {
	switch format {
	case "", "text":
		return generateText, ".txt", nil
	case "json":
		return generateJSON, ".json", nil
	case "yaml":
		return generateYAML, ".yaml", nil
	default:
		return nil, "", fmt.Errorf("unsupported output format: %s", format)
	}
}

func fileStem(index int, solution *entities.Solution) string {
	if solution.RunID != "" {
		return "solution-" + solution.RunID
	}
	return fmt.Sprintf("solution-%03d", index)
}

// wire returns a single output object for one solution and an array otherwise
func wire(solutions []*entities.Solution, config Config) interface{} {
	outputs := make([]*dto.SolutionOutput, len(solutions))
	for i, solution := range solutions {
		outputs[i] = dto.NewSolutionOutput(solution, config.EchoQuery)
	}
	if len(outputs) == 1 {
		return outputs[0]
	}
	return outputs
}

func generateJSON(w io.Writer, solutions []*entities.Solution, config Config) error {
	jsonData, err := json.MarshalIndent(wire(solutions, config), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// generateYAML re-reads the JSON form as a YAML node tree, which keeps field order
func generateYAML(w io.Writer, solutions []*entities.Solution, config Config) error {
	jsonData, err := json.Marshal(wire(solutions, config))
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to convert output to YAML: %w", err)
	}
	blockStyle(&doc)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return encoder.Close()
}

// blockStyle drops the flow and quoting styles inherited from JSON.
// Empty collections keep flow style so they render as [] and {}.
func blockStyle(node *yaml.Node) {
	if len(node.Content) > 0 || node.Kind == yaml.ScalarNode {
		node.Style = 0
	}
	for _, child := range node.Content {
		blockStyle(child)
	}
}

func generateText(w io.Writer, solutions []*entities.Solution, config Config) error {
	r := lipgloss.NewRenderer(w)
	styles := textStyles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		failed: r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("#888888")),
		box:    r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1),
	}

	for i, solution := range solutions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, styles.render(solution, config))
	}
	return nil
}

type textStyles struct {
	title, ok, failed, muted, box lipgloss.Style
}

func (s textStyles) render(solution *entities.Solution, config Config) string {
	header := s.title.Render("Allocation") + " " + s.muted.Render(solution.RunID)
	if !solution.OK() {
		body := s.failed.Render(fmt.Sprintf("No solution (%s)", solution.Detail))
		return s.box.Render(lipgloss.JoinVertical(lipgloss.Left, header, body))
	}

	lines := []string{
		header,
		fmt.Sprintf("Status: %s (%s)", s.ok.Render(dto.StatusOK), solution.Detail),
		fmt.Sprintf("Requirements satisfied: %d/%d", solution.TotalSatisfied, len(solution.Requirements)),
		fmt.Sprintf("Items used: %d", solution.TotalItems),
		"",
		fmt.Sprintf("%-3s %-4s %-9s %-7s %s", "", "Prio", "Bounds", "Credit", "Requirement"),
	}
	for _, report := range solution.Requirements {
		mark := s.failed.Render("✗")
		if report.Satisfied {
			mark = s.ok.Render("✓")
		}
		lines = append(lines, fmt.Sprintf("%-3s %-4d %-9s %-7d %s",
			mark,
			report.Priority,
			formatBounds(report.Bounds),
			report.Assigned(),
			report.Description))
		if len(report.Selected) > 0 {
			lines = append(lines, s.muted.Render("      "+joinKeys(report.Selected)))
		}
		if config.EchoQuery && len(report.Query) > 0 {
			lines = append(lines, s.muted.Render("      query: "+string(report.Query)))
		}
	}

	if len(solution.SelectedPlacements) > 0 {
		lines = append(lines, "", "Placements: "+joinKeys(solution.SelectedPlacements))
	}
	lines = append(lines, "", "Courses: "+joinKeys(solution.SelectedCourses))
	return s.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatBounds(bounds entities.QuantityBounds) string {
	if bounds.Min == bounds.Max {
		return fmt.Sprintf("%d", bounds.Min)
	}
	return fmt.Sprintf("%d..%d", bounds.Min, bounds.Max)
}

func joinKeys(keys []entities.ItemKey) string {
	if len(keys) == 0 {
		return "-"
	}
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = key.String()
	}
	return strings.Join(parts, ", ")
}
