package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Output formats accepted by Render.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	convergedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b"))
)

// Render writes the final per-instance report in the given format.
func Render(w io.Writer, result instance.Result, format string) error {
	switch format {
	case FormatTable, "":
		return renderTable(w, result)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(w io.Writer, result instance.Result) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("INSTANCE ID", "VPC ID", "STATE", "PUBLIC IP", "PUBLIC DNS", "KEY NAME").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, s := range result.Snapshots {
		t.Row(s.InstanceID, dash(s.VpcID), dash(s.StateName), dash(s.PublicIP), dash(s.PublicDNS), dash(s.KeyName))
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	_, err := fmt.Fprintln(w, outcomeLine(result))
	return err
}

func outcomeLine(result instance.Result) string {
	switch result.Outcome {
	case instance.OutcomeConverged:
		return convergedStyle.Render(fmt.Sprintf("Outcome: converged after %d poll(s)", result.Cycles))
	case instance.OutcomeCancelled:
		return cancelledStyle.Render(fmt.Sprintf("Outcome: cancelled after %d poll(s); instances may still be pending", result.Cycles))
	default:
		return fmt.Sprintf("Outcome: %s", result.Outcome)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RenderSpec writes a launch request for --dry-run. Table output falls
// back to YAML.
func RenderSpec(w io.Writer, spec instance.LaunchSpec, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(spec); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML, FormatTable, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(spec); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
