package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"querysync/internal/core/errors"
	"querysync/internal/core/ports"
	"querysync/internal/data/history"
	"querysync/internal/engine/project"
	"querysync/internal/engine/query"
	"querysync/internal/engine/runner"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	generatedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported --format %q (want text, json or yaml)", format)
	}
}

func encodeBytes(format string, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, format, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

type targetCounts struct {
	Rules          int `json:"rules" yaml:"rules"`
	SourceFiles    int `json:"source_files" yaml:"source_files"`
	GeneratedFiles int `json:"generated_files" yaml:"generated_files"`
}

type syncReport struct {
	Changed     bool             `json:"changed" yaml:"changed"`
	Fingerprint string           `json:"fingerprint" yaml:"fingerprint"`
	RunID       string           `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Duration    string           `json:"duration" yaml:"duration"`
	Query       targetCounts     `json:"query" yaml:"query"`
	Project     *project.Project `json:"project" yaml:"project"`
}

func newSyncReport(res ports.SyncResult) syncReport {
	report := syncReport{
		Changed:     res.Changed,
		Fingerprint: res.Fingerprint,
		RunID:       res.RunID,
		Duration:    res.Duration.Round(time.Millisecond).String(),
		Project:     res.Project,
	}
	if res.Summary != nil {
		report.Query = countTargets(res.Summary.Stats())
	}
	return report
}

func countTargets(s query.Stats) targetCounts {
	return targetCounts{Rules: s.Rules, SourceFiles: s.SourceFiles, GeneratedFiles: s.GeneratedFiles}
}

func writeSyncResult(w io.Writer, format string, res ports.SyncResult) error {
	if format != formatText {
		return encode(w, format, newSyncReport(res))
	}
	fmt.Fprintln(w, renderSyncLine(res))
	writeProjectText(w, res.Project)
	return nil
}

func renderSyncLine(res ports.SyncResult) string {
	state := statusStyle.Render("unchanged")
	if res.Changed {
		state = successStyle.Render("changed")
	}
	stats := res.Project.Stats()
	return fmt.Sprintf("%s %s  fingerprint=%s entries=%d source_folders=%d generated=%d took=%s",
		titleStyle("sync"), state, res.Fingerprint,
		stats.ContentEntries, stats.SourceFolders, stats.GeneratedFolders,
		res.Duration.Round(time.Millisecond))
}

func renderFailureLine(err error) string {
	code, ok := errors.CodeOf(err)
	if !ok {
		code = errors.CodeInternal
	}
	return fmt.Sprintf("%s %s  %v", titleStyle("sync"), errorStyle.Render("failed ["+string(code)+"]"), err)
}

func writeProjectText(w io.Writer, p *project.Project) {
	if p == nil {
		return
	}
	for _, m := range p.Modules {
		fmt.Fprintf(w, "module %s\n", m.Name)
		for _, e := range m.ContentEntries {
			root := e.Root.Path
			if root == "" {
				root = "."
			}
			fmt.Fprintf(w, "  %s %s\n", root, statusStyle.Render("["+string(e.Root.Base)+"]"))
			for _, src := range e.Sources {
				path := src.Path
				if path == "" {
					path = "."
				}
				line := fmt.Sprintf("    %s", path)
				if src.PackagePrefix != "" {
					line += "  " + src.PackagePrefix
				}
				if src.IsGenerated {
					line += "  " + generatedStyle.Render("(generated)")
				}
				fmt.Fprintln(w, line)
			}
			for _, ex := range e.Excludes {
				fmt.Fprintf(w, "    - %s\n", ex)
			}
		}
	}
}

func writeRuns(w io.Writer, format string, runs []history.Run) error {
	if format != formatText {
		if runs == nil {
			runs = []history.Run{}
		}
		return encode(w, format, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, statusStyle.Render("no sync runs recorded"))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tCHANGED\tDURATION\tRULES\tSOURCE FOLDERS\tFINGERPRINT\tERROR")
	for _, run := range runs {
		errText := "-"
		if run.ErrorCode != "" {
			errText = run.ErrorCode
		}
		fingerprint := run.Fingerprint
		if fingerprint == "" {
			fingerprint = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.Status,
			run.Changed,
			run.Duration,
			run.Rules,
			run.SourceFolders,
			fingerprint,
			errText,
		)
	}
	return tw.Flush()
}

type queryReport struct {
	Expression string   `json:"expression" yaml:"expression"`
	Command    []string `json:"command" yaml:"command"`
}

func writeQuery(w io.Writer, format string, cmd runner.Command) error {
	if format != formatText {
		return encode(w, format, queryReport{
			Expression: cmd.Expression(),
			Command:    append([]string{cmd.Binary()}, cmd.Args()...),
		})
	}
	fmt.Fprintf(w, "%s %s\n", titleStyle("expression"), cmd.Expression())
	fmt.Fprintf(w, "%s %s\n", titleStyle("command"), cmd.String())
	return nil
}

func writeSummary(w io.Writer, format string, summary *query.Summary) error {
	if format != formatText {
		return encode(w, format, summary.View())
	}
	stats := summary.Stats()
	fmt.Fprintf(w, "%s rules=%d source_files=%d generated_files=%d\n",
		titleStyle("summary"), stats.Rules, stats.SourceFiles, stats.GeneratedFiles)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tKIND\tSOURCES\tDEPS")
	for _, rule := range summary.Rules() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", rule.Label, rule.Kind, len(rule.Sources), len(rule.Deps))
	}
	return tw.Flush()
}
