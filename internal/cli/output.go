package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pfrederiksen/phivolcs-events/internal/dataset"
	"github.com/pfrederiksen/phivolcs-events/internal/quake"
	"github.com/pfrederiksen/phivolcs-events/internal/syncer"
	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

const timeLayout = "2006-01-02 15:04"

// SyncReport is the output of one sync run
type SyncReport struct {
	RunID            string    `json:"run_id" yaml:"run_id"`
	CheckedAt        time.Time `json:"checked_at" yaml:"checked_at"`
	Source           string    `json:"source" yaml:"source"`
	DataDir          string    `json:"data_dir" yaml:"data_dir"`
	StartedPartition string    `json:"started_partition,omitempty" yaml:"started_partition,omitempty"`
	syncer.Result    `yaml:",inline"`
}

// SummaryReport is the output of the combine and stats --all commands
type SummaryReport struct {
	Output  string            `json:"output,omitempty" yaml:"output,omitempty"`
	Dataset *dataset.Combined `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Summary *dataset.Summary  `json:"summary" yaml:"summary"`
}

// styles holds the text-mode styles for one writer
type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	added lipgloss.Style
	warn  lipgloss.Style
	faint lipgloss.Style
}

// newStyles renders for w, so colors are dropped when w is not a terminal
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label: r.NewStyle().Foreground(lipgloss.Color("245")),
		added: r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color("220")),
		faint: r.NewStyle().Faint(true),
	}
}

// encode writes v as JSON or YAML
func encode(w io.Writer, v interface{}, format OutputFormat) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteSync writes a sync report in the specified format
func WriteSync(w io.Writer, report *SyncReport, format OutputFormat, verbose bool) error {
	if format == FormatText {
		return writeSyncText(w, report, verbose)
	}
	return encode(w, report, format)
}

// writeSyncText outputs a sync report as human-readable text
func writeSyncText(w io.Writer, report *SyncReport, verbose bool) error {
	st := newStyles(w)

	fmt.Fprintln(w, st.title.Render("PHIVOLCS earthquake sync"))
	if verbose {
		fmt.Fprintf(w, "%s %s\n", st.label.Render("Run:       "), report.RunID)
		fmt.Fprintf(w, "%s %s\n", st.label.Render("Source:    "), report.Source)
		fmt.Fprintf(w, "%s %s\n", st.label.Render("Data dir:  "), report.DataDir)
	}
	fmt.Fprintf(w, "%s %d   %s %d   %s %d   %s %d\n",
		st.label.Render("Candidates:"), report.Candidates,
		st.label.Render("Appended:"), report.Appended,
		st.label.Render("Duplicates:"), report.Duplicates,
		st.label.Render("Skipped:"), len(report.Skipped))

	if report.StartedPartition != "" {
		fmt.Fprintf(w, "Started partition %s\n", report.StartedPartition)
	}

	if len(report.Partitions) > 0 {
		fmt.Fprintln(w)
		for _, p := range report.Partitions {
			line := fmt.Sprintf("  %s  %s", p.Partition, st.added.Render(fmt.Sprintf("+%d", p.Appended)))
			if p.Created {
				line += "  " + st.warn.Render("created")
			}
			if verbose {
				line += "  " + st.faint.Render(p.File)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(report.Skipped) > 0 && verbose {
		fmt.Fprintln(w)
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "  %s %s: %s\n", st.warn.Render("SKIPPED"), strings.Join(s.Cells, " | "), s.Reason)
		}
	}

	if len(report.NewRecords) == 0 {
		fmt.Fprintln(w, "\nNo new records found.")
		return nil
	}

	fmt.Fprintln(w)
	for _, rec := range report.NewRecords {
		fmt.Fprintf(w, "%s %s\n", st.added.Render("NEW:"), formatRecord(rec))
		if verbose {
			fmt.Fprintf(w, "     Key: %s\n", rec.Key)
		}
	}
	fmt.Fprintf(w, "\nTotal: %d new\n", len(report.NewRecords))

	return nil
}

// formatRecord renders one record on a line
func formatRecord(rec *quake.Record) string {
	return fmt.Sprintf("%s  M%.1f  %3.0f km  %s",
		rec.OccurredAt.In(quake.SourceLocation).Format(timeLayout),
		rec.Magnitude, rec.Depth, rec.Location)
}

// WriteStats writes partition stats in the specified format
func WriteStats(w io.Writer, stats *dataset.Stats, format OutputFormat) error {
	if format != FormatText {
		return encode(w, stats, format)
	}

	st := newStyles(w)
	fmt.Fprintf(w, "%s\n", st.title.Render("Partition "+stats.Partition))
	fmt.Fprintf(w, "%s %s\n", st.label.Render("File: "), stats.File)
	if !stats.Exists {
		fmt.Fprintln(w, "Not started yet.")
		return nil
	}
	fmt.Fprintf(w, "%s %d\n", st.label.Render("Rows: "), stats.Rows)
	if !stats.First.IsZero() {
		fmt.Fprintf(w, "%s %s to %s\n", st.label.Render("Range:"),
			stats.First.Format(timeLayout), stats.Last.Format(timeLayout))
	}
	if stats.Unparsed > 0 {
		fmt.Fprintf(w, "%s %d rows with unreadable dates\n", st.warn.Render("Note: "), stats.Unparsed)
	}
	return nil
}

// WriteSummary writes a combined dataset summary in the specified format
func WriteSummary(w io.Writer, report *SummaryReport, format OutputFormat) error {
	if format != FormatText {
		return encode(w, report, format)
	}

	st := newStyles(w)
	s := report.Summary

	fmt.Fprintln(w, st.title.Render("PHIVOLCS dataset summary"))
	if report.Output != "" {
		fmt.Fprintf(w, "%s %s\n", st.label.Render("Saved to:  "), report.Output)
	}
	if d := report.Dataset; d != nil {
		fmt.Fprintf(w, "%s %d read from %d partitions, %d invalid, %d duplicates removed\n",
			st.label.Render("Rows:      "), d.Read, d.Partitions, d.Invalid, d.Duplicates)
	}
	fmt.Fprintf(w, "%s %d unique records\n", st.label.Render("Total:     "), s.Total)
	if s.Total == 0 {
		return nil
	}

	fmt.Fprintf(w, "%s %s to %s\n", st.label.Render("Date range:"), s.First.Format(timeLayout), s.Last.Format(timeLayout))
	fmt.Fprintf(w, "%s %.1f to %.1f\n", st.label.Render("Magnitude: "), s.Magnitude.Min, s.Magnitude.Max)
	fmt.Fprintf(w, "%s %.0f to %.0f km\n", st.label.Render("Depth:     "), s.Depth.Min, s.Depth.Max)

	fmt.Fprintln(w, "\nMagnitude distribution:")
	for _, b := range s.Bands {
		fmt.Fprintf(w, "  - %-9s %s: %d earthquakes (%.1f%%)\n", b.Label, bandRange(b), b.Count, b.Percent)
	}

	if len(s.BySource) > 0 {
		fmt.Fprintln(w, "\nRecords by source file:")
		for _, sc := range s.BySource {
			fmt.Fprintf(w, "  - %s: %d records\n", sc.Source, sc.Count)
		}
	}
	return nil
}

func bandRange(b dataset.Band) string {
	if b.Max == 0 {
		return fmt.Sprintf("(%g+)", b.Min)
	}
	return fmt.Sprintf("(%g-%g)", b.Min, b.Max)
}

// WriteSplit writes the result of partitioning a master file
func WriteSplit(w io.Writer, result *dataset.SplitResult, format OutputFormat) error {
	if format != FormatText {
		return encode(w, result, format)
	}

	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render("Master file partitioned"))
	fmt.Fprintf(w, "%s %d (%d unreadable dates, %d outside the selected year)\n",
		st.label.Render("Rows:    "), result.Rows, result.Unparsed, result.OtherYear)
	if result.Sync == nil {
		return nil
	}
	fmt.Fprintf(w, "%s %d appended, %d already present\n",
		st.label.Render("Records:"), result.Sync.Appended, result.Sync.Duplicates)
	for _, p := range result.Sync.Partitions {
		line := fmt.Sprintf("  %s  %s", p.Partition, st.added.Render(fmt.Sprintf("+%d", p.Appended)))
		if p.Created {
			line += "  " + st.warn.Render("created")
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
