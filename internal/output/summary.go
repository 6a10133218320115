package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rohankatakam/changeminer/internal/export"
)

// QuietFormatter outputs a one-line summary
type QuietFormatter struct{}

func (f *QuietFormatter) Format(s export.Summary, w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s: %s commits, %s methods, %s trashed, %d inconsistencies\n",
		s.Label,
		humanize.Comma(int64(s.Commits)),
		humanize.Comma(int64(s.Methods)),
		humanize.Comma(int64(s.Trashed)),
		total(s.Inconsistencies))
	return err
}

// StandardFormatter outputs a table of run counts
type StandardFormatter struct {
	Verbose bool
}

func (f *StandardFormatter) Format(s export.Summary, w io.Writer) error {
	title := color.New(color.Bold).Sprintf("Run %s", s.Label)
	fmt.Fprintf(w, "%s (%s)\n", title, s.RunID)
	if s.RepoPath != "" {
		fmt.Fprintf(w, "Repository: %s\n", s.RepoPath)
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Commits", humanize.Comma(int64(s.Commits))},
		{"Modifications", humanize.Comma(int64(s.Modifications))},
		{"Skipped", humanize.Comma(int64(s.Skipped))},
		{"Files", humanize.Comma(int64(s.Files))},
		{"Live methods", humanize.Comma(int64(s.Methods))},
		{"Trashed", humanize.Comma(int64(s.Trashed))},
		{"Duration", s.Duration},
	})
	tbl.Render()

	n := total(s.Inconsistencies)
	if n == 0 {
		fmt.Fprintln(w, color.GreenString("No inconsistencies"))
	} else {
		fmt.Fprintln(w, color.YellowString("%d inconsistencies recovered (grep logs for inconsistency=)", n))
	}

	if !f.Verbose {
		return nil
	}

	if len(s.Relabeled) > 0 {
		fmt.Fprintln(w, "\nRelabeled methods:")
		renderCounts(w, "Reason", s.Relabeled)
	}
	if n > 0 {
		fmt.Fprintln(w, "\nInconsistencies:")
		renderCounts(w, "Kind", s.Inconsistencies)
	}
	if s.Snapshot != "" {
		fmt.Fprintf(w, "\nSnapshot: %s\n", s.Snapshot)
	}
	if len(s.Outputs) > 0 {
		fmt.Fprintln(w, "\nOutputs:")
		for _, out := range s.Outputs {
			fmt.Fprintf(w, "- %s\n", out)
		}
	}
	return nil
}

func renderCounts(w io.Writer, key string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{key, "Count"})
	for _, k := range keys {
		tbl.AppendRow(table.Row{k, counts[k]})
	}
	tbl.Render()
}

func total(counts map[string]int) int {
	n := 0
	for _, v := range counts {
		n += v
	}
	return n
}

// newTable returns a borderless light table writing to w
func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	return tbl
}
