package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rohankatakam/changeminer/internal/metrics"
	"github.com/rohankatakam/changeminer/internal/models"
	"github.com/rohankatakam/changeminer/internal/snapshot"
)

// RenderTopMethods prints methods ranked by change count with their churn level
func RenderTopMethods(w io.Writer, rows []models.MethodRow, th metrics.ChurnThresholds) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No methods recorded for this run")
		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"#", "Method", "File", "Changes", "ChgLines", "Churn", "Previous name"})
	for i, r := range rows {
		tbl.AppendRow(table.Row{
			i + 1,
			r.Method,
			r.FullPath,
			humanize.Comma(int64(r.Changes)),
			humanize.Comma(int64(r.ChgLines)),
			churnLabel(th.Classify(r)),
			r.PreviousName,
		})
	}

	counts := th.ChurnCounts(rows)
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d methods", len(rows)), "", "", "",
		fmt.Sprintf("%d high", counts[metrics.ChurnHigh])})
	tbl.Render()
}

func churnLabel(l metrics.ChurnLevel) string {
	switch l {
	case metrics.ChurnHigh:
		return color.RedString(l.String())
	case metrics.ChurnMedium:
		return color.YellowString(l.String())
	default:
		return color.GreenString(l.String())
	}
}

// RenderTrash prints removed methods in removal order
func RenderTrash(w io.Writer, rows []models.TrashRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No methods were removed")
		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Commit", "Date", "Method", "Changes", "ChgLines"})
	for _, r := range rows {
		tbl.AppendRow(table.Row{shortHash(r.CommitHash), r.Date.Format(time.DateOnly), r.Method, r.Changes, r.ChgLines})
	}
	tbl.Render()
}

// RenderEvents prints one method's change history, oldest first
func RenderEvents(w io.Writer, rows []models.EventRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No changes recorded for this method")
		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Commit", "Date", "Author", "Lines"})
	lines := 0
	for _, r := range rows {
		tbl.AppendRow(table.Row{shortHash(r.CommitHash), r.CommittedAt.Format(time.DateTime), r.Author, r.LinesChanged})
		lines += r.LinesChanged
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d changes", len(rows)), "", "", lines})
	tbl.Render()
}

// RenderRuns prints stored runs, newest first
func RenderRuns(w io.Writer, runs []*models.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored")
		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Run", "Label", "Started", "Duration", "Commits", "Repository"})
	for _, r := range runs {
		tbl.AppendRow(table.Row{
			r.ID,
			r.Label,
			r.StartedAt.Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			humanize.Comma(int64(r.Commits)),
			r.RepoPath,
		})
	}
	tbl.Render()
}

// RenderSnapshots prints stored snapshots, oldest first
func RenderSnapshots(w io.Writer, metas []snapshot.Meta) {
	if len(metas) == 0 {
		fmt.Fprintln(w, "No snapshots stored")
		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Label", "Created", "Commits", "Files", "Methods", "Trashed", "Size"})
	for _, m := range metas {
		tbl.AppendRow(table.Row{
			m.Label,
			humanize.Time(m.CreatedAt),
			humanize.Comma(int64(m.Commits)),
			humanize.Comma(int64(m.Files)),
			humanize.Comma(int64(m.Methods)),
			humanize.Comma(int64(m.Trashed)),
			humanize.Bytes(uint64(m.StoredBytes)),
		})
	}
	tbl.Render()
}

// RenderSnapshot prints every field of one snapshot
func RenderSnapshot(w io.Writer, m snapshot.Meta) {
	tbl := newTable(w)
	tbl.AppendRows([]table.Row{
		{"Label", m.Label},
		{"Run", m.RunID},
		{"Created", m.CreatedAt.Format(time.RFC3339)},
		{"Last commit", m.LastCommit},
		{"Commits", humanize.Comma(int64(m.Commits))},
		{"Files", humanize.Comma(int64(m.Files))},
		{"Methods", humanize.Comma(int64(m.Methods))},
		{"Trashed", humanize.Comma(int64(m.Trashed))},
		{"Size", fmt.Sprintf("%s (%s raw)", humanize.Bytes(uint64(m.StoredBytes)), humanize.Bytes(uint64(m.RawBytes)))},
		{"Checksum", m.Checksum},
	})
	tbl.Render()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
