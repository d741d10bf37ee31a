package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bijux/atlasctl/suite"
	"github.com/bijux/atlasctl/types"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func formatMS(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func statusString(failed bool) string {
	if failed {
		return "FAIL"
	}
	return "PASS"
}

// RowLine is the one-line progress form of an execution row.
func RowLine(row types.ExecutionRow) string {
	line := fmt.Sprintf("%s %s (%dms)", strings.ToUpper(string(row.Status)), row.Label, row.DurationMS)
	if row.Status == types.StatusFail && row.Detail != "" {
		line += " :: " + row.Detail
	}
	return line
}

// SuiteSummaryLine is the closing line of a text-mode suite run.
func SuiteSummaryLine(result *types.SuiteResult) string {
	line := fmt.Sprintf("summary: passed=%d failed=%d skipped=%d total=%d duration_ms=%d",
		result.Summary.Passed, result.Summary.Failed, result.Summary.Skipped, len(result.Results), result.Summary.DurationMS)
	if result.Summary.BudgetStatus != "" {
		line += fmt.Sprintf(" budget=%s/%dms", result.Summary.BudgetStatus, result.Summary.TimeBudgetMS)
	}
	return line
}

// RenderSuiteResult prints the summary table of a suite run, the failing rows, and the
// slow checks.
func RenderSuiteResult(w io.Writer, result *types.SuiteResult) {
	t := newTable(w, fmt.Sprintf("Suite %s (%s)", result.Suite, formatMS(result.Summary.DurationMS)))
	t.AppendHeader(table.Row{"#", "Task", "Status", "Duration", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Task", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, row := range result.Results {
		detail := ""
		if row.Status == types.StatusFail {
			detail = row.Detail
		}
		t.AppendRow(table.Row{row.Index, row.Label, statusString(row.Status == types.StatusFail), formatMS(row.DurationMS), detail})
	}
	t.AppendFooter(table.Row{"", "TOTAL", statusString(result.Failed()), formatMS(result.Summary.DurationMS),
		fmt.Sprintf("passed=%d failed=%d skipped=%d", result.Summary.Passed, result.Summary.Failed, result.Summary.Skipped)})
	t.Render()

	if len(result.SlowChecks) == 0 {
		return
	}
	slow := newTable(w, fmt.Sprintf("Slow checks (>= %dms)", result.SlowThresholdMS))
	slow.AppendHeader(table.Row{"Task", "Duration"})
	for _, row := range result.SlowChecks {
		slow.AppendRow(table.Row{row.Label, formatMS(row.DurationMS)})
	}
	slow.Render()
}

// RenderCoverage prints which suites reach each check and lists unassigned checks.
func RenderCoverage(w io.Writer, inv *suite.Inventory) {
	t := newTable(w, "Suite coverage")
	t.AppendHeader(table.Row{"Check", "Domain", "Suites"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Suites", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, row := range inv.Coverage {
		suites := strings.Join(row.Suites, ", ")
		if suites == "" {
			suites = "-"
		}
		t.AppendRow(table.Row{row.CheckID, row.Domain, suites})
	}
	t.Render()
	if len(inv.Unassigned) > 0 {
		fmt.Fprintln(w, "unassigned:")
		for _, id := range inv.Unassigned {
			fmt.Fprintf(w, "- %s\n", id)
		}
	}
}

// RenderCatalog prints the configured suites and lanes.
func RenderCatalog(w io.Writer, suites []types.SuiteManifest, defaultSuite string, lanes []types.Lane) {
	t := newTable(w, "Suites")
	t.AppendHeader(table.Row{"Name", "Kind", "Tasks", "Description"})
	for _, m := range suites {
		name := m.Name
		if name == defaultSuite {
			name += " (default)"
		}
		count := len(m.Items) + len(m.Includes)
		if m.IsFirstClass() {
			count = len(m.CheckIDs)
		}
		t.AppendRow(table.Row{name, string(m.Kind), count, m.Description})
	}
	t.Render()

	if len(lanes) == 0 {
		return
	}
	lt := newTable(w, "Gate lanes")
	lt.AppendHeader(table.Row{"ID", "Make target", "Description"})
	for _, lane := range lanes {
		lt.AppendRow(table.Row{lane.ID, lane.MakeTarget, lane.Description})
	}
	lt.Render()
}

// RenderGateResult prints a gates run: the summary line, a lane table, and one line per
// failing lane.
func RenderGateResult(w io.Writer, result *types.GateResult) {
	fmt.Fprintln(w, GateSummaryLine(result))
	t := newTable(w, "")
	t.AppendHeader(table.Row{"Lane", "Target", "Status"})
	for _, r := range result.Results {
		t.AppendRow(table.Row{r.ID, r.MakeTarget, strings.ToUpper(string(r.Status))})
	}
	t.Render()
	for _, r := range result.Results {
		if r.Status == types.StatusFail {
			fmt.Fprintf(w, "- FAIL %s: %s\n", r.ID, r.Error)
		}
	}
}
