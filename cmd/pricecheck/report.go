package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"pricecheck/pkg/journal"
	"pricecheck/pkg/model"
	"pricecheck/pkg/remediate"
	"pricecheck/pkg/sweep"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func formatSchedule(s model.Schedule) string {
	if len(s) == 0 {
		return "N/A"
	}
	parts := make([]string, 0, len(s))
	for _, e := range s {
		parts = append(parts, "t="+formatNum(e.T)+":f="+formatFactor(e.F))
	}
	return strings.Join(parts, ", ")
}

func formatFactor(f *float64) string {
	if f == nil {
		return "none"
	}
	return formatNum(*f)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func enabledLabel(r model.StationScanResult) string {
	switch {
	case r.Enabled == nil:
		return "unknown"
	case r.EnableForced:
		return "forced on"
	case *r.Enabled:
		return "yes"
	}
	return "no"
}

func printScan(w io.Writer, res sweep.Result) {
	var conf, dev, ind []model.StationScanResult
	for _, r := range res.Results {
		switch r.Verdict {
		case model.Conforming:
			conf = append(conf, r)
		case model.Deviating:
			dev = append(dev, r)
		default:
			ind = append(ind, r)
		}
	}

	fmt.Fprintln(w, headingStyle.Render("\nResults"))
	if len(dev) > 0 {
		fmt.Fprintln(w, badStyle.Render(fmt.Sprintf("Deviating (%d):", len(dev))))
		for _, r := range dev {
			fmt.Fprintf(w, "  %s  enabled=%s\n    schedule:   %s\n    mismatches: %s\n",
				r.PFID, enabledLabel(r), formatSchedule(r.Schedule), formatSchedule(r.Mismatches))
		}
	}
	if len(ind) > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Indeterminate (%d):", len(ind))))
		for _, r := range ind {
			detail := r.Detail
			if detail == "" {
				detail = "no schedule"
			}
			fmt.Fprintf(w, "  %s  %s\n", r.PFID, dimStyle.Render(detail))
		}
	}
	if len(conf) > 0 {
		fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("Conforming (%d):", len(conf))))
		for _, r := range conf {
			fmt.Fprintf(w, "  %s  enabled=%s\n", r.PFID, enabledLabel(r))
		}
	}

	fmt.Fprintln(w, headingStyle.Render("\nSummary"))
	fmt.Fprintf(w, "  scanned:       %d\n", len(res.Results))
	fmt.Fprintf(w, "  conforming:    %d\n", len(conf))
	fmt.Fprintf(w, "  deviating:     %d\n", len(dev))
	fmt.Fprintf(w, "  indeterminate: %d\n", len(ind))
	if res.Filtered > 0 {
		fmt.Fprintf(w, "  outside scope: %d\n", res.Filtered)
	}
	if len(res.OtherModels) > 0 {
		models := make([]string, 0, len(res.OtherModels))
		for m := range res.OtherModels {
			models = append(models, m)
		}
		sort.Strings(models)
		fmt.Fprintln(w, "  skipped models:")
		for _, m := range models {
			fmt.Fprintf(w, "    %s: %d\n", m, res.OtherModels[m])
		}
	}
}

func printOutcome(w io.Writer, out remediate.Outcome) {
	fmt.Fprintln(w, headingStyle.Render("\nUpdate results"))
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("  accepted: %d", out.Accepted)))
	line := fmt.Sprintf("  rejected: %d", out.Rejected)
	if out.Errored > 0 {
		line += fmt.Sprintf(" (%d errors)", out.Errored)
	}
	if out.Rejected > 0 {
		line = badStyle.Render(line)
	}
	fmt.Fprintln(w, line)
	if out.Skipped > 0 {
		fmt.Fprintf(w, "  already updated: %d\n", out.Skipped)
	}
}

func printOutstanding(w io.Writer, sums []model.ScopeSummary) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "SCOPE", "MODE", "PENDING", "REJECTED", "ERROR", "ACCEPTED", "UPDATED")
	for i, s := range sums {
		t.Row(strconv.Itoa(i+1), s.Key, string(s.Mode),
			strconv.Itoa(s.Pending), strconv.Itoa(s.Rejected), strconv.Itoa(s.Errored),
			fmt.Sprintf("%d/%d", s.Accepted, s.Total), s.LastUpdated.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w, headingStyle.Render("Scopes with outstanding updates"))
	fmt.Fprintln(w, t.String())
}

func printHistory(w io.Writer, pfid string, attempts []journal.Attempt) {
	if len(attempts) == 0 {
		fmt.Fprintf(w, "No recorded update attempts for %s.\n", pfid)
		return
	}
	fmt.Fprintln(w, headingStyle.Render("Update attempts for "+pfid))
	for _, a := range attempts {
		status := string(a.Status)
		switch a.Status {
		case model.StatusAccepted:
			status = okStyle.Render(status)
		case model.StatusRejected, model.StatusError:
			status = badStyle.Render(status)
		}
		line := fmt.Sprintf("  %s  %-8s  %s", a.At.Local().Format(time.DateTime), status, a.Scope)
		if a.Detail != "" {
			line += "  " + dimStyle.Render(a.Detail)
		}
		fmt.Fprintln(w, line)
	}
}
