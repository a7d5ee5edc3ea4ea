package main

import (
	"errors"
	"io"
	"unicode/utf8"

	"github.com/Travis-Britz/cfddns"
	"github.com/olekukonko/tablewriter"
)

// writeSummary prints one row per target of a cycle.
func writeSummary(w io.Writer, r ddns.Report, cycleErr error) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Host", "Zone", "Type", "Address", "Result"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.SetAutoWrapText(false)
	for _, res := range r.Results {
		result := res.Outcome.Action.String()
		if res.Err != nil {
			result = "failed: " + shorten(unwrapTarget(res.Err).Error(), 48)
		}
		table.Append([]string{res.Target.Host, res.Target.Zone, res.Target.Type, res.Target.Address.String(), result})
	}
	if cycleErr != nil {
		table.Append([]string{"", "", "", "", "cycle aborted: " + shorten(cycleErr.Error(), 48)})
	}
	table.Render()
}

// unwrapTarget drops the target prefix already shown in the other columns.
func unwrapTarget(err error) error {
	var re *ddns.ReconcileError
	if errors.As(err, &re) {
		return re.Err
	}
	return err
}

// shorten keeps the first n runes of s.
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
