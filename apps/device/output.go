package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/trezcool/siku/core/mission"
	"github.com/trezcool/siku/core/progress"
)

var (
	sapphire = lipgloss.Color("#74c7ec")
	subtext  = lipgloss.Color("#a6adc8")
	green    = lipgloss.Color("#a6e3a1")
	peach    = lipgloss.Color("#fab387")

	title = lipgloss.NewStyle().Foreground(sapphire).Bold(true)
	muted = lipgloss.NewStyle().Foreground(subtext)
	done  = lipgloss.NewStyle().Foreground(green)
	hot   = lipgloss.NewStyle().Foreground(peach).Bold(true)
)

type output struct {
	w      io.Writer
	format string
}

func newOutput(cmd *cobra.Command, opts *RootOptions) *output {
	return &output{w: cmd.OutOrStdout(), format: opts.Format}
}

func (o *output) json(v interface{}) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) line(s string) {
	fmt.Fprintln(o.w, s)
}

func (o *output) dayGroups(rec progress.CompletionRecord, groups ...mission.DayGroup) {
	if len(groups) == 0 || (len(groups) == 1 && len(groups[0].Missions) == 0) {
		o.line(muted.Render("no missions"))
		return
	}
	for _, g := range groups {
		o.line(title.Render(fmt.Sprintf("Day %d", g.Day)) + muted.Render(fmt.Sprintf(" (cycle %d, %d points)", g.Cycle, g.Points())))
		for _, m := range g.Missions {
			mark := "[ ]"
			if rec.HasCompleted(m.ID) {
				mark = done.Render("[x]")
			}
			at := m.ScheduledTime
			if at == "" {
				at = "--:--"
			}
			o.line(fmt.Sprintf("  %s %s  %s %s", mark, at, m.Title, muted.Render(fmt.Sprintf("(%s, %d pts)", m.ID, m.Points))))
		}
	}
}

func (o *output) record(rec progress.CompletionRecord) {
	o.line(hot.Render(fmt.Sprintf("%d points", rec.Points)))
	ids := rec.Completed.Sorted()
	if len(ids) == 0 {
		o.line(muted.Render("nothing completed yet"))
		return
	}
	o.line("completed: " + strings.Join(ids, ", "))
}

func (o *output) reconciliation(res progress.ReconciliationResult) {
	switch res.Status {
	case progress.ResultMerged:
		o.line(done.Render(fmt.Sprintf("guest progress merged: %d missions, %d points", len(res.Added), res.PointsAdded)))
	case progress.ResultAlreadyMerged:
		o.line(muted.Render("guest progress was already merged"))
	case progress.ResultPending:
		o.line(hot.Render(fmt.Sprintf("guest progress kept on this device, run `siku sync` later: %v", res.Err)))
		return
	default:
		o.line(muted.Render("no guest progress to merge"))
		return
	}
	o.record(res.Record)
}
