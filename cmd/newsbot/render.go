package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/pipeline"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/sources"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/store"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderSweep(w io.Writer, r *pipeline.SweepReport) {
	t := newTable(w)
	t.SetTitle("run %s", r.RunID)
	t.AppendHeader(table.Row{"Source", "Category", "Candidates", "Inserted", "Duplicate", "Blocked", "Errors", "Time", "Failure"})
	for _, src := range r.Sources {
		failure := ""
		if src.Err != nil {
			failure = text.Colors{text.FgRed}.Sprint(src.Err.Error())
		}
		t.AppendRow(table.Row{
			src.Source, src.Category, src.Candidates,
			src.Count(gate.Inserted), src.Count(gate.Duplicate), src.Count(gate.Blocked), src.Count(gate.StoreError),
			src.Duration.Round(time.Millisecond), failure,
		})
	}
	t.AppendFooter(table.Row{
		"Total", "", "",
		r.Total(gate.Inserted), r.Total(gate.Duplicate), r.Total(gate.Blocked), r.Total(gate.StoreError),
		r.Duration().Round(time.Millisecond), fmt.Sprintf("%d failed", r.Failures()),
	})
	t.Render()
}

func renderSources(w io.Writer, configs []sources.Config) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Name", "Category", "Department", "Mode", "URL"})
	for i, c := range configs {
		t.AppendRow(table.Row{i + 1, c.Name, c.Category, c.Department, c.Mode(), c.URL})
	}
	t.Render()
}

func renderMigrations(w io.Writer, results []storage.MigrationResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Migration", "Status"})
	for _, r := range results {
		status := "applied"
		switch {
		case r.Err != nil:
			status = "failed: " + r.Err.Error()
		case r.Skipped:
			status = "skipped"
		}
		t.AppendRow(table.Row{r.Name, status})
	}
	t.Render()
}

func renderCounts(w io.Writer, title string, values []store.ValueCount) {
	t := newTable(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Value", "Items"})
	for _, v := range values {
		t.AppendRow(table.Row{v.Value, v.Count})
	}
	t.Render()
}
