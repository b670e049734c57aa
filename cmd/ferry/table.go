package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ferry/internal/ledger"
)

// kv is one label/value line in a command's summary output.
type kv struct {
	label string
	value string
}

// renderKeyValues renders label/value pairs as a two-column table. Values are
// right-aligned when numeric is set, which keeps count columns scannable.
func renderKeyValues(labelHeading, valueHeading string, numeric bool, rows []kv) string {
	tw := newTableWriter(table.Row{labelHeading, valueHeading})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.label, r.value})
	}
	valueAlign := text.AlignLeft
	if numeric {
		valueAlign = text.AlignRight
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: valueAlign, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// renderPending lists interrupted transfers awaiting resumption.
func renderPending(pending []ledger.Pending) string {
	tw := newTableWriter(table.Row{"Batch", "Run"})
	for _, p := range pending {
		tw.AppendRow(table.Row{p.BatchID, p.RunID})
	}
	return tw.Render()
}

func newTableWriter(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}
