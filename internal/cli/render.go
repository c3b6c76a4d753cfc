package cli

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"tabledesk/internal/models"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderProperties(w io.Writer, props []models.Property) {
	t := newTable(w, table.Row{"Property", "Value"})
	for _, p := range props {
		t.AppendRow(table.Row{p.Name, p.Value})
	}
	t.Render()
}
