package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/caffeineduck/webfdw/fdw"
)

const nullText = "NULL"

var (
	borderColor = lipgloss.Color("#475569")
	headerColor = lipgloss.Color("#8B5CF6")
	mutedColor  = lipgloss.Color("#64748B")
)

// rowPrinter writes scanned rows in one of the output formats.
type rowPrinter interface {
	Print(w io.Writer, columns []string, rows []fdw.Row) error
}

func newRowPrinter(format string, noColor bool) (rowPrinter, error) {
	switch format {
	case "table", "":
		return tablePrinter{noColor: noColor}, nil
	case "json":
		return jsonPrinter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (expected table or json)", format)
	}
}

type tablePrinter struct {
	noColor bool
}

func (p tablePrinter) Print(w io.Writer, columns []string, rows []fdw.Row) error {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	null := cell
	border := lipgloss.NewStyle()
	if !p.noColor {
		header = header.Foreground(headerColor)
		null = null.Foreground(mutedColor)
		border = border.Foreground(borderColor)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(border).
		Headers(columns...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col].IsNull() {
				return null
			}
			return cell
		})
	for _, row := range rows {
		t.Row(displayRow(row)...)
	}

	_, err := fmt.Fprintf(w, "%s\n(%d rows)\n", t.Render(), len(rows))
	return err
}

func displayRow(row fdw.Row) []string {
	out := make([]string, len(row))
	for i, c := range row {
		if c.IsNull() {
			out[i] = nullText
			continue
		}
		out[i] = c.String()
	}
	return out
}

// jsonPrinter writes one JSON object per row.
type jsonPrinter struct{}

func (jsonPrinter) Print(w io.Writer, columns []string, rows []fdw.Row) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(rowObject(columns, row)); err != nil {
			return err
		}
	}
	return nil
}

func rowObject(columns []string, row fdw.Row) map[string]any {
	obj := make(map[string]any, len(columns))
	for i, name := range columns {
		if i < len(row) {
			obj[name] = row[i].Value()
		}
	}
	return obj
}
