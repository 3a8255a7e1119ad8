package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/webfdw/fdw"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Parse the table definition and show the scan plan",
	Long: `Parse the table definition, validate its options and print the columns
together with the request the first scan would send. No network access.`,
	Args: cobra.NoArgs,
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	tbl, err := loadTable(conf.GetString("table"), conf.GetStringMapString("options"))
	if err != nil {
		return err
	}
	plan, err := fdw.PlanScan(tbl)
	if err != nil {
		return err
	}

	cols := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("column", "type", "required", "source")
	for _, col := range tbl.Columns {
		required := ""
		if col.Required {
			required = "yes"
		}
		cols.Row(col.Name, col.Type.String(), required, col.Path())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "table %s\n%s\n", tbl.Name, cols.Render())
	fmt.Fprintf(out, "url:        %s\n", plan.URL)
	fmt.Fprintf(out, "pagination: %s\n", plan.Pagination.Mode)
	if plan.RowID >= 0 {
		fmt.Fprintf(out, "rowid:      %s\n", tbl.Columns[plan.RowID].Name)
	}
	if len(plan.Params) > 0 {
		fmt.Fprintf(out, "params:     %s\n", plan.Params.Encode())
	}
	headers := slices.DeleteFunc(slices.Sorted(maps.Keys(plan.Headers)), func(k string) bool {
		return k == "Authorization"
	})
	fmt.Fprintf(out, "headers:    %s\n", strings.Join(headers, ", "))
	return nil
}
