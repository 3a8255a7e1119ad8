package main

import (
	"github.com/spf13/cobra"

	"github.com/caffeineduck/webfdw/fdw"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the table once and print its rows",
	Long: `Run a full scan of the table: Init, BeginScan, IterScan until end of
data, EndScan. Pages are fetched lazily, so --limit stops fetching once
enough rows have been read.

Examples:
  webfdw scan -m webfdw.wasm -t events.sql
  webfdw scan --native -t events.sql --limit 10 --format json`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().Int("limit", 0, "Stop after this many rows (0 means all)")
	scanCmd.Flags().StringP("format", "f", "table", "Output format: table, json")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	printer, err := newRowPrinter(format, conf.GetBool("no_color"))
	if err != nil {
		return err
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	c := fdw.NewContext(rt.table).WithContext(cmd.Context())
	sess, err := rt.newSession(c)
	if err != nil {
		return err
	}
	defer sess.Close()

	rows, err := scanRows(sess, c, limit)
	if err != nil {
		return err
	}
	return printer.Print(cmd.OutOrStdout(), rt.table.ColumnNames(), rows)
}

// scanRows runs one scan to completion or until limit rows, when limit is
// positive. EndScan runs on every path.
func scanRows(w fdw.Wrapper, c *fdw.Context, limit int) (rows []fdw.Row, err error) {
	if err := w.BeginScan(c); err != nil {
		return nil, err
	}
	defer func() {
		if endErr := w.EndScan(c); err == nil {
			err = endErr
		}
	}()

	for limit <= 0 || len(rows) < limit {
		row, ok, err := w.IterScan(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	logger.Debug("scan finished", "table", c.Table.Name, "rows", len(rows))
	return rows, nil
}
