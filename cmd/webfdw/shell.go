package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/webfdw/fdw"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Drive the wrapper contract interactively",
	Long: `Start an interactive shell bound to one wrapper session and table.

Commands:
  begin             BeginScan
  next [n]          IterScan n times (default 1)
  rescan            ReScan, restarting from the first page
  end               EndScan
  insert <json>     Insert a row given as a JSON array
  update <id> <json>  Update the row with the given rowid
  delete <id>       Delete the row with the given rowid
  help              Show this list
  quit              Leave the shell

Features:
  - Command history (up/down arrows)
  - History search (Ctrl+R)`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	shellCmd.Flags().String("history", "", "History file path (default: ~/.webfdw_history)")
	rootCmd.AddCommand(shellCmd)
}

const shellHelp = `begin | next [n] | rescan | end | insert <json> | update <id> <json> | delete <id> | quit`

func runShell(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".webfdw_history")
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

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            rt.table.Name + "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("begin"),
			readline.PcItem("next"),
			readline.PcItem("rescan"),
			readline.PcItem("end"),
			readline.PcItem("insert"),
			readline.PcItem("update"),
			readline.PcItem("delete"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "webfdw shell on %s (type 'help' for commands, Ctrl+D to exit)\n", rt.table.Name)

	sh := &shell{w: sess, c: c, out: rl.Stdout(), printer: tablePrinter{noColor: conf.GetBool("no_color")}}
	defer sh.close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if sh.exec(line) {
			return nil
		}
	}
}

// shell interprets one command line at a time against a wrapper.
type shell struct {
	w       fdw.Wrapper
	c       *fdw.Context
	out     io.Writer
	printer rowPrinter
	active  bool
}

// exec runs line and reports whether the shell should exit.
func (s *shell) exec(line string) bool {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)

	var err error
	switch name {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(s.out, shellHelp)
	case "begin":
		if err = s.w.BeginScan(s.c); err == nil {
			s.active = true
		}
	case "next":
		err = s.next(rest)
	case "rescan":
		if err = s.w.ReScan(s.c); err == nil {
			s.active = true
		}
	case "end":
		err = s.w.EndScan(s.c)
		s.active = false
	case "insert":
		var row fdw.Row
		if row, err = parseRow(rest); err == nil {
			err = s.w.Insert(s.c, row)
		}
	case "update":
		id, data, _ := strings.Cut(rest, " ")
		var row fdw.Row
		if row, err = parseRow(data); err == nil {
			err = s.w.Update(s.c, parseCell(id), row)
		}
	case "delete":
		err = s.w.Delete(s.c, parseCell(rest))
	default:
		err = fmt.Errorf("unknown command %q (%s)", name, shellHelp)
	}

	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	} else if name != "next" && name != "help" {
		fmt.Fprintln(s.out, "ok")
	}
	return false
}

func (s *shell) next(arg string) error {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return fmt.Errorf("invalid row count %q", arg)
		}
		n = v
	}

	var rows []fdw.Row
	done := false
	for len(rows) < n {
		row, ok, err := s.w.IterScan(s.c)
		if err != nil {
			return err
		}
		if !ok {
			done = true
			break
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		if err := s.printer.Print(s.out, s.c.Table.ColumnNames(), rows); err != nil {
			return err
		}
	}
	if done {
		fmt.Fprintln(s.out, "(end of data)")
	}
	return nil
}

// close ends a scan left open when the shell exits.
func (s *shell) close() {
	if s.active {
		s.w.EndScan(s.c)
	}
}

// parseRow reads a JSON array into text, number, bool and null cells.
func parseRow(s string) (fdw.Row, error) {
	if s == "" {
		return nil, errors.New("row required as a JSON array")
	}
	var values []json.RawMessage
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("row must be a JSON array: %w", err)
	}
	row := make(fdw.Row, len(values))
	for i, raw := range values {
		row[i] = parseCell(string(raw))
	}
	return row, nil
}

// parseCell reads a JSON scalar; anything else becomes a text cell.
func parseCell(s string) fdw.Cell {
	s = strings.TrimSpace(s)
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return fdw.TextCell(s)
	}
	switch v := v.(type) {
	case nil:
		return fdw.NullCell()
	case bool:
		return fdw.BoolCell(v)
	case string:
		return fdw.TextCell(v)
	case float64:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fdw.IntCell(i)
		}
		return fdw.FloatCell(v)
	default:
		return fdw.JSONCell([]byte(s))
	}
}
