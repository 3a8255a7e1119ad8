package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/caffeineduck/webfdw/fdw"
)

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	sm, _ := setupTestServer(t)
	c := fdw.NewContext(sm.table)
	g := fdw.NewGuest(pagedHost())
	if err := g.Init(c); err != nil {
		t.Fatalf("init: %v", err)
	}
	out := new(bytes.Buffer)
	return &shell{w: g, c: c, out: out, printer: jsonPrinter{}}, out
}

func TestShellScan(t *testing.T) {
	sh, out := newTestShell(t)

	sh.exec("begin")
	sh.exec("next 2")
	if got := strings.Count(out.String(), `"id":`); got != 2 {
		t.Fatalf("expected 2 rows printed, got %d:\n%s", got, out.String())
	}

	out.Reset()
	sh.exec("NEXT 5")
	if !strings.Contains(out.String(), `"id":"3"`) || !strings.Contains(out.String(), "(end of data)") {
		t.Errorf("expected last row and end of data, got:\n%s", out.String())
	}

	out.Reset()
	sh.exec("rescan")
	sh.exec("next")
	if !strings.Contains(out.String(), `"id":"1"`) {
		t.Errorf("expected first row after rescan, got:\n%s", out.String())
	}

	out.Reset()
	sh.exec("end")
	sh.exec("next")
	if !strings.Contains(out.String(), "scan not active") {
		t.Errorf("expected scan not active after end, got:\n%s", out.String())
	}
}

func TestShellCommands(t *testing.T) {
	tests := []struct {
		line string
		want string
		quit bool
	}{
		{"", "", false},
		{"help", "rescan", false},
		{"insert [1, \"a\"]", "not supported", false},
		{"insert {}", "JSON array", false},
		{"update 1 [\"x\"]", "update:", false},
		{"delete 7", "delete:", false},
		{"next zero", "invalid row count", false},
		{"frobnicate", "unknown command", false},
		{"quit", "", true},
		{"exit", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			sh, out := newTestShell(t)
			if quit := sh.exec(tc.line); quit != tc.quit {
				t.Errorf("exec(%q) quit = %v, want %v", tc.line, quit, tc.quit)
			}
			if tc.want != "" && !strings.Contains(out.String(), tc.want) {
				t.Errorf("exec(%q) output should contain %q, got %q", tc.line, tc.want, out.String())
			}
		})
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		want fdw.Cell
	}{
		{`"abc"`, fdw.TextCell("abc")},
		{`abc`, fdw.TextCell("abc")},
		{`42`, fdw.IntCell(42)},
		{`9007199254740993`, fdw.IntCell(9007199254740993)},
		{`1.5`, fdw.FloatCell(1.5)},
		{`true`, fdw.BoolCell(true)},
		{`null`, fdw.NullCell()},
		{`{"a":1}`, fdw.JSONCell([]byte(`{"a":1}`))},
	}

	for _, tc := range tests {
		if got := parseCell(tc.in); !got.Equal(tc.want) {
			t.Errorf("parseCell(%q) = %s %q, want %s %q", tc.in, got.Kind(), got, tc.want.Kind(), tc.want)
		}
	}
}
