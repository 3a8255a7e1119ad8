package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/caffeineduck/webfdw/hostfunc"
	"github.com/caffeineduck/webfdw/protocol"
)

func TestPartialFrameStart(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"plain text", 10},
		{"log line\x00", 8},
		{"log line\x00FD", 8},
		{"log line\x00FDW_RES", 8},
		{"log line\x00XYZ", 12},
		{"", 0},
	}

	for _, tt := range tests {
		if got := partialFrameStart(tt.content); got != tt.want {
			t.Errorf("partialFrameStart(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestHostConnFramesAcrossWrites(t *testing.T) {
	conn := newHostConn(hostfunc.NewRegistry(), io.Discard)

	writes := []string{
		"level=INFO msg=starting\n\x00FD",
		"W_READY\x00",
		"halfway \x00FDW_RESULT:{\"ok\":tr",
		"ue,\"row\":[{\"kind\":\"text\",\"value\":\"1\"}]}\x00 tail",
	}
	for _, w := range writes {
		conn.Write([]byte(w))
	}

	select {
	case <-conn.Ready():
	default:
		t.Fatal("expected ready signal")
	}

	select {
	case res := <-conn.Results():
		if !res.OK || len(res.Row) != 1 {
			t.Errorf("unexpected result %+v", res)
		}
	default:
		t.Fatal("expected a result")
	}

	if got := conn.Output(); got != "level=INFO msg=starting\nhalfway  tail" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestHostConnAnswersCalls(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args["msg"], nil
	})

	stdinR, stdinW := io.Pipe()
	conn := newHostConn(registry, stdinW)
	lines := bufio.NewReader(stdinR)

	read := func() protocol.CallResponse {
		t.Helper()
		type result struct {
			line []byte
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			line, err := lines.ReadBytes('\n')
			ch <- result{line, err}
		}()
		select {
		case r := <-ch:
			if r.err != nil {
				t.Fatalf("read response: %v", r.err)
			}
			var resp protocol.CallResponse
			if err := json.Unmarshal(r.line, &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			return resp
		case <-time.After(5 * time.Second):
			t.Fatal("no response written")
		}
		return protocol.CallResponse{}
	}

	conn.Write([]byte("\x00FDW:{\"id\":4,\"fn\":\"echo\",\"args\":{\"msg\":\"hi\"}}\x00"))
	resp := read()
	if resp.ID != 4 || string(resp.Data) != `"hi"` || resp.Error != "" {
		t.Errorf("unexpected response %+v", resp)
	}

	conn.Write([]byte("\x00FDW:{\"id\":5,\"fn\":\"missing\",\"args\":{}}\x00"))
	resp = read()
	if resp.ID != 5 || resp.Error != "unknown function: missing" {
		t.Errorf("unexpected response %+v", resp)
	}

	conn.Write([]byte("\x00FDW:not json\x00"))
	resp = read()
	if resp.Error != "invalid call format" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHostConnResetDropsStaleResult(t *testing.T) {
	conn := newHostConn(hostfunc.NewRegistry(), io.Discard)
	conn.Write([]byte("stale\x00FDW_RESULT:{\"value\":\"old\"}\x00"))

	conn.ResetExec(context.Background())

	select {
	case res := <-conn.Results():
		t.Errorf("expected no result after reset, got %+v", res)
	default:
	}
	if conn.Output() != "" {
		t.Errorf("expected output cleared, got %q", conn.Output())
	}
}
