package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/webfdw/hostfunc"
	"github.com/caffeineduck/webfdw/protocol"
)

// hostConn is the host end of a guest's stdio. It consumes the guest's
// stderr, answers host function calls on the guest's stdin and hands
// command results to the session. Text outside frames is kept as output.
type hostConn struct {
	registry *hostfunc.Registry
	stdin    io.Writer

	buf     bytes.Buffer
	output  bytes.Buffer
	callCtx context.Context

	readyCh  chan struct{}
	resultCh chan protocol.Result
	ready    bool

	mu      sync.Mutex
	writeMu sync.Mutex
}

func newHostConn(registry *hostfunc.Registry, stdin io.Writer) *hostConn {
	return &hostConn{
		registry: registry,
		stdin:    stdin,
		callCtx:  context.Background(),
		readyCh:  make(chan struct{}),
		resultCh: make(chan protocol.Result, 1),
	}
}

func (p *hostConn) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(data)
	p.buf.Write(data)

	for p.processFrame() {
	}

	return n, nil
}

// processFrame handles at most one frame from the buffer and reports
// whether it made progress.
func (p *hostConn) processFrame() bool {
	content := p.buf.String()
	idx, msgType := protocol.FindNextMessage(content)
	if msgType == protocol.MessageNone {
		keep := partialFrameStart(content)
		p.output.WriteString(content[:keep])
		p.buf.Reset()
		p.buf.WriteString(content[keep:])
		return false
	}

	if idx > 0 {
		p.output.WriteString(content[:idx])
		content = content[idx:]
	}

	payload, remaining, ok := protocol.ExtractMessage(content, 0, msgType.Prefix())
	p.buf.Reset()
	if !ok {
		p.buf.WriteString(content)
		return false
	}
	p.buf.WriteString(remaining)

	switch msgType {
	case protocol.MessageReady:
		if !p.ready {
			p.ready = true
			close(p.readyCh)
		}
	case protocol.MessageResult:
		p.handleResult(payload)
	case protocol.MessageCall:
		p.handleCall(payload)
	}
	return true
}

// partialFrameStart returns the index where a possibly incomplete frame
// prefix begins at the end of content, or len(content).
func partialFrameStart(content string) int {
	i := strings.LastIndexByte(content, 0)
	if i == -1 {
		return len(content)
	}
	tail := content[i:]
	for _, prefix := range []string{protocol.CallPrefix, protocol.ResultPrefix, protocol.ReadyPrefix} {
		if strings.HasPrefix(prefix, tail) {
			return i
		}
	}
	return len(content)
}

func (p *hostConn) handleResult(payload string) {
	var res protocol.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		res = protocol.Result{Error: &protocol.Error{Kind: protocol.KindInternal, Message: "invalid result format"}}
	}
	select {
	case p.resultCh <- res:
	default:
	}
}

func (p *hostConn) handleCall(payload string) {
	var req protocol.CallRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		go p.send(protocol.CallResponse{Error: "invalid call format"})
		return
	}

	// Execute and respond in goroutine to avoid blocking Write()
	ctx := p.callCtx
	go func() {
		resp := p.executeCall(ctx, req)
		resp.ID = req.ID
		p.send(resp)
	}()
}

func (p *hostConn) executeCall(ctx context.Context, req protocol.CallRequest) protocol.CallResponse {
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		return protocol.CallResponse{Error: "unknown function: " + req.Fn}
	}

	result, err := fn(ctx, req.Args)
	if err != nil {
		return protocol.CallResponse{Error: err.Error()}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return protocol.CallResponse{Error: "internal: failed to marshal response"}
	}
	return protocol.CallResponse{Data: data}
}

// send writes one JSON line to the guest's stdin.
func (p *hostConn) send(v any) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return protocol.WriteLine(p.stdin, v)
}

func (p *hostConn) Ready() <-chan struct{} {
	return p.readyCh
}

func (p *hostConn) Results() <-chan protocol.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resultCh
}

// ResetExec prepares for the next command: host calls made while it runs
// use ctx, and stale results and output are dropped.
func (p *hostConn) ResetExec(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.resultCh:
	default:
	}
	p.resultCh = make(chan protocol.Result, 1)
	p.callCtx = ctx
	p.output.Reset()
}

// Output returns guest text written since the last ResetExec.
func (p *hostConn) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output.String()
}

// outputWriter sends the guest's stdout to Output.
type outputWriter struct{ p *hostConn }

func (w outputWriter) Write(data []byte) (int, error) {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	return w.p.output.Write(data)
}
