package guest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/caffeineduck/webfdw/protocol"
)

// ErrHostClosed is returned when stdin closes while a host call is pending.
var ErrHostClosed = errors.New("host closed the connection")

// Host calls host functions over the guest's stdio. Calls are serialized;
// each blocks until the matching response line arrives.
type Host struct {
	in  *bufio.Reader
	out io.Writer

	mu     sync.Mutex
	nextID uint64
}

func newHost(in *bufio.Reader, out io.Writer) *Host {
	return &Host{in: in, out: out}
}

// Call runs fn on the host and returns its decoded result as raw JSON.
func (h *Host) Call(ctx context.Context, fn string, args map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if err := protocol.WriteCall(h.out, protocol.CallRequest{ID: id, Fn: fn, Args: args}); err != nil {
		return nil, fmt.Errorf("send %s: %w", fn, err)
	}

	for {
		line, err := h.in.ReadBytes('\n')
		if len(line) > 0 {
			var resp protocol.CallResponse
			if jsonErr := json.Unmarshal(line, &resp); jsonErr == nil && resp.ID == id {
				if resp.Error != "" {
					return nil, errors.New(resp.Error)
				}
				return resp.Data, nil
			}
		}
		if err == io.EOF {
			return nil, ErrHostClosed
		}
		if err != nil {
			return nil, fmt.Errorf("read %s response: %w", fn, err)
		}
	}
}
