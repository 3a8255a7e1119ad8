// Package guest runs a wrapper inside the sandbox. It reads commands from
// stdin, dispatches them to an fdw.Wrapper and writes framed results to
// stderr. Network access is only available through the host.
package guest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/protocol"
)

// Factory builds the wrapper served by Serve. host is the only capability
// the wrapper receives.
type Factory func(host fdw.Requester) fdw.Wrapper

var errMissingContext = errors.New("command has no context")

// Serve announces readiness and handles commands until stdin closes or an
// exit command arrives.
func Serve(ctx context.Context, in io.Reader, out io.Writer, factory Factory) error {
	r := bufio.NewReader(in)
	host := newHost(r, out)
	w := factory(protocol.NewRequester(host))

	if err := protocol.WriteReady(out); err != nil {
		return fmt.Errorf("announce ready: %w", err)
	}

	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var cmd protocol.Command
			if jsonErr := json.Unmarshal(line, &cmd); jsonErr == nil && cmd.Op != "" {
				if cmd.Op == protocol.OpExit {
					return nil
				}
				if werr := protocol.WriteResult(out, dispatch(ctx, w, cmd)); werr != nil {
					return fmt.Errorf("write result: %w", werr)
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
	}
}

func dispatch(ctx context.Context, w fdw.Wrapper, cmd protocol.Command) protocol.Result {
	if cmd.Op == protocol.OpHostVersionRequirement {
		return protocol.Result{Value: w.HostVersionRequirement()}
	}
	if cmd.Context == nil {
		return protocol.Result{Error: protocol.FromError(errMissingContext)}
	}
	c := cmd.Context.WithContext(ctx)

	var err error
	switch cmd.Op {
	case protocol.OpInit:
		err = w.Init(c)
	case protocol.OpBeginScan:
		err = w.BeginScan(c)
	case protocol.OpIterScan:
		row, ok, iterErr := w.IterScan(c)
		return protocol.Result{Row: row, OK: ok, Error: protocol.FromError(iterErr)}
	case protocol.OpReScan:
		err = w.ReScan(c)
	case protocol.OpEndScan:
		err = w.EndScan(c)
	case protocol.OpBeginModify:
		err = w.BeginModify(c)
	case protocol.OpInsert:
		err = w.Insert(c, cmd.Row)
	case protocol.OpUpdate:
		err = w.Update(c, rowID(cmd), cmd.Row)
	case protocol.OpDelete:
		err = w.Delete(c, rowID(cmd))
	case protocol.OpEndModify:
		err = w.EndModify(c)
	default:
		err = fmt.Errorf("unknown op %q", cmd.Op)
	}
	return protocol.Result{Error: protocol.FromError(err)}
}

func rowID(cmd protocol.Command) fdw.Cell {
	if cmd.RowID == nil {
		return fdw.NullCell()
	}
	return *cmd.RowID
}
