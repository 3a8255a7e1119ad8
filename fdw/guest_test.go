package fdw

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestGuestScanLifecycle(t *testing.T) {
	host := twoPageHost()
	g := NewGuest(host)
	c := NewContext(eventsTable(nil))

	if err := g.Init(c); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := g.BeginScan(c); err != nil {
		t.Fatalf("begin scan: %v", err)
	}

	var ids []string
	for i := 0; i < 4; i++ {
		row, ok, err := g.IterScan(c)
		if err != nil {
			t.Fatalf("iter scan %d: %v", i+1, err)
		}
		if !ok {
			if i != 3 {
				t.Fatalf("unexpected end of data on call %d", i+1)
			}
			break
		}
		id, _ := row[0].Text()
		ids = append(ids, id)
	}
	if len(ids) != 3 || ids[0] != "1" || ids[2] != "3" {
		t.Errorf("expected ids [1 2 3], got %v", ids)
	}
	if len(host.calls) != 2 {
		t.Errorf("expected 2 fetches, got %d", len(host.calls))
	}

	if err := g.EndScan(c); err != nil {
		t.Fatalf("end scan: %v", err)
	}
	if _, _, err := g.IterScan(c); !errors.Is(err, ErrScanNotActive) {
		t.Errorf("expected ErrScanNotActive after end, got %v", err)
	}
}

func TestGuestReScanWithoutInit(t *testing.T) {
	host := twoPageHost()
	g := NewGuest(host)
	c := NewContext(eventsTable(nil))

	if err := g.ReScan(c); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	row, ok, err := g.IterScan(c)
	if err != nil || !ok {
		t.Fatalf("expected a row, got ok=%v err=%v", ok, err)
	}
	if id, _ := row[0].Text(); id != "1" {
		t.Errorf("expected first row, got %q", id)
	}
}

func TestGuestEndScanSafeFromAnyState(t *testing.T) {
	g := NewGuest(twoPageHost())
	c := NewContext(eventsTable(nil))

	if err := g.EndScan(c); err != nil {
		t.Errorf("end scan before begin: %v", err)
	}
	g.BeginScan(c)
	g.IterScan(c)
	if err := g.EndScan(c); err != nil {
		t.Errorf("end scan mid-scan: %v", err)
	}
	if err := g.EndScan(c); err != nil {
		t.Errorf("second end scan: %v", err)
	}
}

func TestGuestScansKeyedByContext(t *testing.T) {
	host := twoPageHost()
	g := NewGuest(host)
	a := NewContext(eventsTable(nil))
	b := NewContext(eventsTable(nil))

	g.BeginScan(a)
	g.BeginScan(b)

	rowA, _, _ := g.IterScan(a)
	rowA2, _, _ := g.IterScan(a)
	rowB, _, _ := g.IterScan(b)

	if id, _ := rowA2[0].Text(); id != "2" {
		t.Errorf("expected context a to advance, got %q", id)
	}
	if !rowA.Equal(rowB) {
		t.Errorf("expected context b to start independently, got %v", rowB.Strings())
	}
}

func TestGuestContextCancellation(t *testing.T) {
	host := RequesterFunc(func(ctx context.Context, req Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	g := NewGuest(host)
	c := NewContext(eventsTable(nil))
	g.BeginScan(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := g.IterScan(c.WithContext(ctx))
	var fe *FetchError
	if !errors.As(err, &fe) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected fetch error wrapping deadline, got %v", err)
	}
}

func TestGuestWriteOperationsUnsupported(t *testing.T) {
	g := NewGuest(twoPageHost())
	c := NewContext(eventsTable(nil))
	row := Row{TextCell("1"), TextCell("PushEvent"), NullCell()}

	calls := map[string]func() error{
		"begin_modify": func() error { return g.BeginModify(c) },
		"insert":       func() error { return g.Insert(c, row) },
		"update":       func() error { return g.Update(c, TextCell("1"), row) },
		"delete":       func() error { return g.Delete(c, TextCell("1")) },
		"end_modify":   func() error { return g.EndModify(c) },
	}
	for op, call := range calls {
		err := call()
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s: expected ErrUnsupported, got %v", op, err)
		}
		var ue *UnsupportedError
		if !errors.As(err, &ue) || ue.Op != op {
			t.Errorf("%s: expected UnsupportedError for op, got %v", op, err)
		}
	}
}

func TestGuestInitRejectsInvalidOptions(t *testing.T) {
	g := NewGuest(twoPageHost())
	table := eventsTable(nil)
	delete(table.Options, "object")

	err := g.Init(NewContext(table))
	var oe *OptionError
	if !errors.As(err, &oe) || oe.Option != "object" {
		t.Errorf("expected object option error, got %v", err)
	}
}

func TestGuestVersionRequirement(t *testing.T) {
	if got := NewGuest(nil).HostVersionRequirement(); got != "^0.1.0" {
		t.Errorf("expected ^0.1.0, got %q", got)
	}
}

func TestContextJSONKeepsIdentity(t *testing.T) {
	c := NewContext(eventsTable(Options{"rowid_column": "id"}))
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Context
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != c.ID || back.Table.Columns[2].Type != TypeJSON || back.Table.Options["rowid_column"] != "id" {
		t.Errorf("context changed across JSON: %+v", back)
	}
}

func TestCellJSONKeepsPrecisionAndRawJSON(t *testing.T) {
	row := Row{
		IntCell(9007199254740993),
		JSONCell([]byte(`{"login":"octocat"}`)),
		TimestampCell(time.Date(2024, 3, 1, 10, 20, 30, 123, time.UTC)),
		NullCell(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Row
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(row) {
		t.Errorf("expected %v, got %v", row.Strings(), back.Strings())
	}
}
