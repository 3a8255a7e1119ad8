package fdw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the variant held by a Cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindTimestamp
	KindJSON
)

var kindNames = [...]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindText:      "text",
	KindTimestamp: "timestamp",
	KindJSON:      "json",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func parseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown cell kind %q", s)
}

// Cell is a single typed value in a Row. The zero value is null.
type Cell struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	raw  json.RawMessage
}

// NullCell returns a null cell.
func NullCell() Cell { return Cell{} }

// BoolCell returns a boolean cell.
func BoolCell(v bool) Cell { return Cell{kind: KindBool, b: v} }

// IntCell returns an integer cell.
func IntCell(v int64) Cell { return Cell{kind: KindInt, i: v} }

// FloatCell returns a floating point cell.
func FloatCell(v float64) Cell { return Cell{kind: KindFloat, f: v} }

// TextCell returns a text cell.
func TextCell(v string) Cell { return Cell{kind: KindText, s: v} }

// TimestampCell returns a timestamp cell normalized to UTC.
func TimestampCell(v time.Time) Cell { return Cell{kind: KindTimestamp, t: v.UTC()} }

// JSONCell returns a semi-structured cell holding raw JSON. The bytes are
// copied.
func JSONCell(raw []byte) Cell {
	return Cell{kind: KindJSON, raw: append(json.RawMessage(nil), raw...)}
}

func (c Cell) Kind() Kind   { return c.kind }
func (c Cell) IsNull() bool { return c.kind == KindNull }

// Bool returns the value of a bool cell.
func (c Cell) Bool() (bool, bool) { return c.b, c.kind == KindBool }

// Int returns the value of an int cell.
func (c Cell) Int() (int64, bool) { return c.i, c.kind == KindInt }

// Float returns the value of a float cell.
func (c Cell) Float() (float64, bool) { return c.f, c.kind == KindFloat }

// Text returns the value of a text cell.
func (c Cell) Text() (string, bool) { return c.s, c.kind == KindText }

// Timestamp returns the value of a timestamp cell.
func (c Cell) Timestamp() (time.Time, bool) { return c.t, c.kind == KindTimestamp }

// JSON returns the raw bytes of a json cell.
func (c Cell) JSON() (json.RawMessage, bool) { return c.raw, c.kind == KindJSON }

// Value returns the cell as a plain Go value: nil, bool, int64, float64,
// string, time.Time or json.RawMessage.
func (c Cell) Value() any {
	switch c.kind {
	case KindBool:
		return c.b
	case KindInt:
		return c.i
	case KindFloat:
		return c.f
	case KindText:
		return c.s
	case KindTimestamp:
		return c.t
	case KindJSON:
		return c.raw
	default:
		return nil
	}
}

// Equal reports whether two cells hold the same kind and value. JSON cells
// compare by compacted bytes.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindNull:
		return true
	case KindBool:
		return c.b == o.b
	case KindInt:
		return c.i == o.i
	case KindFloat:
		return c.f == o.f
	case KindText:
		return c.s == o.s
	case KindTimestamp:
		return c.t.Equal(o.t)
	case KindJSON:
		var a, b bytes.Buffer
		if json.Compact(&a, c.raw) != nil || json.Compact(&b, o.raw) != nil {
			return bytes.Equal(c.raw, o.raw)
		}
		return bytes.Equal(a.Bytes(), b.Bytes())
	}
	return false
}

// String renders the cell for display. Null renders as an empty string.
func (c Cell) String() string {
	switch c.kind {
	case KindBool:
		return strconv.FormatBool(c.b)
	case KindInt:
		return strconv.FormatInt(c.i, 10)
	case KindFloat:
		return strconv.FormatFloat(c.f, 'g', -1, 64)
	case KindText:
		return c.s
	case KindTimestamp:
		return c.t.Format(time.RFC3339Nano)
	case KindJSON:
		return string(c.raw)
	default:
		return ""
	}
}

type cellJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the cell as {"kind":..., "value":...}.
func (c Cell) MarshalJSON() ([]byte, error) {
	out := cellJSON{Kind: c.kind.String()}
	var err error
	switch c.kind {
	case KindNull:
	case KindBool:
		out.Value, err = json.Marshal(c.b)
	case KindInt:
		out.Value = strconv.AppendInt(nil, c.i, 10)
	case KindFloat:
		out.Value, err = json.Marshal(c.f)
	case KindText:
		out.Value, err = json.Marshal(c.s)
	case KindTimestamp:
		out.Value, err = json.Marshal(c.t.Format(time.RFC3339Nano))
	case KindJSON:
		out.Value = c.raw
		if len(out.Value) == 0 {
			out.Value = json.RawMessage("null")
		}
	default:
		return nil, fmt.Errorf("marshal cell: unknown kind %d", c.kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var in cellJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, err := parseKind(in.Kind)
	if err != nil {
		return err
	}

	switch kind {
	case KindNull:
		*c = NullCell()
	case KindBool:
		var v bool
		if err := json.Unmarshal(in.Value, &v); err != nil {
			return fmt.Errorf("bool cell: %w", err)
		}
		*c = BoolCell(v)
	case KindInt:
		v, err := strconv.ParseInt(string(in.Value), 10, 64)
		if err != nil {
			return fmt.Errorf("int cell: %w", err)
		}
		*c = IntCell(v)
	case KindFloat:
		var v float64
		if err := json.Unmarshal(in.Value, &v); err != nil {
			return fmt.Errorf("float cell: %w", err)
		}
		*c = FloatCell(v)
	case KindText:
		var v string
		if err := json.Unmarshal(in.Value, &v); err != nil {
			return fmt.Errorf("text cell: %w", err)
		}
		*c = TextCell(v)
	case KindTimestamp:
		var s string
		if err := json.Unmarshal(in.Value, &s); err != nil {
			return fmt.Errorf("timestamp cell: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp cell: %w", err)
		}
		*c = TimestampCell(t)
	case KindJSON:
		*c = JSONCell(in.Value)
	}
	return nil
}

// Row is an ordered sequence of cells aligned with the table's column
// declaration order.
type Row []Cell

// Values returns the plain Go values of the row's cells.
func (r Row) Values() []any {
	out := make([]any, len(r))
	for i, c := range r {
		out[i] = c.Value()
	}
	return out
}

// Strings renders every cell with Cell.String.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

// Equal reports whether both rows hold equal cells in the same order.
func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}
