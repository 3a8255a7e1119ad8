package fdw

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Decoder projects a page of JSON records onto declared columns.
type Decoder struct {
	Columns []Column
	// RecordsPath locates the record array inside an object body. Empty
	// means the body itself is the array.
	RecordsPath string
}

// DecodePage decodes a body holding a top-level JSON array of objects.
func DecodePage(body []byte, columns []Column) ([]Row, error) {
	d := Decoder{Columns: columns}
	return d.Decode(body)
}

// Decode returns one Row per record, in source order.
func (d *Decoder) Decode(body []byte) ([]Row, error) {
	records, err := extractRecords(body, d.RecordsPath)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		if firstByte(rec) != '{' {
			return nil, &DecodeError{Kind: MalformedBody, Record: i, Err: errors.New("record is not an object")}
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rec, &obj); err != nil {
			return nil, &DecodeError{Kind: MalformedBody, Record: i, Err: err}
		}

		row := make(Row, len(d.Columns))
		for j, col := range d.Columns {
			raw, found := lookupRaw(obj, col.Path())
			cell, err := coerce(raw, found, col)
			if err != nil {
				err.Record = i
				return nil, err
			}
			row[j] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// extractRecords returns the raw elements of the record array.
func extractRecords(body []byte, path string) ([]json.RawMessage, error) {
	arr := json.RawMessage(bytes.TrimSpace(body))
	if path != "" {
		if firstByte(arr) != '{' {
			return nil, &DecodeError{Kind: MalformedBody, Record: -1, Err: errors.New("body is not a JSON object")}
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(arr, &obj); err != nil {
			return nil, &DecodeError{Kind: MalformedBody, Record: -1, Err: err}
		}
		raw, ok := lookupRaw(obj, path)
		if !ok {
			return nil, &DecodeError{Kind: MalformedBody, Record: -1, Err: fmt.Errorf("records path %q not found", path)}
		}
		arr = raw
	}

	if firstByte(arr) != '[' {
		return nil, &DecodeError{Kind: MalformedBody, Record: -1, Err: errors.New("body is not a JSON array")}
	}
	var records []json.RawMessage
	if err := json.Unmarshal(arr, &records); err != nil {
		return nil, &DecodeError{Kind: MalformedBody, Record: -1, Err: err}
	}
	return records, nil
}

// lookupRaw resolves a dotted path. Numeric segments index arrays. An
// exact key match on the whole path wins over descending, so keys that
// contain dots still resolve.
func lookupRaw(obj map[string]json.RawMessage, path string) (json.RawMessage, bool) {
	if raw, ok := obj[path]; ok {
		return raw, true
	}
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return nil, false
	}
	cur, ok := obj[head]
	if !ok {
		return nil, false
	}
	for _, seg := range strings.Split(rest, ".") {
		switch firstByte(cur) {
		case '{':
			var m map[string]json.RawMessage
			if json.Unmarshal(cur, &m) != nil {
				return nil, false
			}
			if cur, ok = m[seg]; !ok {
				return nil, false
			}
		case '[':
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 {
				return nil, false
			}
			var a []json.RawMessage
			if json.Unmarshal(cur, &a) != nil || idx >= len(a) {
				return nil, false
			}
			cur = a[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// lookupPath resolves a dotted path in an arbitrary JSON document.
func lookupPath(body []byte, path string) (json.RawMessage, bool) {
	if firstByte(body) != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(body, &obj) != nil {
		return nil, false
	}
	return lookupRaw(obj, path)
}

func firstByte(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c
	}
	return 0
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

var intRanges = map[Type][2]int64{
	TypeInt16: {math.MinInt16, math.MaxInt16},
	TypeInt32: {math.MinInt32, math.MaxInt32},
	TypeInt64: {math.MinInt64, math.MaxInt64},
}

// coerce maps one JSON value onto a column's declared type.
func coerce(raw json.RawMessage, found bool, col Column) (Cell, *DecodeError) {
	if !found || isJSONNull(raw) {
		if col.Required {
			return Cell{}, &DecodeError{Kind: MissingColumn, Column: col.Name}
		}
		return NullCell(), nil
	}

	mismatch := func() *DecodeError {
		return &DecodeError{
			Kind:   TypeMismatch,
			Column: col.Name,
			Err:    fmt.Errorf("cannot use JSON %s as %s", jsonKind(raw), col.Type),
		}
	}

	switch col.Type {
	case TypeText:
		var s string
		if firstByte(raw) != '"' || json.Unmarshal(raw, &s) != nil {
			return Cell{}, mismatch()
		}
		return TextCell(s), nil

	case TypeBool:
		var b bool
		if jsonKind(raw) != "boolean" || json.Unmarshal(raw, &b) != nil {
			return Cell{}, mismatch()
		}
		return BoolCell(b), nil

	case TypeInt16, TypeInt32, TypeInt64:
		if jsonKind(raw) != "number" {
			return Cell{}, mismatch()
		}
		n, ok := parseInteger(string(bytes.TrimSpace(raw)))
		bounds := intRanges[col.Type]
		if !ok || n < bounds[0] || n > bounds[1] {
			return Cell{}, mismatch()
		}
		return IntCell(n), nil

	case TypeFloat32, TypeFloat64:
		if jsonKind(raw) != "number" {
			return Cell{}, mismatch()
		}
		bitSize := 64
		if col.Type == TypeFloat32 {
			bitSize = 32
		}
		f, err := strconv.ParseFloat(string(bytes.TrimSpace(raw)), bitSize)
		if err != nil {
			return Cell{}, mismatch()
		}
		return FloatCell(f), nil

	case TypeTimestamp, TypeTimestampTZ:
		var s string
		if firstByte(raw) != '"' || json.Unmarshal(raw, &s) != nil {
			return Cell{}, mismatch()
		}
		t, err := ParseTimestamp(s)
		if err != nil {
			return Cell{}, &DecodeError{Kind: InvalidTimestamp, Column: col.Name, Err: err}
		}
		return TimestampCell(t), nil

	case TypeJSON:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return Cell{}, &DecodeError{Kind: MalformedBody, Column: col.Name, Err: err}
		}
		return JSONCell(buf.Bytes()), nil
	}

	return Cell{}, &DecodeError{Kind: TypeMismatch, Column: col.Name, Err: fmt.Errorf("unsupported column type %s", col.Type)}
}

// parseInteger accepts integer literals and integral floats such as 1e3.
func parseInteger(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func jsonKind(raw json.RawMessage) string {
	switch c := firstByte(raw); {
	case c == '"':
		return "string"
	case c == '{':
		return "object"
	case c == '[':
		return "array"
	case c == 't' || c == 'f':
		return "boolean"
	case c == 'n':
		return "null"
	case c == '-' || (c >= '0' && c <= '9'):
		return "number"
	default:
		return "value"
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-8601 forms remote APIs commonly emit.
// Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", s)
}
