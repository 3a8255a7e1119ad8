package fdw

import (
	"errors"
	"testing"
	"time"
)

var eventColumns = []Column{
	{Name: "id", Type: TypeText},
	{Name: "type", Type: TypeText},
	{Name: "actor", Type: TypeJSON},
}

func TestDecodePageMissingOptionalFieldIsNull(t *testing.T) {
	rows, err := DecodePage([]byte(`[{"id":"1","type":"PushEvent"}]`), eventColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	want := Row{TextCell("1"), TextCell("PushEvent"), NullCell()}
	if !rows[0].Equal(want) {
		t.Errorf("expected %v, got %v", want.Strings(), rows[0].Strings())
	}
}

func TestDecodePagePreservesOrderAndPositions(t *testing.T) {
	body := `[
		{"type":"PushEvent","id":"1","actor":{"login":"octocat","id":583231}},
		{"id":"2","type":"WatchEvent","actor":[1,2,3]},
		{"actor":null,"id":"3","type":"ForkEvent"}
	]`
	rows, err := DecodePage([]byte(body), eventColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	wantIDs := []string{"1", "2", "3"}
	for i, row := range rows {
		if got, _ := row[0].Text(); got != wantIDs[i] {
			t.Errorf("row %d: expected id %q, got %q", i, wantIDs[i], got)
		}
	}

	actor, ok := rows[0][2].JSON()
	if !ok {
		t.Fatalf("expected json cell, got %s", rows[0][2].Kind())
	}
	if string(actor) != `{"login":"octocat","id":583231}` {
		t.Errorf("expected object passthrough, got %s", actor)
	}
	if got, _ := rows[1][2].JSON(); string(got) != `[1,2,3]` {
		t.Errorf("expected array passthrough, got %s", got)
	}
	if !rows[2][2].IsNull() {
		t.Errorf("expected explicit null to decode as null, got %s", rows[2][2].Kind())
	}
}

func TestDecodePageMalformedBody(t *testing.T) {
	bodies := []string{
		`"not-json-array"`,
		`{"id":"1"}`,
		`[{"id":"1"}`,
		`["a","b"]`,
		`[null]`,
		``,
	}
	for _, body := range bodies {
		_, err := DecodePage([]byte(body), eventColumns)
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("body %q: expected *DecodeError, got %v", body, err)
			continue
		}
		if de.Kind != MalformedBody {
			t.Errorf("body %q: expected malformed_body, got %s", body, de.Kind)
		}
	}
}

func TestDecodePageRequiredColumn(t *testing.T) {
	cols := []Column{
		{Name: "id", Type: TypeText, Required: true},
		{Name: "type", Type: TypeText},
	}

	for _, body := range []string{`[{"id":"1"},{"type":"x"}]`, `[{"id":"1"},{"id":null}]`} {
		_, err := DecodePage([]byte(body), cols)
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("expected *DecodeError, got %v", err)
		}
		if de.Kind != MissingColumn || de.Column != "id" || de.Record != 1 {
			t.Errorf("expected missing_column id at record 1, got %v", de)
		}
	}
}

func TestDecodePageCoercion(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		raw  string
		want Cell
	}{
		{"text", TypeText, `"hello"`, TextCell("hello")},
		{"bool", TypeBool, `true`, BoolCell(true)},
		{"int8", TypeInt64, `9007199254740993`, IntCell(9007199254740993)},
		{"int4 exponent", TypeInt32, `1e3`, IntCell(1000)},
		{"int2 negative", TypeInt16, `-32768`, IntCell(-32768)},
		{"float8", TypeFloat64, `1.5`, FloatCell(1.5)},
		{"float8 from integer", TypeFloat64, `2`, FloatCell(2)},
		{"timestamptz", TypeTimestampTZ, `"2024-03-01T10:20:30Z"`, TimestampCell(time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC))},
		{"timestamptz offset", TypeTimestampTZ, `"2024-03-01T12:20:30+02:00"`, TimestampCell(time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC))},
		{"timestamp no zone", TypeTimestamp, `"2024-03-01T10:20:30.5"`, TimestampCell(time.Date(2024, 3, 1, 10, 20, 30, 5e8, time.UTC))},
		{"timestamp date", TypeTimestamp, `"2024-03-01"`, TimestampCell(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"jsonb scalar", TypeJSON, `42`, JSONCell([]byte(`42`))},
		{"jsonb compacts", TypeJSON, `{ "a" : [ 1, 2 ] }`, JSONCell([]byte(`{"a":[1,2]}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := []Column{{Name: "v", Type: tt.typ}}
			rows, err := DecodePage([]byte(`[{"v":`+tt.raw+`}]`), cols)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !rows[0][0].Equal(tt.want) {
				t.Errorf("expected %s %q, got %s %q", tt.want.Kind(), tt.want, rows[0][0].Kind(), rows[0][0])
			}
		})
	}
}

func TestDecodePageTypeErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		raw  string
		kind DecodeErrorKind
	}{
		{"number as text", TypeText, `1`, TypeMismatch},
		{"object as text", TypeText, `{"a":1}`, TypeMismatch},
		{"string as bool", TypeBool, `"true"`, TypeMismatch},
		{"fraction as int", TypeInt64, `1.5`, TypeMismatch},
		{"int2 overflow", TypeInt16, `40000`, TypeMismatch},
		{"string as float", TypeFloat64, `"1.5"`, TypeMismatch},
		{"number as timestamp", TypeTimestampTZ, `1700000000`, TypeMismatch},
		{"garbage timestamp", TypeTimestampTZ, `"yesterday"`, InvalidTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := []Column{{Name: "id", Type: TypeText}, {Name: "v", Type: tt.typ}}
			_, err := DecodePage([]byte(`[{"id":"a","v":`+tt.raw+`}]`), cols)
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if de.Kind != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, de.Kind)
			}
			if de.Column != "v" || de.Record != 0 {
				t.Errorf("expected column v record 0, got column %q record %d", de.Column, de.Record)
			}
		})
	}
}

func TestDecodePageNestedPaths(t *testing.T) {
	cols := []Column{
		{Name: "login", Type: TypeText, Source: "actor.login"},
		{Name: "first_commit", Type: TypeText, Source: "payload.commits.0.sha"},
		{Name: "missing", Type: TypeText, Source: "payload.commits.5.sha"},
		{Name: "dotted.key", Type: TypeInt64},
	}
	body := `[{"actor":{"login":"octocat"},"payload":{"commits":[{"sha":"abc"}]},"dotted.key":7}]`

	rows, err := DecodePage([]byte(body), cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Row{TextCell("octocat"), TextCell("abc"), NullCell(), IntCell(7)}
	if !rows[0].Equal(want) {
		t.Errorf("expected %v, got %v", want.Strings(), rows[0].Strings())
	}
}

func TestDecoderRecordsPath(t *testing.T) {
	d := Decoder{Columns: []Column{{Name: "id", Type: TypeInt64}}, RecordsPath: "data.items"}

	rows, err := d.Decode([]byte(`{"data":{"items":[{"id":1},{"id":2}]},"next_cursor":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	_, err = d.Decode([]byte(`{"data":{}}`))
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != MalformedBody {
		t.Errorf("expected malformed_body for missing records path, got %v", err)
	}
}

func TestDecodePageEmptyArray(t *testing.T) {
	rows, err := DecodePage([]byte(` [] `), eventColumns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
