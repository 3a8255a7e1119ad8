package fdw

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Type is the declared type of a table column.
type Type uint8

const (
	TypeBool Type = iota + 1
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeText
	TypeTimestamp
	TypeTimestampTZ
	TypeJSON
)

var typeNames = map[Type]string{
	TypeBool:        "bool",
	TypeInt16:       "int2",
	TypeInt32:       "int4",
	TypeInt64:       "int8",
	TypeFloat32:     "float4",
	TypeFloat64:     "float8",
	TypeText:        "text",
	TypeTimestamp:   "timestamp",
	TypeTimestampTZ: "timestamptz",
	TypeJSON:        "jsonb",
}

var typeAliases = map[string]Type{
	"bool":                        TypeBool,
	"boolean":                     TypeBool,
	"int2":                        TypeInt16,
	"smallint":                    TypeInt16,
	"int":                         TypeInt32,
	"int4":                        TypeInt32,
	"integer":                     TypeInt32,
	"int8":                        TypeInt64,
	"bigint":                      TypeInt64,
	"float4":                      TypeFloat32,
	"real":                        TypeFloat32,
	"float":                       TypeFloat64,
	"float8":                      TypeFloat64,
	"double precision":            TypeFloat64,
	"numeric":                     TypeFloat64,
	"text":                        TypeText,
	"varchar":                     TypeText,
	"character varying":           TypeText,
	"timestamp":                   TypeTimestamp,
	"timestamp without time zone": TypeTimestamp,
	"timestamptz":                 TypeTimestampTZ,
	"timestamp with time zone":    TypeTimestampTZ,
	"json":                        TypeJSON,
	"jsonb":                       TypeJSON,
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// ParseType resolves a type name or one of its SQL aliases.
func ParseType(s string) (Type, error) {
	key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if t, ok := typeAliases[key]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unsupported column type %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("unknown column type %d", t)
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Column declares one output column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Required bool   `json:"required,omitempty"`
	// Source is a dotted path into the record. Empty means Name.
	Source string `json:"source,omitempty"`
}

// Path returns the record path the column reads from.
func (c Column) Path() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

// Options holds table-level string options.
type Options map[string]string

// Get returns the trimmed option value and whether it is set and non-empty.
func (o Options) Get(key string) (string, bool) {
	v, ok := o[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Default returns the option value or def when unset.
func (o Options) Default(key, def string) string {
	if v, ok := o.Get(key); ok {
		return v
	}
	return def
}

// Require returns the option value or an *OptionError when it is missing.
func (o Options) Require(key string) (string, error) {
	v, ok := o.Get(key)
	if !ok {
		return "", &OptionError{Option: key, Reason: "required"}
	}
	return v, nil
}

// Int parses an optional integer option. Unset options return def.
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &OptionError{Option: key, Reason: fmt.Sprintf("expected a non-negative integer, got %q", v)}
	}
	return n, nil
}

// Prefixed returns the options whose keys start with prefix, keyed by the
// remainder, in a stable order.
func (o Options) Prefixed(prefix string) ([]string, map[string]string) {
	out := make(map[string]string)
	var keys []string
	for k, v := range o {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out[rest] = v
			keys = append(keys, rest)
		}
	}
	sort.Strings(keys)
	return keys, out
}

// Table is a foreign table definition: ordered columns plus options.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Options Options  `json:"options,omitempty"`
}

// ColumnIndex returns the position of the named column.
func (t Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
