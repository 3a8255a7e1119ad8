// Package tabledef parses foreign table declarations written as SQL DDL
// into fdw.Table values.
//
//	CREATE FOREIGN TABLE github_events (
//	    id     text NOT NULL,
//	    type   text,
//	    login  text OPTIONS (source 'actor.login'),
//	    actor  jsonb,
//	    created_at timestamp with time zone
//	) SERVER github OPTIONS (
//	    api_url 'https://api.github.com',
//	    object '/repos/acme/app/events',
//	    rowid_column 'id',
//	    header."X-GitHub-Api-Version" '2022-11-28'
//	);
//
// Column types accept the SQL spellings fdw.ParseType knows. NOT NULL marks
// a column required. The only column option is source, a dotted path into
// each record.
package tabledef

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/caffeineduck/webfdw/fdw"
)

// Definition is a parsed CREATE FOREIGN TABLE statement.
type Definition struct {
	Schema      string
	Server      string
	IfNotExists bool
	Table       fdw.Table
}

var (
	ddlLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `--[^\n]*`},
		{Name: "Keyword", Pattern: `(?i)\b(CREATE|FOREIGN|TABLE|IF|NOT|EXISTS|NULL|SERVER|OPTIONS)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_$]*`},
		{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
		{Name: "String", Pattern: `'(?:[^']|'')*'`},
		{Name: "Number", Pattern: `\d+`},
		{Name: "Punct", Pattern: `[(),.;]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	ddlParser = participle.MustBuild[astCreate](
		participle.Lexer(ddlLexer),
		participle.CaseInsensitive("Keyword"),
		participle.Elide("Whitespace", "Comment"),
		participle.UseLookahead(2),
	)
)

// Parse parses one CREATE FOREIGN TABLE statement.
func Parse(input string) (*Definition, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty table definition")
	}

	ast, err := ddlParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return ast.definition()
}

func (a *astCreate) definition() (*Definition, error) {
	def := &Definition{IfNotExists: a.IfNotExists}

	parts := a.Name.names()
	if len(parts) > 2 {
		return nil, fmt.Errorf("table name %q has too many parts", strings.Join(parts, "."))
	}
	def.Table.Name = parts[len(parts)-1]
	if len(parts) == 2 {
		def.Schema = parts[0]
	}
	def.Server = strings.Join(a.Server.names(), ".")

	if len(a.Columns) == 0 {
		return nil, fmt.Errorf("table %q declares no columns", def.Table.Name)
	}
	seen := make(map[string]bool, len(a.Columns))
	for _, ac := range a.Columns {
		col, err := ac.column()
		if err != nil {
			return nil, err
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("column %q declared twice", col.Name)
		}
		seen[col.Name] = true
		def.Table.Columns = append(def.Table.Columns, col)
	}

	opts, err := options(a.Options)
	if err != nil {
		return nil, err
	}
	def.Table.Options = opts
	return def, nil
}

func (ac *astColumn) column() (fdw.Column, error) {
	col := fdw.Column{Name: unquoteIdent(ac.Name), Required: ac.NotNull}

	typ, err := fdw.ParseType(strings.Join(ac.Type, " "))
	if err != nil {
		return col, fmt.Errorf("column %q: %w", col.Name, err)
	}
	col.Type = typ

	opts, err := options(ac.Options)
	if err != nil {
		return col, fmt.Errorf("column %q: %w", col.Name, err)
	}
	for k, v := range opts {
		switch k {
		case "source":
			col.Source = v
		default:
			return col, fmt.Errorf("column %q: unknown option %q", col.Name, k)
		}
	}
	return col, nil
}

func options(list []*astOption) (fdw.Options, error) {
	if len(list) == 0 {
		return nil, nil
	}
	opts := make(fdw.Options, len(list))
	for _, o := range list {
		key := strings.Join(o.Key.names(), ".")
		if _, dup := opts[key]; dup {
			return nil, fmt.Errorf("option %q set twice", key)
		}
		opts[key] = unquoteString(o.Value)
	}
	return opts, nil
}

func (n *astName) names() []string {
	out := make([]string, len(n.Parts))
	for i, p := range n.Parts {
		out[i] = unquoteIdent(p)
	}
	return out
}

// unquoteIdent strips double quotes and folds unquoted identifiers to
// lower case, as SQL does.
func unquoteIdent(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return strings.ToLower(s)
}

func unquoteString(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], `''`, `'`)
	}
	return s
}
