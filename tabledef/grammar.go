package tabledef

type astCreate struct {
	IfNotExists bool         `parser:"'CREATE' 'FOREIGN' 'TABLE' @('IF' 'NOT' 'EXISTS')?"`
	Name        *astName     `parser:"@@"`
	Columns     []*astColumn `parser:"'(' (@@ (',' @@)*)? ')'"`
	Server      *astName     `parser:"'SERVER' @@"`
	Options     []*astOption `parser:"('OPTIONS' '(' (@@ (',' @@)*)? ')')?"`
	Terminator  bool         `parser:"@';'?"`
}

// astName is a possibly schema-qualified identifier.
type astName struct {
	Parts []string `parser:"@(Ident | QuotedIdent) ('.' @(Ident | QuotedIdent))*"`
}

type astColumn struct {
	Name    string       `parser:"@(Ident | QuotedIdent)"`
	Type    []string     `parser:"@Ident+"`
	Mods    []string     `parser:"('(' @Number (',' @Number)* ')')?"`
	NotNull bool         `parser:"(@('NOT' 'NULL') | 'NULL')?"`
	Options []*astOption `parser:"('OPTIONS' '(' (@@ (',' @@)*)? ')')?"`
}

type astOption struct {
	Key   *astName `parser:"@@"`
	Value string   `parser:"@String"`
}
