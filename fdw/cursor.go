package fdw

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Action is the kind of a cursor Decision.
type Action uint8

const (
	FetchFirstPage Action = iota + 1
	FetchNextPage
	Exhausted
)

func (a Action) String() string {
	switch a {
	case FetchFirstPage:
		return "fetch_first_page"
	case FetchNextPage:
		return "fetch_next_page"
	case Exhausted:
		return "exhausted"
	default:
		return "action(" + strconv.Itoa(int(a)) + ")"
	}
}

// Decision tells the scanner what to fetch next. A non-empty URL replaces
// the table's base URL; Params are merged into the query string.
type Decision struct {
	Action Action
	URL    string
	Params url.Values
}

// Pagination modes.
const (
	PaginateLink   = "link"
	PaginateHeader = "header"
	PaginateBody   = "body"
	PaginatePage   = "page"
	PaginateNone   = "none"
)

// Pagination configures how a Cursor finds the next page.
type Pagination struct {
	Mode          string
	CursorHeader  string
	CursorParam   string
	CursorPath    string
	RecordsPath   string
	PageParam     string
	PageSizeParam string
	PageSize      int
}

// PaginationFromOptions reads the pagination options of a table.
func PaginationFromOptions(opts Options) (Pagination, error) {
	p := Pagination{
		Mode:          strings.ToLower(opts.Default("pagination", PaginateLink)),
		CursorHeader:  opts.Default("cursor_header", "X-Next-Cursor"),
		CursorParam:   opts.Default("cursor_param", "cursor"),
		CursorPath:    opts.Default("cursor_path", "next_cursor"),
		RecordsPath:   opts.Default("records_path", ""),
		PageParam:     opts.Default("page_param", "page"),
		PageSizeParam: opts.Default("page_size_param", "per_page"),
	}

	switch p.Mode {
	case PaginateLink, PaginateHeader, PaginateBody, PaginatePage, PaginateNone:
	default:
		return Pagination{}, &OptionError{
			Option: "pagination",
			Reason: fmt.Sprintf("unknown mode %q (expected link, header, body, page, or none)", p.Mode),
		}
	}

	size, err := opts.Int("page_size", 0)
	if err != nil {
		return Pagination{}, err
	}
	p.PageSize = size
	return p, nil
}

// Cursor derives the next request from the previous response. It never
// yields FetchFirstPage twice without a Reset.
type Cursor struct {
	cfg     Pagination
	base    url.Values
	started bool
	done    bool
	page    int
}

// NewCursor returns a cursor positioned before the first page. base holds
// static query parameters sent with every page.
func NewCursor(cfg Pagination, base url.Values) *Cursor {
	return &Cursor{cfg: cfg, base: base}
}

// Reset rewinds the cursor to before the first page.
func (c *Cursor) Reset() {
	c.started = false
	c.done = false
	c.page = 0
}

// Next decides what to fetch after prev. A missing or malformed
// continuation signal is exhaustion, not an error.
func (c *Cursor) Next(prev *PageResponse) Decision {
	if c.done {
		return Decision{Action: Exhausted}
	}
	if !c.started {
		c.started = true
		c.page = 1
		params := c.params()
		if c.cfg.Mode == PaginatePage {
			params.Set(c.cfg.PageParam, "1")
		}
		return Decision{Action: FetchFirstPage, Params: params}
	}
	if prev == nil {
		c.done = true
		return Decision{Action: Exhausted}
	}

	d, ok := c.follow(prev)
	if !ok {
		c.done = true
		return Decision{Action: Exhausted}
	}
	d.Action = FetchNextPage
	return d
}

func (c *Cursor) follow(prev *PageResponse) (Decision, bool) {
	switch c.cfg.Mode {
	case PaginateLink:
		next, ok := nextLink(prev.Header.Values("Link"), prev.URL)
		if !ok {
			return Decision{}, false
		}
		return Decision{URL: next}, true

	case PaginateHeader:
		token := strings.TrimSpace(prev.Header.Get(c.cfg.CursorHeader))
		if token == "" {
			return Decision{}, false
		}
		params := c.params()
		params.Set(c.cfg.CursorParam, token)
		return Decision{Params: params}, true

	case PaginateBody:
		token, ok := bodyToken(prev.Body, c.cfg.CursorPath)
		if !ok {
			return Decision{}, false
		}
		params := c.params()
		params.Set(c.cfg.CursorParam, token)
		return Decision{Params: params}, true

	case PaginatePage:
		records, err := extractRecords(prev.Body, c.cfg.RecordsPath)
		if err != nil || len(records) == 0 {
			return Decision{}, false
		}
		if c.cfg.PageSize > 0 && len(records) < c.cfg.PageSize {
			return Decision{}, false
		}
		c.page++
		params := c.params()
		params.Set(c.cfg.PageParam, strconv.Itoa(c.page))
		return Decision{Params: params}, true
	}
	return Decision{}, false
}

func (c *Cursor) params() url.Values {
	params := make(url.Values, len(c.base)+1)
	for k, vs := range c.base {
		params[k] = append([]string(nil), vs...)
	}
	if c.cfg.PageSize > 0 && c.cfg.PageSizeParam != "" {
		params.Set(c.cfg.PageSizeParam, strconv.Itoa(c.cfg.PageSize))
	}
	return params
}

// nextLink finds the rel="next" target in RFC 8288 Link header values and
// resolves it against the request URL.
func nextLink(values []string, requestURL string) (string, bool) {
	for _, value := range values {
		for _, link := range splitLinks(value) {
			if hasRel(link.params, "next") {
				return resolveLink(requestURL, link.target)
			}
		}
	}
	return "", false
}

type linkValue struct {
	target string
	params string
}

// splitLinks tokenizes one Link header value. Commas inside a <target> or
// a quoted parameter do not separate link-values.
func splitLinks(value string) []linkValue {
	var links []linkValue
	rest := value
	for {
		rest = strings.TrimLeft(rest, " \t,")
		if rest == "" {
			return links
		}
		if rest[0] != '<' {
			i := topLevelComma(rest)
			if i < 0 {
				return links
			}
			rest = rest[i+1:]
			continue
		}
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return links
		}
		target := rest[1:end]
		rest = rest[end+1:]

		params := rest
		if i := topLevelComma(rest); i >= 0 {
			params, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}
		links = append(links, linkValue{target: target, params: params})
	}
}

func topLevelComma(s string) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return i
			}
		}
	}
	return -1
}

func hasRel(params, want string) bool {
	for _, p := range strings.Split(params, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
			continue
		}
		for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
			if strings.EqualFold(rel, want) {
				return true
			}
		}
	}
	return false
}

func resolveLink(base, target string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil || (ref.Scheme == "" && ref.Path == "" && ref.RawQuery == "") {
		return "", false
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", false
		}
		return ref.String(), true
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", false
	}
	return b.ResolveReference(ref).String(), true
}

// bodyToken reads a non-empty string or number token from the body.
func bodyToken(body []byte, path string) (string, bool) {
	raw, ok := lookupPath(body, path)
	if !ok {
		return "", false
	}
	switch jsonKind(raw) {
	case "string":
		var s string
		if json.Unmarshal(raw, &s) != nil || strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	case "number":
		return strings.TrimSpace(string(raw)), true
	}
	return "", false
}
