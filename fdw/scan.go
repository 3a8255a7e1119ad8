package fdw

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// DefaultUserAgent is sent when the table sets no user_agent option.
const DefaultUserAgent = "webfdw/0.1"

// ScanPlan is the validated, request-ready form of a table definition.
type ScanPlan struct {
	URL        string
	Headers    map[string]string
	Params     url.Values
	Pagination Pagination
	Columns    []Column
	RowID      int // index of the rowid column, -1 when unset
}

// PlanScan validates table options and resolves the request URL, headers,
// static parameters and pagination.
func PlanScan(t Table) (*ScanPlan, error) {
	if len(t.Columns) == 0 {
		return nil, &OptionError{Option: "columns", Reason: "table declares no columns"}
	}
	for i, col := range t.Columns {
		if col.Name == "" {
			return nil, &OptionError{Option: "columns", Reason: fmt.Sprintf("column %d has no name", i)}
		}
		if _, ok := typeNames[col.Type]; !ok {
			return nil, &OptionError{Option: "columns", Reason: fmt.Sprintf("column %q has no type", col.Name)}
		}
	}

	root, err := t.Options.Require("api_url")
	if err != nil {
		return nil, err
	}
	object, err := t.Options.Require("object")
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(root)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, &OptionError{Option: "api_url", Reason: fmt.Sprintf("expected an absolute http or https URL, got %q", root)}
	}
	base.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(object, "/")
	base.RawPath = ""

	pagination, err := PaginationFromOptions(t.Options)
	if err != nil {
		return nil, err
	}

	rowID := -1
	if name, ok := t.Options.Get("rowid_column"); ok {
		idx, found := t.ColumnIndex(name)
		if !found {
			return nil, &OptionError{Option: "rowid_column", Reason: fmt.Sprintf("no column named %q", name)}
		}
		rowID = idx
	}

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": t.Options.Default("user_agent", DefaultUserAgent),
	}
	if key, ok := t.Options.Get("api_key"); ok {
		headers["Authorization"] = "Bearer " + key
	}
	names, extra := t.Options.Prefixed("header.")
	for _, name := range names {
		headers[name] = extra[name]
	}

	params := make(url.Values)
	names, static := t.Options.Prefixed("param.")
	for _, name := range names {
		params.Set(name, static[name])
	}

	return &ScanPlan{
		URL:        base.String(),
		Headers:    headers,
		Params:     params,
		Pagination: pagination,
		Columns:    t.Columns,
		RowID:      rowID,
	}, nil
}

// State is a scan lifecycle state.
type State uint8

const (
	StateUnstarted State = iota
	StateActive
	StateExhausted
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Scanner is the state of one scan session: the cursor, the rows decoded
// but not yet returned, and the lifecycle state. It is not safe for
// concurrent use.
type Scanner struct {
	plan    *ScanPlan
	fetcher *Fetcher
	decoder *Decoder
	cursor  *Cursor
	logger  *slog.Logger

	state   State
	buf     []Row
	prev    *PageResponse
	err     error
	fetches int
}

// NewScanner returns an unstarted scanner for plan.
func NewScanner(plan *ScanPlan, fetcher *Fetcher, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		plan:    plan,
		fetcher: fetcher,
		decoder: &Decoder{Columns: plan.Columns, RecordsPath: plan.Pagination.RecordsPath},
		cursor:  NewCursor(plan.Pagination, plan.Params),
		logger:  logger,
	}
}

func (s *Scanner) State() State { return s.state }

// Fetches returns the number of page requests issued since the scanner was
// created.
func (s *Scanner) Fetches() int { return s.fetches }

// Begin starts a fresh pass from the first page.
func (s *Scanner) Begin() {
	s.reset()
	s.state = StateActive
}

// Rescan restarts from the first page from any state.
func (s *Scanner) Rescan() {
	s.reset()
	s.state = StateActive
}

// End releases buffered rows. It is safe from any state.
func (s *Scanner) End() {
	s.reset()
	s.state = StateEnded
}

func (s *Scanner) reset() {
	s.cursor.Reset()
	s.buf = nil
	s.prev = nil
	s.err = nil
}

// Next returns the next row. ok is false once the remote source is
// exhausted; further calls keep returning false without fetching. After a
// fetch or decode failure the same error is returned until Rescan.
func (s *Scanner) Next(ctx context.Context) (row Row, ok bool, err error) {
	switch s.state {
	case StateUnstarted, StateEnded:
		return nil, false, ErrScanNotActive
	case StateExhausted:
		return nil, false, nil
	}
	if s.err != nil {
		return nil, false, s.err
	}

	for len(s.buf) == 0 {
		d := s.cursor.Next(s.prev)
		if d.Action == Exhausted {
			s.state = StateExhausted
			s.prev = nil
			s.logger.Debug("scan exhausted", "fetches", s.fetches)
			return nil, false, nil
		}

		target := s.plan.URL
		if d.URL != "" {
			target = d.URL
		}

		s.fetches++
		page, err := s.fetcher.Fetch(ctx, target, d.Params, s.plan.Headers)
		if err != nil {
			s.err = err
			return nil, false, err
		}

		rows, err := s.decoder.Decode(page.Body)
		if err != nil {
			s.err = err
			return nil, false, err
		}
		s.logger.Debug("page fetched", "action", d.Action.String(), "url", page.URL, "rows", len(rows))

		s.prev = page
		s.buf = rows
	}

	row = s.buf[0]
	s.buf[0] = nil
	s.buf = s.buf[1:]
	return row, true, nil
}
