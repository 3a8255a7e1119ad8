package fdw

import (
	"log/slog"
	"sync"
)

var _ Wrapper = (*Guest)(nil)

// Guest is the read-only HTTP/JSON wrapper. It keeps one Scanner per
// Context ID between BeginScan and EndScan.
type Guest struct {
	fetcher *Fetcher
	logger  *slog.Logger

	mu    sync.Mutex
	scans map[string]*Scanner
}

// GuestOption configures a Guest.
type GuestOption func(*Guest)

// WithLogger sets the logger used for scan lifecycle events.
func WithLogger(l *slog.Logger) GuestOption {
	return func(g *Guest) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuest returns a Guest that reaches the network only through host.
func NewGuest(host Requester, opts ...GuestOption) *Guest {
	g := &Guest{
		fetcher: NewFetcher(host),
		logger:  slog.New(slog.DiscardHandler),
		scans:   make(map[string]*Scanner),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guest) HostVersionRequirement() string {
	return HostVersionRequirement
}

// Init validates the table definition.
func (g *Guest) Init(c *Context) error {
	plan, err := PlanScan(c.Table)
	if err != nil {
		return err
	}
	g.logger.Info("wrapper initialized", "table", c.Table.Name, "url", plan.URL, "pagination", plan.Pagination.Mode)
	return nil
}

// BeginScan replaces any scan held for c with a fresh one.
func (g *Guest) BeginScan(c *Context) error {
	plan, err := PlanScan(c.Table)
	if err != nil {
		return err
	}
	s := NewScanner(plan, g.fetcher, g.logger.With("context", c.ID))
	s.Begin()

	g.mu.Lock()
	g.scans[c.ID] = s
	g.mu.Unlock()

	g.logger.Debug("scan started", "context", c.ID, "table", c.Table.Name)
	return nil
}

func (g *Guest) IterScan(c *Context) (Row, bool, error) {
	s := g.scanner(c)
	if s == nil {
		return nil, false, ErrScanNotActive
	}
	return s.Next(c.Context())
}

// ReScan restarts the scan from the first page without re-running Init.
func (g *Guest) ReScan(c *Context) error {
	if s := g.scanner(c); s != nil {
		s.Rescan()
		return nil
	}
	return g.BeginScan(c)
}

// EndScan drops the scan state for c. It is safe to call in any state.
func (g *Guest) EndScan(c *Context) error {
	g.mu.Lock()
	s, ok := g.scans[c.ID]
	delete(g.scans, c.ID)
	g.mu.Unlock()

	if ok {
		s.End()
		g.logger.Debug("scan ended", "context", c.ID, "fetches", s.Fetches())
	}
	return nil
}

func (g *Guest) BeginModify(c *Context) error {
	return &UnsupportedError{Op: "begin_modify"}
}

func (g *Guest) Insert(c *Context, row Row) error {
	return &UnsupportedError{Op: "insert"}
}

func (g *Guest) Update(c *Context, rowID Cell, row Row) error {
	return &UnsupportedError{Op: "update"}
}

func (g *Guest) Delete(c *Context, rowID Cell) error {
	return &UnsupportedError{Op: "delete"}
}

func (g *Guest) EndModify(c *Context) error {
	return &UnsupportedError{Op: "end_modify"}
}

func (g *Guest) scanner(c *Context) *Scanner {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scans[c.ID]
}
