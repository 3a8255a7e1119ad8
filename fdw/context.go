package fdw

import (
	"context"

	"github.com/google/uuid"
)

// Context is the per-session handle the host passes into every contract
// call. Guest state is keyed by ID.
type Context struct {
	ID    string `json:"id"`
	Table Table  `json:"table"`

	ctx context.Context
}

// NewContext returns a Context for table with a fresh random ID.
func NewContext(table Table) *Context {
	return &Context{ID: uuid.NewString(), Table: table}
}

// Context returns the Go context bounding blocking work in the current call.
func (c *Context) Context() context.Context {
	if c.ctx != nil {
		return c.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of c with its Go context changed to
// ctx. The copy keeps the same ID.
func (c *Context) WithContext(ctx context.Context) *Context {
	if ctx == nil {
		panic("nil context")
	}
	c2 := *c
	c2.ctx = ctx
	return &c2
}
