package fdw

// HostVersionRequirement is the host version range this guest supports.
const HostVersionRequirement = "^0.1.0"

// Wrapper is the fixed contract a host drives. Calls for one Context are
// sequential; IterScan returns ok=false at end of data.
type Wrapper interface {
	HostVersionRequirement() string

	Init(c *Context) error

	BeginScan(c *Context) error
	IterScan(c *Context) (Row, bool, error)
	ReScan(c *Context) error
	EndScan(c *Context) error

	BeginModify(c *Context) error
	Insert(c *Context, row Row) error
	Update(c *Context, rowID Cell, row Row) error
	Delete(c *Context, rowID Cell) error
	EndModify(c *Context) error
}
