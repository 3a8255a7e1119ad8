// Package fdw implements a foreign data wrapper that exposes a remote,
// paginated HTTP/JSON API as a read-only table.
//
// # Overview
//
// The wrapper runs as a sandboxed guest. It has no socket or file access of
// its own: every request goes through a [Requester] supplied by the host.
// The host drives the scan through the [Wrapper] contract:
//
//	g := fdw.NewGuest(requester)
//	c := fdw.NewContext(table)
//
//	g.Init(c)
//	g.BeginScan(c)
//	for {
//	    row, ok, err := g.IterScan(c)
//	    if err != nil || !ok {
//	        break
//	    }
//	    // use row
//	}
//	g.EndScan(c)
//
// # Tables
//
// A [Table] declares ordered, typed columns and string options. The
// required options are api_url and object; the request URL is the object
// path joined onto the API root. Each column reads the record field of the
// same name, or the dotted path given by its Source.
//
// # Pagination
//
// A [Cursor] derives the next request from the previous response. Missing
// or malformed continuation signals end the scan instead of failing it.
package fdw
