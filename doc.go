// Package webfdw exposes a paginated HTTP/JSON API as a queryable table
// through a wrapper that runs as a WebAssembly guest.
//
// # Overview
//
// The wrapper has zero default capabilities. It reaches the network only
// through the host's http_request function, which is limited to allowed
// hosts. The host drives the wrapper through a fixed contract: Init,
// BeginScan, IterScan, ReScan and EndScan for reads; the write calls
// always fail with fdw.ErrUnsupported. Pages are fetched lazily, one per
// exhausted buffer, and each record is projected onto the declared columns.
//
// # Basic Usage
//
//	exec, _ := executor.New(hostfunc.NewRegistry(), executor.WithDiskCache())
//	defer exec.Close()
//
//	mod, _ := executor.LoadModule("webfdw.wasm")
//	session, _ := exec.NewSession(mod,
//	    executor.WithSessionAllowedHosts([]string{"api.github.com"}))
//	defer session.Close()
//
//	def, _ := tabledef.Parse(`CREATE FOREIGN TABLE events (id text, type text)
//	    SERVER github OPTIONS (api_url 'https://api.github.com', object 'events')`)
//
//	c := fdw.NewContext(def.Table)
//	session.Init(c)
//	session.BeginScan(c)
//	for {
//	    row, ok, err := session.IterScan(c)
//	    if err != nil || !ok {
//	        break
//	    }
//	    fmt.Println(row.Strings())
//	}
//	session.EndScan(c)
//
// NewSession refuses a guest whose host version requirement this host does
// not satisfy, before Init runs.
//
// See the [fdw], [executor], [hostfunc], [tabledef] and [version] packages
// for detailed API documentation.
package webfdw
