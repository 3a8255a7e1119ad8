// Package hostfunc provides the host functions a sandboxed wrapper may call.
//
// A guest module has no network access of its own. Every request it makes
// is a call into a [Registry] on the host, which decides what is allowed.
//
// # Registry
//
// The [Registry] maps function names to Go implementations:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
//	    return time.Now().Unix(), nil
//	})
//
// # HTTP
//
// [HTTP] is the outbound request capability, registered as [HTTPRequest]:
//
//	http := hostfunc.NewHTTP(hostfunc.HTTPConfig{
//	    AllowedHosts: []string{"api.github.com"},
//	})
//	registry.Register(hostfunc.HTTPRequest, http.Request)
//
// Requests are limited to allow-listed hosts and, by default, to GET and
// HEAD. URL length, response size and request time are all bounded. A
// non-2xx status is a normal [HTTPResponse]; only transport failures and
// policy violations are errors.
package hostfunc
