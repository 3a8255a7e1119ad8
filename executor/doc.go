// Package executor hosts wrapper guests compiled to WebAssembly.
//
// # Overview
//
// The executor compiles and caches guest modules and runs each one as a
// [Session]. A Session implements fdw.Wrapper, so a query engine drives a
// sandboxed guest exactly like an in-process wrapper.
//
// # Basic Usage
//
//	exec, err := executor.New(hostfunc.NewRegistry())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	mod, err := executor.LoadModule("webfdw-guest.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := exec.NewSession(mod,
//	    executor.WithSessionAllowedHosts([]string{"api.github.com"}),
//	)
//	if err != nil {
//	    log.Fatal(err) // includes host version mismatches
//	}
//	defer session.Close()
//
//	c := fdw.NewContext(table)
//	session.Init(c)
//	session.BeginScan(c)
//
// # Capabilities
//
// A guest has no network, filesystem or clock access beyond wall time.
// Outbound HTTP is enabled per session for an explicit host list and is
// served by the hostfunc package.
//
// # Version Gate
//
// Before a session is returned, the guest is asked for its host version
// requirement and the host's [HostVersion] is checked against it.
package executor
