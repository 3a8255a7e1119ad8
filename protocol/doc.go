// Package protocol defines the wire format between a host and a wrapper
// guest running in a WASM sandbox.
//
// The host writes newline-delimited JSON to the guest's stdin: a [Command]
// for each contract call, and a [CallResponse] for each host function the
// guest invokes while handling it.
//
// The guest writes NUL-delimited frames to stderr, interleaved with its
// ordinary log output:
//
//	\x00FDW_READY\x00            guest is waiting for commands
//	\x00FDW:{CallRequest}\x00     guest calls a host function
//	\x00FDW_RESULT:{Result}\x00   guest finished a command
//
// Everything outside a frame is plain guest output.
package protocol
