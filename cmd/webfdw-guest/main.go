// Command webfdw-guest is the wrapper guest compiled for the sandbox:
//
//	GOOS=wasip1 GOARCH=wasm go build -o webfdw.wasm ./cmd/webfdw-guest
//
// It reads commands on stdin and writes protocol frames to stderr. Log
// lines share stderr and are surfaced by the host as guest output.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/guest"
)

func main() {
	level := slog.LevelWarn
	if v := os.Getenv("WEBFDW_GUEST_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid WEBFDW_GUEST_LOG_LEVEL %q\n", v)
			os.Exit(2)
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	factory := func(host fdw.Requester) fdw.Wrapper {
		return fdw.NewGuest(host, fdw.WithLogger(logger))
	}
	if err := guest.Serve(context.Background(), os.Stdin, os.Stderr, factory); err != nil {
		logger.Error("guest stopped", "err", err)
		os.Exit(1)
	}
}
