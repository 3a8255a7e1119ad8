package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", s)
	}
	return level, nil
}

func newLogger(output io.Writer, level slog.Level, noColor bool) *slog.Logger {
	handler := tint.NewHandler(output, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05.000Z07:00",
		NoColor:    noColor,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}
