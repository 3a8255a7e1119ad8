package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/caffeineduck/webfdw/executor"
)

var rootCmd = &cobra.Command{
	Use:   "webfdw",
	Short: "Query paginated HTTP/JSON APIs as tables through a WebAssembly wrapper",
	Long: `webfdw - Expose a paginated HTTP/JSON API as a table.

The wrapper runs as a WebAssembly guest with no network access of its own:
every request goes through a host capability limited to allowed hosts.
Tables are declared with CREATE FOREIGN TABLE statements, passed inline or
as a .sql file.

Every flag can also be set in a config file (--config) or through
WEBFDW_* environment variables, e.g. WEBFDW_ALLOW_HOST.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// conf layers flags over environment over config file.
var conf = viper.New()

// logger is set up by loadConfig before any command runs.
var logger = slog.New(slog.DiscardHandler)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (yaml, toml or json)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.Bool("no-color", false, "Disable colored output")

	flags.StringP("table", "t", "", "CREATE FOREIGN TABLE statement or path to a .sql file")
	flags.StringToString("option", nil, "Override a table option key=value (repeatable)")
	flags.StringP("module", "m", "", "Path to the wrapper guest (.wasm)")
	flags.Bool("native", false, "Run the wrapper in-process instead of the sandbox")
	flags.StringSlice("allow-host", nil, "Allow HTTP to host (repeatable, default: the api_url host)")

	flags.Duration("timeout", 30*time.Second, "Per-call timeout")
	flags.Bool("no-cache", false, "Disable compilation cache")
	flags.String("memory", "256mb", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	flags.Int("http-max-url", 8192, "Max HTTP URL length")
	flags.Int64("http-max-body", 10*1024*1024, "Max HTTP response body size")
	flags.Duration("http-timeout", 30*time.Second, "HTTP request timeout")

	for key, flag := range map[string]string{
		"log_level":     "log-level",
		"no_color":      "no-color",
		"table":         "table",
		"options":       "option",
		"module":        "module",
		"native":        "native",
		"allow_host":    "allow-host",
		"timeout":       "timeout",
		"no_cache":      "no-cache",
		"memory":        "memory",
		"http_max_url":  "http-max-url",
		"http_max_body": "http-max-body",
		"http_timeout":  "http-timeout",
	} {
		if err := conf.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	conf.SetEnvPrefix("WEBFDW")
	conf.AutomaticEnv()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		conf.SetConfigFile(path)
		if err := conf.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := parseLogLevel(conf.GetString("log_level"))
	if err != nil {
		return err
	}
	logger = newLogger(cmd.ErrOrStderr(), level, conf.GetBool("no_color") || os.Getenv("NO_COLOR") != "")
	return nil
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "1mb":
		return executor.MemoryLimit1MB, nil
	case "16mb":
		return executor.MemoryLimit16MB, nil
	case "64mb":
		return executor.MemoryLimit64MB, nil
	case "256mb":
		return executor.MemoryLimit256MB, nil
	case "1gb":
		return executor.MemoryLimit1GB, nil
	default:
		return 0, fmt.Errorf("invalid memory limit %q (expected 1mb, 16mb, 64mb, 256mb or 1gb)", s)
	}
}
