package executor

import (
	"log/slog"
	"time"
)

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Module // Modules to precompile at startup
	memoryLimitPages uint32   // Max memory pages (each page = 64KB), 0 = default (4GB)
	logger           *slog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		diskCache:        false,
		memoryLimitPages: 0, // 0 means use wazero default (65536 pages = 4GB)
		logger:           slog.New(slog.DiscardHandler),
	}
}

// WithDiskCache enables persistent compilation cache for faster CLI startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/webfdw or XDG_CACHE_HOME/webfdw.
//
// Examples:
//
//	executor.New(registry, executor.WithDiskCache())            // default dir
//	executor.New(registry, executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given guest modules at Executor creation time.
// This moves the compilation cost to startup rather than the first session.
func WithPrecompile(mods ...Module) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = mods
	}
}

// WithMemoryLimit sets the maximum memory available to guest modules.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//   - WithMemoryLimit(4096) = 256MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithLogger sets the logger for compilation and session lifecycle events.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	timeout          time.Duration
	startTimeout     time.Duration
	hostVersion      string
	allowedHosts     []string
	httpMaxURLLength int
	httpMaxBodySize  int64
	httpTimeout      time.Duration
	env              map[string]string
	logger           *slog.Logger
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		timeout:      30 * time.Second,
		startTimeout: 30 * time.Second,
		hostVersion:  HostVersion,
		env:          make(map[string]string),
	}
}

// WithSessionTimeout bounds each contract call. Zero disables the bound.
func WithSessionTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithSessionStartTimeout bounds how long the guest may take to become ready.
func WithSessionStartTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.startTimeout = d
	}
}

// WithHostVersion overrides the version checked against the guest's
// requirement.
func WithHostVersion(v string) SessionOption {
	return func(c *sessionConfig) {
		c.hostVersion = v
	}
}

// WithSessionAllowedHosts enables the HTTP capability for the given hosts.
// Without it the guest has no network access.
func WithSessionAllowedHosts(hosts []string) SessionOption {
	return func(c *sessionConfig) {
		c.allowedHosts = hosts
	}
}

func WithSessionHTTPTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.httpTimeout = d
	}
}

func WithSessionHTTPMaxURLLength(size int) SessionOption {
	return func(c *sessionConfig) {
		c.httpMaxURLLength = size
	}
}

func WithSessionHTTPMaxBodySize(size int64) SessionOption {
	return func(c *sessionConfig) {
		c.httpMaxBodySize = size
	}
}

// WithSessionEnv sets an environment variable visible to the guest.
func WithSessionEnv(key, value string) SessionOption {
	return func(c *sessionConfig) {
		c.env[key] = value
	}
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		c.logger = l
	}
}
