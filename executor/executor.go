package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/webfdw/hostfunc"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// HostVersion is the host contract version guests are checked against.
const HostVersion = "0.1.0"

// Executor manages the WASM runtime and compiled guest caching.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	registry *hostfunc.Registry
	logger   *slog.Logger
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor. Functions in registry are offered to every
// session in addition to the HTTP capability.
func New(registry *hostfunc.Registry, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	e := &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		registry: registry,
		logger:   cfg.logger,
	}

	for _, mod := range cfg.precompile {
		if _, err := e.getCompiled(ctx, mod); err != nil {
			e.Close()
			return nil, fmt.Errorf("precompile %s: %w", mod.Name(), err)
		}
	}

	return e, nil
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (e *Executor) getCompiled(ctx context.Context, mod Module) (wazero.CompiledModule, error) {
	name := mod.Name()

	e.mu.RLock()
	if compiled, ok := e.compiled[name]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrExecutorClosed
	}
	if compiled, ok := e.compiled[name]; ok {
		return compiled, nil
	}

	start := time.Now()
	compiled, err := e.runtime.CompileModule(ctx, mod.Binary())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	e.logger.Debug("module compiled", "module", name, "duration", time.Since(start))

	e.compiled[name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "webfdw")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "webfdw")
	}
	return filepath.Join(os.TempDir(), "webfdw-cache")
}
