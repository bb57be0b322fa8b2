package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/gridkit/compute/errors"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per script in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CacheDir is the default on-disk compilation cache directory, used when
	// Compile is called with an empty cacheDir. Empty disables caching.
	CacheDir string
}

// WazeroEngine compiles script modules with wazero. Every script gets its
// own wazero runtime so host-module names never collide across scripts;
// on-disk compilation caches are shared per distinct directory.
type WazeroEngine struct {
	cfg      Config
	cachesMu sync.Mutex
	caches   map[string]wazero.CompilationCache
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(_ context.Context, cfg *Config) (*WazeroEngine, error) {
	e := &WazeroEngine{
		caches: make(map[string]wazero.CompilationCache),
	}
	if cfg != nil {
		e.cfg = *cfg
	}
	return e, nil
}

// runtimeConfig assembles the per-script wazero configuration.
func (e *WazeroEngine) runtimeConfig(cacheDir string) (wazero.RuntimeConfig, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if e.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}

	if cacheDir == "" {
		cacheDir = e.cfg.CacheDir
	}
	if cacheDir != "" {
		cache, err := e.cacheFor(cacheDir)
		if err != nil {
			return nil, err
		}
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	return runtimeCfg, nil
}

// cacheFor returns the compilation cache for a directory, creating it on
// first use. Caches are shared across all scripts compiled with the same
// directory.
func (e *WazeroEngine) cacheFor(dir string) (wazero.CompilationCache, error) {
	e.cachesMu.Lock()
	defer e.cachesMu.Unlock()

	if cache, ok := e.caches[dir]; ok {
		return cache, nil
	}

	cache, err := wazero.NewCompilationCacheWithDir(dir)
	if err != nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindCompileFailure).
			Cause(err).
			Detail("create compilation cache at %q", dir).
			Build()
	}
	e.caches[dir] = cache
	return cache, nil
}

// Close releases the engine's shared compilation caches.
// All compiled scripts must be closed before calling this.
func (e *WazeroEngine) Close(ctx context.Context) error {
	e.cachesMu.Lock()
	defer e.cachesMu.Unlock()

	var firstErr error
	for dir, cache := range e.caches {
		if err := cache.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.caches, dir)
	}
	return firstErr
}
