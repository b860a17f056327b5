// Package sandbox runs untrusted JavaScript inside a QuickJS interpreter
// compiled to WebAssembly, executed under wazero. The guest is reachable
// only through byte streams: one invoke command goes in on stdin, and
// protocol frames come back interleaved with ordinary stderr output. The
// runtime is configured to die with its context, which is the supervisor's
// teardown lever for code that never yields.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	quickjswasi "github.com/paralin/go-quickjs-wasi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Engine owns the wazero runtime and the compiled QuickJS module, shared by
// every execution. Compilation happens once; instances are cheap.
type Engine struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache

	mu       sync.Mutex
	compiled wazero.CompiledModule
	closed   bool
}

// Option configures an Engine at creation time.
type Option func(*engineConfig)

type engineConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32
	precompile       bool
}

// WithDiskCache enables a persistent compilation cache so repeated CLI
// startups skip recompiling the interpreter. An explicit directory overrides
// the default under the user cache dir.
func WithDiskCache(dir ...string) Option {
	return func(c *engineConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps guest memory. Each page is 64KB; zero means the
// wazero default.
func WithMemoryLimit(pages uint32) Option {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
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

// WithPrecompile compiles the interpreter at engine creation instead of on
// the first launch.
func WithPrecompile() Option {
	return func(c *engineConfig) {
		c.precompile = true
	}
}

// NewEngine builds the runtime with WASI support and context-bound module
// teardown.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := engineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
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

	e := &Engine{runtime: rt, cache: cache}

	if cfg.precompile {
		if _, err := e.getCompiled(ctx); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// Launch starts one isolated interpreter running script and returns the
// handle for talking to it. The instance dies when ctx is cancelled, when
// Kill is called, or when the script runs to completion, whichever is first.
func (e *Engine) Launch(ctx context.Context, script string) (*Instance, error) {
	compiled, err := e.getCompiled(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	stdinR, stdinW := io.Pipe()
	split := newSplitter()

	inst := &Instance{
		split:  split,
		stdinR: stdinR,
		stdinW: stdinW,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	modConfig := wazero.NewModuleConfig().
		WithStdout(&inst.stdout).
		WithStderr(split).
		WithStdin(stdinR).
		WithArgs("qjs", "--std", "-e", script).
		WithName("")

	go func() {
		_, runErr := e.runtime.InstantiateModule(runCtx, compiled, modConfig)
		// qjs exits through proc_exit even on success; code zero is not an
		// error.
		if exitErr, ok := runErr.(*sys.ExitError); ok && exitErr.ExitCode() == 0 {
			runErr = nil
		}
		stdinW.Close()
		stdinR.Close()
		split.finish()
		inst.done <- runErr
		cancel()
	}()

	return inst, nil
}

func (e *Engine) getCompiled(ctx context.Context) (wazero.CompiledModule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("engine closed")
	}
	if e.compiled != nil {
		return e.compiled, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, quickjswasi.QuickJSWASM)
	if err != nil {
		return nil, fmt.Errorf("compile interpreter: %w", err)
	}
	e.compiled = compiled
	return compiled, nil
}

// Close releases the runtime and any compilation cache.
func (e *Engine) Close() error {
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
		return filepath.Join(dir, "stepvis")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "stepvis")
	}
	return filepath.Join(os.TempDir(), "stepvis-cache")
}
