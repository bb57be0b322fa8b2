package runtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridkit/compute/engine"
	"github.com/gridkit/compute/errors"
	"github.com/gridkit/compute/linker"
	"github.com/gridkit/compute/shape"
)

// Config carries runtime construction options. Zero values mean
// defaults.
type Config struct {
	// Logger receives runtime, registry and script output. Nil disables
	// logging.
	Logger *zap.Logger

	// CacheDir enables wazero's on-disk compilation cache for every
	// compile that does not override it per call.
	CacheDir string

	// MemoryLimitPages caps each script's linear memory in 64KiB pages.
	// Zero means the wazero default of 4GiB.
	MemoryLimitPages uint32
}

// Runtime owns the engine, the host symbol tables, the shape arena and
// the ambient render state shared by every script it compiles.
type Runtime struct {
	engine   *engine.WazeroEngine
	linker   *linker.Linker
	registry *shape.Registry
	render   *RenderState
	logger   *zap.Logger
	start    time.Time

	clientMu sync.RWMutex
	clientFn func(cmd uint32, payload []byte) bool
}

// New creates a runtime with the default host symbol tables seeded.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages: cfg.MemoryLimitPages,
		CacheDir:         cfg.CacheDir,
	})
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		engine:   eng,
		linker:   linker.New(),
		registry: shape.NewRegistry(logger),
		render:   NewRenderState(),
		logger:   logger,
		start:    time.Now(),
	}
	r.seedSymbols()
	return r, nil
}

// Close releases engine resources. All scripts must be closed first.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Registry returns the shape arena scripts and buffers intern into.
func (r *Runtime) Registry() *shape.Registry { return r.registry }

// Linker returns the host symbol tables. Definitions added here are
// visible to scripts compiled afterwards.
func (r *Runtime) Linker() *linker.Linker { return r.linker }

// RenderState returns the ambient render state.
func (r *Runtime) RenderState() *RenderState { return r.render }

// SetClientHandler installs the sink for send_to_client messages. The
// handler's return value becomes the guest's result. Nil drops messages
// again.
func (r *Runtime) SetClientHandler(fn func(cmd uint32, payload []byte) bool) {
	r.clientMu.Lock()
	r.clientFn = fn
	r.clientMu.Unlock()
}

func (r *Runtime) deliverClient(cmd uint32, payload []byte) bool {
	r.clientMu.RLock()
	fn := r.clientFn
	r.clientMu.RUnlock()
	if fn == nil {
		r.logger.Debug("client message dropped, no handler installed",
			zap.Uint32("cmd", cmd), zap.Int("len", len(payload)))
		return false
	}
	return fn(cmd, payload)
}

// CompileScript compiles and links a script module. The returned script
// has run its initializer and applied its pragmas; any failure along
// the way discards the partially built script.
func (r *Runtime) CompileScript(ctx context.Context, name, cacheDir string, wasm []byte) (*Script, error) {
	s := &Script{
		name:   name,
		rt:     r,
		logger: r.logger.With(zap.String("script", name)),
	}
	s.env.threadable.Store(true)
	for i := range s.env.programs {
		s.env.programs[i] = programBinding{bound: true, id: DefaultProgramID}
	}

	compiled, err := r.engine.Compile(ctx, name, cacheDir, wasm, r.resolverFor(s))
	if err != nil {
		return nil, err
	}
	s.compiled = compiled
	if !compiled.Threadable() {
		s.env.threadable.Store(false)
	}

	if err := compiled.InvokeInit(ctx); err != nil {
		compiled.Close(ctx)
		return nil, errors.CompileFailed(name, err)
	}

	if err := s.applyPragmas(); err != nil {
		compiled.Close(ctx)
		return nil, err
	}

	s.env.slots = make([]slotBinding, compiled.VariableCount())
	return s, nil
}
