package solbuild

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// compilationCache is the last successful compilation of a project and the
// latest source modification time observed when it was produced.
type compilationCache struct {
	filled    bool
	contracts []ContractRecord
	mtime     time.Time
}

// Project owns a configuration, its compiler backend and the in-memory cache of
// compiled contracts.
type Project struct {
	cfg     Config
	backend Backend
	fs      afero.Fs
	logger  *slog.Logger

	mu    sync.Mutex // Serializes the cache check-then-fill sequence
	cache compilationCache
}

// NewProject validates cfg and creates its backend. Backend construction errors,
// such as an unsupported compiler version, are returned here rather than on the
// first compilation.
func NewProject(ctx context.Context, cfg Config, opts ...Option) (*Project, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	backend := o.backend
	if backend == nil {
		var err error
		if backend, err = newBackend(ctx, cfg, o); err != nil {
			return nil, err
		}
	}

	return &Project{
		cfg:     cfg,
		backend: backend,
		fs:      o.fs,
		logger:  o.logger,
	}, nil
}

// Config returns the project configuration.
func (p *Project) Config() Config {
	return p.cfg
}

// Backend returns the compiler backend.
func (p *Project) Backend() Backend {
	return p.backend
}

// SourceFiles returns the source files the backend currently sees.
func (p *Project) SourceFiles() (PathSet, error) {
	return p.backend.SourceFiles()
}

// IsCacheStale reports whether the next CompiledContracts call will compile.
func (p *Project) IsCacheStale() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isCacheStale()
}

// isCacheStale must be called with p.mu held.
func (p *Project) isCacheStale() (bool, error) {
	if !p.cache.filled {
		return true, nil
	}

	sources, err := p.backend.SourceFiles()
	if err != nil {
		return false, fmt.Errorf("failed to list source files: %w", err)
	}
	latest, ok, err := LatestMtime(p.fs, p.cfg.ProjectDir, sources)
	if err != nil {
		return false, fmt.Errorf("failed to read source modification times: %w", err)
	}
	if !ok {
		return true, nil
	}
	return latest.After(p.cache.mtime), nil
}

// FillCache replaces the cached contracts and their source watermark.
func (p *Project) FillCache(contracts []ContractRecord, mtime time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fillCache(contracts, mtime)
}

func (p *Project) fillCache(contracts []ContractRecord, mtime time.Time) {
	p.cache = compilationCache{
		filled:    true,
		contracts: append([]ContractRecord(nil), contracts...),
		mtime:     mtime,
	}
}

// CacheWatermark returns the source modification time the cache was filled at.
// The boolean is false while the cache is empty.
func (p *Project) CacheWatermark() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.mtime, p.cache.filled
}

// CompiledContracts returns the compiled contracts of the project, compiling
// first if any source changed since the cache was filled. On failure the cache
// is left as it was.
func (p *Project) CompiledContracts(ctx context.Context) ([]ContractRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stale, err := p.isCacheStale()
	if err != nil {
		return nil, err
	}
	if !stale {
		p.logger.Debug("Using cached compiled contracts", "contracts", len(p.cache.contracts), "mtime", p.cache.mtime)
		return append([]ContractRecord(nil), p.cache.contracts...), nil
	}

	compilation, err := p.backend.CompiledContracts(ctx)
	if err != nil {
		return nil, err
	}

	// Measured over the files that were compiled, not the set seen by isCacheStale.
	mtime, _, err := LatestMtime(p.fs, p.cfg.ProjectDir, compilation.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to read source modification times: %w", err)
	}
	p.fillCache(compilation.Contracts, mtime)
	p.logger.Debug("Filled compiled contracts cache", "contracts", len(compilation.Contracts), "mtime", mtime)

	return append([]ContractRecord(nil), p.cache.contracts...), nil
}
