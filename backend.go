package solbuild

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
)

// Compilation is the output of one backend run.
type Compilation struct {
	Sources   PathSet          // Files that were compiled
	Contracts []ContractRecord // One record per compiled contract
}

// Backend compiles the sources of a project.
type Backend interface {
	// SourceFiles returns the files a compilation would include right now.
	SourceFiles() (PathSet, error)

	// CompiledContracts compiles the project sources.
	CompiledContracts(ctx context.Context) (Compilation, error)
}

type backendFactory func(ctx context.Context, cfg Config, o *options) (Backend, error)

var backendFactories = map[string]backendFactory{
	BackendStandardJSON: func(ctx context.Context, cfg Config, o *options) (Backend, error) {
		return newStandardJSONBackend(ctx, cfg, o)
	},
}

// NewBackend creates the backend named by cfg.Backend.
func NewBackend(ctx context.Context, cfg Config, opts ...Option) (Backend, error) {
	return newBackend(ctx, cfg, newOptions(opts))
}

func newBackend(ctx context.Context, cfg Config, o *options) (Backend, error) {
	factory, ok := backendFactories[cfg.Backend]
	if !ok {
		return nil, newConfigurationError(fmt.Errorf("unknown compiler backend %q", cfg.Backend))
	}
	return factory(ctx, cfg, o)
}

// StandardJSONBackend compiles through solc's standard-JSON interface.
type StandardJSONBackend struct {
	cfg      Config
	fs       afero.Fs
	compiler Compiler
	version  string
	store    *ArtifactStore
	logger   *slog.Logger
}

// NewStandardJSONBackend creates the backend. It queries the compiler version up
// front and fails with a *ToolchainVersionError if solc is too old.
func NewStandardJSONBackend(ctx context.Context, cfg Config, opts ...Option) (*StandardJSONBackend, error) {
	return newStandardJSONBackend(ctx, cfg, newOptions(opts))
}

func newStandardJSONBackend(ctx context.Context, cfg Config, o *options) (*StandardJSONBackend, error) {
	compiler := o.compiler
	if compiler == nil {
		compiler = &Solc{Path: cfg.SolcPath, Dir: cfg.ProjectDir}
	}

	version, err := CheckCompilerVersion(ctx, compiler, MinimumSolcVersion)
	if err != nil {
		return nil, err
	}

	return &StandardJSONBackend{
		cfg:      cfg,
		fs:       o.fs,
		compiler: compiler,
		version:  version,
		store:    o.store,
		logger:   o.logger.With("backend", BackendStandardJSON),
	}, nil
}

// CompilerVersion returns the solc version detected at construction.
func (b *StandardJSONBackend) CompilerVersion() string {
	return b.version
}

// SourceFiles implements Backend.
func (b *StandardJSONBackend) SourceFiles() (PathSet, error) {
	return CollectSourceFiles(b.fs, b.cfg.ProjectDir, b.cfg.SourceDirs, b.cfg.SourceGlob)
}

// CompiledContracts implements Backend.
func (b *StandardJSONBackend) CompiledContracts(ctx context.Context) (Compilation, error) {
	if len(b.cfg.SourceDirs) == 0 {
		b.logger.Debug("No source directories configured")
		return Compilation{}, nil
	}

	sources, err := b.SourceFiles()
	if err != nil {
		return Compilation{}, err
	}
	if sources.Len() == 0 {
		b.logger.Debug("No source files found", "dirs", b.cfg.SourceDirs, "glob", b.cfg.SourceGlob)
		return Compilation{Sources: sources}, nil
	}

	section, err := newSourcesSection(b.fs, b.cfg.ProjectDir, sources)
	if err != nil {
		return Compilation{}, err
	}
	input, err := BuildStandardInput(b.cfg.StandardInput, section)
	if err != nil {
		return Compilation{}, err
	}
	b.logger.Debug("Input description JSON settings", "settings", input["settings"])

	var key Key
	if b.store != nil {
		encoded, err := json.Marshal(input)
		if err != nil {
			return Compilation{}, newConfigurationError(fmt.Errorf("encode standard JSON input: %w", err))
		}
		key = b.store.Key().Bytes("standard-json", encoded).Version(b.version).Build()

		artifact, err := b.store.Get(key)
		switch {
		case err == nil:
			b.logger.Debug("Reusing stored compilation", "key", artifact.KeyHash(), "age", artifact.Age())
			return Compilation{Sources: sources, Contracts: artifact.Compilation().Contracts}, nil
		case !errors.Is(err, ErrCacheMiss):
			b.logger.Warn("Artifact store lookup failed", "err", err)
		}
	}

	var records []ContractRecord
	result, err := CompileStandard(ctx, b.compiler, input)
	switch {
	case errors.Is(err, ErrNoContracts):
		b.logger.Debug("Compiler found no contracts", "sources", sources.Len())
	case err != nil:
		return Compilation{}, err
	default:
		if records, err = NormalizeCompilationResult(result); err != nil {
			return Compilation{}, &CompilerError{Err: fmt.Errorf("unexpected compiler output: %w", err)}
		}
	}

	compilation := Compilation{Sources: sources, Contracts: records}
	if b.store != nil {
		if err := b.store.Put(key, compilation); err != nil {
			b.logger.Warn("Failed to store compilation", "err", err)
		}
	}
	b.logger.Info("Compiled contracts", "sources", sources.Len(), "contracts", len(records))
	return compilation, nil
}
