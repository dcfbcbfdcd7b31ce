package solbuild

import (
	"log/slog"

	"github.com/spf13/afero"
)

// WithStoreFs sets the filesystem the artifact store lives on.
//
// Example:
//
//	store, err := solbuild.OpenArtifactStore("build/cache", solbuild.WithStoreFs(afero.NewMemMapFs()))
func WithStoreFs(fs afero.Fs) StoreOption {
	return func(s *ArtifactStore) {
		s.fs = fs
	}
}

// WithHashFunc sets the hash function for store keys and object checksums.
// The default is xxHash64.
//
// Note: Changing the hash function invalidates existing entries.
func WithHashFunc(hashFunc HashFunc) StoreOption {
	return func(s *ArtifactStore) {
		s.hashFunc = hashFunc
	}
}

// WithNowFunc sets the time function of the store.
// This is primarily useful for testing with deterministic timestamps.
func WithNowFunc(nowFunc NowFunc) StoreOption {
	return func(s *ArtifactStore) {
		s.nowFunc = nowFunc
	}
}

// WithStoreLogger sets the logger of the store.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *ArtifactStore) {
		s.logger = logger
	}
}

// options holds the collaborators shared by projects and backends.
type options struct {
	fs       afero.Fs
	logger   *slog.Logger
	compiler Compiler
	store    *ArtifactStore
	backend  Backend
}

// Option configures a Project or a Backend.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		fs:     afero.NewOsFs(),
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFs sets the filesystem sources are read from.
// This is primarily useful for testing with in-memory filesystems.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithLogger sets the structured logger. Logging is discarded by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCompiler replaces the solc executable named in the configuration.
func WithCompiler(c Compiler) Option {
	return func(o *options) {
		o.compiler = c
	}
}

// WithArtifactStore makes the backend reuse results from store when the exact
// same input was compiled before.
func WithArtifactStore(store *ArtifactStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithBackend makes a Project use b instead of the backend named in the configuration.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
