package solbuild

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// contractsObject is the file name of the serialized records inside an object directory.
const contractsObject = "contracts.json"

// ArtifactStore is a persistent, content-addressed store of compilation results.
// Entries are keyed by a hash of the exact compiler input, so a result can be
// reused whenever the same input is compiled again, even by another process.
//
// Layout:
//
//	<root>/
//	├── manifests/<first 2 chars>/<hash>.json
//	└── objects/<first 2 chars>/<hash>/contracts.json
type ArtifactStore struct {
	root     string
	hashFunc HashFunc
	nowFunc  NowFunc
	mu       sync.RWMutex
	fs       afero.Fs
	logger   *slog.Logger
}

// HashFunc defines a function that creates a new hash.Hash instance.
type HashFunc func() hash.Hash

// NowFunc defines a function that returns the current time.
type NowFunc func() time.Time

// StoreOption configures an ArtifactStore.
type StoreOption func(*ArtifactStore)

// OpenArtifactStore opens the store rooted at root, creating its directories.
func OpenArtifactStore(root string, options ...StoreOption) (*ArtifactStore, error) {
	store := &ArtifactStore{
		root:     root,
		fs:       afero.NewOsFs(),
		nowFunc:  time.Now,
		hashFunc: defaultHashFunc,
		logger:   discardLogger(),
	}

	for _, option := range options {
		option(store)
	}

	if err := store.fs.MkdirAll(store.manifestDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create manifests directory: %w", err)
	}
	if err := store.fs.MkdirAll(store.objectsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create objects directory: %w", err)
	}

	return store, nil
}

// OpenTempArtifactStore creates an in-memory store for testing.
func OpenTempArtifactStore() *ArtifactStore {
	store, err := OpenArtifactStore("", WithStoreFs(afero.NewMemMapFs()))
	if err != nil {
		panic(fmt.Sprintf("failed to create temp artifact store: %v", err))
	}
	return store
}

// Key creates a new KeyBuilder.
func (s *ArtifactStore) Key() *KeyBuilder {
	return &KeyBuilder{store: s}
}

// Get returns the stored compilation for key, or ErrCacheMiss.
func (s *ArtifactStore) Get(key Key) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyHash, err := key.computeHash()
	if err != nil {
		return nil, fmt.Errorf("failed to compute key hash: %w", err)
	}

	exists, err := afero.Exists(s.fs, s.manifestPath(keyHash))
	if err != nil {
		return nil, fmt.Errorf("failed to check manifest: %w", err)
	}
	if !exists {
		return nil, ErrCacheMiss
	}

	m, err := s.loadManifest(keyHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	data, err := afero.ReadFile(s.fs, filepath.Join(s.objectPath(keyHash), contractsObject))
	if err != nil {
		return nil, fmt.Errorf("failed to read contracts object: %w", err)
	}
	outputHash, err := s.computeOutputHash(data)
	if err != nil {
		return nil, err
	}
	if outputHash != m.OutputHash {
		return nil, fmt.Errorf("contracts object %s is corrupted: hash %s, manifest says %s", keyHash, outputHash, m.OutputHash)
	}

	var contracts []ContractRecord
	if err := json.Unmarshal(data, &contracts); err != nil {
		return nil, fmt.Errorf("failed to decode contracts object: %w", err)
	}

	return &Artifact{
		keyHash:    keyHash,
		store:      s,
		sources:    NewPathSet(m.Sources...),
		contracts:  contracts,
		createdAt:  m.CreatedAt,
		accessedAt: m.AccessedAt,
	}, nil
}

// Put stores c under key, replacing any previous entry.
func (s *ArtifactStore) Put(key Key, c Compilation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyHash, err := key.computeHash()
	if err != nil {
		return fmt.Errorf("failed to compute key hash: %w", err)
	}

	contracts := c.Contracts
	if contracts == nil {
		contracts = []ContractRecord{}
	}
	data, err := json.Marshal(contracts)
	if err != nil {
		return fmt.Errorf("failed to encode contracts: %w", err)
	}

	objectDir := s.objectPath(keyHash)
	if err := s.fs.MkdirAll(objectDir, 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(objectDir, contractsObject), data, 0o644); err != nil {
		return fmt.Errorf("failed to write contracts object: %w", err)
	}

	outputHash, err := s.computeOutputHash(data)
	if err != nil {
		return err
	}

	inputDescs := make([]string, len(key.inputs))
	for i, input := range key.inputs {
		inputDescs[i] = input.String()
	}

	now := s.now()
	m := &manifest{
		KeyHash:       keyHash,
		InputDescs:    inputDescs,
		ExtraData:     key.extras,
		Sources:       c.Sources.Strings(),
		ContractCount: len(contracts),
		OutputHash:    outputHash,
		CreatedAt:     now,
		AccessedAt:    now,
	}
	if err := s.saveManifest(m); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// Has reports whether key has a stored entry.
func (s *ArtifactStore) Has(key Key) bool {
	artifact, err := s.Get(key)
	return err == nil && artifact != nil
}

// Delete removes the entry for key, if any.
func (s *ArtifactStore) Delete(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyHash, err := key.computeHash()
	if err != nil {
		return fmt.Errorf("failed to compute key hash: %w", err)
	}
	return s.removeByHash(keyHash)
}

// Clear removes every entry.
func (s *ArtifactStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.RemoveAll(s.manifestDir()); err != nil {
		return fmt.Errorf("failed to remove manifests: %w", err)
	}
	if err := s.fs.RemoveAll(s.objectsDir()); err != nil {
		return fmt.Errorf("failed to remove objects: %w", err)
	}

	if err := s.fs.MkdirAll(s.manifestDir(), 0o755); err != nil {
		return fmt.Errorf("failed to recreate manifests directory: %w", err)
	}
	if err := s.fs.MkdirAll(s.objectsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to recreate objects directory: %w", err)
	}
	return nil
}

func (s *ArtifactStore) manifestDir() string {
	return filepath.Join(s.root, "manifests")
}

func (s *ArtifactStore) objectsDir() string {
	return filepath.Join(s.root, "objects")
}

func (s *ArtifactStore) manifestPath(keyHash string) string {
	if len(keyHash) < 2 {
		panic(fmt.Sprintf("key hash too short: %s", keyHash))
	}
	return filepath.Join(s.manifestDir(), keyHash[:2], keyHash+".json")
}

func (s *ArtifactStore) objectPath(keyHash string) string {
	if len(keyHash) < 2 {
		panic(fmt.Sprintf("key hash too short: %s", keyHash))
	}
	return filepath.Join(s.objectsDir(), keyHash[:2], keyHash)
}

func (s *ArtifactStore) computeOutputHash(data []byte) (string, error) {
	h := s.hashFunc()
	if err := hashFile(bytes.NewReader(data), h); err != nil {
		return "", fmt.Errorf("failed to hash contracts object: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func (s *ArtifactStore) removeByHash(keyHash string) error {
	manifestPath := s.manifestPath(keyHash)
	if exists, _ := afero.Exists(s.fs, manifestPath); exists {
		if err := s.fs.Remove(manifestPath); err != nil {
			return fmt.Errorf("failed to remove manifest: %w", err)
		}
	}

	objectDir := s.objectPath(keyHash)
	if exists, _ := afero.Exists(s.fs, objectDir); exists {
		if err := s.fs.RemoveAll(objectDir); err != nil {
			return fmt.Errorf("failed to remove objects: %w", err)
		}
	}
	return nil
}

func (s *ArtifactStore) now() time.Time {
	return s.nowFunc()
}

func defaultHashFunc() hash.Hash {
	return xxhash.New()
}

// Artifact is a compilation read back from the store.
type Artifact struct {
	keyHash    string
	store      *ArtifactStore
	sources    PathSet
	contracts  []ContractRecord
	createdAt  time.Time
	accessedAt time.Time
}

// Compilation returns the stored sources and contract records.
func (a *Artifact) Compilation() Compilation {
	return Compilation{
		Sources:   a.sources,
		Contracts: append([]ContractRecord(nil), a.contracts...),
	}
}

// KeyHash returns the hash of the key the artifact is stored under.
func (a *Artifact) KeyHash() string {
	return a.keyHash
}

// CreatedAt returns when the artifact was stored.
func (a *Artifact) CreatedAt() time.Time {
	return a.createdAt
}

// AccessedAt returns when the artifact was last read.
func (a *Artifact) AccessedAt() time.Time {
	return a.accessedAt
}

// Age returns how long ago the artifact was stored.
func (a *Artifact) Age() time.Duration {
	return a.store.now().Sub(a.createdAt)
}
