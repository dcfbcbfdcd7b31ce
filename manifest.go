package solbuild

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// manifest describes one stored compilation.
type manifest struct {
	KeyHash    string            `json:"keyHash"`
	InputDescs []string          `json:"inputs"`
	ExtraData  map[string]string `json:"extra"`

	Sources       []string `json:"sources"`
	ContractCount int      `json:"contractCount"`
	OutputHash    string   `json:"outputHash"` // Hash of contracts.json

	CreatedAt  time.Time `json:"createdAt"`
	AccessedAt time.Time `json:"accessedAt"`
}

func (s *ArtifactStore) saveManifest(m *manifest) error {
	path := s.manifestPath(m.KeyHash)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// readManifest reads a manifest without touching its access time.
func (s *ArtifactStore) readManifest(keyHash string) (*manifest, error) {
	data, err := afero.ReadFile(s.fs, s.manifestPath(keyHash))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

// loadManifest reads a manifest and records the access.
func (s *ArtifactStore) loadManifest(keyHash string) (*manifest, error) {
	m, err := s.readManifest(keyHash)
	if err != nil {
		return nil, err
	}

	m.AccessedAt = s.now()
	if err := s.saveManifest(m); err != nil {
		// Non-fatal, the entry is still usable.
		s.logger.Warn("Failed to update manifest access time", "key", keyHash, "err", err)
	}
	return m, nil
}
