package solbuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// StoreStats summarizes an ArtifactStore.
type StoreStats struct {
	Entries     int           // Number of stored compilations
	Contracts   int           // Contract records across all entries
	TotalSize   int64         // Bytes used by objects
	OldestEntry time.Duration // Age of the oldest entry
	NewestEntry time.Duration // Age of the newest entry
}

// StoreEntry describes one stored compilation.
type StoreEntry struct {
	KeyHash       string
	CreatedAt     time.Time
	AccessedAt    time.Time
	Size          int64
	SourceCount   int
	ContractCount int
}

// Stats returns statistics about the store.
func (s *ArtifactStore) Stats() (StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{}
	var oldest, newest time.Time

	err := s.walkManifests(func(keyHash string, m *manifest) error {
		stats.Entries++
		stats.Contracts += m.ContractCount

		if oldest.IsZero() || m.CreatedAt.Before(oldest) {
			oldest = m.CreatedAt
		}
		if newest.IsZero() || m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}

		size, _ := s.dirSize(s.objectPath(keyHash))
		stats.TotalSize += size
		return nil
	})
	if err != nil {
		return StoreStats{}, err
	}

	now := s.now()
	if !oldest.IsZero() {
		stats.OldestEntry = now.Sub(oldest)
	}
	if !newest.IsZero() {
		stats.NewestEntry = now.Sub(newest)
	}
	return stats, nil
}

// Entries lists every stored compilation.
func (s *ArtifactStore) Entries() ([]StoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []StoreEntry
	err := s.walkManifests(func(keyHash string, m *manifest) error {
		size, _ := s.dirSize(s.objectPath(keyHash))
		entries = append(entries, StoreEntry{
			KeyHash:       keyHash,
			CreatedAt:     m.CreatedAt,
			AccessedAt:    m.AccessedAt,
			Size:          size,
			SourceCount:   len(m.Sources),
			ContractCount: m.ContractCount,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Prune removes entries created more than olderThan ago.
// Returns the number of entries removed.
func (s *ArtifactStore) Prune(olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	return s.pruneWhere(func(m *manifest) bool {
		return m.CreatedAt.Before(cutoff)
	})
}

// PruneUnused removes entries not read within notAccessedSince.
// Returns the number of entries removed.
func (s *ArtifactStore) PruneUnused(notAccessedSince time.Duration) (int, error) {
	cutoff := s.now().Add(-notAccessedSince)
	return s.pruneWhere(func(m *manifest) bool {
		return m.AccessedAt.Before(cutoff)
	})
}

func (s *ArtifactStore) pruneWhere(match func(m *manifest) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []string
	err := s.walkManifests(func(keyHash string, m *manifest) error {
		if match(m) {
			toRemove = append(toRemove, keyHash)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, keyHash := range toRemove {
		if err := s.removeByHash(keyHash); err != nil {
			return count, fmt.Errorf("failed to remove entry %s: %w", keyHash, err)
		}
		count++
	}
	return count, nil
}

// walkManifests calls fn for every readable manifest. Corrupted manifests are skipped.
func (s *ArtifactStore) walkManifests(fn func(keyHash string, m *manifest) error) error {
	return afero.Walk(s.fs, s.manifestDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		keyHash := strings.TrimSuffix(filepath.Base(path), ".json")
		m, err := s.readManifest(keyHash)
		if err != nil {
			s.logger.Debug("Skipping unreadable manifest", "path", path, "err", err)
			return nil
		}
		return fn(keyHash, m)
	})
}

func (s *ArtifactStore) dirSize(dir string) (int64, error) {
	var size int64
	err := afero.Walk(s.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
