package solbuild

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"
)

// DefaultSourceGlob is the pattern used when the configuration does not name one.
const DefaultSourceGlob = "*.sol"

// SourcePath is a source file path relative to the project directory.
type SourcePath string

// PathSet is an immutable, sorted set of source paths in which no two elements
// resolve to the same file.
type PathSet struct {
	paths []SourcePath
}

// NewPathSet builds a PathSet from already-normalized relative paths.
// Exact duplicates are collapsed and the result is sorted. It does not touch the
// filesystem; use CollectSourceFiles for discovery.
func NewPathSet(paths ...string) PathSet {
	return PathSet{paths: sortedUnique(paths)}
}

// Paths returns a copy of the elements.
func (ps PathSet) Paths() []SourcePath {
	return append([]SourcePath(nil), ps.paths...)
}

// Strings returns the elements as plain strings.
func (ps PathSet) Strings() []string {
	out := make([]string, len(ps.paths))
	for i, p := range ps.paths {
		out[i] = string(p)
	}
	return out
}

// Len returns the number of elements.
func (ps PathSet) Len() int {
	return len(ps.paths)
}

// Contains reports whether path is an element, by exact spelling.
func (ps PathSet) Contains(path string) bool {
	i := sort.Search(len(ps.paths), func(i int) bool { return string(ps.paths[i]) >= path })
	return i < len(ps.paths) && string(ps.paths[i]) == path
}

// MarshalJSON encodes the set as a JSON array of paths.
func (ps PathSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.Strings())
}

// CollectSourceFiles discovers the source files under roots.
//
// Directory roots are walked recursively and filtered by pattern, matched against
// the file's base name. File roots are included without applying the pattern.
// Roots that do not exist are skipped. Relative roots are resolved against base,
// and every result is expressed relative to base.
//
// When two candidates resolve to the same file, the one that sorts last wins.
func CollectSourceFiles(fs afero.Fs, base string, roots []string, pattern string) (PathSet, error) {
	if pattern == "" {
		pattern = DefaultSourceGlob
	}
	if _, err := filepath.Match(pattern, "a.sol"); err != nil {
		return PathSet{}, newConfigurationError(fmt.Errorf("invalid source glob %q: %w", pattern, err))
	}

	candidates, err := collectCandidates(fs, base, roots, pattern)
	if err != nil {
		return PathSet{}, err
	}

	sorted := sortedUnique(candidates)
	deduped, err := dedupeSameFiles(fs, base, sorted)
	if err != nil {
		return PathSet{}, err
	}
	return PathSet{paths: deduped}, nil
}

func collectCandidates(fs afero.Fs, base string, roots []string, pattern string) ([]string, error) {
	var candidates []string
	for _, root := range roots {
		abs := resolvePath(base, root)

		info, err := fs.Stat(abs)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("source root %s: %w", root, err)
		}

		if !info.IsDir() {
			rel, err := relativeTo(base, abs)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, rel)
			continue
		}

		err = afero.Walk(fs, abs, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			matched, err := filepath.Match(pattern, filepath.Base(path))
			if err != nil || !matched {
				return err
			}
			rel, err := relativeTo(base, path)
			if err != nil {
				return err
			}
			candidates = append(candidates, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk source root %s: %w", root, err)
		}
	}
	return candidates, nil
}

// dedupeSameFiles drops every path for which a later path resolves to the same file.
func dedupeSameFiles(fs afero.Fs, base string, sorted []SourcePath) ([]SourcePath, error) {
	infos := make([]os.FileInfo, len(sorted))
	for i, p := range sorted {
		info, err := fs.Stat(resolvePath(base, string(p)))
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		infos[i] = info
	}

	out := make([]SourcePath, 0, len(sorted))
	for i, p := range sorted {
		duplicated := false
		for j := i + 1; j < len(sorted); j++ {
			if sameFile(base, p, sorted[j], infos[i], infos[j]) {
				duplicated = true
				break
			}
		}
		if !duplicated {
			out = append(out, p)
		}
	}
	return out, nil
}

// sameFile reports whether a and b name the same file. Cleaned absolute paths are
// compared first; os.SameFile then covers symlinks and case-insensitive volumes
// whenever the infos come from the OS filesystem.
func sameFile(base string, a, b SourcePath, ai, bi os.FileInfo) bool {
	if resolvePath(base, string(a)) == resolvePath(base, string(b)) {
		return true
	}
	return os.SameFile(ai, bi)
}

func sortedUnique(paths []string) []SourcePath {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, p := range paths {
		set.Add(filepath.Clean(p))
	}
	unique := set.ToSlice()
	sort.Strings(unique)

	out := make([]SourcePath, len(unique))
	for i, p := range unique {
		out[i] = SourcePath(p)
	}
	return out
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func relativeTo(base, path string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(base), path)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", path, err)
	}
	return rel, nil
}

// LatestMtime returns the most recent modification time among paths, resolved
// against base. The boolean is false when paths is empty, in which case there is
// no meaningful watermark.
func LatestMtime(fs afero.Fs, base string, paths PathSet) (time.Time, bool, error) {
	var latest time.Time
	for _, p := range paths.paths {
		info, err := fs.Stat(resolvePath(base, string(p)))
		if err != nil {
			return time.Time{}, false, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest, len(paths.paths) > 0, nil
}
