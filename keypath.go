package solbuild

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Wildcard is the key path segment that matches every key of a mapping.
const Wildcard = "*"

// HasKey reports whether path resolves to a value inside v.
// A wildcard segment must match at least one key and every matched branch
// must contain the rest of the path.
func HasKey(v any, path string) bool {
	_, err := GetKey(v, path)
	return err == nil
}

// GetKey returns the value stored at path inside v.
//
// v is a tree of map[string]any, []any and scalars, as produced by encoding/json.
// Numeric segments index into arrays. If path contains a wildcard the result is a
// flat []any holding every matched leaf, visiting keys in sorted order.
func GetKey(v any, path string) (any, error) {
	segments := splitKeyPath(path)
	if !hasWildcard(segments) {
		return getSegments(v, segments, path)
	}

	var leaves []any
	if err := collectSegments(v, segments, path, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

// SetKey writes value at path inside m, creating intermediate mappings as needed.
//
// A wildcard segment writes into every existing key at that level. When the level
// is absent or has no keys, a single literal "*" key is created, which is how solc
// spells "every file" and "every contract" in an output selection.
func SetKey(m map[string]any, path string, value any) error {
	if m == nil {
		return fmt.Errorf("set %s: %w", path, ErrNotMapping)
	}
	return setSegments(m, splitKeyPath(path), path, value)
}

func splitKeyPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func hasWildcard(segments []string) bool {
	for _, seg := range segments {
		if seg == Wildcard {
			return true
		}
	}
	return false
}

func getSegments(v any, segments []string, path string) (any, error) {
	cur := v
	for i, seg := range segments {
		next, ok := child(cur, seg)
		if !ok {
			return nil, fmt.Errorf("%s (at %q): %w", path, strings.Join(segments[:i+1], "."), ErrKeyNotFound)
		}
		cur = next
	}
	return cur, nil
}

func collectSegments(v any, segments []string, path string, leaves *[]any) error {
	if len(segments) == 0 {
		*leaves = append(*leaves, v)
		return nil
	}

	seg, rest := segments[0], segments[1:]
	if seg != Wildcard {
		next, ok := child(v, seg)
		if !ok {
			return fmt.Errorf("%s (segment %q): %w", path, seg, ErrKeyNotFound)
		}
		return collectSegments(next, rest, path, leaves)
	}

	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return fmt.Errorf("%s (wildcard): %w", path, ErrKeyNotFound)
	}
	for _, k := range sortedKeys(m) {
		if err := collectSegments(m[k], rest, path, leaves); err != nil {
			return err
		}
	}
	return nil
}

func setSegments(m map[string]any, segments []string, path string, value any) error {
	if len(segments) == 0 {
		return fmt.Errorf("set: empty key path: %w", ErrKeyNotFound)
	}

	seg, rest := segments[0], segments[1:]
	if seg != Wildcard || len(m) == 0 {
		return setAt(m, seg, rest, path, value)
	}
	for _, k := range sortedKeys(m) {
		if err := setAt(m, k, rest, path, value); err != nil {
			return err
		}
	}
	return nil
}

// setAt writes into m[key], descending into rest when it is not empty.
func setAt(m map[string]any, key string, rest []string, path string, value any) error {
	if len(rest) == 0 {
		m[key] = value
		return nil
	}

	switch next := m[key].(type) {
	case nil:
		created := make(map[string]any)
		m[key] = created
		return setSegments(created, rest, path, value)
	case map[string]any:
		return setSegments(next, rest, path, value)
	case []any:
		return setInArray(next, rest, path, value)
	default:
		return fmt.Errorf("set %s: %q holds %T: %w", path, key, next, ErrNotMapping)
	}
}

func setInArray(a []any, segments []string, path string, value any) error {
	idx, err := strconv.Atoi(segments[0])
	if err != nil || idx < 0 || idx >= len(a) {
		return fmt.Errorf("set %s: index %q out of range: %w", path, segments[0], ErrKeyNotFound)
	}
	rest := segments[1:]
	if len(rest) == 0 {
		a[idx] = value
		return nil
	}
	switch next := a[idx].(type) {
	case map[string]any:
		return setSegments(next, rest, path, value)
	case []any:
		return setInArray(next, rest, path, value)
	default:
		return fmt.Errorf("set %s: element %d holds %T: %w", path, idx, next, ErrNotMapping)
	}
}

// child returns the direct child of v named by seg.
func child(v any, seg string) (any, bool) {
	switch node := v.(type) {
	case map[string]any:
		next, ok := node[seg]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}
		return node[idx], true
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
