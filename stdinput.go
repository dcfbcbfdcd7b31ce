package solbuild

import (
	"errors"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"
)

// Key paths inside the standard-JSON input document.
const (
	SourcesKey         = "sources"
	OutputSelectionKey = "settings.outputSelection.*.*"
)

// RequiredOutputSelection lists the outputs the normalizer depends on. They are
// requested for every file and contract regardless of the project settings.
var RequiredOutputSelection = []string{
	"abi",
	"metadata",
	"evm.bytecode",
	"evm.bytecode.object",
	"evm.bytecode.linkReferences",
	"evm.deployedBytecode",
	"evm.deployedBytecode.object",
	"evm.deployedBytecode.linkReferences",
}

// DefaultStandardInput returns a fresh copy of the default standard-JSON input.
func DefaultStandardInput() map[string]any {
	return map[string]any{
		"language": "Solidity",
		"settings": map[string]any{
			"optimizer": map[string]any{
				"enabled": true,
				"runs":    500,
			},
			"outputSelection": map[string]any{},
		},
	}
}

// BuildStandardInput assembles the document passed to the compiler.
//
// The override is deep-merged on top of the defaults, sources is stored under
// "sources", and the output selection of every file and contract is extended so
// it contains RequiredOutputSelection. Neither argument is modified.
func BuildStandardInput(override map[string]any, sources map[string]any) (map[string]any, error) {
	if err := validateOverride(override); err != nil {
		return nil, err
	}

	input := deepMerge(DefaultStandardInput(), override)
	input[SourcesKey] = sources

	current, err := selectionLists(input)
	if err != nil {
		return nil, err
	}
	selection, err := unionSelection(current, RequiredOutputSelection)
	if err != nil {
		return nil, err
	}

	if err := SetKey(input, OutputSelectionKey, toAnySlice(selection)); err != nil {
		return nil, newConfigurationError(fmt.Errorf("output selection: %w", err))
	}
	return input, nil
}

// selectionLists returns every per-contract list of the output selection.
// Files without contract entries contribute nothing.
func selectionLists(input map[string]any) ([]any, error) {
	v, err := GetKey(input, "settings.outputSelection")
	if err != nil {
		return nil, nil
	}
	files, ok := v.(map[string]any)
	if !ok {
		return nil, newConfigurationError(fmt.Errorf("settings.outputSelection must be an object, got %T", v))
	}

	var lists []any
	for _, file := range sortedKeys(files) {
		contracts, ok := files[file].(map[string]any)
		if !ok {
			return nil, newConfigurationError(fmt.Errorf("settings.outputSelection.%s must be an object, got %T", file, files[file]))
		}
		for _, name := range sortedKeys(contracts) {
			lists = append(lists, contracts[name])
		}
	}
	return lists, nil
}

// unionSelection merges every selection list found at the wildcard path with
// required. The result is sorted so repeated builds produce the same document.
func unionSelection(lists []any, required []string) ([]string, error) {
	set := mapset.NewThreadUnsafeSet(required...)
	for _, list := range lists {
		items, ok := list.([]any)
		if !ok {
			return nil, newConfigurationError(fmt.Errorf("%s: expected a list of output names, got %T", OutputSelectionKey, list))
		}
		for _, item := range items {
			name, ok := item.(string)
			if !ok {
				return nil, newConfigurationError(fmt.Errorf("%s: output name must be a string, got %T", OutputSelectionKey, item))
			}
			set.Add(name)
		}
	}
	out := set.ToSlice()
	sort.Strings(out)
	return out, nil
}

func validateOverride(override map[string]any) error {
	var errs []error
	if v, ok := override["language"]; ok {
		if _, isString := v.(string); !isString {
			errs = append(errs, fmt.Errorf("language must be a string, got %T", v))
		}
	}
	if v, ok := override["settings"]; ok {
		settings, isMap := v.(map[string]any)
		if !isMap {
			errs = append(errs, fmt.Errorf("settings must be an object, got %T", v))
		} else if sel, ok := settings["outputSelection"]; ok {
			if _, isMap := sel.(map[string]any); !isMap {
				errs = append(errs, fmt.Errorf("settings.outputSelection must be an object, got %T", sel))
			}
		}
	}
	if _, ok := override[SourcesKey]; ok {
		errs = append(errs, errors.New("sources is filled from the project source directories and cannot be overridden"))
	}
	return newConfigurationError(errs...)
}

// deepMerge returns a copy of base with override merged on top. Nested mappings
// are merged recursively; any other override value replaces the base value.
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = deepCopy(v)
	}
	for k, v := range override {
		baseMap, baseIsMap := out[k].(map[string]any)
		overMap, overIsMap := v.(map[string]any)
		if baseIsMap && overIsMap {
			out[k] = deepMerge(baseMap, overMap)
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		return toAnySlice(node)
	}
	return v
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// newSourcesSection reads every source file and returns the "sources" mapping of
// the standard-JSON input, keyed by the relative path.
func newSourcesSection(fs afero.Fs, base string, paths PathSet) (map[string]any, error) {
	sources := make(map[string]any, paths.Len())
	for _, p := range paths.paths {
		data, err := afero.ReadFile(fs, resolvePath(base, string(p)))
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", p, err)
		}
		sources[string(p)] = map[string]any{"content": string(data)}
	}
	return sources, nil
}
