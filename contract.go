package solbuild

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/compiler"
)

// ContractRecord is the normalized output for one contract of one source file.
// Outputs missing from the compiler result are left unset and omitted from JSON.
type ContractRecord struct {
	SourcePath      string          `json:"source_path"`
	Name            string          `json:"name"`
	ABI             any             `json:"abi,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitzero"`
	Bytecode        string          `json:"bytecode,omitempty"`
	BytecodeRuntime string          `json:"bytecode_runtime,omitempty"`
	LinkRefs        []LinkReference `json:"linkrefs,omitempty"`
	LinkRefsRuntime []LinkReference `json:"linkrefs_runtime,omitempty"`
	UserDoc         any             `json:"userdoc,omitempty"`
	DevDoc          any             `json:"devdoc,omitempty"`
}

// LinkReference is a library placeholder inside bytecode.
// Offset and Length are in bytes; Name is "<source file>:<library>".
type LinkReference struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Name   string `json:"name"`
}

func (r *ContractRecord) HasABI() bool             { return r.ABI != nil }
func (r *ContractRecord) HasMetadata() bool        { return r.Metadata != nil }
func (r *ContractRecord) HasBytecode() bool        { return r.Bytecode != "" }
func (r *ContractRecord) HasBytecodeRuntime() bool { return r.BytecodeRuntime != "" }
func (r *ContractRecord) HasLinkRefs() bool        { return len(r.LinkRefs) > 0 }
func (r *ContractRecord) HasLinkRefsRuntime() bool { return len(r.LinkRefsRuntime) > 0 }

// ParseABI decodes the record's ABI with the go-ethereum ABI parser.
func (r *ContractRecord) ParseABI() (abi.ABI, error) {
	if !r.HasABI() {
		return abi.ABI{}, fmt.Errorf("%s:%s has no abi", r.SourcePath, r.Name)
	}
	data, err := json.Marshal(r.ABI)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("encode abi of %s:%s: %w", r.SourcePath, r.Name, err)
	}
	return abi.JSON(bytes.NewReader(data))
}

// GethContract converts the record into go-ethereum's compiled contract type, the
// shape consumed by its contract binding and deployment tooling.
func (r *ContractRecord) GethContract() (*compiler.Contract, error) {
	var metadata string
	if r.HasMetadata() {
		data, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata of %s:%s: %w", r.SourcePath, r.Name, err)
		}
		metadata = string(data)
	}

	info := compiler.ContractInfo{
		Language:      "Solidity",
		AbiDefinition: r.ABI,
		UserDoc:       r.UserDoc,
		DeveloperDoc:  r.DevDoc,
		Metadata:      metadata,
	}
	if lang, err := GetKey(r.Metadata, "language"); err == nil {
		info.Language, _ = lang.(string)
	}
	if version, err := GetKey(r.Metadata, "compiler.version"); err == nil {
		info.CompilerVersion, _ = version.(string)
		info.LanguageVersion = info.CompilerVersion
	}

	return &compiler.Contract{
		Code:        r.Bytecode,
		RuntimeCode: r.BytecodeRuntime,
		Info:        info,
	}, nil
}

// NormalizeCompilationResult flattens a standard-JSON output document into one
// record per contract, ordered by source path and then contract name.
func NormalizeCompilationResult(result map[string]any) ([]ContractRecord, error) {
	contracts, ok := result["contracts"].(map[string]any)
	if !ok {
		if _, present := result["contracts"]; present {
			return nil, fmt.Errorf("contracts: expected an object, got %T", result["contracts"])
		}
		return nil, nil
	}

	var records []ContractRecord
	for _, sourcePath := range sortedKeys(contracts) {
		fileContracts, ok := contracts[sourcePath].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("contracts.%s: expected an object, got %T", sourcePath, contracts[sourcePath])
		}
		for _, name := range sortedKeys(fileContracts) {
			raw, ok := fileContracts[name].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("contracts.%s.%s: expected an object, got %T", sourcePath, name, fileContracts[name])
			}
			record, err := normalizeContractData(raw)
			if err != nil {
				return nil, fmt.Errorf("%s:%s: %w", sourcePath, name, err)
			}
			record.SourcePath = sourcePath
			record.Name = name
			records = append(records, record)
		}
	}
	return records, nil
}

func normalizeContractData(raw map[string]any) (ContractRecord, error) {
	var (
		record ContractRecord
		err    error
	)

	if v, ok := raw["metadata"]; ok {
		if record.Metadata, err = NormalizeMetadata(v); err != nil {
			return ContractRecord{}, err
		}
	}

	if object, ok := stringAt(raw, "evm.bytecode.object"); ok {
		record.Bytecode = add0xPrefix(object)
	}
	if record.LinkRefs, err = linkRefsAt(raw, "evm.bytecode.linkReferences"); err != nil {
		return ContractRecord{}, err
	}

	if object, ok := stringAt(raw, "evm.deployedBytecode.object"); ok {
		record.BytecodeRuntime = add0xPrefix(object)
	}
	if record.LinkRefsRuntime, err = linkRefsAt(raw, "evm.deployedBytecode.linkReferences"); err != nil {
		return ContractRecord{}, err
	}

	documents := []struct {
		key string
		dst *any
	}{
		{"abi", &record.ABI},
		{"userdoc", &record.UserDoc},
		{"devdoc", &record.DevDoc},
	}
	for _, doc := range documents {
		v, ok := raw[doc.key]
		if !ok {
			continue
		}
		if *doc.dst, err = loadJSONIfString(v); err != nil {
			return ContractRecord{}, fmt.Errorf("%s: %w", doc.key, err)
		}
	}
	return record, nil
}

func stringAt(raw map[string]any, path string) (string, bool) {
	v, err := GetKey(raw, path)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func linkRefsAt(raw map[string]any, path string) ([]LinkReference, error) {
	v, err := GetKey(raw, path)
	if err != nil {
		return nil, nil
	}
	refs, err := NormalizeLinkReferences(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return refs, nil
}

// NormalizeLinkReferences converts a standard-JSON link reference table
// (source file -> library -> [{start, length}]) into a list sorted by offset.
// An empty table yields nil.
func NormalizeLinkReferences(v any) ([]LinkReference, error) {
	table, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}

	var refs []LinkReference
	for _, file := range sortedKeys(table) {
		libraries, ok := table[file].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected an object, got %T", file, table[file])
		}
		for _, library := range sortedKeys(libraries) {
			entries, ok := libraries[library].([]any)
			if !ok {
				return nil, fmt.Errorf("%s.%s: expected a list, got %T", file, library, libraries[library])
			}
			for i, entry := range entries {
				start, err := intAt(entry, "start")
				if err != nil {
					return nil, fmt.Errorf("%s.%s[%d]: %w", file, library, i, err)
				}
				length, err := intAt(entry, "length")
				if err != nil {
					return nil, fmt.Errorf("%s.%s[%d]: %w", file, library, i, err)
				}
				refs = append(refs, LinkReference{Offset: start, Length: length, Name: file + ":" + library})
			}
		}
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Offset != refs[j].Offset {
			return refs[i].Offset < refs[j].Offset
		}
		return refs[i].Name < refs[j].Name
	})
	return refs, nil
}

func intAt(entry any, key string) (int, error) {
	v, err := GetKey(entry, key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	}
	return 0, fmt.Errorf("%s: expected a number, got %T", key, v)
}

// NormalizeMetadata parses contract metadata given either as the JSON string solc
// emits or as an already decoded object. An empty string yields nil.
func NormalizeMetadata(v any) (map[string]any, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parsed, err := loadJSONIfString(v)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	m, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata: expected an object, got %T", parsed)
	}
	return m, nil
}

func loadJSONIfString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return out, nil
}

func add0xPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return "0x" + s[2:]
	}
	return "0x" + s
}
