package solbuild

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"sort"
)

// KeyBuilder provides a fluent API for building artifact store keys.
type KeyBuilder struct {
	store  *ArtifactStore
	inputs []input
	extras map[string]string
}

// Key identifies one compilation in the ArtifactStore.
// Users should not construct this directly, use ArtifactStore.Key() instead.
type Key struct {
	inputs []input
	extras map[string]string
	store  *ArtifactStore
}

type input interface {
	hash(h hash.Hash) error
	String() string
}

// bytesInput is a named blob, typically the encoded standard-JSON input.
type bytesInput struct {
	name string
	data []byte
}

func (b bytesInput) hash(h hash.Hash) error {
	return hashFile(bytes.NewReader(b.data), h)
}

func (b bytesInput) String() string {
	return fmt.Sprintf("bytes:%s(%d)", b.name, len(b.data))
}

// Bytes adds a named blob to the key.
func (kb *KeyBuilder) Bytes(name string, data []byte) *KeyBuilder {
	kb.inputs = append(kb.inputs, bytesInput{name: name, data: append([]byte(nil), data...)})
	return kb
}

// String adds a key-value pair to the key.
func (kb *KeyBuilder) String(key, value string) *KeyBuilder {
	if kb.extras == nil {
		kb.extras = make(map[string]string)
	}
	kb.extras[key] = value
	return kb
}

// Version is sugar for String("version", v).
func (kb *KeyBuilder) Version(v string) *KeyBuilder {
	return kb.String("version", v)
}

// Build finalizes the key.
func (kb *KeyBuilder) Build() Key {
	return Key{
		inputs: kb.inputs,
		extras: kb.extras,
		store:  kb.store,
	}
}

// Hash returns the hash of the key being built, or "" if it cannot be computed.
func (kb *KeyBuilder) Hash() string {
	return kb.Build().Hash()
}

// Hash returns the hash of this key as a hex string, or "" if it cannot be computed.
func (k Key) Hash() string {
	h, err := k.computeHash()
	if err != nil {
		return ""
	}
	return h
}

func (k Key) computeHash() (string, error) {
	if k.store == nil {
		return "", errors.New("key was not built by an artifact store")
	}
	if len(k.inputs) == 0 && len(k.extras) == 0 {
		return "", errors.New("empty key")
	}

	h := k.store.hashFunc()
	for _, input := range k.inputs {
		h.Write([]byte(input.String()))
		if err := input.hash(h); err != nil {
			return "", fmt.Errorf("%s: %w", input, err)
		}
	}

	if len(k.extras) > 0 {
		keys := make([]string, 0, len(k.extras))
		for key := range k.extras {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			h.Write([]byte(key))
			h.Write([]byte(k.extras[key]))
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
