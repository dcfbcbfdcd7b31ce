package solbuild

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

func testDocument() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"optimizer": map[string]any{"enabled": true, "runs": 500},
			"outputSelection": map[string]any{
				"A.sol": map[string]any{"Foo": []any{"abi"}, "Bar": []any{"metadata"}},
				"B.sol": map[string]any{"Baz": []any{"evm.bytecode"}},
			},
		},
		"list": []any{map[string]any{"name": "first"}, "second"},
	}
}

func TestGetKey(t *testing.T) {
	doc := testDocument()

	tests := []struct {
		name string
		path string
		want any
	}{
		{"Literal path", "settings.optimizer.runs", 500},
		{"Mapping value", "settings.optimizer", map[string]any{"enabled": true, "runs": 500}},
		{"Array index", "list.0.name", "first"},
		{"Array scalar", "list.1", "second"},
		{"Dots split file names", "settings.outputSelection.B.sol", nil},
		{"Wildcard fan-out in key order", "settings.outputSelection.*.*", []any{
			[]any{"metadata"}, []any{"abi"}, []any{"evm.bytecode"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetKey(doc, tt.path)
			if tt.want == nil {
				if !errors.Is(err, ErrKeyNotFound) {
					t.Fatalf("expected ErrKeyNotFound, got %v (%s)", err, spew.Sdump(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("GetKey(%q) failed: %v", tt.path, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("GetKey(%q) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}

func TestGetKey_Missing(t *testing.T) {
	doc := testDocument()

	for _, path := range []string{
		"missing",
		"settings.missing.runs",
		"settings.optimizer.runs.deeper",
		"list.7",
		"list.x",
		"settings.outputSelection.*.Foo", // B.sol has no Foo
		"settings.optimizer.*.*",         // wildcard below a scalar
	} {
		t.Run(path, func(t *testing.T) {
			if HasKey(doc, path) {
				t.Fatalf("HasKey(%q) = true, want false", path)
			}
			if _, err := GetKey(doc, path); !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("GetKey(%q) error = %v, want ErrKeyNotFound", path, err)
			}
		})
	}
}

func TestHasKey_WildcardOverEmptyMapping(t *testing.T) {
	doc := map[string]any{"settings": map[string]any{"outputSelection": map[string]any{}}}

	if HasKey(doc, "settings.outputSelection.*.*") {
		t.Fatal("wildcard over an empty mapping must not match")
	}
	if !HasKey(doc, "settings.outputSelection") {
		t.Fatal("expected the empty mapping itself to exist")
	}
}

func TestSetKey(t *testing.T) {
	t.Run("Creates intermediate mappings", func(t *testing.T) {
		doc := map[string]any{}
		if err := SetKey(doc, "a.b.c", 1); err != nil {
			t.Fatal(err)
		}
		want := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
		if diff := cmp.Diff(want, doc); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Overwrites existing value", func(t *testing.T) {
		doc := testDocument()
		if err := SetKey(doc, "settings.optimizer.runs", 200); err != nil {
			t.Fatal(err)
		}
		if got, _ := GetKey(doc, "settings.optimizer.runs"); got != 200 {
			t.Fatalf("runs = %v, want 200", got)
		}
	})

	t.Run("Wildcard writes every existing key", func(t *testing.T) {
		doc := testDocument()
		if err := SetKey(doc, "settings.outputSelection.*.*", []any{"abi"}); err != nil {
			t.Fatal(err)
		}
		want := map[string]any{
			"A.sol": map[string]any{"Foo": []any{"abi"}, "Bar": []any{"abi"}},
			"B.sol": map[string]any{"Baz": []any{"abi"}},
		}
		got, _ := GetKey(doc, "settings.outputSelection")
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Wildcard on an empty level materializes a literal star", func(t *testing.T) {
		doc := map[string]any{"settings": map[string]any{"outputSelection": map[string]any{}}}
		if err := SetKey(doc, "settings.outputSelection.*.*", []any{"abi"}); err != nil {
			t.Fatal(err)
		}
		want := map[string]any{"*": map[string]any{"*": []any{"abi"}}}
		got, _ := GetKey(doc, "settings.outputSelection")
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Wildcard on an absent level materializes a literal star", func(t *testing.T) {
		doc := map[string]any{}
		if err := SetKey(doc, "x.*", "v"); err != nil {
			t.Fatal(err)
		}
		want := map[string]any{"x": map[string]any{"*": "v"}}
		if diff := cmp.Diff(want, doc); diff != "" {
			t.Fatalf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Array element", func(t *testing.T) {
		doc := testDocument()
		if err := SetKey(doc, "list.0.name", "changed"); err != nil {
			t.Fatal(err)
		}
		if got, _ := GetKey(doc, "list.0.name"); got != "changed" {
			t.Fatalf("list.0.name = %v", got)
		}
	})

	t.Run("Scalar intermediate", func(t *testing.T) {
		doc := testDocument()
		err := SetKey(doc, "settings.optimizer.runs.deeper", 1)
		if !errors.Is(err, ErrNotMapping) {
			t.Fatalf("expected ErrNotMapping, got %v", err)
		}
	})

	t.Run("Nil mapping", func(t *testing.T) {
		if err := SetKey(nil, "a", 1); !errors.Is(err, ErrNotMapping) {
			t.Fatalf("expected ErrNotMapping, got %v", err)
		}
	})
}
