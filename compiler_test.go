package solbuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSolcVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"solc, the solidity compiler commandline interface\nVersion: 0.8.19+commit.7dd6d404.Linux.g++\n", "0.8.19+commit.7dd6d404.Linux.g++"},
		{"Version: 0.4.24+commit.e67f0147.Emscripten.clang", "0.4.24+commit.e67f0147.Emscripten.clang"},
		{"solc 0.5.0", "0.5.0"},
	}
	for _, tt := range tests {
		got, err := parseSolcVersion(tt.output)
		if err != nil {
			t.Fatalf("parseSolcVersion(%q) failed: %v", tt.output, err)
		}
		if got != tt.want {
			t.Errorf("parseSolcVersion(%q) = %q, want %q", tt.output, got, tt.want)
		}
	}

	if _, err := parseSolcVersion("command not found"); err == nil {
		t.Fatal("expected an error for output without a version")
	}
}

func TestCheckCompilerVersion(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"0.8.19+commit.7dd6d404.Linux.g++", true},
		{"0.4.18+commit.9cf6e910.Linux.g++", true},
		{"0.4.17+commit.bdeb9e52.Linux.g++", false},
		{"0.4.18-nightly.2017.10.18+commit.e854da1a.Linux.g++", false},
		{"0.4.19-nightly.2017.09.05+commit.c58d9d2c.Linux.g++", true},
		{"0.3.6", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			compiler := newFakeCompiler()
			compiler.version = tt.version

			got, err := CheckCompilerVersion(context.Background(), compiler, MinimumSolcVersion)
			if tt.ok {
				if err != nil {
					t.Fatal(err)
				}
				if got != tt.version {
					t.Fatalf("version = %q, want %q", got, tt.version)
				}
				return
			}
			var tve *ToolchainVersionError
			if !errors.As(err, &tve) {
				t.Fatalf("expected a ToolchainVersionError, got %v", err)
			}
			if tve.Minimum != MinimumSolcVersion || tve.Version != tt.version {
				t.Fatalf("unexpected error fields: %+v", tve)
			}
		})
	}
}

func TestCompileStandard(t *testing.T) {
	ctx := context.Background()
	input := map[string]any{"language": "Solidity", "sources": map[string]any{"A.sol": map[string]any{"content": ""}}}

	t.Run("Contracts", func(t *testing.T) {
		compiler := newFakeCompiler()
		out, err := CompileStandard(ctx, compiler, input)
		if err != nil {
			t.Fatal(err)
		}
		contracts := out["contracts"].(map[string]any)
		if _, ok := contracts["A.sol"]; !ok {
			t.Fatalf("missing A.sol in %v", contracts)
		}
		if diff := cmp.Diff(input, compiler.lastInput(t)); diff != "" {
			t.Fatalf("compiler input mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("No input sources", func(t *testing.T) {
		compiler := newFakeCompiler()
		compiler.output = `{"errors":[{"type":"JSONError","severity":"error","message":"No input sources specified."}]}`
		if _, err := CompileStandard(ctx, compiler, input); !errors.Is(err, ErrNoContracts) {
			t.Fatalf("expected ErrNoContracts, got %v", err)
		}
	})

	t.Run("Empty contracts", func(t *testing.T) {
		compiler := newFakeCompiler()
		compiler.output = `{"contracts":{},"sources":{}}`
		if _, err := CompileStandard(ctx, compiler, input); !errors.Is(err, ErrNoContracts) {
			t.Fatalf("expected ErrNoContracts, got %v", err)
		}
	})

	t.Run("Warnings are not errors", func(t *testing.T) {
		compiler := newFakeCompiler()
		compiler.output = `{"errors":[{"severity":"warning","message":"unused variable"}],"contracts":{"A.sol":{"A":{}}}}`
		if _, err := CompileStandard(ctx, compiler, input); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Compilation errors", func(t *testing.T) {
		compiler := newFakeCompiler()
		compiler.output = `{"errors":[
			{"type":"ParserError","severity":"error","message":"Expected ';'","formattedMessage":"A.sol:1:1: ParserError: Expected ';'\n"},
			{"type":"TypeError","severity":"error","message":"Undeclared identifier"}
		]}`
		_, err := CompileStandard(ctx, compiler, input)
		var ce *CompilerError
		if !errors.As(err, &ce) {
			t.Fatalf("expected a CompilerError, got %v", err)
		}
		want := []string{"A.sol:1:1: ParserError: Expected ';'", "TypeError: Undeclared identifier"}
		if diff := cmp.Diff(want, ce.Messages); diff != "" {
			t.Fatalf("messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Process failure", func(t *testing.T) {
		compiler := newFakeCompiler()
		compiler.err = errors.New("exit status 1")
		_, err := CompileStandard(ctx, compiler, input)
		var ce *CompilerError
		if !errors.As(err, &ce) {
			t.Fatalf("expected a CompilerError, got %v", err)
		}
		if !errors.Is(err, compiler.err) {
			t.Fatalf("expected the process error to be wrapped, got %v", err)
		}
	})

	t.Run("Malformed output", func(t *testing.T) {
		compiler := newFakeCompiler()
		compiler.output = `not json`
		_, err := CompileStandard(ctx, compiler, input)
		var ce *CompilerError
		if !errors.As(err, &ce) {
			t.Fatalf("expected a CompilerError, got %v", err)
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		compiler := newFakeCompiler()
		compiler.err = errors.New("signal: killed")
		_, err := CompileStandard(ctx, compiler, input)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

// writeScript installs a shell script that stands in for solc.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "solc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSolc(t *testing.T) {
	ctx := context.Background()
	script := writeScript(t, `
if [ "$1" = "--version" ]; then
	echo "solc, the solidity compiler commandline interface"
	echo "Version: 0.8.19+commit.7dd6d404.Linux.g++"
	exit 0
fi
if [ "$1" = "--standard-json" ]; then
	cat > /dev/null
	echo '{"contracts":{"A.sol":{"A":{"abi":[]}}}}'
	exit 0
fi
echo "unexpected arguments: $*" >&2
exit 2
`)

	solc := &Solc{Path: script}

	version, err := solc.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if version != "0.8.19+commit.7dd6d404.Linux.g++" {
		t.Fatalf("version = %q", version)
	}

	out, err := CompileStandard(ctx, solc, map[string]any{"language": "Solidity"})
	if err != nil {
		t.Fatal(err)
	}
	records, err := NormalizeCompilationResult(out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A.sol:A"}, recordNames(records)); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSolc_Failure(t *testing.T) {
	script := writeScript(t, "echo 'boom' >&2\nexit 1\n")
	solc := &Solc{Path: script}

	if _, err := solc.Version(context.Background()); err == nil {
		t.Fatal("expected an error from a failing --version")
	}

	_, err := CompileStandard(context.Background(), solc, map[string]any{})
	var ce *CompilerError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a CompilerError, got %v", err)
	}
}
