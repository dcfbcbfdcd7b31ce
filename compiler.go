package solbuild

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// MinimumSolcVersion is the oldest solc release with a usable --standard-json mode.
const MinimumSolcVersion = "0.4.18"

// Compiler is the boundary to the external Solidity compiler.
type Compiler interface {
	// Version returns the compiler version, e.g. "0.8.19+commit.7dd6d404.Linux.g++".
	Version(ctx context.Context) (string, error)

	// CompileStandard runs a standard-JSON compilation and returns the raw output document.
	CompileStandard(ctx context.Context, input []byte) ([]byte, error)
}

// Solc runs a solc executable.
type Solc struct {
	Path string // Executable name or path, "solc" if empty
	Dir  string // Working directory for the process
}

func (s *Solc) path() string {
	if s.Path == "" {
		return "solc"
	}
	return s.Path
}

// Version implements Compiler.
func (s *Solc) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, s.path(), "--version")
	cmd.Dir = s.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s --version: %w: %s", s.path(), err, strings.TrimSpace(stderr.String()))
	}
	return parseSolcVersion(stdout.String())
}

// CompileStandard implements Compiler.
func (s *Solc) CompileStandard(ctx context.Context, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.path(), "--standard-json")
	cmd.Dir = s.Dir
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s --standard-json: %w: %s", s.path(), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

var solcVersionRegexp = regexp.MustCompile(`([0-9]+)\.([0-9]+)\.([0-9]+)`)

// parseSolcVersion extracts the version from `solc --version` output, e.g.
//
//	solc, the solidity compiler commandline interface
//	Version: 0.8.19+commit.7dd6d404.Linux.g++
func parseSolcVersion(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	if m := solcVersionRegexp.FindString(output); m != "" {
		return m, nil
	}
	return "", fmt.Errorf("cannot parse solc version from %q", strings.TrimSpace(output))
}

// CheckCompilerVersion fails with a ToolchainVersionError when the compiler is
// older than minimum.
func CheckCompilerVersion(ctx context.Context, c Compiler, minimum string) (string, error) {
	version, err := c.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to determine compiler version: %w", err)
	}
	v, ok := solcSemver(version)
	if !ok || semver.Compare(v, "v"+minimum) < 0 {
		return "", &ToolchainVersionError{Version: version, Minimum: minimum}
	}
	return version, nil
}

var solcReleaseRegexp = regexp.MustCompile(`^v?([0-9]+\.[0-9]+\.[0-9]+)(-[^+\s]+)?`)

// solcSemver converts a solc version such as "0.4.18-nightly.2017.10.18+commit.e854da1a"
// into a semver string. Nightly dates are not valid prerelease identifiers, so any
// prerelease becomes "-pre", which still orders below the release itself.
func solcSemver(version string) (string, bool) {
	m := solcReleaseRegexp.FindStringSubmatch(strings.TrimSpace(version))
	if m == nil {
		return "", false
	}
	v := "v" + m[1]
	if m[2] != "" {
		v += "-pre"
	}
	return v, semver.IsValid(v)
}

// solcError is an entry of the "errors" array in the standard-JSON output.
type solcError struct {
	Type             string `json:"type"`
	Severity         string `json:"severity"`
	Message          string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
}

func (e solcError) String() string {
	if e.FormattedMessage != "" {
		return strings.TrimSpace(e.FormattedMessage)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// CompileStandard sends input to the compiler and returns the decoded output.
//
// ErrNoContracts is returned when the compiler reports no input sources or
// produces no contracts. Every other failure is a *CompilerError.
func CompileStandard(ctx context.Context, c Compiler, input map[string]any) (map[string]any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, newConfigurationError(fmt.Errorf("encode standard JSON input: %w", err))
	}

	raw, err := c.CompileStandard(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return nil, &CompilerError{Err: err}
	}

	var output struct {
		Errors    []solcError    `json:"errors"`
		Contracts map[string]any `json:"contracts"`
	}
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, &CompilerError{Err: fmt.Errorf("decode standard JSON output: %w", err)}
	}

	var messages []string
	for _, e := range output.Errors {
		if e.Severity != "error" {
			continue
		}
		if strings.Contains(e.Message, "No input sources specified") {
			return nil, ErrNoContracts
		}
		messages = append(messages, e.String())
	}
	if len(messages) > 0 {
		return nil, &CompilerError{Messages: messages}
	}

	if len(output.Contracts) == 0 {
		return nil, ErrNoContracts
	}
	return map[string]any{"contracts": output.Contracts}, nil
}
