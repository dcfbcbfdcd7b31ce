package solbuild

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// BackendStandardJSON names the solc --standard-json backend.
const BackendStandardJSON = "SolcStandardJSON"

// Config is the validated project configuration the compilation layer consumes.
type Config struct {
	ProjectDir    string         // Directory source paths are relative to
	SourceDirs    []string       // Source roots, directories or single files
	SourceGlob    string         // Pattern applied to files found under directory roots
	Backend       string         // Compiler backend name
	SolcPath      string         // solc executable
	StandardInput map[string]any // Merged on top of the default standard-JSON input
	BuildDir      string         // Build assets, relative to ProjectDir
}

// DefaultConfig returns the configuration of a project rooted at projectDir.
func DefaultConfig(projectDir string) Config {
	return Config{
		ProjectDir: projectDir,
		SourceDirs: []string{"contracts"},
		SourceGlob: DefaultSourceGlob,
		Backend:    BackendStandardJSON,
		SolcPath:   "solc",
		BuildDir:   "build",
	}
}

// ArtifactStorePath returns where the project's artifact store lives.
func (c Config) ArtifactStorePath() string {
	return filepath.Join(resolvePath(c.ProjectDir, c.BuildDir), "cache")
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.ProjectDir == "" {
		errs = append(errs, errors.New("project directory is required"))
	}
	for i, dir := range c.SourceDirs {
		if dir == "" {
			errs = append(errs, fmt.Errorf("compilation.contracts_source_dirs[%d] is empty", i))
		}
	}
	if _, err := filepath.Match(c.SourceGlob, "a.sol"); err != nil {
		errs = append(errs, fmt.Errorf("source file glob %q: %w", c.SourceGlob, err))
	}
	if _, ok := backendFactories[c.Backend]; !ok {
		errs = append(errs, fmt.Errorf("unknown compiler backend %q", c.Backend))
	}
	if err := validateOverride(c.StandardInput); err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			errs = append(errs, ce.Errors...)
		}
	}
	return newConfigurationError(errs...)
}

// Project file keys.
const (
	configSourceDirsKey = "compilation.contracts_source_dirs"
	configBuildDirKey   = "compilation.build_dir"
	configBackendKey    = "compilation.backend.class"
	configGlobKey       = "compilation.backend.settings.source_file_glob_pattern"
	configSolcPathKey   = "compilation.backend.settings.solc_path"
	configStdinKey      = "compilation.backend.settings.stdin"
)

// LoadConfig reads a JSON project file. Missing keys keep their defaults and the
// project directory is the directory holding the file.
//
//	{
//	  "compilation": {
//	    "contracts_source_dirs": ["./contracts"],
//	    "backend": {
//	      "class": "SolcStandardJSON",
//	      "settings": {"stdin": {"settings": {"optimizer": {"runs": 200}}}}
//	    }
//	  }
//	}
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("read project config: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Config{}, newConfigurationError(fmt.Errorf("%s: %w", path, err))
	}

	projectDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig(projectDir)

	var errs []error
	if v, err := GetKey(doc, configSourceDirsKey); err == nil {
		dirs, ok := stringList(v)
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be a list of strings", configSourceDirsKey))
		}
		cfg.SourceDirs = dirs
	}
	stringKeys := []struct {
		key string
		dst *string
	}{
		{configBuildDirKey, &cfg.BuildDir},
		{configBackendKey, &cfg.Backend},
		{configGlobKey, &cfg.SourceGlob},
		{configSolcPathKey, &cfg.SolcPath},
	}
	for _, sk := range stringKeys {
		v, err := GetKey(doc, sk.key)
		if err != nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be a string, got %T", sk.key, v))
			continue
		}
		*sk.dst = s
	}
	if v, err := GetKey(doc, configStdinKey); err == nil {
		stdin, ok := v.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("%s must be an object, got %T", configStdinKey, v))
		}
		cfg.StandardInput = stdin
	}
	if len(errs) > 0 {
		return Config{}, newConfigurationError(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
