/*
Package solbuild compiles a tree of Solidity sources through solc's standard-JSON
interface and caches the resulting contract records until a source file changes.

# Overview

The package treats the compiler as an opaque oracle. It only discovers source
files, assembles the standard-JSON input document, runs solc, flattens the nested
output into one ContractRecord per contract, and decides from file modification
times whether a previous result can be reused.

# Basic Usage

Opening a project:

	cfg, err := solbuild.LoadConfig(afero.NewOsFs(), "solbuild.json")
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	project, err := solbuild.NewProject(ctx, cfg)
	if err != nil {
	    // A *ToolchainVersionError means solc is older than 0.4.18.
	    log.Fatalf("Failed to open project: %v", err)
	}

Reading compiled contracts:

	contracts, err := project.CompiledContracts(ctx)
	if err != nil {
	    log.Fatalf("Compilation failed: %v", err)
	}
	for _, c := range contracts {
	    fmt.Println(c.SourcePath, c.Name, c.Bytecode)
	}

The first call compiles. Later calls return the cached records unless a source
file was modified after the cache was filled.

# Source Discovery

CollectSourceFiles walks every configured directory for files matching the glob
pattern ("*.sol" by default) and includes configured single files as they are.
Paths are relative to the project directory, sorted, and deduplicated: when two
spellings name the same file, the one that sorts last is kept.

# Standard-JSON Input

BuildStandardInput starts from the defaults (Solidity, optimizer enabled with 500
runs), deep-merges the project override, injects the sources, and makes sure the
output selection of every file and contract includes RequiredOutputSelection.
The nested key path helpers HasKey, GetKey and SetKey address the document with
dotted paths where "*" matches every key.

# Artifact Store

An optional ArtifactStore persists compilations on disk keyed by an xxHash of the
exact compiler input, so touching a file without changing it, or restarting the
process, does not run solc again:

	store, err := solbuild.OpenArtifactStore(cfg.ArtifactStorePath())
	if err != nil {
	    log.Fatalf("Failed to open store: %v", err)
	}
	project, err := solbuild.NewProject(ctx, cfg, solbuild.WithArtifactStore(store))

The store uses the following directory structure:

	build/cache/
	├── manifests/
	│   └── [first 2 chars of hash]/
	│       └── [full hash].json
	└── objects/
	    └── [first 2 chars of hash]/
	        └── [full hash]/
	            └── contracts.json

# Error Handling

  - *ConfigurationError: invalid configuration or standard-JSON override
  - *ToolchainVersionError: solc too old, returned by NewProject
  - *CompilerError: solc failed or reported errors
  - ErrCacheMiss: no stored compilation for a key

A compiler run that finds no contracts is not an error; it yields no records.
*/
package solbuild
