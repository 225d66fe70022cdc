// Package manifest handles coolgen.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "coolgen.toml"

// Manifest represents a coolgen.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Output  Output  `toml:"output"`
	Codegen Codegen `toml:"codegen"`

	// Dir is the directory containing the coolgen.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where the type-checked AST files come from.
type Source struct {
	Files []string `toml:"files"`
	Dirs  []string `toml:"dirs"` // every *.ast file, sorted by name
}

// Output configures generated artifacts.
type Output struct {
	Assembly string `toml:"assembly"`
	Symbols  string `toml:"symbols"` // empty disables the symbol database
}

// Codegen configures code generation.
type Codegen struct {
	GC     string `toml:"gc"`
	GCTest bool   `toml:"gc-test"`
}

// Load parses a coolgen.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.Output.Assembly == "" {
		m.Output.Assembly = m.Project.Name + ".s"
	}
	if m.Codegen.GC == "" {
		m.Codegen.GC = "none"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a coolgen.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourcePaths returns absolute paths of all AST inputs: the listed files
// in order, then the *.ast files of each source directory.
func (m *Manifest) SourcePaths() ([]string, error) {
	var paths []string
	for _, f := range m.Source.Files {
		paths = append(paths, m.path(f))
	}
	for _, d := range m.Source.Dirs {
		matches, err := filepath.Glob(filepath.Join(m.path(d), "*.ast"))
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", d, err)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}

// AssemblyPath returns the absolute path of the assembly output.
func (m *Manifest) AssemblyPath() string {
	return m.path(m.Output.Assembly)
}

// SymbolsPath returns the absolute path of the symbol database, or "".
func (m *Manifest) SymbolsPath() string {
	if m.Output.Symbols == "" {
		return ""
	}
	return m.path(m.Output.Symbols)
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
