package main

import (
	"path/filepath"
	"testing"

	"github.com/chazu/coolgen/compiler"
	"github.com/chazu/coolgen/manifest"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Dir:    "/proj",
		Output: manifest.Output{Assembly: "out/prog.s", Symbols: "out/prog.db"},
	}
}

func TestOutputPaths(t *testing.T) {
	m := testManifest()
	tests := []struct {
		name         string
		m            *manifest.Manifest
		fromManifest bool
		asmFlag      string
		dbFlag       string
		wantAsm      string
		wantDB       string
	}{
		{"no manifest", nil, true, "", "", "", ""},
		{"manifest sources", m, true, "", "", filepath.Join("/proj", "out/prog.s"), filepath.Join("/proj", "out/prog.db")},
		{"flags override", m, true, "a.s", "a.db", "a.s", "a.db"},
		{"command line sources", m, false, "", "", "", ""},
		{"command line sources with flags", m, false, "a.s", "a.db", "a.s", "a.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asmPath, dbPath := outputPaths(tt.m, tt.fromManifest, tt.asmFlag, tt.dbFlag)
			if asmPath != tt.wantAsm {
				t.Errorf("assembly = %q, want %q", asmPath, tt.wantAsm)
			}
			if dbPath != tt.wantDB {
				t.Errorf("symbols = %q, want %q", dbPath, tt.wantDB)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	m := testManifest()
	m.Codegen = manifest.Codegen{GC: "generational", GCTest: true}

	opts, err := options(m, "", false)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.GC != compiler.GCGenerational || !opts.GCTest {
		t.Errorf("manifest options = %+v", opts)
	}

	opts, err = options(m, "none", false)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.GC != compiler.GCNone {
		t.Errorf("flag did not override manifest gc: %+v", opts)
	}

	if _, err := options(nil, "bogus", false); err == nil {
		t.Error("expected error for unknown collector")
	}
}
