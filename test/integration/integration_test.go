package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/coolgen/compiler"
	"github.com/chazu/coolgen/manifest"
	"github.com/chazu/coolgen/symdb"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

func line(n int) compiler.Span {
	return compiler.Span{Start: compiler.Position{Line: n}, End: compiler.Position{Line: n}}
}

// counterClass is split into its own AST file to exercise concatenation.
func counterClass() *compiler.Class {
	n := &compiler.Identifier{SpanVal: line(4), TypeVal: compiler.IntClass, Name: "n", Scope: compiler.ScopeAttribute}
	one := &compiler.IntLiteral{SpanVal: line(4), TypeVal: compiler.IntClass, Value: 1}
	return &compiler.Class{
		SpanVal: line(1),
		File:    "counter.cl",
		Name:    "Counter",
		Attributes: []*compiler.Attribute{{
			SpanVal: line(2), Name: "n", Type: compiler.IntClass,
			Init: &compiler.IntLiteral{SpanVal: line(2), TypeVal: compiler.IntClass, Value: 0},
		}},
		Methods: []*compiler.Method{
			{SpanVal: line(3), Name: "inc", ReturnType: compiler.SelfType,
				Body: &compiler.Block{SpanVal: line(4), TypeVal: compiler.SelfType, Exprs: []compiler.Expr{
					&compiler.Assign{SpanVal: line(4), TypeVal: compiler.IntClass, Name: "n", Scope: compiler.ScopeAttribute,
						Value: &compiler.Arithmetic{SpanVal: line(4), TypeVal: compiler.IntClass, Op: compiler.OpAdd, Left: n, Right: one}},
					&compiler.Identifier{SpanVal: line(5), TypeVal: compiler.SelfType, Name: compiler.SelfName},
				}}},
			{SpanVal: line(7), Name: "value", ReturnType: compiler.IntClass,
				Body: &compiler.Identifier{SpanVal: line(7), TypeVal: compiler.IntClass, Name: "n", Scope: compiler.ScopeAttribute}},
		},
	}
}

func mainClass() *compiler.Class {
	counter := &compiler.New{SpanVal: line(3), TypeVal: "Counter", Class: "Counter"}
	inc := &compiler.Dispatch{SpanVal: line(3), TypeVal: "Counter", Receiver: counter, Method: "inc"}
	value := &compiler.Dispatch{SpanVal: line(3), TypeVal: compiler.IntClass, Receiver: inc, Method: "value"}
	return &compiler.Class{
		SpanVal: line(1),
		File:    "main.cl",
		Name:    "Main",
		Parent:  compiler.IOClass,
		Methods: []*compiler.Method{{
			SpanVal: line(2), Name: "main", ReturnType: compiler.SelfType,
			Body: &compiler.Dispatch{SpanVal: line(3), TypeVal: compiler.SelfType, Method: "out_int",
				Args: []compiler.Expr{value}},
		}},
	}
}

func writeAST(t *testing.T, path string, classes ...*compiler.Class) {
	t.Helper()
	data, err := compiler.EncodeProgram(&compiler.Program{Classes: classes})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// setupProject writes a coolgen.toml project with two AST files.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "ast"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeAST(t, filepath.Join(dir, "ast", "1-counter.ast"), counterClass())
	writeAST(t, filepath.Join(dir, "ast", "2-main.ast"), mainClass())

	toml := `[project]
name = "counter"

[source]
dirs = ["ast"]

[output]
symbols = "counter.db"

[codegen]
gc = "generational"
`
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

// build runs the coolgen pipeline for a project directory.
func build(t *testing.T, dir string) (*compiler.Session, string, *manifest.Manifest) {
	t.Helper()
	m, err := manifest.FindAndLoad(dir)
	if err != nil || m == nil {
		t.Fatalf("FindAndLoad: %v, %v", m, err)
	}
	paths, err := m.SourcePaths()
	if err != nil {
		t.Fatalf("SourcePaths: %v", err)
	}
	prog, err := compiler.ReadProgram(paths...)
	if err != nil {
		t.Fatalf("ReadProgram: %v", err)
	}
	if errs := compiler.Verify(prog); len(errs) != 0 {
		t.Fatalf("Verify: %v", errs)
	}
	gc, err := compiler.ParseGCMode(m.Codegen.GC)
	if err != nil {
		t.Fatal(err)
	}
	s := compiler.NewSession(compiler.Options{GC: gc, GCTest: m.Codegen.GCTest})
	out, err := s.Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return s, out, m
}

// ---------------------------------------------------------------------------
// Pipeline tests
// ---------------------------------------------------------------------------

func TestProjectBuild(t *testing.T) {
	_, out, m := build(t, setupProject(t))

	if m.AssemblyPath() != filepath.Join(m.Dir, "counter.s") {
		t.Errorf("AssemblyPath = %q", m.AssemblyPath())
	}
	for _, want := range []string{
		"Counter_protObj:",
		"Counter_dispTab:",
		"Counter.inc:",
		"Counter.value:",
		"Main.main:",
		"\tjal\t_GenGC_Assign",
		"_MemMgr_INITIALIZER:\n\t.word\t_GenGC_Init",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("assembly lacks %q", want)
		}
	}
	// Sources are concatenated in file name order, so Counter gets tag 5.
	if !strings.Contains(out, "Counter_protObj:\n\t.word\t5\n") {
		t.Error("Counter does not carry tag 5")
	}
	if strings.Index(out, "Counter_protObj:") > strings.Index(out, "Main_protObj:") {
		t.Error("prototype objects out of declaration order")
	}
}

func TestProjectSymbols(t *testing.T) {
	ctx := context.Background()
	s, _, m := build(t, setupProject(t))

	if err := symdb.Write(ctx, m.SymbolsPath(), s.ID, s.Classes); err != nil {
		t.Fatalf("symdb.Write: %v", err)
	}
	db, err := symdb.Open(m.SymbolsPath())
	if err != nil {
		t.Fatalf("symdb.Open: %v", err)
	}
	defer db.Close()

	c, err := db.ClassByTag(ctx, 6)
	if err != nil {
		t.Fatalf("ClassByTag: %v", err)
	}
	if c.Name != "Main" || c.Parent != compiler.IOClass {
		t.Errorf("tag 6 = %+v, want Main inheriting IO", c)
	}

	methods, err := db.Methods(ctx, "Counter")
	if err != nil {
		t.Fatalf("Methods: %v", err)
	}
	var names []string
	for _, m := range methods {
		names = append(names, m.Name)
	}
	if got := strings.Join(names, ","); got != "abort,type_name,copy,inc,value" {
		t.Errorf("Counter dispatch = %s", got)
	}
}

func TestRoundTripPreservesOutput(t *testing.T) {
	direct := &compiler.Program{Classes: []*compiler.Class{counterClass(), mainClass()}}
	want, err := compiler.NewSession(compiler.Options{}).Compile(direct)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "all.ast")
	writeAST(t, path, counterClass(), mainClass())
	prog, err := compiler.ReadProgram(path)
	if err != nil {
		t.Fatalf("ReadProgram: %v", err)
	}
	got, err := compiler.NewSession(compiler.Options{}).Compile(prog)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got != want {
		t.Error("assembly differs after a CBOR round trip")
	}
}
