// coolgen CLI - compiles type-checked COOL ASTs to SPIM assembly
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/coolgen/compiler"
	"github.com/chazu/coolgen/manifest"
	"github.com/chazu/coolgen/symdb"
)

func main() {
	output := flag.String("o", "", "Assembly output file (default: manifest or stdout)")
	dbPath := flag.String("db", "", "Write class layouts to this SQLite database")
	gc := flag.String("gc", "", "Garbage collector: none, generational, stop-and-copy")
	gcTest := flag.Bool("gc-test", false, "Collect on every allocation")
	verify := flag.Bool("verify", false, "Check AST preconditions before compiling")
	layout := flag.Bool("layout", false, "Print class layouts instead of assembly")
	verbose := flag.Int("v", 0, "Log verbosity (0-4)")
	dir := flag.String("C", ".", "Directory to search for "+manifest.FileName)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: coolgen [options] [file.ast ...]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles type-checked COOL programs to MIPS assembly for SPIM.\n")
		fmt.Fprintf(os.Stderr, "Without file arguments, sources are taken from %s.\n\n", manifest.FileName)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  coolgen hello.ast                 # Assembly to stdout\n")
		fmt.Fprintf(os.Stderr, "  coolgen -o hello.s -gc generational hello.ast\n")
		fmt.Fprintf(os.Stderr, "  coolgen -layout hello.ast         # Show tags, offsets and slots\n")
		fmt.Fprintf(os.Stderr, "  coolgen -C ./project              # Build from coolgen.toml\n")
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fatalf("Error loading manifest: %v", err)
	}

	paths := flag.Args()
	if len(paths) == 0 {
		if m == nil {
			flag.Usage()
			os.Exit(1)
		}
		paths, err = m.SourcePaths()
		if err != nil {
			fatalf("Error: %v", err)
		}
		if len(paths) == 0 {
			fatalf("Error: %s lists no sources", manifest.FileName)
		}
	}

	opts, err := options(m, *gc, *gcTest)
	if err != nil {
		fatalf("Error: %v", err)
	}

	prog, err := compiler.ReadProgram(paths...)
	if err != nil {
		fatalf("Error: %v", err)
	}

	if *verify {
		failed := false
		for _, msg := range compiler.Verify(prog) {
			fmt.Fprintln(os.Stderr, msg)
			if !strings.HasPrefix(msg, "warning:") {
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
	}

	session := compiler.NewSession(opts)

	if *layout {
		if err := session.Layout(prog); err != nil {
			fatalf("Error: %v", err)
		}
		printLayouts(session.Classes)
		return
	}

	asmText, err := session.Compile(prog)
	if err != nil {
		fatalf("Compile error: %v", err)
	}

	out, db := outputPaths(m, len(flag.Args()) == 0, *output, *dbPath)
	if out == "" {
		fmt.Print(asmText)
	} else if err := os.WriteFile(out, []byte(asmText), 0o644); err != nil {
		fatalf("Error writing %s: %v", out, err)
	}

	if db != "" {
		if err := symdb.Write(context.Background(), db, session.ID, session.Classes); err != nil {
			fatalf("Error writing symbols: %v", err)
		}
	}
}

// outputPaths picks the assembly and symbol database paths. Manifest
// outputs apply only when the sources also came from the manifest.
func outputPaths(m *manifest.Manifest, fromManifest bool, asmFlag, dbFlag string) (asmPath, dbPath string) {
	asmPath, dbPath = asmFlag, dbFlag
	if m == nil || !fromManifest {
		return asmPath, dbPath
	}
	if asmPath == "" {
		asmPath = m.AssemblyPath()
	}
	if dbPath == "" {
		dbPath = m.SymbolsPath()
	}
	return asmPath, dbPath
}

// options merges manifest codegen settings with command-line overrides.
func options(m *manifest.Manifest, gc string, gcTest bool) (compiler.Options, error) {
	var opts compiler.Options
	if gc == "" && m != nil {
		gc = m.Codegen.GC
	}
	if gc != "" {
		mode, err := compiler.ParseGCMode(gc)
		if err != nil {
			return opts, err
		}
		opts.GC = mode
	}
	opts.GCTest = gcTest || (m != nil && m.Codegen.GCTest)
	return opts, nil
}

func printLayouts(ct *compiler.ClassTable) {
	for _, c := range ct.All() {
		parent := "-"
		if c.Parent != nil {
			parent = c.Parent.Name
		}
		fmt.Printf("%s  tag=%d  parent=%s  size=%d\n", c.Name, c.Tag, parent, c.Size())
		for _, a := range c.Attributes() {
			fmt.Printf("    attr   %-4d %s : %s  (%s)\n", a.Offset, a.Name, a.Type, a.Class)
		}
		for _, e := range c.DispatchTable() {
			fmt.Printf("    method %-4d %s\n", e.Slot, e.Label())
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
