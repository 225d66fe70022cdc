package compiler

import (
	"regexp"
	"strings"
	"testing"
)

func compileOK(t *testing.T, p *Program, opts Options) string {
	t.Helper()
	out, err := Compile(p, opts)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return out
}

var labelDef = regexp.MustCompile(`(?m)^([A-Za-z_][A-Za-z0-9_.]*):`)

func TestCompileHelloSectionOrder(t *testing.T) {
	out := compileOK(t, helloProgram(), Options{})

	order := []string{
		"_int_tag:",
		"_MemMgr_INITIALIZER:",
		"int_const0:",
		"bool_const0:",
		"class_nameTab:",
		"class_objTab:",
		"Object_protObj:",
		"Main_protObj:",
		"Object_dispTab:",
		"Main_dispTab:",
		"heap_start:",
		"\t.text",
		"Object_init:",
		"Main_init:",
		"Main.main:",
	}
	last := -1
	for _, marker := range order {
		i := strings.Index(out, marker)
		if i < 0 {
			t.Fatalf("output lacks %q", marker)
		}
		if i < last {
			t.Errorf("%q appears out of order", marker)
		}
		last = i
	}
}

func TestCompileHelloContents(t *testing.T) {
	out := compileOK(t, helloProgram(), Options{})

	wants := []string{
		"\t.word\t2\n", // _int_tag
		"_MemMgr_INITIALIZER:\n\t.word\t_NoGC_Init",
		"\t.asciiz\t\"Hello, World.\\n\"",
		"Main_protObj:\n\t.word\t5\n\t.word\t3\n\t.word\tMain_dispTab",
		"Main_dispTab:\n\t.word\tObject.abort",
		"\t.word\tIO.out_string",
		"\t.word\tMain.main",
		"Main_init:\n\taddiu\t$sp $sp -12",
		"\tjal\tIO_init",
		"\tlw\t$t1 8($a0)\n\tlw\t$t1 12($t1)\n\tjalr\t$t1",
		"\tjal\t_dispatch_abort",
		"\tli\t$t1 3\n",
		"String_protObj:\n\t.word\t3\n\t.word\t5\n\t.word\tString_dispTab\n\t.word\tint_const0\n\t.asciiz\t\"\"",
		"Int_protObj:\n\t.word\t2\n\t.word\t4\n\t.word\tInt_dispTab\n\t.word\t0",
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
}

func TestClassNameTableInTagOrder(t *testing.T) {
	s := NewSession(Options{})
	out, err := s.Compile(helloProgram())
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	start := strings.Index(out, "class_nameTab:\n")
	end := strings.Index(out, "class_objTab:")
	lines := strings.Split(strings.TrimRight(out[start+len("class_nameTab:\n"):end], "\n"), "\n")
	if len(lines) != s.Classes.Len() {
		t.Fatalf("class_nameTab has %d entries, want %d", len(lines), s.Classes.Len())
	}
	for tag, line := range lines {
		want := "\t.word\t" + s.Literals.StringConst(s.Classes.ByTag(tag).Name)
		if line != want {
			t.Errorf("class_nameTab[%d] = %q, want %q", tag, line, want)
		}
	}
}

func TestLabelsUniqueProgramWide(t *testing.T) {
	cond := func() Expr { return less(intLit(1), intLit(2)) }
	ifExpr := func() Expr {
		return &If{SpanVal: at(1), TypeVal: IntClass, Cond: cond(), Then: intLit(1), Else: intLit(2)}
	}
	body := block(
		ifExpr(),
		ifExpr(),
		&While{SpanVal: at(1), TypeVal: ObjectClass, Cond: cond(), Body: intLit(0)},
		&Equal{SpanVal: at(1), TypeVal: BoolClass, Left: intLit(1), Right: intLit(1)},
		&Not{SpanVal: at(1), TypeVal: BoolClass, Operand: boolLit(true)},
		&IsVoid{SpanVal: at(1), TypeVal: BoolClass, Operand: self()},
		call(4, nil, "other", IntClass),
		call(5, nil, "other", IntClass),
	)
	p := &Program{Classes: []*Class{
		class("Main", "",
			method("main", IntClass, body),
			method("other", IntClass, ifExpr()),
		),
	}}
	out := compileOK(t, p, Options{})

	seen := map[string]bool{}
	for _, m := range labelDef.FindAllStringSubmatch(out, -1) {
		if seen[m[1]] {
			t.Errorf("label %s defined twice", m[1])
		}
		seen[m[1]] = true
	}
	if len(seen) == 0 {
		t.Fatal("no labels found")
	}
}

func TestNewLabelCounter(t *testing.T) {
	s := NewSession(Options{})
	if s.Labels() != 0 {
		t.Fatalf("fresh session has %d labels", s.Labels())
	}
	if got := s.NewLabel("else"); got != "else0" {
		t.Errorf("first label = %q, want else0", got)
	}
	if got := s.NewLabel("endif"); got != "endif1" {
		t.Errorf("second label = %q, want endif1", got)
	}
	if s.Labels() != 2 {
		t.Errorf("Labels() = %d, want 2", s.Labels())
	}
}

func TestLiteralsSharedAcrossProgram(t *testing.T) {
	p := &Program{Classes: []*Class{
		class("Main", IOClass,
			method("main", SelfType, block(
				call(2, nil, "out_string", SelfType, strLit("twice")),
				call(3, nil, "out_string", SelfType, strLit("twice")),
				call(4, nil, "out_int", SelfType, intLit(42)),
				call(5, nil, "out_int", SelfType, intLit(42)),
			)),
		),
	}}
	out := compileOK(t, p, Options{})
	if n := strings.Count(out, "\"twice\""); n != 1 {
		t.Errorf("string literal emitted %d times, want 1", n)
	}
	if n := strings.Count(out, "\t.word\t42\n"); n != 1 {
		t.Errorf("int literal emitted %d times, want 1", n)
	}
}

func TestGCOptions(t *testing.T) {
	p := &Program{Classes: []*Class{
		class("Main", "",
			attr("n", IntClass, intLit(1)),
			method("main", IntClass, assign("n", ScopeAttribute, intLit(2))),
		),
	}}

	out := compileOK(t, p, Options{})
	if strings.Contains(out, "_GenGC_Assign") {
		t.Error("no-GC output calls _GenGC_Assign")
	}

	out = compileOK(t, p, Options{GC: GCGenerational, GCTest: true})
	if n := strings.Count(out, "\tjal\t_GenGC_Assign"); n != 2 {
		t.Errorf("_GenGC_Assign calls = %d, want 2 (init and assignment)", n)
	}
	if !strings.Contains(out, "_MemMgr_INITIALIZER:\n\t.word\t_GenGC_Init") {
		t.Error("generational collector not selected")
	}
	if !strings.Contains(out, "_MemMgr_TEST:\n\t.word\t1") {
		t.Error("GC test mode not enabled")
	}
}

func TestParseGCMode(t *testing.T) {
	tests := []struct {
		in   string
		want GCMode
		ok   bool
	}{
		{"", GCNone, true},
		{"none", GCNone, true},
		{"generational", GCGenerational, true},
		{"stop-and-copy", GCStopAndCopy, true},
		{"mark-sweep", GCNone, false},
	}
	for _, tt := range tests {
		got, err := ParseGCMode(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseGCMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestCompileReportsInternalError(t *testing.T) {
	p := &Program{Classes: []*Class{
		class("Main", "",
			method("main", IntClass, ident("nope", ScopeFormal, IntClass)),
		),
	}}
	_, err := Compile(p, Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*InternalError); !ok {
		t.Errorf("error type = %T, want *InternalError", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error %q does not name the formal", err)
	}
}

func TestSessionCompilesOnce(t *testing.T) {
	s := NewSession(Options{})
	if _, err := s.Compile(helloProgram()); err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := s.Compile(helloProgram()); err == nil {
		t.Error("second Compile on one session should fail")
	}
}
