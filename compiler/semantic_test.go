package compiler

import (
	"strings"
	"testing"
)

func hasMessage(msgs []string, parts ...string) bool {
	for _, m := range msgs {
		found := true
		for _, p := range parts {
			if !strings.Contains(m, p) {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

func TestVerifyCleanProgram(t *testing.T) {
	if errs := Verify(everyKind()); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if errs := Verify(chain()); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestVerifyHierarchy(t *testing.T) {
	mainClass := func() *Class { return class("Main", "", method("main", IntClass, intLit(0))) }
	tests := []struct {
		name    string
		classes []*Class
		want    []string
	}{
		{"undefined parent", []*Class{class("A", "Nope"), mainClass()}, []string{"undefined class Nope"}},
		{"duplicate", []*Class{class("A", ""), class("A", ""), mainClass()}, []string{"A is already defined"}},
		{"builtin", []*Class{class("String", ""), mainClass()}, []string{"built-in class String"}},
		{"value parent", []*Class{class("A", IntClass), mainClass()}, []string{"cannot inherit from Int"}},
		{"cycle", []*Class{class("A", "B"), class("B", "A"), mainClass()}, []string{"inheritance cycle"}},
		{"no main", []*Class{class("A", "")}, []string{"class Main is not defined"}},
		{"no main method", []*Class{class("Main", "")}, []string{"has no method main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Verify(&Program{Classes: tt.classes})
			if !hasMessage(errs, tt.want...) {
				t.Errorf("errors %v lack %v", errs, tt.want)
			}
		})
	}
}

func TestVerifyIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		body Expr
		want string
	}{
		{"unclassified", ident("x", ScopeUnknown, IntClass), "no scope classification"},
		{"unknown formal", ident("z", ScopeFormal, IntClass), "z is not a formal"},
		{"unknown attribute", ident("q", ScopeAttribute, IntClass), "has no attribute q"},
		{"unbound local", ident("t", ScopeLocal, IntClass), "local t is not bound"},
		{"assign self", assign(SelfName, ScopeLocal, intLit(1)), "cannot assign to self"},
		{"local out of scope", block(
			let1("t", IntClass, nil, ident("t", ScopeLocal, IntClass)),
			ident("t", ScopeLocal, IntClass),
		), "local t is not bound"},
		{"undefined new", newObj("Ghost"), "undefined type Ghost"},
		{"missing method", call(4, nil, "fly", IntClass), "has no method fly"},
		{"bad static class", &Dispatch{SpanVal: at(5), TypeVal: IntClass, Receiver: self(), StaticClass: "Ghost", Method: "abort"},
			"undefined class Ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Program{Classes: []*Class{
				class("Main", "", method("main", IntClass, tt.body, formal("a", IntClass))),
			}}
			errs := Verify(p)
			if !hasMessage(errs, tt.want) {
				t.Errorf("errors %v lack %q", errs, tt.want)
			}
		})
	}
}

func TestVerifyInheritedFeatures(t *testing.T) {
	p := &Program{Classes: []*Class{
		class("A", "", attr("n", IntClass, nil), method("get", IntClass, ident("n", ScopeAttribute, IntClass))),
		class("Main", "A", method("main", IntClass, block(
			assign("n", ScopeAttribute, intLit(3)),
			call(2, nil, "get", IntClass),
		))),
	}}
	if errs := Verify(p); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestVerifyDuplicateFeatures(t *testing.T) {
	p := &Program{Classes: []*Class{
		class("A", "", attr("n", IntClass, nil)),
		class("Main", "A",
			attr("n", IntClass, nil),
			attr("m", IntClass, nil),
			attr("m", IntClass, nil),
			method("main", IntClass, intLit(0), formal("x", IntClass), formal("x", IntClass)),
			method("main", IntClass, intLit(0)),
		),
	}}
	errs := Verify(p)
	for _, want := range []string{
		"redefines an inherited attribute",
		"attribute m is declared twice",
		"formal x is declared twice",
		"method main is declared twice",
	} {
		if !hasMessage(errs, want) {
			t.Errorf("errors %v lack %q", errs, want)
		}
	}
}

func TestVerifyUnreachableCaseBranch(t *testing.T) {
	e := &Case{
		SpanVal: at(3),
		TypeVal: IntClass,
		Expr:    intLit(1),
		Branches: []*CaseBranch{
			{SpanVal: at(4), Name: "o", Type: ObjectClass, Body: intLit(0)},
			{SpanVal: at(5), Name: "i", Type: IntClass, Body: ident("i", ScopeLocal, IntClass)},
		},
	}
	p := &Program{Classes: []*Class{class("Main", "", method("main", IntClass, e))}}
	errs := Verify(p)
	if !hasMessage(errs, "warning: line 5", "unreachable") {
		t.Errorf("errors %v lack unreachable warning", errs)
	}
}

func TestVerifyPositionInErrors(t *testing.T) {
	p := &Program{Classes: []*Class{
		class("Main", "", method("main", IntClass, call(42, nil, "nope", IntClass))),
	}}
	if !hasMessage(Verify(p), "line 42, column") {
		t.Errorf("expected position information, got %v", Verify(p))
	}
}
