package compiler

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire format: CBOR encoding of the type-checked AST
// ---------------------------------------------------------------------------

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	// Expression trees nest far deeper than the decoder's default limit.
	dm, err := cbor.DecOptions{MaxNestedLevels: 65535}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

type wirePos struct {
	Line   int `cbor:"line,omitempty"`
	Column int `cbor:"col,omitempty"`
}

type wireProgram struct {
	Classes []*wireClass `cbor:"classes"`
}

type wireClass struct {
	Pos        wirePos          `cbor:"pos"`
	File       string           `cbor:"file,omitempty"`
	Name       string           `cbor:"name"`
	Parent     string           `cbor:"parent,omitempty"`
	Attributes []*wireAttribute `cbor:"attrs,omitempty"`
	Methods    []*wireMethod    `cbor:"methods,omitempty"`
}

type wireAttribute struct {
	Pos  wirePos   `cbor:"pos"`
	Name string    `cbor:"name"`
	Type string    `cbor:"type"`
	Init *wireExpr `cbor:"init,omitempty"`
}

type wireMethod struct {
	Pos        wirePos       `cbor:"pos"`
	Name       string        `cbor:"name"`
	Formals    []*wireFormal `cbor:"formals,omitempty"`
	ReturnType string        `cbor:"ret"`
	Body       *wireExpr     `cbor:"body"`
}

type wireFormal struct {
	Pos  wirePos `cbor:"pos"`
	Name string  `cbor:"name"`
	Type string  `cbor:"type"`
}

// wireBinding is a let binding or a case branch. Expr is the initializer
// of a let binding and the body of a case branch.
type wireBinding struct {
	Pos  wirePos   `cbor:"pos"`
	Name string    `cbor:"name"`
	Type string    `cbor:"type"`
	Expr *wireExpr `cbor:"expr,omitempty"`
}

// wireExpr is the flat encoding of every expression kind. Kids holds the
// operands in evaluation order; see the kind constants for the layout.
type wireExpr struct {
	Kind     string         `cbor:"kind"`
	Type     string         `cbor:"type,omitempty"`
	Pos      wirePos        `cbor:"pos"`
	Int      int32          `cbor:"int,omitempty"`
	Str      string         `cbor:"str,omitempty"`
	Bool     bool           `cbor:"bool,omitempty"`
	Name     string         `cbor:"name,omitempty"`
	Scope    string         `cbor:"scope,omitempty"`
	Op       string         `cbor:"op,omitempty"`
	Class    string         `cbor:"class,omitempty"`
	Receiver *wireExpr      `cbor:"recv,omitempty"`
	Kids     []*wireExpr    `cbor:"kids,omitempty"`
	Bindings []*wireBinding `cbor:"bindings,omitempty"`
}

// Expression kinds on the wire.
const (
	kindInt      = "int"
	kindString   = "string"
	kindBool     = "bool"
	kindIdent    = "id"       // Name, Scope
	kindAssign   = "assign"   // Name, Scope, Kids[0] value
	kindArith    = "arith"    // Op, Kids[0] left, Kids[1] right
	kindCompare  = "compare"  // Op, Kids[0] left, Kids[1] right
	kindEqual    = "eq"       // Kids[0] left, Kids[1] right
	kindNegate   = "neg"      // Kids[0]
	kindNot      = "not"      // Kids[0]
	kindIsVoid   = "isvoid"   // Kids[0]
	kindIf       = "if"       // Kids: cond, then, else
	kindWhile    = "while"    // Kids: cond, body
	kindBlock    = "block"    // Kids: expressions
	kindLet      = "let"      // Bindings, Kids[0] body
	kindCase     = "case"     // Kids[0] scrutinee, Bindings with bodies
	kindNew      = "new"      // Class
	kindDispatch = "dispatch" // Receiver (absent for self), Class (static), Name, Kids args
)

// EncodeProgram serializes a program to canonical CBOR.
func EncodeProgram(p *Program) ([]byte, error) {
	w := &wireProgram{}
	for _, c := range p.Classes {
		w.Classes = append(w.Classes, encodeClass(c))
	}
	return cborEncMode.Marshal(w)
}

// DecodeProgram deserializes a program from CBOR.
func DecodeProgram(data []byte) (*Program, error) {
	var w wireProgram
	if err := cborDecMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("compiler: unmarshal program: %w", err)
	}
	p := &Program{}
	for i, wc := range w.Classes {
		c, err := decodeClass(wc)
		if err != nil {
			return nil, fmt.Errorf("compiler: class %d: %w", i, err)
		}
		p.Classes = append(p.Classes, c)
	}
	return p, nil
}

// ReadProgram reads and decodes AST files, concatenating their classes in
// argument order.
func ReadProgram(paths ...string) (*Program, error) {
	p := &Program{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		part, err := DecodeProgram(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p.Classes = append(p.Classes, part.Classes...)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func encodePos(s Span) wirePos {
	return wirePos{Line: s.Start.Line, Column: s.Start.Column}
}

func encodeClass(c *Class) *wireClass {
	wc := &wireClass{Pos: encodePos(c.SpanVal), File: c.File, Name: c.Name, Parent: c.Parent}
	for _, a := range c.Attributes {
		wc.Attributes = append(wc.Attributes, &wireAttribute{
			Pos:  encodePos(a.SpanVal),
			Name: a.Name,
			Type: a.Type,
			Init: encodeExpr(a.Init),
		})
	}
	for _, m := range c.Methods {
		wm := &wireMethod{
			Pos:        encodePos(m.SpanVal),
			Name:       m.Name,
			ReturnType: m.ReturnType,
			Body:       encodeExpr(m.Body),
		}
		for _, f := range m.Formals {
			wm.Formals = append(wm.Formals, &wireFormal{Pos: encodePos(f.SpanVal), Name: f.Name, Type: f.Type})
		}
		wc.Methods = append(wc.Methods, wm)
	}
	return wc
}

func encodeExprs(exprs ...Expr) []*wireExpr {
	out := make([]*wireExpr, len(exprs))
	for i, e := range exprs {
		out[i] = encodeExpr(e)
	}
	return out
}

func encodeExpr(expr Expr) *wireExpr {
	if expr == nil {
		return nil
	}
	w := &wireExpr{Type: expr.StaticType(), Pos: encodePos(expr.Span())}
	switch e := expr.(type) {
	case *IntLiteral:
		w.Kind, w.Int = kindInt, e.Value
	case *StringLiteral:
		w.Kind, w.Str = kindString, e.Value
	case *BoolLiteral:
		w.Kind, w.Bool = kindBool, e.Value
	case *Identifier:
		w.Kind, w.Name, w.Scope = kindIdent, e.Name, e.Scope.String()
	case *Assign:
		w.Kind, w.Name, w.Scope = kindAssign, e.Name, e.Scope.String()
		w.Kids = encodeExprs(e.Value)
	case *Arithmetic:
		w.Kind, w.Op = kindArith, e.Op.String()
		w.Kids = encodeExprs(e.Left, e.Right)
	case *Compare:
		w.Kind, w.Op = kindCompare, e.Op.String()
		w.Kids = encodeExprs(e.Left, e.Right)
	case *Equal:
		w.Kind = kindEqual
		w.Kids = encodeExprs(e.Left, e.Right)
	case *Negate:
		w.Kind = kindNegate
		w.Kids = encodeExprs(e.Operand)
	case *Not:
		w.Kind = kindNot
		w.Kids = encodeExprs(e.Operand)
	case *IsVoid:
		w.Kind = kindIsVoid
		w.Kids = encodeExprs(e.Operand)
	case *If:
		w.Kind = kindIf
		w.Kids = encodeExprs(e.Cond, e.Then, e.Else)
	case *While:
		w.Kind = kindWhile
		w.Kids = encodeExprs(e.Cond, e.Body)
	case *Block:
		w.Kind = kindBlock
		w.Kids = encodeExprs(e.Exprs...)
	case *Let:
		w.Kind = kindLet
		for _, b := range e.Bindings {
			w.Bindings = append(w.Bindings, &wireBinding{
				Pos: encodePos(b.SpanVal), Name: b.Name, Type: b.Type, Expr: encodeExpr(b.Init),
			})
		}
		w.Kids = encodeExprs(e.Body)
	case *Case:
		w.Kind = kindCase
		w.Kids = encodeExprs(e.Expr)
		for _, br := range e.Branches {
			w.Bindings = append(w.Bindings, &wireBinding{
				Pos: encodePos(br.SpanVal), Name: br.Name, Type: br.Type, Expr: encodeExpr(br.Body),
			})
		}
	case *New:
		w.Kind, w.Class = kindNew, e.Class
	case *Dispatch:
		w.Kind, w.Name, w.Class = kindDispatch, e.Method, e.StaticClass
		w.Receiver = encodeExpr(e.Receiver)
		w.Kids = encodeExprs(e.Args...)
	default:
		panic(fmt.Sprintf("compiler: cannot encode %T", expr))
	}
	return w
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func decodeSpan(p wirePos) Span {
	pos := Position{Line: p.Line, Column: p.Column}
	return Span{Start: pos, End: pos}
}

func decodeClass(wc *wireClass) (*Class, error) {
	if wc == nil {
		return nil, fmt.Errorf("missing class")
	}
	c := &Class{SpanVal: decodeSpan(wc.Pos), File: wc.File, Name: wc.Name, Parent: wc.Parent}
	for _, wa := range wc.Attributes {
		init, err := decodeOptional(wa.Init)
		if err != nil {
			return nil, fmt.Errorf("attribute %s.%s: %w", wc.Name, wa.Name, err)
		}
		c.Attributes = append(c.Attributes, &Attribute{
			SpanVal: decodeSpan(wa.Pos), Name: wa.Name, Type: wa.Type, Init: init,
		})
	}
	for _, wm := range wc.Methods {
		body, err := decodeExpr(wm.Body)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", wc.Name, wm.Name, err)
		}
		m := &Method{SpanVal: decodeSpan(wm.Pos), Name: wm.Name, ReturnType: wm.ReturnType, Body: body}
		for _, wf := range wm.Formals {
			m.Formals = append(m.Formals, &Formal{SpanVal: decodeSpan(wf.Pos), Name: wf.Name, Type: wf.Type})
		}
		c.Methods = append(c.Methods, m)
	}
	return c, nil
}

func parseScope(s string) (ScopeKind, error) {
	switch s {
	case "attribute":
		return ScopeAttribute, nil
	case "formal":
		return ScopeFormal, nil
	case "local":
		return ScopeLocal, nil
	case "", "unknown":
		return ScopeUnknown, nil
	}
	return ScopeUnknown, fmt.Errorf("unknown scope %q", s)
}

var arithOps = map[string]ArithOp{"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv}

var relOps = map[string]RelOp{"<": OpLess, "<=": OpLessEq}

func decodeOptional(w *wireExpr) (Expr, error) {
	if w == nil {
		return nil, nil
	}
	return decodeExpr(w)
}

// kids decodes exactly n operands.
func kids(w *wireExpr, n int) ([]Expr, error) {
	if len(w.Kids) != n {
		return nil, fmt.Errorf("%s at line %d: want %d operands, got %d", w.Kind, w.Pos.Line, n, len(w.Kids))
	}
	return decodeExprs(w.Kids)
}

func decodeExprs(ws []*wireExpr) ([]Expr, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make([]Expr, len(ws))
	for i, k := range ws {
		e, err := decodeExpr(k)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func decodeExpr(w *wireExpr) (Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("missing expression")
	}
	span, typ := decodeSpan(w.Pos), w.Type

	switch w.Kind {
	case kindInt:
		return &IntLiteral{SpanVal: span, TypeVal: typ, Value: w.Int}, nil
	case kindString:
		return &StringLiteral{SpanVal: span, TypeVal: typ, Value: w.Str}, nil
	case kindBool:
		return &BoolLiteral{SpanVal: span, TypeVal: typ, Value: w.Bool}, nil
	case kindIdent:
		scope, err := parseScope(w.Scope)
		if err != nil {
			return nil, err
		}
		return &Identifier{SpanVal: span, TypeVal: typ, Name: w.Name, Scope: scope}, nil
	case kindNew:
		return &New{SpanVal: span, TypeVal: typ, Class: w.Class}, nil
	}

	switch w.Kind {
	case kindBlock:
		exprs, err := decodeExprs(w.Kids)
		if err != nil {
			return nil, err
		}
		return &Block{SpanVal: span, TypeVal: typ, Exprs: exprs}, nil
	case kindDispatch:
		recv, err := decodeOptional(w.Receiver)
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(w.Kids)
		if err != nil {
			return nil, err
		}
		return &Dispatch{SpanVal: span, TypeVal: typ, Receiver: recv, StaticClass: w.Class, Method: w.Name, Args: args}, nil
	case kindLet:
		k, err := kids(w, 1)
		if err != nil {
			return nil, err
		}
		let := &Let{SpanVal: span, TypeVal: typ, Body: k[0]}
		for _, b := range w.Bindings {
			init, err := decodeOptional(b.Expr)
			if err != nil {
				return nil, err
			}
			let.Bindings = append(let.Bindings, &LetBinding{SpanVal: decodeSpan(b.Pos), Name: b.Name, Type: b.Type, Init: init})
		}
		return let, nil
	case kindCase:
		k, err := kids(w, 1)
		if err != nil {
			return nil, err
		}
		c := &Case{SpanVal: span, TypeVal: typ, Expr: k[0]}
		for _, b := range w.Bindings {
			body, err := decodeExpr(b.Expr)
			if err != nil {
				return nil, err
			}
			c.Branches = append(c.Branches, &CaseBranch{SpanVal: decodeSpan(b.Pos), Name: b.Name, Type: b.Type, Body: body})
		}
		return c, nil
	}

	arity := map[string]int{
		kindAssign: 1, kindNegate: 1, kindNot: 1, kindIsVoid: 1,
		kindArith: 2, kindCompare: 2, kindEqual: 2, kindWhile: 2,
		kindIf: 3,
	}
	n, ok := arity[w.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown expression kind %q at line %d", w.Kind, w.Pos.Line)
	}
	k, err := kids(w, n)
	if err != nil {
		return nil, err
	}

	switch w.Kind {
	case kindAssign:
		scope, err := parseScope(w.Scope)
		if err != nil {
			return nil, err
		}
		return &Assign{SpanVal: span, TypeVal: typ, Name: w.Name, Scope: scope, Value: k[0]}, nil
	case kindNegate:
		return &Negate{SpanVal: span, TypeVal: typ, Operand: k[0]}, nil
	case kindNot:
		return &Not{SpanVal: span, TypeVal: typ, Operand: k[0]}, nil
	case kindIsVoid:
		return &IsVoid{SpanVal: span, TypeVal: typ, Operand: k[0]}, nil
	case kindArith:
		op, ok := arithOps[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown arithmetic operator %q", w.Op)
		}
		return &Arithmetic{SpanVal: span, TypeVal: typ, Op: op, Left: k[0], Right: k[1]}, nil
	case kindCompare:
		op, ok := relOps[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown comparison operator %q", w.Op)
		}
		return &Compare{SpanVal: span, TypeVal: typ, Op: op, Left: k[0], Right: k[1]}, nil
	case kindEqual:
		return &Equal{SpanVal: span, TypeVal: typ, Left: k[0], Right: k[1]}, nil
	case kindWhile:
		return &While{SpanVal: span, TypeVal: typ, Cond: k[0], Body: k[1]}, nil
	default: // kindIf
		return &If{SpanVal: span, TypeVal: typ, Cond: k[0], Then: k[1], Else: k[2]}, nil
	}
}
