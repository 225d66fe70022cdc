package compiler

import (
	"path/filepath"

	"github.com/chazu/coolgen/compiler/asm"
)

// ---------------------------------------------------------------------------
// Codegen: lower expressions to assembly fragments
// ---------------------------------------------------------------------------

// Code is a lowered expression: its fragment and the static type of the
// value it leaves in $a0.
type Code struct {
	Frag *asm.Fragment
	Type string
}

// frag creates a fragment of the session's template group.
func (s *Session) frag(name string) *asm.Fragment {
	if !s.group.Has(name) {
		internalf("template %s is not defined", name)
	}
	return s.group.New(name)
}

// lower converts one expression to code in the given lexical context.
func (s *Session) lower(expr Expr, sc scope) Code {
	var f *asm.Fragment
	switch e := expr.(type) {
	case *IntLiteral:
		f = s.frag("loadLiteral").Add("value", s.Literals.IntConst(e.Value))
	case *StringLiteral:
		f = s.frag("loadLiteral").Add("value", s.Literals.StringConst(e.Value))
	case *BoolLiteral:
		f = s.frag("loadLiteral").Add("value", s.Literals.BoolConst(e.Value))
	case *Identifier:
		f = s.lowerIdentifier(e, sc)
	case *Assign:
		f = s.lowerAssign(e, sc)
	case *Arithmetic:
		f = s.lowerArithmetic(e, sc)
	case *Compare:
		f = s.lowerCompare(e, sc)
	case *Equal:
		f = s.frag("equality").
			Add("leftExpr", s.lower(e.Left, sc).Frag).
			Add("rightExpr", s.lower(e.Right, sc).Frag).
			Add("trueConst", s.Literals.BoolConst(true)).
			Add("falseConst", s.Literals.BoolConst(false)).
			Add("label", s.NewLabel("eq"))
	case *Negate:
		f = s.frag("negate").Add("expr", s.lower(e.Operand, sc).Frag)
	case *Not:
		f = s.lowerTest("not", e.Operand, sc)
	case *IsVoid:
		f = s.lowerTest("isvoid", e.Operand, sc)
	case *If:
		f = s.lowerIf(e, sc)
	case *While:
		f = s.lowerWhile(e, sc)
	case *Block:
		f = s.frag("sequence")
		for _, x := range e.Exprs {
			f.Add("e", s.lower(x, sc).Frag)
		}
	case *Let:
		f = s.lowerLet(e, sc)
	case *Case:
		f = s.lowerCase(e, sc)
	case *New:
		f = s.lowerNew(e)
	case *Dispatch:
		f = s.lowerDispatch(e, sc)
	case nil:
		internalf("missing expression")
	default:
		internalf("unknown expression type %T", expr)
	}
	return Code{Frag: f, Type: expr.StaticType()}
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (s *Session) lowerIdentifier(id *Identifier, sc scope) *asm.Fragment {
	if id.Name == SelfName {
		return s.frag("loadSelf")
	}
	loc := sc.resolve(id.Name, id.Scope)
	return s.frag("loadVar").
		Add("offset", loc.Offset).
		Add("base", loc.Base.Register())
}

func (s *Session) lowerAssign(a *Assign, sc scope) *asm.Fragment {
	value := s.lower(a.Value, sc)
	loc := sc.resolve(a.Name, a.Scope)
	return s.store(value.Frag, loc)
}

// store writes $a0 to loc after evaluating expr (if any). Heap stores are
// reported to the generational collector when it is enabled.
func (s *Session) store(expr *asm.Fragment, loc StorageLocation) *asm.Fragment {
	f := s.frag("storeVar").
		Add("expr", expr).
		Add("offset", loc.Offset).
		Add("base", loc.Base.Register())
	if loc.Base == BaseSelf && s.Options.GC == GCGenerational {
		f.Add("gcAssign", "1")
	}
	return f
}

// defaultValue loads the initial value of an uninitialized variable of
// the given type. Reference types start out void.
func (s *Session) defaultValue(typ string) *asm.Fragment {
	switch typ {
	case IntClass:
		return s.frag("loadLiteral").Add("value", s.Literals.IntConst(0))
	case BoolClass:
		return s.frag("loadLiteral").Add("value", s.Literals.BoolConst(false))
	case StringClass:
		return s.frag("loadLiteral").Add("value", s.Literals.StringConst(""))
	}
	return s.frag("loadVoid")
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var arithMnemonics = map[ArithOp]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
}

func (s *Session) lowerArithmetic(e *Arithmetic, sc scope) *asm.Fragment {
	op, ok := arithMnemonics[e.Op]
	if !ok {
		internalf("unknown arithmetic operator %d", e.Op)
	}
	return s.frag("arithmetic").
		Add("leftExpr", s.lower(e.Left, sc).Frag).
		Add("rightExpr", s.lower(e.Right, sc).Frag).
		Add("op", op)
}

func (s *Session) lowerCompare(e *Compare, sc scope) *asm.Fragment {
	op := "blt"
	if e.Op == OpLessEq {
		op = "ble"
	}
	return s.frag("compare").
		Add("leftExpr", s.lower(e.Left, sc).Frag).
		Add("rightExpr", s.lower(e.Right, sc).Frag).
		Add("op", op).
		Add("trueConst", s.Literals.BoolConst(true)).
		Add("falseConst", s.Literals.BoolConst(false)).
		Add("label", s.NewLabel("compare"))
}

// lowerTest handles the unary boolean producers not and isvoid.
func (s *Session) lowerTest(name string, operand Expr, sc scope) *asm.Fragment {
	return s.frag(name).
		Add("expr", s.lower(operand, sc).Frag).
		Add("trueConst", s.Literals.BoolConst(true)).
		Add("falseConst", s.Literals.BoolConst(false)).
		Add("label", s.NewLabel(name))
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func (s *Session) lowerIf(e *If, sc scope) *asm.Fragment {
	cond := s.lower(e.Cond, sc)
	then := s.lower(e.Then, sc)
	els := s.lower(e.Else, sc)
	return s.frag("if").
		Add("condExpr", cond.Frag).
		Add("thenExpr", then.Frag).
		Add("elseExpr", els.Frag).
		Add("elseLabel", s.NewLabel("else")).
		Add("endLabel", s.NewLabel("endif"))
}

func (s *Session) lowerWhile(e *While, sc scope) *asm.Fragment {
	cond := s.lower(e.Cond, sc)
	body := s.lower(e.Body, sc)
	return s.frag("while").
		Add("condExpr", cond.Frag).
		Add("body", body.Frag).
		Add("loopLabel", s.NewLabel("while")).
		Add("endLabel", s.NewLabel("pool"))
}

// lowerLet initializes each binding in order, storing it in its planned
// frame slot; every initializer sees the bindings before it.
func (s *Session) lowerLet(e *Let, sc scope) *asm.Fragment {
	inits := s.frag("sequence")
	inner := sc
	for _, b := range e.Bindings {
		var value *asm.Fragment
		if b.Init != nil {
			value = s.lower(b.Init, inner).Frag
		} else {
			value = s.defaultValue(b.Type)
		}
		depth := sc.frame.depth(b)
		inits.Add("e", s.store(value, LocalLocation(depth)))
		inner = inner.bind(b.Name, depth)
	}
	return s.frag("let").
		Add("inits", inits).
		Add("body", s.lower(e.Body, inner).Frag)
}

// lowerCase tests the runtime tag of the scrutinee against the tags of
// every class conforming to each branch type, in branch order.
func (s *Session) lowerCase(e *Case, sc scope) *asm.Fragment {
	expr := s.lower(e.Expr, sc)
	f := s.frag("case").
		Add("expr", expr.Frag).
		Add("label", s.NewLabel("case")).
		Add("fileName", s.fileConst(sc)).
		Add("line", e.Span().Start.Line)
	end := s.NewLabel("esac")

	if len(e.Branches) > 0 {
		tests := s.frag("sequence")
		branches := s.frag("sequence")
		for _, br := range e.Branches {
			target := s.NewLabel("branch")
			cls := s.Classes.MustLookup(br.Type)
			for _, tag := range s.Classes.ConformingTags(cls) {
				tests.Add("e", s.frag("caseTest").Add("tag", tag).Add("target", target))
			}
			depth := sc.frame.depth(br)
			loc := LocalLocation(depth)
			body := s.lower(br.Body, sc.bind(br.Name, depth))
			branches.Add("e", s.frag("caseBranch").
				Add("label", target).
				Add("offset", loc.Offset).
				Add("body", body.Frag).
				Add("endLabel", end))
		}
		f.Add("tests", tests).Add("branches", branches)
	}
	return f.Add("endLabel", end)
}

// ---------------------------------------------------------------------------
// Objects and dispatch
// ---------------------------------------------------------------------------

func (s *Session) lowerNew(e *New) *asm.Fragment {
	if e.Class == SelfType {
		return s.frag("newSelfType")
	}
	cls := s.Classes.MustLookup(e.Class)
	return s.frag("new").Add("className", cls.Name)
}

// lowerDispatch pushes the arguments last-to-first, evaluates the receiver
// and calls through the slot of the method in the receiver's static type.
func (s *Session) lowerDispatch(e *Dispatch, sc scope) *asm.Fragment {
	f := s.frag("dispatch")

	if len(e.Args) > 0 {
		params := s.frag("sequence")
		for i := len(e.Args) - 1; i >= 0; i-- {
			params.Add("e", s.frag("push").Add("expr", s.lower(e.Args[i], sc).Frag))
		}
		f.Add("params", params)
	}

	var target *ClassDescriptor
	if e.Receiver == nil {
		f.Add("receiver", s.frag("loadSelf"))
		target = sc.class
	} else {
		recv := s.lower(e.Receiver, sc)
		f.Add("receiver", recv.Frag)
		target = s.staticClass(recv.Type, sc)
	}
	if e.StaticClass != "" {
		target = s.Classes.MustLookup(e.StaticClass)
		f.Add("staticClass", target.Name)
	}

	slot := target.MethodSlot(e.Method)
	if slot < 0 {
		internalf("class %s has no method %s", target.Name, e.Method)
	}
	return f.
		Add("offset", slot*WordSize).
		Add("label", s.NewLabel("dispatch")).
		Add("fileName", s.fileConst(sc)).
		Add("line", e.Span().Start.Line)
}

// staticClass maps a static type to its layout, resolving SELF_TYPE to the
// class being compiled.
func (s *Session) staticClass(typ string, sc scope) *ClassDescriptor {
	if typ == SelfType || typ == "" {
		return sc.class
	}
	return s.Classes.MustLookup(typ)
}

// UnknownFile names the source of classes that carry no file name.
const UnknownFile = "<unknown>"

// fileConst returns the string constant naming the current source file.
func (s *Session) fileConst(sc scope) string {
	if sc.file == "" {
		return s.Literals.StringConst(UnknownFile)
	}
	return s.Literals.StringConst(filepath.Base(sc.file))
}
