package compiler

// AST builders for tests. Positions carry only a line number.

func at(line int) Span {
	return Span{Start: Position{Line: line}, End: Position{Line: line}}
}

func intLit(v int32) *IntLiteral {
	return &IntLiteral{SpanVal: at(1), TypeVal: IntClass, Value: v}
}

func strLit(s string) *StringLiteral {
	return &StringLiteral{SpanVal: at(1), TypeVal: StringClass, Value: s}
}

func boolLit(b bool) *BoolLiteral {
	return &BoolLiteral{SpanVal: at(1), TypeVal: BoolClass, Value: b}
}

func ident(name string, kind ScopeKind, typ string) *Identifier {
	return &Identifier{SpanVal: at(1), TypeVal: typ, Name: name, Scope: kind}
}

func self() *Identifier {
	return &Identifier{SpanVal: at(1), TypeVal: SelfType, Name: SelfName}
}

func assign(name string, kind ScopeKind, value Expr) *Assign {
	return &Assign{SpanVal: at(1), TypeVal: value.StaticType(), Name: name, Scope: kind, Value: value}
}

func add(l, r Expr) *Arithmetic {
	return &Arithmetic{SpanVal: at(1), TypeVal: IntClass, Op: OpAdd, Left: l, Right: r}
}

func less(l, r Expr) *Compare {
	return &Compare{SpanVal: at(1), TypeVal: BoolClass, Op: OpLess, Left: l, Right: r}
}

func let1(name, typ string, init, body Expr) *Let {
	return &Let{
		SpanVal:  at(1),
		TypeVal:  body.StaticType(),
		Bindings: []*LetBinding{{SpanVal: at(1), Name: name, Type: typ, Init: init}},
		Body:     body,
	}
}

func block(exprs ...Expr) *Block {
	return &Block{SpanVal: at(1), TypeVal: exprs[len(exprs)-1].StaticType(), Exprs: exprs}
}

func call(line int, recv Expr, method, typ string, args ...Expr) *Dispatch {
	return &Dispatch{SpanVal: at(line), TypeVal: typ, Receiver: recv, Method: method, Args: args}
}

func newObj(class string) *New {
	return &New{SpanVal: at(1), TypeVal: class, Class: class}
}

func method(name, ret string, body Expr, formals ...*Formal) *Method {
	return &Method{SpanVal: at(1), Name: name, ReturnType: ret, Formals: formals, Body: body}
}

func formal(name, typ string) *Formal {
	return &Formal{SpanVal: at(1), Name: name, Type: typ}
}

func attr(name, typ string, init Expr) *Attribute {
	return &Attribute{SpanVal: at(1), Name: name, Type: typ, Init: init}
}

func class(name, parent string, features ...any) *Class {
	c := &Class{SpanVal: at(1), File: "test.cl", Name: name, Parent: parent}
	for _, f := range features {
		switch f := f.(type) {
		case *Attribute:
			c.Attributes = append(c.Attributes, f)
		case *Method:
			c.Methods = append(c.Methods, f)
		}
	}
	return c
}

// helloProgram is the classic hello world: Main inherits IO and prints.
func helloProgram() *Program {
	return &Program{Classes: []*Class{
		class("Main", IOClass,
			method("main", SelfType, call(3, nil, "out_string", SelfType, strLit("Hello, World.\n"))),
		),
	}}
}

// layoutOnly builds the class table of p without lowering.
func layoutOnly(p *Program) (*Session, error) {
	s := NewSession(Options{})
	return s, s.Layout(p)
}
