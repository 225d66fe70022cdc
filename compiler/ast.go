package compiler

// ---------------------------------------------------------------------------
// AST: type-checked COOL program as handed over by the front end
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// SelfType is the pseudo type naming the dynamic class of self.
const SelfType = "SELF_TYPE"

// SelfName is the reserved identifier for the receiver.
const SelfName = "self"

// ScopeKind classifies the scope that introduced an identifier.
// The semantic analyzer sets it on every identifier and assignment.
type ScopeKind int

const (
	ScopeUnknown   ScopeKind = iota
	ScopeAttribute           // class attribute, possibly inherited
	ScopeFormal              // method formal parameter
	ScopeLocal               // let variable or case branch variable
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAttribute:
		return "attribute"
	case ScopeFormal:
		return "formal"
	case ScopeLocal:
		return "local"
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Program structure
// ---------------------------------------------------------------------------

// Program is a closed set of user class definitions.
type Program struct {
	Classes []*Class
}

// Class is a user class definition.
type Class struct {
	SpanVal    Span
	File       string // source file, used for runtime fault metadata
	Name       string
	Parent     string // empty means Object
	Attributes []*Attribute
	Methods    []*Method
}

func (n *Class) Span() Span { return n.SpanVal }
func (n *Class) node()      {}

// Attribute is a typed attribute declaration with an optional initializer.
type Attribute struct {
	SpanVal Span
	Name    string
	Type    string
	Init    Expr // nil when absent
}

func (n *Attribute) Span() Span { return n.SpanVal }
func (n *Attribute) node()      {}

// Method is a method declaration.
type Method struct {
	SpanVal    Span
	Name       string
	Formals    []*Formal
	ReturnType string
	Body       Expr
}

func (n *Method) Span() Span { return n.SpanVal }
func (n *Method) node()      {}

// Formal is a method parameter.
type Formal struct {
	SpanVal Span
	Name    string
	Type    string
}

func (n *Formal) Span() Span { return n.SpanVal }
func (n *Formal) node()      {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. StaticType is the type the
// semantic analyzer computed for the node.
type Expr interface {
	Node
	StaticType() string
	expr() // marker method
}

// IntLiteral represents an integer constant.
type IntLiteral struct {
	SpanVal Span
	TypeVal string
	Value   int32
}

func (n *IntLiteral) Span() Span         { return n.SpanVal }
func (n *IntLiteral) StaticType() string { return n.TypeVal }
func (n *IntLiteral) node()              {}
func (n *IntLiteral) expr()              {}

// StringLiteral represents a string constant (escapes already decoded).
type StringLiteral struct {
	SpanVal Span
	TypeVal string
	Value   string
}

func (n *StringLiteral) Span() Span         { return n.SpanVal }
func (n *StringLiteral) StaticType() string { return n.TypeVal }
func (n *StringLiteral) node()              {}
func (n *StringLiteral) expr()              {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	TypeVal string
	Value   bool
}

func (n *BoolLiteral) Span() Span         { return n.SpanVal }
func (n *BoolLiteral) StaticType() string { return n.TypeVal }
func (n *BoolLiteral) node()              {}
func (n *BoolLiteral) expr()              {}

// Identifier references self, an attribute, a formal or a local.
type Identifier struct {
	SpanVal Span
	TypeVal string
	Name    string
	Scope   ScopeKind
}

func (n *Identifier) Span() Span         { return n.SpanVal }
func (n *Identifier) StaticType() string { return n.TypeVal }
func (n *Identifier) node()              {}
func (n *Identifier) expr()              {}

// Assign stores Value into the named variable (x <- expr).
type Assign struct {
	SpanVal Span
	TypeVal string
	Name    string
	Scope   ScopeKind
	Value   Expr
}

func (n *Assign) Span() Span         { return n.SpanVal }
func (n *Assign) StaticType() string { return n.TypeVal }
func (n *Assign) node()              {}
func (n *Assign) expr()              {}

// ArithOp is an integer arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	}
	return "?"
}

// Arithmetic represents left op right on integers.
type Arithmetic struct {
	SpanVal Span
	TypeVal string
	Op      ArithOp
	Left    Expr
	Right   Expr
}

func (n *Arithmetic) Span() Span         { return n.SpanVal }
func (n *Arithmetic) StaticType() string { return n.TypeVal }
func (n *Arithmetic) node()              {}
func (n *Arithmetic) expr()              {}

// RelOp is an ordered comparison operator.
type RelOp int

const (
	OpLess RelOp = iota
	OpLessEq
)

func (op RelOp) String() string {
	if op == OpLessEq {
		return "<="
	}
	return "<"
}

// Compare represents left < right or left <= right.
type Compare struct {
	SpanVal Span
	TypeVal string
	Op      RelOp
	Left    Expr
	Right   Expr
}

func (n *Compare) Span() Span         { return n.SpanVal }
func (n *Compare) StaticType() string { return n.TypeVal }
func (n *Compare) node()              {}
func (n *Compare) expr()              {}

// Equal represents left = right.
type Equal struct {
	SpanVal Span
	TypeVal string
	Left    Expr
	Right   Expr
}

func (n *Equal) Span() Span         { return n.SpanVal }
func (n *Equal) StaticType() string { return n.TypeVal }
func (n *Equal) node()              {}
func (n *Equal) expr()              {}

// Negate represents ~expr.
type Negate struct {
	SpanVal Span
	TypeVal string
	Operand Expr
}

func (n *Negate) Span() Span         { return n.SpanVal }
func (n *Negate) StaticType() string { return n.TypeVal }
func (n *Negate) node()              {}
func (n *Negate) expr()              {}

// Not represents not expr.
type Not struct {
	SpanVal Span
	TypeVal string
	Operand Expr
}

func (n *Not) Span() Span         { return n.SpanVal }
func (n *Not) StaticType() string { return n.TypeVal }
func (n *Not) node()              {}
func (n *Not) expr()              {}

// IsVoid represents isvoid expr.
type IsVoid struct {
	SpanVal Span
	TypeVal string
	Operand Expr
}

func (n *IsVoid) Span() Span         { return n.SpanVal }
func (n *IsVoid) StaticType() string { return n.TypeVal }
func (n *IsVoid) node()              {}
func (n *IsVoid) expr()              {}

// If represents if cond then a else b fi.
type If struct {
	SpanVal Span
	TypeVal string
	Cond    Expr
	Then    Expr
	Else    Expr
}

func (n *If) Span() Span         { return n.SpanVal }
func (n *If) StaticType() string { return n.TypeVal }
func (n *If) node()              {}
func (n *If) expr()              {}

// While represents while cond loop body pool.
type While struct {
	SpanVal Span
	TypeVal string
	Cond    Expr
	Body    Expr
}

func (n *While) Span() Span         { return n.SpanVal }
func (n *While) StaticType() string { return n.TypeVal }
func (n *While) node()              {}
func (n *While) expr()              {}

// Block represents { e1; e2; ... }.
type Block struct {
	SpanVal Span
	TypeVal string
	Exprs   []Expr
}

func (n *Block) Span() Span         { return n.SpanVal }
func (n *Block) StaticType() string { return n.TypeVal }
func (n *Block) node()              {}
func (n *Block) expr()              {}

// LetBinding is one variable of a let. Each binding's scope covers the
// initializers of the bindings after it and the let body.
type LetBinding struct {
	SpanVal Span
	Name    string
	Type    string
	Init    Expr // nil when absent
}

func (n *LetBinding) Span() Span { return n.SpanVal }
func (n *LetBinding) node()      {}

// Let represents let x : T <- e, ... in body.
type Let struct {
	SpanVal  Span
	TypeVal  string
	Bindings []*LetBinding
	Body     Expr
}

func (n *Let) Span() Span         { return n.SpanVal }
func (n *Let) StaticType() string { return n.TypeVal }
func (n *Let) node()              {}
func (n *Let) expr()              {}

// CaseBranch is one arm of a case: name : Type => body.
type CaseBranch struct {
	SpanVal Span
	Name    string
	Type    string
	Body    Expr
}

func (n *CaseBranch) Span() Span { return n.SpanVal }
func (n *CaseBranch) node()      {}

// Case represents case expr of branches esac. Branches are ordered most
// specific type first.
type Case struct {
	SpanVal  Span
	TypeVal  string
	Expr     Expr
	Branches []*CaseBranch
}

func (n *Case) Span() Span         { return n.SpanVal }
func (n *Case) StaticType() string { return n.TypeVal }
func (n *Case) node()              {}
func (n *Case) expr()              {}

// New represents new T, where T may be SELF_TYPE.
type New struct {
	SpanVal Span
	TypeVal string
	Class   string
}

func (n *New) Span() Span         { return n.SpanVal }
func (n *New) StaticType() string { return n.TypeVal }
func (n *New) node()              {}
func (n *New) expr()              {}

// Dispatch represents a method call. A nil Receiver is an implicit call
// on self; a non-empty StaticClass is a static dispatch (expr@T.m()).
type Dispatch struct {
	SpanVal     Span
	TypeVal     string
	Receiver    Expr
	StaticClass string
	Method      string
	Args        []Expr
}

func (n *Dispatch) Span() Span         { return n.SpanVal }
func (n *Dispatch) StaticType() string { return n.TypeVal }
func (n *Dispatch) node()              {}
func (n *Dispatch) expr()              {}
