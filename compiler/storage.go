package compiler

// ---------------------------------------------------------------------------
// Storage resolution: identifier -> (base register, offset)
// ---------------------------------------------------------------------------

// Base selects the register a StorageLocation is relative to.
type Base int

const (
	BaseSelf  Base = iota // receiver object ($s0)
	BaseFrame             // current frame ($fp)
)

// Register returns the assembly name of the base register.
func (b Base) Register() string {
	if b == BaseSelf {
		return "$s0"
	}
	return "$fp"
}

// StorageLocation is a resolved variable address.
type StorageLocation struct {
	Base   Base
	Offset int // signed byte offset
}

// FormalBaseOffset is the frame offset of the first formal: saved $ra,
// $s0 and $fp sit between $fp and the arguments.
const FormalBaseOffset = 12

// AttributeLocation resolves an attribute against the flattened layout of
// the class that owns the code being generated.
func AttributeLocation(c *ClassDescriptor, name string) StorageLocation {
	idx := c.AttributeIndex(name)
	if idx < 0 {
		internalf("class %s has no attribute %s", c.Name, name)
	}
	return StorageLocation{Base: BaseSelf, Offset: c.Attributes()[idx].Offset}
}

// FormalLocation resolves a formal by its declaration position. Arguments
// are pushed last-to-first, so formal 0 sits nearest the frame.
func FormalLocation(formals []*Formal, name string) StorageLocation {
	for i, f := range formals {
		if f.Name == name {
			return StorageLocation{Base: BaseFrame, Offset: FormalBaseOffset + WordSize*i}
		}
	}
	internalf("no formal named %s", name)
	return StorageLocation{}
}

// LocalLocation resolves a local binding by its depth: the innermost
// binding of a nesting chain has depth 0 and lives just below $fp.
func LocalLocation(depth int) StorageLocation {
	return StorageLocation{Base: BaseFrame, Offset: -WordSize * (depth + 1)}
}

// ---------------------------------------------------------------------------
// Lexical context threaded through lowering
// ---------------------------------------------------------------------------

// localBinding is one entry of the immutable chain of visible locals.
type localBinding struct {
	name  string
	depth int
	next  *localBinding
}

// scope is the explicit lowering context of one method or init routine.
// It is passed by value; bind returns an extended copy.
type scope struct {
	class   *ClassDescriptor
	file    string
	formals []*Formal
	frame   *framePlan
	locals  *localBinding
}

// bind returns a scope in which name resolves to the given local depth.
func (s scope) bind(name string, depth int) scope {
	s.locals = &localBinding{name: name, depth: depth, next: s.locals}
	return s
}

// resolve maps an identifier and its introducing scope kind to a location.
func (s scope) resolve(name string, kind ScopeKind) StorageLocation {
	switch kind {
	case ScopeAttribute:
		return AttributeLocation(s.class, name)
	case ScopeFormal:
		return FormalLocation(s.formals, name)
	case ScopeLocal:
		for b := s.locals; b != nil; b = b.next {
			if b.name == name {
				return LocalLocation(b.depth)
			}
		}
		internalf("local %s is not bound", name)
	default:
		internalf("identifier %s has unrecognized scope kind %v", name, kind)
	}
	return StorageLocation{}
}

// ---------------------------------------------------------------------------
// Frame planning
// ---------------------------------------------------------------------------

// framePlan records the depth of every local binding of one body and the
// number of frame words the body needs.
type framePlan struct {
	depths map[Node]int
	words  int
}

// planFrame computes binding depths for the given expressions, which share
// one frame (a method body, or the attribute initializers of a class).
func planFrame(exprs ...Expr) *framePlan {
	f := &framePlan{depths: make(map[Node]int)}
	for _, e := range exprs {
		f.words = max(f.words, f.visit(e))
	}
	return f
}

// Bytes returns the frame growth in bytes.
func (f *framePlan) Bytes() int {
	return f.words * WordSize
}

// depth returns the planned depth of a let or case binding.
func (f *framePlan) depth(n Node) int {
	d, ok := f.depths[n]
	if !ok {
		internalf("binding at line %d has no planned slot", n.Span().Start.Line)
	}
	return d
}

// visit returns the number of local words live at once while evaluating e.
// A binding's depth is the number of words its scope needs beneath it.
func (f *framePlan) visit(e Expr) int {
	switch n := e.(type) {
	case nil:
		return 0
	case *Let:
		need := f.visit(n.Body)
		for i := len(n.Bindings) - 1; i >= 0; i-- {
			b := n.Bindings[i]
			f.depths[b] = need
			need++
			if b.Init != nil {
				need = max(need, f.visit(b.Init))
			}
		}
		return need
	case *Case:
		need := f.visit(n.Expr)
		for _, br := range n.Branches {
			d := f.visit(br.Body)
			f.depths[br] = d
			need = max(need, d+1)
		}
		return need
	case *Assign:
		return f.visit(n.Value)
	case *Arithmetic:
		return max(f.visit(n.Left), f.visit(n.Right))
	case *Compare:
		return max(f.visit(n.Left), f.visit(n.Right))
	case *Equal:
		return max(f.visit(n.Left), f.visit(n.Right))
	case *Negate:
		return f.visit(n.Operand)
	case *Not:
		return f.visit(n.Operand)
	case *IsVoid:
		return f.visit(n.Operand)
	case *If:
		return max(f.visit(n.Cond), f.visit(n.Then), f.visit(n.Else))
	case *While:
		return max(f.visit(n.Cond), f.visit(n.Body))
	case *Block:
		need := 0
		for _, x := range n.Exprs {
			need = max(need, f.visit(x))
		}
		return need
	case *Dispatch:
		need := 0
		if n.Receiver != nil {
			need = f.visit(n.Receiver)
		}
		for _, a := range n.Args {
			need = max(need, f.visit(a))
		}
		return need
	case *IntLiteral, *StringLiteral, *BoolLiteral, *Identifier, *New:
		return 0
	default:
		internalf("unknown expression type %T", e)
	}
	return 0
}
