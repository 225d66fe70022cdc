package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Verifier: front-end guarantees checked before code generation
// ---------------------------------------------------------------------------

// Verifier checks that a decoded program satisfies what the backend takes
// for granted: a closed, acyclic hierarchy rooted at Object, and every
// identifier classified and resolvable. It only reports; it never changes
// the program.
type Verifier struct {
	errors []string

	classes map[string]*verifyClass
	order   []string
}

// verifyClass is the hierarchy view used for lookups during verification.
type verifyClass struct {
	name    string
	parent  string
	attrs   []string
	methods []string
	decl    *Class
}

// verifyScope tracks the names visible inside one method body.
type verifyScope struct {
	class   string
	formals map[string]bool
	locals  []string
}

// NewVerifier creates a verifier that already knows the built-in classes.
func NewVerifier() *Verifier {
	v := &Verifier{classes: make(map[string]*verifyClass)}
	for _, b := range builtinClasses {
		vc := &verifyClass{name: b.name, parent: b.parent, methods: b.methods}
		for _, a := range b.attrs {
			vc.attrs = append(vc.attrs, a.name)
		}
		v.classes[b.name] = vc
		v.order = append(v.order, b.name)
	}
	return v
}

// Verify runs all checks on p and returns the problems found.
func Verify(p *Program) []string {
	v := NewVerifier()
	v.Analyze(p)
	return v.Errors()
}

// Errors returns accumulated verification errors.
func (v *Verifier) Errors() []string {
	return v.errors
}

// errorf records an error without position.
func (v *Verifier) errorf(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

// errorAt records an error with position information.
func (v *Verifier) errorAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	msg := fmt.Sprintf("line %d, column %d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
	v.errors = append(v.errors, msg)
}

// warnAt records a warning with position information.
func (v *Verifier) warnAt(node Node, format string, args ...interface{}) {
	pos := node.Span().Start
	msg := fmt.Sprintf("warning: line %d, column %d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
	v.errors = append(v.errors, msg)
}

// Analyze checks the hierarchy and then every feature of every class.
func (v *Verifier) Analyze(p *Program) {
	for _, c := range p.Classes {
		v.defineClass(c)
	}
	if !v.checkHierarchy() {
		// Feature checks walk parent chains and would not terminate.
		return
	}
	main, ok := v.classes["Main"]
	if !ok || main.decl == nil {
		v.errorf("class Main is not defined")
	} else if !v.hasMethod("Main", "main") {
		v.errorAt(main.decl, "class Main has no method main")
	}

	for _, c := range p.Classes {
		v.analyzeClass(c)
	}
}

func (v *Verifier) defineClass(c *Class) {
	switch {
	case c.Name == SelfType:
		v.errorAt(c, "class cannot be named %s", SelfType)
		return
	case IsBuiltin(c.Name):
		v.errorAt(c, "cannot redefine built-in class %s", c.Name)
		return
	}
	if prev, dup := v.classes[c.Name]; dup {
		v.errorAt(c, "class %s is already defined at line %d", c.Name, prev.decl.Span().Start.Line)
		return
	}
	parent := c.Parent
	if parent == "" {
		parent = ObjectClass
	}
	vc := &verifyClass{name: c.Name, parent: parent, decl: c}
	for _, a := range c.Attributes {
		vc.attrs = append(vc.attrs, a.Name)
	}
	for _, m := range c.Methods {
		vc.methods = append(vc.methods, m.Name)
	}
	v.classes[c.Name] = vc
	v.order = append(v.order, c.Name)
}

// checkHierarchy reports undefined or forbidden parents and cycles. It
// returns false when the hierarchy cannot be walked safely.
func (v *Verifier) checkHierarchy() bool {
	ok := true
	for _, name := range v.order {
		c := v.classes[name]
		if c.decl == nil {
			continue
		}
		if _, found := v.classes[c.parent]; !found {
			v.errorAt(c.decl, "class %s inherits from undefined class %s", c.name, c.parent)
			ok = false
			continue
		}
		if isValueClass(c.parent) {
			v.errorAt(c.decl, "class %s cannot inherit from %s", c.name, c.parent)
		}
	}
	if !ok {
		return false
	}
	for _, name := range v.order {
		seen := map[string]bool{}
		for cur := name; cur != ""; cur = v.classes[cur].parent {
			if seen[cur] {
				v.errorAt(v.classes[name].decl, "inheritance cycle through class %s", name)
				ok = false
				break
			}
			seen[cur] = true
		}
	}
	return ok
}

func (v *Verifier) hasAttribute(class, name string) bool {
	for c := v.classes[class]; c != nil; c = v.classes[c.parent] {
		for _, a := range c.attrs {
			if a == name {
				return true
			}
		}
	}
	return false
}

func (v *Verifier) hasMethod(class, name string) bool {
	for c := v.classes[class]; c != nil; c = v.classes[c.parent] {
		for _, m := range c.methods {
			if m == name {
				return true
			}
		}
	}
	return false
}

// conforms reports whether class is sub or one of its ancestors.
func (v *Verifier) conforms(sub, class string) bool {
	for c := v.classes[sub]; c != nil; c = v.classes[c.parent] {
		if c.name == class {
			return true
		}
	}
	return false
}

func (v *Verifier) checkType(node Node, typ string) {
	if typ == SelfType || typ == "" {
		return
	}
	if _, ok := v.classes[typ]; !ok {
		v.errorAt(node, "undefined type %s", typ)
	}
}

// ---------------------------------------------------------------------------
// Features
// ---------------------------------------------------------------------------

func (v *Verifier) analyzeClass(c *Class) {
	if v.classes[c.Name] == nil || v.classes[c.Name].decl != c {
		return
	}
	seen := map[string]bool{}
	for _, a := range c.Attributes {
		if seen[a.Name] {
			v.errorAt(a, "attribute %s is declared twice in class %s", a.Name, c.Name)
		}
		seen[a.Name] = true
		if a.Name == SelfName {
			v.errorAt(a, "attribute cannot be named self")
		}
		if v.hasAttribute(v.classes[c.Name].parent, a.Name) {
			v.errorAt(a, "attribute %s redefines an inherited attribute", a.Name)
		}
		v.checkType(a, a.Type)
		if a.Init != nil {
			v.analyzeExpr(a.Init, &verifyScope{class: c.Name})
		}
	}

	methods := map[string]bool{}
	for _, m := range c.Methods {
		if methods[m.Name] {
			v.errorAt(m, "method %s is declared twice in class %s", m.Name, c.Name)
		}
		methods[m.Name] = true
		sc := &verifyScope{class: c.Name, formals: map[string]bool{}}
		for _, f := range m.Formals {
			if sc.formals[f.Name] {
				v.errorAt(f, "formal %s is declared twice", f.Name)
			}
			sc.formals[f.Name] = true
			v.checkType(f, f.Type)
		}
		if m.Body == nil {
			v.errorAt(m, "method %s.%s has no body", c.Name, m.Name)
			continue
		}
		v.analyzeExpr(m.Body, sc)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (v *Verifier) checkVariable(node Node, name string, kind ScopeKind, sc *verifyScope) {
	switch kind {
	case ScopeAttribute:
		if !v.hasAttribute(sc.class, name) {
			v.errorAt(node, "class %s has no attribute %s", sc.class, name)
		}
	case ScopeFormal:
		if !sc.formals[name] {
			v.errorAt(node, "%s is not a formal of the enclosing method", name)
		}
	case ScopeLocal:
		for i := len(sc.locals) - 1; i >= 0; i-- {
			if sc.locals[i] == name {
				return
			}
		}
		v.errorAt(node, "local %s is not bound", name)
	default:
		v.errorAt(node, "identifier %s has no scope classification", name)
	}
}

func (v *Verifier) analyzeExpr(expr Expr, sc *verifyScope) {
	switch e := expr.(type) {
	case nil:
		return
	case *IntLiteral, *StringLiteral, *BoolLiteral:
	case *Identifier:
		if e.Name != SelfName {
			v.checkVariable(e, e.Name, e.Scope, sc)
		}
	case *Assign:
		if e.Name == SelfName {
			v.errorAt(e, "cannot assign to self")
		} else {
			v.checkVariable(e, e.Name, e.Scope, sc)
		}
		v.analyzeExpr(e.Value, sc)
	case *Arithmetic:
		v.analyzeExpr(e.Left, sc)
		v.analyzeExpr(e.Right, sc)
	case *Compare:
		v.analyzeExpr(e.Left, sc)
		v.analyzeExpr(e.Right, sc)
	case *Equal:
		v.analyzeExpr(e.Left, sc)
		v.analyzeExpr(e.Right, sc)
	case *Negate:
		v.analyzeExpr(e.Operand, sc)
	case *Not:
		v.analyzeExpr(e.Operand, sc)
	case *IsVoid:
		v.analyzeExpr(e.Operand, sc)
	case *If:
		v.analyzeExpr(e.Cond, sc)
		v.analyzeExpr(e.Then, sc)
		v.analyzeExpr(e.Else, sc)
	case *While:
		v.analyzeExpr(e.Cond, sc)
		v.analyzeExpr(e.Body, sc)
	case *Block:
		if len(e.Exprs) == 0 {
			v.errorAt(e, "empty block")
		}
		for _, x := range e.Exprs {
			v.analyzeExpr(x, sc)
		}
	case *Let:
		mark := len(sc.locals)
		for _, b := range e.Bindings {
			v.checkType(b, b.Type)
			v.analyzeExpr(b.Init, sc)
			sc.locals = append(sc.locals, b.Name)
		}
		v.analyzeExpr(e.Body, sc)
		sc.locals = sc.locals[:mark]
	case *Case:
		v.analyzeCase(e, sc)
	case *New:
		v.checkType(e, e.Class)
	case *Dispatch:
		v.analyzeDispatch(e, sc)
	default:
		v.errorAt(expr, "unknown expression type %T", expr)
	}
}

func (v *Verifier) analyzeCase(e *Case, sc *verifyScope) {
	v.analyzeExpr(e.Expr, sc)
	if len(e.Branches) == 0 {
		v.errorAt(e, "case has no branches")
	}
	for i, br := range e.Branches {
		v.checkType(br, br.Type)
		for _, earlier := range e.Branches[:i] {
			if v.conforms(br.Type, earlier.Type) {
				v.warnAt(br, "branch %s is unreachable after branch %s", br.Type, earlier.Type)
				break
			}
		}
		sc.locals = append(sc.locals, br.Name)
		v.analyzeExpr(br.Body, sc)
		sc.locals = sc.locals[:len(sc.locals)-1]
	}
}

func (v *Verifier) analyzeDispatch(e *Dispatch, sc *verifyScope) {
	for _, a := range e.Args {
		v.analyzeExpr(a, sc)
	}
	target := sc.class
	if e.Receiver != nil {
		v.analyzeExpr(e.Receiver, sc)
		if t := e.Receiver.StaticType(); t != "" && t != SelfType {
			target = t
		}
	}
	if e.StaticClass != "" {
		if _, ok := v.classes[e.StaticClass]; !ok {
			v.errorAt(e, "undefined class %s in static dispatch", e.StaticClass)
			return
		}
		target = e.StaticClass
	}
	if _, ok := v.classes[target]; !ok {
		v.errorAt(e, "dispatch on undefined type %s", target)
		return
	}
	if !v.hasMethod(target, e.Method) {
		v.errorAt(e, "class %s has no method %s", target, e.Method)
	}
}
