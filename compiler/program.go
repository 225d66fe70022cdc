package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/coolgen/compiler/asm"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// GCMode selects the runtime garbage collector.
type GCMode int

const (
	GCNone GCMode = iota
	GCGenerational
	GCStopAndCopy
)

var gcModeNames = map[GCMode]string{
	GCNone:         "none",
	GCGenerational: "generational",
	GCStopAndCopy:  "stop-and-copy",
}

func (m GCMode) String() string {
	if s, ok := gcModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("GCMode(%d)", int(m))
}

// ParseGCMode parses a collector name as used on the command line and in
// coolgen.toml. The empty string selects GCNone.
func ParseGCMode(s string) (GCMode, error) {
	if s == "" {
		return GCNone, nil
	}
	for m, name := range gcModeNames {
		if name == s {
			return m, nil
		}
	}
	return GCNone, fmt.Errorf("unknown garbage collector %q (want none, generational or stop-and-copy)", s)
}

// runtime symbols for _MemMgr_INITIALIZER and _MemMgr_COLLECTOR
func (m GCMode) runtimeSymbols() (initializer, collector string) {
	switch m {
	case GCGenerational:
		return "_GenGC_Init", "_GenGC_Collect"
	case GCStopAndCopy:
		return "_SCGC_Init", "_SCGC_Collect"
	}
	return "_NoGC_Init", "_NoGC_Collect"
}

// Options controls code generation.
type Options struct {
	GC     GCMode
	GCTest bool // collect at every allocation
}

// ---------------------------------------------------------------------------
// Internal errors
// ---------------------------------------------------------------------------

// InternalError reports a broken invariant: either a backend defect or an
// input that did not satisfy the front end's guarantees.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

func internalf(format string, args ...any) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// ---------------------------------------------------------------------------
// Session: state of one compilation unit
// ---------------------------------------------------------------------------

// Session owns all mutable state of one compilation: tags, layouts, the
// literal pool and the label counter. Create a new Session per program.
type Session struct {
	ID       string
	Options  Options
	Classes  *ClassTable
	Literals *LiteralPool

	group  *asm.Group
	labels int
	log    commonlog.Logger
}

// NewSession creates a session with a fresh identifier.
func NewSession(opts Options) *Session {
	id := uuid.New().String()
	return &Session{
		ID:       id,
		Options:  opts,
		Classes:  NewClassTable(),
		Literals: NewLiteralPool(),
		group:    asm.MIPS(),
		log:      commonlog.NewKeyValueLogger(commonlog.GetLogger("coolgen.compiler"), "session", id),
	}
}

// NewLabel returns a label unique within the session.
func (s *Session) NewLabel(prefix string) string {
	label := fmt.Sprintf("%s%d", prefix, s.labels)
	s.labels++
	return label
}

// Labels returns the number of labels allocated so far.
func (s *Session) Labels() int {
	return s.labels
}

// Compile compiles a program with a fresh session.
func Compile(p *Program, opts Options) (string, error) {
	return NewSession(opts).Compile(p)
}

// Compile generates assembly for p. A session compiles one program.
func (s *Session) Compile(p *Program) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InternalError); ok {
				err = ie
				return
			}
			panic(r)
		}
	}()

	if s.Classes.Len() > 0 {
		return "", errors.New("session already used")
	}
	if err := s.Layout(p); err != nil {
		return "", err
	}
	prog := s.assemble()
	out, err = prog.Render()
	if err != nil {
		return "", err
	}
	s.log.Infof("compiled %d classes, %d literals, %d labels",
		s.Classes.Len(), s.Literals.Len(), s.labels)
	return out, nil
}

// Layout builds the class table for p: built-ins first, then user classes
// in declaration order. Every layout is final when Layout returns.
func (s *Session) Layout(p *Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InternalError); ok {
				err = ie
				return
			}
			panic(r)
		}
	}()

	s.Literals.IntConst(0)
	s.Literals.StringConst("")

	s.Classes.defineBuiltins()
	for _, c := range p.Classes {
		if c.Name == SelfType {
			internalf("class named %s", SelfType)
		}
		s.Classes.DefineClass(c)
	}
	s.Classes.Link()
	s.Classes.Build()

	for _, c := range s.Classes.All() {
		s.Literals.StringConst(c.Name)
		s.log.Debugf("class %s tag=%d size=%d methods=%d",
			c.Name, c.Tag, c.Size(), len(c.DispatchTable()))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Program assembly
// ---------------------------------------------------------------------------

// assemble lowers every class and collects the program fragment. The
// literal sections are built last so they include constants allocated
// during lowering.
func (s *Session) assemble() *asm.Fragment {
	prog := s.frag("program")
	initializer, collector := s.Options.GC.runtimeSymbols()
	gcTest := 0
	if s.Options.GCTest {
		gcTest = 1
	}
	prog.Add("intTag", IntTag).
		Add("boolTag", BoolTag).
		Add("stringTag", StringTag).
		Add("gcInit", initializer).
		Add("gcCollect", collector).
		Add("gcTest", gcTest)

	for _, c := range s.Classes.All() {
		prog.Add("classNames", "\t.word\t"+s.Literals.StringConst(c.Name))
		prog.Add("classObjects", "\t.word\t"+c.Name+"_protObj\n\t.word\t"+c.Name+"_init")
		prog.Add("protObjs", s.protObj(c))
		prog.Add("dispTabs", s.dispatchTable(c))
	}
	for _, c := range s.Classes.All() {
		prog.Add("inits", s.lowerInit(c))
	}
	for _, c := range s.Classes.All() {
		if c.Decl == nil {
			continue
		}
		for _, m := range c.Decl.Methods {
			prog.Add("methods", s.lowerMethod(c, m))
		}
	}

	for _, lit := range s.Literals.Entries() {
		prog.Add("literalConsts", s.literal(lit))
	}
	for _, lit := range s.Literals.Bools() {
		prog.Add("boolConsts", s.literal(lit))
	}
	return prog
}

func (s *Session) literal(lit Literal) *asm.Fragment {
	switch lit.Kind {
	case IntLiteralKind:
		return s.frag("intLiteral").
			Add("name", lit.Name).
			Add("tag", IntTag).
			Add("value", lit.Int)
	case StringLiteralKind:
		return s.frag("stringLiteral").
			Add("name", lit.Name).
			Add("tag", StringTag).
			Add("size", lit.Size).
			Add("length", lit.Length).
			Add("value", escapeString(lit.String))
	case BoolLiteralKind:
		v := 0
		if lit.Bool {
			v = 1
		}
		return s.frag("boolLiteral").
			Add("name", lit.Name).
			Add("tag", BoolTag).
			Add("value", v)
	}
	internalf("unknown literal kind %d", lit.Kind)
	return nil
}

// protObj emits the prototype object of c with default attribute values.
func (s *Session) protObj(c *ClassDescriptor) *asm.Fragment {
	f := s.frag("protObj").
		Add("className", c.Name).
		Add("classId", c.Tag).
		Add("classDim", c.Size())
	if c.Name == StringClass {
		return f.Add("attribs", s.frag("attribString").
			Add("length", s.Literals.IntConst(0)).
			Add("value", ""))
	}
	for _, a := range c.Attributes() {
		f.Add("attribs", s.frag("attrib").Add("initVal", s.prototypeWord(a)))
	}
	return f
}

// prototypeWord is the initial word of an attribute slot. Basic types
// point at their zero constants; every other slot holds a raw 0 (void).
func (s *Session) prototypeWord(a AttributeSlot) string {
	if decl, ok := s.Classes.MustLookup(a.Class).ownAttribute(a.Name); ok && decl.raw != "" {
		return decl.raw
	}
	switch a.Type {
	case IntClass:
		return s.Literals.IntConst(0)
	case BoolClass:
		return s.Literals.BoolConst(false)
	case StringClass:
		return s.Literals.StringConst("")
	}
	return "0"
}

func (s *Session) dispatchTable(c *ClassDescriptor) *asm.Fragment {
	f := s.frag("dispatchTable").Add("className", c.Name)
	for _, e := range c.DispatchTable() {
		f.Add("methods", "\t.word\t"+e.Label())
	}
	return f
}

// lowerInit emits C_init: the parent's init, then the initializers of the
// attributes c declares, in declaration order.
func (s *Session) lowerInit(c *ClassDescriptor) *asm.Fragment {
	var exprs []Expr
	for _, a := range c.attrs {
		if a.init != nil {
			exprs = append(exprs, a.init)
		}
	}
	frame := planFrame(exprs...)
	sc := scope{class: c, frame: frame}
	if c.Decl != nil {
		sc.file = c.Decl.File
	}

	f := s.frag("init").
		Add("className", c.Name).
		Add("prologue", s.prologue(frame)).
		Add("epilogue", s.epilogue(frame, 0))
	if c.Parent != nil {
		f.Add("parent", c.Parent.Name)
	}
	for _, a := range c.attrs {
		if a.init == nil {
			continue
		}
		loc := AttributeLocation(c, a.name)
		init := s.frag("attrInit").
			Add("initExpr", s.lower(a.init, sc).Frag).
			Add("offset", loc.Offset)
		if s.Options.GC == GCGenerational {
			init.Add("gcAssign", "1")
		}
		f.Add("attrInit", init)
	}
	s.log.Debugf("init %s frame=%d", c.Name, frame.Bytes())
	return f
}

// lowerMethod emits the body of one user method.
func (s *Session) lowerMethod(c *ClassDescriptor, m *Method) *asm.Fragment {
	frame := planFrame(m.Body)
	sc := scope{class: c, file: c.Decl.File, formals: m.Formals, frame: frame}
	body := s.lower(m.Body, sc)
	s.log.Debugf("method %s.%s frame=%d", c.Name, m.Name, frame.Bytes())
	return s.frag("methodDeclare").
		Add("className", c.Name).
		Add("methodName", m.Name).
		Add("prologue", s.prologue(frame)).
		Add("body", body.Frag).
		Add("epilogue", s.epilogue(frame, len(m.Formals)))
}

func (s *Session) prologue(frame *framePlan) *asm.Fragment {
	f := s.frag("prologue")
	if n := frame.Bytes(); n > 0 {
		f.Add("frame", n)
	}
	return f
}

// epilogue restores the caller's registers and pops the saved words and
// the arguments.
func (s *Session) epilogue(frame *framePlan, formals int) *asm.Fragment {
	f := s.frag("epilogue").Add("pop", FormalBaseOffset+WordSize*formals)
	if n := frame.Bytes(); n > 0 {
		f.Add("frame", n)
	}
	return f
}

// escapeString quotes s for an .asciiz directive.
func escapeString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			// SPIM reads \ooo as an octal byte.
			if c < ' ' || c > '~' {
				fmt.Fprintf(&sb, "\\%03o", c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}
