package compiler

import "fmt"

// LiteralKind identifies the class of a pooled constant.
type LiteralKind int

const (
	IntLiteralKind LiteralKind = iota
	StringLiteralKind
	BoolLiteralKind
)

// Literal is one entry of the literal pool.
type Literal struct {
	Kind   LiteralKind
	Name   string // assembly label, e.g. int_const3
	Int    int32
	String string
	Bool   bool
	Length string // label of the length constant (strings only)
	Size   int    // object size in words
}

// LiteralPool interns integer, string and boolean constants so that every
// distinct value is emitted once and referenced by a stable label.
//
// The pool is append-only: labels are never reassigned, and the entry
// order is insertion order.
type LiteralPool struct {
	ints    map[int32]string
	strings map[string]string
	entries []Literal

	nextInt    int
	nextString int
}

// Boolean singletons, seeded once per pool.
const (
	FalseConst = "bool_const0"
	TrueConst  = "bool_const1"
)

// NewLiteralPool creates an empty pool.
func NewLiteralPool() *LiteralPool {
	return &LiteralPool{
		ints:    make(map[int32]string),
		strings: make(map[string]string),
	}
}

// IntConst returns the label of the Int constant v, allocating it on first use.
func (p *LiteralPool) IntConst(v int32) string {
	if name, ok := p.ints[v]; ok {
		return name
	}
	name := fmt.Sprintf("int_const%d", p.nextInt)
	p.nextInt++
	p.ints[v] = name
	p.entries = append(p.entries, Literal{
		Kind: IntLiteralKind,
		Name: name,
		Int:  v,
		Size: HeaderWords + 1,
	})
	return name
}

// StringConst returns the label of the String constant s, allocating it
// and its length constant on first use.
func (p *LiteralPool) StringConst(s string) string {
	if name, ok := p.strings[s]; ok {
		return name
	}
	length := p.IntConst(int32(len(s)))
	name := fmt.Sprintf("str_const%d", p.nextString)
	p.nextString++
	p.strings[s] = name
	p.entries = append(p.entries, Literal{
		Kind:   StringLiteralKind,
		Name:   name,
		String: s,
		Length: length,
		Size:   StringWords(len(s)),
	})
	return name
}

// BoolConst returns one of the two boolean singletons. It never allocates.
func (p *LiteralPool) BoolConst(b bool) string {
	if b {
		return TrueConst
	}
	return FalseConst
}

// StringWords returns the object size in words of a string of n bytes:
// header, length pointer and the NUL-terminated bytes padded to a word.
func StringWords(n int) int {
	return HeaderWords + 1 + (n+WordSize)/WordSize
}

// Entries returns the Int and String entries in insertion order.
func (p *LiteralPool) Entries() []Literal {
	return p.entries
}

// Bools returns the two boolean entries, false first.
func (p *LiteralPool) Bools() []Literal {
	return []Literal{
		{Kind: BoolLiteralKind, Name: FalseConst, Bool: false, Size: HeaderWords + 1},
		{Kind: BoolLiteralKind, Name: TrueConst, Bool: true, Size: HeaderWords + 1},
	}
}

// Len returns the number of Int and String entries.
func (p *LiteralPool) Len() int {
	return len(p.entries)
}
