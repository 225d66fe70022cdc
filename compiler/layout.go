package compiler

// ---------------------------------------------------------------------------
// Class layouts: attribute slots and dispatch tables
// ---------------------------------------------------------------------------

// HeaderWords is the size of the object header: tag, size, dispatch pointer.
const HeaderWords = 3

// WordSize is the size in bytes of one slot.
const WordSize = 4

// AttributeSlot is one attribute in a flattened class layout.
type AttributeSlot struct {
	Name   string
	Class  string // declaring class
	Type   string
	Offset int // byte offset from the object start
}

// DispatchEntry is one slot of a dispatch table.
type DispatchEntry struct {
	Method string
	Class  string // class whose body implements the method
	Slot   int
}

// Label returns the assembly label of the implementing method.
func (e DispatchEntry) Label() string {
	return e.Class + "." + e.Method
}

// attributeDecl is an attribute as declared by one class.
type attributeDecl struct {
	name string
	typ  string
	init Expr
	raw  string // prototype word for built-in value slots
}

// ClassDescriptor is the layout-level view of a class.
type ClassDescriptor struct {
	Name       string
	Tag        int
	ParentName string
	Parent     *ClassDescriptor
	Builtin    bool
	Decl       *Class // nil for built-ins

	attrs   []attributeDecl
	methods []string

	attributes []AttributeSlot // cached, nil until computed
	dispatch   []DispatchEntry // cached, nil until computed
}

// Attributes returns the flattened attribute layout: inherited attributes
// first, own attributes last. The result is computed once and cached.
func (c *ClassDescriptor) Attributes() []AttributeSlot {
	if c.attributes != nil {
		return c.attributes
	}
	var inherited []AttributeSlot
	if c.Parent != nil {
		inherited = c.Parent.Attributes()
	}
	result := make([]AttributeSlot, len(inherited), len(inherited)+len(c.attrs))
	copy(result, inherited)
	for _, a := range c.attrs {
		if indexOfAttribute(result, a.name) >= 0 {
			continue
		}
		result = append(result, AttributeSlot{
			Name:   a.name,
			Class:  c.Name,
			Type:   a.typ,
			Offset: (HeaderWords + len(result)) * WordSize,
		})
	}
	c.attributes = result
	return result
}

// DispatchTable returns the flattened dispatch table. Inherited slots keep
// their index; an override only changes the implementing class. Methods
// first introduced by c are appended in declaration order.
func (c *ClassDescriptor) DispatchTable() []DispatchEntry {
	if c.dispatch != nil {
		return c.dispatch
	}
	var inherited []DispatchEntry
	if c.Parent != nil {
		inherited = c.Parent.DispatchTable()
	}
	own := make(map[string]bool, len(c.methods))
	for _, m := range c.methods {
		own[m] = true
	}

	result := make([]DispatchEntry, 0, len(inherited)+len(c.methods))
	seen := make(map[string]bool, len(inherited))
	for _, e := range inherited {
		if own[e.Method] {
			e.Class = c.Name
		}
		seen[e.Method] = true
		result = append(result, e)
	}
	for _, m := range c.methods {
		if seen[m] {
			continue
		}
		result = append(result, DispatchEntry{Method: m, Class: c.Name, Slot: len(result)})
	}
	c.dispatch = result
	return result
}

// Size returns the object size in words (classDim).
func (c *ClassDescriptor) Size() int {
	return len(c.Attributes()) + HeaderWords
}

// AttributeIndex returns the position of an attribute in the flattened
// layout, or -1.
func (c *ClassDescriptor) AttributeIndex(name string) int {
	return indexOfAttribute(c.Attributes(), name)
}

// MethodSlot returns the dispatch slot of a method, or -1.
func (c *ClassDescriptor) MethodSlot(name string) int {
	for _, e := range c.DispatchTable() {
		if e.Method == name {
			return e.Slot
		}
	}
	return -1
}

// IsSubclassOf returns true if c is other or inherits from it.
func (c *ClassDescriptor) IsSubclassOf(other *ClassDescriptor) bool {
	for current := c; current != nil; current = current.Parent {
		if current == other {
			return true
		}
	}
	return false
}

// Depth returns the number of ancestors of c.
func (c *ClassDescriptor) Depth() int {
	n := 0
	for p := c.Parent; p != nil; p = p.Parent {
		n++
	}
	return n
}

// ownAttribute returns the declaration of an attribute introduced by c.
func (c *ClassDescriptor) ownAttribute(name string) (attributeDecl, bool) {
	for _, a := range c.attrs {
		if a.name == name {
			return a, true
		}
	}
	return attributeDecl{}, false
}

func indexOfAttribute(slots []AttributeSlot, name string) int {
	for i, s := range slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// ClassTable: all classes of one compilation unit
// ---------------------------------------------------------------------------

// ClassTable owns the class descriptors and assigns tags.
type ClassTable struct {
	byName map[string]*ClassDescriptor
	byTag  []*ClassDescriptor
}

// NewClassTable creates an empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{byName: make(map[string]*ClassDescriptor)}
}

// Define registers a class under the next free tag. Parents are resolved
// later by Link, so classes may be defined in any order.
func (ct *ClassTable) Define(name, parent string) *ClassDescriptor {
	if _, dup := ct.byName[name]; dup {
		internalf("class %s defined twice", name)
	}
	c := &ClassDescriptor{Name: name, Tag: len(ct.byTag), ParentName: parent}
	ct.byName[name] = c
	ct.byTag = append(ct.byTag, c)
	return c
}

// DefineClass registers a user class with its declared features.
func (ct *ClassTable) DefineClass(decl *Class) *ClassDescriptor {
	parent := decl.Parent
	if parent == "" {
		parent = ObjectClass
	}
	c := ct.Define(decl.Name, parent)
	c.Decl = decl
	for _, a := range decl.Attributes {
		c.attrs = append(c.attrs, attributeDecl{name: a.Name, typ: a.Type, init: a.Init})
	}
	for _, m := range decl.Methods {
		c.methods = append(c.methods, m.Name)
	}
	return c
}

// Link resolves every parent name. It must run before any layout query.
func (ct *ClassTable) Link() {
	roots := 0
	for _, c := range ct.byTag {
		if c.ParentName == "" {
			roots++
			continue
		}
		p, ok := ct.byName[c.ParentName]
		if !ok {
			internalf("class %s inherits from undefined class %s", c.Name, c.ParentName)
		}
		c.Parent = p
	}
	if roots != 1 {
		internalf("class hierarchy has %d roots, want 1", roots)
	}
	for _, c := range ct.byTag {
		steps := 0
		for p := c.Parent; p != nil; p = p.Parent {
			if p == c || steps > len(ct.byTag) {
				internalf("inheritance cycle through class %s", c.Name)
			}
			steps++
		}
	}
}

// Build computes every layout, ancestors first.
func (ct *ClassTable) Build() {
	for _, c := range ct.byTag {
		c.Attributes()
		c.DispatchTable()
	}
}

// Lookup finds a class by name.
func (ct *ClassTable) Lookup(name string) *ClassDescriptor {
	return ct.byName[name]
}

// MustLookup finds a class by name and treats absence as an internal error.
func (ct *ClassTable) MustLookup(name string) *ClassDescriptor {
	c, ok := ct.byName[name]
	if !ok {
		internalf("no layout for class %s", name)
	}
	return c
}

// ByTag returns the class with the given tag, or nil.
func (ct *ClassTable) ByTag(tag int) *ClassDescriptor {
	if tag < 0 || tag >= len(ct.byTag) {
		return nil
	}
	return ct.byTag[tag]
}

// All returns the classes in tag order.
func (ct *ClassTable) All() []*ClassDescriptor {
	return ct.byTag
}

// Len returns the number of classes.
func (ct *ClassTable) Len() int {
	return len(ct.byTag)
}

// ConformingTags returns the tags of c and all of its descendants in
// ascending order.
func (ct *ClassTable) ConformingTags(c *ClassDescriptor) []int {
	var tags []int
	for _, d := range ct.byTag {
		if d.IsSubclassOf(c) {
			tags = append(tags, d.Tag)
		}
	}
	return tags
}
