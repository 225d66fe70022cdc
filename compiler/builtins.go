package compiler

// Built-in class names.
const (
	ObjectClass = "Object"
	IOClass     = "IO"
	IntClass    = "Int"
	StringClass = "String"
	BoolClass   = "Bool"
)

// Fixed tags of the built-in classes.
const (
	ObjectTag = iota
	IOTag
	IntTag
	StringTag
	BoolTag
	FirstUserTag
)

// builtinClass describes a class whose methods live in the runtime.
type builtinClass struct {
	name    string
	parent  string
	attrs   []attributeDecl
	methods []string
}

// builtinClasses lists the built-ins in tag order.
var builtinClasses = []builtinClass{
	{
		name:    ObjectClass,
		methods: []string{"abort", "type_name", "copy"},
	},
	{
		name:    IOClass,
		parent:  ObjectClass,
		methods: []string{"out_string", "out_int", "in_string", "in_int"},
	},
	{
		name:   IntClass,
		parent: ObjectClass,
		attrs:  []attributeDecl{{name: "_val", typ: "prim_slot", raw: "0"}},
	},
	{
		name:   StringClass,
		parent: ObjectClass,
		attrs: []attributeDecl{
			{name: "_val", typ: IntClass},
			{name: "_str", typ: "prim_slot"},
		},
		methods: []string{"length", "concat", "substr"},
	},
	{
		name:   BoolClass,
		parent: ObjectClass,
		attrs:  []attributeDecl{{name: "_val", typ: "prim_slot", raw: "0"}},
	},
}

// defineBuiltins registers the built-in classes under tags 0 to 4.
func (ct *ClassTable) defineBuiltins() {
	for _, b := range builtinClasses {
		c := ct.Define(b.name, b.parent)
		c.Builtin = true
		c.attrs = append(c.attrs, b.attrs...)
		c.methods = append(c.methods, b.methods...)
	}
}

// IsBuiltin reports whether name is one of the built-in classes.
func IsBuiltin(name string) bool {
	for _, b := range builtinClasses {
		if b.name == name {
			return true
		}
	}
	return false
}

// isValueClass reports whether a class is one of the unboxed-value
// built-ins that user classes may not extend.
func isValueClass(name string) bool {
	return name == IntClass || name == StringClass || name == BoolClass
}
