// Package asm renders assembly text from trees of named template fragments.
//
// A Group holds a set of named templates. A Fragment names one template and
// binds values to its attributes; values may be strings, integers or other
// fragments, and an attribute may be bound more than once to build a list.
// Rendering is bottom-up: nested fragments are rendered first and the
// results are handed to the parent template as text.
package asm

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed mips.tmpl
var mipsSource string

// Group is a named set of fragment templates.
type Group struct {
	name string
	tmpl *template.Template
}

// Parse builds a Group from template source containing {{define}} blocks.
func Parse(name, source string) (*Group, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("asm: parse %s: %w", name, err)
	}
	return &Group{name: name, tmpl: t}, nil
}

// MIPS returns a fresh Group holding the SPIM templates.
func MIPS() *Group {
	g, err := Parse("mips", mipsSource)
	if err != nil {
		panic(err)
	}
	return g
}

// Has reports whether the group defines the named template.
func (g *Group) Has(name string) bool {
	return g.tmpl.Lookup(name) != nil
}

// New returns an empty fragment for the named template.
func (g *Group) New(name string) *Fragment {
	return &Fragment{group: g, name: name, attrs: make(map[string][]any)}
}

// Fragment is one template instance with its attribute bindings.
type Fragment struct {
	group *Group
	name  string
	keys  []string
	attrs map[string][]any
}

// Name returns the template name.
func (f *Fragment) Name() string { return f.name }

// Add appends v to the attribute key and returns f for chaining.
// A nil *Fragment is ignored.
func (f *Fragment) Add(key string, v any) *Fragment {
	if child, ok := v.(*Fragment); ok && child == nil {
		return f
	}
	if _, ok := f.attrs[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.attrs[key] = append(f.attrs[key], v)
	return f
}

// Get returns the values bound to key in binding order.
func (f *Fragment) Get(key string) []any {
	return f.attrs[key]
}

// Len returns the number of values bound to key.
func (f *Fragment) Len(key string) int {
	return len(f.attrs[key])
}

// Render renders the fragment and all nested fragments.
func (f *Fragment) Render() (string, error) {
	if !f.group.Has(f.name) {
		return "", fmt.Errorf("asm: no template %q in group %s", f.name, f.group.name)
	}
	data := make(map[string]Values, len(f.attrs))
	for _, key := range f.keys {
		vals := make(Values, 0, len(f.attrs[key]))
		for _, v := range f.attrs[key] {
			s, err := renderValue(v)
			if err != nil {
				return "", fmt.Errorf("%s.%s: %w", f.name, key, err)
			}
			vals = append(vals, s)
		}
		data[key] = vals
	}
	var sb strings.Builder
	if err := f.group.tmpl.ExecuteTemplate(&sb, f.name, data); err != nil {
		return "", fmt.Errorf("asm: render %s: %w", f.name, err)
	}
	return sb.String(), nil
}

// String renders the fragment, returning an error marker on failure.
func (f *Fragment) String() string {
	s, err := f.Render()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return s
}

func renderValue(v any) (string, error) {
	switch x := v.(type) {
	case *Fragment:
		return x.Render()
	case string:
		return x, nil
	case int:
		return fmt.Sprintf("%d", x), nil
	case int32:
		return fmt.Sprintf("%d", x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("unsupported value %T", v)
	}
}

// Values is the rendered text of one attribute. A template prints it as
// its non-empty elements joined by newlines.
type Values []string

func (v Values) String() string {
	return v.join("\n")
}

// Spaced joins the non-empty elements with blank lines between them.
func (v Values) Spaced() string {
	return v.join("\n\n")
}

func (v Values) join(sep string) string {
	parts := make([]string, 0, len(v))
	for _, s := range v {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
