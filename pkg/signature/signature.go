// Package signature computes the canonical overload identity used to join
// header declarations with source definitions.
//
// The identity is the method name plus the lower-cased base type of each
// parameter. Qualifiers (const, pointer, reference) are not part of it.
package signature

import (
	"strings"

	"github.com/raymyers/cpp2cs/pkg/model"
)

// NormalizeParameterType reduces a parameter type to its canonical
// fragment: const, *, & and whitespace removed, lower-cased.
func NormalizeParameterType(raw string) string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '*' || r == '&'
	})
	var sb strings.Builder
	for _, f := range fields {
		if f == "const" || f == "volatile" {
			continue
		}
		sb.WriteString(strings.ToLower(f))
	}
	return sb.String()
}

// Of returns the canonical signature of m, e.g. "MethodP1(tdimvalue,agrint)".
func Of(m model.Method) string {
	parts := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		parts[i] = p.Canonical
		if parts[i] == "" {
			parts[i] = NormalizeParameterType(p.Type)
		}
	}
	name := m.Name
	if m.IsDestructor && !strings.HasPrefix(name, "~") {
		name = "~" + name
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// Key identifies a method within a class.
type Key struct {
	Class     string
	Signature string
}

// KeyOf returns the lookup key for a method of class.
func KeyOf(class string, m model.Method) Key {
	return Key{Class: class, Signature: Of(m)}
}

// Index groups definitions by class and signature, keeping file order
// within each group.
type Index struct {
	groups map[Key][]model.Definition
	order  []Key
}

// NewIndex builds an index over definitions in the order given.
func NewIndex(defs []model.Definition) *Index {
	idx := &Index{groups: make(map[Key][]model.Definition)}
	for _, d := range defs {
		idx.Add(d)
	}
	return idx
}

// Add appends a definition to its group.
func (idx *Index) Add(d model.Definition) {
	k := KeyOf(d.ClassName, d.Method)
	if _, ok := idx.groups[k]; !ok {
		idx.order = append(idx.order, k)
	}
	idx.groups[k] = append(idx.groups[k], d)
}

// Lookup returns the winning definition for key and any later
// definitions that share it. ok is false when nothing matches.
func (idx *Index) Lookup(k Key) (first model.Definition, conflicts []model.Definition, ok bool) {
	group := idx.groups[k]
	if len(group) == 0 {
		return model.Definition{}, nil, false
	}
	return group[0], group[1:], true
}

// Keys returns every key in first-seen order.
func (idx *Index) Keys() []Key {
	return idx.order
}
