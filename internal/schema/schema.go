// Package schema holds the item type definitions loaded at startup: which
// attributes each type declares, its child types, default values and
// validation rules. A Registry is immutable once built and is shared by every
// request.
package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Rule is one validation clause. A single attribute is required; several
// attributes mean at least one of them must be present.
type Rule []string

// Definition describes one item type.
type Definition struct {
	Type       string
	Root       bool
	Attributes []string
	Children   []string
	Defaults   map[string]string
	Validation []Rule

	attrs map[string]struct{}
}

// Declares reports whether name is a declared attribute of the type.
func (d *Definition) Declares(name string) bool {
	_, ok := d.attrs[name]
	return ok
}

// HasChild reports whether typ is a declared child type.
func (d *Definition) HasChild(typ string) bool {
	return slices.Contains(d.Children, typ)
}

// Registry resolves item type names to definitions.
type Registry struct {
	order []string
	defs  map[string]*Definition
	root  string
	xref  map[string]map[string]map[string]string
}

// NewRegistry validates defs and indexes them in declaration order. Child
// types must themselves be declared.
func NewRegistry(defs []Definition, xrefs CrossReferences) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no item types defined")
	}

	r := &Registry{
		order: make([]string, 0, len(defs)),
		defs:  make(map[string]*Definition, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		if strings.TrimSpace(d.Type) == "" {
			return nil, fmt.Errorf("item type %d has no name", i)
		}
		if _, dup := r.defs[d.Type]; dup {
			return nil, fmt.Errorf("item type %q declared twice", d.Type)
		}
		d.attrs = make(map[string]struct{}, len(d.Attributes))
		for _, a := range d.Attributes {
			d.attrs[a] = struct{}{}
		}
		if d.Defaults == nil {
			d.Defaults = map[string]string{}
		}
		r.order = append(r.order, d.Type)
		r.defs[d.Type] = &d
		if d.Root && r.root == "" {
			r.root = d.Type
		}
	}
	if r.root == "" {
		r.root = r.order[0]
	}

	for _, typ := range r.order {
		for _, child := range r.defs[typ].Children {
			if _, ok := r.defs[child]; !ok {
				return nil, fmt.Errorf("item type %q declares undefined child %q", typ, child)
			}
		}
	}

	for _, typ := range r.order {
		if r.reaches(typ, typ, map[string]bool{}) {
			return nil, fmt.Errorf("item type %q contains itself", typ)
		}
	}

	r.xref = xrefs.index()
	return r, nil
}

// reaches reports whether target is a descendant of from.
func (r *Registry) reaches(from, target string, seen map[string]bool) bool {
	for _, child := range r.defs[from].Children {
		if child == target {
			return true
		}
		if seen[child] {
			continue
		}
		seen[child] = true
		if r.reaches(child, target, seen) {
			return true
		}
	}
	return false
}

// Definition looks up a type.
func (r *Registry) Definition(typ string) (*Definition, bool) {
	d, ok := r.defs[typ]
	return d, ok
}

// Types returns the declared types in order.
func (r *Registry) Types() []string {
	return slices.Clone(r.order)
}

// RootType is the type marked root, or the first declared type.
func (r *Registry) RootType() string {
	return r.root
}

// CrossReference maps a known value variant onto its canonical form. Values
// without an entry are returned unchanged.
func (r *Registry) CrossReference(typ, attribute, value string) string {
	if canonical, ok := r.xref[typ][attribute][value]; ok {
		return canonical
	}
	return value
}

// CollectionKey is the attribute name under which children of typ are stored.
func CollectionKey(typ string) string {
	return typ + "s"
}

// ChildType reports the child type stored under key on a parent of type
// parent, if key names one of its child collections.
func (r *Registry) ChildType(parent, key string) (string, bool) {
	d, ok := r.defs[parent]
	if !ok {
		return "", false
	}
	for _, child := range d.Children {
		if CollectionKey(child) == key {
			return child, true
		}
	}
	return "", false
}
