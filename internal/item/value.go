package item

import "slices"

// Kind distinguishes the three shapes an attribute value can take.
type Kind int

const (
	KindScalar Kind = iota
	KindChildren
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindChildren:
		return "children"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is an attribute value: a single string, a collection of child items,
// or a list of strings. The zero Value is an empty scalar.
type Value struct {
	kind     Kind
	scalar   string
	children []*Item
	list     []string
}

// Scalar wraps a single string value.
func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Children wraps a collection of child items.
func Children(items ...*Item) Value {
	return Value{kind: KindChildren, children: items}
}

// List wraps a list of plain strings.
func List(values ...string) Value {
	return Value{kind: KindList, list: values}
}

func (v Value) Kind() Kind { return v.kind }

// IsArray reports whether the value is a collection (children or list).
func (v Value) IsArray() bool { return v.kind != KindScalar }

// Str returns the scalar payload, or "" for collections.
func (v Value) Str() string { return v.scalar }

// Items returns the child items, or nil for other kinds.
func (v Value) Items() []*Item { return v.children }

// Strings returns the list payload, or nil for other kinds.
func (v Value) Strings() []string { return v.list }

// Len is the number of elements of a collection, or 1 for a non-empty scalar.
func (v Value) Len() int {
	switch v.kind {
	case KindChildren:
		return len(v.children)
	case KindList:
		return len(v.list)
	default:
		if v.scalar == "" {
			return 0
		}
		return 1
	}
}

func (v Value) clone() Value {
	out := Value{kind: v.kind, scalar: v.scalar, list: slices.Clone(v.list)}
	if v.children != nil {
		out.children = make([]*Item, len(v.children))
		for i, c := range v.children {
			out.children[i] = c.Clone()
		}
	}
	return out
}
