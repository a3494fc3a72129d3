package item

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"citebroker/internal/schema"
)

// ToWireMap flattens the item into JSON-ready maps. Children become nested
// maps under their collection key. Empty collections are omitted.
func (it *Item) ToWireMap() map[string]any {
	out := make(map[string]any, len(it.keys))
	for _, k := range it.keys {
		v := it.attrs[k]
		switch v.kind {
		case KindChildren:
			if len(v.children) == 0 {
				continue
			}
			kids := make([]any, 0, len(v.children))
			for _, c := range v.children {
				kids = append(kids, c.ToWireMap())
			}
			out[k] = kids
		case KindList:
			if len(v.list) == 0 {
				continue
			}
			vals := make([]any, 0, len(v.list))
			for _, s := range v.list {
				vals = append(vals, s)
			}
			out[k] = vals
		default:
			out[k] = v.scalar
		}
	}
	return out
}

// FromWireMap is the inverse of ToWireMap. Arrays under a child collection
// key become child items; other arrays become lists. Numbers and booleans are
// stored as their string form. Nested objects outside a child collection are
// dropped.
func FromWireMap(registry *schema.Registry, typ string, assignDefaults bool, m map[string]any) (*Item, error) {
	it, err := newEmpty(registry, typ)
	if err != nil {
		return nil, err
	}

	for _, k := range sortedKeys(m) {
		switch raw := m[k].(type) {
		case []any:
			if childType, ok := registry.ChildType(typ, k); ok {
				kids := make([]*Item, 0, len(raw))
				for _, elem := range raw {
					cm, ok := elem.(map[string]any)
					if !ok {
						continue
					}
					child, err := FromWireMap(registry, childType, assignDefaults, cm)
					if err != nil {
						return nil, err
					}
					kids = append(kids, child)
				}
				it.AddAttribute(k, Children(kids...))
				continue
			}
			vals := make([]string, 0, len(raw))
			for _, elem := range raw {
				if s, ok := scalarString(elem); ok {
					vals = append(vals, s)
				} else if b, err := json.Marshal(elem); err == nil {
					vals = append(vals, string(b))
				}
			}
			it.AddAttribute(k, List(vals...))
		default:
			if s, ok := scalarString(raw); ok {
				it.AddAttribute(k, Scalar(s))
			}
		}
	}

	if assignDefaults {
		it.applyDefaults()
	}
	return it, nil
}

// FromFlatMap builds an item hierarchy from a flat key/value map such as a
// parsed query string. Each declared child type is built from the same map
// and attached only when it picked up at least one value. Blank values are
// ignored.
func FromFlatMap(registry *schema.Registry, typ string, assignDefaults bool, flat map[string]string) (*Item, error) {
	it, err := newEmpty(registry, typ)
	if err != nil {
		return nil, err
	}

	for _, childType := range it.def.Children {
		child, err := FromFlatMap(registry, childType, false, flat)
		if err != nil {
			return nil, err
		}
		if child.Len() == 0 {
			continue
		}
		if assignDefaults {
			child.applyDefaults()
		}
		it.AddChild(child)
	}

	for _, k := range sortedKeys(flat) {
		if !it.def.Declares(k) || strings.TrimSpace(flat[k]) == "" {
			continue
		}
		it.AddAttribute(k, Scalar(flat[k]))
	}

	if assignDefaults {
		it.applyDefaults()
	}
	return it, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", false
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}
