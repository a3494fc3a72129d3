// Package translator renames attribute keys between the broker's internal
// vocabulary and the names an external party (a service, an OpenURL client)
// uses. Each internal name maps to one or more external aliases; the first
// alias is the canonical outbound form.
package translator

import (
	"fmt"

	"citebroker/pkg/platform/yamlmap"
)

// AdditionalKey holds opaque extra data and is never translated.
const AdditionalKey = "additional"

// Mapping ties one internal name to its external aliases.
type Mapping struct {
	Internal string
	Aliases  []string
}

// Translator is immutable after construction and safe for concurrent use. A
// nil *Translator translates nothing.
type Translator struct {
	name       string
	toInternal map[string]string
	toExternal map[string]string
}

// New indexes mappings. At least one alias is required overall and an alias
// may belong to only one internal name.
func New(name string, mappings []Mapping) (*Translator, error) {
	t := &Translator{
		name:       name,
		toInternal: make(map[string]string),
		toExternal: make(map[string]string),
	}
	for _, m := range mappings {
		for _, alias := range m.Aliases {
			if owner, taken := t.toInternal[alias]; taken && owner != m.Internal {
				return nil, fmt.Errorf("translator %q: alias %q maps to both %q and %q", name, alias, owner, m.Internal)
			}
			t.toInternal[alias] = m.Internal
			if _, ok := t.toExternal[m.Internal]; !ok {
				t.toExternal[m.Internal] = alias
			}
		}
	}
	if len(t.toInternal) == 0 {
		return nil, fmt.Errorf("translator %q: no mappings defined", name)
	}
	return t, nil
}

// Parse reads a translation document of the form
//
//	internal_name: external_name
//	other_name: [canonical_alias, another_alias]
func Parse(name string, data []byte) (*Translator, error) {
	pairs, err := yamlmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("translator %q: %w", name, err)
	}
	mappings := make([]Mapping, 0, len(pairs))
	for _, p := range pairs {
		aliases, err := yamlmap.Strings(p.Value)
		if err != nil {
			return nil, fmt.Errorf("translator %q, key %q: %w", name, p.Key, err)
		}
		mappings = append(mappings, Mapping{Internal: p.Key, Aliases: aliases})
	}
	return New(name, mappings)
}

func (t *Translator) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// TranslateKey maps key to its external canonical alias (toExternal) or to
// its internal name. Unknown keys come back unchanged.
func (t *Translator) TranslateKey(key string, toExternal bool) string {
	if t == nil {
		return key
	}
	lookup := t.toInternal
	if toExternal {
		lookup = t.toExternal
	}
	if out, ok := lookup[key]; ok {
		return out
	}
	return key
}

// TranslateMap renames every key of m recursively. Arrays of objects are
// translated element by element, arrays of plain values are copied, and the
// additional key passes through untouched.
func (t *Translator) TranslateMap(m map[string]any, toExternal bool) map[string]any {
	if t == nil || len(m) == 0 {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == AdditionalKey {
			out[k] = v
			continue
		}
		key := t.TranslateKey(k, toExternal)
		arr, ok := v.([]any)
		if !ok {
			out[key] = v
			continue
		}
		elems := make([]any, 0, len(arr))
		for _, e := range arr {
			if child, ok := e.(map[string]any); ok {
				elems = append(elems, t.TranslateMap(child, toExternal))
			} else {
				elems = append(elems, e)
			}
		}
		out[key] = elems
	}
	return out
}
