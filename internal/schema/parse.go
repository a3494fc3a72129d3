package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"citebroker/pkg/platform/yamlmap"
)

type definitionDoc struct {
	Root       bool              `yaml:"root"`
	Attributes []string          `yaml:"attributes"`
	Children   []string          `yaml:"children"`
	Defaults   map[string]string `yaml:"default"`
	Validation []Rule            `yaml:"validation"`
}

// UnmarshalYAML accepts a bare attribute name or a list of alternatives.
func (r *Rule) UnmarshalYAML(n *yaml.Node) error {
	names, err := yamlmap.Strings(n)
	if err != nil {
		return fmt.Errorf("validation rule: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("line %d: empty validation rule", n.Line)
	}
	*r = names
	return nil
}

// ParseDefinitions reads the item type document:
//
//	objects:
//	  citation:
//	    root: true
//	    attributes: [title, issn, isbn]
//	    children: [author]
//	    default: {genre: article}
//	    validation: [title, [issn, isbn]]
func ParseDefinitions(data []byte) ([]Definition, error) {
	top, err := yamlmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse item types: %w", err)
	}

	var objects *yaml.Node
	for _, p := range top {
		if p.Key == "objects" {
			objects = p.Value
		}
	}
	if objects == nil {
		return nil, fmt.Errorf("parse item types: missing objects section")
	}

	pairs, err := yamlmap.Pairs(objects)
	if err != nil {
		return nil, fmt.Errorf("parse item types: %w", err)
	}

	defs := make([]Definition, 0, len(pairs))
	for _, p := range pairs {
		var doc definitionDoc
		if err := p.Value.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse item type %q: %w", p.Key, err)
		}
		defs = append(defs, Definition{
			Type:       p.Key,
			Root:       doc.Root,
			Attributes: doc.Attributes,
			Children:   doc.Children,
			Defaults:   doc.Defaults,
			Validation: doc.Validation,
		})
	}
	return defs, nil
}

// ParseCrossReferences reads the value normalization document:
//
//	citation:
//	  genre:
//	    article: [journal_article, art]
func ParseCrossReferences(data []byte) (CrossReferences, error) {
	types, err := yamlmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse cross references: %w", err)
	}

	out := make(CrossReferences, len(types))
	for _, t := range types {
		attrs, err := yamlmap.Pairs(t.Value)
		if err != nil {
			return nil, fmt.Errorf("parse cross references for %q: %w", t.Key, err)
		}
		out[t.Key] = make(map[string][]ValueGroup, len(attrs))
		for _, a := range attrs {
			groups, err := yamlmap.Pairs(a.Value)
			if err != nil {
				return nil, fmt.Errorf("parse cross references for %s.%s: %w", t.Key, a.Key, err)
			}
			for _, g := range groups {
				variants, err := yamlmap.Strings(g.Value)
				if err != nil {
					return nil, fmt.Errorf("parse cross references for %s.%s: %w", t.Key, a.Key, err)
				}
				out[t.Key][a.Key] = append(out[t.Key][a.Key], ValueGroup{Canonical: g.Key, Variants: variants})
			}
		}
	}
	return out, nil
}
