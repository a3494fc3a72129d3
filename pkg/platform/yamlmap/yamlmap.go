// Package yamlmap walks YAML mappings in document order. Configuration where
// declaration order carries meaning (tiers, rule attributes, translator
// aliases) is decoded through it instead of into Go maps.
package yamlmap

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pair is one key/value entry of a mapping node.
type Pair struct {
	Key   string
	Value *yaml.Node
}

// Parse decodes data and returns the top level mapping in order. Empty
// documents yield no pairs.
func Parse(data []byte) ([]Pair, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	return Pairs(doc.Content[0])
}

// Pairs returns the entries of a mapping node in order. A null node is an
// empty mapping.
func Pairs(n *yaml.Node) ([]Pair, error) {
	n = resolve(n)
	if n == nil || isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	out := make([]Pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, Pair{Key: n.Content[i].Value, Value: resolve(n.Content[i+1])})
	}
	return out, nil
}

// Lookup returns the value node stored under key, or nil.
func Lookup(n *yaml.Node, key string) *yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolve(n.Content[i+1])
		}
	}
	return nil
}

// Strings reads a scalar or a sequence of scalars as a string list.
func Strings(n *yaml.Node) ([]string, error) {
	n = resolve(n)
	if n == nil || isNull(n) {
		return nil, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			c = resolve(c)
			if c.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: expected a scalar", c.Line)
			}
			out = append(out, c.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: expected a scalar or a list", n.Line)
	}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}
