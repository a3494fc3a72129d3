package broker

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"citebroker/internal/schema"
	"citebroker/pkg/platform/yamlmap"
)

// AttributeRule maps values of one attribute to the services that can
// handle them.
type AttributeRule struct {
	Attribute string
	Values    map[string][]string
}

// Rules drive service resolution.
type Rules struct {
	// Objects holds, per item type, attribute rules in declaration order.
	Objects map[string][]AttributeRule
	// DispatchAlways services are added to every resolution.
	DispatchAlways []string
	// MinimumItemGroups gate individual services inside a tier.
	MinimumItemGroups map[string][]schema.Rule
}

// ParseRules reads the rules document:
//
//	objects:
//	  citation:
//	    genre:
//	      book: [sfx, worldcat]
//	    content_type:
//	      text: [sfx]
//	dispatch_always: [default]
//	minimum_item_groups:
//	  sfx: [[title, article_title], [issn, isbn]]
func ParseRules(data []byte) (*Rules, error) {
	top, err := yamlmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	r := &Rules{
		Objects:           make(map[string][]AttributeRule),
		MinimumItemGroups: make(map[string][]schema.Rule),
	}
	for _, p := range top {
		switch p.Key {
		case "objects":
			if err := r.parseObjects(p.Value); err != nil {
				return nil, fmt.Errorf("parse rules: %w", err)
			}
		case "dispatch_always":
			if r.DispatchAlways, err = yamlmap.Strings(p.Value); err != nil {
				return nil, fmt.Errorf("parse rules: dispatch_always: %w", err)
			}
		case "minimum_item_groups":
			groups, err := yamlmap.Pairs(p.Value)
			if err != nil {
				return nil, fmt.Errorf("parse rules: minimum_item_groups: %w", err)
			}
			for _, g := range groups {
				var rules []schema.Rule
				if err := g.Value.Decode(&rules); err != nil {
					return nil, fmt.Errorf("parse rules: minimum_item_groups %q: %w", g.Key, err)
				}
				r.MinimumItemGroups[g.Key] = rules
			}
		}
	}
	return r, nil
}

func (r *Rules) parseObjects(n *yaml.Node) error {
	types, err := yamlmap.Pairs(n)
	if err != nil {
		return err
	}
	for _, t := range types {
		attrs, err := yamlmap.Pairs(t.Value)
		if err != nil {
			return fmt.Errorf("objects %q: %w", t.Key, err)
		}
		for _, a := range attrs {
			values, err := yamlmap.Pairs(a.Value)
			if err != nil {
				return fmt.Errorf("objects %q attribute %q: %w", t.Key, a.Key, err)
			}
			rule := AttributeRule{Attribute: a.Key, Values: make(map[string][]string, len(values))}
			for _, v := range values {
				names, err := yamlmap.Strings(v.Value)
				if err != nil {
					return fmt.Errorf("objects %q attribute %q value %q: %w", t.Key, a.Key, v.Key, err)
				}
				rule.Values[v.Key] = names
			}
			r.Objects[t.Key] = append(r.Objects[t.Key], rule)
		}
	}
	return nil
}

// ServiceNames lists every service the rules mention, for load time checks.
func (r *Rules) ServiceNames() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(names ...string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	for _, rules := range r.Objects {
		for _, ar := range rules {
			for _, names := range ar.Values {
				add(names...)
			}
		}
	}
	add(r.DispatchAlways...)
	return out
}
