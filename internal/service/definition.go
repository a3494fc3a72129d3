package service

import (
	"fmt"
	"time"

	"citebroker/pkg/platform/yamlmap"
)

const (
	DefaultMaxAttempts = 1
	DefaultTimeout     = 30 * time.Second
)

// Definition is the static configuration of one external service.
type Definition struct {
	Name              string   `yaml:"-"`
	Tier              string   `yaml:"-"`
	DisplayName       string   `yaml:"display_name"`
	Enabled           bool     `yaml:"enabled"`
	MaxAttempts       int      `yaml:"max_attempts"`
	TimeoutMS         int      `yaml:"timeout"`
	Target            string   `yaml:"target"`
	ItemTypesReturned []string `yaml:"item_types_returned"`
	ReferrerBlock     []string `yaml:"do_not_call_if_referrer_from"`
	Translator        string   `yaml:"translator"`
}

// Timeout is the per-attempt deadline.
func (d Definition) Timeout() time.Duration {
	if d.TimeoutMS <= 0 {
		return DefaultTimeout
	}
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

func (d *Definition) applyDefaults() {
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = DefaultMaxAttempts
	}
	if d.TimeoutMS <= 0 {
		d.TimeoutMS = int(DefaultTimeout / time.Millisecond)
	}
}

// TierSpec is a named, ordered group of service definitions.
type TierSpec struct {
	Name     string
	Services []Definition
}

// ParseTiers reads the services document. Tier order and service order are
// the order of declaration:
//
//	tiers:
//	  first:
//	    sfx:
//	      enabled: true
//	      target: http://localhost:3101/sfx
//	      timeout: 5000
//	      item_types_returned: [citation, resource]
//	  second:
//	    ...
func ParseTiers(data []byte) ([]TierSpec, error) {
	top, err := yamlmap.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse services: %w", err)
	}
	var tiersNode []yamlmap.Pair
	for _, p := range top {
		if p.Key != "tiers" {
			continue
		}
		if tiersNode, err = yamlmap.Pairs(p.Value); err != nil {
			return nil, fmt.Errorf("parse services: %w", err)
		}
	}

	seen := make(map[string]string)
	out := make([]TierSpec, 0, len(tiersNode))
	for _, t := range tiersNode {
		services, err := yamlmap.Pairs(t.Value)
		if err != nil {
			return nil, fmt.Errorf("parse tier %q: %w", t.Key, err)
		}
		spec := TierSpec{Name: t.Key}
		for _, s := range services {
			if prev, dup := seen[s.Key]; dup {
				return nil, fmt.Errorf("service %q declared in tiers %q and %q", s.Key, prev, t.Key)
			}
			seen[s.Key] = t.Key

			var def Definition
			if s.Value != nil {
				if err := s.Value.Decode(&def); err != nil {
					return nil, fmt.Errorf("parse service %q: %w", s.Key, err)
				}
			}
			def.Name = s.Key
			def.Tier = t.Key
			def.applyDefaults()
			spec.Services = append(spec.Services, def)
		}
		out = append(out, spec)
	}
	return out, nil
}
