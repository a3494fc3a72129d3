package broker

import (
	"slices"

	"citebroker/internal/item"
	"citebroker/internal/request"
	"citebroker/internal/service"
	pstrings "citebroker/pkg/platform/strings"
)

// Plan is one tier of services to run, in order.
type Plan struct {
	Tier     string
	Services []service.Caller
}

// Resolve selects the services for it and groups them into tiers.
//
// Rule attributes are walked in declaration order. The first one seeds the
// candidates with the services listed for the item's value (none when the
// item lacks the attribute); each later one intersects. dispatch_always
// services are then appended, the client filter applied, and the survivors
// grouped by tier in configuration order. Services whose referrer block
// matches a request referrer are dropped, as are tiers left empty.
func (b *Broker) Resolve(req *request.Request, it *item.Item) []Plan {
	var candidates []string
	for i, rule := range b.rules.Objects[it.Type()] {
		var names []string
		if v, ok := it.Attribute(rule.Attribute); ok && !v.IsArray() {
			names = b.available(rule.Values[v.Str()])
		}
		if i == 0 {
			candidates = names
			continue
		}
		candidates = slices.DeleteFunc(candidates, func(n string) bool {
			return !slices.Contains(names, n)
		})
	}

	for _, name := range b.available(b.rules.DispatchAlways) {
		if !slices.Contains(candidates, name) {
			candidates = append(candidates, name)
		}
	}

	candidates = b.clientFilter(req, candidates)

	var referrers []string
	if req != nil {
		referrers = req.Referrers
	}

	var plans []Plan
	for _, t := range b.tiers {
		plan := Plan{Tier: t.Name}
		for _, def := range t.Services {
			if !slices.Contains(candidates, def.Name) {
				continue
			}
			if pstrings.AnyContainsAny(referrers, def.ReferrerBlock) {
				b.logger.Debug("service blocked for referrer", "service", def.Name, "tier", t.Name, "referrers", referrers)
				continue
			}
			plan.Services = append(plan.Services, b.callers[def.Name])
		}
		if len(plan.Services) > 0 {
			plans = append(plans, plan)
		}
	}
	return plans
}

// available keeps the configured, enabled services among names, once each.
func (b *Broker) available(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		def, ok := b.defs[n]
		if !ok || !def.Enabled || b.callers[n] == nil || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
