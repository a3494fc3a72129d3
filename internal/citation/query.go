// Package citation builds broker requests from OpenURL style query strings.
package citation

import (
	"net/url"
	"strings"

	"citebroker/internal/item"
	"citebroker/internal/request"
	"citebroker/internal/schema"
	"citebroker/internal/translator"
)

// RequestType tags requests built from query strings.
const RequestType = "openurl"

// Parser maps query parameters onto the root item type. It is immutable and
// safe for concurrent use.
type Parser struct {
	registry       *schema.Registry
	translator     *translator.Translator
	affiliationKey string
}

// NewParser builds a parser. tr renames OpenURL keys to attribute names and
// may be nil. Values of affiliationKey set the requestor affiliation.
func NewParser(registry *schema.Registry, tr *translator.Translator, affiliationKey string) *Parser {
	return &Parser{registry: registry, translator: tr, affiliationKey: affiliationKey}
}

// Parse reads raw into req: the affiliation parameter sets the requestor
// affiliation, parameters naming an attribute of the root type or one of its
// descendants build the referent, and everything else is kept as unmapped.
// The referent is returned after being added to req.
func (p *Parser) Parse(raw string, req *request.Request) (*item.Item, error) {
	req.Raw = raw
	req.Type = RequestType

	root := p.registry.RootType()
	flat := make(map[string]string)
	for _, pair := range splitQuery(raw) {
		if p.affiliationKey != "" && pair.key == p.affiliationKey {
			req.Requestor.Affiliation = pair.value
			continue
		}
		name := p.translator.TranslateKey(strings.TrimPrefix(pair.key, "rft."), false)
		if !p.declared(root, name) {
			req.AddUnmapped(pair.key, pair.value)
			continue
		}
		if _, seen := flat[name]; !seen {
			flat[name] = pair.value
		}
	}

	it, err := item.FromFlatMap(p.registry, root, true, flat)
	if err != nil {
		return nil, err
	}
	req.AddReferent(it)
	return it, nil
}

// declared reports whether typ or one of its descendants declares name.
func (p *Parser) declared(typ, name string) bool {
	def, ok := p.registry.Definition(typ)
	if !ok {
		return false
	}
	if def.Declares(name) {
		return true
	}
	for _, child := range def.Children {
		if p.declared(child, name) {
			return true
		}
	}
	return false
}

type queryPair struct {
	key   string
	value string
}

// splitQuery decodes raw in order. Pairs without a key are dropped and
// undecodable escapes are kept verbatim.
func splitQuery(raw string) []queryPair {
	raw = strings.TrimPrefix(raw, "?")
	var out []queryPair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		k = unescape(k)
		if k == "" {
			continue
		}
		out = append(out, queryPair{key: k, value: unescape(v)})
	}
	return out
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
