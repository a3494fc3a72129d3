package schema

// ValueGroup lists the variants that normalize to one canonical value.
type ValueGroup struct {
	Canonical string
	Variants  []string
}

// CrossReferences holds value normalization tables: item type, then
// attribute, then value groups in declaration order.
type CrossReferences map[string]map[string][]ValueGroup

// index flattens the groups into variant lookups. A variant listed under
// several canonical values resolves to the last one declared.
func (x CrossReferences) index() map[string]map[string]map[string]string {
	out := make(map[string]map[string]map[string]string, len(x))
	for typ, attrs := range x {
		out[typ] = make(map[string]map[string]string, len(attrs))
		for attr, groups := range attrs {
			lookup := make(map[string]string)
			for _, g := range groups {
				for _, v := range g.Variants {
					lookup[v] = g.Canonical
				}
			}
			out[typ][attr] = lookup
		}
	}
	return out
}
