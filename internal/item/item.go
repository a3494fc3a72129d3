package item

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"citebroker/internal/schema"
	dErrors "citebroker/pkg/domain-errors"
)

// ErrUndefinedItemType is returned when a type is not present in the registry.
var ErrUndefinedItemType = errors.New("undefined item type")

// Transaction records one service call made on behalf of an item.
type Transaction struct {
	ID       string        `json:"id"`
	Service  string        `json:"service"`
	Status   string        `json:"status"`
	Attempts int           `json:"attempts"`
	Cached   bool          `json:"cached,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
}

// Item is a typed, ordered attribute bag. Every stored key is either declared
// by the item's type or holds a collection value.
//
// An Item is not safe for concurrent mutation. Hand concurrent readers a Clone.
type Item struct {
	id           string
	typ          string
	registry     *schema.Registry
	def          *schema.Definition
	keys         []string
	attrs        map[string]Value
	transactions []Transaction
}

// New builds an item of typ. attrs are added in key order through
// AddAttribute, so undeclared scalars are dropped. When assignDefaults is set,
// defaults fill attributes that are still absent afterwards.
func New(registry *schema.Registry, typ string, assignDefaults bool, attrs map[string]Value) (*Item, error) {
	it, err := newEmpty(registry, typ)
	if err != nil {
		return nil, err
	}
	for _, k := range sortedKeys(attrs) {
		it.AddAttribute(k, attrs[k])
	}
	if assignDefaults {
		it.applyDefaults()
	}
	return it, nil
}

func newEmpty(registry *schema.Registry, typ string) (*Item, error) {
	if registry == nil {
		return nil, dErrors.Wrap(ErrUndefinedItemType, dErrors.CodeInvalidInput, "no item registry configured")
	}
	def, ok := registry.Definition(typ)
	if !ok {
		return nil, dErrors.Wrap(ErrUndefinedItemType, dErrors.CodeInvalidInput, fmt.Sprintf("item type %q is not defined", typ))
	}
	return &Item{
		id:       uuid.NewString(),
		typ:      typ,
		registry: registry,
		def:      def,
		attrs:    make(map[string]Value),
	}, nil
}

func (it *Item) applyDefaults() {
	for _, k := range sortedKeys(it.def.Defaults) {
		if !it.Has(k) {
			it.AddAttribute(k, Scalar(it.def.Defaults[k]))
		}
	}
}

func (it *Item) ID() string   { return it.id }
func (it *Item) Type() string { return it.typ }

// Registry returns the registry the item was built against.
func (it *Item) Registry() *schema.Registry { return it.registry }

// AddAttribute stores v under key and reports whether it was kept. Declared
// scalars are normalized through the cross-reference table. Undeclared keys
// are kept only for collection values.
func (it *Item) AddAttribute(key string, v Value) bool {
	if it.def.Declares(key) {
		if v.kind == KindScalar {
			v = Scalar(it.registry.CrossReference(it.typ, key, v.scalar))
		}
		it.set(key, v)
		return true
	}
	if v.IsArray() {
		it.set(key, v)
		return true
	}
	return false
}

func (it *Item) set(key string, v Value) {
	if _, exists := it.attrs[key]; !exists {
		it.keys = append(it.keys, key)
	}
	it.attrs[key] = v
}

// Remove deletes key if present.
func (it *Item) Remove(key string) {
	if _, ok := it.attrs[key]; !ok {
		return
	}
	delete(it.attrs, key)
	it.keys = slices.DeleteFunc(it.keys, func(k string) bool { return k == key })
}

func (it *Item) Has(key string) bool {
	_, ok := it.attrs[key]
	return ok
}

func (it *Item) Attribute(key string) (Value, bool) {
	v, ok := it.attrs[key]
	return v, ok
}

// Get returns the scalar stored under key, or "".
func (it *Item) Get(key string) string {
	return it.attrs[key].scalar
}

// Keys returns attribute names in insertion order.
func (it *Item) Keys() []string {
	return slices.Clone(it.keys)
}

func (it *Item) Len() int { return len(it.keys) }

// Children returns the child items of type childType.
func (it *Item) Children(childType string) []*Item {
	return it.attrs[schema.CollectionKey(childType)].children
}

// AddChild appends child to its collection. Children of undeclared types are refused.
func (it *Item) AddChild(child *Item) bool {
	if child == nil || !it.def.HasChild(child.typ) {
		return false
	}
	key := schema.CollectionKey(child.typ)
	existing := it.attrs[key].children
	it.set(key, Children(append(slices.Clone(existing), child)...))
	return true
}

// IsValid evaluates the type's validation rules: every rule needs at least
// one of its attributes present. A type without rules is always valid.
func (it *Item) IsValid() bool {
	for _, rule := range it.def.Validation {
		if !it.satisfies(rule, false) {
			return false
		}
	}
	return true
}

// HasMinimum evaluates rules with the same AND of ORs shape, except that
// collection attributes only count when non-empty.
func (it *Item) HasMinimum(rules []schema.Rule) bool {
	for _, rule := range rules {
		if !it.satisfies(rule, true) {
			return false
		}
	}
	return true
}

func (it *Item) satisfies(rule schema.Rule, nonEmptyArrays bool) bool {
	for _, name := range rule {
		v, ok := it.attrs[name]
		if !ok {
			continue
		}
		if nonEmptyArrays && v.IsArray() && v.Len() == 0 {
			continue
		}
		return true
	}
	return false
}

// Transactions returns the recorded service calls in order.
func (it *Item) Transactions() []Transaction {
	return slices.Clone(it.transactions)
}

func (it *Item) AddTransaction(tx Transaction) {
	it.transactions = append(it.transactions, tx)
}

// Clone deep-copies the item, children included. The copy keeps the same id.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	out := &Item{
		id:           it.id,
		typ:          it.typ,
		registry:     it.registry,
		def:          it.def,
		keys:         slices.Clone(it.keys),
		attrs:        make(map[string]Value, len(it.attrs)),
		transactions: slices.Clone(it.transactions),
	}
	for k, v := range it.attrs {
		out.attrs[k] = v.clone()
	}
	return out
}

func (it *Item) String() string {
	var b strings.Builder
	for i, k := range it.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		v := it.attrs[k]
		switch v.kind {
		case KindChildren:
			fmt.Fprintf(&b, "%q = [", k)
			for j, c := range v.children {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteString("{" + c.String() + "}")
			}
			b.WriteString("]")
		case KindList:
			fmt.Fprintf(&b, "%q = [%s]", k, strings.Join(v.list, ", "))
		default:
			fmt.Fprintf(&b, "%q = %q", k, v.scalar)
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
