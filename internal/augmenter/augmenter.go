// Package augmenter merges what a service returned into the item the broker
// is building. The first writer of an attribute wins; later values for the
// same key are stripped from the incoming item so only new information is
// forwarded to the client.
package augmenter

import "citebroker/internal/item"

// Augment folds incoming into original. For each attribute of incoming:
// collections leave original untouched; keys original already has are
// removed from incoming; everything else is copied into original.
//
// No conflict detection is performed. Repeating the call is a no-op.
func Augment(original, incoming *item.Item) {
	if original == nil || incoming == nil {
		return
	}
	for _, key := range incoming.Keys() {
		v, _ := incoming.Attribute(key)
		if v.IsArray() {
			continue
		}
		if original.Has(key) {
			incoming.Remove(key)
			continue
		}
		original.AddAttribute(key, v)
	}
}
