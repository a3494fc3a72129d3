// Package messages renders the human readable texts sent to clients and
// written to request logs. Templates use "?" placeholders that are filled
// left to right with quoted arguments.
package messages

import (
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys used by the broker, tiers and services.
const (
	BrokerNoServicesAvailable = "broker_no_services_available"
	BrokerBadItem             = "broker_bad_item_message"
	BrokerResponseSuccess     = "broker_response_success"
	BrokerConsortialError     = "broker_consortial_error"
	TierTimeout               = "tier_timeout"
	TierUnknownItemType       = "tier_unknown_item_type"
	TierNoOriginalItem        = "tier_no_original_item"
	UndefinedItemType         = "undefined_item_type"
	ServicePrefix             = "service_"
)

var defaults = map[string]string{
	BrokerNoServicesAvailable: "No services are available to resolve this citation.",
	BrokerBadItem:             "The citation does not contain enough information to be resolved.",
	BrokerResponseSuccess:     "All services have responded.",
	BrokerConsortialError:     "Unable to determine the consortial affiliation.",
	TierTimeout:               "Tier ? timed out waiting for its services.",
	TierUnknownItemType:       "Service ? returned an item of an unknown type.",
	TierNoOriginalItem:        "Service ? responded but there was no original item to merge into.",
	UndefinedItemType:         "? is not a defined item type.",

	"service_buffer_overflow":    "? returned more data than allowed.",
	"service_wrong_response":     "? responded to a different request.",
	"service_unknown_item":       "? returned an unrecognized response.",
	"service_bad_request":        "? rejected the request.",
	"service_server_error_fatal": "? failed with an unrecoverable error.",
	"service_bad_json":           "? returned malformed JSON.",
	"service_connection_refused": "? refused the connection.",
	"service_timeout":            "? did not respond in time.",
	"service_server_error":       "? could not be reached.",
	"service_no_target_defined":  "? has no target configured.",
}

// Catalog is an immutable set of templates. The zero Catalog uses the
// built-in texts.
type Catalog struct {
	templates map[string]string
}

// New overlays overrides on the built-in texts.
func New(overrides map[string]string) Catalog {
	t := maps.Clone(defaults)
	maps.Copy(t, overrides)
	return Catalog{templates: t}
}

// Parse reads a flat key: template document.
func Parse(data []byte) (Catalog, error) {
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return Catalog{}, fmt.Errorf("parse messages: %w", err)
	}
	return New(overrides), nil
}

// Has reports whether key has a template.
func (c Catalog) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Build renders key with args. Unknown keys render as the key itself.
func (c Catalog) Build(key string, args ...any) string {
	tmpl, ok := c.lookup(key)
	if !ok {
		return key
	}
	return Fill(tmpl, args...)
}

func (c Catalog) lookup(key string) (string, bool) {
	if c.templates == nil {
		t, ok := defaults[key]
		return t, ok
	}
	t, ok := c.templates[key]
	return t, ok
}

// Fill replaces each "?" in tmpl, left to right, with the next argument in
// single quotes. Surplus placeholders are left as is.
func Fill(tmpl string, args ...any) string {
	if len(args) == 0 {
		return tmpl
	}
	var b strings.Builder
	i := 0
	for _, r := range tmpl {
		if r == '?' && i < len(args) {
			fmt.Fprintf(&b, "'%v'", args[i])
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
