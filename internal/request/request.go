// Package request models one inbound resolution request: who asked, what
// they asked about and what happened while answering. A Request is owned by
// a single broker run and is not safe for concurrent mutation.
package request

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"citebroker/internal/item"
)

var (
	referrerHostOrIP = regexp.MustCompile(`(\.[A-Za-z0-9\-_]{3,63}\.[a-zA-Z]{2,6})|(([0-9]{1,3}\.){3}[0-9]{1,3})`)
	referrerBare     = regexp.MustCompile(`[A-Za-z0-9\-_]{3,63}\.[a-zA-Z]{2,6}`)
)

// Request is the unit of work handed to the broker.
type Request struct {
	ID          string
	Type        string
	ContentType string
	Raw         string

	ClientAPIVersion  string
	ServiceAPIVersion string

	Requestor Requestor
	Referents []*item.Item
	Referrers []string
	Errors    []string

	Start time.Time
	End   time.Time

	unmapped []string
}

// New starts a request clock at now.
func New(now time.Time) *Request {
	return &Request{
		ID:    uuid.NewString(),
		Start: now,
	}
}

// AddReferent queues an item for resolution.
func (r *Request) AddReferent(it *item.Item) {
	if it != nil {
		r.Referents = append(r.Referents, it)
	}
}

// AddReferrer extracts a domain or IPv4 address from raw (a Host header, a
// full Referer URL) and records it once. Values with neither are ignored.
func (r *Request) AddReferrer(raw string) {
	ref := ExtractReferrer(raw)
	if ref == "" || slices.Contains(r.Referrers, ref) {
		return
	}
	r.Referrers = append(r.Referrers, ref)
}

// ExtractReferrer returns the first dotted domain or IPv4 address in raw, or "".
func ExtractReferrer(raw string) string {
	if m := referrerHostOrIP.FindString(raw); m != "" {
		return strings.TrimPrefix(m, ".")
	}
	return referrerBare.FindString(raw)
}

// AddUnmapped records a decoded query pair the adapter could not place on an
// item. The pair is escaped again so Unmapped stays a valid query string.
func (r *Request) AddUnmapped(key, value string) {
	r.unmapped = append(r.unmapped, url.QueryEscape(key)+"="+url.QueryEscape(value))
}

// Unmapped returns the unplaced pairs joined as a query string.
func (r *Request) Unmapped() string {
	return strings.Join(r.unmapped, "&")
}

func (r *Request) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *Request) HasErrors() bool { return len(r.Errors) > 0 }

// Finish stops the request clock.
func (r *Request) Finish(now time.Time) {
	r.End = now
}

// Duration is zero until Finish is called.
func (r *Request) Duration() time.Duration {
	if r.End.IsZero() || r.Start.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}
