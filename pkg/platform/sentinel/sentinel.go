package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Caches, outbound clients and
// publishers return these (optionally wrapped) so callers can translate them
// into domain errors or service outcomes.
//
// - ErrNotFound: key does not exist in a cache or lookup table
// - ErrUnavailable: backing service or resource temporarily unavailable
// - ErrTooLarge: a remote body exceeded the configured size cap
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrTooLarge    = errors.New("too large")
)
