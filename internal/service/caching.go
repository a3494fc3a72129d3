package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"citebroker/internal/item"
	"citebroker/internal/service/metrics"
	"citebroker/pkg/platform/sentinel"
)

// ResultCache stores serialized successful outcomes. Get returns
// sentinel.ErrNotFound on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachingCaller serves repeated lookups for the same item and requestor
// affiliation from a ResultCache. Only successful outcomes are stored.
type CachingCaller struct {
	next    Caller
	cache   ResultCache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CachingOption configures a CachingCaller.
type CachingOption func(*CachingCaller)

func WithCacheLogger(logger *slog.Logger) CachingOption {
	return func(c *CachingCaller) { c.logger = logger }
}

func WithCacheMetrics(m *metrics.Metrics) CachingOption {
	return func(c *CachingCaller) { c.metrics = m }
}

// NewCachingCaller wraps next. A nil cache or a non-positive ttl returns next unchanged.
func NewCachingCaller(next Caller, cache ResultCache, ttl time.Duration, opts ...CachingOption) Caller {
	if cache == nil || ttl <= 0 {
		return next
	}
	c := &CachingCaller{next: next, cache: cache, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *CachingCaller) Definition() Definition { return c.next.Definition() }

type cachedResult struct {
	Items []map[string]any `json:"items"`
}

func (c *CachingCaller) Invoke(ctx context.Context, call Call) Outcome {
	name := c.next.Definition().Name
	if call.Item == nil {
		return c.next.Invoke(ctx, call)
	}

	key, err := CacheKey(name, call)
	if err != nil {
		return c.next.Invoke(ctx, call)
	}

	started := time.Now()
	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		if out, ok := c.decode(raw, call.Item); ok {
			c.metrics.IncrementCacheLookup(name, "hit")
			out.Service = name
			out.Transaction = item.Transaction{
				ID:       "cache:" + key[len(key)-12:],
				Service:  name,
				Status:   out.Status(),
				Cached:   true,
				Started:  started,
				Duration: time.Since(started),
			}
			return out
		}
		c.metrics.IncrementCacheLookup(name, "error")
	case errors.Is(err, sentinel.ErrNotFound):
		c.metrics.IncrementCacheLookup(name, "miss")
	default:
		c.metrics.IncrementCacheLookup(name, "error")
		c.logger.WarnContext(ctx, "result cache read failed", "service", name, "error", err)
	}

	out := c.next.Invoke(ctx, call)
	if !out.OK() {
		return out
	}

	encoded := cachedResult{Items: make([]map[string]any, 0, len(out.Items))}
	for _, it := range out.Items {
		encoded.Items = append(encoded.Items, it.ToWireMap())
	}
	if b, err := json.Marshal(encoded); err == nil {
		if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "result cache write failed", "service", name, "error", err)
		}
	}
	return out
}

func (c *CachingCaller) decode(raw []byte, original *item.Item) (Outcome, bool) {
	var cr cachedResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Outcome{}, false
	}
	items := make([]*item.Item, 0, len(cr.Items))
	for _, m := range cr.Items {
		it, err := item.FromWireMap(original.Registry(), original.Type(), false, m)
		if err != nil {
			return Outcome{}, false
		}
		items = append(items, it)
	}
	return Outcome{Items: items}, true
}

// CacheKey identifies a call by service, item content and requestor affiliation.
func CacheKey(service string, call Call) (string, error) {
	b, err := json.Marshal(struct {
		Type        string         `json:"type"`
		Item        map[string]any `json:"item"`
		Affiliation string         `json:"affiliation"`
	}{call.Item.Type(), call.Item.ToWireMap(), call.Info.RequestorAffiliation})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return "citebroker:result:" + service + ":" + hex.EncodeToString(sum[:]), nil
}
