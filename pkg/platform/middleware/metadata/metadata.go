package metadata

import (
	"context"
	"net/http"
	"strings"

	pstrings "citebroker/pkg/platform/strings"
)

type contextKeyClient struct{}

// Client is what the broker learns about the caller from the HTTP exchange.
type Client struct {
	IP        string
	UserAgent string
	Language  string
	Host      string
	Referer   string
}

// ClientMetadata extracts caller details from the request and adds them to the
// context for use by handlers. This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClient(r.Context(), FromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromRequest reads caller details straight from r.
func FromRequest(r *http.Request) Client {
	return Client{
		IP:        ClientIPFromRequest(r),
		UserAgent: r.Header.Get("User-Agent"),
		Language:  r.Header.Get("Accept-Language"),
		Host:      r.Host,
		Referer:   r.Header.Get("Referer"),
	}
}

// GetClient retrieves caller details from the context.
func GetClient(ctx context.Context) Client {
	if c, ok := ctx.Value(contextKeyClient{}).(Client); ok {
		return c
	}
	return Client{}
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(ctx context.Context) string {
	return GetClient(ctx).IP
}

// WithClient injects caller details into a context.
// Useful for unit tests that don't run the full HTTP middleware chain.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, contextKeyClient{}, c)
}

// Referrers returns the raw values that identify where the caller came from,
// trimmed and without repeats.
func (c Client) Referrers() []string {
	return pstrings.DedupeAndTrim([]string{c.Host, c.Referer})
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" or "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return ""
}
