// Package consortial translates between campus affiliation codes and IP
// addresses through an external lookup service.
package consortial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"citebroker/internal/request"
	dErrors "citebroker/pkg/domain-errors"
	"citebroker/pkg/platform/sentinel"
)

// Unknown is what the lookup service means when it has no answer. Empty
// responses are reported the same way.
const Unknown = "unknown"

// Config mirrors the consortial_service settings.
type Config struct {
	// TranslateFromIP and TranslateFromCode are URLs where "?" is replaced
	// by the escaped lookup value.
	TranslateFromIP   string
	TranslateFromCode string
	Timeout           time.Duration
	MaxResponseBytes  int64
}

// Client performs lookups. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 1 << 20
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CodeFromIP returns the affiliation code for ip.
func (c *Client) CodeFromIP(ctx context.Context, ip string) (string, error) {
	return c.translate(ctx, c.cfg.TranslateFromIP, ip)
}

// IPFromCode returns a representative IP address for code.
func (c *Client) IPFromCode(ctx context.Context, code string) (string, error) {
	return c.translate(ctx, c.cfg.TranslateFromCode, code)
}

// Resolve fills in whichever of the requestor's affiliation and IP is
// missing. With neither present, connIP is translated to a code and the code
// back to an IP. An Unknown IP is never stored.
func (c *Client) Resolve(ctx context.Context, r *request.Requestor, connIP string) error {
	switch {
	case r.Affiliation == "" && r.IP == "":
		code, err := c.CodeFromIP(ctx, connIP)
		if err != nil {
			return err
		}
		r.Affiliation = code
		ip, err := c.IPFromCode(ctx, code)
		if err != nil {
			return err
		}
		if ip != Unknown {
			r.IP = ip
		}
	case r.Affiliation == "":
		code, err := c.CodeFromIP(ctx, r.IP)
		if err != nil {
			return err
		}
		r.Affiliation = code
	case r.IP == "":
		ip, err := c.IPFromCode(ctx, r.Affiliation)
		if err != nil {
			return err
		}
		if ip != Unknown {
			r.IP = ip
		}
	}
	return nil
}

func (c *Client) translate(ctx context.Context, target, value string) (string, error) {
	if target == "" {
		return "", dErrors.New(dErrors.CodeInternal, "consortial target not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	dest := strings.Replace(target, "?", url.QueryEscape(value), 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dest, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "invalid consortial target")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "consortial lookup failed", "target", dest, "error", err)
		return "", dErrors.Wrap(fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err), dErrors.CodeUnavailable, "consortial lookup failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "read consortial response")
	}
	if int64(len(data)) > c.cfg.MaxResponseBytes {
		c.logger.ErrorContext(ctx, "consortial response too large", "target", dest, "limit", c.cfg.MaxResponseBytes)
		return "", dErrors.Wrap(sentinel.ErrTooLarge, dErrors.CodeInternal, fmt.Sprintf("consortial response exceeds %d bytes", c.cfg.MaxResponseBytes))
	}

	out := strings.TrimSpace(string(data))
	if out == "" {
		return Unknown, nil
	}
	return out, nil
}
