package consortial

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citebroker/internal/request"
	dErrors "citebroker/pkg/domain-errors"
	"citebroker/pkg/platform/sentinel"
)

// newLookupServer answers /ip/<value> and /code/<value> from the given tables.
func newLookupServer(t *testing.T, codes, ips map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ip/"):
			_, _ = io.WriteString(w, codes[strings.TrimPrefix(r.URL.Path, "/ip/")])
		case strings.HasPrefix(r.URL.Path, "/code/"):
			_, _ = io.WriteString(w, ips[strings.TrimPrefix(r.URL.Path, "/code/")])
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server, maxBytes int64) *Client {
	return New(Config{
		TranslateFromIP:   srv.URL + "/ip/?",
		TranslateFromCode: srv.URL + "/code/?",
		MaxResponseBytes:  maxBytes,
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestResolve(t *testing.T) {
	srv := newLookupServer(t,
		map[string]string{"10.0.0.1": "UCLA", "10.0.0.9": "UCB"},
		map[string]string{"UCLA": "10.1.1.1", "UCD": "10.2.2.2"},
	)
	c := newClient(srv, 0)
	ctx := context.Background()

	t.Run("nothing known uses the connection address", func(t *testing.T) {
		r := &request.Requestor{}
		require.NoError(t, c.Resolve(ctx, r, "10.0.0.1"))
		assert.Equal(t, "UCLA", r.Affiliation)
		assert.Equal(t, "10.1.1.1", r.IP)
	})

	t.Run("unknown ip is not stored", func(t *testing.T) {
		r := &request.Requestor{}
		require.NoError(t, c.Resolve(ctx, r, "10.0.0.9"))
		assert.Equal(t, "UCB", r.Affiliation)
		assert.Empty(t, r.IP)
	})

	t.Run("ip only", func(t *testing.T) {
		r := &request.Requestor{IP: "10.0.0.9"}
		require.NoError(t, c.Resolve(ctx, r, "10.0.0.1"))
		assert.Equal(t, "UCB", r.Affiliation)
		assert.Equal(t, "10.0.0.9", r.IP)
	})

	t.Run("affiliation only", func(t *testing.T) {
		r := &request.Requestor{Affiliation: "UCD"}
		require.NoError(t, c.Resolve(ctx, r, "10.0.0.1"))
		assert.Equal(t, "10.2.2.2", r.IP)
	})

	t.Run("both known is left alone", func(t *testing.T) {
		r := &request.Requestor{Affiliation: "X", IP: "1.2.3.4"}
		require.NoError(t, c.Resolve(ctx, r, "10.0.0.1"))
		assert.Equal(t, "X", r.Affiliation)
		assert.Equal(t, "1.2.3.4", r.IP)
	})
}

func TestTranslate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, "0123456789")
	}))
	t.Cleanup(srv.Close)

	t.Run("value is escaped into the target", func(t *testing.T) {
		c := New(Config{TranslateFromCode: srv.URL + "/lookup/?"})
		got, err := c.IPFromCode(context.Background(), "A&B")
		require.NoError(t, err)
		assert.Equal(t, "0123456789", got)
		assert.Equal(t, "/lookup/A&B", gotPath)
	})

	t.Run("oversized response", func(t *testing.T) {
		c := newClient(srv, 4)
		_, err := c.CodeFromIP(context.Background(), "1.1.1.1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
		assert.ErrorIs(t, err, sentinel.ErrTooLarge)
	})

	t.Run("unreachable service", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		c := New(Config{TranslateFromIP: dead.URL + "/?"})
		_, err := c.CodeFromIP(context.Background(), "1.1.1.1")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := New(Config{}).CodeFromIP(context.Background(), "1.1.1.1")
		assert.Error(t, err)
	})
}
