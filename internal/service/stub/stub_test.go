package stub

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citebroker/pkg/testutil"
)

func TestDefaultContent(t *testing.T) {
	reg := testutil.Registry(t)
	r := chi.NewRouter()
	New(reg, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)

	t.Run("echoes the transaction id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/default", strings.NewReader(`{"id":"tx-42","citation":{}}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := *testutil.UnmarshalResponse[map[string]any](t, rec)
		assert.Equal(t, "tx-42", body["id"])

		citations, ok := body["citations"].([]any)
		require.True(t, ok)
		require.Len(t, citations, 1)
		citation := citations[0].(map[string]any)
		assert.Equal(t, ExampleValue, citation["title"])
		assert.Len(t, citation["authors"], 1)
		assert.Len(t, citation["resources"], 1)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/default", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExample(t *testing.T) {
	reg := testutil.Registry(t)
	it, err := Example(reg, "author")
	require.NoError(t, err)
	assert.Equal(t, ExampleValue, it.Get("last_name"))
	assert.True(t, it.IsValid())

	_, err = Example(reg, "nope")
	assert.Error(t, err)
}
