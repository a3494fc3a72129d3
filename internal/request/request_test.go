package request

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citebroker/internal/item"
	"citebroker/pkg/testutil"
)

func TestExtractReferrer(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "http://search.library.org/results?q=1", want: "library.org"},
		{raw: "broker.example.edu", want: "example.edu"},
		{raw: "example.edu", want: "example.edu"},
		{raw: "10.0.0.1:8080", want: "10.0.0.1"},
		{raw: "localhost:3005", want: ""},
		{raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractReferrer(tt.raw))
		})
	}
}

func TestAddReferrer(t *testing.T) {
	r := New(time.Now())
	r.AddReferrer("http://search.library.org/a")
	r.AddReferrer("www.library.org")
	r.AddReferrer("localhost")
	r.AddReferrer("192.168.1.20")

	assert.Equal(t, []string{"library.org", "192.168.1.20"}, r.Referrers)
}

func TestUnmapped(t *testing.T) {
	r := New(time.Now())
	assert.Empty(t, r.Unmapped())

	r.AddUnmapped("sid", "google")
	r.AddUnmapped("foo", "bar")
	assert.Equal(t, "sid=google&foo=bar", r.Unmapped())

	r.AddUnmapped("q", "a&b=c d")
	assert.Equal(t, "sid=google&foo=bar&q=a%26b%3Dc+d", r.Unmapped())

	parsed, err := url.ParseQuery(r.Unmapped())
	require.NoError(t, err)
	assert.Equal(t, "a&b=c d", parsed.Get("q"))
}

func TestSummary(t *testing.T) {
	reg := testutil.Registry(t)
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	r := New(start)
	r.Requestor = Requestor{
		IP:          "10.1.1.1",
		Affiliation: "CAMPUS-A",
		Agent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
	it, err := item.New(reg, "citation", false, map[string]item.Value{"title": item.Scalar("Dune")})
	require.NoError(t, err)
	it.AddTransaction(item.Transaction{ID: "tx-1", Service: "sfx", Status: "success", Attempts: 1})
	r.AddReferent(it)
	r.AddReferent(nil)
	r.AddError("sfx: warning: timeout")
	r.Finish(start.Add(1500 * time.Millisecond))

	s := r.Summary()
	assert.Equal(t, r.ID, s.RequestID)
	assert.Equal(t, int64(1500), s.DurationMS)
	assert.Equal(t, "CAMPUS-A", s.Requestor.Affiliation)
	assert.Equal(t, "Chrome", s.Requestor.Client.Browser)
	assert.False(t, s.Requestor.Client.Bot)
	require.Len(t, s.Referents, 1)
	assert.Equal(t, "citation", s.Referents[0].Type)
	assert.Equal(t, "Dune", s.Referents[0].Attributes["title"])
	assert.Len(t, s.Referents[0].Transactions, 1)
	assert.True(t, r.HasErrors())

	_, err = json.Marshal(s)
	assert.NoError(t, err)
}

func TestDurationBeforeFinish(t *testing.T) {
	assert.Zero(t, New(time.Now()).Duration())
	assert.Equal(t, Client{}, Requestor{}.Client())
}
