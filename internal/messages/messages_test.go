package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFill(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		args []any
		want string
	}{
		{name: "single", tmpl: "? timed out", args: []any{"sfx"}, want: "'sfx' timed out"},
		{name: "in order", tmpl: "? then ?", args: []any{1, 2}, want: "'1' then '2'"},
		{name: "surplus placeholders", tmpl: "? and ?", args: []any{"a"}, want: "'a' and ?"},
		{name: "argument containing placeholder", tmpl: "? / ?", args: []any{"what?", "b"}, want: "'what?' / 'b'"},
		{name: "no args", tmpl: "plain ?", want: "plain ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fill(tt.tmpl, tt.args...))
		})
	}
}

func TestCatalog(t *testing.T) {
	c, err := Parse([]byte("tier_timeout: \"Tier ? gave up\"\ncustom: hello ?\n"))
	require.NoError(t, err)

	assert.Equal(t, "Tier 'first' gave up", c.Build(TierTimeout, "first"))
	assert.Equal(t, "hello 'you'", c.Build("custom", "you"))
	assert.Equal(t, "'sfx' did not respond in time.", c.Build("service_timeout", "sfx"))
	assert.Equal(t, "missing_key", c.Build("missing_key", "x"))
	assert.True(t, c.Has(BrokerResponseSuccess))

	var zero Catalog
	assert.Equal(t, defaults[BrokerResponseSuccess], zero.Build(BrokerResponseSuccess))
	assert.False(t, zero.Has("custom"))
}
