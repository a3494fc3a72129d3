package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openurlYAML = `
article_title: [rft.atitle, atitle]
journal_title: rft.jtitle
last_name: [rft.aulast, aulast]
authors: rft.authors
`

func newOpenURL(t *testing.T) *Translator {
	t.Helper()
	tr, err := Parse("openurl", []byte(openurlYAML))
	require.NoError(t, err)
	return tr
}

func TestTranslateKey(t *testing.T) {
	tr := newOpenURL(t)

	tests := []struct {
		key        string
		toExternal bool
		expected   string
	}{
		{key: "article_title", toExternal: true, expected: "rft.atitle"},
		{key: "rft.atitle", toExternal: false, expected: "article_title"},
		{key: "atitle", toExternal: false, expected: "article_title"},
		{key: "journal_title", toExternal: true, expected: "rft.jtitle"},
		{key: "unknown", toExternal: true, expected: "unknown"},
		{key: "unknown", toExternal: false, expected: "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tr.TranslateKey(tt.key, tt.toExternal), tt.key)
	}
}

func TestRoundTrip(t *testing.T) {
	tr := newOpenURL(t)
	for _, k := range []string{"article_title", "journal_title", "last_name", "authors"} {
		assert.Equal(t, k, tr.TranslateKey(tr.TranslateKey(k, true), false))
	}
}

func TestTranslateMap(t *testing.T) {
	tr := newOpenURL(t)

	in := map[string]any{
		"article_title": "Call me Ishmael",
		"authors": []any{
			map[string]any{"last_name": "Melville"},
			"plain",
		},
		"additional": []any{map[string]any{"last_name": "kept"}},
		"other":      []any{"x", "y"},
	}

	out := tr.TranslateMap(in, true)
	assert.Equal(t, "Call me Ishmael", out["rft.atitle"])
	assert.Equal(t, []any{map[string]any{"rft.aulast": "Melville"}, "plain"}, out["rft.authors"])
	assert.Equal(t, in["additional"], out["additional"])
	assert.Equal(t, []any{"x", "y"}, out["other"])

	assert.Equal(t, in, tr.TranslateMap(out, false))
}

func TestNilTranslatorIsIdentity(t *testing.T) {
	var tr *Translator
	m := map[string]any{"a": "b"}
	assert.Equal(t, "a", tr.TranslateKey("a", true))
	assert.Equal(t, m, tr.TranslateMap(m, false))
	assert.Empty(t, tr.Name())
}

func TestNewRejects(t *testing.T) {
	_, err := New("empty", nil)
	assert.Error(t, err)

	_, err = Parse("empty", []byte("title: []\n"))
	assert.Error(t, err)

	_, err = New("dup", []Mapping{
		{Internal: "title", Aliases: []string{"t"}},
		{Internal: "article_title", Aliases: []string{"t"}},
	})
	assert.Error(t, err)
}
