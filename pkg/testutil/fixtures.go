package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"citebroker/internal/schema"
)

// ItemTypesYAML is a small citation schema shared by package tests.
const ItemTypesYAML = `
objects:
  citation:
    root: true
    attributes: [genre, title, article_title, journal_title, issn, eissn, isbn, oclc, doi, pmid, year, volume, issue, start_page, language]
    children: [author, resource]
    default:
      genre: article
    validation:
      - [title, article_title, journal_title]
      - [issn, eissn, isbn, oclc, doi, pmid]
  author:
    attributes: [last_name, first_name, full_name, initials]
    validation:
      - [last_name, full_name]
  resource:
    attributes: [source, target, format, availability, rating]
    validation: [target]
`

// CrossReferencesYAML normalizes a couple of citation values.
const CrossReferencesYAML = `
citation:
  genre:
    article: [journal_article, art]
    book: [bookitem, monograph]
  language:
    English: [en, eng]
`

// Registry builds the shared test schema.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	defs, err := schema.ParseDefinitions([]byte(ItemTypesYAML))
	require.NoError(t, err)
	xrefs, err := schema.ParseCrossReferences([]byte(CrossReferencesYAML))
	require.NoError(t, err)
	reg, err := schema.NewRegistry(defs, xrefs)
	require.NoError(t, err)
	return reg
}
