package item

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"citebroker/internal/schema"
	dErrors "citebroker/pkg/domain-errors"
	"citebroker/pkg/testutil"
)

type ItemSuite struct {
	suite.Suite
	registry *schema.Registry
}

func TestItemSuite(t *testing.T) {
	suite.Run(t, new(ItemSuite))
}

func (s *ItemSuite) SetupTest() {
	s.registry = testutil.Registry(s.T())
}

func (s *ItemSuite) newCitation(attrs map[string]Value) *Item {
	it, err := New(s.registry, "citation", false, attrs)
	s.Require().NoError(err)
	return it
}

func (s *ItemSuite) TestNew() {
	s.Run("unknown type fails", func() {
		_, err := New(s.registry, "periodical", false, nil)
		s.Require().Error(err)
		s.ErrorIs(err, ErrUndefinedItemType)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("nil registry fails", func() {
		_, err := New(nil, "citation", false, nil)
		s.ErrorIs(err, ErrUndefinedItemType)
	})

	s.Run("ids are unique", func() {
		a := s.newCitation(nil)
		b := s.newCitation(nil)
		s.NotEqual(a.ID(), b.ID())
		s.Equal("citation", a.Type())
	})

	s.Run("defaults fill only absent attributes", func() {
		it, err := New(s.registry, "citation", true, map[string]Value{"title": Scalar("Moby Dick")})
		s.Require().NoError(err)
		s.Equal("article", it.Get("genre"))

		it, err = New(s.registry, "citation", true, map[string]Value{"genre": Scalar("book")})
		s.Require().NoError(err)
		s.Equal("book", it.Get("genre"))
	})

	s.Run("defaults not applied unless requested", func() {
		it := s.newCitation(map[string]Value{"title": Scalar("Moby Dick")})
		s.False(it.Has("genre"))
	})
}

func (s *ItemSuite) TestAddAttribute() {
	s.Run("declared scalar is stored", func() {
		it := s.newCitation(nil)
		s.True(it.AddAttribute("title", Scalar("Dune")))
		s.Equal("Dune", it.Get("title"))
	})

	s.Run("declared scalar is cross referenced", func() {
		it := s.newCitation(nil)
		it.AddAttribute("language", Scalar("eng"))
		it.AddAttribute("genre", Scalar("monograph"))
		s.Equal("English", it.Get("language"))
		s.Equal("book", it.Get("genre"))
	})

	s.Run("undeclared scalar is dropped", func() {
		it := s.newCitation(nil)
		s.False(it.AddAttribute("foo", Scalar("x")))
		s.False(it.Has("foo"))
	})

	s.Run("undeclared array is kept", func() {
		it := s.newCitation(nil)
		s.True(it.AddAttribute("foo", List("x", "y")))
		v, ok := it.Attribute("foo")
		s.Require().True(ok)
		s.Equal([]string{"x", "y"}, v.Strings())
	})

	s.Run("replacing keeps insertion order", func() {
		it := s.newCitation(nil)
		it.AddAttribute("title", Scalar("a"))
		it.AddAttribute("issn", Scalar("1234"))
		it.AddAttribute("title", Scalar("b"))
		s.Equal([]string{"title", "issn"}, it.Keys())
		s.Equal("b", it.Get("title"))
	})

	s.Run("remove", func() {
		it := s.newCitation(map[string]Value{"title": Scalar("a"), "issn": Scalar("1")})
		it.Remove("title")
		it.Remove("never-there")
		s.Equal([]string{"issn"}, it.Keys())
	})
}

func (s *ItemSuite) TestIsValid() {
	s.Run("both rules satisfied", func() {
		it := s.newCitation(map[string]Value{"title": Scalar("t"), "isbn": Scalar("123")})
		s.True(it.IsValid())
	})

	s.Run("missing alternative group", func() {
		it := s.newCitation(map[string]Value{"title": Scalar("t")})
		s.False(it.IsValid())
	})

	s.Run("type without rules is valid", func() {
		reg, err := schema.NewRegistry([]schema.Definition{{Type: "thing", Attributes: []string{"a"}}}, nil)
		s.Require().NoError(err)
		it, err := New(reg, "thing", false, nil)
		s.Require().NoError(err)
		s.True(it.IsValid())
	})
}

func (s *ItemSuite) TestHasMinimum() {
	author, err := New(s.registry, "author", false, map[string]Value{"last_name": Scalar("Melville")})
	s.Require().NoError(err)

	s.Run("non-empty child collection counts", func() {
		it := s.newCitation(map[string]Value{"authors": Children(author)})
		s.True(it.HasMinimum([]schema.Rule{{"authors"}}))
	})

	s.Run("empty collection does not count", func() {
		it := s.newCitation(map[string]Value{"authors": Children()})
		s.False(it.HasMinimum([]schema.Rule{{"authors"}}))
		s.True(it.Has("authors"), "the key itself is present")
	})

	s.Run("no rules always passes", func() {
		s.True(s.newCitation(nil).HasMinimum(nil))
	})

	s.Run("and of ors", func() {
		it := s.newCitation(map[string]Value{"title": Scalar("t"), "doi": Scalar("10.1/x")})
		s.True(it.HasMinimum([]schema.Rule{{"title"}, {"isbn", "doi"}}))
		s.False(it.HasMinimum([]schema.Rule{{"title"}, {"isbn", "oclc"}}))
	})
}

func (s *ItemSuite) TestChildren() {
	it := s.newCitation(nil)
	author, err := New(s.registry, "author", false, map[string]Value{"last_name": Scalar("Melville")})
	s.Require().NoError(err)
	citation := s.newCitation(nil)

	s.True(it.AddChild(author))
	s.False(it.AddChild(citation))
	s.False(it.AddChild(nil))
	s.Len(it.Children("author"), 1)
	s.Empty(it.Children("resource"))
}

func (s *ItemSuite) TestClone() {
	author, err := New(s.registry, "author", false, map[string]Value{"last_name": Scalar("Melville")})
	s.Require().NoError(err)
	it := s.newCitation(map[string]Value{"title": Scalar("Moby Dick"), "authors": Children(author)})
	it.AddTransaction(Transaction{ID: "tx-1", Service: "svc"})

	cp := it.Clone()
	s.Equal(it.ID(), cp.ID())
	s.Equal(it.ToWireMap(), cp.ToWireMap())

	cp.AddAttribute("title", Scalar("changed"))
	cp.Children("author")[0].AddAttribute("first_name", Scalar("Herman"))
	cp.AddTransaction(Transaction{ID: "tx-2"})

	s.Equal("Moby Dick", it.Get("title"))
	s.False(it.Children("author")[0].Has("first_name"))
	s.Len(it.Transactions(), 1)
	s.Nil((*Item)(nil).Clone())
}

func (s *ItemSuite) TestString() {
	it := s.newCitation(map[string]Value{"title": Scalar("Dune")})
	s.Equal(`"title" = "Dune"`, it.String())
}

func TestWireRoundTrip(t *testing.T) {
	reg := testutil.Registry(t)

	raw := []byte(`{
		"title": "Moby Dick",
		"year": 1851,
		"authors": [{"last_name": "Melville", "first_name": "Herman"}],
		"resources": [],
		"extras": ["a", 2],
		"nested": {"ignored": true},
		"bogus": "dropped"
	}`)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	it, err := FromWireMap(reg, "citation", false, m)
	require.NoError(t, err)

	assert.Equal(t, "Moby Dick", it.Get("title"))
	assert.Equal(t, "1851", it.Get("year"))
	assert.False(t, it.Has("bogus"))
	assert.False(t, it.Has("nested"))
	require.Len(t, it.Children("author"), 1)
	assert.Equal(t, "Melville", it.Children("author")[0].Get("last_name"))

	extras, ok := it.Attribute("extras")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "2"}, extras.Strings())

	wire := it.ToWireMap()
	assert.NotContains(t, wire, "resources", "empty collections are omitted")
	assert.Equal(t, []any{map[string]any{"last_name": "Melville", "first_name": "Herman"}}, wire["authors"])

	back, err := FromWireMap(reg, "citation", false, wire)
	require.NoError(t, err)
	assert.Equal(t, wire, back.ToWireMap())
}

func TestFromFlatMap(t *testing.T) {
	reg := testutil.Registry(t)

	it, err := FromFlatMap(reg, "citation", true, map[string]string{
		"title":     "Dune",
		"issn":      " ",
		"last_name": "Herbert",
		"sid":       "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "Dune", it.Get("title"))
	assert.False(t, it.Has("issn"))
	assert.False(t, it.Has("sid"))
	assert.Equal(t, "article", it.Get("genre"))
	require.Len(t, it.Children("author"), 1)
	assert.Equal(t, "Herbert", it.Children("author")[0].Get("last_name"))
	assert.Empty(t, it.Children("resource"), "children without values are not attached")

	_, err = FromFlatMap(reg, "nope", false, nil)
	assert.ErrorIs(t, err, ErrUndefinedItemType)
}
