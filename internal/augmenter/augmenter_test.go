package augmenter

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"citebroker/internal/item"
	"citebroker/internal/schema"
	"citebroker/pkg/testutil"
)

type AugmenterSuite struct {
	suite.Suite
	registry *schema.Registry
}

func TestAugmenterSuite(t *testing.T) {
	suite.Run(t, new(AugmenterSuite))
}

func (s *AugmenterSuite) SetupTest() {
	s.registry = testutil.Registry(s.T())
}

func (s *AugmenterSuite) citation(attrs map[string]item.Value) *item.Item {
	it, err := item.New(s.registry, "citation", false, attrs)
	s.Require().NoError(err)
	return it
}

func (s *AugmenterSuite) TestAugment() {
	s.Run("new keys are copied and shared keys stripped", func() {
		original := s.citation(map[string]item.Value{"title": item.Scalar("A")})
		incoming := s.citation(map[string]item.Value{"title": item.Scalar("B"), "year": item.Scalar("2000")})

		Augment(original, incoming)

		s.Equal("A", original.Get("title"), "first writer wins")
		s.Equal("2000", original.Get("year"))
		s.False(incoming.Has("title"))
		s.Equal("2000", incoming.Get("year"))
	})

	s.Run("collections are never merged", func() {
		author, err := item.New(s.registry, "author", false, map[string]item.Value{"last_name": item.Scalar("X")})
		s.Require().NoError(err)

		original := s.citation(nil)
		incoming := s.citation(map[string]item.Value{"authors": item.Children(author)})

		Augment(original, incoming)

		s.False(original.Has("authors"))
		s.True(incoming.Has("authors"), "collections stay on the forwarded item")
	})

	s.Run("idempotent", func() {
		original := s.citation(map[string]item.Value{"title": item.Scalar("A")})
		incoming := s.citation(map[string]item.Value{"title": item.Scalar("B"), "issn": item.Scalar("1234-5678")})

		Augment(original, incoming)
		first := original.ToWireMap()
		Augment(original, incoming)

		s.Equal(first, original.ToWireMap())
		s.Equal(0, incoming.Len())
	})

	s.Run("nil items are ignored", func() {
		original := s.citation(map[string]item.Value{"title": item.Scalar("A")})
		s.NotPanics(func() {
			Augment(original, nil)
			Augment(nil, original)
		})
	})
}
