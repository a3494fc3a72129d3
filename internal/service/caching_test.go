package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citebroker/internal/item"
	"citebroker/internal/service/cache"
	"citebroker/pkg/testutil"
)

type countingCaller struct {
	def   Definition
	calls atomic.Int32
	fn    func(call Call) Outcome
}

func (c *countingCaller) Definition() Definition { return c.def }

func (c *countingCaller) Invoke(_ context.Context, call Call) Outcome {
	c.calls.Add(1)
	return c.fn(call)
}

func TestCachingCaller(t *testing.T) {
	reg := testutil.Registry(t)
	newItem := func(title string) *item.Item {
		it, err := item.New(reg, "citation", false, map[string]item.Value{"title": item.Scalar(title)})
		require.NoError(t, err)
		return it
	}

	t.Run("successful outcomes are replayed", func(t *testing.T) {
		next := &countingCaller{def: Definition{Name: "sfx"}, fn: func(call Call) Outcome {
			found, _ := item.New(reg, "citation", false, map[string]item.Value{"doi": item.Scalar("10.1/x")})
			return Outcome{Service: "sfx", Items: []*item.Item{found}, Transaction: item.Transaction{Status: "success"}}
		}}
		caller := NewCachingCaller(next, cache.NewMemoryStore(), time.Minute)

		call := Call{Item: newItem("Dune"), Info: RequestInfo{RequestorAffiliation: "UCLA"}}
		first := caller.Invoke(context.Background(), call)
		require.True(t, first.OK())
		assert.False(t, first.Transaction.Cached)

		second := caller.Invoke(context.Background(), call)
		require.True(t, second.OK())
		assert.True(t, second.Transaction.Cached)
		assert.Equal(t, "success", second.Transaction.Status)
		require.Len(t, second.Items, 1)
		assert.Equal(t, "10.1/x", second.Items[0].Get("doi"))
		assert.EqualValues(t, 1, next.calls.Load())

		other := call
		other.Info.RequestorAffiliation = "MIT"
		caller.Invoke(context.Background(), other)
		assert.EqualValues(t, 2, next.calls.Load(), "affiliation is part of the key")
	})

	t.Run("failures are not cached", func(t *testing.T) {
		next := &countingCaller{def: Definition{Name: "sfx"}, fn: func(Call) Outcome {
			return Outcome{Failure: &Failure{Severity: SeverityWarning, Code: CodeTimeout}}
		}}
		caller := NewCachingCaller(next, cache.NewMemoryStore(), time.Minute)
		call := Call{Item: newItem("Dune")}

		caller.Invoke(context.Background(), call)
		caller.Invoke(context.Background(), call)
		assert.EqualValues(t, 2, next.calls.Load())
	})

	t.Run("disabled without a store", func(t *testing.T) {
		next := &countingCaller{def: Definition{Name: "sfx"}}
		assert.Same(t, Caller(next), NewCachingCaller(next, nil, time.Minute))
	})
}

func TestCacheKey(t *testing.T) {
	reg := testutil.Registry(t)
	a, err := item.New(reg, "citation", false, map[string]item.Value{"title": item.Scalar("Dune")})
	require.NoError(t, err)
	b, err := item.New(reg, "citation", false, map[string]item.Value{"title": item.Scalar("Dune")})
	require.NoError(t, err)

	ka, err := CacheKey("sfx", Call{Item: a})
	require.NoError(t, err)
	kb, err := CacheKey("sfx", Call{Item: b})
	require.NoError(t, err)
	assert.Equal(t, ka, kb, "item ids do not affect the key")

	kc, err := CacheKey("crossref", Call{Item: a})
	require.NoError(t, err)
	assert.NotEqual(t, ka, kc)
}
