package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, New(client)
}

func TestStore_AsideCachesOnMiss(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			*dest = cachedThing{ID: 1, Name: "Mochi"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, store.Aside(ctx, PostKey(1), &first, PostTTL, fetch(&first)))
	assert.Equal(t, "Mochi", first.Name)
	assert.True(t, mr.Exists("post:1"))

	var second cachedThing
	require.NoError(t, store.Aside(ctx, PostKey(1), &second, PostTTL, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second read should be served from cache")

	store.Invalidate(ctx, PostKey(1))
	assert.False(t, mr.Exists("post:1"))

	var third cachedThing
	require.NoError(t, store.Aside(ctx, PostKey(1), &third, PostTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestStore_AsidePropagatesFetchError(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)

	boom := errors.New("boom")
	var dest cachedThing
	err := store.Aside(context.Background(), PostKey(2), &dest, PostTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("post:2"), "failed fetches must not be cached")
}

func TestStore_TTL(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetJSON(ctx, "k", cachedThing{ID: 3}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var dest cachedThing
	found, err := store.GetJSON(ctx, "k", &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_DegradesWhenRedisDown(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)
	mr.Close()

	calls := 0
	var dest cachedThing
	err := store.Aside(context.Background(), PostKey(4), &dest, PostTTL, func() error {
		calls++
		dest.ID = 4
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint(4), dest.ID)
}

func TestStore_NilClientIsNoop(t *testing.T) {
	t.Parallel()
	store := New(nil)
	assert.False(t, store.Enabled())

	var dest cachedThing
	found, err := store.GetJSON(context.Background(), "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.SetJSON(context.Background(), "k", dest, time.Minute))
	store.Invalidate(context.Background(), "k")

	calls := 0
	require.NoError(t, store.Aside(context.Background(), "k", &dest, time.Minute, func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://localhost:6379")
	assert.Error(t, err)
	assert.Nil(t, Connect(context.Background(), ""))
}
