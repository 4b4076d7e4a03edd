package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearchKey_EquivalentFiltersShareOneKey(t *testing.T) {
	category := "electronics"
	minPrice := int64(100)

	a := &domain.SearchFilters{
		CategorySlug: &category,
		BrandSlugs:   []string{"acme", "globex"},
		MinPrice:     &minPrice,
		InStock:      true,
	}
	// Same constraints, brand order reversed.
	b := &domain.SearchFilters{
		BrandSlugs:   []string{"globex", "acme"},
		InStock:      true,
		MinPrice:     &minPrice,
		CategorySlug: &category,
	}

	keyA := SearchKey(OpSearch, "wireless mouse", a, 1, 20)
	keyB := SearchKey(OpSearch, "wireless mouse", b, 1, 20)
	assert.Equal(t, keyA, keyB)
}

func TestSearchKey_DifferentRequestsGetDifferentKeys(t *testing.T) {
	base := &domain.SearchFilters{}
	key := SearchKey(OpSearch, "mouse", base, 1, 20)

	assert.NotEqual(t, key, SearchKey(OpSearch, "keyboard", base, 1, 20))
	assert.NotEqual(t, key, SearchKey(OpSearch, "mouse", base, 2, 20))
	assert.NotEqual(t, key, SearchKey(OpSearch, "mouse", base, 1, 50))
	assert.NotEqual(t, key, SearchKey(OpAutocomplete, "mouse", base, 1, 20))

	inStock := &domain.SearchFilters{InStock: true}
	assert.NotEqual(t, key, SearchKey(OpSearch, "mouse", inStock, 1, 20))
}

func TestSearchKey_CarriesOperationPrefix(t *testing.T) {
	key := SearchKey(OpPopular, "", &domain.SearchFilters{}, 1, 10)
	assert.Contains(t, key, "search:popular:")
}

func TestMemoryStore_SetGetDelete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "key", []byte("value"), time.Minute))

	data, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value"), data)

	require.NoError(t, store.Delete(ctx, "key"))
	_, found, err = store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_ExpiredEntriesAreMisses(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", []byte("value"), time.Nanosecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_DeleteByPrefix(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "search:popular:v1:aaa", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "search:popular:v1:bbb", []byte("2"), time.Minute))
	require.NoError(t, store.Set(ctx, "search:search:v1:ccc", []byte("3"), time.Minute))

	require.NoError(t, store.DeleteByPrefix(ctx, OpPrefix(OpPopular)))

	_, found, _ := store.Get(ctx, "search:popular:v1:aaa")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "search:popular:v1:bbb")
	assert.False(t, found)
	_, found, _ = store.Get(ctx, "search:search:v1:ccc")
	assert.True(t, found)
}

func TestFetch_MissComputesAndCaches(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "computed", nil
	}

	value, err := Fetch(ctx, store, discardLogger(), OpSearch, "key", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.Equal(t, 1, calls)

	// Second fetch is served from the cache.
	value, err = Fetch(ctx, store, discardLogger(), OpSearch, "key", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "computed", value)
	assert.Equal(t, 1, calls)
}

func TestFetch_ComputeErrorIsReturned(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	wantErr := errors.New("backend down")
	_, err := Fetch(context.Background(), store, discardLogger(), OpSearch, "key", time.Minute,
		func(context.Context) (string, error) { return "", wantErr })

	assert.ErrorIs(t, err, wantErr)
}

// brokenStore fails every operation, standing in for an unreachable backend.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}

func (brokenStore) DeleteByPrefix(context.Context, string) error {
	return errors.New("connection refused")
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestFetch_CacheFailureStillServesComputedResult(t *testing.T) {
	value, err := Fetch(context.Background(), brokenStore{}, discardLogger(), OpSearch, "key", time.Minute,
		func(context.Context) (string, error) { return "computed", nil })

	require.NoError(t, err)
	assert.Equal(t, "computed", value)
}
