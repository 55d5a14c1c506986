package fundcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgrid/oppscan/internal/contracts"
)

func TestMemoryStoreMissReturnsNilNil(t *testing.T) {
	s := NewMemoryStore()

	entry, err := s.Get(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	fetched := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	err := s.Put(context.Background(), "ALPHA", Entry{
		Fundamentals: contracts.Fundamentals{Symbol: "ALPHA", PE: 15},
		FetchedAt:    fetched,
	})
	require.NoError(t, err)

	entry, err := s.Get(context.Background(), "ALPHA")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 15.0, entry.Fundamentals.PE)
	assert.Equal(t, fetched, entry.FetchedAt)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ALPHA", Entry{Fundamentals: contracts.Fundamentals{Symbol: "ALPHA", PE: 15}}))
	require.NoError(t, s.Put(ctx, "ALPHA", Entry{Fundamentals: contracts.Fundamentals{Symbol: "ALPHA", PE: 22}}))

	entry, err := s.Get(ctx, "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, 22.0, entry.Fundamentals.PE)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ALPHA", Entry{Fundamentals: contracts.Fundamentals{Symbol: "ALPHA", PE: 15}}))

	entry, err := s.Get(ctx, "ALPHA")
	require.NoError(t, err)
	entry.Fundamentals.PE = 99

	again, err := s.Get(ctx, "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, 15.0, again.Fundamentals.PE, "mutating a returned entry must not touch the store")
}
