package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutTake(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	e := Entry{
		CartToken:      "tok",
		UserID:         "u1",
		PointsDebited:  20,
		CashbackPoints: 100,
		FinalTotal:     decimal.RequireFromString("70.00"),
	}
	require.NoError(t, s.Put(ctx, "sess_1", e))

	got, found, err := s.Take(ctx, "sess_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "tok", got.CartToken)
	assert.Equal(t, 20, got.PointsDebited)
	assert.True(t, got.FinalTotal.Equal(e.FinalTotal))
}

func TestMemoryStore_TakeRemoves(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "sess_1", Entry{CartToken: "tok"}))

	_, found, err := s.Take(ctx, "sess_1")
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = s.Take(ctx, "sess_1")
	require.NoError(t, err)
	assert.False(t, found, "an entry is consumable exactly once")
}

func TestMemoryStore_MissingEntry(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	_, found, err := s.Take(context.Background(), "never-put")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "sess_1", Entry{CartToken: "tok"}))

	now = now.Add(2 * time.Minute)
	_, found, err := s.Take(ctx, "sess_1")
	require.NoError(t, err)
	assert.False(t, found, "expired entries are gone")
}

func TestMemoryStore_EvictsOnPut(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "old", Entry{CartToken: "a"}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, s.Put(ctx, "new", Entry{CartToken: "b"}))

	s.mu.Lock()
	_, oldPresent := s.entries["old"]
	s.mu.Unlock()
	assert.False(t, oldPresent, "expired entries dropped on write")
}
