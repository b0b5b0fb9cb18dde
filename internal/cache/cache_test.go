package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory[int](time.Minute, WithClock[int](func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k", 7))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	now = now.Add(59 * time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_Invalidate(t *testing.T) {
	m := NewMemory[string](time.Hour)
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "a", "1"))
	require.NoError(t, m.Put(ctx, "b", "2"))

	require.NoError(t, m.Invalidate(ctx, "a"))
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "b")
	assert.True(t, ok)

	require.NoError(t, m.InvalidateAll(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis cache tests")
	}
	ctx := context.Background()
	rdb, err := Dial(ctx, addr, "", 0)
	require.NoError(t, err)
	defer rdb.Close()

	type snap struct{ Codes []string }
	store, err := NewRedis[snap](logger.NewTest(t), rdb, "test:"+uuid.NewString(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "idx", snap{Codes: []string{"P1"}}))
	got, ok, err := store.Get(ctx, "idx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"P1"}, got.Codes)

	require.NoError(t, store.InvalidateAll(ctx))
	_, ok, err = store.Get(ctx, "idx")
	require.NoError(t, err)
	assert.False(t, ok)
}
