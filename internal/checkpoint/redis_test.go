package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/state"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl, zap.NewNop()), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t, time.Hour)

	st := state.New("conv-1", "user-1", "book dentist", storeNow)
	st.Apply(state.Delta{
		Step:   state.StepParse,
		Output: &state.StepOutput{Explanation: "parsed", Confidence: 0.9, Timestamp: storeNow},
	}, storeNow)
	require.NoError(t, store.Put(ctx, st))

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, 0.9, got.Confidence(state.StepParse))
	require.Len(t, got.AuditLog, 1)
}

func TestRedisStoreNotFound(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Hour)

	require.NoError(t, store.Put(ctx, state.New("conv-1", "user-1", "hi", storeNow)))
	assert.Equal(t, time.Hour, mr.TTL("checkpoint:conv-1"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreKeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t, time.Hour)

	require.NoError(t, store.Put(ctx, state.New("conv-1", "user-1", "hi", storeNow)))
	assert.True(t, mr.Exists("checkpoint:conv-1"))
}
