package checkpoint

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlabs/scheduler/internal/state"
)

var storeNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newClock(at time.Time) (func() time.Time, func(time.Duration)) {
	current := at
	return func() time.Time { return current }, func(d time.Duration) { current = current.Add(d) }
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, 0)

	st := state.New("conv-1", "user-1", "book dentist", storeNow)
	st.Parsed = &state.ParsedEvent{Intent: state.IntentCreate, Title: "Dentist"}
	require.NoError(t, store.Put(ctx, st))

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ConversationID)
	require.NotNil(t, got.Parsed)
	assert.Equal(t, "Dentist", got.Parsed.Title)
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore(0, 0)
	_, err := store.Get(context.Background(), "no-such-conversation")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, 0)

	st := state.New("conv-1", "user-1", "hello", storeNow)
	require.NoError(t, store.Put(ctx, st))

	// Mutating the original after Put must not leak into the store.
	st.RawInput = "mutated"

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.RawInput)

	// Nor does mutating one read affect the next.
	got.RawInput = "also mutated"
	again, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", again.RawInput)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, 0)
	clock, advance := newClock(storeNow)
	store.now = clock

	require.NoError(t, store.Put(ctx, state.New("conv-1", "user-1", "hi", storeNow)))

	advance(30 * time.Minute)
	_, err := store.Get(ctx, "conv-1")
	assert.NoError(t, err)

	advance(31 * time.Minute)
	_, err = store.Get(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStoreLRUEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, 3)
	clock, advance := newClock(storeNow)
	store.now = clock

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Put(ctx, state.New(fmt.Sprintf("conv-%d", i), "u", "hi", storeNow)))
		advance(time.Second)
	}

	// Touch conv-1 so conv-2 becomes the oldest.
	_, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	advance(time.Second)

	require.NoError(t, store.Put(ctx, state.New("conv-4", "u", "hi", storeNow)))
	assert.Equal(t, 3, store.Len())

	_, err = store.Get(ctx, "conv-2")
	assert.ErrorIs(t, err, ErrNotFound, "least recently used entry is evicted")
	_, err = store.Get(ctx, "conv-1")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "conv-4")
	assert.NoError(t, err)
}

func TestMemoryStorePutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0, 0)

	first := state.New("conv-1", "user-1", "first", storeNow)
	require.NoError(t, store.Put(ctx, first))

	second := state.New("conv-1", "user-1", "second", storeNow)
	require.NoError(t, store.Put(ctx, second))

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.RawInput)
	assert.Equal(t, 1, store.Len())
}
