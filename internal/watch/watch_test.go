package watch

import (
	"context"
	"testing"

	"papertrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "BTCUSDT@binance", Key("BTCUSDT", types.ExchangeBinance))
}

func TestAddRemoveTransitions(t *testing.T) {
	s := NewSet()
	assert.True(t, s.Add("k", "a"))
	assert.False(t, s.Add("k", "b"))
	assert.True(t, s.Has("k", "a"))
	assert.False(t, s.Empty("k"))

	assert.False(t, s.Remove("k", "a"))
	assert.True(t, s.Remove("k", "b"))
	assert.True(t, s.Empty("k"))
	assert.False(t, s.Remove("k", "ghost"))
}

func TestKeysSnapshot(t *testing.T) {
	s := NewSet()
	s.Add("a", "1")
	s.Add("b", "2")
	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())
}

type fakeSub struct {
	subscribed   []string
	unsubscribed []string
}

func (f *fakeSub) Subscribe(_ context.Context, key string) error {
	f.subscribed = append(f.subscribed, key)
	return nil
}

func (f *fakeSub) Unsubscribe(_ context.Context, key string) error {
	f.unsubscribed = append(f.unsubscribed, key)
	return nil
}

func TestControllerSubscribesOnEdges(t *testing.T) {
	sub := &fakeSub{}
	c := NewController(NewSet(), sub)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, "k", "a"))
	require.NoError(t, c.Add(ctx, "k", "b"))
	assert.Equal(t, []string{"k"}, sub.subscribed)

	require.NoError(t, c.Remove(ctx, "k", "a"))
	assert.Empty(t, sub.unsubscribed)
	require.NoError(t, c.Remove(ctx, "k", "b"))
	assert.Equal(t, []string{"k"}, sub.unsubscribed)
}
