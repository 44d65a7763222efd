package push

import (
	"testing"

	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToOwnUserOnly(t *testing.T) {
	b := NewBus()
	chA := b.Subscribe("a")
	chB := b.Subscribe("b")

	b.Order("a", model.Order{ExternalID: "x", Status: types.OrderStatusFilled})

	select {
	case evt := <-chA:
		assert.Equal(t, StreamOrder, evt.Stream)
		assert.Equal(t, "update", evt.Type)
	default:
		t.Fatal("expected event for user a")
	}
	select {
	case <-chB:
		t.Fatal("user b must not receive user a events")
	default:
	}
}

func TestBusSlowConsumerDoesNotBlock(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe("a")
	for i := 0; i < 250; i++ {
		b.Balance("a", nil)
	}
	// Channel capacity is 100; the rest were dropped, not blocked on.
	assert.Equal(t, 100, len(ch))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe("a")
	b.Unsubscribe("a", ch)
	_, open := <-ch
	require.False(t, open)
	// Publishing after unsubscribe is a no-op.
	b.Position("a", model.Position{})
}
