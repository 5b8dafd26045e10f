package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/domain"
)

func TestPublishDeliversMatchingTransactions(t *testing.T) {
	h := NewHub(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := h.Subscribe(ctx, Filter{})
	cardOnly := h.Subscribe(ctx, Filter{PaymentMethod: domain.PaymentCard})

	h.Publish(domain.Transaction{ID: "tx-1", PaymentMethod: domain.PaymentCash})
	h.Publish(domain.Transaction{ID: "tx-2", PaymentMethod: domain.PaymentCard})

	assert.Equal(t, "tx-1", (<-all).ID)
	assert.Equal(t, "tx-2", (<-all).ID)
	assert.Equal(t, "tx-2", (<-cardOnly).ID)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, Filter{})
	h.Publish(domain.Transaction{ID: "tx-1"})
	h.Publish(domain.Transaction{ID: "tx-2"})

	assert.Equal(t, int64(1), h.Dropped())
	assert.Equal(t, "tx-1", (<-ch).ID)
}

func TestCancelledSubscriptionIsClosed(t *testing.T) {
	h := NewHub(1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch := h.Subscribe(ctx, Filter{CashierID: "ana"})
	require.Equal(t, 1, h.Subscribers())
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}
