package feed

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cafepos/internal/domain"
)

const defaultBuffer = 16

type Filter struct {
	CashierID     string
	PaymentMethod domain.PaymentMethod
}

func (f Filter) matches(tx domain.Transaction) bool {
	if f.CashierID != "" && tx.CashierID != f.CashierID {
		return false
	}
	if f.PaymentMethod != "" && tx.PaymentMethod != f.PaymentMethod {
		return false
	}
	return true
}

type subscriber struct {
	ch     chan domain.Transaction
	filter Filter
}

// Hub fans committed transactions out to live subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	dropped atomic.Int64
	buffer  int
	log     *zap.Logger
}

func NewHub(buffer int, log *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs:   map[uint64]*subscriber{},
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a listener until ctx is done, after which the returned
// channel is closed.
func (h *Hub) Subscribe(ctx context.Context, filter Filter) <-chan domain.Transaction {
	sub := &subscriber{ch: make(chan domain.Transaction, h.buffer), filter: filter}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(sub.ch)
		h.mu.Unlock()
	}()

	return sub.ch
}

func (h *Hub) Publish(tx domain.Transaction) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subs {
		if !sub.filter.matches(tx) {
			continue
		}
		select {
		case sub.ch <- tx:
		default:
			h.dropped.Add(1)
			h.log.Warn("feed subscriber lagging, event dropped",
				zap.Uint64("subscriber", id),
				zap.String("transaction_id", tx.ID),
			)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
