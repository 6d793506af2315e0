package gateway

import (
	"sync"

	"paybroker/internal/transaction"
)

// confirmHub hands webhook outcomes to in-flight initiation calls,
// keyed by the provider transaction id. The webhook handler resolves
// the waiter directly, so confirmation latency is the webhook latency
// rather than a storage polling interval.
type confirmHub struct {
	mu      sync.Mutex
	waiters map[string]chan transaction.Status
}

func newConfirmHub() *confirmHub {
	return &confirmHub{waiters: make(map[string]chan transaction.Status)}
}

func (h *confirmHub) register(gatewayTxID string) <-chan transaction.Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan transaction.Status, 1)
	h.waiters[gatewayTxID] = ch
	return ch
}

func (h *confirmHub) cancel(gatewayTxID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.waiters, gatewayTxID)
}

// resolve delivers st to the waiter for gatewayTxID, if any. The
// channel is buffered so delivery never blocks the webhook handler.
func (h *confirmHub) resolve(gatewayTxID string, st transaction.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.waiters[gatewayTxID]; ok {
		select {
		case ch <- st:
		default:
		}
		delete(h.waiters, gatewayTxID)
	}
}
