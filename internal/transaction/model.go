package transaction

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a payment attempt. Transitions only
// move forward: a terminal transaction never re-enters pending or
// processing.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next keeps the state
// machine monotonic. Terminal-to-terminal moves are allowed because the
// webhook handler is authoritative over the correlator's best effort.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusPending {
		return false
	}
	switch s {
	case StatusPending:
		return true
	case StatusProcessing:
		return next.Terminal()
	case StatusCompleted, StatusFailed:
		return next.Terminal()
	}
	return false
}

// Transaction is one payment attempt against one gateway.
type Transaction struct {
	ID                   string
	Amount               float64
	Currency             string
	Status               Status
	PaymentGateway       string
	GatewayTransactionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PaymentRequest is the immutable audit row for one outbound gateway
// call. Exactly one row per ProcessPayment invocation.
type PaymentRequest struct {
	ID              int64
	TransactionID   string
	PaymentGateway  string
	RequestData     json.RawMessage
	ResponseData    json.RawMessage
	StatusCode      int
	ResponseMessage string
	CreatedAt       time.Time
}

// WebhookRecord is one accepted inbound webhook. A byte-identical
// payload for the same gateway within DedupWindow is a duplicate and
// must not produce a second record.
type WebhookRecord struct {
	ID              int64
	TransactionID   string
	PaymentGateway  string
	Payload         []byte
	StatusCode      int
	ResponseMessage string
	Success         bool
	ReceivedAt      time.Time
}
