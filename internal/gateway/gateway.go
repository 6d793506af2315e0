package gateway

import (
	"context"
	"time"

	"paybroker/internal/transaction"
)

// Params carries optional gateway-specific initiation parameters
// supplied by the caller.
type Params struct {
	CallbackURL string
}

// Gateway is the capability contract every payment gateway adapter
// implements. ProcessPayment never returns a Go error for business
// failures: validation and protocol problems come back as a Result
// with Success=false, and transport faults are converted to a failure
// Result at the adapter boundary.
type Gateway interface {
	Name() string
	ProcessPayment(ctx context.Context, amount float64, currency string, params Params) *Result
	HandleWebhook(ctx context.Context, payload []byte, token string) *WebhookResult
}

// Store is the slice of persistence the correlated adapter needs:
// webhook records for dedup and fallback resolution, and transactions
// for the authoritative webhook update. Satisfied by
// transaction.Repository.
type Store interface {
	SaveWebhookRecord(ctx context.Context, rec *transaction.WebhookRecord) (int64, bool, error)
	LatestSuccessfulWebhook(ctx context.Context, gateway string, since time.Time) (*transaction.WebhookRecord, error)
	FindByGatewayTransactionID(ctx context.Context, gateway, gatewayTransactionID string) (*transaction.Transaction, error)
	ApplyWebhookStatus(ctx context.Context, gateway, gatewayTransactionID string, status transaction.Status) (int64, error)
}
