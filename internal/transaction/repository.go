package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DedupWindow is the span within which a byte-identical webhook payload
// for the same gateway is treated as a repeat delivery.
const DedupWindow = 5 * time.Minute

var ErrNotFound = errors.New("transaction not found")

type Repository interface {
	// InTx runs fn against a transactional view of the repository.
	// The payment flow needs create + audit + final update to commit
	// or roll back as one unit.
	InTx(ctx context.Context, fn func(Repository) error) error

	CreateTransaction(ctx context.Context, t *Transaction) error
	// UpdateOutcome applies the post-initiation transition: status plus
	// the provider-assigned transaction id, if any.
	UpdateOutcome(ctx context.Context, id string, status Status, gatewayTransactionID string) error
	// ForceStatus sets the status directly, guarded so a terminal
	// transaction never re-enters pending or processing.
	ForceStatus(ctx context.Context, id string, status Status) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	FindByGatewayTransactionID(ctx context.Context, gateway, gatewayTransactionID string) (*Transaction, error)
	// ApplyWebhookStatus is the webhook handler's authoritative update,
	// matched by (gateway, provider transaction id). Returns rows
	// affected; zero means no matching transaction exists yet.
	ApplyWebhookStatus(ctx context.Context, gateway, gatewayTransactionID string, status Status) (int64, error)

	SavePaymentRequest(ctx context.Context, pr *PaymentRequest) error
	// SaveWebhookRecord inserts the record unless a byte-identical
	// payload for the same gateway exists within DedupWindow. The
	// check-and-insert is a single statement.
	SaveWebhookRecord(ctx context.Context, rec *WebhookRecord) (id int64, duplicate bool, err error)
	LatestSuccessfulWebhook(ctx context.Context, gateway string, since time.Time) (*WebhookRecord, error)
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type repository struct {
	db   dbtx
	root *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db, root: db}
}

func (r *repository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.root == nil {
		// Already transactional, just nest the work.
		return fn(r)
	}

	tx, err := r.root.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&repository{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *repository) CreateTransaction(ctx context.Context, t *Transaction) error {
	const q = `
	INSERT INTO transactions (id, amount, currency, status, payment_gateway)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at, updated_at;
	`

	err := r.db.QueryRowContext(ctx, q,
		t.ID, t.Amount, t.Currency, string(t.Status), t.PaymentGateway,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *repository) UpdateOutcome(ctx context.Context, id string, status Status, gatewayTransactionID string) error {
	const q = `
	UPDATE transactions
	SET status = $2, gateway_transaction_id = NULLIF($3, ''), updated_at = now()
	WHERE id = $1;
	`

	if _, err := r.db.ExecContext(ctx, q, id, string(status), gatewayTransactionID); err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	return nil
}

func (r *repository) ForceStatus(ctx context.Context, id string, status Status) error {
	const q = `
	UPDATE transactions
	SET status = $2, updated_at = now()
	WHERE id = $1
	  AND (status IN ('pending', 'processing') OR $2 IN ('completed', 'failed'));
	`

	if _, err := r.db.ExecContext(ctx, q, id, string(status)); err != nil {
		return fmt.Errorf("force status: %w", err)
	}
	return nil
}

func (r *repository) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	const q = `
	SELECT id, amount, currency, status, payment_gateway, COALESCE(gateway_transaction_id, ''), created_at, updated_at
	FROM transactions WHERE id = $1;
	`

	return r.scanTransaction(r.db.QueryRowContext(ctx, q, id))
}

func (r *repository) FindByGatewayTransactionID(ctx context.Context, gateway, gatewayTransactionID string) (*Transaction, error) {
	const q = `
	SELECT id, amount, currency, status, payment_gateway, COALESCE(gateway_transaction_id, ''), created_at, updated_at
	FROM transactions
	WHERE payment_gateway = $1 AND gateway_transaction_id = $2;
	`

	return r.scanTransaction(r.db.QueryRowContext(ctx, q, gateway, gatewayTransactionID))
}

func (r *repository) scanTransaction(row *sql.Row) (*Transaction, error) {
	var t Transaction
	var status string
	err := row.Scan(
		&t.ID, &t.Amount, &t.Currency, &status, &t.PaymentGateway,
		&t.GatewayTransactionID, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Status = Status(status)
	return &t, nil
}

func (r *repository) ApplyWebhookStatus(ctx context.Context, gateway, gatewayTransactionID string, status Status) (int64, error) {
	const q = `
	UPDATE transactions
	SET status = $3, updated_at = now()
	WHERE payment_gateway = $1 AND gateway_transaction_id = $2
	  AND (status IN ('pending', 'processing') OR $3 IN ('completed', 'failed'));
	`

	res, err := r.db.ExecContext(ctx, q, gateway, gatewayTransactionID, string(status))
	if err != nil {
		return 0, fmt.Errorf("apply webhook status: %w", err)
	}
	return res.RowsAffected()
}

func (r *repository) SavePaymentRequest(ctx context.Context, pr *PaymentRequest) error {
	const q = `
	INSERT INTO payment_requests (transaction_id, payment_gateway, request_data, response_data, status_code, response_message)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id;
	`

	err := r.db.QueryRowContext(ctx, q,
		pr.TransactionID, pr.PaymentGateway, pr.RequestData, pr.ResponseData,
		pr.StatusCode, pr.ResponseMessage,
	).Scan(&pr.ID)
	if err != nil {
		return fmt.Errorf("save payment request: %w", err)
	}
	return nil
}

func (r *repository) SaveWebhookRecord(ctx context.Context, rec *WebhookRecord) (int64, bool, error) {
	const q = `
	INSERT INTO webhook_logs (transaction_id, payment_gateway, payload, status_code, response_message, success)
	SELECT NULLIF($1, ''), $2, $3, $4, $5, $6
	WHERE NOT EXISTS (
		SELECT 1 FROM webhook_logs
		WHERE payment_gateway = $2
		  AND payload = $3
		  AND received_at >= now() - interval '5 minutes'
	)
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(ctx, q,
		rec.TransactionID, rec.PaymentGateway, string(rec.Payload),
		rec.StatusCode, rec.ResponseMessage, rec.Success,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		// Duplicate delivery within the window, idempotent success.
		return 0, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("save webhook record: %w", err)
	}

	rec.ID = id
	return id, false, nil
}

func (r *repository) LatestSuccessfulWebhook(ctx context.Context, gateway string, since time.Time) (*WebhookRecord, error) {
	const q = `
	SELECT id, COALESCE(transaction_id::text, ''), payment_gateway, payload, status_code, COALESCE(response_message, ''), success, received_at
	FROM webhook_logs
	WHERE payment_gateway = $1 AND success = true AND received_at >= $2
	ORDER BY received_at DESC
	LIMIT 1;
	`

	var rec WebhookRecord
	var payload string
	err := r.db.QueryRowContext(ctx, q, gateway, since).Scan(
		&rec.ID, &rec.TransactionID, &rec.PaymentGateway, &payload,
		&rec.StatusCode, &rec.ResponseMessage, &rec.Success, &rec.ReceivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest successful webhook: %w", err)
	}
	rec.Payload = []byte(payload)
	return &rec, nil
}
