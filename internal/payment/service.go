package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"paybroker/internal/gateway"
	"paybroker/internal/logger"
	"paybroker/internal/transaction"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is the orchestrator's composite outcome: the broker-side
// transaction plus the raw gateway envelope.
type Result struct {
	TransactionID        string
	Status               transaction.Status
	GatewayTransactionID string
	WebhookReceived      bool
	ProcessingTime       float64
	GatewayResponse      *gateway.Result
}

// WebhookOutcome is the broker-side view of one processed webhook. On
// success TransactionID is the broker transaction id, not the
// provider's.
type WebhookOutcome struct {
	Success              bool
	Message              string
	ErrorType            string
	TransactionID        string
	GatewayTransactionID string
	Status               transaction.Status
}

type Service interface {
	ProcessPayment(ctx context.Context, gatewayName string, amount float64, currency string, params gateway.Params) (*Result, error)
	HandleWebhook(ctx context.Context, gatewayName string, payload []byte, token string) (*WebhookOutcome, error)
	GetTransaction(ctx context.Context, id string) (*transaction.Transaction, error)
}

type service struct {
	repo     transaction.Repository
	registry *gateway.Registry
}

func NewService(repo transaction.Repository, registry *gateway.Registry) Service {
	return &service{repo: repo, registry: registry}
}

// ProcessPayment runs the full initiation flow: create a pending
// transaction, dispatch to the gateway adapter, persist the audit row,
// and apply the outcome. All four steps commit or roll back together.
func (s *service) ProcessPayment(ctx context.Context, gatewayName string, amount float64, currency string, params gateway.Params) (*Result, error) {
	id, err := gateway.ParseID(gatewayName)
	if err != nil {
		return nil, err
	}
	gw, err := s.registry.ForPayment(id)
	if err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("gateway", gw.Name()),
		zap.Float64("amount", amount),
		zap.String("currency", currency),
	)

	var out *Result
	err = s.repo.InTx(ctx, func(repo transaction.Repository) error {
		t := &transaction.Transaction{
			ID:             uuid.NewString(),
			Amount:         amount,
			Currency:       currency,
			Status:         transaction.StatusPending,
			PaymentGateway: gw.Name(),
		}
		if err := repo.CreateTransaction(ctx, t); err != nil {
			return err
		}

		res := gw.ProcessPayment(ctx, amount, currency, params)

		if err := s.audit(ctx, repo, t, amount, currency, params, res); err != nil {
			return err
		}

		status := finalStatus(res)
		if err := repo.UpdateOutcome(ctx, t.ID, status, res.TransactionID); err != nil {
			return err
		}

		out = &Result{
			TransactionID:        t.ID,
			Status:               status,
			GatewayTransactionID: res.TransactionID,
			WebhookReceived:      res.WebhookReceived,
			ProcessingTime:       res.ProcessingTime,
			GatewayResponse:      res,
		}
		return nil
	})
	if err != nil {
		log.Error("payment flow failed", zap.Error(err))
		return nil, fmt.Errorf("process payment: %w", err)
	}

	log.Info("payment processed",
		zap.String("transaction_id", out.TransactionID),
		zap.String("status", string(out.Status)),
		zap.Bool("success", out.GatewayResponse.Success),
	)
	return out, nil
}

// audit writes the immutable payment_requests row, one per initiation
// regardless of outcome.
func (s *service) audit(ctx context.Context, repo transaction.Repository, t *transaction.Transaction, amount float64, currency string, params gateway.Params, res *gateway.Result) error {
	reqData, err := json.Marshal(map[string]interface{}{
		"amount":       amount,
		"currency":     currency,
		"callback_url": params.CallbackURL,
	})
	if err != nil {
		return fmt.Errorf("marshal request data: %w", err)
	}
	respData, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal response data: %w", err)
	}

	return repo.SavePaymentRequest(ctx, &transaction.PaymentRequest{
		TransactionID:   t.ID,
		PaymentGateway:  t.PaymentGateway,
		RequestData:     reqData,
		ResponseData:    respData,
		StatusCode:      res.StatusCode,
		ResponseMessage: res.ResponseMessage,
	})
}

// finalStatus folds the gateway envelope into a transaction status. A
// correlated gateway reports its own status; a synchronous success is
// simply completed.
func finalStatus(res *gateway.Result) transaction.Status {
	if !res.Success {
		return transaction.StatusFailed
	}
	if res.Status != "" {
		return transaction.Status(res.Status)
	}
	return transaction.StatusCompleted
}

// webhookStatus maps the webhook status vocabulary onto transaction
// states.
func webhookStatus(s string) transaction.Status {
	switch s {
	case "success":
		return transaction.StatusCompleted
	case "pending":
		return transaction.StatusProcessing
	default:
		return transaction.StatusFailed
	}
}

// HandleWebhook dispatches the webhook to its adapter and reconciles
// the broker transaction. The adapter's own update may have hit zero
// rows when the webhook raced the initiation commit, so the
// reconciliation here is the late-arrival safety net.
func (s *service) HandleWebhook(ctx context.Context, gatewayName string, payload []byte, token string) (*WebhookOutcome, error) {
	id, err := gateway.ParseID(gatewayName)
	if err != nil {
		return nil, err
	}
	gw, err := s.registry.ForWebhook(id)
	if err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx).With(zap.String("gateway", gw.Name()))

	res := gw.HandleWebhook(ctx, payload, token)
	if !res.Success {
		return &WebhookOutcome{
			Success:   false,
			Message:   res.Message,
			ErrorType: res.ErrorType,
		}, nil
	}

	t, err := s.repo.FindByGatewayTransactionID(ctx, gw.Name(), res.TransactionID)
	if errors.Is(err, transaction.ErrNotFound) {
		log.Warn("webhook for unknown transaction",
			zap.String("gateway_transaction_id", res.TransactionID),
		)
		return &WebhookOutcome{
			Success:              false,
			Message:              "Transaction not found",
			ErrorType:            "transaction_not_found",
			GatewayTransactionID: res.TransactionID,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("handle webhook: %w", err)
	}

	status := webhookStatus(res.Status)
	if err := s.repo.ForceStatus(ctx, t.ID, status); err != nil {
		return nil, fmt.Errorf("handle webhook: %w", err)
	}

	log.Info("webhook reconciled",
		zap.String("transaction_id", t.ID),
		zap.String("status", string(status)),
	)
	return &WebhookOutcome{
		Success:              true,
		Message:              res.Message,
		TransactionID:        t.ID,
		GatewayTransactionID: res.TransactionID,
		Status:               status,
	}, nil
}

func (s *service) GetTransaction(ctx context.Context, id string) (*transaction.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}
