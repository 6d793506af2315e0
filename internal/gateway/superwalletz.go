package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"paybroker/internal/logger"
	"paybroker/internal/tokenstore"
	"paybroker/internal/transaction"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	superWalletzName      = "super_walletz"
	superWalletzMaxAmount = 1_000_000

	// defaultWaitWindow bounds both the correlation token TTL and the
	// in-flight wait for a confirming webhook.
	defaultWaitWindow = 30 * time.Second

	// recentWebhookWindow bounds how far back the degraded fallback
	// looks for a successful webhook record.
	recentWebhookWindow = 2 * time.Minute
)

var superWalletzErrors = map[string]string{
	"missing_callback_url":     "SuperWalletz requires a callback URL to process the payment.",
	"invalid_callback_url":     "The provided callback URL is not valid.",
	"invalid_currency":         "Currency must have exactly 3 characters (e.g., USD, EUR).",
	"invalid_amount":           "Amount must be greater than zero.",
	"amount_exceeds_limit":     "Amount exceeds the maximum allowed limit of 1,000,000.",
	"invalid_data":             "Invalid data sent to SuperWalletz. Verify amount, currency and callback_url.",
	"authentication_error":     "Authentication error with SuperWalletz.",
	"rate_limit_exceeded":      "Rate limit exceeded. Please try again later.",
	"server_error":             "Internal SuperWalletz server error. Please try again later.",
	"payment_initiation_error": "Error initiating payment with SuperWalletz.",
	"connection_error":         "Could not connect to SuperWalletz server. Check your internet connection.",
	"request_error":            "Error in request to SuperWalletz.",
	"unexpected_error":         "Unexpected error processing payment with SuperWalletz.",
	"invalid_response_format":  "SuperWalletz response does not contain a valid transaction_id.",
}

var superWalletzWebhookErrors = map[string]string{
	"missing_transaction_id":        "Webhook must contain a transaction_id.",
	"missing_status":                "Webhook must contain a status.",
	"invalid_status":                "Status is not valid. Allowed statuses: success, failed, pending, cancelled.",
	"invalid_transaction_id_format": "Transaction_id must be a non-empty string.",
	"webhook_processing_error":      "Error processing SuperWalletz webhook.",
}

// webhookStatuses maps the gateway's webhook status vocabulary to
// transaction states.
var webhookStatuses = map[string]transaction.Status{
	"success":   transaction.StatusCompleted,
	"failed":    transaction.StatusFailed,
	"cancelled": transaction.StatusFailed,
	"pending":   transaction.StatusProcessing,
}

// superWalletzGateway talks to the asynchronous SuperWalletz gateway.
// Initiation returns an "accepted" response with a provider transaction
// id; the true outcome arrives later on a server-to-server webhook
// correlated back via a single-use token embedded in the callback URL.
type superWalletzGateway struct {
	baseURL         string
	callbackBaseURL string
	httpClient      *http.Client
	breaker         *gobreaker.CircuitBreaker
	tokens          tokenstore.Store
	store           Store
	confirm         *confirmHub
	waitWindow      time.Duration
}

func NewSuperWalletzGateway(baseURL, callbackBaseURL string, tokens tokenstore.Store, store Store) Gateway {
	return &superWalletzGateway{
		baseURL:         baseURL,
		callbackBaseURL: callbackBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker:    gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: superWalletzName}),
		tokens:     tokens,
		store:      store,
		confirm:    newConfirmHub(),
		waitWindow: defaultWaitWindow,
	}
}

func (g *superWalletzGateway) Name() string {
	return superWalletzName
}

func (g *superWalletzGateway) ProcessPayment(ctx context.Context, amount float64, currency string, params Params) *Result {
	log := logger.FromCtx(ctx).With(
		zap.Float64("amount", amount),
		zap.String("currency", currency),
	)

	callbackURL := params.CallbackURL
	if callbackURL == "" && g.callbackBaseURL != "" {
		generated, err := g.generateCallbackURL(ctx)
		if err != nil {
			log.Error("failed to mint correlation token", zap.Error(err))
			return g.errorResult("unexpected_error", 0, "")
		}
		callbackURL = generated
	}

	if res := g.validate(amount, currency, callbackURL); res != nil {
		return res
	}

	body, err := json.Marshal(map[string]interface{}{
		"amount":       amount,
		"currency":     currency,
		"callback_url": callbackURL,
	})
	if err != nil {
		log.Error("failed to marshal payment request", zap.Error(err))
		return g.errorResult("request_error", 0, "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/pay", bytes.NewReader(body))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return g.errorResult("request_error", 0, "")
	}
	req.Header.Set("Content-Type", "application/json")

	log.Info("sending payment request to super_walletz")

	resp, err := g.do(req)
	if err != nil {
		return g.transportFailure(ctx, err, callbackURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read super_walletz response", zap.Error(err))
		return g.errorResult("unexpected_error", 0, "")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errType string
		switch {
		case resp.StatusCode == http.StatusBadRequest:
			errType = "invalid_data"
		case resp.StatusCode == http.StatusUnauthorized:
			errType = "authentication_error"
		case resp.StatusCode == http.StatusTooManyRequests:
			errType = "rate_limit_exceeded"
		case resp.StatusCode >= 500:
			errType = "server_error"
		default:
			errType = "payment_initiation_error"
		}

		log.Warn("super_walletz returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", raw),
		)
		return g.errorResult(errType, resp.StatusCode, string(raw))
	}

	var initiated struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(raw, &initiated); err != nil || initiated.TransactionID == "" {
		log.Warn("super_walletz response missing transaction_id", zap.ByteString("response", raw))
		return g.errorResult("invalid_response_format", 0, "")
	}

	outcome := g.awaitConfirmation(ctx, initiated.TransactionID)

	res := SuccessResult(resp.StatusCode, string(raw))
	res.TransactionID = initiated.TransactionID
	res.Status = string(outcome.status)
	res.WebhookReceived = outcome.webhookReceived
	res.ProcessingTime = outcome.processingTime
	return res
}

type confirmOutcome struct {
	status          transaction.Status
	webhookReceived bool
	processingTime  float64
}

// awaitConfirmation blocks until the webhook handler resolves the
// provider transaction id, the caller cancels, or the wait window
// elapses. On timeout it falls through to the degraded resolution
// chain. The wait holds no locks; the webhook handler's own update is
// the authority either way.
func (g *superWalletzGateway) awaitConfirmation(ctx context.Context, gatewayTxID string) confirmOutcome {
	log := logger.FromCtx(ctx).With(zap.String("gateway_transaction_id", gatewayTxID))
	start := time.Now()

	ch := g.confirm.register(gatewayTxID)
	defer g.confirm.cancel(gatewayTxID)

	log.Info("waiting for webhook confirmation", zap.Duration("window", g.waitWindow))

	timer := time.NewTimer(g.waitWindow)
	defer timer.Stop()

	select {
	case st := <-ch:
		log.Info("webhook confirmation received",
			zap.String("status", string(st)),
			zap.Duration("waited", time.Since(start)),
		)
		return confirmOutcome{
			status:          st,
			webhookReceived: true,
			processingTime:  time.Since(start).Seconds(),
		}
	case <-ctx.Done():
		log.Warn("confirmation wait cancelled", zap.Error(ctx.Err()))
	case <-timer.C:
		log.Warn("webhook confirmation timeout", zap.Duration("window", g.waitWindow))
	}

	return g.resolveUnconfirmed(ctx, gatewayTxID)
}

// resolveUnconfirmed is the best-effort fallback when no webhook
// resolved the wait: persisted transaction state first, then the most
// recent successful webhook record, then failed/unconfirmed.
func (g *superWalletzGateway) resolveUnconfirmed(ctx context.Context, gatewayTxID string) confirmOutcome {
	if t, err := g.store.FindByGatewayTransactionID(ctx, superWalletzName, gatewayTxID); err == nil && t != nil {
		return confirmOutcome{
			status:          t.Status,
			webhookReceived: t.Status.Terminal(),
			processingTime:  t.UpdatedAt.Sub(t.CreatedAt).Seconds(),
		}
	}

	rec, err := g.store.LatestSuccessfulWebhook(ctx, superWalletzName, time.Now().Add(-recentWebhookWindow))
	if err == nil && rec != nil {
		var wh struct {
			Status string `json:"status"`
		}
		_ = json.Unmarshal(rec.Payload, &wh)

		st := transaction.StatusFailed
		if wh.Status == "success" {
			st = transaction.StatusCompleted
		}
		// Best-effort telemetry, no authoritative timestamps exist on
		// this path.
		return confirmOutcome{
			status:          st,
			webhookReceived: true,
			processingTime:  time.Since(rec.ReceivedAt).Seconds(),
		}
	}

	return confirmOutcome{status: transaction.StatusFailed}
}

func (g *superWalletzGateway) HandleWebhook(ctx context.Context, payload []byte, token string) *WebhookResult {
	log := logger.FromCtx(ctx)

	if token == "" {
		log.Warn("webhook without correlation token")
		return webhookFailure("invalid_webhook_id", "Invalid or expired webhook")
	}

	consumed, err := g.tokens.Consume(ctx, token)
	if err != nil {
		log.Error("token store lookup failed", zap.Error(err))
		return webhookFailure("webhook_processing_error", superWalletzWebhookErrors["webhook_processing_error"])
	}
	if !consumed {
		log.Warn("webhook with unknown or expired token", zap.String("token", token))
		return webhookFailure("invalid_webhook_id", "Invalid or expired webhook")
	}

	wh, errType := parseWebhookPayload(payload)
	if errType != "" {
		res := webhookFailure(errType, superWalletzWebhookErrors[errType])
		g.logWebhook(ctx, payload, "", res.Message, false)
		return res
	}

	status := webhookStatuses[wh.Status]
	if _, err := g.store.ApplyWebhookStatus(ctx, superWalletzName, wh.TransactionID, status); err != nil {
		log.Error("failed to update transaction from webhook", zap.Error(err))
		res := webhookFailure("webhook_processing_error", superWalletzWebhookErrors["webhook_processing_error"])
		g.logWebhook(ctx, payload, "", res.Message, false)
		return res
	}

	txRef := ""
	if t, err := g.store.FindByGatewayTransactionID(ctx, superWalletzName, wh.TransactionID); err == nil && t != nil {
		txRef = t.ID
	}
	g.logWebhook(ctx, payload, txRef, "Webhook processed successfully", true)

	g.confirm.resolve(wh.TransactionID, status)

	log.Info("webhook processed",
		zap.String("gateway_transaction_id", wh.TransactionID),
		zap.String("webhook_status", wh.Status),
		zap.String("new_status", string(status)),
	)

	return &WebhookResult{
		Success:       true,
		Message:       "Webhook processed successfully",
		TransactionID: wh.TransactionID,
		Status:        wh.Status,
	}
}

type webhookPayload struct {
	TransactionID string
	Status        string
}

// parseWebhookPayload validates the webhook body, first failure wins.
// The raw fields are kept as json.RawMessage so "present but not a
// string" is distinguishable from "absent".
func parseWebhookPayload(payload []byte) (webhookPayload, string) {
	var raw struct {
		TransactionID json.RawMessage `json:"transaction_id"`
		Status        json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return webhookPayload{}, "webhook_processing_error"
	}

	if len(raw.TransactionID) == 0 || string(raw.TransactionID) == "null" {
		return webhookPayload{}, "missing_transaction_id"
	}
	var txID string
	if err := json.Unmarshal(raw.TransactionID, &txID); err != nil || txID == "" {
		return webhookPayload{}, "invalid_transaction_id_format"
	}

	if len(raw.Status) == 0 || string(raw.Status) == "null" {
		return webhookPayload{}, "missing_status"
	}
	var status string
	if err := json.Unmarshal(raw.Status, &status); err != nil {
		return webhookPayload{}, "invalid_status"
	}
	if _, ok := webhookStatuses[status]; !ok {
		return webhookPayload{}, "invalid_status"
	}

	return webhookPayload{TransactionID: txID, Status: status}, ""
}

func (g *superWalletzGateway) logWebhook(ctx context.Context, payload []byte, txRef, message string, success bool) {
	statusCode := http.StatusBadRequest
	if success {
		statusCode = http.StatusOK
	}

	rec := &transaction.WebhookRecord{
		TransactionID:   txRef,
		PaymentGateway:  superWalletzName,
		Payload:         payload,
		StatusCode:      statusCode,
		ResponseMessage: message,
		Success:         success,
	}

	if _, duplicate, err := g.store.SaveWebhookRecord(ctx, rec); err != nil {
		logger.FromCtx(ctx).Error("failed to persist webhook record", zap.Error(err))
	} else if duplicate {
		logger.FromCtx(ctx).Info("duplicate webhook ignored", zap.ByteString("payload", payload))
	}
}

// generateCallbackURL mints a single-use correlation token, registers
// it with the wait-window TTL, and embeds it on a self-addressed
// callback URL.
func (g *superWalletzGateway) generateCallbackURL(ctx context.Context) (string, error) {
	token := "wh_" + uuid.NewString()
	if err := g.tokens.Put(ctx, token, g.waitWindow); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s?id=%s", g.callbackBaseURL, token), nil
}

func (g *superWalletzGateway) do(req *http.Request) (*http.Response, error) {
	v, err := g.breaker.Execute(func() (interface{}, error) {
		return g.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

func (g *superWalletzGateway) transportFailure(ctx context.Context, err error, callbackURL string) *Result {
	log := logger.FromCtx(ctx).With(
		zap.Error(err),
		zap.String("callback_url", callbackURL),
	)

	var urlErr *url.Error
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		log.Error("super_walletz circuit open")
		return g.errorResult("connection_error", 0, "")
	case errors.As(err, &urlErr):
		log.Error("super_walletz connection error")
		return g.errorResult("connection_error", 0, "")
	default:
		log.Error("super_walletz unexpected error")
		return g.errorResult("unexpected_error", 0, "")
	}
}

func (g *superWalletzGateway) validate(amount float64, currency, callbackURL string) *Result {
	switch {
	case callbackURL == "":
		return g.errorResult("missing_callback_url", 0, "")
	case !isValidURL(callbackURL):
		return g.errorResult("invalid_callback_url", 0, "")
	case len(currency) != 3:
		return g.errorResult("invalid_currency", 0, "")
	case amount <= 0:
		return g.errorResult("invalid_amount", 0, "")
	case amount > superWalletzMaxAmount:
		return g.errorResult("amount_exceeds_limit", 0, "")
	}
	return nil
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (g *superWalletzGateway) errorResult(errType string, statusCode int, responseBody string) *Result {
	if statusCode == 0 {
		switch errType {
		case "missing_callback_url", "invalid_callback_url", "invalid_currency", "invalid_amount", "amount_exceeds_limit":
			statusCode = http.StatusBadRequest
		default:
			statusCode = http.StatusInternalServerError
		}
	}
	if responseBody == "" {
		if errType == "connection_error" {
			responseBody = "Internal server error"
		} else {
			responseBody = "error"
		}
	}
	return ErrorResult(errType, statusCode, responseBody, superWalletzErrors[errType])
}
