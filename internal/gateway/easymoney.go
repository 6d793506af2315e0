package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"paybroker/internal/logger"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const easyMoneyName = "easy_money"

var easyMoneyErrors = map[string]string{
	"decimal_amount_not_supported": "EasyMoney cannot process decimal amounts. The amount must be an integer.",
	"invalid_currency":             "Currency must have exactly 3 characters (e.g., USD, EUR).",
	"invalid_amount":               "Amount must be greater than zero.",
	"decimal_or_data_error":        "EasyMoney cannot process decimal amounts or there is an error in the sent data.",
	"processing_error":             "Error in payment processing.",
	"unexpected_response":          "Unexpected response from EasyMoney server.",
	"connection_error":             "Connection error with EasyMoney server.",
}

// easyMoneyGateway talks to the synchronous EasyMoney gateway: the
// payment outcome comes back in the same HTTP exchange, as a short
// status token in the response body.
type easyMoneyGateway struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewEasyMoneyGateway(baseURL string) Gateway {
	return &easyMoneyGateway{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: easyMoneyName}),
	}
}

func (g *easyMoneyGateway) Name() string {
	return easyMoneyName
}

func (g *easyMoneyGateway) ProcessPayment(ctx context.Context, amount float64, currency string, _ Params) *Result {
	if res := g.validate(amount, currency); res != nil {
		return res
	}

	log := logger.FromCtx(ctx).With(
		zap.Float64("amount", amount),
		zap.String("currency", currency),
	)

	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
	})
	if err != nil {
		log.Error("failed to marshal payment request", zap.Error(err))
		return g.errorResult("connection_error", 0, "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return g.errorResult("connection_error", 0, "")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.do(req)
	if err != nil {
		log.Error("easy_money request failed", zap.Error(err))
		return g.errorResult("connection_error", 0, "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read easy_money response", zap.Error(err))
		return g.errorResult("connection_error", 0, "")
	}
	respBody := string(raw)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && respBody == "ok" {
		log.Info("easy_money payment processed")
		return SuccessResult(resp.StatusCode, respBody)
	}

	var errType string
	switch {
	case respBody == "error" && resp.StatusCode == http.StatusBadRequest:
		errType = "decimal_or_data_error"
	case respBody == "error":
		errType = "processing_error"
	default:
		errType = "unexpected_response"
	}

	log.Warn("easy_money returned failure",
		zap.Int("status", resp.StatusCode),
		zap.String("response", respBody),
	)
	return g.errorResult(errType, resp.StatusCode, respBody)
}

// HandleWebhook always fails: EasyMoney has no inbound confirmation.
func (g *easyMoneyGateway) HandleWebhook(_ context.Context, _ []byte, _ string) *WebhookResult {
	return &WebhookResult{
		Success: false,
		Message: "EasyMoney does not support webhooks",
	}
}

func (g *easyMoneyGateway) do(req *http.Request) (*http.Response, error) {
	v, err := g.breaker.Execute(func() (interface{}, error) {
		return g.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

func (g *easyMoneyGateway) validate(amount float64, currency string) *Result {
	switch {
	case amount != math.Trunc(amount):
		return g.errorResult("decimal_amount_not_supported", 0, "")
	case len(currency) != 3:
		return g.errorResult("invalid_currency", 0, "")
	case amount <= 0:
		return g.errorResult("invalid_amount", 0, "")
	}
	return nil
}

func (g *easyMoneyGateway) errorResult(errType string, statusCode int, responseBody string) *Result {
	if statusCode == 0 {
		switch errType {
		case "decimal_amount_not_supported", "invalid_currency", "invalid_amount":
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
	return ErrorResult(errType, statusCode, responseBody, easyMoneyErrors[errType])
}
