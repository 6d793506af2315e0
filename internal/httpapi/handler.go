package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"paybroker/internal/gateway"
	"paybroker/internal/logger"
	"paybroker/internal/payment"
	"paybroker/internal/transaction"

	"go.uber.org/zap"
)

// Handler exposes the payment broker over REST. Webhook correlation
// tokens travel on the "id" query parameter of the webhook endpoint.
type Handler struct {
	svc payment.Service
}

func NewHandler(svc payment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pay/{gateway}", h.pay)
	mux.HandleFunc("POST /api/webhooks/{gateway}", h.webhook)
	mux.HandleFunc("GET /api/transactions/{id}", h.getTransaction)
}

type payRequest struct {
	Amount      *float64 `json:"amount"`
	Currency    string   `json:"currency"`
	CallbackURL string   `json:"callback_url"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Amount == nil {
		writeError(w, r, http.StatusBadRequest, "The amount field is required.")
		return
	}
	if req.Currency == "" {
		writeError(w, r, http.StatusBadRequest, "The currency field is required.")
		return
	}

	res, err := h.svc.ProcessPayment(r.Context(), r.PathValue("gateway"), *req.Amount, req.Currency, gateway.Params{
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		var unsupported *gateway.UnsupportedGatewayError
		if errors.As(err, &unsupported) {
			writeJSON(w, r, http.StatusBadRequest, map[string]interface{}{
				"success":            false,
				"error":              "Unsupported payment gateway: " + unsupported.Gateway,
				"supported_gateways": unsupported.Supported,
			})
			return
		}
		logger.FromCtx(r.Context()).Error("payment processing failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	gw := res.GatewayResponse
	if !gw.Success {
		writeJSON(w, r, gw.StatusCode, map[string]interface{}{
			"success":        false,
			"error":          gw.Error,
			"error_type":     gw.ErrorType,
			"transaction_id": res.TransactionID,
			"gateway_response": map[string]interface{}{
				"status_code":      gw.StatusCode,
				"response_message": gw.ResponseMessage,
			},
		})
		return
	}

	data := map[string]interface{}{
		"transaction_id": res.TransactionID,
		"status":         string(res.Status),
		"gateway_response": map[string]interface{}{
			"status_code":      gw.StatusCode,
			"response_message": gw.ResponseMessage,
		},
	}
	if res.GatewayTransactionID != "" {
		data["gateway_transaction_id"] = res.GatewayTransactionID
		data["webhook_received"] = res.WebhookReceived
		data["processing_time"] = res.ProcessingTime
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment processed successfully",
		"data":    data,
	})
}

// webhookStatusCodes maps adapter error types to HTTP statuses.
var webhookStatusCodes = map[string]int{
	"invalid_webhook_id":       http.StatusBadRequest,
	"transaction_not_found":    http.StatusNotFound,
	"webhook_processing_error": http.StatusInternalServerError,
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Could not read request body")
		return
	}

	out, err := h.svc.HandleWebhook(r.Context(), r.PathValue("gateway"), payload, r.URL.Query().Get("id"))
	if err != nil {
		var unsupported *gateway.UnsupportedGatewayError
		if errors.As(err, &unsupported) {
			writeJSON(w, r, http.StatusBadRequest, map[string]interface{}{
				"success":            false,
				"error":              "Gateway does not support webhooks: " + unsupported.Gateway,
				"supported_gateways": unsupported.Supported,
			})
			return
		}
		logger.FromCtx(r.Context()).Error("webhook handling failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !out.Success {
		status, ok := webhookStatusCodes[out.ErrorType]
		if !ok {
			status = http.StatusBadRequest
		}
		writeJSON(w, r, status, map[string]interface{}{
			"success":    false,
			"error":      out.Message,
			"error_type": out.ErrorType,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        out.Message,
		"transaction_id": out.TransactionID,
		"status":         string(out.Status),
	})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTransaction(r.Context(), r.PathValue("id"))
	if errors.Is(err, transaction.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		logger.FromCtx(r.Context()).Error("transaction lookup failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	data := map[string]interface{}{
		"transaction_id":  t.ID,
		"amount":          t.Amount,
		"currency":        t.Currency,
		"status":          string(t.Status),
		"payment_gateway": t.PaymentGateway,
		"created_at":      t.CreatedAt,
		"updated_at":      t.UpdatedAt,
	}
	if t.GatewayTransactionID != "" {
		data["gateway_transaction_id"] = t.GatewayTransactionID
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}
