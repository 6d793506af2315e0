package gateway

// Result is the uniform outcome envelope for payment initiation.
type Result struct {
	Success         bool    `json:"success"`
	StatusCode      int     `json:"status_code"`
	ResponseMessage string  `json:"response_message"`
	ErrorType       string  `json:"error_type,omitempty"`
	Error           string  `json:"error,omitempty"`
	TransactionID   string  `json:"transaction_id,omitempty"`
	Status          string  `json:"status,omitempty"`
	WebhookReceived bool    `json:"webhook_received,omitempty"`
	ProcessingTime  float64 `json:"processing_time,omitempty"`
}

// WebhookResult is the outcome envelope for inbound webhook handling.
type WebhookResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ErrorType     string `json:"error_type,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status,omitempty"`
}

func SuccessResult(statusCode int, responseMessage string) *Result {
	return &Result{
		Success:         true,
		StatusCode:      statusCode,
		ResponseMessage: responseMessage,
	}
}

func ErrorResult(errorType string, statusCode int, responseMessage, errorMessage string) *Result {
	return &Result{
		Success:         false,
		StatusCode:      statusCode,
		ResponseMessage: responseMessage,
		ErrorType:       errorType,
		Error:           errorMessage,
	}
}

func webhookFailure(errorType, message string) *WebhookResult {
	return &WebhookResult{
		Success:   false,
		Message:   message,
		ErrorType: errorType,
	}
}
