package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// countingTripper fails the test if any outbound call is made.
type countingTripper struct {
	t     *testing.T
	calls int
}

func (c *countingTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls++
	c.t.Errorf("unexpected outbound call to %s", req.URL)
	return nil, errors.New("unexpected call")
}

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestEasyMoneyGateway_Validation(t *testing.T) {
	cases := []struct {
		name     string
		amount   float64
		currency string
		errType  string
	}{
		{"DecimalAmount", 100.50, "USD", "decimal_amount_not_supported"},
		{"CurrencyTooShort", 100, "US", "invalid_currency"},
		{"CurrencyTooLong", 100, "USDT", "invalid_currency"},
		{"EmptyCurrency", 100, "", "invalid_currency"},
		{"ZeroAmount", 0, "USD", "invalid_amount"},
		{"NegativeAmount", -5, "USD", "invalid_amount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := NewEasyMoneyGateway("http://localhost:3000").(*easyMoneyGateway)
			// Validation must reject before any outbound call.
			gw.httpClient.Transport = &countingTripper{t: t}

			res := gw.ProcessPayment(context.Background(), tc.amount, tc.currency, Params{})
			assert.False(t, res.Success)
			assert.Equal(t, tc.errType, res.ErrorType)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, easyMoneyErrors[tc.errType], res.Error)
		})
	}
}

func TestEasyMoneyGateway_ProcessPayment(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		gw := NewEasyMoneyGateway("http://localhost:3000").(*easyMoneyGateway)
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			assert.Equal(t, "POST", req.Method)
			assert.Equal(t, "http://localhost:3000/process", req.URL.String())
			return textResponse(http.StatusOK, "ok")
		})

		res := gw.ProcessPayment(context.Background(), 100, "USD", Params{})
		assert.True(t, res.Success)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "ok", res.ResponseMessage)
	})

	t.Run("DecimalOrDataError", func(t *testing.T) {
		gw := NewEasyMoneyGateway("http://localhost:3000").(*easyMoneyGateway)
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return textResponse(http.StatusBadRequest, "error")
		})

		res := gw.ProcessPayment(context.Background(), 100, "USD", Params{})
		assert.False(t, res.Success)
		assert.Equal(t, "decimal_or_data_error", res.ErrorType)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("ProcessingError", func(t *testing.T) {
		gw := NewEasyMoneyGateway("http://localhost:3000").(*easyMoneyGateway)
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return textResponse(http.StatusInternalServerError, "error")
		})

		res := gw.ProcessPayment(context.Background(), 100, "USD", Params{})
		assert.False(t, res.Success)
		assert.Equal(t, "processing_error", res.ErrorType)
	})

	t.Run("UnexpectedResponse", func(t *testing.T) {
		gw := NewEasyMoneyGateway("http://localhost:3000").(*easyMoneyGateway)
		gw.httpClient.Transport = MockRoundTripper(func(req *http.Request) *http.Response {
			return textResponse(http.StatusOK, "something else")
		})

		res := gw.ProcessPayment(context.Background(), 100, "USD", Params{})
		assert.False(t, res.Success)
		assert.Equal(t, "unexpected_response", res.ErrorType)
	})

	t.Run("ConnectionError", func(t *testing.T) {
		gw := NewEasyMoneyGateway("http://localhost:3000").(*easyMoneyGateway)
		gw.httpClient.Transport = MockRoundTripperWithError(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})

		res := gw.ProcessPayment(context.Background(), 100, "USD", Params{})
		assert.False(t, res.Success)
		assert.Equal(t, "connection_error", res.ErrorType)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, "Internal server error", res.ResponseMessage)
	})
}

func TestEasyMoneyGateway_HandleWebhook(t *testing.T) {
	gw := NewEasyMoneyGateway("http://localhost:3000")

	res := gw.HandleWebhook(context.Background(), []byte(`{"transaction_id":"x"}`), "wh_token")
	assert.False(t, res.Success)
	assert.Equal(t, "EasyMoney does not support webhooks", res.Message)
}

func TestEasyMoneyGateway_Name(t *testing.T) {
	assert.Equal(t, "easy_money", NewEasyMoneyGateway("").Name())
}
