package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	gatewayKey   ctxKey = "gateway"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// WithGateway tags the context with the gateway identifier handling the
// request, so every downstream log line carries it.
func WithGateway(ctx context.Context, gateway string) context.Context {
	return context.WithValue(ctx, gatewayKey, gateway)
}

func GatewayFrom(ctx context.Context) string {
	if v := ctx.Value(gatewayKey); v != nil {
		return v.(string)
	}
	return ""
}

// FromCtx returns logger with request_id and gateway automatically added.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if gw := GatewayFrom(ctx); gw != "" {
		l = l.With(zap.String("gateway", gw))
	}
	return l
}
