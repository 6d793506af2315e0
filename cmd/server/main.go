package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"paybroker/internal/config"
	"paybroker/internal/db"
	"paybroker/internal/gateway"
	"paybroker/internal/httpapi"
	"paybroker/internal/logger"
	"paybroker/internal/middleware"
	"paybroker/internal/payment"
	"paybroker/internal/tokenstore"
	"paybroker/internal/transaction"

	"go.uber.org/zap"
)

// Indirections for testing.
var (
	initDBFunc      = db.InitDB
	startServerFunc = http.ListenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	handler := newServer(cfg, database, newTokenStore(cfg))

	logger.L().Info("payment broker listening", zap.String("port", cfg.AppPort))
	return startServerFunc(":"+cfg.AppPort, handler)
}

// newTokenStore picks redis when configured, falling back to the
// in-process store for single-instance deployments.
func newTokenStore(cfg *config.Config) tokenstore.Store {
	if cfg.RedisAddr == "" {
		logger.L().Warn("REDIS_ADDR not set, using in-memory webhook token store")
		return tokenstore.NewMemoryStore()
	}

	rs := tokenstore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		logger.L().Fatal("redis unreachable", zap.Error(err))
	}
	return rs
}

func newServer(cfg *config.Config, database *sql.DB, tokens tokenstore.Store) http.Handler {
	repo := transaction.NewRepository(database)

	callbackBase := ""
	if cfg.AppBaseURL != "" {
		callbackBase = cfg.AppBaseURL + "/api/webhooks/super_walletz"
	}

	registry := gateway.NewRegistry(
		gateway.NewEasyMoneyGateway(cfg.EasyMoneyBaseURL),
		gateway.NewSuperWalletzGateway(cfg.SuperWalletzBaseURL, callbackBase, tokens, repo),
	)

	svc := payment.NewService(repo, registry)

	mux := http.NewServeMux()
	httpapi.NewHandler(svc).Register(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	handler = middleware.ServiceAuth(cfg.ServiceAuthSecret)(handler)
	handler = middleware.RateLimit(cfg.InternalSecretKey)(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)
	return handler
}
