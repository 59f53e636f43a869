// Command server starts the Ocera backend HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oceralabs/ocera/internal/adapter/ai/gemini"
	httpserver "github.com/oceralabs/ocera/internal/adapter/httpserver"
	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/adapter/payment/lemonsqueezy"
	"github.com/oceralabs/ocera/internal/adapter/payment/paystack"
	redditcli "github.com/oceralabs/ocera/internal/adapter/reddit"
	"github.com/oceralabs/ocera/internal/adapter/repo/postgres"
	"github.com/oceralabs/ocera/internal/adapter/state/redisstate"
	"github.com/oceralabs/ocera/internal/app"
	"github.com/oceralabs/ocera/internal/config"
	"github.com/oceralabs/ocera/internal/domain"
	"github.com/oceralabs/ocera/internal/service/quota"
	"github.com/oceralabs/ocera/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	// Secrets must come from the environment; a misconfigured process refuses
	// to start instead of limping along with baked-in fallbacks.
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", slog.Any("error", err))
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	usersRepo := postgres.NewUsersRepo(pool)
	states := redisstate.New(rdb)
	reddit := redditcli.New(cfg)

	// Payment providers: both webhook surfaces stay registered; the configured
	// one creates checkouts.
	paystackProvider := paystack.New(cfg)
	lemonProvider := lemonsqueezy.New(cfg)
	var active domain.PaymentProvider = paystackProvider
	if strings.ToLower(cfg.PaymentProvider) == "lemonsqueezy" {
		active = lemonProvider
	}

	aiSvc := usecase.NewAIService(gemini.New(cfg), cfg.MaxContentLength, cfg.MinSuggestions, cfg.MaxSuggestions)
	proxySvc := usecase.NewProxyService(reddit, usersRepo, nil)
	connectSvc := usecase.NewConnectService(reddit, usersRepo, states, cfg.OAuthStateTTL, cfg.RedditEnabled())
	billingSvc := usecase.NewBillingService(active, usersRepo, paystackProvider, lemonProvider)

	if !cfg.RedditEnabled() {
		slog.Warn("reddit oauth application not configured; connect and proxy endpoints disabled")
	}

	srv := &httpserver.Server{
		Cfg:        cfg,
		AI:         aiSvc,
		Proxy:      proxySvc,
		Connect:    connectSvc,
		Billing:    billingSvc,
		Users:      usersRepo,
		Quota:      quota.New(cfg.FreeAICallsPerDay),
		DBCheck:    app.DBCheck(pool),
		RedisCheck: app.RedisCheck(rdb),
	}
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
