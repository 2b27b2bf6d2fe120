package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	contracts "attest/contracts/ledger"
	"attest/internal/callertoken"
	"attest/internal/confirm"
	confirmmetrics "attest/internal/confirm/metrics"
	"attest/internal/content"
	"attest/internal/ledger"
	"attest/internal/platform/config"
	"attest/internal/platform/health"
	"attest/internal/platform/httpserver"
	"attest/internal/platform/logger"
	httptransport "attest/internal/transport/http"
	"attest/internal/workflow"
	"attest/internal/workflow/tracer"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing attest",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"content_mode", cfg.ContentMode,
	)

	node := ledger.NewMemNode()
	node.SeedIdentity(contracts.IdentityRecord{
		Address:   cfg.AdminAddress,
		Role:      contracts.RoleAdmin,
		CreatedAt: time.Now().Unix(),
	})
	log.Info("seeded ledger admin", "address", cfg.AdminAddress)

	gateway := ledger.NewGateway(node, log)

	hc := health.New(cfg.Environment)

	var store content.Store
	if cfg.ContentMode == "memory" {
		store = content.NewMemoryStore()
	} else {
		client := content.NewClient(cfg.ContentAPIURL, cfg.ContentTimeout, log)
		hc.RegisterCheck("content-store", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ContentTimeout)
			defer cancel()
			return client.Healthy(ctx)
		})
		store = client
	}

	engine := confirm.New(
		confirm.WithLogger(log),
		confirm.WithMetrics(confirmmetrics.New()),
		confirm.WithMaxAttempts(cfg.ConfirmAttempts),
		confirm.WithBackoff(cfg.ConfirmBackoff),
		confirm.WithInclusionWait(cfg.InclusionWait),
	)

	svc := workflow.NewService(gateway, store, engine,
		workflow.WithLogger(log),
		workflow.WithTracer(tracer.NewOTel()),
	)

	tokens := callertoken.NewService(cfg.JWTSigningKey, cfg.TokenTTL)

	handler := httptransport.NewHandler(svc, log)
	router := httptransport.NewRouter(handler, hc, callertoken.NewAdapter(tokens), log)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
