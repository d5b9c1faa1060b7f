package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexwynter/wavelength/internal/authz"
	"github.com/alexwynter/wavelength/internal/config"
	"github.com/alexwynter/wavelength/internal/controller"
	"github.com/alexwynter/wavelength/internal/httpapi"
	"github.com/alexwynter/wavelength/internal/observability"
	"github.com/alexwynter/wavelength/internal/social"
	"github.com/alexwynter/wavelength/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("session store init failed: %v", err)
	}
	defer st.Close()

	storeMode := "in-memory"
	if cfg.DatabaseURL != "" {
		storeMode = "postgres"
	}

	// Platform collaborators. In the full deployment these are backed by
	// the social graph and identity services; the static implementations
	// serve local runs.
	graph := social.NewStaticGraph()
	blocklist := social.NewStaticBlocklist()
	directory := social.NewStaticDirectory()

	gate := authz.New(graph)
	ctrl := controller.New(st, gate, directory, blocklist, social.LogAuditSink{}, metrics, cfg.BroadcastStaleAfter)
	api := httpapi.New(cfg, ctrl, metrics)

	srv := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("wavelength listening on %s (store=%s, stale_after=%s)", cfg.BindAddr, storeMode, cfg.BroadcastStaleAfter)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
