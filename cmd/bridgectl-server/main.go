package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridgectl/internal/backend"
	"bridgectl/internal/config"
	"bridgectl/internal/engine"
	"bridgectl/internal/httpapi"
	"bridgectl/internal/util"
)

func main() {
	cfgPath := "config/bridgectl.yaml"
	if p := os.Getenv("BRIDGECTL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	var b backend.Backend
	switch cfg.Backend.Kind {
	case "alpaca":
		b = backend.NewAlpaca(
			cfg.Alpaca.APIKey,
			cfg.Alpaca.APISecret,
			cfg.Alpaca.BaseURL,
			cfg.Backend.DefaultAccount,
			logger,
		)
	default:
		sim := backend.NewSim(cfg.Backend.StartingCash, cfg.Backend.DefaultAccount)
		for _, inst := range cfg.Backend.Instruments {
			sim.AddInstrument(inst.Symbol, inst.Name)
		}
		b = sim
	}

	orch := engine.New(b, cfg.Backend.DefaultAccount, logger)
	api := httpapi.NewServer(orch, b, cfg.Backend.DefaultAccount, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("bridgectl server listening", "addr", addr, "backend", b.Name())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("bridgectl server stopped")
}
