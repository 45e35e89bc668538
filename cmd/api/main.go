package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/config"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/utilities"
)

func main() {
	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	// config loads .env itself; missing secrets abort startup
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	sugar.Infow("starting orangelink", "env", cfg.AppEnv, "driver", database.DriverFor(cfg.Database.DSN), "access_ttl", cfg.JWT.AccessTTLSpec)

	// init db
	store, err := database.Open(cfg.Database)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer store.Close()

	a, err := app.New(cfg, store, nil, sugar)
	if err != nil {
		sugar.Fatalf("app init: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Migrate(ctx); err != nil {
		sugar.Fatalf("migrate: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		sugar.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for in-flight requests
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
