package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/api/handlers"
	"github.com/BaSui01/nodeflow/config"
	"github.com/BaSui01/nodeflow/engine"
	"github.com/BaSui01/nodeflow/eval"
	"github.com/BaSui01/nodeflow/internal/database"
	"github.com/BaSui01/nodeflow/internal/metrics"
	"github.com/BaSui01/nodeflow/storage"
	"github.com/BaSui01/nodeflow/tools"
)

func runMigrate(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(context.Background(), cfg.Database, logger)
	if err != nil {
		return err
	}
	store := storage.NewGormStore(db, logger)
	if err := store.Migrate(); err != nil {
		return err
	}
	logger.Info("schema migrated", zap.String("driver", cfg.Database.Driver))
	return nil
}

func runServe(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(context.Background(), cfg.Database, logger)
	if err != nil {
		return err
	}

	store := storage.NewGormStore(db, logger)
	if err := store.Migrate(); err != nil {
		return err
	}

	collector := metrics.NewCollector("nodeflow", prometheus.DefaultRegisterer, logger)
	evaluator := eval.New(logger, eval.WithTimeout(cfg.Engine.EvalTimeout))

	executors := engine.NewRegistry(logger)
	if err := engine.RegisterBuiltins(executors, evaluator, logger); err != nil {
		return fmt.Errorf("registering node executors: %w", err)
	}

	eng := engine.New(store, executors, logger,
		engine.WithRecorder(store),
		engine.WithMetrics(collector),
		engine.WithMaxSteps(cfg.Engine.MaxSteps),
	)

	toolRegistry := tools.NewRegistry(logger, tools.WithMetrics(collector))
	if err := tools.RegisterBuiltins(toolRegistry, tools.Deps{
		Store:     store,
		Engine:    eng,
		Executors: executors,
		Logger:    logger,
	}); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	workflowHandler := handlers.NewWorkflowHandler(store, eng, logger)
	toolHandler := handlers.NewToolHandler(toolRegistry, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/workflows", workflowHandler.HandleCreate)
	mux.HandleFunc("GET /v1/workflows", workflowHandler.HandleList)
	mux.HandleFunc("GET /v1/workflows/{id}", workflowHandler.HandleGet)
	mux.HandleFunc("DELETE /v1/workflows/{id}", workflowHandler.HandleDelete)
	mux.HandleFunc("POST /v1/workflows/{id}/execute", workflowHandler.HandleExecute)
	mux.HandleFunc("GET /v1/workflows/{id}/logs", workflowHandler.HandleLogs)
	mux.HandleFunc("GET /v1/tools", toolHandler.HandleList)
	mux.HandleFunc("POST /v1/tools/{name}/execute", toolHandler.HandleExecute)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
