package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/showroom/internal/dealership"
	"github.com/haasonsaas/showroom/internal/mcpserver"
	"github.com/haasonsaas/showroom/internal/observability"
	"github.com/haasonsaas/showroom/internal/web"
)

func buildServeCmd() *cobra.Command {
	var configPath string
	var delegated bool
	var withDealer bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, delegated, withDealer)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&delegated, "delegate", false, "Let the Anthropic API drive MCP tool use server-side")
	cmd.Flags().BoolVar(&withDealer, "with-dealer", false, "Also run the dealer MCP server in-process")
	return cmd
}

func runServe(ctx context.Context, configPath string, delegated, withDealer bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.Default()

	slog.Info("starting showroom",
		"version", version,
		"http_port", cfg.Server.Port,
		"llm_provider", cfg.LLM.DefaultProvider,
		"mcp_url", cfg.MCP.URL,
		"delegated", delegated,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var dealerServer *http.Server
	if withDealer {
		dealerServer, err = startDealerServer(cfg.Dealership.DataDir, cfg.Dealership.Port, logger)
		if err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	rt, err := newRuntime(ctx, cfg, delegated, metrics, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	server, err := web.NewServer(&web.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Responder: rt.responder,
		MCPURL:    cfg.MCP.URL,
		Metrics:   metrics,
		Registry:  registry,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	slog.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if dealerServer != nil {
		if err := dealerServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dealer shutdown failed: %w", err)
		}
	}
	slog.Info("shutdown complete")
	return nil
}

// startDealerServer opens the dealership store and serves the MCP
// endpoint in a background goroutine.
func startDealerServer(dataDir string, port int, logger *slog.Logger) (*http.Server, error) {
	store, err := dealership.Open(dataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open dealership data: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mcpserver.NewServer(store, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("dealer MCP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("dealer MCP server failed", "error", err)
		}
	}()
	return srv, nil
}
