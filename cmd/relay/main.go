/*
Package main is the entry point for the wschat development relay.

It loads configuration, initializes the global logging system, starts the chat room and
the HTTP server, and handles operating system interrupt signals (SIGINT, SIGTERM) to shut
the server down gracefully.
*/
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"wschat/internal/app/relay"
	"wschat/internal/configs"
	"wschat/internal/handler"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/metrics"
)

var (
	port int

	rootCmd = &cobra.Command{
		Use:           "relay",
		Short:         "Run the wschat development relay server",
		Long:          "relay accepts websocket chat clients on /ws, keeps the online roster and broadcasts every message to all registered users.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRelay,
	}
)

func init() {
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides PORT)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func runRelay(cmd *cobra.Command, _ []string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), os.Stderr)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	room := relay.NewRoom(m)
	go room.Run()

	router, joinLimiter := handler.Router(&handler.AppDeps{
		Room:    room,
		Config:  cfg,
		Metrics: m,
	})
	defer joinLimiter.Stop()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logx.Info(fmt.Sprintf("wschat relay listening on ws://localhost%s/ws", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
	case err := <-serverErr:
		room.Stop()
		return fmt.Errorf("server failed to start: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	room.Stop()
	<-room.Done()

	logx.Info("Relay gracefully stopped.")
	return nil
}
