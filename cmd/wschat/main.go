/*
Package main is the entry point for the wschat terminal client.

It loads configuration, sends logs to a file (the terminal belongs to the chat surface),
connects to the chat server, starts a chat session for the chosen username and runs the
bubbletea surface until the user quits or the process is interrupted.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"wschat/internal/app/chat"
	"wschat/internal/app/transport"
	"wschat/internal/app/ui"
	"wschat/internal/app/user"
	"wschat/internal/configs"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/metrics"
	"wschat/internal/pkg/randx"
)

const dialTimeout = 10 * time.Second

var (
	serverURL string
	username  string
	logFile   string

	rootCmd = &cobra.Command{
		Use:           "wschat",
		Short:         "Chat in the terminal over a websocket chat server",
		Long:          "wschat connects to a chat server, registers your username and shows the online users and the live message log.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runChat,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "", "chat server websocket URL (overrides CHAT_SERVER_URL)")
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "username to chat as (overrides CHAT_USERNAME; random guest name if unset)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "file to write logs to (overrides CHAT_LOG_FILE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	name, err := resolveUsername(cfg.Username)
	if err != nil {
		return err
	}

	out, err := logx.OpenLogFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer out.Close()

	logx.InitGlobalLogger(cfg.IsDevelopment(), out)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("server_url", cfg.ServerURL).
		Str("username", name).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.NewRegistry())
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, m)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	client, err := transport.Dial(dialCtx, cfg.ServerURL, transport.Options{
		SendQueue:       cfg.SendQueue,
		SubscriberQueue: cfg.SubscriberQ,
		SendRate:        cfg.SendRate,
		SendBurst:       cfg.SendBurst,
		Metrics:         m,
	})
	cancelDial()
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", cfg.ServerURL, err)
	}
	defer client.Close()

	notifier := ui.NewNotifier()
	session, err := chat.NewSession(name, client,
		chat.WithOnChange(notifier.OnChange),
		chat.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	model := ui.New(ui.Options{
		Session:  session,
		Notifier: notifier,
		Done:     client.Done(),
		Err:      client.Err,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat surface failed: %w", err)
	}

	if fm, ok := final.(ui.Model); ok && fm.DisconnectErr() != nil {
		logx.Warn("Connection ended.", "error", fm.DisconnectErr().Error())
		return fm.DisconnectErr()
	}

	logx.Info("Chat client stopped.")
	return nil
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *configs.AppConfig) error {
	if cmd.Flags().Changed("server") {
		if err := configs.ValidateServerURL(serverURL); err != nil {
			return err
		}
		cfg.ServerURL = serverURL
	}
	if cmd.Flags().Changed("username") {
		cfg.Username = username
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}
	return nil
}

// resolveUsername validates the configured username or generates a guest name.
func resolveUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return randx.GuestName()
	}
	if err := user.ValidateUsername(name); err != nil {
		return "", err
	}
	return name, nil
}

func serveMetrics(addr string, m *metrics.Metrics) {
	logx.Info("Serving client metrics", "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Error(err, "Metrics server failed")
	}
}
