/*
Package main is the entry point for the dash server.

It loads configuration, initializes logging, opens and migrates the identity database,
builds the token codec and chat manager, serves HTTP and shuts everything down on
SIGINT or SIGTERM.
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

	"dash/internal/app/chat"
	"dash/internal/app/db"
	"dash/internal/app/user"
	"dash/internal/configs"
	"dash/internal/handler"
	"dash/internal/pkg/auth/jwt"
	"dash/internal/pkg/logx"
	"dash/internal/pkg/password"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("token_lifetime", cfg.AuthTokenExpiry).
		Dur("ws_handshake_timeout", cfg.WSHandshakeTimeout).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := jwt.NewCodec(jwt.Settings{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Lifetime: cfg.AuthTokenExpiry,
	})
	if err != nil {
		logx.Fatal(err, "Invalid token settings")
	}

	store, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to open database")
	}
	defer store.Close()
	logx.Info("Database ready", "backend", store.Backend())

	promoteAdmins(ctx, store, cfg.AdminUsers)

	// Initialize Chat Manager
	manager := chat.NewManager(codec, store, cfg.WSHandshakeTimeout)

	deps := &handler.AppDeps{
		Config:    cfg,
		Codec:     codec,
		Directory: store,
		Hasher:    password.NewHasher(cfg.PasswordSalt),
		Manager:   manager,
	}

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("dash server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Hijacked WebSocket connections are not covered by server.Shutdown.
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Chat sessions forced to close")
	}

	logx.Info("Server gracefully stopped.")
}

// promoteAdmins grants the elevated flag to each configured username or email.
// Accounts that do not exist yet are skipped.
func promoteAdmins(ctx context.Context, directory user.Directory, admins []string) {
	for _, name := range admins {
		err := directory.SetElevated(ctx, name, true)
		switch {
		case errors.Is(err, user.ErrNotFound):
			logx.Warn("Configured admin does not exist, skipping", "user", name)
		case err != nil:
			logx.Error(err, "Failed to promote admin", "user", name)
		default:
			logx.Info("Admin privileges granted", "user", name)
		}
	}
}
