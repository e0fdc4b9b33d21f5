package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chatrelay/internal/auth"
	"chatrelay/internal/logging"
	"chatrelay/internal/server"
	"chatrelay/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle so that
// deferred cleanup executes before the process exits.
func run() error {
	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer logger.Close()

	audit, err := logging.NewAuditLog(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("audit log init failed: %w", err)
	}

	users := store.NewUserStore(cfg.UsersFile)
	throttle := auth.NewThrottle(cfg.MaxLoginAttempts, cfg.LockoutDuration)
	hub := server.NewHub(*cfg, server.NewRegistry(), audit, logger)
	app := server.NewApp(*cfg, logger, users, throttle, hub)

	httpServer := server.CreateServer(cfg.Port, app.SetupRoutes())
	logger.Info(fmt.Sprintf("Starting chat relay server on %s", cfg.Port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-stop:
	}

	logger.Info("Shutdown signal received")
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error(fmt.Sprintf("HTTP shutdown error: %v", err))
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Error(fmt.Sprintf("Hub shutdown error: %v", err))
	}
	return nil
}
