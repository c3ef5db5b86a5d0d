/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Orbit expense approval server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Configure structured logging
  3. Initialize SQLite store
  4. Wire auth service, workflow engine, org service, reporter
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080)
  -db          SQLite database path (default: expenses.db)
               Use ":memory:" for in-memory database
  -jwt-secret  Token signing secret (or JWT_SECRET env var)
  -token-ttl   Token lifetime (default: 24h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/expenses.db" -jwt-secret="change-me"

  # Run with in-memory database
  ./server -db=":memory:"

ENVIRONMENT:
  JWT_SECRET: Token signing secret, overridden by -jwt-secret
  LOG_LEVEL:  debug, info, warn, error (default: info)

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orbit/expense-engine/api"
	"github.com/orbit/expense-engine/auth"
	"github.com/orbit/expense-engine/logging"
	"github.com/orbit/expense-engine/store/sqlite"
	"github.com/orbit/expense-engine/workflow"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "expenses.db", "SQLite database path")
	jwtSecret := flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "JWT token lifetime")
	flag.Parse()

	logging.Setup()
	logger := slog.Default()

	if *jwtSecret == "" {
		logger.Error("a JWT secret is required, set -jwt-secret or JWT_SECRET")
		os.Exit(1)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "path", *dbPath)
		os.Exit(1)
	}
	defer store.Close()

	// Wire services
	jwtManager := auth.NewJWTManager(*jwtSecret, *tokenTTL)
	authSvc := auth.NewService(store, store, logger)
	engine := workflow.NewEngine(store, logger)
	org := workflow.NewOrg(store)
	reporter := workflow.NewReporter(store)

	handler := api.NewHandler(engine, org, reporter, authSvc, jwtManager, logger)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
