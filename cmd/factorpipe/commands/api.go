package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pearsonlabs/factorpipe/internal/api"
	"github.com/pearsonlabs/factorpipe/internal/api/handlers"
	"github.com/pearsonlabs/factorpipe/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only ops API server",
	Long: `Starts the HTTP API for run audit records and factor rows.

Endpoints:
  GET /health                - Health check
  GET /api/runs              - Recent pipeline runs
  GET /api/runs/{id}         - One run by id
  GET /api/factors/{symbol}  - Factor rows for a symbol
  GET /api/health/db         - Database health

Example:
  go run ./cmd/factorpipe api
  go run ./cmd/factorpipe api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	s, err := buildStack()
	if err != nil {
		return err
	}
	defer s.close()

	if apiPort != "" {
		s.cfg.API.Port = apiPort
	}

	redisClient, err := redis.New(s.cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "factorpipe")

	runsHandler := handlers.NewRunsHandler(s.audit, s.factors, s.db, cache, s.log)
	router := api.NewRouter(runsHandler, s.log)
	server := api.New(s.cfg, s.log, router)

	go func() {
		if err := server.Start(); err != nil {
			s.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", s.cfg.API.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
