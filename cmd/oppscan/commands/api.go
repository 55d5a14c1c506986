package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantgrid/oppscan/internal/api"
	"github.com/quantgrid/oppscan/internal/api/handlers"
)

var apiPort string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Starts the HTTP API server.

Endpoints:
  GET  /health             - Health check
  GET  /api/runs           - Recent run summaries
  GET  /api/runs/latest    - Latest run with ranked list
  GET  /api/runs/{id}      - One run by id
  POST /api/runs/trigger   - Trigger a manual scan
  GET  /api/rules          - Current rule set
  PUT  /api/rules          - Replace the rule set (validated)

Example:
  go run ./cmd/oppscan api
  go run ./cmd/oppscan api --port 8080`,
	RunE: runAPIServer,
}

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	runsHandler := handlers.NewRunsHandler(a.store, a.runner, a.log)
	rulesHandler := handlers.NewRulesHandler(a.cfg.RulesPath, a.log)

	router := api.NewRouter(runsHandler, rulesHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)

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
