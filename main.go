package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/fulfillment/internal/jobs"
	"github.com/tournevent/fulfillment/internal/server"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fulfillment",
	Short:   "Order fulfillment - rate shopping, label purchase and order reconciliation",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.AutoFulfillSchedule != "" {
		job := jobs.NewAutoFulfillJob(a.service, a.logger, a.cfg.AutoFulfillBatchSize, a.cfg.AutoFulfillTimeout)
		if err := job.Start(a.cfg.AutoFulfillSchedule); err != nil {
			return err
		}
		defer job.Stop()
	}

	a.logger.Info("Starting fulfillment service",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
	)

	// Start HTTP server
	srv := server.New(server.Config{Port: a.cfg.Port}, a.service, a.registry, a.logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
