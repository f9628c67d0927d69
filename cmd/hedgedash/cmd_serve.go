package main

import (
	"github.com/spf13/cobra"

	"hedgedash/internal/dashboard"
	"hedgedash/internal/logger"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	Long: `Serve the dashboard page, the JSON API under /api/v1 and Prometheus
metrics at /metrics until interrupted.

Example:
  hedgedash serve --listen :8501`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides dashboard.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Dashboard.Listen = serveListen
	}

	svc := buildServices(ctx, cfg)
	compressOldHistory(ctx, svc)

	srv := dashboard.New(dashboard.Config{
		Listen:       cfg.Dashboard.Listen,
		ReadTimeout:  cfg.Dashboard.ReadTimeout,
		WriteTimeout: cfg.Dashboard.WriteTimeout,
		IdleTimeout:  cfg.Dashboard.ReadTimeout * 4,
	}, svc.hedge, svc.nav, svc.metrics)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Dashboard stopped", err)
		return err
	}
	logger.Info(ctx, "Dashboard stopped")
	return nil
}
