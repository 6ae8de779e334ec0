package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/runtime/telemetry"
)

// loadConfig loads the configuration from file, auto-generating if needed.
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = "config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("config file not found, creating default configuration at: %s\n", configPath)
		fmt.Println("edit this file to customize settings (deploy backend, node images/binaries, Prometheus URL, etc.)")
		fmt.Println()

		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// logRunMetrics queries the run's Prometheus sink, if one was configured,
// for a final liveness snapshot. Failures are logged, not fatal — §6
// treats telemetry as purely observational.
func logRunMetrics(ctx context.Context, logger *reporting.Logger, sink *telemetry.Sink) {
	client := sink.Client()
	if client == nil {
		return
	}

	exists, err := client.CheckMetricExists(ctx, "up")
	if err != nil {
		logger.Warn("telemetry check failed", "error", err)
		return
	}
	if !exists {
		logger.Debug("telemetry: no 'up' samples found at run end")
		return
	}

	value, err := client.GetLatestValue(ctx, "up")
	if err != nil {
		logger.Warn("telemetry query failed", "error", err)
		return
	}
	logger.Info("telemetry snapshot", "metric", "up", "value", value)
}
