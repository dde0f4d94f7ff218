/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/honeygrove/honeygrove/pkg/config"
	"github.com/honeygrove/honeygrove/pkg/lifecycle"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
	"github.com/honeygrove/honeygrove/pkg/node"
	"github.com/honeygrove/honeygrove/pkg/version"
)

const defaultConfigPath = "/etc/honeygrove/honeygrove.json"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "honeygrove",
		Short:         "Low-interaction honeypot with a catch-all listener and passive scan detection",
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to honeygrove config file")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), configPath)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d services, catch-all %d-%d\n",
				cfg.HPID, len(cfg.Services), cfg.CatchAll.FirstPort, cfg.CatchAll.LastPort)

			return err
		},
	})

	return root
}

func loadConfig(ctx context.Context, path string) (*models.HoneypotConfig, error) {
	var cfg models.HoneypotConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

func run(ctx context.Context, configPath string) error {
	// Step 1: Load config
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	nodeLogger, err := lifecycle.CreateComponentLogger(ctx, "honeygrove", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if shutdownErr := lifecycle.ShutdownLogger(); shutdownErr != nil {
			log.Printf("Failed to shutdown logger: %v", shutdownErr)
		}
	}()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
			ServiceName:    "honeygrove",
			ServiceVersion: version.GetVersion(),
			OTel:           &cfg.Metrics.OTel,
			ExportInterval: time.Duration(cfg.Metrics.ExportInterval),
		})
		if err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// Step 3: Build the node and run it until signaled
	n, err := node.New(ctx, cfg, nodeLogger)
	if err != nil {
		return fmt.Errorf("failed to create honeypot: %w", err)
	}

	nodeLogger.Info().
		Str("hpid", cfg.HPID).
		Str("version", version.GetFullVersion()).
		Strs("enabled_services", cfg.EnabledServices).
		Msg("Starting honeygrove")

	return lifecycle.Run(ctx, n, nodeLogger)
}
