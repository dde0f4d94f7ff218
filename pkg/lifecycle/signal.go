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

package lifecycle

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeygrove/honeygrove/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Runnable is anything with a blocking-free Start and a bounded Stop.
type Runnable interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Run starts svc and blocks until ctx is canceled or SIGINT/SIGTERM arrives,
// then stops svc within the shutdown timeout.
func Run(ctx context.Context, svc Runnable, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()

	log.Info().Msg("Shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop cleanly: %w", err)
	}

	return nil
}
