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

// Package node assembles a honeygrove instance from its configuration.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/honeygrove/honeygrove/pkg/catchall"
	"github.com/honeygrove/honeygrove/pkg/control"
	"github.com/honeygrove/honeygrove/pkg/decoy"
	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/geoip"
	"github.com/honeygrove/honeygrove/pkg/heartbeat"
	"github.com/honeygrove/honeygrove/pkg/lifecycle"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
	"github.com/honeygrove/honeygrove/pkg/natsutil"
	"github.com/honeygrove/honeygrove/pkg/scan"
	"github.com/honeygrove/honeygrove/pkg/supervisor"
)

var errControlWithoutNATS = errors.New("control bridge requires a NATS url")

// Node owns every long-lived component of a honeypot.
type Node struct {
	cfg *models.HoneypotConfig
	log logger.Logger

	nc         *nats.Conn
	geo        *geoip.Locator
	logbook    *events.Logbook
	listener   *catchall.Listener
	supervisor *supervisor.Supervisor
	heartbeat  *heartbeat.Emitter
	bridge     *control.Bridge
}

// Option configures a Node.
type Option func(*options)

type options struct {
	scanOpts     []scan.Option
	catchAllOpts []catchall.Option
}

// WithScanOptions passes opts to the scan detector.
func WithScanOptions(opts ...scan.Option) Option {
	return func(o *options) {
		o.scanOpts = append(o.scanOpts, opts...)
	}
}

// WithCatchAllOptions passes opts to the catch-all listener.
func WithCatchAllOptions(opts ...catchall.Option) Option {
	return func(o *options) {
		o.catchAllOpts = append(o.catchAllOpts, opts...)
	}
}

// New connects to the broker when configured and builds the service registry. Nothing
// listens until Start.
func New(ctx context.Context, cfg *models.HoneypotConfig, log logger.Logger, opts ...Option) (*Node, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	n := &Node{cfg: cfg, log: log}

	var bookOpts []events.Option

	if cfg.GeoIP != nil && cfg.GeoIP.Enabled {
		geo, err := geoip.Open(cfg.GeoIP.DatabasePath)
		if err != nil {
			log.Warn().Err(err).Msg("GeoIP enrichment disabled")
		} else {
			n.geo = geo
			bookOpts = append(bookOpts, events.WithLocator(geo))
		}
	}

	if cfg.NATS != nil && cfg.NATS.URL != "" {
		nc, err := natsutil.Connect(cfg.NATS, lifecycle.Scoped(log, "nats"))
		if err != nil {
			n.closeClients()
			return nil, err
		}

		n.nc = nc
	}

	if n.nc != nil && cfg.Events != nil && cfg.Events.Enabled {
		publisher, err := natsutil.CreateEventPublisher(ctx, n.nc, cfg.NATS.Domain,
			cfg.Events.StreamName, "honeygrove/"+cfg.HPID, cfg.Events.Subjects)
		if err != nil {
			n.closeClients()
			return nil, err
		}

		bookOpts = append(bookOpts, events.WithPublisher(publisher, cfg.Events.QueueSize))
	}

	n.logbook = events.NewLogbook(cfg.HPID, lifecycle.Scoped(log, "events"), bookOpts...)

	n.listener = catchall.New(catchall.ConfigFrom(cfg.Address, cfg.CatchAll), n.logbook,
		lifecycle.Scoped(log, "catchall"), o.catchAllOpts...)

	registry := supervisor.Registry{n.listener}

	for _, svc := range cfg.Services {
		registry = append(registry, decoy.New(cfg.Address, svc, n.logbook, lifecycle.Scoped(log, "decoy")))
	}

	registry = append(registry,
		scan.NewDetector(scan.ConfigFrom(cfg.Scan), n.logbook, lifecycle.Scoped(log, "scan"), o.scanOpts...))

	sup, err := supervisor.New(registry, n.listener, cfg.NoPortSpecificServices, n.logbook,
		lifecycle.Scoped(log, "supervisor"))
	if err != nil {
		n.closeClients()
		return nil, fmt.Errorf("failed to build service registry: %w", err)
	}

	n.supervisor = sup

	if cfg.Heartbeat.Enabled {
		n.heartbeat = heartbeat.New(time.Duration(cfg.Heartbeat.Interval), n.logbook, sup,
			lifecycle.Scoped(log, "heartbeat"))
	}

	if cfg.Control != nil && cfg.Control.Enabled {
		if n.nc == nil {
			n.closeClients()
			return nil, errControlWithoutNATS
		}

		n.bridge = control.New(n.nc, cfg.Control.SubjectPrefix, cfg.HPID, sup, lifecycle.Scoped(log, "control"))
	}

	return n, nil
}

// Supervisor exposes the service supervisor.
func (n *Node) Supervisor() *supervisor.Supervisor {
	return n.supervisor
}

// Recorder exposes the alert sink shared by every service.
func (n *Node) Recorder() events.Recorder {
	return n.logbook
}

// Start brings up the enabled services. A service that fails to start is logged and
// skipped; the node keeps running with the rest.
func (n *Node) Start(ctx context.Context) error {
	if err := n.logbook.Start(ctx); err != nil {
		return err
	}

	n.logbook.LogInfo(fmt.Sprintf("Honeypot %s starting", n.cfg.HPID))

	if failed := n.supervisor.StartAll(ctx, n.cfg.EnabledServices); len(failed) > 0 {
		n.log.Warn().Strs("services", failed).Msg("Some services failed to start")
	}

	if n.heartbeat != nil {
		if err := n.heartbeat.Start(ctx); err != nil {
			return err
		}
	}

	if n.bridge != nil {
		if err := n.bridge.Start(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Stop shuts the node down: control first so no command races the teardown, then
// services, then the alert pipeline.
func (n *Node) Stop(ctx context.Context) error {
	var errs []error

	if n.bridge != nil {
		errs = append(errs, n.bridge.Stop(ctx))
	}

	if n.heartbeat != nil {
		errs = append(errs, n.heartbeat.Stop(ctx))
	}

	n.supervisor.StopAll(ctx)

	n.logbook.LogInfo(fmt.Sprintf("Honeypot %s stopped", n.cfg.HPID))

	errs = append(errs, n.logbook.Stop(ctx))
	errs = append(errs, n.closeClients())

	return errors.Join(errs...)
}

func (n *Node) closeClients() error {
	var err error

	if n.nc != nil {
		n.nc.Close()
		n.nc = nil
	}

	if n.geo != nil {
		err = n.geo.Close()
		n.geo = nil
	}

	return err
}
