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

// Package supervisor owns the static service registry of a node and starts and stops
// services by name, handing each service's port over from the catch-all listener and back.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/honeygrove/honeygrove/pkg/events"
	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
)

var (
	ErrDuplicateService = errors.New("duplicate service name")
	ErrEmptyServiceName = errors.New("service name is empty")
	ErrNilService       = errors.New("nil service in registry")
)

// Registry is the explicit list of services a node knows about, built once at startup.
type Registry []Service

type descriptor struct {
	svc          Service
	portSpecific bool
	state        models.ServiceState
}

// Supervisor starts and stops registered services. Every transition runs under one mutex,
// so a port is never bound by both the arbiter and a running service.
type Supervisor struct {
	arbiter  PortArbiter
	recorder events.Recorder
	logger   logger.Logger

	mu           sync.Mutex
	services     map[string]*descriptor
	names        []string
	shuttingDown bool
}

// New validates the registry. Services named in noPortSpecific, and services without a
// port, never trigger a port hand-off. arbiter may be nil when no catch-all runs.
func New(
	registry Registry,
	arbiter PortArbiter,
	noPortSpecific []string,
	recorder events.Recorder,
	log logger.Logger) (*Supervisor, error) {
	s := &Supervisor{
		arbiter:  arbiter,
		recorder: recorder,
		logger:   log,
		services: make(map[string]*descriptor, len(registry)),
		names:    make([]string, 0, len(registry)),
	}

	for _, svc := range registry {
		if svc == nil {
			return nil, ErrNilService
		}

		name := svc.Name()
		if name == "" {
			return nil, ErrEmptyServiceName
		}

		if _, exists := s.services[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateService, name)
		}

		s.services[name] = &descriptor{
			svc:          svc,
			portSpecific: svc.Port() > 0 && !slices.Contains(noPortSpecific, name),
			state:        models.ServiceStopped,
		}
		s.names = append(s.names, name)
	}

	slices.Sort(s.names)

	return s, nil
}

// Start starts the named service. It returns false when the name is unknown, the service
// is already running, StopAll has been called, or the service failed to start; in the
// last case the port goes back to the arbiter.
func (s *Supervisor) Start(ctx context.Context, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		s.logger.Debug().Str("service", name).Msg("Start refused during shutdown")
		return false
	}

	d, ok := s.services[name]
	if !ok {
		s.logger.Debug().Str("service", name).Msg("Start requested for unknown service")
		return false
	}

	if d.state == models.ServiceRunning {
		return false
	}

	port := d.svc.Port()

	if d.portSpecific && s.arbiter != nil {
		s.arbiter.ReleasePort(port)
	}

	if err := d.svc.Start(ctx); err != nil {
		s.logger.Error().Err(err).Str("service", name).Int("port", port).Msg("Service failed to start")

		if d.portSpecific && s.arbiter != nil {
			s.arbiter.AcquirePort(port)
		}

		return false
	}

	d.state = models.ServiceRunning

	s.logger.Info().Str("service", name).Str("address", d.svc.Address()).Int("port", port).Msg("Service started")
	s.recorder.LogInfo(fmt.Sprintf("Started service %s on %s", name, endpoint(d.svc)))

	return true
}

// Stop stops the named service and returns its port to the arbiter. It returns false
// when the service is unknown or not running.
func (s *Supervisor) Stop(ctx context.Context, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.services[name]
	if !ok || d.state != models.ServiceRunning {
		return false
	}

	s.stopLocked(ctx, name, d)

	return true
}

func (s *Supervisor) stopLocked(ctx context.Context, name string, d *descriptor) {
	if err := d.svc.Stop(ctx); err != nil {
		s.logger.Warn().Err(err).Str("service", name).Msg("Service did not stop cleanly")
	}

	d.state = models.ServiceStopped

	if d.portSpecific && s.arbiter != nil {
		s.arbiter.AcquirePort(d.svc.Port())
	}

	s.logger.Info().Str("service", name).Msg("Service stopped")
	s.recorder.LogInfo(fmt.Sprintf("Stopped service %s on %s", name, endpoint(d.svc)))
}

// StartAll starts names in order and returns those that did not start. Names that are
// already running count as started.
func (s *Supervisor) StartAll(ctx context.Context, names []string) []string {
	var failed []string

	for _, name := range names {
		if s.IsRunning(name) {
			continue
		}

		if !s.Start(ctx, name) {
			failed = append(failed, name)
		}
	}

	return failed
}

// StopAll stops every running service: port-specific services first so their ports
// return to the arbiter, then port-less services, and the arbiter itself last. Later
// Start calls are refused.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shuttingDown = true

	arbiterSvc, _ := s.arbiter.(Service)

	var portSpecific, portLess []string

	for _, name := range s.names {
		d := s.services[name]
		if d.state != models.ServiceRunning || (arbiterSvc != nil && d.svc == arbiterSvc) {
			continue
		}

		if d.portSpecific {
			portSpecific = append(portSpecific, name)
		} else {
			portLess = append(portLess, name)
		}
	}

	for _, name := range append(portSpecific, portLess...) {
		s.stopLocked(ctx, name, s.services[name])
	}

	if arbiterSvc == nil {
		return
	}

	if d, ok := s.services[arbiterSvc.Name()]; ok && d.svc == arbiterSvc && d.state == models.ServiceRunning {
		s.stopLocked(ctx, arbiterSvc.Name(), d)
	}
}

// IsRunning reports whether name is registered and running.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.services[name]

	return ok && d.state == models.ServiceRunning
}

// Known reports whether name is registered.
func (s *Supervisor) Known(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.services[name]

	return ok
}

// RunningServices returns the names of running services, sorted.
func (s *Supervisor) RunningServices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := make([]string, 0, len(s.names))

	for _, name := range s.names {
		if s.services[name].state == models.ServiceRunning {
			running = append(running, name)
		}
	}

	return running
}

// AllServices returns every registered name, sorted.
func (s *Supervisor) AllServices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.names)
}

// Status returns a snapshot of every registered service, sorted by name.
func (s *Supervisor) Status() []models.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ServiceStatus, 0, len(s.names))

	for _, name := range s.names {
		d := s.services[name]

		out = append(out, models.ServiceStatus{
			Name:    name,
			Address: d.svc.Address(),
			Port:    d.svc.Port(),
			State:   d.state,
		})
	}

	return out
}

func endpoint(svc Service) string {
	if svc.Port() == 0 {
		if svc.Address() == "" {
			return "all interfaces"
		}

		return svc.Address()
	}

	return fmt.Sprintf("%s:%d", svc.Address(), svc.Port())
}
