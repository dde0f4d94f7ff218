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

// Package control exposes the supervisor to remote operators over NATS request/reply.
// Commands arrive on <prefix>.<hpid>.<command> with a JSON body naming services.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/honeygrove/honeygrove/pkg/logger"
	"github.com/honeygrove/honeygrove/pkg/models"
)

const (
	CommandPing    = "ping"
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandList    = "ls"
	CommandRunning = "running"
	CommandStatus  = "status"

	defaultCommandTimeout = 30 * time.Second
)

var (
	errUnknownCommand = errors.New("unknown command")
	errNoService      = errors.New("no service named in request")
	errUnknownService = errors.New("unknown service")
	errNotStarted     = errors.New("already running or failed to start")
	errNotStopped     = errors.New("not running")
	errBadRequest     = errors.New("malformed request body")
	errAlreadyStarted = errors.New("control bridge already started")
)

// Controller is the part of the supervisor the bridge drives.
type Controller interface {
	Start(ctx context.Context, name string) bool
	Stop(ctx context.Context, name string) bool
	Known(name string) bool
	RunningServices() []string
	AllServices() []string
	Status() []models.ServiceStatus
}

// Request names the services a start or stop command applies to.
type Request struct {
	Service  string   `json:"service,omitempty"`
	Services []string `json:"services,omitempty"`
}

func (r Request) names() []string {
	names := make([]string, 0, len(r.Services)+1)

	if r.Service != "" {
		names = append(names, r.Service)
	}

	for _, s := range r.Services {
		if s != "" {
			names = append(names, s)
		}
	}

	return names
}

// Reply is the JSON answer to every command. Services lists the names a command
// applied to; for start and stop only those that changed state.
type Reply struct {
	OK         bool                   `json:"ok"`
	HoneypotID string                 `json:"honeypot_id"`
	Command    string                 `json:"command"`
	Services   []string               `json:"services,omitempty"`
	Status     []models.ServiceStatus `json:"status,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Bridge subscribes to the command subjects of one honeypot.
type Bridge struct {
	nc      *nats.Conn
	prefix  string
	hpid    string
	ctl     Controller
	log     logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	sub     *nats.Subscription
	drained chan struct{}
}

func New(nc *nats.Conn, prefix, hpid string, ctl Controller, log logger.Logger) *Bridge {
	if prefix == "" {
		prefix = models.DefaultControlPrefix
	}

	return &Bridge{
		nc:      nc,
		prefix:  prefix,
		hpid:    hpid,
		ctl:     ctl,
		log:     log,
		timeout: defaultCommandTimeout,
	}
}

// Subject returns the command subject for cmd, or the wildcard when cmd is "*".
func (b *Bridge) Subject(cmd string) string {
	return b.prefix + "." + b.hpid + "." + cmd
}

func (b *Bridge) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		return errAlreadyStarted
	}

	sub, err := b.nc.Subscribe(b.Subject("*"), b.onMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to control subject: %w", err)
	}

	// Runs after the delivery goroutine has returned from its last onMessage.
	drained := make(chan struct{})
	sub.SetClosedHandler(func(string) { close(drained) })

	b.sub = sub
	b.drained = drained

	b.log.Info().Str("subject", sub.Subject).Msg("Control bridge listening")

	return nil
}

// Stop drains the subscription and returns once every command already delivered has
// been handled, or when ctx is done.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub == nil {
		return nil
	}

	sub, drained := b.sub, b.drained
	b.sub, b.drained = nil, nil

	if err := sub.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}

		return fmt.Errorf("failed to drain control subscription: %w", err)
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("control subscription still draining: %w", ctx.Err())
	}
}

func (b *Bridge) onMessage(msg *nats.Msg) {
	cmd := msg.Subject[strings.LastIndex(msg.Subject, ".")+1:]

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	reply := b.Handle(ctx, cmd, msg.Data)

	b.log.Info().
		Str("command", cmd).
		Bool("ok", reply.OK).
		Strs("services", reply.Services).
		Msg("Handled control command")

	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to encode control reply")
		return
	}

	if err := msg.Respond(data); err != nil {
		b.log.Warn().Err(err).Str("command", cmd).Msg("Failed to send control reply")
	}
}

// Handle executes one command against the controller.
func (b *Bridge) Handle(ctx context.Context, cmd string, body []byte) Reply {
	reply := Reply{HoneypotID: b.hpid, Command: cmd}

	var req Request

	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return fail(reply, fmt.Errorf("%w: %w", errBadRequest, err))
		}
	}

	switch cmd {
	case CommandPing:
		reply.OK = true
	case CommandList:
		reply.OK = true
		reply.Services = b.ctl.AllServices()
	case CommandRunning:
		reply.OK = true
		reply.Services = b.ctl.RunningServices()
	case CommandStatus:
		reply.OK = true
		reply.Status = b.ctl.Status()
	case CommandStart:
		return b.apply(ctx, reply, req.names(), b.ctl.Start, errNotStarted)
	case CommandStop:
		return b.apply(ctx, reply, req.names(), b.ctl.Stop, errNotStopped)
	default:
		return fail(reply, fmt.Errorf("%w: %q", errUnknownCommand, cmd))
	}

	return reply
}

func (b *Bridge) apply(
	ctx context.Context,
	reply Reply,
	names []string,
	op func(context.Context, string) bool,
	refused error) Reply {
	if len(names) == 0 {
		return fail(reply, errNoService)
	}

	var errs []error

	for _, name := range names {
		if !b.ctl.Known(name) {
			errs = append(errs, fmt.Errorf("%s: %w", name, errUnknownService))
			continue
		}

		if !op(ctx, name) {
			errs = append(errs, fmt.Errorf("%s: %w", name, refused))
			continue
		}

		reply.Services = append(reply.Services, name)
	}

	if len(errs) > 0 {
		return fail(reply, errors.Join(errs...))
	}

	reply.OK = true

	return reply
}

func fail(reply Reply, err error) Reply {
	reply.OK = false
	reply.Error = strings.ReplaceAll(err.Error(), "\n", "; ")

	return reply
}
