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

package supervisor

import "context"

//go:generate mockgen -destination=mock_supervisor.go -package=supervisor github.com/honeygrove/honeygrove/pkg/supervisor Service,PortArbiter

// Service is a startable decoy. Port is zero for services that own no single port.
type Service interface {
	Name() string
	Address() string
	Port() int
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// PortArbiter lends single ports to port-specific services. The catch-all listener
// implements it.
type PortArbiter interface {
	ReleasePort(port int)
	AcquirePort(port int)
}
