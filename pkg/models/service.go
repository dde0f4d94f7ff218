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

package models

// ServiceState is the lifecycle state of a registered service.
type ServiceState string

const (
	ServiceStopped ServiceState = "stopped"
	ServiceRunning ServiceState = "running"
)

// ServiceStatus is a point-in-time view of one registered service.
type ServiceStatus struct {
	Name    string       `json:"name"`
	Address string       `json:"address"`
	Port    int          `json:"port,omitempty"`
	State   ServiceState `json:"state"`
}
