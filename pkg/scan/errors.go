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

package scan

import "errors"

var (
	// IPv4/TCP parsing errors
	ErrShortIPv4Header     = errors.New("short IPv4 header")
	ErrNotIPv4             = errors.New("not IPv4")
	ErrBadIPv4HeaderLength = errors.New("bad IPv4 header length")
	ErrNotTCP              = errors.New("not TCP")
	ErrShortTCPHeader      = errors.New("short TCP header")

	// Capture errors
	ErrRawSocket            = errors.New("raw socket unavailable")
	ErrRawSocketUnsupported = errors.New("raw TCP capture is not supported on this platform")
	ErrDetectorDisabled     = errors.New("scan detector disabled")
)
