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

//go:generate mockgen -destination=mock_discovery.go -package=discovery github.com/carverauto/aqualevel/pkg/discovery Resolver

// Package discovery pkg/discovery/interfaces.go
package discovery

import (
	"context"
	"net"
)

// Entry is one service instance seen by a Browser.
type Entry struct {
	Instance string
	HostName string
	Port     int
	AddrIPv4 []net.IP
	AddrIPv6 []net.IP
	Text     []string
}

// Browser performs an mDNS browse.
type Browser interface {
	// Browse sends every announced instance of service to entries. It blocks
	// until ctx is done or the browse fails to start, and never closes entries.
	Browse(ctx context.Context, service, domain string, entries chan<- *Entry) error
}

// Resolver turns a host name into addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}
