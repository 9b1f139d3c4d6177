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

package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestRelayForwardsEntries(t *testing.T) {
	entries := make(chan *zeroconf.ServiceEntry)
	out := make(chan *Entry, 1)

	done := make(chan struct{})

	go func() {
		defer close(done)
		relay(context.Background(), entries, out)
	}()

	e := zeroconf.NewServiceEntry("AquaLevel Kitchen", "_http._tcp", "local.")
	e.HostName = "aqualevel-kitchen.local."
	e.Port = 80
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.50")}

	entries <- nil
	entries <- e

	got := <-out
	assert.Equal(t, "AquaLevel Kitchen", got.Instance)
	assert.Equal(t, 80, got.Port)

	close(entries)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not return after entries closed")
	}
}

func TestRelayDrainsUntilResolverCloses(t *testing.T) {
	entries := make(chan *zeroconf.ServiceEntry)
	out := make(chan *Entry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		relay(ctx, entries, out)
	}()

	cancel()

	// Late answers must still be accepted so the resolver can shut down.
	for i := 0; i < 3; i++ {
		select {
		case entries <- zeroconf.NewServiceEntry("AquaLevel Late", "_http._tcp", "local."):
		case <-time.After(time.Second):
			t.Fatal("resolver blocked sending after cancel")
		}
	}

	select {
	case <-done:
		t.Fatal("relay returned before the resolver closed its channel")
	default:
	}

	close(entries)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not return after entries closed")
	}
}
