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
	"fmt"

	"github.com/grandcat/zeroconf"

	"github.com/carverauto/aqualevel/pkg/logger"
)

// ZeroconfBrowser browses with github.com/grandcat/zeroconf.
type ZeroconfBrowser struct {
	opts []zeroconf.ClientOption
}

func NewZeroconfBrowser(opts ...zeroconf.ClientOption) *ZeroconfBrowser {
	return &ZeroconfBrowser{opts: opts}
}

func (b *ZeroconfBrowser) Browse(ctx context.Context, service, domain string, out chan<- *Entry) error {
	resolver, err := zeroconf.NewResolver(b.opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBrowseFailed, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	if err := resolver.Browse(ctx, service, domain, entries); err != nil {
		return fmt.Errorf("%w: %w", ErrBrowseFailed, err)
	}

	relay(ctx, entries, out)

	return nil
}

// relay forwards entries to out until ctx ends, then drains entries until the
// resolver closes it so the resolver never blocks on a send.
func relay(ctx context.Context, entries <-chan *zeroconf.ServiceEntry, out chan<- *Entry) {
	defer func() {
		for range entries {
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}

			if e == nil {
				continue
			}

			select {
			case out <- fromServiceEntry(e):
			case <-ctx.Done():
				return
			}
		}
	}
}

func fromServiceEntry(e *zeroconf.ServiceEntry) *Entry {
	return &Entry{
		Instance: e.Instance,
		HostName: e.HostName,
		Port:     e.Port,
		AddrIPv4: e.AddrIPv4,
		AddrIPv6: e.AddrIPv6,
		Text:     e.Text,
	}
}

// Advertisement is a running mDNS registration.
type Advertisement struct {
	server *zeroconf.Server
	log    logger.Logger
}

// Advertise registers instance under service/domain on port until Shutdown.
func Advertise(instance, service, domain string, port int, text []string, log logger.Logger) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, service, domain, port, text, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdvertise, err)
	}

	log.Info().
		Str("instance", instance).
		Str("service", service).
		Int("port", port).
		Msg("Advertising service over mDNS")

	return &Advertisement{server: server, log: log}, nil
}

func (a *Advertisement) Shutdown() {
	a.server.Shutdown()
	a.log.Info().Msg("mDNS advertisement withdrawn")
}
