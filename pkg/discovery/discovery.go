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

// Package discovery finds AquaLevel devices on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/aqualevel/pkg/config"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/metrics"
	"github.com/carverauto/aqualevel/pkg/models"
)

const (
	defaultBufferSize     = 32
	defaultResolveTimeout = 5 * time.Second
)

// Option customizes a Service.
type Option func(*Service)

func WithBrowser(b Browser) Option {
	return func(s *Service) { s.browser = b }
}

func WithResolver(r Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service browses for device announcements.
type Service struct {
	cfg      config.DiscoveryConfig
	browser  Browser
	resolver Resolver
	logger   logger.Logger
	metrics  *metrics.Metrics
}

func NewService(cfg config.DiscoveryConfig, log logger.Logger, opts ...Option) *Service {
	if cfg.ServiceType == "" {
		cfg.ServiceType = "_http._tcp"
	}

	if cfg.Domain == "" {
		cfg.Domain = "local."
	}

	if cfg.NameFilter == "" {
		cfg.NameFilter = models.ProductTag
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}

	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = config.Duration(defaultResolveTimeout)
	}

	s := &Service{
		cfg:      cfg,
		browser:  NewZeroconfBrowser(),
		resolver: net.DefaultResolver,
		logger:   log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scan is one running browse. Devices is closed when the scan ends.
type Scan struct {
	devices chan *models.DiscoveredDevice
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func (sc *Scan) Devices() <-chan *models.DiscoveredDevice { return sc.devices }

// Err reports why the browse could not run. It is meaningful once Devices is closed.
func (sc *Scan) Err() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.err
}

// Stop cancels the scan and waits until the browser has let go.
func (sc *Scan) Stop() {
	sc.cancel()
	<-sc.done
}

func (sc *Scan) setErr(err error) {
	sc.mu.Lock()
	sc.err = err
	sc.mu.Unlock()
}

// Discover starts a browse that runs until ctx ends or Stop is called.
func (s *Service) Discover(ctx context.Context) *Scan {
	ctx, cancel := context.WithCancel(ctx)

	scan := &Scan{
		devices: make(chan *models.DiscoveredDevice, s.cfg.BufferSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	raw := make(chan *Entry, s.cfg.BufferSize)

	go func() {
		defer close(raw)

		err := s.browser.Browse(ctx, s.cfg.ServiceType, s.cfg.Domain, raw)
		if err != nil && ctx.Err() == nil {
			if !errors.Is(err, ErrBrowseFailed) {
				err = fmt.Errorf("%w: %w", ErrBrowseFailed, err)
			}

			s.logger.Error().Err(err).Str("service", s.cfg.ServiceType).Msg("Discovery browse failed")
			scan.setErr(err)
		}
	}()

	go func() {
		defer close(scan.done)
		defer close(scan.devices)

		s.consume(ctx, raw, scan.devices)
	}()

	s.logger.Debug().Str("service", s.cfg.ServiceType).Str("domain", s.cfg.Domain).Msg("Discovery started")

	return scan
}

// consume runs until raw is closed so the browser is never left blocked.
func (s *Service) consume(ctx context.Context, raw <-chan *Entry, out chan<- *models.DiscoveredDevice) {
	seen := make(map[string]struct{})

	for entry := range raw {
		if ctx.Err() != nil || !s.matches(entry) {
			continue
		}

		dev, err := s.resolve(ctx, entry)
		if err != nil {
			if ctx.Err() == nil {
				s.metrics.ResolveFailed()
				s.logger.Warn().Err(err).Str("instance", entry.Instance).Msg("Skipping unresolvable device")
			}

			continue
		}

		key := dev.Hostname + "|" + dev.IPAddress
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		s.metrics.DeviceDiscovered()

		select {
		case out <- dev:
		case <-ctx.Done():
		}
	}
}

func (s *Service) matches(e *Entry) bool {
	if e == nil || e.Instance == "" {
		return false
	}

	return strings.Contains(strings.ToLower(e.Instance), strings.ToLower(s.cfg.NameFilter))
}

func (s *Service) resolve(ctx context.Context, e *Entry) (*models.DiscoveredDevice, error) {
	ip := firstIPv4(e.AddrIPv4)

	if ip == "" {
		host := strings.TrimSuffix(e.HostName, ".")
		if host == "" {
			return nil, errNoAddress
		}

		rctx, cancel := context.WithTimeout(ctx, s.cfg.ResolveTimeout.Std())
		defer cancel()

		addrs, err := s.resolver.LookupIPAddr(rctx, host)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrResolveFailed, host, err)
		}

		for _, a := range addrs {
			if v4 := a.IP.To4(); v4 != nil {
				ip = v4.String()
				break
			}
		}

		if ip == "" {
			return nil, fmt.Errorf("%w: %s has no IPv4 address", ErrResolveFailed, host)
		}
	}

	return &models.DiscoveredDevice{
		ServiceName: e.Instance,
		Hostname:    hostnameFor(e),
		IPAddress:   ip,
		Port:        e.Port,
	}, nil
}

func firstIPv4(ips []net.IP) string {
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil && !v4.IsUnspecified() {
			return v4.String()
		}
	}

	return ""
}

// hostnameFor derives the device id from the instance name. The SRV target
// is not used because several instances may be served by one host.
func hostnameFor(e *Entry) string {
	return models.HostnameForServiceName(e.Instance)
}

// FindByHostname scans until a device whose host or service name matches
// hostname appears. It returns ErrDeviceNotFound when timeout elapses first.
func (s *Service) FindByHostname(ctx context.Context, hostname string, timeout time.Duration) (*models.DiscoveredDevice, error) {
	want := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(hostname), "."))
	if want == "" {
		return nil, fmt.Errorf("%w: empty hostname", ErrDeviceNotFound)
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scan := s.Discover(scanCtx)
	defer scan.Stop()

	for dev := range scan.Devices() {
		if sameHost(dev, want) {
			s.logger.Info().Str("hostname", dev.Hostname).Str("ip", dev.IPAddress).Msg("Found device")

			return dev, nil
		}
	}

	if err := scan.Err(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, hostname)
}

func sameHost(dev *models.DiscoveredDevice, want string) bool {
	host := strings.ToLower(dev.Hostname)

	return host == want ||
		host == want+models.LocalSuffix ||
		strings.EqualFold(dev.ServiceName, want) ||
		strings.EqualFold(dev.ServiceName+models.LocalSuffix, want)
}
