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

// Package deviceclient talks to the HTTP API served by AquaLevel firmware.
package deviceclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/metrics"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Options configures a Client. Zero values take the defaults.
type Options struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         logger.Logger
	Metrics        *metrics.Metrics
}

// Client issues requests against whatever target its provider reports at
// call time. It holds no target state of its own.
type Client struct {
	provider TargetProvider
	http     *http.Client
	logger   logger.Logger
	metrics  *metrics.Metrics
}

func NewClient(provider TargetProvider, opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	if opts.Logger == nil {
		opts.Logger = logger.NewTestLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
		transport := &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: opts.RequestTimeout,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       30 * time.Second,
		}

		httpClient = &http.Client{Transport: transport, Timeout: opts.RequestTimeout}
	}

	return &Client{
		provider: provider,
		http:     httpClient,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Bound snapshots the provider's current target. It performs no I/O and
// returns an *Error of kind ErrNotConfigured when nothing is bound.
func (c *Client) Bound() (*Endpoint, error) {
	if c.provider == nil {
		return nil, notConfigured()
	}

	target, ok := c.provider.Target()
	if !ok || target.BaseURL == "" {
		return nil, notConfigured()
	}

	return c.Endpoint(target), nil
}

// Endpoint returns an endpoint pinned to target regardless of what the provider reports.
func (c *Client) Endpoint(target Target) *Endpoint {
	return &Endpoint{client: c, target: target}
}

// Probe checks liveness by fetching tank data from target.
func (c *Client) Probe(ctx context.Context, target Target) error {
	if target.BaseURL == "" {
		return notConfigured()
	}

	_, err := c.Endpoint(target).TankData(ctx)

	return err
}
