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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/carverauto/aqualevel/pkg/config"
	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/directory"
	"github.com/carverauto/aqualevel/pkg/discovery"
	"github.com/carverauto/aqualevel/pkg/kv"
	"github.com/carverauto/aqualevel/pkg/lifecycle"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/metrics"
	"github.com/carverauto/aqualevel/pkg/netprobe"
	"github.com/carverauto/aqualevel/pkg/preferences"
	"github.com/carverauto/aqualevel/pkg/provisioning"
	"github.com/carverauto/aqualevel/pkg/session"
	"github.com/carverauto/aqualevel/pkg/storage"
	"github.com/carverauto/aqualevel/pkg/telemetry"
)

// App holds the services a command runs against.
type App struct {
	Config *config.AppConfig
	Logger logger.Logger

	Store       *storage.Store
	Directory   *directory.Directory
	Preferences *preferences.Store
	Session     *session.Session
	Client      *deviceclient.Client
	Discovery   *discovery.Service
	Network     *netprobe.Probe
	Telemetry   *telemetry.Service
	Provisioner *provisioning.Provisioner
	Metrics     *metrics.Metrics

	configPath string
	out        io.Writer
	json       bool
	log        logStyles
	view       viewStyles
	closers    []io.Closer
}

type appOptions struct {
	out         io.Writer
	source      netprobe.Source
	logger      logger.Logger
	discovery   []discovery.Option
	provisioner []provisioning.Option
}

// AppOption customizes NewApp.
type AppOption func(*appOptions)

// WithOutput redirects command output.
func WithOutput(w io.Writer) AppOption {
	return func(o *appOptions) { o.out = w }
}

// WithNetworkSource replaces the NetworkManager SSID source.
func WithNetworkSource(src netprobe.Source) AppOption {
	return func(o *appOptions) { o.source = src }
}

// WithLogger replaces the component logger built from config.
func WithLogger(log logger.Logger) AppOption {
	return func(o *appOptions) { o.logger = log }
}

// WithDiscoveryOptions passes options through to the discovery service.
func WithDiscoveryOptions(opts ...discovery.Option) AppOption {
	return func(o *appOptions) { o.discovery = append(o.discovery, opts...) }
}

// WithProvisioningOptions passes options through to the provisioner.
func WithProvisioningOptions(opts ...provisioning.Option) AppOption {
	return func(o *appOptions) { o.provisioner = append(o.provisioner, opts...) }
}

// NewApp loads configuration and opens the local database.
func NewApp(ctx context.Context, cmd *CmdConfig, opts ...AppOption) (*App, error) {
	o := &appOptions{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	bootLog := o.logger
	if bootLog == nil {
		bootLog = logger.NewTestLogger()
	}

	cfg, err := config.LoadApp(ctx, cmd.ConfigFile, bootLog)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := o.logger
	if log == nil {
		log, err = lifecycle.CreateComponentLogger("aqualevel", cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	app := &App{
		Config:     cfg,
		Logger:     log,
		configPath: cmd.ConfigFile,
		out:        o.out,
		json:       cmd.JSON,
		log:        newLogStyles(),
		view:       newViewStyles(),
	}

	if err := app.open(ctx, o); err != nil {
		_ = app.Close()

		return nil, err
	}

	return app, nil
}

func (a *App) open(ctx context.Context, o *appOptions) error {
	cfg := a.Config

	store, err := storage.Open(cfg.DataPath)
	if err != nil {
		return err
	}

	a.Store = store
	a.closers = append(a.closers, store)

	a.Directory, err = directory.New(store, a.Logger)
	if err != nil {
		return err
	}

	prefsKV, err := kv.NewBoltStore(store, preferences.Bucket)
	if err != nil {
		return err
	}

	a.closers = append([]io.Closer{prefsKV}, a.closers...)
	a.Preferences = preferences.New(prefsKV, a.Logger)
	a.Metrics = metrics.New(nil)

	// Probe takes an explicit target.
	prober := deviceclient.NewClient(nil, a.clientOptions())
	a.Session = session.New(a.Directory, a.Preferences, prober, a.Logger)
	a.Client = deviceclient.NewClient(a.Session, a.clientOptions())

	discoveryOpts := append([]discovery.Option{discovery.WithMetrics(a.Metrics)}, o.discovery...)
	a.Discovery = discovery.NewService(cfg.Discovery, a.Logger, discoveryOpts...)

	a.Network = netprobe.New(a.networkSource(o.source), a.Logger)

	a.Telemetry = a.newTelemetry()

	a.Provisioner = provisioning.New(a.Network, a.Session, a.Client, a.Discovery, a.Directory,
		cfg.Provisioning, a.Logger, o.provisioner...)

	return nil
}

func (a *App) newTelemetry(opts ...telemetry.Option) *telemetry.Service {
	base := []telemetry.Option{
		telemetry.WithMetrics(a.Metrics),
		telemetry.WithConcurrency(a.Config.Telemetry.Concurrency),
	}

	return telemetry.NewService(a.Client, a.Directory, a.Preferences, a.Logger, append(base, opts...)...)
}

func (a *App) clientOptions() deviceclient.Options {
	return deviceclient.Options{
		ConnectTimeout: a.Config.Client.ConnectTimeout.Std(),
		RequestTimeout: a.Config.Client.RequestTimeout.Std(),
		Logger:         a.Logger,
		Metrics:        a.Metrics,
	}
}

func (a *App) networkSource(src netprobe.Source) netprobe.Source {
	if src != nil {
		return src
	}

	if a.Config.SSIDOverride != "" {
		return netprobe.NewStaticSource(a.Config.SSIDOverride)
	}

	nm, err := netprobe.NewNetworkManagerSource(a.Logger)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("NetworkManager unavailable, WiFi detection disabled")

		return netprobe.NewStaticSource("")
	}

	a.closers = append([]io.Closer{nm}, a.closers...)

	return nm
}

// Close releases the database and D-Bus connection.
func (a *App) Close() error {
	var errs []error

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}
