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

// Command aqualevel-sim serves a simulated AquaLevel device and advertises it over mDNS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/carverauto/aqualevel/pkg/devicesim"
	"github.com/carverauto/aqualevel/pkg/discovery"
	aqhttp "github.com/carverauto/aqualevel/pkg/http"
	"github.com/carverauto/aqualevel/pkg/lifecycle"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
	"github.com/carverauto/aqualevel/pkg/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	listen := flag.String("listen", ":8080", "address to serve the device API on")
	name := flag.String("name", "Kitchen", "device name")
	distance := flag.Float64("distance", 110, "initial sensor distance in cm")
	advertise := flag.Bool("advertise", true, "advertise the device over mDNS")
	flag.Parse()

	simLogger, err := lifecycle.CreateComponentLogger("aqualevel-sim", logger.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := lifecycle.SignalContext(context.Background(), simLogger)
	defer cancel()

	sim := devicesim.New(devicesim.WithLogger(simLogger), devicesim.WithDistance(*distance))

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", *listen, err)
	}

	srv := &http.Server{
		Handler:           sim.Handler(aqhttp.CORSConfig{AllowedOrigins: []string{"*"}}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if *advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		instance := strings.TrimSuffix(models.HostnameForDeviceName(*name), models.LocalSuffix)

		txt := []string{"name=" + *name, "version=" + version.GetVersion()}

		ad, err := discovery.Advertise(instance, "_http._tcp", "local.", port, txt, simLogger)
		if err != nil {
			_ = ln.Close()

			return err
		}

		defer ad.Shutdown()
	}

	errCh := make(chan error, 1)

	go func() {
		simLogger.Info().Str("addr", ln.Addr().String()).Str("name", *name).Msg("Simulated device listening")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
