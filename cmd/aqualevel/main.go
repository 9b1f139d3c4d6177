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

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/carverauto/aqualevel/pkg/cli"
	"github.com/carverauto/aqualevel/pkg/lifecycle"
	"github.com/carverauto/aqualevel/pkg/version"
)

var errCommandFailed = errors.New("command failed")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, err := cli.ParseFlags()
	if err != nil {
		cli.ShowHelp(os.Stderr)

		return err
	}

	if cfg.Version {
		fmt.Println("aqualevel", version.GetFullVersion())

		return nil
	}

	if cfg.Help {
		cli.ShowHelp(os.Stdout)

		return nil
	}

	// A missing .env is normal; only a malformed one is an error.
	if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", cfg.EnvFile, err)
	}

	app, err := cli.NewApp(context.Background(), cfg)
	if err != nil {
		return err
	}

	defer func() { _ = app.Close() }()

	ctx, cancel := lifecycle.SignalContext(context.Background(), app.Logger)
	defer cancel()

	if err := cli.Run(ctx, app, cfg); err != nil {
		app.Errorf("%s: %v", cfg.SubCmd, err)

		return errCommandFailed
	}

	return nil
}
