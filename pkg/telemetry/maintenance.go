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

package telemetry

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// PruneHistory drops history rows older than HistoryRetention for every device.
func (s *Service) PruneHistory(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-HistoryRetention)

	n, err := s.dir.PruneAllReadings(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("prune history: %w", err)
	}

	s.metrics.HistoryPruned(n)

	if n > 0 {
		s.logger.Info().Int("rows", n).Time("cutoff", cutoff).Msg("Pruned history")
	}

	return n, nil
}

// StartMaintenance runs PruneHistory on schedule until ctx ends. schedule is a
// standard cron expression or descriptor such as "@hourly".
func (s *Service) StartMaintenance(ctx context.Context, schedule string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		if _, err := s.PruneHistory(ctx); err != nil {
			s.logger.Error().Err(err).Msg("History maintenance failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}

	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.logger.Debug().Msg("History maintenance stopped")
	}()

	return c, nil
}
