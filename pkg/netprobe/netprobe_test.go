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

package netprobe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/aqualevel/pkg/logger"
)

func TestSetupNetworkDetection(t *testing.T) {
	tests := []struct {
		name      string
		ssid      string
		wantSetup bool
		wantName  string
		wantOK    bool
	}{
		{name: "setup network", ssid: "AquaLevel-Kitchen-Setup", wantSetup: true, wantName: "Kitchen", wantOK: true},
		{name: "lowercase prefix", ssid: "aqualevel-garage-setup", wantSetup: true, wantName: "garage", wantOK: true},
		{name: "prefix without suffix", ssid: "AquaLevel-Shed", wantSetup: true},
		{name: "home network", ssid: "HomeNetwork"},
		{name: "no wifi", ssid: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(NewStaticSource(tt.ssid), logger.NewTestLogger())
			ctx := context.Background()

			assert.Equal(t, tt.wantSetup, p.IsOnDeviceSetupNetwork(ctx))

			name, ok := p.SetupDeviceName(ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestFailsClosed(t *testing.T) {
	src := NewStaticSource("AquaLevel-Kitchen-Setup")
	src.Fail(errors.New("org.freedesktop.DBus.Error.AccessDenied"))

	p := New(src, logger.NewTestLogger())

	_, ok := p.CurrentSSID(context.Background())
	assert.False(t, ok)
	assert.False(t, p.IsOnDeviceSetupNetwork(context.Background()))

	_, ok = p.SetupDeviceName(context.Background())
	assert.False(t, ok)

	_, ok = New(nil, logger.NewTestLogger()).CurrentSSID(context.Background())
	assert.False(t, ok)
}

func TestChangesWithoutSource(t *testing.T) {
	p := New(nil, logger.NewTestLogger())

	assert.False(t, p.IsOnDeviceSetupNetwork(context.Background()))

	ch, err := p.Changes(context.Background())
	require.ErrorIs(t, err, ErrNoSource)
	assert.Nil(t, ch)
}

func next(t *testing.T, ch <-chan bool) bool {
	t.Helper()

	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	return false
}

func TestChanges(t *testing.T) {
	src := NewStaticSource("")
	p := New(src, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())

	changes, err := p.Changes(ctx)
	require.NoError(t, err)

	assert.False(t, next(t, changes))

	src.Set("HomeNetwork")
	assert.True(t, next(t, changes))

	src.Set("")
	assert.False(t, next(t, changes))

	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("changes not closed after cancel")
	}
}
