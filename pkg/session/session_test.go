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

package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/aqualevel/pkg/deviceclient"
	"github.com/carverauto/aqualevel/pkg/devicesim"
	"github.com/carverauto/aqualevel/pkg/directory"
	"github.com/carverauto/aqualevel/pkg/kv"
	"github.com/carverauto/aqualevel/pkg/logger"
	"github.com/carverauto/aqualevel/pkg/models"
	"github.com/carverauto/aqualevel/pkg/preferences"
	"github.com/carverauto/aqualevel/pkg/storage"
)

func device(id, ip string) *models.Device {
	return models.NewDevice(id, "Kitchen", ip, time.Now())
}

func TestSelectCurrentBindsAndPersists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := NewMockDirectory(ctrl)
	prefs := NewMockPreferences(ctrl)

	dir.EXPECT().Get(gomock.Any(), "dev-1").Return(device("dev-1", "192.168.1.50"), nil)
	prefs.EXPECT().SetLastUsedDevice(gomock.Any(), "dev-1").Return(nil)

	s := New(dir, prefs, nil, logger.NewTestLogger())

	require.NoError(t, s.SelectCurrent(context.Background(), "dev-1"))

	id, ok := s.CurrentDeviceID()
	assert.True(t, ok)
	assert.Equal(t, "dev-1", id)

	target, ok := s.Target()
	require.True(t, ok)
	assert.Equal(t, "http://192.168.1.50/", target.BaseURL)
	assert.Equal(t, "dev-1", target.DeviceID)
	assert.True(t, s.IsCurrent(target))
}

func TestSelectUnknownDeviceHasNoSideEffects(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := NewMockDirectory(ctrl)
	prefs := NewMockPreferences(ctrl)

	dir.EXPECT().Get(gomock.Any(), "ghost").Return(nil, directory.ErrDeviceNotFound)

	s := New(dir, prefs, nil, logger.NewTestLogger())

	err := s.SelectCurrent(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, directory.ErrDeviceNotFound)

	_, ok := s.CurrentDeviceID()
	assert.False(t, ok)

	_, ok = s.Target()
	assert.False(t, ok)
}

func TestSelectKeepsBindingWhenPersistFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := NewMockDirectory(ctrl)
	prefs := NewMockPreferences(ctrl)

	dir.EXPECT().Get(gomock.Any(), "dev-1").Return(device("dev-1", "10.0.0.7"), nil)
	prefs.EXPECT().SetLastUsedDevice(gomock.Any(), "dev-1").Return(errors.New("disk full"))

	s := New(dir, prefs, nil, logger.NewTestLogger())

	require.NoError(t, s.SelectCurrent(context.Background(), "dev-1"))

	id, ok := s.CurrentDeviceID()
	assert.True(t, ok)
	assert.Equal(t, "dev-1", id)
}

func TestSelectDeviceWithoutAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := NewMockDirectory(ctrl)
	dir.EXPECT().Get(gomock.Any(), "dev-1").Return(device("dev-1", ""), nil)

	s := New(dir, NewMockPreferences(ctrl), nil, logger.NewTestLogger())

	assert.ErrorIs(t, s.SelectCurrent(context.Background(), "dev-1"), ErrNoAddress)
}

func TestRebindingAdvancesGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := NewMockDirectory(ctrl)
	prefs := NewMockPreferences(ctrl)

	dir.EXPECT().Get(gomock.Any(), "a").Return(device("a", "10.0.0.1"), nil)
	dir.EXPECT().Get(gomock.Any(), "b").Return(device("b", "10.0.0.2"), nil)
	prefs.EXPECT().SetLastUsedDevice(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	s := New(dir, prefs, nil, logger.NewTestLogger())

	require.NoError(t, s.SelectCurrent(context.Background(), "a"))
	first, _ := s.Target()

	require.NoError(t, s.SelectCurrent(context.Background(), "b"))
	second, _ := s.Target()

	assert.False(t, s.IsCurrent(first))
	assert.True(t, s.IsCurrent(second))
	assert.Greater(t, second.Generation, first.Generation)

	setup, err := s.BindSetupAccessPoint(models.SetupAccessPointAddress)
	require.NoError(t, err)
	assert.Empty(t, setup.DeviceID)
	assert.Equal(t, "http://192.168.4.1/", setup.BaseURL)
	assert.False(t, s.IsCurrent(second))

	_, ok := s.CurrentDeviceID()
	assert.False(t, ok)

	s.Clear()
	assert.False(t, s.IsCurrent(setup))

	_, err = s.BindSetupAccessPoint(" ")
	assert.Error(t, err)
}

func TestReconnectToLast(t *testing.T) {
	tests := []struct {
		name     string
		lastID   string
		hasLast  bool
		getErr   error
		probeErr error
		wantID   string
		wantOK   bool
	}{
		{name: "no last device", hasLast: false},
		{name: "last device deleted", lastID: "dev-1", hasLast: true, getErr: directory.ErrDeviceNotFound},
		{name: "device offline", lastID: "dev-1", hasLast: true, probeErr: errors.New("timeout")},
		{name: "device reachable", lastID: "dev-1", hasLast: true, wantID: "dev-1", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			dir := NewMockDirectory(ctrl)
			prefs := NewMockPreferences(ctrl)
			prober := NewMockProber(ctrl)

			prefs.EXPECT().LastUsedDevice(gomock.Any()).Return(tt.lastID, tt.hasLast)

			if tt.hasLast {
				if tt.getErr != nil {
					dir.EXPECT().Get(gomock.Any(), tt.lastID).Return(nil, tt.getErr)
				} else {
					dir.EXPECT().Get(gomock.Any(), tt.lastID).Return(device(tt.lastID, "10.0.0.9"), nil)
					prefs.EXPECT().SetLastUsedDevice(gomock.Any(), tt.lastID).Return(nil)
					prober.EXPECT().Probe(gomock.Any(), gomock.Any()).DoAndReturn(
						func(_ context.Context, target deviceclient.Target) error {
							assert.Equal(t, tt.lastID, target.DeviceID)
							return tt.probeErr
						})
				}
			}

			s := New(dir, prefs, prober, logger.NewTestLogger())

			id, ok := s.ReconnectToLast(context.Background())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestProbeDeviceUsesTargetItSelected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dir := NewMockDirectory(ctrl)
	prefs := NewMockPreferences(ctrl)
	prober := NewMockProber(ctrl)

	var s *Session

	dir.EXPECT().Get(gomock.Any(), "dev-1").Return(device("dev-1", "192.168.1.50"), nil)

	// A setup flow rebinds the session while the selection is being persisted.
	prefs.EXPECT().SetLastUsedDevice(gomock.Any(), "dev-1").DoAndReturn(
		func(context.Context, string) error {
			_, err := s.BindSetupAccessPoint(models.SetupAccessPointAddress)

			return err
		})

	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, target deviceclient.Target) error {
			assert.Equal(t, "dev-1", target.DeviceID)
			assert.Equal(t, "http://192.168.1.50/", target.BaseURL)

			return nil
		})

	s = New(dir, prefs, prober, logger.NewTestLogger())

	assert.True(t, s.ProbeDevice(context.Background(), "dev-1"))

	current, ok := s.Target()
	require.True(t, ok)
	assert.Equal(t, "http://192.168.4.1/", current.BaseURL)
}

func TestReconnectAgainstSimulatedDevice(t *testing.T) {
	ctx := context.Background()

	db, err := storage.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dir, err := directory.New(db, logger.NewTestLogger())
	require.NoError(t, err)

	backend, err := kv.NewBoltStore(db, preferences.Bucket)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	prefs := preferences.New(backend, logger.NewTestLogger())

	srv := httptest.NewServer(devicesim.New().Router())
	defer srv.Close()

	id, err := dir.UpsertFromDiscovery(ctx, &models.DiscoveredDevice{
		ServiceName: "aqualevel-garden",
		Hostname:    "aqualevel-garden.local",
		IPAddress:   strings.TrimPrefix(srv.URL, "http://"),
		Port:        80,
	}, "")
	require.NoError(t, err)
	require.NoError(t, prefs.SetLastUsedDevice(ctx, id))

	s := New(dir, prefs, nil, logger.NewTestLogger())
	s.prober = deviceclient.NewClient(s, deviceclient.Options{RequestTimeout: 2 * time.Second})

	got, ok := s.ReconnectToLast(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	srv.Close()

	_, ok = s.ReconnectToLast(ctx)
	assert.False(t, ok)
}
