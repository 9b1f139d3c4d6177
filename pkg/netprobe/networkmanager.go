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
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/carverauto/aqualevel/pkg/logger"
)

const (
	nmService        = "org.freedesktop.NetworkManager"
	nmPath           = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmInterface      = "org.freedesktop.NetworkManager"
	nmActiveIface    = "org.freedesktop.NetworkManager.Connection.Active"
	nmAccessPoint    = "org.freedesktop.NetworkManager.AccessPoint"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"
	wirelessConnType = "802-11-wireless"
)

// NetworkManagerSource reads the SSID from NetworkManager on the system bus.
type NetworkManagerSource struct {
	conn   *dbus.Conn
	logger logger.Logger
}

func NewNetworkManagerSource(log logger.Logger) (*NetworkManagerSource, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	return &NetworkManagerSource{conn: conn, logger: log}, nil
}

func (s *NetworkManagerSource) Close() error {
	return s.conn.Close()
}

func (s *NetworkManagerSource) property(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant

	err := s.conn.Object(nmService, path).CallWithContext(ctx, propertiesGet, 0, iface, name).Store(&v)
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("get %s.%s: %w", iface, name, err)
	}

	return v, nil
}

func (s *NetworkManagerSource) objectPath(ctx context.Context, path dbus.ObjectPath, iface, name string) (dbus.ObjectPath, error) {
	v, err := s.property(ctx, path, iface, name)
	if err != nil {
		return "", err
	}

	p, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("%w: %s is %s", errUnexpectedValue, name, v.Signature())
	}

	return p, nil
}

// SSID follows the primary connection to its access point. When the primary
// connection is not wireless the other active connections are tried.
func (s *NetworkManagerSource) SSID(ctx context.Context) (string, error) {
	primary, err := s.objectPath(ctx, nmPath, nmInterface, "PrimaryConnection")
	if err != nil {
		return "", err
	}

	if ssid, err := s.wirelessSSID(ctx, primary); err == nil {
		return ssid, nil
	}

	v, err := s.property(ctx, nmPath, nmInterface, "ActiveConnections")
	if err != nil {
		return "", err
	}

	active, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return "", fmt.Errorf("%w: ActiveConnections is %s", errUnexpectedValue, v.Signature())
	}

	for _, conn := range active {
		if conn == primary {
			continue
		}

		if ssid, err := s.wirelessSSID(ctx, conn); err == nil {
			return ssid, nil
		}
	}

	return "", ErrNoWiFi
}

func (s *NetworkManagerSource) wirelessSSID(ctx context.Context, active dbus.ObjectPath) (string, error) {
	if !active.IsValid() || active == "/" {
		return "", ErrNoWiFi
	}

	v, err := s.property(ctx, active, nmActiveIface, "Type")
	if err != nil {
		return "", err
	}

	if kind, _ := v.Value().(string); kind != wirelessConnType {
		return "", ErrNoWiFi
	}

	ap, err := s.objectPath(ctx, active, nmActiveIface, "SpecificObject")
	if err != nil {
		return "", err
	}

	if ap == "/" {
		return "", ErrNoWiFi
	}

	v, err = s.property(ctx, ap, nmAccessPoint, "Ssid")
	if err != nil {
		return "", err
	}

	raw, ok := v.Value().([]byte)
	if !ok {
		return "", fmt.Errorf("%w: Ssid is %s", errUnexpectedValue, v.Signature())
	}

	return string(raw), nil
}

// Subscribe forwards NetworkManager StateChanged signals until ctx ends.
func (s *NetworkManagerSource) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(nmPath),
		dbus.WithMatchInterface(nmInterface),
		dbus.WithMatchMember("StateChanged"),
	}

	if err := s.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return nil, fmt.Errorf("subscribe to NetworkManager: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	s.conn.Signal(signals)

	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		defer func() {
			s.conn.RemoveSignal(signals)

			if err := s.conn.RemoveMatchSignal(opts...); err != nil {
				s.logger.Debug().Err(err).Msg("Failed to remove D-Bus match")
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}

				if sig.Name != nmInterface+".StateChanged" {
					continue
				}

				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}
