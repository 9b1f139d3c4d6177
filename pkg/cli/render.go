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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/carverauto/aqualevel/pkg/models"
	"github.com/carverauto/aqualevel/pkg/preferences"
)

const gaugeWidth = 30

func (a *App) infof(format string, args ...interface{}) {
	fmt.Fprintln(a.out, a.log.info.Render(fmt.Sprintf(format, args...)))
}

func (a *App) successf(format string, args ...interface{}) {
	fmt.Fprintln(a.out, a.log.success.Render(fmt.Sprintf(format, args...)))
}

func (a *App) warnf(format string, args ...interface{}) {
	fmt.Fprintln(a.out, a.log.warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf renders a command failure.
func (a *App) Errorf(format string, args ...interface{}) {
	fmt.Fprintln(a.out, a.log.error.Render(fmt.Sprintf(format, args...)))
}

func (a *App) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func (a *App) field(label, value string) {
	fmt.Fprintln(a.out, a.view.label.Render(label)+a.view.value.Render(value))
}

func (a *App) table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(a.view.border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return a.view.title.Padding(0, 1)
			}

			return a.view.value.Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)

	fmt.Fprintln(a.out, t.String())
}

func percent(v float64) string {
	return humanize.FtoaWithDigits(v, 1) + "%"
}

func litres(v float64) string {
	return humanize.Commaf(float64(int64(v*10))/10) + " L"
}

func centimetres(v float64) string {
	return humanize.FtoaWithDigits(v, 1) + " cm"
}

func optPercent(v *float64) string {
	if v == nil {
		return "-"
	}

	return percent(*v)
}

func optLitres(v *float64) string {
	if v == nil {
		return "-"
	}

	return litres(*v)
}

func seen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return humanize.Time(t)
}

// gauge draws a horizontal fill bar colored by the alert thresholds.
func (a *App) gauge(pct float64, low, high int) string {
	clamped := pct
	if clamped < 0 {
		clamped = 0
	} else if clamped > 100 {
		clamped = 100
	}

	filled := int(clamped / 100 * gaugeWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)

	style := a.view.ok

	switch {
	case low > 0 && pct <= float64(low):
		style = a.view.low
	case high > 0 && pct >= float64(high):
		style = a.view.high
	}

	return style.Render(bar) + " " + a.view.value.Render(percent(pct))
}

func (a *App) renderDevices(devices []*models.Device, current string) {
	if len(devices) == 0 {
		a.warnf("No devices yet. Run 'aqualevel discover -save' to find some.")
		return
	}

	rows := make([][]string, 0, len(devices))

	for _, d := range devices {
		mark := ""
		if d.ID == current {
			mark = "▶"
		}

		if d.IsFavorite {
			mark += "★"
		}

		rows = append(rows, []string{
			mark, d.DisplayName(), d.ID, d.IPAddress,
			optPercent(d.LastPercentage), optLitres(d.LastVolume), seen(d.LastSeen),
		})
	}

	a.table([]string{"", "Name", "ID", "Address", "Level", "Volume", "Last seen"}, rows)
}

func (a *App) renderTank(dev *models.Device, data *models.TankData) {
	fmt.Fprintln(a.out, a.view.title.Render(dev.DisplayName())+" "+a.view.muted.Render(dev.ID))
	fmt.Fprintln(a.out, a.gauge(data.Percentage, data.AlertLevelLow, data.AlertLevelHigh))
	a.field("Volume", litres(data.Volume)+a.view.muted.Render(" of "+litres(data.TankVolume)))
	a.field("Water level", centimetres(data.WaterLevel))
	a.field("Distance", centimetres(data.Distance))
	a.field("Tank", centimetres(data.TankHeight)+" × "+centimetres(data.TankDiameter))

	alerts := a.view.muted.Render("disabled")
	if data.AlertsEnabled {
		alerts = fmt.Sprintf("low %d%%, high %d%%", data.AlertLevelLow, data.AlertLevelHigh)
	}

	a.field("Alerts", alerts)
}

func (a *App) renderSettings(dev *models.Device, s *models.DeviceSettings) {
	fmt.Fprintln(a.out, a.view.title.Render(dev.DisplayName()+" settings"))
	a.field("Height", centimetres(s.TankHeight))
	a.field("Diameter", centimetres(s.TankDiameter))
	a.field("Volume", litres(s.TankVolume))
	a.field("Offset", centimetres(s.SensorOffset))
	a.field("Empty at", centimetres(s.EmptyDistance))
	a.field("Full at", centimetres(s.FullDistance))
	a.field("Interval", (time.Duration(s.MeasurementInterval) * time.Second).String())
	a.field("Smoothing", fmt.Sprintf("%d readings", s.ReadingSmoothing))
	a.field("Alert low", fmt.Sprintf("%d%%", s.AlertLevelLow))
	a.field("Alert high", fmt.Sprintf("%d%%", s.AlertLevelHigh))
	a.field("Alerts", fmt.Sprintf("%t", s.AlertsEnabled))
}

func (a *App) renderNetworks(networks []models.WiFiNetwork) {
	if len(networks) == 0 {
		a.warnf("The device found no networks.")
		return
	}

	rows := make([][]string, 0, len(networks))

	for _, n := range networks {
		lock := ""
		if n.Secure {
			lock = "🔒"
		}

		bars := strings.Repeat("▮", n.SignalStrength()) + strings.Repeat("▯", 4-n.SignalStrength())
		rows = append(rows, []string{n.SSID, bars, fmt.Sprintf("%d dBm", n.RSSI), lock})
	}

	a.table([]string{"SSID", "Signal", "RSSI", ""}, rows)
}

func (a *App) renderHistory(dev *models.Device, rows []*models.WaterLevelHistory, stats models.HistoryStats) {
	fmt.Fprintln(a.out, a.view.title.Render(dev.DisplayName()+" history"))

	if stats.Count == 0 {
		a.warnf("No readings in this period.")
		return
	}

	a.field("Readings", humanize.Comma(int64(stats.Count)))
	a.field("Average", percent(stats.Average))
	a.field("Range", percent(stats.Min)+" – "+percent(stats.Max))

	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Timestamp.Local().Format("Jan 2 15:04"), humanize.Time(r.Timestamp),
			percent(r.Percentage), litres(r.Volume), centimetres(r.WaterLevel),
		})
	}

	a.table([]string{"Time", "", "Level", "Volume", "Water"}, out)
}

func (a *App) renderPrefs(p preferences.Snapshot) {
	last := p.LastUsedDevice
	if last == "" {
		last = a.view.muted.Render("none")
	}

	a.field(preferences.KeyLastUsedDevice, last)
	a.field(preferences.KeyRefreshInterval, p.RefreshInterval.String())
	a.field(preferences.KeyNotificationsEnabled, fmt.Sprintf("%t", p.NotificationsEnabled))
	a.field(preferences.KeyDarkMode, p.DarkMode)
	a.field(preferences.KeyFirstTimeLaunch, fmt.Sprintf("%t", p.FirstTimeLaunch))
	a.field(preferences.KeyOnboardingCompleted, fmt.Sprintf("%t", p.OnboardingCompleted))
}
