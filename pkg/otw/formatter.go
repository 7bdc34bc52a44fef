// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f Frame) string {
	result := fmt.Sprintf("%s (0x%02X)\n", f.Msg, uint8(f.Msg))
	result += FormatData(f.Data)
	return result
}

// FormatData formats a payload, one indented line per group of fields
func FormatData(d Data) string {
	switch v := d.(type) {
	case nil, Empty:
		return ""
	case Pong:
		return fmt.Sprintf("  uptime=%s\n", FormatUptime(uint32(v)))
	case Response:
		return fmt.Sprintf("  result=%s\n", v)
	case Stats:
		return FormatStats(v)
	case Config:
		return FormatConfig(&v)
	}
	return fmt.Sprintf("  %v\n", d)
}

// FormatStats formats a sensor snapshot
func FormatStats(s Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  pump=%.0frpm fan1=%.0frpm fan2=%.0frpm fan3=%.0frpm\n",
		s.Pump1RPM, s.Fan1RPM, s.Fan2RPM, s.Fan3RPM)
	fmt.Fprintf(&b, "  liquid_in=%.1f°C liquid_out=%.1f°C ambient=%.1f°C\n",
		s.LiquidTemp, s.LiquidOutTemp, s.AmbientTemp)
	return b.String()
}

// FormatConfig formats a configuration
func FormatConfig(c *Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  sleep_after=%ds led=%s buzzer=%s\n", c.General.SleepAfter, c.General.LED, c.General.Buzzer)
	if c.SmartMode != nil {
		fmt.Fprintf(&b, "  smart_mode=on trigger=+%.1f°C upper=%.1f°C pump=%.1f%%\n",
			c.SmartMode.TriggerAboveAmbient, c.SmartMode.UpperTemp, c.SmartMode.PumpDuty)
	} else {
		b.WriteString("  smart_mode=off\n")
	}
	for _, s := range c.Settings {
		fmt.Fprintf(&b, "  %-4s %s\n", s.ID, FormatCurve(s.Curve))
	}
	return b.String()
}

// FormatCurve formats curve points as temp:duty pairs
func FormatCurve(c Curve) string {
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = fmt.Sprintf("%.1f°C:%.0f%%", p.Temp, p.Duty)
	}
	return strings.Join(parts, " ")
}

// FormatUptime formats seconds as a compact duration
func FormatUptime(seconds uint32) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
