// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/opilio/internal/bridge"
	"github.com/Thermoquad/opilio/internal/simulator"
	"github.com/Thermoquad/opilio/internal/store"
	"github.com/Thermoquad/opilio/pkg/otw"
)

// execute runs the root command with args and returns everything it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// simulatedDevice serves a simulator over a websocket bridge and returns
// the --url to reach it
func simulatedDevice(t *testing.T) (*simulator.Device, string) {
	t.Helper()
	dev := simulator.New()
	srv := httptest.NewServer(bridge.NewServer(dev))
	t.Cleanup(srv.Close)
	return dev, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// ============================================================================
// Device commands over a simulated bridge
// ============================================================================

func TestConfigGet_JSON(t *testing.T) {
	_, url := simulatedDevice(t)

	out, err := execute(t, "--url", url, "config", "get", "--format", "json")
	require.NoError(t, err)

	cfg, err := store.Unmarshal([]byte(out), store.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, otw.DefaultConfig(), cfg)
}

func TestConfigToggleSmart(t *testing.T) {
	dev, url := simulatedDevice(t)

	out, err := execute(t, "--url", url, "config", "toggle-smart", "--save=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Smart mode off")

	active := dev.ActiveConfig()
	assert.False(t, active.SmartModeEnabled())
	flash := dev.FlashConfig()
	assert.True(t, flash.SmartModeEnabled(), "toggle without --save must not persist")
}

func TestConfigSaveAndTest(t *testing.T) {
	dev, url := simulatedDevice(t)
	path := filepath.Join(t.TempDir(), "opilio.yaml")

	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)

	cfg, err := store.Load(path)
	require.NoError(t, err)
	cfg.General.LED = otw.SwitchOn
	require.NoError(t, store.Save(path, cfg))

	out, err := execute(t, "--url", url, "config", "save", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved")
	assert.Equal(t, otw.SwitchOn, dev.FlashConfig().General.LED)

	// A trial config is reverted to flash afterwards
	cfg.General.Buzzer = otw.SwitchOn
	require.NoError(t, store.Save(path, cfg))
	_, err = execute(t, "--url", url, "config", "test", path, "--duration", "10ms")
	require.NoError(t, err)
	assert.Equal(t, otw.SwitchOff, dev.ActiveConfig().General.Buzzer)
	assert.Equal(t, otw.SwitchOn, dev.ActiveConfig().General.LED)
}

func TestConfigReset(t *testing.T) {
	dev, url := simulatedDevice(t)

	_, err := execute(t, "--url", url, "config", "toggle-smart", "--save")
	require.NoError(t, err)
	flash := dev.FlashConfig()
	require.False(t, flash.SmartModeEnabled())

	_, err = execute(t, "--url", url, "config", "reset")
	require.NoError(t, err)
	assert.Equal(t, otw.DefaultConfig(), dev.FlashConfig())
	assert.Equal(t, otw.DefaultConfig(), dev.ActiveConfig())
}

func TestStats_JSON(t *testing.T) {
	_, url := simulatedDevice(t)

	out, err := execute(t, "--url", url, "stats", "--format", "json", "--watch", "0")
	require.NoError(t, err)

	var rec struct {
		Stats map[string]float64 `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Contains(t, rec.Stats, "pump1_rpm")
	assert.Contains(t, rec.Stats, "ambient_temp")
}

// ============================================================================
// Offline commands
// ============================================================================

func TestConfigInitValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "opilio.toml")

	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	out, err := execute(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	cfg := otw.DefaultConfig()
	cfg.General.SleepAfter = 1
	require.NoError(t, store.Save(path, cfg))
	_, err = execute(t, "config", "validate", path)
	assert.ErrorContains(t, err, "general.sleep_after")
}

func TestDutyCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opilio.json")
	require.NoError(t, store.Save(path, otw.DefaultConfig()))

	out, err := execute(t, "duty", "curve", path, "--channel", "pump", "--from", "25", "--to", "40", "--step", "5")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, lines[0], "pump")
	assert.Equal(t, []string{"25.0", "50"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"30.0", "65"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"40.0", "100"}, strings.Fields(lines[4]))
}

func TestDecode(t *testing.T) {
	frame := otw.MustEncode(otw.MsgResult, otw.ResponseError(otw.ErrFlashWrite))

	out, err := execute(t, "decode", hex.EncodeToString(frame))
	require.NoError(t, err)
	assert.Contains(t, out, "Result")
	assert.Contains(t, out, "FlashWrite")

	_, err = execute(t, "decode", "zz")
	assert.Error(t, err)
}
