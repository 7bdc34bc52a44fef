// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/opilio/pkg/otw"
)

func customConfig() otw.Config {
	cfg := otw.DefaultConfig()
	cfg.General.SleepAfter = 120
	cfg.General.Buzzer = otw.SwitchOn
	cfg.SmartMode.UpperTemp = 42.5
	cfg.Set(otw.FanSetting{ID: otw.Fan2, Curve: otw.Curve{
		otw.Point(22, 15), otw.Point(28.5, 35), otw.Point(33, 60), otw.Point(38, 100),
	}})
	return cfg
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, name := range []string{"opilio.toml", "opilio.yaml", "opilio.yml", "opilio.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := customConfig()

			require.NoError(t, Save(path, want))
			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSaveLoad_SmartModeOff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opilio.toml")
	want := otw.DefaultConfig()
	want.DisableSmartMode()

	require.NoError(t, Save(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "smart_mode")

	got, err := Load(path)
	require.NoError(t, err)
	assert.False(t, got.SmartModeEnabled())
	assert.Equal(t, want, got)
}

func TestMarshal_TextIDs(t *testing.T) {
	for _, f := range []Format{FormatTOML, FormatYAML, FormatJSON} {
		data, err := Marshal(otw.DefaultConfig(), f)
		require.NoError(t, err, f.String())
		text := string(data)
		assert.True(t, strings.Contains(text, "pump"), "%s output lacks channel names:\n%s", f, text)
		assert.True(t, strings.Contains(text, "sleep_after"), "%s output lacks snake_case keys:\n%s", f, text)
		assert.True(t, strings.Contains(text, "off"), "%s output lacks switch text:\n%s", f, text)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "opilio.ini"))
	assert.True(t, errors.Is(err, ErrUnknownFormat))

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"general":{"sleep_after":60},"colour":"red"}`), 0o644))
	_, err = Load(bad)
	assert.Error(t, err, "unknown fields must be rejected")

	badID := filepath.Join(dir, "badid.yaml")
	require.NoError(t, os.WriteFile(badID, []byte("settings:\n  - id: fan7\n"), 0o644))
	_, err = Load(badID)
	assert.Error(t, err)
}

func curveJSON(points int) string {
	pts := make([]string, points)
	for i := range pts {
		pts[i] = fmt.Sprintf(`{"temp":%d,"duty":%d}`, 20+5*i, 20*(i+1))
	}
	return "[" + strings.Join(pts, ",") + "]"
}

func curveTOML(points int) string {
	pts := make([]string, points)
	for i := range pts {
		pts[i] = fmt.Sprintf("{temp = %d, duty = %d}", 20+5*i, 20*(i+1))
	}
	return "[" + strings.Join(pts, ", ") + "]"
}

func TestUnmarshal_CurveLength(t *testing.T) {
	for _, n := range []int{0, 3, 5} {
		t.Run(fmt.Sprintf("%d points", n), func(t *testing.T) {
			js := fmt.Sprintf(`{"general":{"sleep_after":60,"led":"off","buzzer":"off"},"settings":[{"id":"pump","curve":%s}]}`, curveJSON(n))
			_, err := Unmarshal([]byte(js), FormatJSON)
			assert.ErrorContains(t, err, "points", "json")

			tm := fmt.Sprintf("[general]\nsleep_after = 60\nled = \"off\"\nbuzzer = \"off\"\n\n[[settings]]\nid = \"pump\"\ncurve = %s\n", curveTOML(n))
			_, err = Unmarshal([]byte(tm), FormatTOML)
			assert.ErrorContains(t, err, "points", "toml")
		})
	}

	js := fmt.Sprintf(`{"general":{"sleep_after":60,"led":"off","buzzer":"off"},"settings":[{"id":"pump","curve":%s}]}`, curveJSON(otw.CurvePoints))
	cfg, err := Unmarshal([]byte(js), FormatJSON)
	require.NoError(t, err)
	pump, ok := cfg.Get(otw.FanPump)
	require.True(t, ok)
	assert.Equal(t, otw.Point(35, 80), pump.Curve[3])
}

func TestLoad_DuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.json")
	c := curveJSON(otw.CurvePoints)
	js := fmt.Sprintf(`{"general":{"sleep_after":60,"led":"off","buzzer":"off"},"settings":[{"id":"pump","curve":%s},{"id":"pump","curve":%s}]}`, c, c)
	require.NoError(t, os.WriteFile(path, []byte(js), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "duplicate fan id pump")
}

func TestSave_UnknownFormat(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "opilio.conf"), otw.DefaultConfig())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, DefaultFile, filepath.Base(path))
	assert.Equal(t, "opilio", filepath.Base(filepath.Dir(path)))
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"toml": FormatTOML,
		"YAML": FormatYAML,
		"yml":  FormatYAML,
		"json": FormatJSON,
	} {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseFormat("ini")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
