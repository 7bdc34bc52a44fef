// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store persists device configurations on the host as TOML, YAML
// or JSON, chosen by file extension.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/opilio/pkg/otw"
)

// Format is an on-disk encoding
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ErrUnknownFormat is returned for paths without a supported extension
var ErrUnknownFormat = errors.New("unsupported config file extension (use .toml, .yaml, .yml or .json)")

// DefaultFile is the file name used under the user config directory
const DefaultFile = "opilio.toml"

// DefaultPath returns <user config dir>/opilio/opilio.toml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(dir, "opilio", DefaultFile), nil
}

// FormatOf picks the encoding for path from its extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// ParseFormat maps a format name (toml, yaml, yml or json) to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("%q: %w", name, ErrUnknownFormat)
}

// Marshal encodes cfg in format f
func Marshal(cfg otw.Config, f Format) ([]byte, error) {
	switch f {
	case FormatTOML:
		return toml.Marshal(cfg)
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
	return nil, ErrUnknownFormat
}

// fileSetting mirrors otw.FanSetting with a slice curve, so a file with the
// wrong number of points is caught instead of truncated or zero-filled
type fileSetting struct {
	ID    otw.FanID        `json:"id" toml:"id" yaml:"id"`
	Curve []otw.CurvePoint `json:"curve" toml:"curve" yaml:"curve"`
}

type fileConfig struct {
	General   otw.GeneralConfig `json:"general" toml:"general" yaml:"general"`
	SmartMode *otw.SmartMode    `json:"smart_mode,omitempty" toml:"smart_mode,omitempty" yaml:"smart_mode,omitempty"`
	Settings  []fileSetting     `json:"settings" toml:"settings" yaml:"settings"`
}

func (fc fileConfig) config() (otw.Config, error) {
	cfg := otw.Config{General: fc.General, SmartMode: fc.SmartMode}
	if fc.Settings != nil {
		cfg.Settings = make([]otw.FanSetting, 0, len(fc.Settings))
	}
	for i, s := range fc.Settings {
		curve, err := otw.NewCurve(s.Curve)
		if err != nil {
			return otw.Config{}, fmt.Errorf("settings[%d] (%s): %w", i, s.ID, err)
		}
		cfg.Settings = append(cfg.Settings, otw.FanSetting{ID: s.ID, Curve: curve})
	}
	if err := cfg.CheckSettings(); err != nil {
		return otw.Config{}, err
	}
	return cfg, nil
}

// Unmarshal decodes data in format f. Unknown fields, curves without
// exactly otw.CurvePoints points and repeated channel ids are rejected.
func Unmarshal(data []byte, f Format) (otw.Config, error) {
	var fc fileConfig
	var err error

	switch f {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&fc)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&fc)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&fc)
	default:
		err = ErrUnknownFormat
	}
	if err != nil {
		return otw.Config{}, err
	}
	return fc.config()
}

// Load reads the configuration stored at path
func Load(path string) (otw.Config, error) {
	f, err := FormatOf(path)
	if err != nil {
		return otw.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return otw.Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := Unmarshal(data, f)
	if err != nil {
		return otw.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed
func Save(path string, cfg otw.Config) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := Marshal(cfg, f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
