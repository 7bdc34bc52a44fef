// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package settings loads host-side settings for the opilio tools from
// command-line flags, an optional settings file and OPILIO_ environment
// variables, in that order of precedence.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable lookup
const EnvPrefix = "OPILIO"

// SerialConfig selects the local serial port
type SerialConfig struct {
	Port string `mapstructure:"port"` // empty: discover by VID/PID
	Baud int    `mapstructure:"baud"`
}

// RemoteConfig selects a websocket bridge instead of a local port
type RemoteConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify"`
}

// LumberjackConfig configures log file rotation
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"` // empty: no log file
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty: metrics disabled
	Path string `mapstructure:"path"`
}

// BridgeConfig configures the websocket bridge served by `opilio serve`
type BridgeConfig struct {
	Addr     string `mapstructure:"addr"`
	Path     string `mapstructure:"path"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Settings is the complete host configuration
type Settings struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Timeout time.Duration `mapstructure:"timeout"`
	// DeviceConfig is the path of the persisted device configuration
	DeviceConfig string        `mapstructure:"deviceConfig"`
	Logging      LoggingConfig `mapstructure:"logging"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
	Bridge       BridgeConfig  `mapstructure:"bridge"`
}

// flagKeys maps command-line flag names to settings keys
var flagKeys = map[string]string{
	"port":          "serial.port",
	"baud":          "serial.baud",
	"url":           "remote.url",
	"username":      "remote.username",
	"no-ssl-verify": "remote.noSSLVerify",
	"timeout":       "timeout",
	"device-config": "deviceConfig",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"log-file":      "logging.file.filename",
	"metrics-addr":  "metrics.addr",
	"listen":        "bridge.addr",
}

// Load reads settings from path (yaml, toml or json; empty to skip), the
// environment and flags. Flags that were not set on the command line do not
// override file or environment values.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read settings: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if s.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.username", "")
	v.SetDefault("remote.password", "")
	v.SetDefault("remote.noSSLVerify", false)

	v.SetDefault("timeout", "1s")
	v.SetDefault("deviceConfig", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("bridge.addr", ":8080")
	v.SetDefault("bridge.path", "/ws")
	v.SetDefault("bridge.username", "")
	v.SetDefault("bridge.password", "")
}
