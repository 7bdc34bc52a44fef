// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/opilio/internal/store"
	"github.com/Thermoquad/opilio/internal/transport"
)

// passwordEnv holds the WebSocket password
const passwordEnv = "OPILIO_PASSWORD"

// GetPassword retrieves password from settings, environment or prompts user
func GetPassword() (string, error) {
	if cfg != nil && cfg.Remote.Password != "" {
		return cfg.Remote.Password, nil
	}
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// newDialer picks a WebSocket dialer when --url is set, serial otherwise
func newDialer() (transport.Dialer, error) {
	if cfg.Remote.URL != "" {
		password := ""
		if cfg.Remote.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, err
			}
		}
		return transport.WebSocketDialer(cfg.Remote.URL, cfg.Remote.Username, password, cfg.Remote.NoSSLVerify), nil
	}
	return transport.SerialDialer(cfg.Serial.Port, cfg.Serial.Baud), nil
}

// newClient builds a device client from the loaded settings. The connection
// is opened lazily by the first exchange.
func newClient(opts ...transport.Option) (*transport.Client, error) {
	dial, err := newDialer()
	if err != nil {
		return nil, err
	}
	base := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithLogger(logger),
	}
	return transport.NewClient(dial, append(base, opts...)...), nil
}

// deviceConfigPath resolves --device-config, falling back to the default
func deviceConfigPath() (string, error) {
	if cfg != nil && cfg.DeviceConfig != "" {
		return cfg.DeviceConfig, nil
	}
	return store.DefaultPath()
}
