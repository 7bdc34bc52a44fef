// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoDevice is returned when no port matches the requested VID/PID
var ErrNoDevice = errors.New("no matching USB serial device found")

// PortInfo describes one serial port
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// Matches reports whether the port is a USB device with the given ids
func (p PortInfo) Matches(vid, pid uint16) bool {
	return p.IsUSB &&
		strings.EqualFold(p.VID, fmt.Sprintf("%04x", vid)) &&
		strings.EqualFold(p.PID, fmt.Sprintf("%04x", pid))
}

// ListPorts enumerates the serial ports on this host
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}

// FindPort returns the name of the first USB port with the given ids
func FindPort(vid, pid uint16) (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	return findPort(ports, vid, pid)
}

func findPort(ports []PortInfo, vid, pid uint16) (string, error) {
	for _, p := range ports {
		if p.Matches(vid, pid) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("vid %#06x pid %#06x: %w", vid, pid, ErrNoDevice)
}
