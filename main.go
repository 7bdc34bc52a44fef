// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Opilio - host tool for Opilio water-cooling controllers
//
// Reads sensors, manages fan and pump curves, keeps the controller awake
// and bridges it over WebSocket.

package main

import (
	"os"

	"github.com/Thermoquad/opilio/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
