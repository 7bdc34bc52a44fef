// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/opilio/internal/store"
	"github.com/Thermoquad/opilio/pkg/otw"
)

var (
	dutyFrom    float32
	dutyTo      float32
	dutyStep    float32
	dutyMax     uint16
	dutyChannel string

	smartAmbient float32
	smartTrigger float32
	smartUpper   float32
)

var dutyCmd = &cobra.Command{
	Use:   "duty",
	Short: "Evaluate fan curves and smart mode offline",
	Long: `Print the duty the controller would apply over a range of liquid
temperatures, without talking to the controller.`,
}

var dutyCurveCmd = &cobra.Command{
	Use:   "curve [file]",
	Short: "Tabulate the curves of a configuration file",
	Long: `Tabulate the duty of each channel's curve over --from..--to in steps of
--step. Curves come from the configuration file (default location when
omitted); --channel limits the table to one channel.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDutyCurve,
}

var dutySmartCmd = &cobra.Command{
	Use:   "smart",
	Short: "Tabulate smart mode duty for a given ambient temperature",
	Long: `Tabulate smart mode fan duty while the liquid temperature rises from
--from to --to and falls back again. The fall shows the hysteresis band: a
running fan keeps turning until the liquid is 1°C below the trigger.`,
	Args: cobra.NoArgs,
	RunE: runDutySmart,
}

func init() {
	rootCmd.AddCommand(dutyCmd)
	dutyCmd.AddCommand(dutyCurveCmd, dutySmartCmd)

	smart := otw.DefaultSmartMode()
	pf := dutyCmd.PersistentFlags()
	pf.Float32Var(&dutyFrom, "from", 20, "First liquid temperature (°C)")
	pf.Float32Var(&dutyTo, "to", 45, "Last liquid temperature (°C)")
	pf.Float32Var(&dutyStep, "step", 1, "Temperature step (°C)")
	pf.Uint16Var(&dutyMax, "max-duty", 100, "Duty value for 100%")

	dutyCurveCmd.Flags().StringVarP(&dutyChannel, "channel", "c", "", "Only this channel (pump, fan1, fan2, fan3)")

	dutySmartCmd.Flags().Float32Var(&smartAmbient, "ambient", otw.FallbackAmbientTemp, "Ambient temperature (°C)")
	dutySmartCmd.Flags().Float32Var(&smartTrigger, "trigger", smart.TriggerAboveAmbient, "Trigger above ambient (°C)")
	dutySmartCmd.Flags().Float32Var(&smartUpper, "upper", smart.UpperTemp, "Temperature for full duty (°C)")
}

// temperatures returns from, from+step, ... up to and including to
func temperatures(from, to, step float32) ([]float32, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("--step must be positive")
	}
	if to < from {
		return nil, fmt.Errorf("--to (%.1f) is below --from (%.1f)", to, from)
	}
	var temps []float32
	for i := 0; ; i++ {
		t := from + float32(i)*step
		if t > to+step/1000 {
			break
		}
		temps = append(temps, t)
	}
	return temps, nil
}

func runDutyCurve(cmd *cobra.Command, args []string) error {
	temps, err := temperatures(dutyFrom, dutyTo, dutyStep)
	if err != nil {
		return err
	}

	path, err := configPath(args)
	if err != nil {
		return err
	}
	c, err := store.Load(path)
	if err != nil {
		return err
	}

	settings := c.Settings
	if dutyChannel != "" {
		id, err := otw.ParseFanID(dutyChannel)
		if err != nil {
			return err
		}
		s, ok := c.Get(id)
		if !ok {
			return fmt.Errorf("%s has no curve for %s", path, id)
		}
		settings = []otw.FanSetting{s}
	}
	for _, s := range settings {
		if !s.Curve.IsValid() {
			return fmt.Errorf("%s curve is not strictly increasing: %s", s.ID, otw.FormatCurve(s.Curve))
		}
	}

	writeCurveTable(cmd.OutOrStdout(), settings, temps, dutyMax)
	if c.SmartModeEnabled() {
		fmt.Fprintln(cmd.OutOrStdout(), "\nnote: smart mode is on in this file, the curves are not in effect")
	}
	return nil
}

func writeCurveTable(w io.Writer, settings []otw.FanSetting, temps []float32, maxDuty uint16) {
	var header strings.Builder
	header.WriteString("   °C")
	for _, s := range settings {
		fmt.Fprintf(&header, " %6s", s.ID)
	}
	fmt.Fprintln(w, header.String())

	for _, t := range temps {
		fmt.Fprintf(w, "%5.1f", t)
		for _, s := range settings {
			fmt.Fprintf(w, " %6d", s.Duty(t, maxDuty))
		}
		fmt.Fprintln(w)
	}
}

// smartRow is one step of a smart mode sweep
type smartRow struct {
	Temp    float32
	Duty    uint16
	Running bool
}

// smartSweep walks temps up and back down, carrying the running state
// between steps the way the controller does.
func smartSweep(temps []float32, ambient, trigger, upper float32, maxDuty uint16) []smartRow {
	path := make([]float32, 0, 2*len(temps))
	path = append(path, temps...)
	for i := len(temps) - 2; i >= 0; i-- {
		path = append(path, temps[i])
	}

	rows := make([]smartRow, 0, len(path))
	running := false
	for _, t := range path {
		duty := otw.GetSmartDuty(t, ambient, trigger, upper, maxDuty, running)
		running = duty > 0
		rows = append(rows, smartRow{Temp: t, Duty: duty, Running: running})
	}
	return rows
}

func runDutySmart(cmd *cobra.Command, args []string) error {
	temps, err := temperatures(dutyFrom, dutyTo, dutyStep)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ambient=%.1f°C trigger=%.1f°C upper=%.1f°C\n\n", smartAmbient, smartAmbient+smartTrigger, smartUpper)
	fmt.Fprintln(out, "   °C   duty")
	for i, row := range smartSweep(temps, smartAmbient, smartTrigger, smartUpper, dutyMax) {
		dir := "↑"
		if i >= len(temps) {
			dir = "↓"
		}
		fmt.Fprintf(out, "%5.1f %6d %s\n", row.Temp, row.Duty, dir)
	}
	return nil
}
