// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/opilio/internal/store"
	"github.com/Thermoquad/opilio/pkg/otw"
)

var (
	configFormat   string
	configOutput   string
	configForce    bool
	configPersist  bool
	configDuration time.Duration
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read, write and persist the controller configuration",
	Long: `Manage the controller configuration: general settings, smart mode and
the fan and pump curves.

The controller keeps two copies: the active configuration in RAM and the
persisted one in flash. "upload" replaces the active copy only, "save"
uploads and then persists it, "reload" discards the active copy in favour of
flash. Local files default to the user config directory and may be TOML,
YAML or JSON, chosen by extension.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the active configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigGet,
}

var configUploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a configuration file without persisting it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigUpload,
}

var configSaveCmd = &cobra.Command{
	Use:   "save [file]",
	Short: "Upload a configuration file and persist it to flash",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigSave,
}

var configReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Discard the active configuration and reload it from flash",
	Args:  cobra.NoArgs,
	RunE:  runConfigReload,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Upload and persist the factory configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigReset,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a configuration file without touching the controller",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the factory configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configToggleSmartCmd = &cobra.Command{
	Use:   "toggle-smart",
	Short: "Switch smart mode on or off on the controller",
	Args:  cobra.NoArgs,
	RunE:  runConfigToggleSmart,
}

var configTestCmd = &cobra.Command{
	Use:   "test [file]",
	Short: "Try a configuration for a while, then reload the persisted one",
	Long: `Upload a configuration file, keep it active for --duration and then reload
the configuration persisted in flash. Ctrl+C ends the trial early; the
reload still happens.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigTest,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd, configUploadCmd, configSaveCmd, configReloadCmd,
		configResetCmd, configValidateCmd, configInitCmd, configToggleSmartCmd, configTestCmd)

	configGetCmd.Flags().StringVarP(&configFormat, "format", "f", "text", "Output format (text, toml, yaml, json)")
	configGetCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Write to this file instead of stdout")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configToggleSmartCmd.Flags().BoolVar(&configPersist, "save", false, "Persist the result to flash")
	configTestCmd.Flags().DurationVarP(&configDuration, "duration", "d", 30*time.Second, "How long to keep the trial configuration")
}

// configPath returns the positional file argument or the default location
func configPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return deviceConfigPath()
}

// loadValidConfig reads a configuration file and refuses invalid ones
func loadValidConfig(args []string) (otw.Config, string, error) {
	path, err := configPath(args)
	if err != nil {
		return otw.Config{}, "", err
	}
	c, err := store.Load(path)
	if err != nil {
		return otw.Config{}, path, err
	}
	if problems := c.Validate(); len(problems) > 0 {
		return otw.Config{}, path, invalidConfigError(path, problems)
	}
	return c, path, nil
}

func invalidConfigError(path string, problems []otw.ValidationError) error {
	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = p
	}
	return fmt.Errorf("%s is invalid:\n%w", path, errors.Join(errs...))
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	c, err := client.GetConfig(cmd.Context())
	if err != nil {
		return err
	}

	if configOutput != "" {
		if err := store.Save(configOutput, c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configOutput)
		return nil
	}
	return writeConfig(cmd.OutOrStdout(), configFormat, c)
}

// writeConfig prints c as text or in one of the store encodings
func writeConfig(w io.Writer, format string, c otw.Config) error {
	if format == "text" {
		_, err := fmt.Fprint(w, otw.FormatConfig(&c))
		return err
	}
	f, err := store.ParseFormat(format)
	if err != nil {
		return err
	}
	b, err := store.Marshal(c, f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func runConfigUpload(cmd *cobra.Command, args []string) error {
	c, path, err := loadValidConfig(args)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.UploadConfig(cmd.Context(), c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (active until reload or power cycle)\n", path)
	return nil
}

func runConfigSave(cmd *cobra.Command, args []string) error {
	c, path, err := loadValidConfig(args)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := uploadAndSave(cmd.Context(), client, c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to flash\n", path)
	return nil
}

// configWriter is the part of transport.Client that changes the device configuration
type configWriter interface {
	UploadConfig(ctx context.Context, cfg otw.Config) error
	SaveConfig(ctx context.Context) error
}

func uploadAndSave(ctx context.Context, client configWriter, c otw.Config) error {
	if err := client.UploadConfig(ctx, c); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if err := client.SaveConfig(ctx); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func runConfigReload(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Reload(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Reloaded configuration from flash")
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := uploadAndSave(cmd.Context(), client, otw.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Factory configuration saved to flash")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, path, err := loadValidConfig(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n%s", path, otw.FormatConfig(&c))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}
	if !configForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := store.Save(path, otw.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote factory configuration to %s\n", path)
	return nil
}

func runConfigToggleSmart(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	enabled, err := toggleSmartMode(ctx, client)
	if err != nil {
		return err
	}
	if configPersist {
		if err := client.SaveConfig(ctx); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Smart mode %s\n", boolToSwitch(enabled))
	return nil
}

// configReadWriter reads and replaces the active device configuration
type configReadWriter interface {
	GetConfig(ctx context.Context) (otw.Config, error)
	UploadConfig(ctx context.Context, cfg otw.Config) error
}

// toggleSmartMode flips smart mode on the active configuration and reports the new state
func toggleSmartMode(ctx context.Context, client configReadWriter) (bool, error) {
	c, err := client.GetConfig(ctx)
	if err != nil {
		return false, err
	}
	enabled := c.ToggleSmartMode()
	if err := client.UploadConfig(ctx, c); err != nil {
		return false, fmt.Errorf("upload: %w", err)
	}
	return enabled, nil
}

func boolToSwitch(on bool) otw.SwitchMode {
	if on {
		return otw.SwitchOn
	}
	return otw.SwitchOff
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	c, path, err := loadValidConfig(args)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if err := client.UploadConfig(ctx, c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Testing %s for %s (Ctrl+C to stop early)\n", path, configDuration)

	waitCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCtx.Done():
	case <-time.After(configDuration):
	}
	stop()

	if err := client.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Reloaded configuration from flash")
	return nil
}
