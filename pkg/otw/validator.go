// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import "fmt"

// ValidationError describes one reason a Config may not be applied
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (v ValidationError) Error() string {
	return v.Field + ": " + v.Message
}

// Validate checks c and returns every violation found (empty if valid).
//
// sleep_after must be at least MinSleepAfter. With smart mode on, only the
// smart pump duty is checked since the curves are not in effect; with smart
// mode off every curve must be strictly increasing.
func (c *Config) Validate() []ValidationError {
	errors := []ValidationError{}

	if c.General.SleepAfter < MinSleepAfter {
		errors = append(errors, ValidationError{
			Field:   "general.sleep_after",
			Message: fmt.Sprintf("%d s is below the minimum of %d s", c.General.SleepAfter, MinSleepAfter),
		})
	}

	if c.SmartMode != nil {
		if !(c.SmartMode.PumpDuty >= MinPumpDuty) {
			errors = append(errors, ValidationError{
				Field:   "smart_mode.pump_duty",
				Message: fmt.Sprintf("%.1f%% is below the minimum of %.0f%%", c.SmartMode.PumpDuty, MinPumpDuty),
			})
		}
		return errors
	}

	for i, s := range c.Settings {
		if !s.Curve.IsValid() {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("settings[%d].curve", i),
				Message: fmt.Sprintf("%s curve must strictly increase in temperature and duty", s.ID),
			})
		}
	}

	return errors
}
