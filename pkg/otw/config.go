// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"fmt"
	"strings"
)

// SwitchMode is an on/off setting
type SwitchMode uint8

const (
	SwitchOff SwitchMode = 0
	SwitchOn  SwitchMode = 1
)

// IsOn reports whether the switch is on
func (s SwitchMode) IsOn() bool {
	return s == SwitchOn
}

func (s SwitchMode) String() string {
	switch s {
	case SwitchOff:
		return "off"
	case SwitchOn:
		return "on"
	}
	return fmt.Sprintf("SwitchMode(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler
func (s SwitchMode) MarshalText() ([]byte, error) {
	if s > SwitchOn {
		return nil, fmt.Errorf("invalid switch mode %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *SwitchMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "on", "true":
		*s = SwitchOn
	case "off", "false":
		*s = SwitchOff
	default:
		return fmt.Errorf("invalid switch mode %q (use on or off)", text)
	}
	return nil
}

// FanID identifies a pump or fan channel
type FanID uint8

const (
	FanPump FanID = 1
	Fan1    FanID = 2
	Fan2    FanID = 3
	Fan3    FanID = 4
)

// AllFanIDs returns every channel in wire order
func AllFanIDs() []FanID {
	return []FanID{FanPump, Fan1, Fan2, Fan3}
}

// Valid reports whether id names a known channel
func (id FanID) Valid() bool {
	return id >= FanPump && id <= Fan3
}

func (id FanID) String() string {
	switch id {
	case FanPump:
		return "pump"
	case Fan1:
		return "fan1"
	case Fan2:
		return "fan2"
	case Fan3:
		return "fan3"
	}
	return fmt.Sprintf("FanID(%d)", uint8(id))
}

// ParseFanID parses the text form of a channel id ("pump", "fan1"...)
func ParseFanID(s string) (FanID, error) {
	for _, id := range AllFanIDs() {
		if strings.EqualFold(s, id.String()) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown fan id %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (id FanID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid fan id %d", uint8(id))
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *FanID) UnmarshalText(text []byte) error {
	parsed, err := ParseFanID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// CurvePoint maps a liquid temperature (°C) to a duty percentage
type CurvePoint struct {
	_ struct{} `cbor:",toarray"`

	Temp float32 `json:"temp" toml:"temp" yaml:"temp"`
	Duty float32 `json:"duty" toml:"duty" yaml:"duty"`
}

// Point builds a CurvePoint
func Point(temp, duty float32) CurvePoint {
	return CurvePoint{Temp: temp, Duty: duty}
}

// UnmarshalCBOR decodes a [temp, duty] pair of single-precision floats
func (p *CurvePoint) UnmarshalCBOR(b []byte) error {
	var out CurvePoint
	if err := decodeSingles(b, &out.Temp, &out.Duty); err != nil {
		return fmt.Errorf("curve point: %w", err)
	}
	*p = out
	return nil
}

// Curve is a piecewise-linear temperature to duty mapping
type Curve [CurvePoints]CurvePoint

// NewCurve builds a Curve from exactly CurvePoints points
func NewCurve(points []CurvePoint) (Curve, error) {
	var c Curve
	if len(points) != CurvePoints {
		return c, fmt.Errorf("curve has %d points, want %d", len(points), CurvePoints)
	}
	copy(c[:], points)
	return c, nil
}

// UnmarshalCBOR rejects arrays that do not hold exactly CurvePoints points
func (c *Curve) UnmarshalCBOR(b []byte) error {
	var points []CurvePoint
	if err := decMode.Unmarshal(b, &points); err != nil {
		return err
	}
	curve, err := NewCurve(points)
	if err != nil {
		return err
	}
	*c = curve
	return nil
}

// FanSetting is the curve applied to one channel
type FanSetting struct {
	_ struct{} `cbor:",toarray"`

	ID    FanID `json:"id" toml:"id" yaml:"id"`
	Curve Curve `json:"curve" toml:"curve" yaml:"curve"`
}

// Duty evaluates the setting's curve, see GetDuty
func (s FanSetting) Duty(temp float32, maxDutyValue uint16) uint16 {
	return GetDuty(s.Curve, temp, maxDutyValue)
}

// SmartMode delegates control to ambient-relative hysteresis on the device
type SmartMode struct {
	_ struct{} `cbor:",toarray"`

	TriggerAboveAmbient float32 `json:"trigger_above_ambient" toml:"trigger_above_ambient" yaml:"trigger_above_ambient"`
	UpperTemp           float32 `json:"upper_temp" toml:"upper_temp" yaml:"upper_temp"`
	PumpDuty            float32 `json:"pump_duty" toml:"pump_duty" yaml:"pump_duty"`
}

// UnmarshalCBOR decodes the three-float array form, single precision only
func (m *SmartMode) UnmarshalCBOR(b []byte) error {
	var out SmartMode
	if err := decodeSingles(b, &out.TriggerAboveAmbient, &out.UpperTemp, &out.PumpDuty); err != nil {
		return fmt.Errorf("smart mode: %w", err)
	}
	*m = out
	return nil
}

// DefaultSmartMode returns the factory smart mode settings
func DefaultSmartMode() SmartMode {
	return SmartMode{
		TriggerAboveAmbient: 5.0,
		UpperTemp:           40.0,
		PumpDuty:            95.0,
	}
}

// GeneralConfig holds device-wide settings
type GeneralConfig struct {
	_ struct{} `cbor:",toarray"`

	SleepAfter uint16     `json:"sleep_after" toml:"sleep_after" yaml:"sleep_after"` // seconds
	LED        SwitchMode `json:"led" toml:"led" yaml:"led"`
	Buzzer     SwitchMode `json:"buzzer" toml:"buzzer" yaml:"buzzer"`
}

// Config is the complete device configuration.
//
// Settings holds at most MaxFanSettings entries, one per FanID. Entries are
// replaced through Set and read through Get; the id set is fixed when the
// Config is built.
type Config struct {
	_ struct{} `cbor:",toarray"`

	General   GeneralConfig `json:"general" toml:"general" yaml:"general"`
	SmartMode *SmartMode    `json:"smart_mode,omitempty" toml:"smart_mode,omitempty" yaml:"smart_mode,omitempty"`
	Settings  []FanSetting  `json:"settings" toml:"settings" yaml:"settings"`
}

// Factory curves. The pump never drops as low as the fans.
var (
	defaultPumpCurve = Curve{Point(25, 50), Point(30, 65), Point(35, 80), Point(40, 100)}
	defaultFanCurve  = Curve{Point(25, 20), Point(30, 40), Point(35, 70), Point(40, 100)}
)

// DefaultConfig returns the factory configuration
func DefaultConfig() Config {
	smart := DefaultSmartMode()
	cfg := Config{
		General: GeneralConfig{
			SleepAfter: DefaultSleepAfter,
			LED:        SwitchOff,
			Buzzer:     SwitchOff,
		},
		SmartMode: &smart,
		Settings:  make([]FanSetting, 0, MaxFanSettings),
	}
	for _, id := range AllFanIDs() {
		curve := defaultFanCurve
		if id == FanPump {
			curve = defaultPumpCurve
		}
		cfg.Settings = append(cfg.Settings, FanSetting{ID: id, Curve: curve})
	}
	return cfg
}

// Clone returns a deep copy of c
func (c *Config) Clone() Config {
	out := Config{General: c.General}
	if c.SmartMode != nil {
		smart := *c.SmartMode
		out.SmartMode = &smart
	}
	if c.Settings != nil {
		out.Settings = make([]FanSetting, len(c.Settings))
		copy(out.Settings, c.Settings)
	}
	return out
}

// Set replaces the stored setting with the same id.
// A setting for an id the config does not hold is ignored.
func (c *Config) Set(setting FanSetting) {
	for i := range c.Settings {
		if c.Settings[i].ID == setting.ID {
			c.Settings[i] = setting
			return
		}
	}
}

// Get returns a copy of the setting stored for id
func (c *Config) Get(id FanID) (FanSetting, bool) {
	for _, s := range c.Settings {
		if s.ID == id {
			return s, true
		}
	}
	return FanSetting{}, false
}

// SmartModeEnabled reports whether smart mode governs the device
func (c *Config) SmartModeEnabled() bool {
	return c.SmartMode != nil
}

// EnableSmartMode turns smart mode on with factory settings.
// It does nothing when smart mode is already on.
func (c *Config) EnableSmartMode() {
	if c.SmartMode == nil {
		smart := DefaultSmartMode()
		c.SmartMode = &smart
	}
}

// DisableSmartMode hands control back to the per-channel curves
func (c *Config) DisableSmartMode() {
	c.SmartMode = nil
}

// ToggleSmartMode flips smart mode and reports the new state
func (c *Config) ToggleSmartMode() bool {
	if c.SmartModeEnabled() {
		c.DisableSmartMode()
		return false
	}
	c.EnableSmartMode()
	return true
}

// CheckSettings reports structural problems no encoding can carry: more
// than MaxFanSettings entries, an unknown channel or a channel listed twice
func (c *Config) CheckSettings() error {
	if len(c.Settings) > MaxFanSettings {
		return fmt.Errorf("%d settings (max %d)", len(c.Settings), MaxFanSettings)
	}
	seen := make(map[FanID]bool, len(c.Settings))
	for _, s := range c.Settings {
		if !s.ID.Valid() {
			return fmt.Errorf("unknown fan id %d", uint8(s.ID))
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate fan id %s", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// IsValid reports whether the device may apply c
func (c *Config) IsValid() bool {
	return len(c.Validate()) == 0
}

// ToBytes encodes c with the wire encoding used for Config payloads
func (c *Config) ToBytes() ([]byte, error) {
	if len(c.Settings) > MaxFanSettings {
		return nil, fmt.Errorf("config has %d settings (max %d): %w", len(c.Settings), MaxFanSettings, ErrSerialize)
	}
	b, err := encMode.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %v: %w", err, encodeErrorKind(err))
	}
	if len(b) > MaxSerialDataSize {
		return nil, fmt.Errorf("config is %d bytes (max %d): %w", len(b), MaxSerialDataSize, ErrSerialize)
	}
	return b, nil
}

// ConfigFromBytes decodes the output of ToBytes.
// On failure the zero Config is returned, never a partial one.
func ConfigFromBytes(b []byte) (Config, error) {
	return decodeConfig(b)
}
