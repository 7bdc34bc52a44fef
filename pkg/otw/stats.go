// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

// Stats is one sensor snapshot reported by the device.
// Sensors may report saturated values (math.MaxFloat32) which are carried unchanged.
type Stats struct {
	_ struct{} `cbor:",toarray"`

	Pump1RPM      float32 `json:"pump1_rpm" toml:"pump1_rpm" yaml:"pump1_rpm"`
	Fan1RPM       float32 `json:"fan1_rpm" toml:"fan1_rpm" yaml:"fan1_rpm"`
	Fan2RPM       float32 `json:"fan2_rpm" toml:"fan2_rpm" yaml:"fan2_rpm"`
	Fan3RPM       float32 `json:"fan3_rpm" toml:"fan3_rpm" yaml:"fan3_rpm"`
	LiquidTemp    float32 `json:"liquid_temp" toml:"liquid_temp" yaml:"liquid_temp"` // liquid in
	LiquidOutTemp float32 `json:"liquid_out_temp" toml:"liquid_out_temp" yaml:"liquid_out_temp"`
	AmbientTemp   float32 `json:"ambient_temp" toml:"ambient_temp" yaml:"ambient_temp"`
}

// RPM returns the speed reported for the given channel
func (s Stats) RPM(id FanID) float32 {
	switch id {
	case FanPump:
		return s.Pump1RPM
	case Fan1:
		return s.Fan1RPM
	case Fan2:
		return s.Fan2RPM
	case Fan3:
		return s.Fan3RPM
	}
	return 0
}

// SetRPM stores the speed for the given channel; unknown ids are ignored
func (s *Stats) SetRPM(id FanID, rpm float32) {
	switch id {
	case FanPump:
		s.Pump1RPM = rpm
	case Fan1:
		s.Fan1RPM = rpm
	case Fan2:
		s.Fan2RPM = rpm
	case Fan3:
		s.Fan3RPM = rpm
	}
}

// UnmarshalCBOR decodes the seven-float array form, single precision only
func (s *Stats) UnmarshalCBOR(b []byte) error {
	var out Stats
	err := decodeSingles(b, &out.Pump1RPM, &out.Fan1RPM, &out.Fan2RPM, &out.Fan3RPM,
		&out.LiquidTemp, &out.LiquidOutTemp, &out.AmbientTemp)
	if err != nil {
		return err
	}
	*s = out
	return nil
}
