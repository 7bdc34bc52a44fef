// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"time"

	"github.com/Thermoquad/opilio/pkg/otw"
)

// DutyRange is the PWM counter top of the simulated outputs
const DutyRange uint16 = 1000

// Model constants
const (
	PumpMaxRPM      float32 = 2800
	FanMaxRPM       float32 = 1800
	BaseConductance float32 = 1.5  // W/K, loop losses with everything stopped
	FanConductance  float32 = 25.0 // W/K, radiator at full airflow and flow
	maxStep                 = time.Second
)

// Thermal is a lumped model of a liquid loop: a heat source, a radiator
// whose conductance grows with fan duty, and a pump gating the flow.
type Thermal struct {
	Ambient  float32 // °C
	Liquid   float32 // °C
	HeatLoad float32 // W
	Capacity float32 // J/K

	duty    [otw.MaxFanSettings + 1]uint16 // indexed by FanID
	running [otw.MaxFanSettings + 1]bool
}

// NewThermal returns a loop at room temperature under a moderate load
func NewThermal() Thermal {
	return Thermal{
		Ambient:  22,
		Liquid:   22,
		HeatLoad: 150,
		Capacity: 4000,
	}
}

// Update recomputes the channel duties from the current liquid temperature
func (t *Thermal) Update(cfg *otw.Config, asleep bool) {
	for _, id := range otw.AllFanIDs() {
		var duty uint16
		switch {
		case asleep:
		case cfg.SmartMode != nil:
			smart := cfg.SmartMode
			if id == otw.FanPump {
				duty = otw.ScaleDuty(smart.PumpDuty, DutyRange)
			} else {
				duty = otw.GetSmartDuty(t.Liquid, t.Ambient, smart.TriggerAboveAmbient, smart.UpperTemp, DutyRange, t.running[id])
			}
		default:
			if s, ok := cfg.Get(id); ok {
				duty = s.Duty(t.Liquid, DutyRange)
			}
		}
		t.duty[id] = duty
		t.running[id] = duty > 0
	}
}

// Step advances the model by dt, re-evaluating duties at least once a second
func (t *Thermal) Step(dt time.Duration, cfg *otw.Config, asleep bool) {
	for dt > 0 {
		step := min(dt, maxStep)
		dt -= step

		t.Update(cfg, asleep)
		conductance := BaseConductance + FanConductance*t.airflow()*t.flow()
		power := t.HeatLoad - conductance*(t.Liquid-t.Ambient)
		t.Liquid += power * float32(step.Seconds()) / t.Capacity
	}
	t.Update(cfg, asleep)
}

func (t *Thermal) fraction(id otw.FanID) float32 {
	return float32(t.duty[id]) / float32(DutyRange)
}

// flow is the pump's share of full flow; half duty already saturates it
func (t *Thermal) flow() float32 {
	return min(1, 2*t.fraction(otw.FanPump))
}

// airflow is the mean fan duty fraction
func (t *Thermal) airflow() float32 {
	return (t.fraction(otw.Fan1) + t.fraction(otw.Fan2) + t.fraction(otw.Fan3)) / 3
}

// Duty returns the duty of a channel
func (t *Thermal) Duty(id otw.FanID) uint16 {
	if !id.Valid() {
		return 0
	}
	return t.duty[id]
}

// Stats reports the model as the controller's sensors would
func (t *Thermal) Stats() otw.Stats {
	var s otw.Stats
	for _, id := range otw.AllFanIDs() {
		top := FanMaxRPM
		if id == otw.FanPump {
			top = PumpMaxRPM
		}
		s.SetRPM(id, top*t.fraction(id))
	}
	s.LiquidTemp = t.Liquid
	s.LiquidOutTemp = t.Liquid - (t.Liquid-t.Ambient)*0.15*t.airflow()*t.flow()
	s.AmbientTemp = t.Ambient
	return s
}
