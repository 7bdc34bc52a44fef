// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

// IsValid reports whether both temperature and duty strictly increase
// from each point to the next.
func (c Curve) IsValid() bool {
	for i := 1; i < len(c); i++ {
		if c[i].Temp <= c[i-1].Temp || c[i].Duty <= c[i-1].Duty {
			return false
		}
	}
	return true
}

// GetDuty evaluates curve at temp and scales the result to maxDutyValue.
//
// Below the first point the first point's duty applies; at or above the last
// point the last point's duty applies. In between, duty is interpolated
// linearly inside the bracketing segment. The curve must be valid.
func GetDuty(curve Curve, temp float32, maxDutyValue uint16) uint16 {
	first, last := curve[0], curve[len(curve)-1]

	var percent float32
	switch {
	case temp < first.Temp:
		percent = first.Duty
	case temp >= last.Temp:
		percent = last.Duty
	default:
		for i := 0; i < len(curve)-1; i++ {
			lo, hi := curve[i], curve[i+1]
			if temp < hi.Temp {
				percent = (hi.Duty-lo.Duty)*(temp-lo.Temp)/(hi.Temp-lo.Temp) + lo.Duty
				break
			}
		}
	}
	return ScaleDuty(percent, maxDutyValue)
}

// GetSmartDuty computes duty from liquid temperature relative to ambient.
//
// Control starts minDelta above ambient and reaches full duty at maxTemp.
// A running channel only stops once temp falls SwitchTempBuffer below the
// trigger, so it does not chatter around the trigger point. Ambient readings
// below AmbientFaultTemp mean a disconnected sensor and are replaced by
// FallbackAmbientTemp.
func GetSmartDuty(temp, ambientTemp, minDelta, maxTemp float32, maxDutyValue uint16, isRunning bool) uint16 {
	if ambientTemp < AmbientFaultTemp {
		ambientTemp = FallbackAmbientTemp
	}
	trigger := ambientTemp + minDelta

	if isRunning && temp <= trigger-SwitchTempBuffer {
		return 0
	}
	if !isRunning && temp <= trigger {
		return 0
	}
	if temp >= maxTemp {
		return maxDutyValue
	}

	span := maxTemp - trigger
	if span <= 0 {
		return maxDutyValue
	}
	percent := (MaxDutyPercent-MinSmartDutyPercent)*(temp-trigger)/span + MinSmartDutyPercent
	return ScaleDuty(percent, maxDutyValue)
}

// ScaleDuty converts a duty percentage into the range [0, maxDutyValue],
// truncating toward zero. Percentages outside [0, 100] are clamped.
func ScaleDuty(percent float32, maxDutyValue uint16) uint16 {
	if !(percent > 0) {
		return 0
	}
	if percent > MaxDutyPercent {
		percent = MaxDutyPercent
	}
	return uint16(float32(maxDutyValue) * percent / MaxDutyPercent)
}
