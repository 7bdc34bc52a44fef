// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"strings"
	"testing"
	"time"
)

func TestStatistics_Record(t *testing.T) {
	s := NewStatistics()

	s.Record(OutcomeOK, 5*time.Millisecond)
	s.Record(OutcomeOK, 7*time.Millisecond)
	s.Record(OutcomeTimeout, 0)
	s.Record(OutcomeDeviceError, 3*time.Millisecond)
	s.Record(OutcomeDecodeError, 0)
	s.RecordReconnect()

	if s.TotalExchanges != 5 {
		t.Errorf("TotalExchanges = %d, want 5", s.TotalExchanges)
	}
	if s.OKExchanges != 2 || s.Timeouts != 1 || s.DeviceErrors != 1 || s.DecodeErrors != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
	if s.Errors() != 3 {
		t.Errorf("Errors() = %d, want 3", s.Errors())
	}
	if s.SuccessPercent() != 40 {
		t.Errorf("SuccessPercent() = %f, want 40", s.SuccessPercent())
	}
	if s.LastRTT != 3*time.Millisecond {
		t.Errorf("LastRTT = %s", s.LastRTT)
	}
	if s.Reconnects != 1 {
		t.Errorf("Reconnects = %d", s.Reconnects)
	}

	out := s.String()
	for _, want := range []string{"Exchanges:", "Timeouts:", "Reconnects:", "Error Rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Transport Errors:") {
		t.Error("summary shows zero transport errors")
	}

	s.Reset()
	if s.TotalExchanges != 0 || s.Reconnects != 0 || s.SuccessPercent() != 0 {
		t.Errorf("Reset left counters: %+v", s)
	}
}

func TestOutcome_String(t *testing.T) {
	if OutcomeTransportError.String() != "transport_error" {
		t.Errorf("got %q", OutcomeTransportError.String())
	}
	if Outcome(99).String() != "Outcome(99)" {
		t.Errorf("got %q", Outcome(99).String())
	}
}
