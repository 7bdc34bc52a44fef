// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"fmt"
	"time"
)

// Outcome classifies one request/response exchange
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeTimeout
	OutcomeDecodeError
	OutcomeDeviceError
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeDecodeError:
		return "decode_error"
	case OutcomeDeviceError:
		return "device_error"
	case OutcomeTransportError:
		return "transport_error"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Statistics tracks exchange counts and error rates for one session.
// It is not safe for concurrent use; owners guard it and hand out copies.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalExchanges  uint64
	OKExchanges     uint64
	Timeouts        uint64
	DecodeErrors    uint64
	DeviceErrors    uint64
	TransportErrors uint64
	Reconnects      uint64

	LastRTT time.Duration

	// Rates (calculated)
	ExchangeRate float64 // exchanges/sec
	ErrorRate    float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Record counts one exchange
func (s *Statistics) Record(outcome Outcome, rtt time.Duration) {
	s.TotalExchanges++
	switch outcome {
	case OutcomeOK:
		s.OKExchanges++
		s.LastRTT = rtt
	case OutcomeTimeout:
		s.Timeouts++
	case OutcomeDecodeError:
		s.DecodeErrors++
	case OutcomeDeviceError:
		s.DeviceErrors++
		s.LastRTT = rtt
	case OutcomeTransportError:
		s.TransportErrors++
	}
	s.LastUpdateTime = time.Now()
}

// RecordReconnect counts a transport reopen
func (s *Statistics) RecordReconnect() {
	s.Reconnects++
}

// Errors returns the number of failed exchanges
func (s *Statistics) Errors() uint64 {
	return s.Timeouts + s.DecodeErrors + s.DeviceErrors + s.TransportErrors
}

// SuccessPercent returns the share of exchanges that succeeded
func (s *Statistics) SuccessPercent() float64 {
	if s.TotalExchanges == 0 {
		return 0
	}
	return float64(s.OKExchanges) * 100.0 / float64(s.TotalExchanges)
}

// CalculateRates calculates exchange and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ExchangeRate = float64(s.TotalExchanges) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalExchanges == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalExchanges)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Exchanges:       %8d\n", s.TotalExchanges)
	result += fmt.Sprintf("Successful:      %8d (%.1f%%)\n", s.OKExchanges, s.SuccessPercent())

	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", s.Timeouts, percent(s.Timeouts))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.DeviceErrors > 0 {
		result += fmt.Sprintf("Device Errors:   %8d (%.1f%%)\n", s.DeviceErrors, percent(s.DeviceErrors))
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d (%.1f%%)\n", s.TransportErrors, percent(s.TransportErrors))
	}
	if s.Reconnects > 0 {
		result += fmt.Sprintf("Reconnects:      %8d\n", s.Reconnects)
	}
	if s.LastRTT > 0 {
		result += fmt.Sprintf("Last RTT:        %8s\n", s.LastRTT.Round(time.Millisecond))
	}

	result += fmt.Sprintf("Exchange Rate:   %8.1f /sec\n", s.ExchangeRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
