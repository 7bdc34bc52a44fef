// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package otw

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

func sampleStats() Stats {
	return Stats{
		Pump1RPM:      2400,
		Fan1RPM:       850.5,
		Fan2RPM:       860,
		Fan3RPM:       0,
		LiquidTemp:    31.25,
		LiquidOutTemp: 29.75,
		AmbientTemp:   22.5,
	}
}

func extremeStats() Stats {
	return Stats{
		Pump1RPM:      math.MaxFloat32,
		Fan1RPM:       -math.MaxFloat32,
		Fan2RPM:       math.SmallestNonzeroFloat32,
		Fan3RPM:       1e-30,
		LiquidTemp:    float32(math.Inf(1)),
		LiquidOutTemp: float32(math.Inf(-1)),
		AmbientTemp:   -0.0001,
	}
}

// legalFrames returns at least one frame for every legal pairing
func legalFrames() []Frame {
	noSmart := DefaultConfig()
	noSmart.DisableSmartMode()

	partial := DefaultConfig()
	partial.Settings = partial.Settings[:2]

	return []Frame{
		{MsgPing, Empty{}},
		{MsgGetConfig, Empty{}},
		{MsgGetStats, Empty{}},
		{MsgSaveConfig, Empty{}},
		{MsgReload, Empty{}},
		{MsgPong, Pong(0)},
		{MsgPong, Pong(math.MaxUint32)},
		{MsgConfig, DefaultConfig()},
		{MsgConfig, partial},
		{MsgUploadConfig, noSmart},
		{MsgStats, sampleStats()},
		{MsgStats, extremeStats()},
		{MsgResult, ResponseOK},
		{MsgResult, ResponseError(ErrFlashWrite)},
		{MsgResult, ResponseError(ErrUnknown)},
	}
}

// ============================================================
// Round Trip Tests
// ============================================================

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, want := range legalFrames() {
		t.Run(want.Msg.String(), func(t *testing.T) {
			b, err := Encode(want.Msg, want.Data)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(b) > MaxSerialDataSize {
				t.Fatalf("frame is %d bytes, max %d", len(b), MaxSerialDataSize)
			}

			got, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip mismatch:\n got  %#v\n want %#v", got, want)
			}
		})
	}
}

func TestEncodeDecode_FloatBitsPreserved(t *testing.T) {
	want := extremeStats()
	b, err := Encode(MsgStats, want)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	frame, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := frame.Data.(Stats)

	pairs := []struct {
		name      string
		got, want float32
	}{
		{"pump1_rpm", got.Pump1RPM, want.Pump1RPM},
		{"fan1_rpm", got.Fan1RPM, want.Fan1RPM},
		{"fan2_rpm", got.Fan2RPM, want.Fan2RPM},
		{"fan3_rpm", got.Fan3RPM, want.Fan3RPM},
		{"liquid_temp", got.LiquidTemp, want.LiquidTemp},
		{"liquid_out_temp", got.LiquidOutTemp, want.LiquidOutTemp},
		{"ambient_temp", got.AmbientTemp, want.AmbientTemp},
	}
	for _, p := range pairs {
		if math.Float32bits(p.got) != math.Float32bits(p.want) {
			t.Errorf("%s: bits 0x%08X, want 0x%08X", p.name, math.Float32bits(p.got), math.Float32bits(p.want))
		}
	}
}

func TestEncodeDecode_PointerPayloads(t *testing.T) {
	stats := sampleStats()
	cfg := DefaultConfig()

	tests := []struct {
		name string
		msg  Msg
		data Data
		want Data
	}{
		{"stats", MsgStats, &stats, stats},
		{"config", MsgUploadConfig, &cfg, cfg},
		{"response", MsgResult, &ResponseOK, ResponseOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.msg, tt.data)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			frame, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(frame.Data, tt.want) {
				t.Errorf("got %#v, want %#v", frame.Data, tt.want)
			}
		})
	}
}

// ============================================================
// Wire Layout Tests
// ============================================================

func TestEncode_WireLayout(t *testing.T) {
	tests := []struct {
		name     string
		msg      Msg
		data     Data
		expected []byte
	}{
		{"ping", MsgPing, Empty{}, []byte{0x82, 0x00, 0xF6}},
		{"reload", MsgReload, Empty{}, []byte{0x82, 0x09, 0xF6}},
		{"pong small", MsgPong, Pong(1), []byte{0x82, 0x01, 0x01}},
		{"pong 1000", MsgPong, Pong(1000), []byte{0x82, 0x01, 0x19, 0x03, 0xE8}},
		{"result ok", MsgResult, ResponseOK, []byte{0x82, 0x07, 0x00}},
		{"result deserialize", MsgResult, ResponseError(ErrDeserialize), []byte{0x82, 0x07, 0x01}},
		{"result temp read", MsgResult, ResponseError(ErrTempRead), []byte{0x82, 0x07, 0x09}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.msg, tt.data)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(b, tt.expected) {
				t.Errorf("got % X, want % X", b, tt.expected)
			}
		})
	}
}

func TestEncode_StatsUseSinglePrecision(t *testing.T) {
	b, err := Encode(MsgStats, Stats{Pump1RPM: 1})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// array(2), msg, array(7), then seven 0xFA + 4 byte floats
	if len(b) != 3+7*5 {
		t.Fatalf("frame is %d bytes, want %d", len(b), 3+7*5)
	}
	if b[2] != 0x87 {
		t.Errorf("stats header 0x%02X, want 0x87", b[2])
	}
	want := []byte{0xFA, 0x3F, 0x80, 0x00, 0x00}
	if !bytes.Equal(b[3:8], want) {
		t.Errorf("pump rpm encoded as % X, want % X", b[3:8], want)
	}
}

func TestSerialisedOK(t *testing.T) {
	ok := SerialisedOK()
	if len(ok) != 3 {
		t.Fatalf("SerialisedOK is %d bytes, want 3", len(ok))
	}

	encoded, err := Encode(MsgResult, ResponseOK)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(ok, encoded) {
		t.Errorf("SerialisedOK % X differs from encoded % X", ok, encoded)
	}

	frame, err := Decode(ok)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if frame.Msg != MsgResult || frame.Data != Data(ResponseOK) {
		t.Errorf("SerialisedOK decoded to %+v", frame)
	}

	ok[0] = 0
	if SerialisedOK()[0] != 0x82 {
		t.Error("SerialisedOK must return a fresh copy")
	}
}

// ============================================================
// Encode Error Tests
// ============================================================

func TestEncode_IllegalPairs(t *testing.T) {
	payloads := map[PayloadKind]Data{
		KindEmpty:    Empty{},
		KindPong:     Pong(7),
		KindConfig:   DefaultConfig(),
		KindStats:    sampleStats(),
		KindResponse: ResponseOK,
	}

	for _, msg := range AllMsgs() {
		for kind, data := range payloads {
			if IsLegal(msg, kind) {
				continue
			}
			_, err := Encode(msg, data)
			if !errors.Is(err, ErrInvalidMsgDataPair) {
				t.Errorf("Encode(%s, %s): got %v, want ErrInvalidMsgDataPair", msg, kind, err)
			}
		}
	}
}

func TestEncode_NilPayloads(t *testing.T) {
	var nilConfig *Config
	var nilStats *Stats

	tests := []struct {
		name string
		msg  Msg
		data Data
	}{
		{"nil interface", MsgPing, nil},
		{"nil config pointer", MsgConfig, nilConfig},
		{"nil stats pointer", MsgStats, nilStats},
		{"unknown command", Msg(42), Empty{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.msg, tt.data)
			if !errors.Is(err, ErrInvalidMsgDataPair) {
				t.Errorf("got %v, want ErrInvalidMsgDataPair", err)
			}
		})
	}
}

func TestEncode_CapacityExceeded(t *testing.T) {
	_, err := EncodeLimit(MsgConfig, DefaultConfig(), 16)
	if !errors.Is(err, ErrSerialize) {
		t.Errorf("small limit: got %v, want ErrSerialize", err)
	}

	cfg := DefaultConfig()
	cfg.Settings = append(cfg.Settings, FanSetting{ID: Fan1, Curve: defaultFanCurve})
	_, err = Encode(MsgConfig, cfg)
	if !errors.Is(err, ErrSerialize) {
		t.Errorf("five settings: got %v, want ErrSerialize", err)
	}

	_, err = EncodeLimit(MsgPing, Empty{}, 3)
	if err != nil {
		t.Errorf("exact fit should succeed, got %v", err)
	}
}

func TestMustEncode_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustEncode should panic on an illegal pair")
		}
	}()
	MustEncode(MsgPing, Pong(1))
}

// ============================================================
// Decode Error Tests
// ============================================================

func TestDecode_ShortBuffers(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrDeserialize) {
		t.Errorf("nil: got %v, want ErrDeserialize", err)
	}
	if _, err := Decode([]byte{}); !errors.Is(err, ErrDeserialize) {
		t.Errorf("empty: got %v, want ErrDeserialize", err)
	}
	for b := 0; b <= 0xFF; b++ {
		if _, err := Decode([]byte{byte(b)}); !errors.Is(err, ErrDeserialize) {
			t.Errorf("single byte 0x%02X: got %v, want ErrDeserialize", b, err)
		}
	}
}

// statsFrame builds a Stats frame of seven zero floats, each with the given
// initial byte and width
func statsFrame(head byte, width int) []byte {
	b := []byte{0x82, 0x05, 0x87}
	for i := 0; i < 7; i++ {
		b = append(b, head)
		b = append(b, make([]byte, width)...)
	}
	return b
}

func TestDecode_Malformed(t *testing.T) {
	cfgFrame := MustEncode(MsgConfig, DefaultConfig())

	tests := []struct {
		name string
		data []byte
	}{
		{"trailing zero", append(MustEncode(MsgPing, Empty{}), 0x00)},
		{"trailing frame", append(MustEncode(MsgPing, Empty{}), MustEncode(MsgPing, Empty{})...)},
		{"truncated config", cfgFrame[:len(cfgFrame)-1]},
		{"truncated stats", MustEncode(MsgStats, sampleStats())[:10]},
		{"not an array", []byte{0x01, 0x02}},
		{"array of one", []byte{0x81, 0x00}},
		{"array of three", []byte{0x83, 0x00, 0xF6, 0xF6}},
		{"unknown command", []byte{0x82, 0x0A, 0xF6}},
		{"unknown large command", []byte{0x82, 0x18, 0x64, 0xF6}},
		{"negative command", []byte{0x82, 0x20, 0xF6}},
		{"command too wide", []byte{0x82, 0x19, 0x01, 0x00, 0xF6}},
		{"empty command with payload", []byte{0x82, 0x00, 0x01}},
		{"stats without payload", []byte{0x82, 0x05, 0xF6}},
		{"config without payload", []byte{0x82, 0x06, 0xF6}},
		{"result without payload", []byte{0x82, 0x07, 0xF6}},
		{"unknown error kind", []byte{0x82, 0x07, 0x0B}},
		{"error kind out of byte", []byte{0x82, 0x07, 0x19, 0x01, 0x00}},
		{"pong overflow", []byte{0x82, 0x01, 0x1B, 0, 0, 0x01, 0, 0, 0, 0, 0}},
		{"pong as string", []byte{0x82, 0x01, 0x61, 'a'}},
		{"stats with six fields", []byte{0x82, 0x05, 0x86,
			0xFA, 0, 0, 0, 0, 0xFA, 0, 0, 0, 0, 0xFA, 0, 0, 0, 0,
			0xFA, 0, 0, 0, 0, 0xFA, 0, 0, 0, 0, 0xFA, 0, 0, 0, 0}},
		{"stats in double precision", statsFrame(0xFB, 8)},
		{"stats in half precision", statsFrame(0xF9, 2)},
		{"stats as integers", []byte{0x82, 0x05, 0x87, 0, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode(tt.data)
			if !errors.Is(err, ErrDeserialize) {
				t.Fatalf("got %v, want ErrDeserialize", err)
			}
			if frame.Data != nil {
				t.Errorf("failed decode returned data %#v", frame.Data)
			}
		})
	}
}

func TestDecode_ConfigBounds(t *testing.T) {
	encodeRaw := func(cfg Config) []byte {
		b, err := encMode.Marshal(frame{Msg: MsgConfig, Payload: cfg})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}

	tooMany := DefaultConfig()
	tooMany.Settings = append(tooMany.Settings, FanSetting{ID: Fan3, Curve: defaultFanCurve})

	duplicate := DefaultConfig()
	duplicate.Settings[1].ID = FanPump

	badID := DefaultConfig()
	badID.Settings[3].ID = FanID(9)

	badSwitch := DefaultConfig()
	badSwitch.General.LED = SwitchMode(2)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"five settings", tooMany},
		{"duplicate id", duplicate},
		{"unknown id", badID},
		{"invalid switch", badSwitch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(encodeRaw(tt.cfg))
			if !errors.Is(err, ErrDeserialize) {
				t.Errorf("got %v, want ErrDeserialize", err)
			}
		})
	}
}

// looseConfig has the Config wire layout with curves of any length
type looseConfig struct {
	_ struct{} `cbor:",toarray"`

	General   GeneralConfig
	SmartMode *SmartMode
	Settings  []looseSetting
}

type looseSetting struct {
	_ struct{} `cbor:",toarray"`

	ID    FanID
	Curve []CurvePoint
}

func TestDecode_CurveLength(t *testing.T) {
	points := []CurvePoint{Point(10, 10), Point(20, 20), Point(30, 30), Point(40, 40), Point(50, 50)}

	encodeCurve := func(n int) []byte {
		cfg := looseConfig{
			General:  DefaultConfig().General,
			Settings: []looseSetting{{ID: FanPump, Curve: points[:n]}},
		}
		b, err := encMode.Marshal(frame{Msg: MsgConfig, Payload: cfg})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return b
	}

	for _, n := range []int{0, 3, 5} {
		got, err := Decode(encodeCurve(n))
		if !errors.Is(err, ErrDeserialize) {
			t.Errorf("%d points: got %v (%v), want ErrDeserialize", n, err, got.Data)
		}
	}

	got, err := Decode(encodeCurve(CurvePoints))
	if err != nil {
		t.Fatalf("%d points: %v", CurvePoints, err)
	}
	cfg := got.Data.(Config)
	if cfg.Settings[0].Curve != Curve(points[:CurvePoints]) {
		t.Errorf("curve = %v", cfg.Settings[0].Curve)
	}
}

func TestDecode_CurveDoublePrecision(t *testing.T) {
	b := MustEncode(MsgConfig, DefaultConfig())
	// first curve point: 0x82 0xFA <temp> 0xFA <duty>
	i := bytes.Index(b, []byte{0x82, 0xFA})
	if i < 0 {
		t.Fatal("no curve point in encoded config")
	}
	double := append(append([]byte{}, b[:i+1]...), 0xFB, 0x40, 0x39, 0, 0, 0, 0, 0, 0)
	double = append(double, b[i+6:]...)

	if _, err := Decode(double); !errors.Is(err, ErrDeserialize) {
		t.Errorf("got %v, want ErrDeserialize", err)
	}
}

// ============================================================
// FrameReady Tests
// ============================================================

func TestFrameReady(t *testing.T) {
	full := MustEncode(MsgStats, sampleStats())

	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{"empty", nil, false},
		{"complete", full, true},
		{"first byte only", full[:1], false},
		{"truncated", full[:len(full)-2], false},
		{"trailing bytes", append(append([]byte{}, full...), 0x00), true},
		{"reserved header", []byte{0x1C}, true},
		{"lone break", []byte{0xFF}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameReady(tt.data); got != tt.expected {
				t.Errorf("FrameReady = %v, want %v", got, tt.expected)
			}
		})
	}
}
