package sdi_can

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChargeLimitFrame(t *testing.T) {

	require := require.New(t)

	frame := RawFrame{
		Id:         0x502,
		Payload:    []byte{0xE8, 0x03, 0xC8, 0x00, 0xC8, 0x00, 0xE8, 0x03},
		ReceivedAt: time.Now(),
	}
	res := Decode(frame, SamsungSDIRegistry())

	require.True(res.Known)
	require.Empty(res.Warnings)
	require.InDelta(20.0, res.Signals[SIGNAL_CHARGE_CURRENT_LIMIT], 1e-9)
	require.InDelta(20.0, res.Signals[SIGNAL_DISCHARGE_CURRENT_LIMIT], 1e-9)
	require.InDelta(100.0, res.Signals[SIGNAL_BATTERY_CHARGE_VOLTAGE], 1e-9)
	require.InDelta(100.0, res.Signals[SIGNAL_BATTERY_DISCHARGE_VOLTAGE], 1e-9)
}

func TestDecodeSingleFieldRegistry(t *testing.T) {

	registry := Registry{
		0x502: {
			Id:     0x502,
			Name:   "limits",
			Fields: []FieldSpec{field("charge_current_limit", 2, U16, 0.1, "A")},
		},
	}
	res := Decode(RawFrame{Id: 0x502, Payload: []byte{0xE8, 0x03, 0xC8, 0x00, 0xC8, 0x00, 0xE8, 0x03}}, registry)

	assert.Len(t, res.Signals, 1)
	assert.InDelta(t, 20.0, res.Signals["charge_current_limit"], 1e-9)
}

func TestDecodeUnknownIdentifier(t *testing.T) {

	require := require.New(t)

	res := Decode(RawFrame{Id: 0x123, Payload: []byte{1, 2, 3}}, SamsungSDIRegistry())

	require.False(res.Known)
	require.NotNil(res.Signals)
	require.Empty(res.Signals)
	require.Len(res.Warnings, 1)
	require.Equal(WARN_UNKNOWN_ID, res.Warnings[0].Kind)
}

func TestDecodeShortPayloadIsPartial(t *testing.T) {

	require := require.New(t)

	// voltage (0..1), current (2..3) and soc (4) fit, soh/heartbeat do not
	res := Decode(RawFrame{Id: MSG_ID_SYSTEM_STATUS, Payload: []byte{0x50, 0x14, 0xF6, 0xFF, 0x63}}, SamsungSDIRegistry())

	require.True(res.Known)
	require.InDelta(52.0, res.Signals[SIGNAL_SYSTEM_VOLTAGE], 1e-9)
	require.InDelta(-10.0, res.Signals[SIGNAL_SYSTEM_CURRENT], 1e-9)
	require.InDelta(99.0, res.Signals[SIGNAL_SYSTEM_SOC], 1e-9)
	require.NotContains(res.Signals, SIGNAL_SYSTEM_SOH)
	require.NotContains(res.Signals, SIGNAL_SYSTEM_HEARTBEAT)

	skipped := map[string]bool{}
	for _, w := range res.Warnings {
		require.Equal(WARN_FIELD_OUT_OF_RANGE, w.Kind)
		require.Equal(5, w.PayloadLen)
		skipped[w.Field] = true
	}
	require.Equal(map[string]bool{SIGNAL_SYSTEM_SOH: true, SIGNAL_SYSTEM_HEARTBEAT: true}, skipped)
}

func TestDecodeEmptyPayload(t *testing.T) {

	res := Decode(RawFrame{Id: MSG_ID_TEMPERATURE_SUMMARY}, SamsungSDIRegistry())

	assert.True(t, res.Known)
	assert.Empty(t, res.Signals)
	assert.Len(t, res.Warnings, 3)
}

func TestDecodeSignedTemperatures(t *testing.T) {

	res := Decode(RawFrame{Id: MSG_ID_TEMPERATURE_SUMMARY, Payload: []byte{0, 0, 0, 0, 0xFB, 0x02, 0x80, 0}}, SamsungSDIRegistry())

	assert.InDelta(t, -5.0, res.Signals[SIGNAL_AVG_CELL_TEMP], 1e-9)
	assert.InDelta(t, 2.0, res.Signals[SIGNAL_MAX_CELL_TEMP], 1e-9)
	assert.InDelta(t, -128.0, res.Signals[SIGNAL_MIN_CELL_TEMP], 1e-9)
}

func TestDecodeBitfieldIsRawMask(t *testing.T) {

	require := require.New(t)

	res := Decode(RawFrame{Id: MSG_ID_SYSTEM_STATUS, Payload: []byte{0x05, 0x00, 0x81, 0x00, 0, 0, 0, 0}}, SamsungSDIRegistry())

	require.InDelta(5.0, res.Signals[SIGNAL_ALARM_STATUS], 1e-9)
	require.InDelta(129.0, res.Signals[SIGNAL_PROTECTION_STATUS], 1e-9)
}

func TestDecodeIsPure(t *testing.T) {

	frame := TestFrames()[0]
	registry := SamsungSDIRegistry()

	first := Decode(frame, registry)
	second := Decode(frame, registry)

	assert.Equal(t, first, second)
}

func TestTestFramesDecodeCleanly(t *testing.T) {

	registry := SamsungSDIRegistry()
	for _, f := range TestFrames() {
		res := Decode(f, registry)
		assert.True(t, res.Known, "frame %s", f)
		assert.Empty(t, res.Warnings, "frame %s", f)
	}
}

func TestRegistryFieldsFitInFrame(t *testing.T) {

	for id, msg := range SamsungSDIRegistry() {
		assert.Equal(t, id, msg.Id)
		for _, f := range msg.Fields {
			assert.LessOrEqual(t, f.ByteOffset+f.Type.Size(), MAX_PAYLOAD_LEN, "%s.%s", msg.Name, f.Name)
			assert.NotZero(t, f.Scale, "%s.%s", msg.Name, f.Name)
		}
	}
}
