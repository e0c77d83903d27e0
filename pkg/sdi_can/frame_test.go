package sdi_can

import (
	"errors"
	"testing"
	"time"

	"github.com/brutella/can"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameValidate(t *testing.T) {

	assert.NoError(t, RawFrame{Id: 0x500, Payload: make([]byte, 8)}.Validate())
	assert.NoError(t, RawFrame{Id: 0x500}.Validate())

	err := RawFrame{Id: 0x500, Payload: make([]byte, 9)}.Validate()
	assert.True(t, errors.Is(err, ErrPayloadTooLong))
}

func TestFromCANFrame(t *testing.T) {

	now := time.Now()
	f, ok := FromCANFrame(can.Frame{
		ID:     0x502,
		Length: 4,
		Data:   [8]byte{0xE8, 0x03, 0xC8, 0x00, 0xAA, 0xBB, 0xCC, 0xDD},
	}, now)

	assert.True(t, ok)
	assert.Equal(t, uint32(0x502), f.Id)
	assert.Equal(t, []byte{0xE8, 0x03, 0xC8, 0x00}, f.Payload)
	assert.Equal(t, now, f.ReceivedAt)
}

func TestFromCANFrameExtendedIdDoesNotAlias(t *testing.T) {

	require := require.New(t)

	// J1939-style frame whose low 11 bits are 0x502
	f, ok := FromCANFrame(can.Frame{
		ID:     CAN_EFF_FLAG | 0x18FF0502,
		Length: 8,
		Data:   [8]byte{0xE8, 0x03, 0xFF, 0x7F, 0xC8, 0x00, 0xE8, 0x03},
	}, time.Now())

	require.True(ok)
	require.Equal(uint32(0x18FF0502), f.Id)

	res := Decode(f, SamsungSDIRegistry())
	require.False(res.Known)
	require.Empty(res.Signals)
}

func TestFromCANFrameRejectsRemoteAndErrorFrames(t *testing.T) {

	_, ok := FromCANFrame(can.Frame{ID: CAN_RTR_FLAG | MSG_ID_SYSTEM_STATUS, Length: 8}, time.Now())
	assert.False(t, ok)

	_, ok = FromCANFrame(can.Frame{ID: CAN_RTR_FLAG | MSG_ID_CHARGE_LIMITS}, time.Now())
	assert.False(t, ok)

	_, ok = FromCANFrame(can.Frame{ID: CAN_ERR_FLAG | 0x004, Length: 8}, time.Now())
	assert.False(t, ok)
}
