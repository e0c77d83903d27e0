package sdi_can

import (
	"errors"
	"fmt"
	"time"

	"github.com/brutella/can"
)

const (
	MAX_PAYLOAD_LEN = 8
	// standard 11-bit identifier
	SFF_ID_MASK = 0x7FF
	// extended 29-bit identifier
	EFF_ID_MASK = 0x1FFFFFFF
	// socketcan flags carried in the upper bits of the id
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
)

var ErrPayloadTooLong = errors.New("frame payload exceeds 8 bytes")

type RawFrame struct {
	Id         uint32
	Payload    []byte
	ReceivedAt time.Time
}

func (f RawFrame) Validate() error {
	if len(f.Payload) > MAX_PAYLOAD_LEN {
		return fmt.Errorf("frame %#x: %w (%d)", f.Id, ErrPayloadTooLong, len(f.Payload))
	}
	return nil
}

func (f RawFrame) String() string {
	return fmt.Sprintf("%#4x # % X", f.Id, f.Payload)
}

// FromCANFrame copies a socketcan frame. Only the first Length bytes of Data are payload.
// Remote and error frames carry no telemetry and are rejected. Extended frames keep their
// full 29-bit id, so they never alias a standard id.
func FromCANFrame(frame can.Frame, receivedAt time.Time) (RawFrame, bool) {
	if frame.ID&(CAN_RTR_FLAG|CAN_ERR_FLAG) != 0 {
		return RawFrame{}, false
	}
	id := frame.ID & SFF_ID_MASK
	if frame.ID&CAN_EFF_FLAG != 0 {
		id = frame.ID & EFF_ID_MASK
	}
	length := int(frame.Length)
	if length > MAX_PAYLOAD_LEN {
		length = MAX_PAYLOAD_LEN
	}
	payload := make([]byte, length)
	copy(payload, frame.Data[:length])
	return RawFrame{
		Id:         id,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, true
}
