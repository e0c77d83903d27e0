package sdi_can

import (
	"context"
	"time"
)

// TestFrameReader emits a fixed set of frames on every period until stopped.
type TestFrameReader struct {
	Frames []RawFrame
	Period time.Duration
	// if set, Run returns it after the first round of frames
	FailWith error
}

func CreateTestFrameReader() (FrameReader, error) {
	return &TestFrameReader{
		Frames: TestFrames(),
		Period: 100 * time.Millisecond,
	}, nil
}

func (r *TestFrameReader) Run(ctx context.Context, handler FrameHandler) error {
	ticker := time.NewTicker(r.Period)
	defer ticker.Stop()
	for {
		for _, f := range r.Frames {
			f.ReceivedAt = time.Now()
			handler(f)
		}
		if r.FailWith != nil {
			return r.FailWith
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *TestFrameReader) Close() error {
	return nil
}

// TestFrames is one cycle of a healthy battery at 80% SOC: 52.00 V, 12 A, 20.0 A charge limit.
func TestFrames() []RawFrame {
	return []RawFrame{
		{Id: MSG_ID_SYSTEM_STATUS, Payload: []byte{0x50, 0x14, 0x0C, 0x00, 0x50, 0x62, 0x01, 0x00}},
		{Id: MSG_ID_SYSTEM_CONFIGURATION, Payload: []byte{0x00, 0x00, 0x00, 0x00, 0x04, 0x04, 0x00, 0x00}},
		{Id: MSG_ID_CHARGE_LIMITS, Payload: []byte{0x2C, 0x02, 0xC8, 0x00, 0xF4, 0x01, 0xC2, 0x01}},
		{Id: MSG_ID_CELL_VOLTAGE_SUMMARY, Payload: []byte{0x5C, 0x0E, 0x66, 0x0E, 0x52, 0x0E, 0x00, 0x00}},
		{Id: MSG_ID_TEMPERATURE_SUMMARY, Payload: []byte{0x00, 0x00, 0x00, 0x00, 0x17, 0x19, 0x15, 0x00}},
	}
}

var _ FrameReader = (*TestFrameReader)(nil)
