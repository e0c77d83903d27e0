package sdi_can

import (
	"encoding/binary"
	"fmt"
)

// SignalSet maps a field name to its scaled value.
type SignalSet map[string]float64

type WarningKind uint8

const (
	WARN_UNKNOWN_ID WarningKind = iota
	WARN_FIELD_OUT_OF_RANGE
)

func (k WarningKind) String() string {
	switch k {
	case WARN_UNKNOWN_ID:
		return "unknown_id"
	case WARN_FIELD_OUT_OF_RANGE:
		return "field_out_of_range"
	default:
		return "unknown"
	}
}

type DecodeWarning struct {
	Kind       WarningKind
	FrameId    uint32
	Field      string
	Offset     int
	Size       int
	PayloadLen int
}

func (w DecodeWarning) String() string {
	if w.Kind == WARN_UNKNOWN_ID {
		return fmt.Sprintf("frame %#x: unknown identifier", w.FrameId)
	}
	return fmt.Sprintf("frame %#x: field %s at offset %d (size %d) exceeds payload of %d bytes",
		w.FrameId, w.Field, w.Offset, w.Size, w.PayloadLen)
}

type DecodeResult struct {
	Message  string
	Known    bool
	Signals  SignalSet
	Warnings []DecodeWarning
}

// Decode maps a frame to scaled signals using the registry. Unknown identifiers yield an empty
// set and fields that do not fit in the payload are skipped, so a partial decode is still a result.
func Decode(frame RawFrame, registry Registry) DecodeResult {
	spec, ok := registry.Lookup(frame.Id)
	if !ok {
		return DecodeResult{
			Signals: SignalSet{},
			Warnings: []DecodeWarning{{
				Kind:    WARN_UNKNOWN_ID,
				FrameId: frame.Id,
			}},
		}
	}

	result := DecodeResult{
		Message: spec.Name,
		Known:   true,
		Signals: make(SignalSet, len(spec.Fields)),
	}
	for _, f := range spec.Fields {
		size := f.Type.Size()
		if f.ByteOffset < 0 || f.ByteOffset+size > len(frame.Payload) {
			result.Warnings = append(result.Warnings, DecodeWarning{
				Kind:       WARN_FIELD_OUT_OF_RANGE,
				FrameId:    frame.Id,
				Field:      f.Name,
				Offset:     f.ByteOffset,
				Size:       size,
				PayloadLen: len(frame.Payload),
			})
			continue
		}
		result.Signals[f.Name] = rawValue(f.Type, frame.Payload[f.ByteOffset:f.ByteOffset+size]) * f.Scale
	}
	return result
}

func rawValue(t DataType, b []byte) float64 {
	switch t {
	case S8:
		return float64(int8(b[0]))
	case U16:
		return float64(binary.LittleEndian.Uint16(b))
	case S16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	default:
		// U8 and BITFIELD8
		return float64(b[0])
	}
}
