package sdi_can

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CapturedFrame is one entry of a capture file.
type CapturedFrame struct {
	Source     string    `cbor:"1,keyasint"`
	Id         uint32    `cbor:"2,keyasint"`
	Payload    []byte    `cbor:"3,keyasint"`
	ReceivedAt time.Time `cbor:"4,keyasint"`
}

var captureEncMode cbor.EncMode
var captureDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	captureEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	captureDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// CaptureRecorder appends received frames to a CBOR file.
// It is safe for concurrent use by several sources.
type CaptureRecorder struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

func CreateCaptureRecorder(path string) (*CaptureRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &CaptureRecorder{
		file:    f,
		encoder: captureEncMode.NewEncoder(f),
	}, nil
}

func (r *CaptureRecorder) Record(source string, frame RawFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	return r.encoder.Encode(CapturedFrame{
		Source:     source,
		Id:         frame.Id,
		Payload:    frame.Payload,
		ReceivedAt: frame.ReceivedAt,
	})
}

// Close can be called more than once; later Record calls are ignored.
func (r *CaptureRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadCapture loads every frame of a capture file. A truncated trailing entry ends the read.
func ReadCapture(path string) ([]CapturedFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var frames []CapturedFrame
	dec := captureDecMode.NewDecoder(f)
	for {
		var cf CapturedFrame
		if err := dec.Decode(&cf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, nil
			}
			return frames, err
		}
		frames = append(frames, cf)
	}
}

// CaptureReader replays a capture file as if the frames were arriving from a bus,
// keeping the original inter-frame spacing and stamping them with the current time.
type CaptureReader struct {
	frames []RawFrame
	gaps   []time.Duration
	loop   bool
}

// CreateCaptureReader loads the frames recorded for source (all frames when source is empty).
func CreateCaptureReader(path, source string, loop bool) (*CaptureReader, error) {
	captured, err := ReadCapture(path)
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", path, err)
	}
	r := &CaptureReader{loop: loop}
	var prev time.Time
	for _, cf := range captured {
		if source != "" && cf.Source != source {
			continue
		}
		gap := time.Duration(0)
		if !prev.IsZero() && cf.ReceivedAt.After(prev) {
			gap = cf.ReceivedAt.Sub(prev)
		}
		prev = cf.ReceivedAt
		r.frames = append(r.frames, RawFrame{Id: cf.Id, Payload: cf.Payload})
		r.gaps = append(r.gaps, gap)
	}
	if len(r.frames) == 0 {
		return nil, fmt.Errorf("capture %s has no frames for source %q", path, source)
	}
	return r, nil
}

func (r *CaptureReader) Run(ctx context.Context, handler FrameHandler) error {
	for {
		for i, f := range r.frames {
			if r.gaps[i] > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(r.gaps[i]):
				}
			} else if ctx.Err() != nil {
				return nil
			}
			f.ReceivedAt = time.Now()
			handler(f)
		}
		if !r.loop {
			<-ctx.Done()
			return nil
		}
		// keep a minimal pace between rounds
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Millisecond):
		}
	}
}

func (r *CaptureReader) Close() error {
	return nil
}

var _ FrameReader = (*CaptureReader)(nil)
