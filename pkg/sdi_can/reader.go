package sdi_can

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brutella/can"
)

var ErrBusClosed = errors.New("CAN bus closed")

type FrameHandler func(RawFrame)

// FrameReader supplies raw frames from a transport. Run blocks until ctx is done (nil error)
// or the transport fails.
type FrameReader interface {
	Run(ctx context.Context, handler FrameHandler) error
	Close() error
}

// SocketCANReader reads frames from a Linux socketcan interface.
type SocketCANReader struct {
	iface string
	bus   *can.Bus
}

func CreateSocketCANReader(iface string) (*SocketCANReader, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, fmt.Errorf("open CAN interface %s: %w", iface, err)
	}
	return &SocketCANReader{
		iface: iface,
		bus:   bus,
	}, nil
}

func (r *SocketCANReader) Run(ctx context.Context, handler FrameHandler) error {
	r.bus.SubscribeFunc(func(frame can.Frame) {
		if raw, ok := FromCANFrame(frame, time.Now()); ok {
			handler(raw)
		}
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.bus.Disconnect()
		case <-done:
		}
	}()

	err := r.bus.ConnectAndPublish()
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		return ErrBusClosed
	}
	return fmt.Errorf("CAN interface %s: %w", r.iface, err)
}

func (r *SocketCANReader) Close() error {
	return r.bus.Disconnect()
}

var _ FrameReader = (*SocketCANReader)(nil)
