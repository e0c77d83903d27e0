package service

import (
	"github.com/berfenger/sdibms2mqtt/internal/core/port"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"

	"go.uber.org/zap"
)

// FrameIngestor decodes frames of one or more sources into the store.
// It is called from the frame-arrival goroutines and is safe for concurrent use.
type FrameIngestor struct {
	Registry sdi_can.Registry
	Store    port.SourceStore
	// optional
	Recorder port.FrameRecorder
	Logger   *zap.Logger
}

func (i *FrameIngestor) Ingest(sourceId string, frame sdi_can.RawFrame) sdi_can.DecodeResult {
	if err := frame.Validate(); err != nil {
		i.Logger.Warn("ingest: invalid frame", zap.String("source", sourceId), zap.Error(err))
		return sdi_can.DecodeResult{Signals: sdi_can.SignalSet{}}
	}

	if i.Recorder != nil {
		if err := i.Recorder.Record(sourceId, frame); err != nil {
			i.Logger.Warn("ingest: could not record frame", zap.String("source", sourceId), zap.Error(err))
		}
	}

	res := sdi_can.Decode(frame, i.Registry)
	for _, w := range res.Warnings {
		if w.Kind == sdi_can.WARN_UNKNOWN_ID {
			// other devices share the bus
			i.Logger.Debug("ingest: ignoring frame", zap.String("source", sourceId), zap.Stringer("frame", frame))
			continue
		}
		i.Logger.Warn("ingest: decode warning",
			zap.String("source", sourceId),
			zap.Uint32("frame_id", w.FrameId),
			zap.String("field", w.Field),
			zap.Int("offset", w.Offset),
			zap.Int("payload_len", w.PayloadLen))
	}

	if len(res.Signals) > 0 {
		i.Store.Ingest(sourceId, res.Signals, frame.ReceivedAt)
	}
	return res
}

var _ port.FrameIngestor = (*FrameIngestor)(nil)
