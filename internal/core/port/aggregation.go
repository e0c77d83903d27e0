package port

import (
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"
)

type AggregationLogic interface {
	// Aggregate returns false when there is nothing to aggregate and the previous state must be kept.
	Aggregate(sources []domain.SourceState) (domain.AggregatedState, bool)
	Limits() domain.AggregationLimits
}

type SourceStore interface {
	Ingest(sourceId string, signals sdi_can.SignalSet, ts time.Time)
	Snapshot(now time.Time) []domain.SourceState
	Remove(sourceId string) bool
	Evict(now time.Time, olderThan time.Duration) []string
}

type FrameRecorder interface {
	Record(source string, frame sdi_can.RawFrame) error
}

type FrameIngestor interface {
	Ingest(sourceId string, frame sdi_can.RawFrame) sdi_can.DecodeResult
}
