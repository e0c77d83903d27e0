package job

import (
	"context"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/port"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	JOB_KEY_EVICTION = "source_eviction"
)

// NewEvictionJob drops sources that have been silent for longer than evictAfter.
// The job result is the list of evicted source ids.
func NewEvictionJob(store port.SourceStore, evictAfter time.Duration, logger *zap.Logger) *job.FunctionJob[[]string] {
	return job.NewFunctionJob(func(_ context.Context) ([]string, error) {
		evicted := store.Evict(time.Now(), evictAfter)
		if len(evicted) > 0 {
			logger.Info("eviction: sources removed", zap.Strings("sources", evicted))
		} else {
			logger.Debug("eviction: nothing to remove")
		}
		return evicted, nil
	})
}

// ScheduleEviction registers the eviction sweep on sched. It is a no-op when eviction is disabled.
func ScheduleEviction(sched quartz.Scheduler, cfg config.EvictionConfig, store port.SourceStore, logger *zap.Logger) error {
	if cfg.EvictAfterMillis <= 0 {
		return nil
	}
	evictionJob := NewEvictionJob(store, cfg.EvictAfter(), logger)
	detail := quartz.NewJobDetail(evictionJob, quartz.NewJobKey(JOB_KEY_EVICTION))
	return sched.ScheduleJob(detail, quartz.NewSimpleTrigger(cfg.Interval()))
}
