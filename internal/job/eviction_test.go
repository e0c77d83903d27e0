package job

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/store"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"

	"github.com/reugn/go-quartz/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEvictionJobRemovesSilentSources(t *testing.T) {

	require := require.New(t)

	s := store.NewSourceStore(nil, 0)
	now := time.Now()
	s.Ingest("old", sdi_can.SignalSet{sdi_can.SIGNAL_SYSTEM_SOC: 50}, now.Add(-time.Hour))
	s.Ingest("fresh", sdi_can.SignalSet{sdi_can.SIGNAL_SYSTEM_SOC: 60}, now)

	evictionJob := NewEvictionJob(s, time.Minute, zap.NewNop())
	require.NoError(evictionJob.Execute(context.Background()))
	require.Equal([]string{"old"}, evictionJob.Result())

	snap := s.Snapshot(now)
	require.Len(snap, 1)
	require.Equal("fresh", snap[0].SourceId)
}

func TestScheduleEviction(t *testing.T) {

	require := require.New(t)

	s := store.NewSourceStore(nil, 0)
	s.Ingest("old", sdi_can.SignalSet{sdi_can.SIGNAL_SYSTEM_SOC: 50}, time.Now().Add(-time.Hour))

	sched, err := quartz.NewStdScheduler()
	require.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	cfg := config.EvictionConfig{IntervalMillis: 100, EvictAfterMillis: 1000}
	require.NoError(ScheduleEviction(sched, cfg, s, zap.NewNop()))

	keys, err := sched.GetJobKeys()
	require.NoError(err)
	require.Len(keys, 1)

	time.Sleep(500 * time.Millisecond)
	require.Empty(s.Snapshot(time.Now()))

	sched.Stop()
	sched.Wait(ctx)
}

func TestScheduleEvictionDisabled(t *testing.T) {

	require := require.New(t)

	sched, err := quartz.NewStdScheduler()
	require.NoError(err)

	s := store.NewSourceStore(nil, 0)
	require.NoError(ScheduleEviction(sched, config.EvictionConfig{IntervalMillis: 100}, s, zap.NewNop()))

	keys, err := sched.GetJobKeys()
	require.NoError(err)
	require.Empty(keys)
}
