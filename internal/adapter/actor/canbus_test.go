package actor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/util/actorutil"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingIngestor struct {
	mu     sync.Mutex
	frames map[string]int
}

func (i *countingIngestor) Ingest(sourceId string, frame sdi_can.RawFrame) sdi_can.DecodeResult {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.frames == nil {
		i.frames = map[string]int{}
	}
	i.frames[sourceId]++
	return sdi_can.Decode(frame, sdi_can.SamsungSDIRegistry())
}

func (i *countingIngestor) count(sourceId string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.frames[sourceId]
}

func testCANConfig() config.CANConfig {
	return config.CANConfig{
		ConnectedTimeoutMillis: 1000,
		OpenTimeoutMillis:      1000,
	}
}

func TestCANBusActorIngestsFrames(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	ingestor := &countingIngestor{}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewCANBusActor("left", testCANConfig(), sdi_can.CreateTestFrameReader, ingestor, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(500 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy, "frames are flowing")
	assert.Equal(t, "reading", resp.State)
	assert.Equal(t, domain.CANBusActorId("left"), resp.Id)
	assert.GreaterOrEqual(t, ingestor.count("left"), len(sdi_can.TestFrames()))

	context.Stop(pid)

	time.Sleep(200 * time.Millisecond)

	as.Shutdown()
}

func TestCANBusActorSilentBusIsNotHealthy(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewCANBusActor("left", testCANConfig(), func() (sdi_can.FrameReader, error) {
			return &sdi_can.TestFrameReader{Period: time.Hour}, nil
		}, &countingIngestor{}, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(300 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.ActorHealthResponse)
	assert.False(t, resp.Healthy, "no frame received yet")
	assert.Equal(t, "reading", resp.State)

	context.Stop(pid)

	as.Shutdown()
}

func TestCANBusActorOpenFailure(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	var mu sync.Mutex
	attempts := 0
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, func(reason interface{}) actor.Directive {
		return actor.RestartDirective
	})
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewCANBusActor("left", testCANConfig(), func() (sdi_can.FrameReader, error) {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return nil, errors.New("no such device")
			}
			return sdi_can.CreateTestFrameReader()
		}, &countingIngestor{}, logger)
	}, actor.WithSupervisor(supervisor))

	// a parent is needed for the supervisor to apply
	parentProps := actor.PropsFromFunc(func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case *actor.Started:
			ctx.SpawnNamed(props, domain.CANBusActorId("left"))
		case domain.ActorHealthRequest:
			ctx.Forward(ctx.Children()[0])
		}
	}, actor.WithSupervisor(supervisor))
	parent := context.Spawn(parentProps)

	time.Sleep(1 * time.Second)

	result, err := context.RequestFuture(parent, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.ActorHealthResponse)
	assert.True(t, resp.Healthy, "recovered after restarts")

	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()

	context.Stop(parent)

	as.Shutdown()
}

type closeTrackingReader struct {
	sdi_can.TestFrameReader
	closed *atomic.Int32
}

func (r *closeTrackingReader) Close() error {
	r.closed.Add(1)
	return nil
}

func TestCANBusActorClosesReaderOpenedAfterTimeout(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	var opened, closed atomic.Int32
	cfg := testCANConfig()
	cfg.OpenTimeoutMillis = 100
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewCANBusActor("left", cfg, func() (sdi_can.FrameReader, error) {
			// slower than the open timeout
			time.Sleep(300 * time.Millisecond)
			opened.Add(1)
			return &closeTrackingReader{
				TestFrameReader: sdi_can.TestFrameReader{Period: time.Hour},
				closed:          &closed,
			}, nil
		}, &countingIngestor{}, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(800 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err == nil {
		resp := result.(domain.ActorHealthResponse)
		assert.Equal(t, "opening", resp.State)
		assert.False(t, resp.Healthy)
	}

	context.Stop(pid)

	// let the last in-flight open finish
	time.Sleep(500 * time.Millisecond)

	assert.GreaterOrEqual(t, opened.Load(), int32(1))
	assert.Equal(t, opened.Load(), closed.Load(), "every late reader is closed")

	as.Shutdown()
}
