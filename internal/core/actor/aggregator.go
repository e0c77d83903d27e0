package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/core/events"
	"github.com/berfenger/sdibms2mqtt/internal/core/port"
	. "github.com/berfenger/sdibms2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// AggregatorActor periodically fuses the live sources into one battery and publishes the
// result on the event stream. The last result is kept while no source is live.
type AggregatorActor struct {
	behavior   actor.Behavior
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc

	config      *config.Config
	store       port.SourceStore
	logic       port.AggregationLogic
	eventStream *eventstream.EventStream

	lastState *domain.AggregatedState
	lastTick  time.Time
	// sources published on the previous tick
	reporting map[string]bool

	logger *zap.Logger
}

type aggregationTick struct {
}

func NewAggregatorActor(config *config.Config, store port.SourceStore, logic port.AggregationLogic, eventStream *eventstream.EventStream, logger *zap.Logger) *AggregatorActor {
	act := &AggregatorActor{
		config:      config,
		store:       store,
		logic:       logic,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		reporting:   map[string]bool{},
		logger:      ActorLogger(domain.ACTOR_ID_AGGREGATOR, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *AggregatorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *AggregatorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("aggregator@default started", zap.Duration("interval", state.config.Aggregation.Interval()))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.lastTick = time.Now()
		state.scheduleTick(ctx)
	case *actor.Stopping, *actor.Restarting:
		if state.cancelTick != nil {
			state.cancelTick()
			state.cancelTick = nil
		}
	case aggregationTick:
		state.aggregate(time.Now())
		state.scheduleTick(ctx)
	case domain.ActorHealthRequest:
		healthy := time.Since(state.lastTick) <= 2*state.config.Aggregation.Interval()+time.Second
		state.logger.Debug("aggregator@default ActorHealthRequest", zap.Bool("healthy", healthy))
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_AGGREGATOR,
			Healthy: healthy,
			State:   state.stateName(),
		})
	case domain.GetAggregatedStateRequest:
		resp := domain.GetAggregatedStateResponse{
			Sources: state.store.Snapshot(time.Now()),
		}
		if state.lastState != nil {
			st := *state.lastState
			resp.State = &st
		}
		ForRequest(msg).Respond(ctx, resp)
	case domain.RemoveSourceRequest:
		removed := state.store.Remove(msg.SourceId)
		state.logger.Info("aggregator@default source removed", zap.String("source", msg.SourceId), zap.Bool("removed", removed))
		if state.reporting[msg.SourceId] {
			delete(state.reporting, msg.SourceId)
			state.publishDisconnected(msg.SourceId)
		}
		ForRequest(msg).Respond(ctx, domain.RemoveSourceResponse{
			Removed: removed,
		})
	default:
		state.logger.Debug("aggregator@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *AggregatorActor) scheduleTick(ctx actor.Context) {
	state.cancelTick = state.scheduler.RequestOnce(state.config.Aggregation.Interval(), ctx.Self(), aggregationTick{})
}

func (state *AggregatorActor) aggregate(now time.Time) {
	state.lastTick = now
	sources := state.store.Snapshot(now)

	aggregated, ok := state.logic.Aggregate(sources)
	if ok {
		state.lastState = &aggregated
		state.publish(events.AggregatedStateToUpdateEvents(&aggregated))
	}

	connectedTimeout := state.config.CAN.ConnectedTimeout()
	seen := make(map[string]bool, len(sources))
	for i := range sources {
		src := &sources[i]
		seen[src.SourceId] = true
		connected := connectedTimeout <= 0 || now.Sub(src.LastUpdate) <= connectedTimeout
		state.publish(events.SourceStateToUpdateEvents(src, connected))
	}
	// stale sources drop out of the snapshot
	for id := range state.reporting {
		if !seen[id] {
			state.publishDisconnected(id)
		}
	}
	state.reporting = seen
}

func (state *AggregatorActor) publishDisconnected(sourceId string) {
	state.eventStream.Publish(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SourceSensorId(sourceId, domain.SOURCE_SENSOR_CONNECTED),
		},
		Value: false,
	})
}

func (state *AggregatorActor) publish(evs []any) {
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
}

func (state *AggregatorActor) stateName() string {
	if state.lastState == nil {
		return "waiting"
	}
	return "aggregating"
}
