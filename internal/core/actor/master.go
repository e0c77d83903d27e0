package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/sdibms2mqtt/internal/adapter/actor"
	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/core/port"
	. "github.com/berfenger/sdibms2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type CANBusActorProvider func(source config.SourceConfig) *adactor.CANBusActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	mqttActor           *actor.PID
	aggregatorActor     *actor.PID
	canBusActors        map[string]*actor.PID
	store               port.SourceStore
	logic               port.AggregationLogic
	canBusActorProvider CANBusActorProvider
	mqttActorProvider   MQTTActorProvider
	logger              *zap.Logger
}

type healthCheckResult struct {
	mqttActorHealthy       bool
	aggregatorActorHealthy bool
	canBusConnected        map[string]bool
	checksReceived         int
	checksExpected         int
	respondTo              *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, store port.SourceStore, logic port.AggregationLogic,
	canBusActorProvider CANBusActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         &eventstream.EventStream{},
		canBusActors:        map[string]*actor.PID{},
		store:               store,
		logic:               logic,
		canBusActorProvider: canBusActorProvider,
		mqttActorProvider:   mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Aggregator child
		aggregatorActorPID, err := state.startAggregatorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.aggregatorActor = aggregatorActorPID

		// start one CAN bus child per source
		for _, source := range state.config.Sources {
			pid, err := state.startCANBusActor(ctx, source)
			if err != nil {
				panic(err)
			}
			state.canBusActors[source.Id] = pid
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(len(state.canBusActors) + 2)
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		state.requestHealth(ctx, state.mqttActor, domain.ACTOR_ID_MQTT)
		// Aggregator Actor Request
		state.requestHealth(ctx, state.aggregatorActor, domain.ACTOR_ID_AGGREGATOR)
		// CAN bus Actor Requests
		for sourceId, pid := range state.canBusActors {
			state.requestHealth(ctx, pid, domain.CANBusActorId(sourceId))
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd := ParsedMQTTCommandToCommand(*msg.Command)
			switch pcmd := cmd.(type) {
			case domain.RemoveSourceRequest:
				state.logger.Info("master@default withdraw source", zap.String("source", pcmd.SourceId))
				ctx.Send(state.aggregatorActor, pcmd)
			}
		}
	case domain.GetAggregatedStateRequest, domain.RemoveSourceRequest:
		ctx.Forward(state.aggregatorActor)
	case domain.ActorHealthResponse:
		// late answer of a finished health check
	case *actor.Terminated:
		state.logger.Error("master@default child terminated", zap.String("child", msg.Who.Id))
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			case domain.ACTOR_ID_AGGREGATOR:
				state.currentHealthCheck.aggregatorActorHealthy = true
			default:
				state.currentHealthCheck.canBusConnected[msg.Id] = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) requestHealth(ctx actor.Context, pid *actor.PID, id string) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startAggregatorActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, decider)

	aggregatorProps := actor.PropsFromProducer(func() actor.Actor {
		return NewAggregatorActor(&state.config, state.store, state.logic, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	aggregatorActorPID, err := ctx.SpawnNamed(aggregatorProps, domain.ACTOR_ID_AGGREGATOR)
	if err != nil {
		return nil, err
	}

	return aggregatorActorPID, nil
}

func (state *MasterOfPuppetsActor) startCANBusActor(ctx actor.Context, source config.SourceConfig) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	canBusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.canBusActorProvider(source)
	}, actor.WithSupervisor(supervisor))
	canBusActorPID, err := ctx.SpawnNamed(canBusProps, domain.CANBusActorId(source.Id))
	if err != nil {
		return nil, err
	}

	return canBusActorPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset(expected int) {
	state.mqttActorHealthy = false
	state.aggregatorActorHealthy = false
	state.canBusConnected = map[string]bool{}
	state.checksReceived = 0
	state.checksExpected = expected
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.checksExpected
}

// allHealthy holds when MQTT and aggregation run and at least one source is on the bus.
func (state *healthCheckResult) allHealthy() bool {
	return state.mqttActorHealthy && state.aggregatorActorHealthy && len(state.canBusConnected) > 0
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
		State:   fmt.Sprintf("%d/%d sources connected", len(state.canBusConnected), state.checksExpected-2),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
