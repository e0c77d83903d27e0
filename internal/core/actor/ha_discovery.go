package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	HADISCOVERY_RETRY_INTERVAL = 2 * time.Second
)

// HADiscoveryActor announces the Home Assistant entities once MQTT is up, then idles.
type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler
	mqttActor *actor.PID
	attempts  int

	logger *zap.Logger
}

type discoveryRetry struct {
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.requestMQTTHealth(ctx)
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			state.attempts++
			state.logger.Info("hadiscovery@healthcheck MQTT not ready, retrying", zap.Int("attempt", state.attempts))
			state.scheduler.RequestOnce(HADISCOVERY_RETRY_INTERVAL, ctx.Self(), discoveryRetry{})
			return
		}
		sensors, buttons := DiscoveryEntities(state.config)
		state.logger.Info("hadiscovery@healthcheck publishing discovery", zap.Int("sensors", len(sensors)), zap.Int("buttons", len(buttons)))
		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: sensors,
			Buttons: buttons,
		})
		state.behavior.Become(state.Done)
	case discoveryRetry:
		state.requestMQTTHealth(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) requestMQTTHealth(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
		}
	})
}

// DiscoveryEntities lists the bridge, the aggregated battery and every configured source.
func DiscoveryEntities(cfg *config.Config) ([]domain.GenericSensor, []domain.GenericButton) {
	var sensors []domain.GenericSensor
	var buttons []domain.GenericButton

	bridgeDevice := domain.BridgeDevice(cfg.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	batteryDevice := domain.AggregatedBatteryDevice(cfg.MQTT.BaseTopic)
	batteryDevice.ViaDevice = bridgeDevice.Id
	batterySensors := domain.AggregatedBatterySensors(batteryDevice)
	for i := range batterySensors {
		// the full device description is sent once
		if i > 0 {
			batterySensors[i].Device = domain.IdDevice(batteryDevice)
		}
		sensors = append(sensors, batterySensors[i])
	}

	for _, source := range cfg.Sources {
		sourceDevice := domain.SourceDevice(cfg.MQTT.BaseTopic, source.Profile())
		sourceDevice.ViaDevice = bridgeDevice.Id
		sourceSensors := domain.SourceSensors(sourceDevice, source.Id)
		for i := range sourceSensors {
			if i > 0 {
				sourceSensors[i].Device = domain.IdDevice(sourceDevice)
			}
			sensors = append(sensors, sourceSensors[i])
		}
		buttons = append(buttons, domain.SourceButtons(domain.IdDevice(sourceDevice), source.Id)...)
	}

	return sensors, buttons
}
