package actor

import (
	"testing"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/util"
	"github.com/berfenger/sdibms2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	require := require.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(err)
	resp, ok := result.(domain.ActorHealthResponse)
	require.True(ok)
	require.True(resp.Healthy)

	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SENSOR_ID_BATTERY_MAX_CHARGE_CURRENT,
		},
		Value:    35,
		Decimals: 1,
	})
	es.Publish(domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: domain.SourceSensorId("left", domain.SOURCE_SENSOR_CONNECTED),
		},
		Value: true,
	})

	time.Sleep(200 * time.Millisecond)

	result, err = context.RequestFuture(pid, GetPublishedRequest{}, 2*time.Second).Result()
	require.NoError(err)
	published := result.(GetPublishedResponse).Published

	base := cfg.MQTT.BaseTopic
	assert.Equal(t, "35.0", published[base+"/sensor/battery_max_charge_current/state"])
	assert.Equal(t, "on", published[base+"/binary_sensor/left_connected/state"])

	context.Stop(pid)

	time.Sleep(200 * time.Millisecond)

	as.Shutdown()
}

func TestMQTTActorDiscoveryTopics(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, nil, logger) }))

	profile := domain.SourceProfile{Id: "left"}
	dev := domain.SourceDevice(cfg.MQTT.BaseTopic, profile)
	context.Send(pid, domain.PublishDiscoveryRequest{
		Sensors: domain.SourceSensors(dev, "left"),
		Buttons: domain.SourceButtons(dev, "left"),
	})

	result, err := context.RequestFuture(pid, GetPublishedRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	discovery := result.(GetPublishedResponse).Discovery
	assert.Contains(t, discovery, cfg.MQTT.HADiscoveryTopic+"/button/"+dev.Id+"/remove_left/config")
	assert.Len(t, discovery, len(domain.SourceSensors(dev, "left"))+1)

	context.Stop(pid)

	as.Shutdown()
}
