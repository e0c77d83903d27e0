package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/sdibms2mqtt/internal/config"
	"github.com/berfenger/sdibms2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := config.Config{MQTT: config.MQTTConfig{Host: "localhost", Port: 1883, BaseTopic: "sdibms", HADiscoveryTopic: "ha"}}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestSourceSensorDiscovery(t *testing.T) {

	require := require.New(t)

	client := testClient()
	dev := domain.SourceDevice("sdibms", domain.SourceProfile{Id: "left", Name: "Left"})
	sensors := domain.SourceSensors(dev, "left")

	var connected *domain.GenericSensor
	for i := range sensors {
		if sensors[i].Id == domain.SourceSensorId("left", domain.SOURCE_SENSOR_CONNECTED) {
			connected = &sensors[i]
		}
	}
	require.NotNil(connected)

	msg := GenericSensorToHADiscoveryMessage(client, *connected)
	require.Equal("sdibms/binary_sensor/left_connected/state", msg.StateTopic)
	require.Equal(MQTT_PAYLOAD_ON, msg.PayloadOn)
	require.Equal(MQTT_PAYLOAD_OFF, msg.PayloadOff)
	require.Equal("sdibms/bridge/state", msg.AvTopic)
	require.Equal("ha/binary_sensor/"+dev.Id+"/left_connected/config", HADiscoverySensorTopic(client, *connected))

	soc := GenericSensorToHADiscoveryMessage(client, sensors[0])
	require.Equal("sdibms/sensor/left_soc/state", soc.StateTopic)
	require.Empty(soc.PayloadOn)
}

func TestBridgeSensorDiscovery(t *testing.T) {

	client := testClient()
	sensor := domain.BridgeSensors(domain.BridgeDevice("sdibms"))[0]
	msg := GenericSensorToHADiscoveryMessage(client, sensor)

	assert.Equal(t, client.BridgeStateTopic(), msg.StateTopic)
	assert.Equal(t, MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Empty(t, msg.AvTopic)
}

func TestButtonDiscovery(t *testing.T) {

	require := require.New(t)

	client := testClient()
	dev := domain.SourceDevice("sdibms", domain.SourceProfile{Id: "left"})
	button := domain.SourceButtons(dev, "left")[0]

	msg := GenericButtonToHADiscoveryMessage(client, button)
	require.Equal("sdibms/button/remove_left/press", msg.CommandTopic)
	require.Equal("ha/button/"+dev.Id+"/remove_left/config", HADiscoveryButtonTopic(client, button))

	payload, err := json.Marshal(msg)
	require.NoError(err)
	var decoded map[string]any
	require.NoError(json.Unmarshal(payload, &decoded))
	require.NotContains(decoded, "state_topic")
	require.Equal(MQTT_PAYLOAD_PRESS, decoded["payload_press"])
}
