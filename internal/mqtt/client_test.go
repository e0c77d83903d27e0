package mqtt

import (
	"testing"

	"github.com/berfenger/sdibms2mqtt/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestButtonCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := buttonCommandExtractor("sdibms")
	cmd, err := parseButtonCommand(r, "sdibms/button/remove_left/press", []byte("PRESS"))

	assert.NoError(err)
	assert.Equal("remove_left", cmd.DeviceId, "device extract")
	assert.Equal(COMMAND_BUTTON, cmd.Command)
	assert.Equal(MQTT_PAYLOAD_PRESS, cmd.Payload)
}

func TestButtonCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := buttonCommandExtractor("sdibms")
	for _, topic := range []string{
		"sdibms/button/remove_left/state",
		"sdibms/sensor/battery_soc/state",
		"other/button/remove_left/press",
		"sdibms/button/remove-left/press",
	} {
		_, err := parseButtonCommand(r, topic, nil)
		assert.ErrorIs(err, ErrInvalidCommand, topic)
	}
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	cfg := config.Config{MQTT: config.MQTTConfig{Host: "localhost", Port: 1883, BaseTopic: "sdibms"}}
	c := CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)

	assert.Equal("sdibms/bridge/state", c.BridgeStateTopic())
	assert.Equal("sdibms/sensor/battery_soc/state", c.SensorStateTopic("battery_soc"))
	assert.Equal("sdibms/binary_sensor/left_connected/state", c.BinarySensorStateTopic("left_connected"))
	assert.Equal("sdibms/button/remove_left/press", c.ButtonCommandTopic("remove_left"))
	assert.Equal("sdibms/button/+/press", c.commandTopic())
	assert.Equal("homeassistant", c.HADiscoveryTopic())
}

func TestClientIdIsUnique(t *testing.T) {

	assert.NotEqual(t, clientId(), clientId())
}
