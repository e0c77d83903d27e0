package util

import (
	"github.com/berfenger/sdibms2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "sdibms",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		CAN: config.CANConfig{
			ConnectedTimeoutMillis: 2000,
			OpenTimeoutMillis:      1000,
		},
		Aggregation: config.AggregationConfig{
			IntervalMillis:        200,
			MaxChargeCurrent:      50,
			MaxDischargeCurrent:   150,
			NearFullSoc:           99,
			FallbackChargeCurrent: 30,
			StaleAfterMillis:      5000,
		},
		Eviction: config.EvictionConfig{
			IntervalMillis:   60000,
			EvictAfterMillis: 600000,
		},
		Sources: []config.SourceConfig{
			{Id: "left", Name: "Left", Interface: "vcan0", Capacity: 4840},
			{Id: "right", Name: "Right", Interface: "vcan1", Capacity: 4840, MaxChargeCurrent: 25},
		},
		Port: 8080,
	}
}
