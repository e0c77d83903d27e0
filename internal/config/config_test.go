package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Aggregation: AggregationConfig{
			IntervalMillis:        1000,
			MaxChargeCurrent:      50,
			MaxDischargeCurrent:   150,
			NearFullSoc:           99,
			FallbackChargeCurrent: 30,
			StaleAfterMillis:      10000,
		},
		Eviction: EvictionConfig{
			IntervalMillis:   60000,
			EvictAfterMillis: 300000,
		},
		Sources: []SourceConfig{
			{Id: "Left", Interface: "can0", Capacity: 4840},
			{Id: "right", ReplayFile: "right.cbor", Capacity: 4840, MaxChargeCurrent: 25},
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {

	require := require.New(t)

	cfg := validConfig()
	require.NoError(Validate(&cfg))
	// ids are normalized for topic usage
	require.Equal("left", cfg.Sources[0].Id)
}

func TestValidateZeroStalenessDisables(t *testing.T) {

	cfg := validConfig()
	cfg.Aggregation.StaleAfterMillis = 0
	assert.NoError(t, Validate(&cfg))
}

func TestValidateRejects(t *testing.T) {

	cases := map[string]func(*Config){
		"zero ceiling":           func(c *Config) { c.Aggregation.MaxChargeCurrent = 0 },
		"negative ceiling":       func(c *Config) { c.Aggregation.MaxChargeCurrent = -5 },
		"negative staleness":     func(c *Config) { c.Aggregation.StaleAfterMillis = -1 },
		"near full above 100":    func(c *Config) { c.Aggregation.NearFullSoc = 101 },
		"negative fallback":      func(c *Config) { c.Aggregation.FallbackChargeCurrent = -1 },
		"fast interval":          func(c *Config) { c.Aggregation.IntervalMillis = 10 },
		"no sources":             func(c *Config) { c.Sources = nil },
		"duplicated source":      func(c *Config) { c.Sources[1].Id = "LEFT" },
		"invalid source id":      func(c *Config) { c.Sources[0].Id = "left/1" },
		"source without reader":  func(c *Config) { c.Sources[0].Interface = "" },
		"negative capacity":      func(c *Config) { c.Sources[0].Capacity = -1 },
		"negative evict after":   func(c *Config) { c.Eviction.EvictAfterMillis = -1 },
		"fast eviction interval": func(c *Config) { c.Eviction.IntervalMillis = 10 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.Error(t, Validate(&cfg))
		})
	}
}

func TestLimitsFromConfig(t *testing.T) {

	cfg := validConfig()
	limits := cfg.Aggregation.Limits()

	assert.Equal(t, 50.0, limits.MaxChargeCurrent)
	assert.Equal(t, 150.0, limits.MaxDischargeCurrent)
	assert.Equal(t, 99.0, limits.NearFullSoc)
	assert.Equal(t, 30.0, limits.FallbackChargeCurrent)
}

func TestCheckMQTTTopic(t *testing.T) {

	topic, err := CheckMQTTTopic("SdiBms")
	assert.NoError(t, err)
	assert.Equal(t, "sdibms", topic)

	_, err = CheckMQTTTopic("sdi/bms")
	assert.Error(t, err)
}
