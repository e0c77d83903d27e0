package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/sdibms2mqtt/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel    zapcore.Level
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	CAN         CANConfig         `mapstructure:"can"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Eviction    EvictionConfig    `mapstructure:"eviction"`
	Sources     []SourceConfig    `mapstructure:"sources"`
	Port        uint              `mapstructure:"port"`
	HttpLog     bool              `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type CANConfig struct {
	ConnectedTimeoutMillis uint32 `mapstructure:"connected_timeout_millis"`
	OpenTimeoutMillis      uint32 `mapstructure:"open_timeout_millis"`
	CaptureFile            string `mapstructure:"capture_file"`
}

type AggregationConfig struct {
	IntervalMillis        uint32  `mapstructure:"interval_millis"`
	MaxChargeCurrent      float64 `mapstructure:"max_charge_current"`
	MaxDischargeCurrent   float64 `mapstructure:"max_discharge_current"`
	NearFullSoc           float64 `mapstructure:"near_full_soc"`
	FallbackChargeCurrent float64 `mapstructure:"fallback_charge_current"`
	StaleAfterMillis      int64   `mapstructure:"stale_after_millis"`
}

type EvictionConfig struct {
	IntervalMillis   uint32 `mapstructure:"interval_millis"`
	EvictAfterMillis int64  `mapstructure:"evict_after_millis"`
}

type SourceConfig struct {
	Id               string
	Name             string
	Interface        string  `mapstructure:"interface"`
	ReplayFile       string  `mapstructure:"replay_file"`
	ReplayLoop       bool    `mapstructure:"replay_loop"`
	Capacity         float64 `mapstructure:"capacity"`
	MaxChargeCurrent float64 `mapstructure:"max_charge_current"`
}

func (c AggregationConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

func (c AggregationConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMillis) * time.Millisecond
}

func (c AggregationConfig) Limits() domain.AggregationLimits {
	return domain.AggregationLimits{
		MaxChargeCurrent:      c.MaxChargeCurrent,
		MaxDischargeCurrent:   c.MaxDischargeCurrent,
		NearFullSoc:           c.NearFullSoc,
		FallbackChargeCurrent: c.FallbackChargeCurrent,
	}
}

func (c CANConfig) ConnectedTimeout() time.Duration {
	return time.Duration(c.ConnectedTimeoutMillis) * time.Millisecond
}

func (c CANConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutMillis) * time.Millisecond
}

func (c EvictionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMillis) * time.Millisecond
}

func (c EvictionConfig) EvictAfter() time.Duration {
	return time.Duration(c.EvictAfterMillis) * time.Millisecond
}

func (c SourceConfig) Profile() domain.SourceProfile {
	return domain.SourceProfile{
		Id:               c.Id,
		Name:             c.Name,
		Capacity:         c.Capacity,
		MaxChargeCurrent: c.MaxChargeCurrent,
	}
}

func (c Config) SourceProfiles() []domain.SourceProfile {
	profiles := make([]domain.SourceProfile, 0, len(c.Sources))
	for _, s := range c.Sources {
		profiles = append(profiles, s.Profile())
	}
	return profiles
}

var sourceIdRegexp = regexp.MustCompile("^[a-z0-9_]+$")

// Validate checks the bounds that must hold before any aggregation runs.
func Validate(cfg *Config) error {
	agg := cfg.Aggregation
	if agg.MaxChargeCurrent <= 0 {
		return errors.New("config param aggregation.max_charge_current should be > 0")
	}
	if agg.MaxDischargeCurrent < 0 {
		return errors.New("config param aggregation.max_discharge_current should be >= 0")
	}
	if agg.StaleAfterMillis < 0 {
		return errors.New("config param aggregation.stale_after_millis should be >= 0")
	}
	if agg.NearFullSoc <= 0 || agg.NearFullSoc > 100 {
		return errors.New("config param aggregation.near_full_soc should be in (0, 100]")
	}
	if agg.FallbackChargeCurrent < 0 {
		return errors.New("config param aggregation.fallback_charge_current should be >= 0")
	}
	if agg.IntervalMillis < 100 {
		return errors.New("config param aggregation.interval_millis should be >= 100")
	}
	if cfg.Eviction.EvictAfterMillis < 0 {
		return errors.New("config param eviction.evict_after_millis should be >= 0")
	}
	if cfg.Eviction.EvictAfterMillis > 0 && cfg.Eviction.IntervalMillis < 1000 {
		return errors.New("config param eviction.interval_millis should be >= 1000")
	}
	if len(cfg.Sources) == 0 {
		return errors.New("at least one source must be configured")
	}
	seen := map[string]bool{}
	for i, s := range cfg.Sources {
		id := strings.ToLower(s.Id)
		if !sourceIdRegexp.MatchString(id) {
			return fmt.Errorf("sources[%d]: invalid id %q. can only contain letters, numbers and underscores", i, s.Id)
		}
		if seen[id] {
			return fmt.Errorf("sources[%d]: duplicated id %q", i, s.Id)
		}
		seen[id] = true
		if s.Interface == "" && s.ReplayFile == "" {
			return fmt.Errorf("sources[%d]: interface or replay_file is required", i)
		}
		if s.Capacity < 0 {
			return fmt.Errorf("sources[%d]: capacity should be >= 0", i)
		}
		if s.MaxChargeCurrent < 0 {
			return fmt.Errorf("sources[%d]: max_charge_current should be >= 0", i)
		}
		cfg.Sources[i].Id = id
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
