package domain

import "time"

// SourceProfile holds the static, configured properties of a battery source.
type SourceProfile struct {
	Id   string
	Name string
	// nominal capacity in Ah
	Capacity float64
	// 0 when the source has no configured maximum
	MaxChargeCurrent float64
}

// SourceState is a point-in-time view of one source. Nil fields were never decoded.
type SourceState struct {
	SourceId              string
	Name                  string
	Capacity              float64
	MaxChargeCurrent      *float64
	Voltage               *float64
	Current               *float64
	Soc                   *float64
	Soh                   *float64
	Temperature           *float64
	ChargeCurrentLimit    *float64
	DischargeCurrentLimit *float64
	AlarmBits             *uint8
	ProtectionBits        *uint8
	// every signal decoded so far, by field name
	Signals    map[string]float64
	LastUpdate time.Time
}

// Signal returns a decoded value that has no typed field.
func (s SourceState) Signal(name string) (float64, bool) {
	v, ok := s.Signals[name]
	return v, ok
}

type AggregationLimits struct {
	// hardware ceiling of the downstream charger
	MaxChargeCurrent      float64
	MaxDischargeCurrent   float64
	NearFullSoc           float64
	FallbackChargeCurrent float64
}

type AggregatedState struct {
	Voltage               float64
	Current               float64
	Soc                   float64
	Capacity              float64
	Power                 float64
	Temperature           float64
	ChargeCurrentLimit    float64
	DischargeCurrentLimit float64
	ConsumedAmphours      float64
	AnySourceNearFull     bool
	SourceCount           int
	SourceSocs            map[string]float64
}
