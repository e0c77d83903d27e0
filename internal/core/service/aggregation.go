package service

import (
	"math"

	"github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/internal/core/port"

	"go.uber.org/zap"
)

type DefaultAggregationLogic struct {
	AggregationLimits domain.AggregationLimits
	Logger            *zap.Logger
}

func (l *DefaultAggregationLogic) Aggregate(sources []domain.SourceState) (domain.AggregatedState, bool) {
	state, ok := Aggregate(sources, l.AggregationLimits)
	if !ok {
		l.Logger.Debug("aggregation: no live sources, keeping previous state")
		return state, false
	}
	if state.AnySourceNearFull {
		requested, maxAllowed := chargeCurrentReports(sources)
		l.Logger.Debug("aggregation: near full, charge current arbitrated",
			zap.Float64s("requested", requested),
			zap.Float64s("max_allowed", maxAllowed),
			zap.Float64("limit", state.ChargeCurrentLimit),
			zap.Float64("ceiling", l.AggregationLimits.MaxChargeCurrent))
	} else {
		l.Logger.Debug("aggregation: no source near full, bulk charge allowed",
			zap.Any("socs", state.SourceSocs),
			zap.Float64("limit", state.ChargeCurrentLimit))
	}
	return state, true
}

func (l *DefaultAggregationLogic) Limits() domain.AggregationLimits {
	return l.AggregationLimits
}

// Aggregate fuses the source states into one battery. It returns false for an empty input,
// meaning the caller keeps the previous state.
//
// Voltage and temperature are plain means over the sources that report them. Current is a sum
// and SoC is weighted by the configured capacity.
func Aggregate(sources []domain.SourceState, limits domain.AggregationLimits) (domain.AggregatedState, bool) {
	if len(sources) == 0 {
		return domain.AggregatedState{}, false
	}

	var (
		totalCapacity    float64
		socWeighted      float64
		current          float64
		voltageSum       float64
		voltageCount     int
		temperatureSum   float64
		temperatureCount int
		nearFull         bool
	)
	socs := make(map[string]float64, len(sources))

	for _, s := range sources {
		capacity := math.Max(0, s.Capacity)
		totalCapacity += capacity
		if s.Voltage != nil {
			voltageSum += *s.Voltage
			voltageCount++
		}
		if s.Current != nil {
			current += *s.Current
		}
		if s.Temperature != nil {
			temperatureSum += *s.Temperature
			temperatureCount++
		}
		if s.Soc != nil {
			socWeighted += *s.Soc * capacity
			socs[s.SourceId] = *s.Soc
			if *s.Soc >= limits.NearFullSoc {
				nearFull = true
			}
		}
	}

	state := domain.AggregatedState{
		Voltage:               mean(voltageSum, voltageCount),
		Current:               current,
		Capacity:              totalCapacity,
		Temperature:           mean(temperatureSum, temperatureCount),
		DischargeCurrentLimit: math.Max(0, limits.MaxDischargeCurrent),
		AnySourceNearFull:     nearFull,
		SourceCount:           len(sources),
		SourceSocs:            socs,
	}
	if totalCapacity > 0 {
		state.Soc = socWeighted / totalCapacity
	}
	state.Power = state.Voltage * state.Current
	state.ConsumedAmphours = state.Capacity * (100 - state.Soc) / 100

	requested, maxAllowed := chargeCurrentReports(sources)
	state.ChargeCurrentLimit = ArbitrateChargeCurrent(nearFull, requested, maxAllowed, limits)

	return state, true
}

// ArbitrateChargeCurrent decides the charge current limit. The result is always within
// [0, limits.MaxChargeCurrent].
//
// Without a near-full source the charger may run at its ceiling. Otherwise the positive
// requested values and the positive maximum values are summed separately and the smaller
// total wins. With nothing reported the fallback current applies.
func ArbitrateChargeCurrent(nearFull bool, requested, maxAllowed []float64, limits domain.AggregationLimits) float64 {
	ceiling := math.Max(0, limits.MaxChargeCurrent)
	if !nearFull {
		return ceiling
	}

	requestedSum, requestedCount := positiveSum(requested)
	maxSum, maxCount := positiveSum(maxAllowed)
	if requestedCount == 0 && maxCount == 0 {
		return clamp(limits.FallbackChargeCurrent, ceiling)
	}

	candidate := math.Inf(1)
	if requestedCount > 0 {
		candidate = math.Min(candidate, requestedSum)
	}
	if maxCount > 0 {
		candidate = math.Min(candidate, maxSum)
	}
	return clamp(candidate, ceiling)
}

func chargeCurrentReports(sources []domain.SourceState) (requested, maxAllowed []float64) {
	for _, s := range sources {
		if s.ChargeCurrentLimit != nil {
			requested = append(requested, *s.ChargeCurrentLimit)
		}
		if s.MaxChargeCurrent != nil {
			maxAllowed = append(maxAllowed, *s.MaxChargeCurrent)
		}
	}
	return requested, maxAllowed
}

func positiveSum(values []float64) (float64, int) {
	sum := 0.0
	count := 0
	for _, v := range values {
		// NaN fails this check too
		if v > 0 && !math.IsInf(v, 1) {
			sum += v
			count++
		}
	}
	return sum, count
}

func clamp(value, ceiling float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	return math.Min(value, ceiling)
}

func mean(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// ensure interface compliance
var _ port.AggregationLogic = (*DefaultAggregationLogic)(nil)
