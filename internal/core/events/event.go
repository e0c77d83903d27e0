package events

import (
	. "github.com/berfenger/sdibms2mqtt/internal/core/domain"
	"github.com/berfenger/sdibms2mqtt/pkg/sdi_can"
)

func floatEvent(id string, value float64, decimals uint) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    value,
		Decimals: decimals,
	}
}

func binaryEvent(id string, value bool) BinarySensorUpdateEvent {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: value,
	}
}

func AggregatedStateToUpdateEvents(state *AggregatedState) []any {
	var events []any

	events = append(events, floatEvent(SENSOR_ID_BATTERY_VOLTAGE, state.Voltage, 2))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_CURRENT, state.Current, 1))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_POWER, state.Power, 1))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_SOC, state.Soc, 1))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_TEMPERATURE, state.Temperature, 1))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_CAPACITY, state.Capacity, 0))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_CONSUMED_AMPHOURS, state.ConsumedAmphours, 1))
	// Charger limits
	events = append(events, floatEvent(SENSOR_ID_BATTERY_MAX_CHARGE_CURRENT, state.ChargeCurrentLimit, 1))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_MAX_DISCHARGE_CURRENT, state.DischargeCurrentLimit, 1))
	events = append(events, floatEvent(SENSOR_ID_BATTERY_SOURCE_COUNT, float64(state.SourceCount), 0))
	events = append(events, binaryEvent(SENSOR_ID_BATTERY_NEAR_FULL, state.AnySourceNearFull))

	return events
}

// SourceStateToUpdateEvents emits the fields the source has reported so far, plus its connectivity.
func SourceStateToUpdateEvents(src *SourceState, connected bool) []any {
	var events []any

	id := func(sensor string) string {
		return SourceSensorId(src.SourceId, sensor)
	}
	addOptional := func(sensor string, value *float64, decimals uint) {
		if value != nil {
			events = append(events, floatEvent(id(sensor), *value, decimals))
		}
	}
	addSignal := func(sensor, signal string, decimals uint) {
		if value, ok := src.Signal(signal); ok {
			events = append(events, floatEvent(id(sensor), value, decimals))
		}
	}
	addMask := func(sensor string, mask *uint8) {
		if mask != nil {
			events = append(events, floatEvent(id(sensor), float64(*mask), 0))
		}
	}

	addOptional(SOURCE_SENSOR_SOC, src.Soc, 0)
	addOptional(SOURCE_SENSOR_SOH, src.Soh, 0)
	addOptional(SOURCE_SENSOR_VOLTAGE, src.Voltage, 2)
	addOptional(SOURCE_SENSOR_CURRENT, src.Current, 0)
	addOptional(SOURCE_SENSOR_TEMPERATURE, src.Temperature, 0)
	addOptional(SOURCE_SENSOR_CHARGE_CURRENT_LIMIT, src.ChargeCurrentLimit, 1)
	addOptional(SOURCE_SENSOR_DISCHARGE_CURRENT_LIMIT, src.DischargeCurrentLimit, 1)
	addSignal(SOURCE_SENSOR_MIN_CELL_VOLTAGE, sdi_can.SIGNAL_MIN_CELL_VOLTAGE, 3)
	addSignal(SOURCE_SENSOR_MAX_CELL_VOLTAGE, sdi_can.SIGNAL_MAX_CELL_VOLTAGE, 3)
	addMask(SOURCE_SENSOR_ALARM_STATUS, src.AlarmBits)
	addMask(SOURCE_SENSOR_PROTECTION_STATUS, src.ProtectionBits)

	events = append(events, binaryEvent(id(SOURCE_SENSOR_CONNECTED), connected))

	return events
}
