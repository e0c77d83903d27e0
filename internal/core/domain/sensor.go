package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE                  = "bridge"
	SENSOR_ID_BATTERY_VOLTAGE               = "battery_voltage"
	SENSOR_ID_BATTERY_CURRENT               = "battery_current"
	SENSOR_ID_BATTERY_POWER                 = "battery_power"
	SENSOR_ID_BATTERY_SOC                   = "battery_soc"
	SENSOR_ID_BATTERY_CAPACITY              = "battery_capacity"
	SENSOR_ID_BATTERY_TEMPERATURE           = "battery_temperature"
	SENSOR_ID_BATTERY_MAX_CHARGE_CURRENT    = "battery_max_charge_current"
	SENSOR_ID_BATTERY_MAX_DISCHARGE_CURRENT = "battery_max_discharge_current"
	SENSOR_ID_BATTERY_CONSUMED_AMPHOURS     = "battery_consumed_amphours"
	SENSOR_ID_BATTERY_NEAR_FULL             = "battery_near_full"
	SENSOR_ID_BATTERY_SOURCE_COUNT          = "battery_source_count"
	SOURCE_SENSOR_SOC                       = "soc"
	SOURCE_SENSOR_SOH                       = "soh"
	SOURCE_SENSOR_VOLTAGE                   = "voltage"
	SOURCE_SENSOR_CURRENT                   = "current"
	SOURCE_SENSOR_TEMPERATURE               = "temperature"
	SOURCE_SENSOR_CHARGE_CURRENT_LIMIT      = "charge_current_limit"
	SOURCE_SENSOR_DISCHARGE_CURRENT_LIMIT   = "discharge_current_limit"
	SOURCE_SENSOR_MIN_CELL_VOLTAGE          = "min_cell_voltage"
	SOURCE_SENSOR_MAX_CELL_VOLTAGE          = "max_cell_voltage"
	SOURCE_SENSOR_ALARM_STATUS              = "alarm_status"
	SOURCE_SENSOR_PROTECTION_STATUS         = "protection_status"
	SOURCE_SENSOR_CONNECTED                 = "connected"
	BUTTON_ID_REMOVE_PREFIX                 = "remove_"
	STATE_CLASS_MEASUREMENT                 = "measurement"
	DEVICE_CLASS_BATTERY                    = "battery"
	DEVICE_CLASS_CURRENT                    = "current"
	DEVICE_CLASS_POWER                      = "power"
	DEVICE_CLASS_TEMPERATURE                = "temperature"
	DEVICE_CLASS_VOLTAGE                    = "voltage"
	DEVICE_CLASS_CONNECTIVITY               = "connectivity"
	DEVICE_CLASS_PROBLEM                    = "problem"
	ENTITY_CLASS_DIAGNOSTIC                 = "diagnostic"
	ENTITY_CLASS_CONFIG                     = "config"
	SENSOR_TYPE_SENSOR                      = "sensor"
	SENSOR_TYPE_BINARY                      = "binary_sensor"
)

// SourceSensorId namespaces a per-source sensor so that several sources can share a base topic.
func SourceSensorId(sourceId, sensor string) string {
	return fmt.Sprintf("%s_%s", sourceId, sensor)
}

func RemoveSourceButtonId(sourceId string) string {
	return BUTTON_ID_REMOVE_PREFIX + sourceId
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("sdibms_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "SDI BMS bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SDI BMS bridge %s", md5HashShort(baseTopic)),
	}
}

func AggregatedBatteryDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("sdibms_battery_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Aggregated battery",
		Version:      versioninfo.Short(),
		Name:         "Battery",
	}
}

func SourceDevice(baseTopic string, profile SourceProfile) Device {
	name := profile.Name
	if name == "" {
		name = profile.Id
	}
	return Device{
		Id:           fmt.Sprintf("sdibms_source_%s", md5HashShort(baseTopic+"/"+profile.Id)),
		Manufacturer: "Samsung SDI",
		Model:        "ELPM482",
		Name:         fmt.Sprintf("Battery %s", name),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func AggregatedBatterySensors(batteryDevice Device) []GenericSensor {

	var sensors []GenericSensor

	measurement := func(id, name, deviceClass, unit string) GenericSensor {
		return GenericSensor{
			Device:            batteryDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass,
			UnitOfMeasurement: unit,
			UniqueId:          uniqueId(batteryDevice.Id, id),
		}
	}

	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_VOLTAGE, "Voltage", DEVICE_CLASS_VOLTAGE, "V"))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_CURRENT, "Current", DEVICE_CLASS_CURRENT, "A"))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_POWER, "Power", DEVICE_CLASS_POWER, "W"))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_SOC, "SoC", DEVICE_CLASS_BATTERY, "%"))
	sensors = append(sensors, measurement(SENSOR_ID_BATTERY_TEMPERATURE, "Temperature", DEVICE_CLASS_TEMPERATURE, "°C"))

	capacity := measurement(SENSOR_ID_BATTERY_CAPACITY, "Capacity", "", "Ah")
	capacity.Icon = "mdi:battery-high"
	sensors = append(sensors, capacity)

	consumed := measurement(SENSOR_ID_BATTERY_CONSUMED_AMPHOURS, "Consumed amphours", "", "Ah")
	consumed.Icon = "mdi:battery-minus"
	sensors = append(sensors, consumed)

	// Charge current limit, the value the charger obeys
	chargeLimit := measurement(SENSOR_ID_BATTERY_MAX_CHARGE_CURRENT, "Max charge current", DEVICE_CLASS_CURRENT, "A")
	chargeLimit.Icon = "mdi:battery-charging-high"
	sensors = append(sensors, chargeLimit)

	dischargeLimit := measurement(SENSOR_ID_BATTERY_MAX_DISCHARGE_CURRENT, "Max discharge current", DEVICE_CLASS_CURRENT, "A")
	dischargeLimit.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
	sensors = append(sensors, dischargeLimit)

	sourceCount := measurement(SENSOR_ID_BATTERY_SOURCE_COUNT, "Live sources", "", "")
	sourceCount.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
	sourceCount.Icon = "mdi:counter"
	sensors = append(sensors, sourceCount)

	sensors = append(sensors, GenericSensor{
		Device:     batteryDevice,
		Id:         SENSOR_ID_BATTERY_NEAR_FULL,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Near full",
		Icon:       "mdi:battery-check",
		UniqueId:   uniqueId(batteryDevice.Id, SENSOR_ID_BATTERY_NEAR_FULL),
	})

	return sensors
}

func SourceSensors(sourceDevice Device, sourceId string) []GenericSensor {

	var sensors []GenericSensor

	add := func(sensor, name, deviceClass, unit, category string) {
		id := SourceSensorId(sourceId, sensor)
		sensors = append(sensors, GenericSensor{
			Device:            sourceDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass,
			UnitOfMeasurement: unit,
			EntityCategory:    category,
			UniqueId:          uniqueId(sourceDevice.Id, id),
		})
	}

	add(SOURCE_SENSOR_SOC, "SoC", DEVICE_CLASS_BATTERY, "%", "")
	add(SOURCE_SENSOR_VOLTAGE, "Voltage", DEVICE_CLASS_VOLTAGE, "V", "")
	add(SOURCE_SENSOR_CURRENT, "Current", DEVICE_CLASS_CURRENT, "A", "")
	add(SOURCE_SENSOR_TEMPERATURE, "Temperature", DEVICE_CLASS_TEMPERATURE, "°C", "")
	add(SOURCE_SENSOR_CHARGE_CURRENT_LIMIT, "Charge current limit", DEVICE_CLASS_CURRENT, "A", "")
	add(SOURCE_SENSOR_DISCHARGE_CURRENT_LIMIT, "Discharge current limit", DEVICE_CLASS_CURRENT, "A", "")
	add(SOURCE_SENSOR_SOH, "SoH", "", "%", ENTITY_CLASS_DIAGNOSTIC)
	add(SOURCE_SENSOR_MIN_CELL_VOLTAGE, "Min cell voltage", DEVICE_CLASS_VOLTAGE, "V", ENTITY_CLASS_DIAGNOSTIC)
	add(SOURCE_SENSOR_MAX_CELL_VOLTAGE, "Max cell voltage", DEVICE_CLASS_VOLTAGE, "V", ENTITY_CLASS_DIAGNOSTIC)
	add(SOURCE_SENSOR_ALARM_STATUS, "Alarm status", "", "", ENTITY_CLASS_DIAGNOSTIC)
	add(SOURCE_SENSOR_PROTECTION_STATUS, "Protection status", "", "", ENTITY_CLASS_DIAGNOSTIC)

	connectedId := SourceSensorId(sourceId, SOURCE_SENSOR_CONNECTED)
	sensors = append(sensors, GenericSensor{
		Device:         sourceDevice,
		Id:             connectedId,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Reporting",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(sourceDevice.Id, connectedId),
	})

	return sensors
}

func SourceButtons(sourceDevice Device, sourceId string) []GenericButton {
	id := RemoveSourceButtonId(sourceId)
	return []GenericButton{{
		Device:         sourceDevice,
		Id:             id,
		Name:           "Withdraw from aggregation",
		UniqueId:       uniqueId(sourceDevice.Id, id),
		Icon:           "mdi:battery-remove",
		EntityCategory: ENTITY_CLASS_CONFIG,
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
