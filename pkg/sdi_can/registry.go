package sdi_can

type DataType uint8

const (
	U8 DataType = iota
	S8
	U16
	S16
	BITFIELD8
)

func (t DataType) String() string {
	switch t {
	case U8:
		return "U8"
	case S8:
		return "S8"
	case U16:
		return "U16"
	case S16:
		return "S16"
	case BITFIELD8:
		return "BITFIELD8"
	default:
		return "unknown"
	}
}

// Size returns the number of payload bytes the type occupies.
func (t DataType) Size() int {
	switch t {
	case U16, S16:
		return 2
	default:
		return 1
	}
}

const NO_BIT_OFFSET = -1

type FieldSpec struct {
	Name       string
	ByteOffset int
	BitOffset  int
	Type       DataType
	Scale      float64
	Unit       string
}

type MessageSpec struct {
	Id     uint32
	Name   string
	Fields []FieldSpec
}

type Registry map[uint32]MessageSpec

// Lookup returns the message layout for a bus identifier.
func (r Registry) Lookup(id uint32) (MessageSpec, bool) {
	spec, ok := r[id]
	return spec, ok
}

const (
	MSG_ID_SYSTEM_STATUS        uint32 = 0x500
	MSG_ID_SYSTEM_CONFIGURATION uint32 = 0x501
	MSG_ID_CHARGE_LIMITS        uint32 = 0x502
	MSG_ID_CELL_VOLTAGE_SUMMARY uint32 = 0x503
	MSG_ID_TEMPERATURE_SUMMARY  uint32 = 0x504
)

const (
	SIGNAL_SYSTEM_VOLTAGE            = "system_voltage"
	SIGNAL_SYSTEM_CURRENT            = "system_current"
	SIGNAL_SYSTEM_SOC                = "system_soc"
	SIGNAL_SYSTEM_SOH                = "system_soh"
	SIGNAL_SYSTEM_HEARTBEAT          = "system_heartbeat"
	SIGNAL_ALARM_STATUS              = "alarm_status"
	SIGNAL_PROTECTION_STATUS         = "protection_status"
	SIGNAL_TOTAL_TRAYS               = "total_trays"
	SIGNAL_NORMAL_TRAYS              = "normal_trays"
	SIGNAL_FAULT_TRAYS               = "fault_trays"
	SIGNAL_BATTERY_CHARGE_VOLTAGE    = "battery_charge_voltage"
	SIGNAL_CHARGE_CURRENT_LIMIT      = "charge_current_limit"
	SIGNAL_DISCHARGE_CURRENT_LIMIT   = "discharge_current_limit"
	SIGNAL_BATTERY_DISCHARGE_VOLTAGE = "battery_discharge_voltage"
	SIGNAL_AVG_CELL_VOLTAGE          = "avg_cell_voltage"
	SIGNAL_MAX_CELL_VOLTAGE          = "max_cell_voltage"
	SIGNAL_MIN_CELL_VOLTAGE          = "min_cell_voltage"
	SIGNAL_AVG_TRAY_VOLTAGE          = "avg_tray_voltage"
	SIGNAL_MAX_TRAY_VOLTAGE          = "max_tray_voltage"
	SIGNAL_MIN_TRAY_VOLTAGE          = "min_tray_voltage"
	SIGNAL_AVG_CELL_TEMP             = "avg_cell_temp"
	SIGNAL_MAX_CELL_TEMP             = "max_cell_temp"
	SIGNAL_MIN_CELL_TEMP             = "min_cell_temp"
)

func field(name string, offset int, t DataType, scale float64, unit string) FieldSpec {
	return FieldSpec{
		Name:       name,
		ByteOffset: offset,
		BitOffset:  NO_BIT_OFFSET,
		Type:       t,
		Scale:      scale,
		Unit:       unit,
	}
}

func bitfield(name string, offset, bitOffset int) FieldSpec {
	return FieldSpec{
		Name:       name,
		ByteOffset: offset,
		BitOffset:  bitOffset,
		Type:       BITFIELD8,
		Scale:      1,
	}
}

// SamsungSDIRegistry is the message table of the Samsung SDI ELPM482 BMS (CAN 2.0A, 500 kbps).
// Some fields overlap on purpose: the alarm/protection masks share bytes with voltage and
// current, and the tray voltages share bytes with the cell voltages.
func SamsungSDIRegistry() Registry {
	return Registry{
		MSG_ID_SYSTEM_STATUS: {
			Id:   MSG_ID_SYSTEM_STATUS,
			Name: "System Status",
			Fields: []FieldSpec{
				field(SIGNAL_SYSTEM_VOLTAGE, 0, U16, 0.01, "V"),
				field(SIGNAL_SYSTEM_CURRENT, 2, S16, 1, "A"),
				field(SIGNAL_SYSTEM_SOC, 4, U8, 1, "%"),
				field(SIGNAL_SYSTEM_SOH, 5, U8, 1, "%"),
				field(SIGNAL_SYSTEM_HEARTBEAT, 6, U16, 1, ""),
				bitfield(SIGNAL_ALARM_STATUS, 0, 0),
				bitfield(SIGNAL_PROTECTION_STATUS, 2, 0),
			},
		},
		MSG_ID_SYSTEM_CONFIGURATION: {
			Id:   MSG_ID_SYSTEM_CONFIGURATION,
			Name: "System Configuration",
			Fields: []FieldSpec{
				field(SIGNAL_TOTAL_TRAYS, 4, U8, 1, ""),
				field(SIGNAL_NORMAL_TRAYS, 5, U8, 1, ""),
				field(SIGNAL_FAULT_TRAYS, 6, U8, 1, ""),
			},
		},
		MSG_ID_CHARGE_LIMITS: {
			Id:   MSG_ID_CHARGE_LIMITS,
			Name: "Charge/Discharge Limits",
			Fields: []FieldSpec{
				field(SIGNAL_BATTERY_CHARGE_VOLTAGE, 0, U16, 0.1, "V"),
				field(SIGNAL_CHARGE_CURRENT_LIMIT, 2, U16, 0.1, "A"),
				field(SIGNAL_DISCHARGE_CURRENT_LIMIT, 4, U16, 0.1, "A"),
				field(SIGNAL_BATTERY_DISCHARGE_VOLTAGE, 6, U16, 0.1, "V"),
			},
		},
		MSG_ID_CELL_VOLTAGE_SUMMARY: {
			Id:   MSG_ID_CELL_VOLTAGE_SUMMARY,
			Name: "Cell Voltage Summary",
			Fields: []FieldSpec{
				field(SIGNAL_AVG_CELL_VOLTAGE, 0, U16, 0.001, "V"),
				field(SIGNAL_MAX_CELL_VOLTAGE, 2, U16, 0.001, "V"),
				field(SIGNAL_MIN_CELL_VOLTAGE, 4, U16, 0.001, "V"),
				field(SIGNAL_AVG_TRAY_VOLTAGE, 0, U16, 0.01, "V"),
				field(SIGNAL_MAX_TRAY_VOLTAGE, 2, U16, 0.01, "V"),
				field(SIGNAL_MIN_TRAY_VOLTAGE, 4, U16, 0.01, "V"),
			},
		},
		MSG_ID_TEMPERATURE_SUMMARY: {
			Id:   MSG_ID_TEMPERATURE_SUMMARY,
			Name: "Temperature Summary",
			Fields: []FieldSpec{
				field(SIGNAL_AVG_CELL_TEMP, 4, S8, 1, "°C"),
				field(SIGNAL_MAX_CELL_TEMP, 5, S8, 1, "°C"),
				field(SIGNAL_MIN_CELL_TEMP, 6, S8, 1, "°C"),
			},
		},
	}
}
