package types

import "math"

// InverterStatus is derived from the load current.
type InverterStatus uint8

const (
	InverterIdle InverterStatus = iota
	InverterActive
)

func (s InverterStatus) String() string {
	if s == InverterActive {
		return "ACTIVE"
	}
	return "IDLE"
}

// BatteryStatus is derived from the sign and size of the battery current.
type BatteryStatus uint8

const (
	BatteryIdle BatteryStatus = iota
	BatteryDischarging
	BatteryRecharging
)

func (s BatteryStatus) String() string {
	switch s {
	case BatteryDischarging:
		return "IN USE"
	case BatteryRecharging:
		return "CHARGING"
	default:
		return "IDLE"
	}
}

// RuntimeUnbounded is reported when no current flows.
const RuntimeUnbounded = math.MaxUint64

// Snapshot is the computed system state forwarded to the display,
// telemetry and alert consumers. Retained on monitor/snapshot.
type Snapshot struct {
	TempC          float32        `json:"temp_c"`
	Humidity       float32        `json:"rh"`
	VoltageV       float32        `json:"voltage_v"`
	CurrentA       float32        `json:"current_a"`
	PowerW         float32        `json:"power_w"`
	BatteryPercent float32        `json:"battery_pct"`
	RuntimeS       uint64         `json:"runtime_s"`
	Inverter       InverterStatus `json:"inverter"`
	Battery        BatteryStatus  `json:"battery"`
	EnvValid       bool           `json:"env_valid"`
	PowerValid     bool           `json:"power_valid"`
	TSms           int64          `json:"ts_ms"`
}

// Severity drives alert colouring.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

// Alert is published on monitor/alert when a monitored quantity changes level.
type Alert struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}

// ButtonEvent is published on input/button.
type ButtonEvent struct {
	Action string `json:"action"` // "next" | "prev" | "ble_toggle"
	TSms   int64  `json:"ts_ms"`
}
