package alerts

import (
	"invmon/types"
	"invmon/x/fmtx"
)

// Quantity is a monitored snapshot field.
type Quantity uint8

const (
	Voltage Quantity = iota
	Current
	Temperature
	Humidity
	Battery
	numQuantities
)

func (q Quantity) String() string {
	return [...]string{"voltage", "current", "temperature", "humidity", "battery"}[q]
}

type rule struct {
	hit   func(v float32) bool
	sev   types.Severity
	title string
	body  string // format for the measured value
}

func le(t float32) func(float32) bool { return func(v float32) bool { return v <= t } }
func ge(t float32) func(float32) bool { return func(v float32) bool { return v >= t } }
func gt(t float32) func(float32) bool { return func(v float32) bool { return v > t } }

// Rules are tried in order; the first hit sets the level.
var rules = [numQuantities][]rule{
	Voltage: {
		{le(9.0), types.SeverityCritical, "VOLTAGE TOO LOW!", "%.2fV  threshold: 9.0V\nBattery near empty.\nShutdown imminent."},
		{le(10.5), types.SeverityWarning, "VOLTAGE LOW!", "%.2fV  threshold: 10.5V\nBattery depleting."},
		{gt(12.6), types.SeverityWarning, "VOLTAGE HIGH!", "%.2fV  threshold: 12.6V\nPossible overcharge."},
	},
	Current: {
		{le(-15), types.SeverityCritical, "CHARGE CURRENT TOO HIGH!", "%.2fA  threshold: -15.0A\nCharger overcurrent.\nCheck charger."},
		{le(-10), types.SeverityWarning, "CHARGE CURRENT HIGH!", "%.2fA  threshold: -10.0A\nCharger current elevated."},
		{ge(25), types.SeverityCritical, "LOAD CURRENT TOO HIGH!", "%.2fA  threshold: 25.0A\nLoad overcurrent.\nReduce load now."},
		{ge(20), types.SeverityWarning, "LOAD CURRENT HIGH!", "%.2fA  threshold: 20.0A\nLoad approaching limit."},
	},
	Temperature: {
		{le(0), types.SeverityCritical, "TEMPERATURE TOO LOW!", "%.2f°C  threshold: 0°C\nFreezing conditions.\nCheck environment."},
		{le(10), types.SeverityWarning, "TEMPERATURE LOW!", "%.2f°C  threshold: 10°C\nCold conditions."},
		{ge(60), types.SeverityCritical, "TEMPERATURE TOO HIGH!", "%.2f°C  threshold: 60°C\nThermal danger.\nCheck cooling."},
		{ge(45), types.SeverityWarning, "TEMPERATURE HIGH!", "%.2f°C  threshold: 45°C\nTemperature elevated."},
	},
	Humidity: {
		{le(10), types.SeverityCritical, "HUMIDITY TOO LOW!", "%.2f%%  threshold: 10%%\nVery dry conditions.\nStatic risk."},
		{le(20), types.SeverityWarning, "HUMIDITY LOW!", "%.2f%%  threshold: 20%%\nDry conditions."},
		{ge(80), types.SeverityCritical, "HUMIDITY TOO HIGH!", "%.2f%%  threshold: 80%%\nCondensation risk.\nCheck ventilation."},
		{ge(70), types.SeverityWarning, "HUMIDITY HIGH!", "%.2f%%  threshold: 70%%\nHumidity elevated."},
	},
	Battery: {
		{le(5), types.SeverityCritical, "BATTERY SoC TOO LOW!", "%.2f%%  threshold: 5%%\nNear shutdown.\nCharge immediately."},
		{le(10), types.SeverityWarning, "BATTERY SoC LOW!", "%.2f%%  threshold: 10%%\nBattery getting low."},
		{le(15), types.SeverityWarning, "BATTERY SoC LOW!", "%.2f%%  threshold: 15%%\nBattery low."},
		{le(50), types.SeverityInfo, "BATTERY SoC NOTICE!", "%.2f%%  threshold: 50%%\nBattery below half."},
	},
}

// Level is 0 when v is in range, otherwise 1 + the index of the matching rule.
func Level(q Quantity, v float32) int {
	for i, r := range rules[q] {
		if r.hit(v) {
			return i + 1
		}
	}
	return 0
}

// value extracts q from s and reports whether the source sensor was valid.
func value(q Quantity, s types.Snapshot) (float32, bool) {
	switch q {
	case Voltage:
		return s.VoltageV, s.PowerValid
	case Current:
		return s.CurrentA, s.PowerValid
	case Temperature:
		return s.TempC, s.EnvValid
	case Humidity:
		return s.Humidity, s.EnvValid
	default:
		return s.BatteryPercent, s.PowerValid
	}
}

func alertFor(q Quantity, level int, v float32) types.Alert {
	r := rules[q][level-1]
	return types.Alert{Severity: r.sev, Title: r.title, Body: fmtx.Sprintf(r.body, v)}
}

// Tracker remembers the level of every quantity and reports entries into a
// new out-of-range level.
type Tracker struct {
	levels [numQuantities]int
}

// Update classifies s and returns alerts for quantities whose level changed
// to a non-zero one. Quantities whose sensor is invalid keep their level.
func (t *Tracker) Update(s types.Snapshot) []types.Alert {
	var out []types.Alert
	for q := Quantity(0); q < numQuantities; q++ {
		v, ok := value(q, s)
		if !ok {
			continue
		}
		l := Level(q, v)
		if l == t.levels[q] {
			continue
		}
		t.levels[q] = l
		if l != 0 {
			out = append(out, alertFor(q, l, v))
		}
	}
	return out
}

// Worst is the highest severity among the current levels, and false when
// every quantity is in range.
func (t *Tracker) Worst() (types.Severity, bool) {
	var worst types.Severity
	found := false
	for q, l := range t.levels {
		if l == 0 {
			continue
		}
		if sev := rules[q][l-1].sev; !found || sev > worst {
			worst = sev
		}
		found = true
	}
	return worst, found
}
