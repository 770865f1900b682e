package monitor

import (
	"invmon/drivers/powermon"
	"invmon/types"
	"invmon/x/mathx"
)

// Battery model and status thresholds.
const (
	ZeroPercentV    = 6.0
	FullPercentV    = 12.6
	InverterActiveA = 2.0
	RechargingA     = -1.5
	DischargingA    = InverterActiveA
	MaxRuntimeS     = 7 * 86400
)

// Env is the latest temperature/humidity reading.
type Env struct {
	TempC    float32
	Humidity float32
	Valid    bool
}

// Compute derives a snapshot from the latest readings. Readings outside the
// plausible sensor ranges are marked invalid and contribute nothing.
func Compute(env Env, pw powermon.Reading, capacityAh float32) types.Snapshot {
	var s types.Snapshot

	if env.Valid && mathx.Between(env.TempC, -40, 85) && mathx.Between(env.Humidity, 0, 100) {
		s.TempC, s.Humidity, s.EnvValid = env.TempC, env.Humidity, true
	}

	if !pw.Valid || !mathx.Between(pw.VoltageV, 0, 16) || !mathx.Between(pw.CurrentA, -30, 30) {
		return s
	}
	s.PowerValid = true
	s.VoltageV, s.CurrentA, s.PowerW = pw.VoltageV, pw.CurrentA, pw.PowerW

	pct := (s.VoltageV - ZeroPercentV) / (FullPercentV - ZeroPercentV) * 100
	s.BatteryPercent = mathx.Clamp(pct, 0, 100)

	if s.CurrentA >= InverterActiveA {
		s.Inverter = types.InverterActive
	}
	switch {
	case s.CurrentA < RechargingA:
		s.Battery = types.BatteryRecharging
	case s.CurrentA > DischargingA:
		s.Battery = types.BatteryDischarging
	}
	s.RuntimeS = runtime(s, capacityAh)
	return s
}

// runtime is the time to full while recharging, otherwise the time to empty
// capped at MaxRuntimeS. No outward current means unbounded.
func runtime(s types.Snapshot, capacityAh float32) uint64 {
	if s.Battery == types.BatteryRecharging {
		toFullAh := capacityAh * (100 - s.BatteryPercent) / 100
		return uint64(toFullAh / -s.CurrentA * 3600)
	}
	if s.CurrentA <= 0 {
		return types.RuntimeUnbounded
	}
	leftAh := capacityAh * s.BatteryPercent / 100
	secs := leftAh / s.CurrentA * 3600
	if secs > MaxRuntimeS {
		return MaxRuntimeS
	}
	return uint64(secs)
}
