package display

import (
	"invmon/types"
	"invmon/x/mathx"
)

// Screen selects what the bars show.
type Screen uint8

const (
	Overview Screen = iota
	BatteryScreen
	EnvironmentScreen
	numScreens
)

func (s Screen) String() string {
	return [...]string{"overview", "battery", "environment"}[s]
}

func (s Screen) Next() Screen { return (s + 1) % numScreens }
func (s Screen) Prev() Screen { return (s + numScreens - 1) % numScreens }

// Bar is a full-width band of H rows starting at Y. The left Frac of it is
// drawn in FG, the rest in BG.
type Bar struct {
	Y, H int
	Frac float32
	FG   uint16
	BG   uint16
}

// Frame is what one screen shows for a snapshot.
type Frame struct {
	Header uint16
	Status uint16
	Bars   []Bar
}

const (
	headerRows = 24
	statusRows = 16
	gap        = 8
	maxPowerW  = 16 * 30
	dayS       = 24 * 3600
)

var screenHeader = [numScreens]uint16{Overview: Cyan, BatteryScreen: Green, EnvironmentScreen: Orange}

// Layout places a screen's gauges for s on a height-row panel. worst colours
// the status band while alerting is set.
func Layout(sc Screen, s types.Snapshot, worst types.Severity, alerting bool, height int) Frame {
	f := Frame{Header: screenHeader[sc], Status: Green}
	if alerting {
		f.Status = severityColor(worst)
	}

	type gauge struct {
		frac  float32
		color uint16
		ok    bool
	}
	var gs []gauge
	pw, env := s.PowerValid, s.EnvValid
	switch sc {
	case Overview:
		inv := Gray
		if s.Inverter == types.InverterActive {
			inv = Yellow
		}
		gs = []gauge{
			{s.BatteryPercent / 100, batteryColor(s.Battery), pw},
			{1, inv, pw},
			{abs(s.PowerW) / maxPowerW, Orange, pw},
		}
	case BatteryScreen:
		cur := Orange
		if s.CurrentA < 0 {
			cur = Blue
		}
		runtime := float32(1)
		if s.RuntimeS != types.RuntimeUnbounded {
			runtime = float32(s.RuntimeS) / dayS
		}
		gs = []gauge{
			{(s.VoltageV - 6) / (16 - 6), batteryColor(s.Battery), pw},
			{abs(s.CurrentA) / 30, cur, pw},
			{runtime, Green, pw},
		}
	case EnvironmentScreen:
		gs = []gauge{
			{(s.TempC + 40) / 125, Red, env},
			{s.Humidity / 100, Blue, env},
		}
	}

	top := headerRows + statusRows + gap
	n := len(gs)
	h := (height - top - gap*n) / n
	for i, g := range gs {
		b := Bar{Y: top + i*(h+gap), H: h, BG: Gray}
		if g.ok {
			b.Frac = mathx.Clamp(g.frac, 0, 1)
			b.FG = g.color
		}
		f.Bars = append(f.Bars, b)
	}
	return f
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
