package display

import (
	"math/bits"

	"invmon/types"

	"tinygo.org/x/drivers/pixel"
)

// rgb returns the native RGB565 value for r, g, b. The engine swaps bytes on
// the way to the panel, so the big-endian pixel form is swapped back here.
func rgb(r, g, b uint8) uint16 {
	return bits.ReverseBytes16(uint16(pixel.NewRGB565BE(r, g, b)))
}

var (
	Black  = rgb(0, 0, 0)
	White  = rgb(255, 255, 255)
	Gray   = rgb(64, 64, 64)
	Green  = rgb(0, 200, 0)
	Blue   = rgb(0, 96, 255)
	Orange = rgb(255, 140, 0)
	Yellow = rgb(255, 220, 0)
	Red    = rgb(230, 0, 0)
	Cyan   = rgb(0, 200, 200)
)

func severityColor(s types.Severity) uint16 {
	switch s {
	case types.SeverityCritical:
		return Red
	case types.SeverityWarning:
		return Yellow
	default:
		return Blue
	}
}

func batteryColor(s types.BatteryStatus) uint16 {
	switch s {
	case types.BatteryRecharging:
		return Blue
	case types.BatteryDischarging:
		return Orange
	default:
		return Green
	}
}
