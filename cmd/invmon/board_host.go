//go:build !rp2040

package main

import (
	"context"
	"os"
	"os/signal"

	"invmon/drivers/powermon"
	"invmon/platform"
	"invmon/types"
)

const bootDelay = 0

// openBoard runs the firmware against the simulated board: an AHT20 on the
// sensor bus and a battery at 12.2 V supplying 3 A.
func openBoard(cfg types.AppConfig) *platform.Registry {
	h := platform.NewHost(platform.HostOptions{
		PanelDC:     cfg.Display.DC,
		PanelWidth:  int(cfg.Display.Width),
		PanelHeight: int(cfg.Display.Height),
	})
	h.AttachI2C(cfg.Sensors.I2C.Bus, platform.NewSimAHT20(24, 45))

	sc := cfg.Sensors
	h.ADCPin(sc.VoltageADC).Store(powermon.RawFor(12.2/sc.DividerRatio, sc.VRef))
	h.ADCPin(sc.CurrentADC).Store(powermon.RawFor(sc.ZeroOffsetV+3*sc.SensitivityVPerA, sc.VRef))
	return h.Registry
}

func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
