// Command invmon is the battery/inverter monitor firmware.
package main

import (
	"context"
	"time"

	"invmon/bus"
	"invmon/drivers/aht20"
	"invmon/drivers/ili9341"
	"invmon/drivers/powermon"
	"invmon/drivers/st7735"
	"invmon/drivers/tft"
	"invmon/platform"
	"invmon/services/alerts"
	"invmon/services/config"
	"invmon/services/display"
	"invmon/services/input"
	"invmon/services/monitor"
	"invmon/services/telemetry"
	"invmon/services/watchdog"
	"invmon/types"

	"go.uber.org/multierr"
	"tinygo.org/x/drivers"
)

// device selects the embedded board config; override with
// -ldflags "-X main.device=pico-st7735".
var device = "pico"

type waiter interface{ Wait() }

// app holds what has to be torn down, in reverse start order.
type app struct {
	reg    *platform.Registry
	panel  *tft.Handle
	waits  []waiter
	i2cBus string
}

func main() {
	time.Sleep(bootDelay)
	println("[main] invmon starting, device", device)

	cfg, err := config.Load(device)
	if err != nil {
		println("[main] config:", err.Error(), "(using defaults)")
	}

	ctx, stop := runContext()
	defer stop()
	ctx = context.WithValue(ctx, config.CtxDeviceKey, device)

	b := bus.NewBus(8)
	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	a := &app{reg: openBoard(cfg)}
	a.start(ctx, b, cfg)
	println("[main] running")

	<-ctx.Done()
	if err := a.shutdown(); err != nil {
		println("[main] shutdown:", err.Error())
	}
}

func (a *app) start(ctx context.Context, b *bus.Bus, cfg types.AppConfig) {
	// Watchdog first so a hang during bring-up resets the board.
	wd := watchdog.New(a.reg.Watchdog(), cfg.Watchdog)
	if err := wd.Start(ctx, b.NewConnection("watchdog")); err != nil {
		println("[main] watchdog:", err.Error())
	} else {
		a.waits = append(a.waits, wd)
	}

	if mon := a.startSensors(cfg.Sensors); mon != nil {
		mon.Start(ctx, b.NewConnection("monitor"))
		a.waits = append(a.waits, mon)
	}

	al := alerts.New()
	al.Start(ctx, b.NewConnection("alerts"))
	a.waits = append(a.waits, al)

	if in := a.startButtons(cfg.Buttons); in != nil {
		in.Start(ctx, b.NewConnection("input"))
		a.waits = append(a.waits, in)
	}

	if ds := a.startDisplay(cfg.Display); ds != nil {
		ds.Start(ctx, b.NewConnection("display"))
		a.waits = append(a.waits, ds)
	}

	var ble telemetry.Notifier
	if cfg.Telemetry.BLE {
		if p, err := telemetry.StartBLE(cfg.Telemetry.Name); err != nil {
			println("[main] ble:", err.Error())
		} else {
			ble = p
		}
	}
	tl := telemetry.New(ble, a.reg.Serial(), cfg.Telemetry)
	tl.Start(ctx, b.NewConnection("telemetry"))
	a.waits = append(a.waits, tl)
}

func (a *app) startSensors(sc types.SensorConfig) *monitor.Service {
	i2c, err := a.reg.ClaimI2C("aht20", sc.I2C)
	if err != nil {
		println("[main] i2c:", err.Error())
		return nil
	}
	a.i2cBus = sc.I2C.Bus
	env := aht20.New(i2c)
	if err := env.Configure(aht20.Config{Address: sc.AHTAddr, Sleep: a.reg.Sleep}); err != nil {
		// The monitor keeps retrying reads; a late sensor still comes up.
		println("[main] aht20:", err.Error())
	}

	cur, err := a.reg.ClaimADC("current", sc.CurrentADC)
	if err != nil {
		println("[main] current adc:", err.Error())
		return nil
	}
	volt, err := a.reg.ClaimADC("voltage", sc.VoltageADC)
	if err != nil {
		println("[main] voltage adc:", err.Error())
		return nil
	}
	pm := powermon.New(cur, volt, powermon.Config{
		Samples:          sc.Samples,
		SensitivityVPerA: sc.SensitivityVPerA,
		ZeroOffsetV:      sc.ZeroOffsetV,
		DividerRatio:     sc.DividerRatio,
		VRef:             sc.VRef,
	})
	pm.CalibrateZero(8)
	return monitor.New(env, pm, sc)
}

func (a *app) startButtons(bc types.ButtonConfig) *input.Worker {
	w := input.New(bc)
	for _, btn := range []struct {
		name       string
		pin        int
		action     string
		longAction string
	}{
		{"prev", bc.Prev, input.ActionPrev, ""},
		{"next", bc.Next, input.ActionNext, ""},
		{"ble", bc.BLE, "", input.ActionBLEToggle},
	} {
		if btn.pin == types.NoPin {
			continue
		}
		p, err := a.reg.ClaimInput("button:"+btn.name, btn.pin, true)
		if err != nil {
			println("[main] button", btn.name, err.Error())
			continue
		}
		err = w.Register(input.Button{Name: btn.name, Pin: p, ActiveLow: true, Action: btn.action, LongAction: btn.longAction})
		if err != nil {
			println("[main] button", btn.name, err.Error())
		}
	}
	return w
}

func (a *app) startDisplay(dc types.DisplayConfig) *display.Service {
	tcfg := tft.Config{
		SPI:        dc.SPI,
		DC:         dc.DC,
		RST:        dc.RST,
		Width:      dc.Width,
		Height:     dc.Height,
		Rotation:   drivers.Rotation(dc.Rotation),
		MaxRetries: dc.MaxRetries,
		QueueSize:  dc.QueueSize,
	}
	var (
		h   *tft.Handle
		err error
	)
	switch dc.Panel {
	case "st7735":
		h, err = st7735.Init(tcfg, a.reg)
	default:
		h, err = ili9341.Init(tcfg, a.reg)
	}
	if err != nil {
		println("[main] display:", err.Error())
		return nil
	}
	a.panel = h

	var bl *display.Backlight
	if dc.LED != types.NoPin {
		if pwm, err := a.reg.ClaimPWM("backlight", dc.LED); err != nil {
			println("[main] backlight:", err.Error())
		} else {
			bl = display.NewBacklight(pwm, 400*time.Millisecond)
		}
	}
	return display.New(h, bl, display.OptionsFrom(dc))
}

func (a *app) shutdown() error {
	for i := len(a.waits) - 1; i >= 0; i-- {
		a.waits[i].Wait()
	}
	var err error
	if a.panel != nil {
		err = multierr.Append(err, a.panel.Deinit())
	}
	if a.i2cBus != "" {
		err = multierr.Append(err, a.reg.ReleaseI2C("aht20", a.i2cBus))
	}
	return multierr.Append(err, a.reg.Close())
}
