package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"invmon/bus"
	"invmon/drivers/ili9341"
	"invmon/drivers/tft"
	"invmon/platform"
	"invmon/services/alerts"
	"invmon/services/input"
	"invmon/services/monitor"
	"invmon/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fullIdle() types.Snapshot {
	return types.Snapshot{
		TempC: 25, Humidity: 45, VoltageV: 12.6, BatteryPercent: 100,
		RuntimeS: types.RuntimeUnbounded, EnvValid: true, PowerValid: true,
	}
}

func TestPaletteIsNativeRGB565(t *testing.T) {
	if Green != 0x0640 || Red != 0xE000 || White != 0xFFFF || Black != 0 {
		t.Fatalf("palette: green=%#04x red=%#04x white=%#04x", Green, Red, White)
	}
}

func TestScreensCycle(t *testing.T) {
	if Overview.Prev() != EnvironmentScreen || EnvironmentScreen.Next() != Overview {
		t.Fatalf("screen order does not wrap")
	}
	if BatteryScreen.String() != "battery" {
		t.Fatalf("name %q", BatteryScreen.String())
	}
}

func TestLayoutGauges(t *testing.T) {
	s := fullIdle()
	s.BatteryPercent = 40
	s.Battery = types.BatteryRecharging
	f := Layout(Overview, s, 0, false, 320)
	if f.Header != Cyan || f.Status != Green || len(f.Bars) != 3 {
		t.Fatalf("overview frame: %+v", f)
	}
	if b := f.Bars[0]; b.Frac != 0.4 || b.FG != Blue {
		t.Fatalf("battery bar: %+v", b)
	}
	last := f.Bars[2]
	if last.Y+last.H > 320 || f.Bars[0].Y != headerRows+statusRows+gap {
		t.Fatalf("bars outside panel: %+v", f.Bars)
	}

	s.EnvValid = false
	f = Layout(EnvironmentScreen, s, types.SeverityCritical, true, 320)
	if f.Status != Red || len(f.Bars) != 2 {
		t.Fatalf("environment frame: %+v", f)
	}
	for _, b := range f.Bars {
		if b.Frac != 0 {
			t.Fatalf("invalid sensor drew a gauge: %+v", b)
		}
	}

	s = fullIdle()
	s.CurrentA = -45
	f = Layout(BatteryScreen, s, 0, false, 320)
	if b := f.Bars[1]; b.Frac != 1 || b.FG != Blue {
		t.Fatalf("current gauge should clamp: %+v", b)
	}
	if b := f.Bars[2]; b.Frac != 1 {
		t.Fatalf("unbounded runtime gauge: %+v", b)
	}
}

func TestDimPercent(t *testing.T) {
	after := [3]time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second}
	for _, c := range []struct {
		idle time.Duration
		want uint16
	}{
		{0, 100}, {29 * time.Second, 100}, {30 * time.Second, 50}, {61 * time.Second, 25}, {5 * time.Minute, 0},
	} {
		if got := DimPercent(c.idle, after); got != c.want {
			t.Fatalf("DimPercent(%v) = %d, want %d", c.idle, got, c.want)
		}
	}
}

type fakePWM struct {
	mu     sync.Mutex
	levels []uint16
}

func (p *fakePWM) Set(l uint16) { p.mu.Lock(); p.levels = append(p.levels, l); p.mu.Unlock() }
func (p *fakePWM) Top() uint16  { return 1000 }
func (p *fakePWM) last() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[len(p.levels)-1]
}

func TestBacklightFades(t *testing.T) {
	pwm := &fakePWM{}
	bl := NewBacklight(pwm, 40*time.Millisecond)
	defer bl.Close()
	if pwm.last() != 1000 {
		t.Fatalf("backlight should start at full, got %d", pwm.last())
	}

	bl.Set(25)
	deadline := time.Now().Add(time.Second)
	for bl.Level() != 250 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if bl.Level() != 250 || pwm.last() != 250 || bl.Percent() != 25 {
		t.Fatalf("fade did not settle: level=%d pwm=%d", bl.Level(), pwm.last())
	}
	pwm.mu.Lock()
	steps := len(pwm.levels)
	pwm.mu.Unlock()
	if steps < 3 {
		t.Fatalf("fade jumped in %d steps", steps)
	}
}

func startDisplay(t *testing.T) (*platform.SimPanel, *bus.Connection, *Service, func()) {
	t.Helper()
	host := platform.NewHost(platform.HostOptions{FastSleep: true})
	def := types.DefaultAppConfig().Display
	h, err := ili9341.Init(tft.Config{SPI: def.SPI, DC: def.DC, RST: def.RST}, host)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	b := bus.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	svc := New(h, nil, Options{Refresh: 5 * time.Millisecond, PopupHold: time.Hour})
	svc.Start(ctx, b.NewConnection("display"))
	stop := func() {
		cancel()
		svc.Wait()
		if err := h.Deinit(); err != nil {
			t.Errorf("deinit: %v", err)
		}
		_ = host.Close()
	}
	return host.Panel(), b.NewConnection("test"), svc, stop
}

func waitPixel(t *testing.T, p *platform.SimPanel, x, y int, want uint16) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Pixel(x, y) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pixel (%d,%d) = %#04x, want %#04x", x, y, p.Pixel(x, y), want)
}

func TestServiceRendersScreens(t *testing.T) {
	panel, conn, svc, stop := startDisplay(t)
	defer stop()

	conn.Publish(conn.NewMessage(monitor.TopicSnapshot, fullIdle(), true))
	waitPixel(t, panel, 0, 0, Cyan)
	barY := headerRows + statusRows + gap + 1
	waitPixel(t, panel, 239, barY, Green)
	waitPixel(t, panel, 5, headerRows+1, Green)

	conn.Publish(conn.NewMessage(input.TopicButton, types.ButtonEvent{Action: input.ActionPrev}, false))
	waitPixel(t, panel, 0, 0, Orange)

	conn.Publish(conn.NewMessage(alerts.TopicAlert, types.Alert{Severity: types.SeverityCritical, Title: "VOLTAGE TOO LOW!"}, false))
	waitPixel(t, panel, 0, 0, Red)

	st := svc.Stats()
	if st.Frames == 0 || st.Flushed == 0 || st.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
