//go:build !rp2040

package platform

import (
	"errors"
	"testing"

	"invmon/drivers/tft"
	"invmon/errcode"
	"invmon/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func spiCfg(bus string) types.SPIConfig {
	return types.SPIConfig{Bus: bus, SCK: 14, SDO: 15, SDI: types.NoPin, CS: 13}
}

func TestPinClaimsAreExclusive(t *testing.T) {
	h := NewHost(HostOptions{FastSleep: true})
	defer h.Close()

	if _, err := h.ClaimOutput("a", 5); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := h.ClaimOutput("a", 5); err != nil {
		t.Fatalf("re-claim by owner should succeed: %v", err)
	}
	if _, err := h.ClaimInput("b", 5, true); !errors.Is(err, errcode.PinInUse) {
		t.Fatalf("want PinInUse, got %v", err)
	}
	if _, err := h.ClaimOutput("b", 40); !errors.Is(err, errcode.UnknownPin) {
		t.Fatalf("want UnknownPin, got %v", err)
	}
	h.ReleasePin("b", 5) // not the owner
	if o, _ := h.Owner(5); o != "a" {
		t.Fatalf("owner changed to %q", o)
	}
	h.ReleasePin("a", 5)
	if _, ok := h.Owner(5); ok {
		t.Fatal("pin still owned after release")
	}
}

func TestSPIClaimTakesPinsAndBus(t *testing.T) {
	h := NewHost(HostOptions{FastSleep: true})
	defer h.Close()

	if _, err := h.ClaimSPI("lcd", spiCfg("spi1")); err != nil {
		t.Fatalf("claim spi: %v", err)
	}
	if o, _ := h.Owner(14); o != "lcd" {
		t.Fatalf("sck owner %q", o)
	}
	if _, err := h.ClaimSPI("other", spiCfg("spi1")); !errors.Is(err, errcode.BusInUse) {
		t.Fatalf("want BusInUse, got %v", err)
	}
	// Pin conflict on a different controller unwinds partial claims.
	cfg := spiCfg("spi0")
	cfg.SCK, cfg.SDO, cfg.CS = 2, 3, 14
	if _, err := h.ClaimSPI("other", cfg); !errors.Is(err, errcode.PinInUse) {
		t.Fatalf("want PinInUse, got %v", err)
	}
	if _, ok := h.Owner(2); ok {
		t.Fatal("partial claim leaked pin 2")
	}
	if _, err := h.ClaimSPI("x", types.SPIConfig{Bus: "spi9", SCK: 20, SDO: 22, SDI: types.NoPin, CS: types.NoPin}); !errors.Is(err, errcode.UnknownBus) {
		t.Fatalf("want UnknownBus, got %v", err)
	}
	if _, ok := h.Owner(20); ok {
		t.Fatal("unknown bus leaked pin 20")
	}
	if err := h.ReleaseSPI("other", "spi1"); !errors.Is(err, errcode.BusInUse) {
		t.Fatalf("release by non-owner: %v", err)
	}
	if err := h.ReleaseSPI("lcd", "spi1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := h.Owner(14); ok {
		t.Fatal("sck still owned")
	}
}

func TestSimPanelDecodesWindowAndPixels(t *testing.T) {
	h := NewHost(HostOptions{PanelWidth: 8, PanelHeight: 4, FastSleep: true})
	defer h.Close()

	dc := h.Pin(h.opts.PanelDC)
	spi, err := h.ClaimSPI("lcd", spiCfg("spi1"))
	if err != nil {
		t.Fatal(err)
	}
	send := func(cmd byte, data ...byte) {
		dc.Set(false)
		if err := spi.Tx([]byte{cmd}, nil); err != nil {
			t.Fatal(err)
		}
		if len(data) > 0 {
			dc.Set(true)
			if err := spi.Tx(data, nil); err != nil {
				t.Fatal(err)
			}
		}
	}
	send(tft.COLMOD, 0x55)
	send(tft.CASET, 0, 2, 0, 3)
	send(tft.RASET, 0, 1, 0, 2)
	send(tft.RAMWR, 0xF8, 0x00, 0x07, 0xE0, 0x00, 0x1F, 0xFF, 0xFF)

	p := h.Panel()
	if got := p.Param(tft.COLMOD); len(got) != 1 || got[0] != 0x55 {
		t.Fatalf("colmod param % x", got)
	}
	want := map[[2]int]uint16{{2, 1}: 0xF800, {3, 1}: 0x07E0, {2, 2}: 0x001F, {3, 2}: 0xFFFF}
	for xy, c := range want {
		if got := p.Pixel(xy[0], xy[1]); got != c {
			t.Fatalf("pixel %v: got %#04x want %#04x", xy, got, c)
		}
	}
	if p.Pixel(0, 0) != 0 {
		t.Fatal("pixel outside window written")
	}
	if w := p.Windows(); len(w) != 1 || w[0] != (tft.Rect{X1: 2, Y1: 1, X2: 3, Y2: 2}) {
		t.Fatalf("windows %+v", w)
	}
	if p.Bursts() != 1 {
		t.Fatalf("bursts %d", p.Bursts())
	}

	p.FailNext(1)
	dc.Set(false)
	_ = spi.Tx([]byte{tft.RAMWR}, nil)
	dc.Set(true)
	if err := spi.Tx([]byte{0, 0}, nil); !errors.Is(err, ErrInjected) {
		t.Fatalf("want injected failure, got %v", err)
	}
}

func TestAsyncSPIReportsCompletion(t *testing.T) {
	h := NewHost(HostOptions{PanelWidth: 4, PanelHeight: 4, AsyncSPI: true, FastSleep: true})
	defer h.Close()

	spi, err := h.ClaimSPI("lcd", spiCfg("spi1"))
	if err != nil {
		t.Fatal(err)
	}
	async, ok := spi.(tft.AsyncBus)
	if !ok {
		t.Fatal("async host SPI does not implement tft.AsyncBus")
	}
	dc := h.Pin(h.opts.PanelDC)
	dc.Set(false)
	_ = spi.Tx([]byte{tft.RAMWR}, nil)
	dc.Set(true)
	done := make(chan error, 1)
	if err := async.StartTx([]byte{0x12, 0x34}, func(err error) { done <- err }); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("completion: %v", err)
	}
	if got := h.Panel().Pixel(0, 0); got != 0x1234 {
		t.Fatalf("pixel %#04x", got)
	}
}

func TestAsyncSPIRefusesTrafficWhileInFlight(t *testing.T) {
	h := NewHost(HostOptions{PanelWidth: 4, PanelHeight: 4, AsyncSPI: true, FastSleep: true})
	defer h.Close()

	spi, err := h.ClaimSPI("lcd", spiCfg("spi1"))
	if err != nil {
		t.Fatal(err)
	}
	async := spi.(tft.AsyncBus)
	dc := h.Pin(h.opts.PanelDC)
	dc.Set(false)
	_ = spi.Tx([]byte{tft.RAMWR}, nil)
	dc.Set(true)

	release := h.Panel().StallBursts()
	done := make(chan error, 1)
	if err := async.StartTx([]byte{0x12, 0x34}, func(err error) { done <- err }); err != nil {
		t.Fatal(err)
	}
	if err := async.StartTx([]byte{0x56, 0x78}, func(error) {}); err != errcode.Busy {
		t.Fatalf("second burst: want busy, got %v", err)
	}
	if err := spi.Tx([]byte{tft.CASET}, nil); err != errcode.Busy {
		t.Fatalf("command during burst: want busy, got %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("completion: %v", err)
	}
	if got := h.Panel().Pixel(0, 0); got != 0x1234 {
		t.Fatalf("pixel %#04x", got)
	}
	dc.Set(false)
	if err := spi.Tx([]byte{tft.CASET}, nil); err != nil {
		t.Fatalf("command after burst: %v", err)
	}
}

func TestSharedI2CSerialisesAndReleases(t *testing.T) {
	h := NewHost(HostOptions{FastSleep: true})
	defer h.Close()

	sensor := NewSimAHT20(25, 40)
	h.AttachI2C("i2c0", sensor)
	cfg := types.I2CConfig{Bus: "i2c0", SDA: 4, SCL: 5}

	a, err := h.ClaimI2C("aht20", cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.ClaimI2C("other", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if o, _ := h.Owner(4); o != "bus:i2c0" {
		t.Fatalf("sda owner %q", o)
	}
	st := make([]byte, 1)
	if err := a.Tx(0x38, []byte{0x71}, st); err != nil {
		t.Fatal(err)
	}
	if err := b.Tx(0x38, []byte{0xAC, 0x33, 0x00}, nil); err != nil {
		t.Fatal(err)
	}
	if sensor.Triggers() != 1 {
		t.Fatalf("triggers %d", sensor.Triggers())
	}
	if _, err := h.ClaimI2C("x", types.I2CConfig{Bus: "i2c1", SDA: 6, SCL: 7}); !errors.Is(err, errcode.UnknownBus) {
		t.Fatalf("want UnknownBus, got %v", err)
	}

	if err := h.ReleaseI2C("aht20", "i2c0"); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.Owner(4); !ok {
		t.Fatal("bus released while still claimed")
	}
	if err := h.ReleaseI2C("other", "i2c0"); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.Owner(4); ok {
		t.Fatal("bus pins still owned")
	}
	if err := a.Tx(0x38, []byte{0x71}, st); !errors.Is(err, errcode.UnknownBus) {
		t.Fatalf("tx after release: %v", err)
	}
}

func TestInputIRQFiresOnEdge(t *testing.T) {
	h := NewHost(HostOptions{FastSleep: true})
	defer h.Close()

	in, err := h.ClaimInput("btn", 10, true)
	if err != nil {
		t.Fatal(err)
	}
	fired := 0
	_ = in.SetIRQ(func() { fired++ })
	h.Pin(10).Drive(true) // already high via pull-up
	h.Pin(10).Drive(false)
	if fired != 1 || in.Get() {
		t.Fatalf("fired=%d level=%v", fired, in.Get())
	}
	h.ReleasePin("btn", 10)
	h.Pin(10).Drive(true)
	if fired != 1 {
		t.Fatal("irq survived release")
	}
}
