//go:build !rp2040

package platform

import (
	"io"
	"os"
	"sync"
	"time"

	"invmon/drivers/tft"
	"invmon/errcode"
	"invmon/types"

	"tinygo.org/x/drivers"
)

// HostOptions shapes the simulated board.
type HostOptions struct {
	// Pin the panel decodes as data/command select.
	PanelDC int
	// Simulated panel geometry in pixels.
	PanelWidth, PanelHeight int
	// Report pixel bursts through AsyncBus completion.
	AsyncSPI bool
	// Skip real sleeps (bring-up delays) when true.
	FastSleep bool
	Console   io.Writer
}

// Host is the simulated board used for host builds and tests.
type Host struct {
	*Registry
	opts HostOptions

	mu      sync.Mutex
	pins    map[int]*SimPin
	adcs    map[int]*SimADC
	pwms    map[int]*SimPWM
	i2cDevs map[string]drivers.I2C
	panel   *SimPanel
	wdt     *SimWatchdog
}

// NewHost returns a simulated board; zero options take the reference wiring.
func NewHost(opts HostOptions) *Host {
	def := types.DefaultAppConfig().Display
	if opts.PanelDC == 0 {
		opts.PanelDC = def.DC
	}
	if opts.PanelWidth == 0 || opts.PanelHeight == 0 {
		opts.PanelWidth, opts.PanelHeight = int(def.Width), int(def.Height)
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	h := &Host{
		opts:    opts,
		pins:    make(map[int]*SimPin),
		adcs:    make(map[int]*SimADC),
		pwms:    make(map[int]*SimPWM),
		i2cDevs: make(map[string]drivers.I2C),
		wdt:     &SimWatchdog{},
	}
	h.panel = NewSimPanel(opts.PanelWidth, opts.PanelHeight, h.pin(opts.PanelDC))
	h.panel.async = opts.AsyncSPI
	h.Registry = newRegistry(h)
	return h
}

// Panel is the simulated display on the SPI bus.
func (h *Host) Panel() *SimPanel { return h.panel }

// Pin returns the simulated line for n.
func (h *Host) Pin(n int) *SimPin {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pin(n)
}

// ADCPin returns the simulated converter for n.
func (h *Host) ADCPin(n int) *SimADC {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.adcs[n]
	if !ok {
		a = &SimADC{}
		h.adcs[n] = a
	}
	return a
}

// PWMPin returns the simulated PWM channel for n.
func (h *Host) PWMPin(n int) *SimPWM {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pwms[n]
	if !ok {
		p = &SimPWM{}
		h.pwms[n] = p
	}
	return p
}

func (h *Host) SimWatchdog() *SimWatchdog { return h.wdt }

// AttachI2C places a device model on a simulated bus.
func (h *Host) AttachI2C(bus string, dev drivers.I2C) {
	h.mu.Lock()
	h.i2cDevs[bus] = dev
	h.mu.Unlock()
}

// caller holds h.mu
func (h *Host) pin(n int) *SimPin {
	p, ok := h.pins[n]
	if !ok {
		p = &SimPin{n: n}
		h.pins[n] = p
	}
	return p
}

// ---- board ----

func (h *Host) pinRange() (int, int) { return 0, 29 }

func (h *Host) output(n int) tft.Pin {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.pin(n)
	p.Set(false)
	return p
}

func (h *Host) input(n int, pullUp bool) InputPin {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.pin(n)
	p.Set(pullUp)
	return p
}

func (h *Host) releasePin(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.pins[n]; ok {
		_ = p.ClearIRQ()
	}
}

func (h *Host) spi(cfg types.SPIConfig) (drivers.SPI, error) {
	if cfg.Bus != "spi0" && cfg.Bus != "spi1" {
		return nil, errcode.UnknownBus
	}
	if h.panel.async {
		return asyncPanel{h.panel}, nil
	}
	return h.panel, nil
}

func (h *Host) i2c(cfg types.I2CConfig) (drivers.I2C, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.i2cDevs[cfg.Bus]
	if !ok {
		return nil, errcode.UnknownBus
	}
	return dev, nil
}

func (h *Host) adc(n int) (ADC, error) {
	if n < 26 || n > 29 {
		return nil, errcode.UnknownPin
	}
	return h.ADCPin(n), nil
}

func (h *Host) pwm(n int) (PWM, error) { return h.PWMPin(n), nil }

func (h *Host) watchdog() Watchdog { return h.wdt }
func (h *Host) serial() io.Writer  { return h.opts.Console }

func (h *Host) sleep(d time.Duration) {
	if !h.opts.FastSleep {
		time.Sleep(d)
	}
}

// ---- simulated peripherals ----

// SimPin is a GPIO line. Drive simulates an external level change and fires
// the IRQ handler if one is set.
type SimPin struct {
	mu      sync.Mutex
	n       int
	level   bool
	handler func()
}

func (p *SimPin) Set(high bool) { p.mu.Lock(); p.level = high; p.mu.Unlock() }
func (p *SimPin) Get() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.level }

func (p *SimPin) SetIRQ(h func()) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	return nil
}

func (p *SimPin) ClearIRQ() error { return p.SetIRQ(nil) }

func (p *SimPin) Drive(high bool) {
	p.mu.Lock()
	changed := p.level != high
	p.level = high
	h := p.handler
	p.mu.Unlock()
	if changed && h != nil {
		h()
	}
}

// SimADC returns the last value stored with Store.
type SimADC struct {
	mu  sync.Mutex
	val uint16
}

func (a *SimADC) Get() uint16    { a.mu.Lock(); defer a.mu.Unlock(); return a.val }
func (a *SimADC) Store(v uint16) { a.mu.Lock(); a.val = v; a.mu.Unlock() }

// SimPWM records the duty level.
type SimPWM struct {
	mu    sync.Mutex
	level uint16
}

func (p *SimPWM) Set(level uint16) { p.mu.Lock(); p.level = level; p.mu.Unlock() }
func (p *SimPWM) Top() uint16      { return 0xFFFF }
func (p *SimPWM) Level() uint16    { p.mu.Lock(); defer p.mu.Unlock(); return p.level }

// SimWatchdog counts feeds.
type SimWatchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	feeds   int
}

func (w *SimWatchdog) Start(timeout time.Duration) error {
	w.mu.Lock()
	w.timeout = timeout
	w.mu.Unlock()
	return nil
}

func (w *SimWatchdog) Update() { w.mu.Lock(); w.feeds++; w.mu.Unlock() }

func (w *SimWatchdog) Feeds() int { w.mu.Lock(); defer w.mu.Unlock(); return w.feeds }
