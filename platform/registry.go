// Package platform owns board resources. Claims are exclusive per device ID
// and checked against the board's pin range; the concrete peripherals come
// from the rp2040 machine package on hardware and from simulators on host.
package platform

import (
	"io"
	"sync"
	"time"

	"invmon/drivers/tft"
	"invmon/errcode"
	"invmon/types"

	"go.uber.org/multierr"
	"tinygo.org/x/drivers"
)

var _ tft.Resources = (*Registry)(nil)

// InputPin is a claimed GPIO input able to raise edge interrupts.
type InputPin interface {
	Get() bool
	SetIRQ(handler func()) error
	ClearIRQ() error
}

// ADC returns a 16-bit left-aligned sample.
type ADC interface {
	Get() uint16
}

// PWM drives a duty cycle in [0..Top()].
type PWM interface {
	Set(level uint16)
	Top() uint16
}

type Watchdog interface {
	Start(timeout time.Duration) error
	Update()
}

// board is the per-target peripheral factory.
type board interface {
	pinRange() (lo, hi int)
	output(n int) tft.Pin
	input(n int, pullUp bool) InputPin
	releasePin(n int)
	spi(cfg types.SPIConfig) (drivers.SPI, error)
	i2c(cfg types.I2CConfig) (drivers.I2C, error)
	adc(n int) (ADC, error)
	pwm(n int) (PWM, error)
	watchdog() Watchdog
	serial() io.Writer
	sleep(d time.Duration)
}

type busClaim struct {
	devID string
	pins  []int
}

// Registry is the resource registry handed to drivers and services.
type Registry struct {
	mu   sync.Mutex
	hw   board
	pins map[int]string // pin -> owner devID
	spis map[string]busClaim
	i2cs map[string]*i2cOwner
}

func newRegistry(hw board) *Registry {
	return &Registry{
		hw:   hw,
		pins: make(map[int]string),
		spis: make(map[string]busClaim),
		i2cs: make(map[string]*i2cOwner),
	}
}

// caller holds lock
func (r *Registry) claimPinLocked(devID string, n int) error {
	lo, hi := r.hw.pinRange()
	if n < lo || n > hi {
		return errcode.UnknownPin
	}
	if owner, taken := r.pins[n]; taken && owner != devID {
		return errcode.PinInUse
	}
	r.pins[n] = devID
	return nil
}

// caller holds lock
func (r *Registry) releasePinLocked(devID string, n int) {
	if owner, ok := r.pins[n]; ok && owner == devID {
		delete(r.pins, n)
		r.hw.releasePin(n)
	}
}

// ClaimOutput claims n as a push-pull output driven low.
func (r *Registry) ClaimOutput(devID string, n int) (tft.Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claimPinLocked(devID, n); err != nil {
		return nil, err
	}
	return r.hw.output(n), nil
}

// ClaimInput claims n as an input, optionally pulled up.
func (r *Registry) ClaimInput(devID string, n int, pullUp bool) (InputPin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claimPinLocked(devID, n); err != nil {
		return nil, err
	}
	return r.hw.input(n, pullUp), nil
}

func (r *Registry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releasePinLocked(devID, n)
}

// ClaimSPI takes a SPI controller and its pins for devID.
func (r *Registry) ClaimSPI(devID string, cfg types.SPIConfig) (drivers.SPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, taken := r.spis[cfg.Bus]; taken && c.devID != devID {
		return nil, errcode.BusInUse
	}
	var claimed []int
	for _, n := range []int{cfg.SCK, cfg.SDO, cfg.SDI, cfg.CS} {
		if n == types.NoPin {
			continue
		}
		if err := r.claimPinLocked(devID, n); err != nil {
			for _, p := range claimed {
				r.releasePinLocked(devID, p)
			}
			return nil, err
		}
		claimed = append(claimed, n)
	}
	bus, err := r.hw.spi(cfg)
	if err != nil {
		for _, p := range claimed {
			r.releasePinLocked(devID, p)
		}
		return nil, err
	}
	r.spis[cfg.Bus] = busClaim{devID: devID, pins: claimed}
	return bus, nil
}

func (r *Registry) ReleaseSPI(devID string, bus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.spis[bus]
	if !ok {
		return errcode.UnknownBus
	}
	if c.devID != devID {
		return errcode.BusInUse
	}
	for _, p := range c.pins {
		r.releasePinLocked(devID, p)
	}
	delete(r.spis, bus)
	return nil
}

// ClaimI2C returns a handle onto a shared I2C bus. Transactions from all
// claimants are serialised by one worker per bus.
func (r *Registry) ClaimI2C(devID string, cfg types.I2CConfig) (drivers.I2C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.i2cs[cfg.Bus]
	if o == nil {
		owner := "bus:" + cfg.Bus
		if err := r.claimPinLocked(owner, cfg.SDA); err != nil {
			return nil, err
		}
		if err := r.claimPinLocked(owner, cfg.SCL); err != nil {
			r.releasePinLocked(owner, cfg.SDA)
			return nil, err
		}
		hw, err := r.hw.i2c(cfg)
		if err != nil {
			r.releasePinLocked(owner, cfg.SDA)
			r.releasePinLocked(owner, cfg.SCL)
			return nil, err
		}
		o = newI2COwner(cfg.Bus, hw)
		o.pins = [2]int{cfg.SDA, cfg.SCL}
		r.i2cs[cfg.Bus] = o
	}
	o.users++
	return &sharedI2C{o: o, timeout: 250 * time.Millisecond}, nil
}

// ReleaseI2C drops one claim on bus. The bus worker stops and its pins are
// freed when the last claimant lets go.
func (r *Registry) ReleaseI2C(devID string, bus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.i2cs[bus]
	if o == nil {
		return errcode.UnknownBus
	}
	if o.users--; o.users > 0 {
		return nil
	}
	delete(r.i2cs, bus)
	for _, n := range o.pins {
		r.releasePinLocked("bus:"+bus, n)
	}
	return o.stop()
}

// ClaimADC claims an analog input pin.
func (r *Registry) ClaimADC(devID string, n int) (ADC, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claimPinLocked(devID, n); err != nil {
		return nil, err
	}
	a, err := r.hw.adc(n)
	if err != nil {
		r.releasePinLocked(devID, n)
		return nil, err
	}
	return a, nil
}

// ClaimPWM claims a PWM-capable pin.
func (r *Registry) ClaimPWM(devID string, n int) (PWM, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.claimPinLocked(devID, n); err != nil {
		return nil, err
	}
	p, err := r.hw.pwm(n)
	if err != nil {
		r.releasePinLocked(devID, n)
		return nil, err
	}
	return p, nil
}

func (r *Registry) Watchdog() Watchdog    { return r.hw.watchdog() }
func (r *Registry) Serial() io.Writer     { return r.hw.serial() }
func (r *Registry) Sleep(d time.Duration) { r.hw.sleep(d) }

// Owner reports who holds pin n.
func (r *Registry) Owner(n int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.pins[n]
	return o, ok
}

// Close stops the I2C workers and releases every claim.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for id, o := range r.i2cs {
		err = multierr.Append(err, o.stop())
		delete(r.i2cs, id)
	}
	for n := range r.pins {
		r.hw.releasePin(n)
		delete(r.pins, n)
	}
	for id := range r.spis {
		delete(r.spis, id)
	}
	return err
}
