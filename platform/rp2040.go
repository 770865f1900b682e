//go:build rp2040

package platform

import (
	"io"
	"machine"
	"time"

	"invmon/drivers/tft"
	"invmon/errcode"
	"invmon/types"
	"invmon/x/mathx"
	"invmon/x/timex"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
)

// Board is the RP2040 target.
type Board struct {
	*Registry
	console *uartx.UART
	wdt     rp2Watchdog
	spiDMA  map[*machine.SPI]*rp2SPI
}

// NewBoard configures the console UART and the ADC block and returns the
// board's resource registry.
func NewBoard(baud uint32) *Board {
	b := &Board{console: uartx.UART0}
	if err := b.console.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	}); err != nil {
		println("[main] console:", err.Error())
	}
	machine.InitADC()
	b.Registry = newRegistry(b)
	return b
}

// ---- pins ----

type rp2Pin struct{ p machine.Pin }

func (r rp2Pin) Set(high bool) { r.p.Set(high) }
func (r rp2Pin) Get() bool     { return r.p.Get() }

func (r rp2Pin) SetIRQ(handler func()) error {
	return r.p.SetInterrupt(machine.PinToggle, func(machine.Pin) { handler() })
}

func (r rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func (b *Board) pinRange() (int, int) { return 0, 28 }

func (b *Board) output(n int) tft.Pin {
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return rp2Pin{p}
}

func (b *Board) input(n int, pullUp bool) InputPin {
	p := machine.Pin(n)
	mode := machine.PinInput
	if pullUp {
		mode = machine.PinInputPullup
	}
	p.Configure(machine.PinConfig{Mode: mode})
	return rp2Pin{p}
}

func (b *Board) releasePin(n int) {
	p := rp2Pin{machine.Pin(n)}
	_ = p.ClearIRQ()
	p.p.Configure(machine.PinConfig{Mode: machine.PinInput})
}

// ---- SPI ----

var _ tft.AsyncBus = (*rp2SPI)(nil)

func (b *Board) spi(cfg types.SPIConfig) (drivers.SPI, error) {
	var hw *machine.SPI
	var dreq uint32
	switch cfg.Bus {
	case "spi0":
		hw, dreq = machine.SPI0, dreqSPI0TX
	case "spi1":
		hw, dreq = machine.SPI1, dreqSPI1TX
	default:
		return nil, errcode.UnknownBus
	}
	sdi := machine.NoPin
	if cfg.SDI != types.NoPin {
		sdi = machine.Pin(cfg.SDI)
	}
	if err := hw.Configure(machine.SPIConfig{
		Frequency: cfg.Frequency,
		SCK:       machine.Pin(cfg.SCK),
		SDO:       machine.Pin(cfg.SDO),
		SDI:       sdi,
		Mode:      cfg.Mode,
	}); err != nil {
		return nil, err
	}
	if cfg.CS != types.NoPin {
		cs := machine.Pin(cfg.CS)
		cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
		cs.Low()
	}
	return b.spiFor(hw, dreq)
}

// spiFor returns the DMA wrapper for hw, reserving its channel on first use.
func (b *Board) spiFor(hw *machine.SPI, dreq uint32) (drivers.SPI, error) {
	if s, ok := b.spiDMA[hw]; ok {
		return s, nil
	}
	s, err := newRP2SPI(hw, dreq)
	if err != nil {
		return nil, err
	}
	if b.spiDMA == nil {
		b.spiDMA = make(map[*machine.SPI]*rp2SPI)
	}
	b.spiDMA[hw] = s
	return s, nil
}

// ---- I2C ----

func (b *Board) i2c(cfg types.I2CConfig) (drivers.I2C, error) {
	var hw *machine.I2C
	switch cfg.Bus {
	case "i2c0":
		hw = machine.I2C0
	case "i2c1":
		hw = machine.I2C1
	default:
		return nil, errcode.UnknownBus
	}
	sda, scl := machine.Pin(cfg.SDA), machine.Pin(cfg.SCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := hw.Configure(machine.I2CConfig{
		Frequency: cfg.Frequency,
		SDA:       sda,
		SCL:       scl,
	}); err != nil {
		return nil, err
	}
	return hw, nil
}

// ---- ADC ----

func (b *Board) adc(n int) (ADC, error) {
	if !mathx.Between(n, 26, 29) {
		return nil, errcode.UnknownPin
	}
	a := machine.ADC{Pin: machine.Pin(n)}
	a.Configure(machine.ADCConfig{})
	return a, nil
}

// ---- PWM ----

type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// rp2PWM maps a 16-bit logical level onto the slice's counter top.
type rp2PWM struct {
	ctrl pwmCtrl
	ch   uint8
}

func (p rp2PWM) Top() uint16 { return 0xFFFF }

func (p rp2PWM) Set(level uint16) {
	p.ctrl.Set(p.ch, uint32(level)*p.ctrl.Top()/0xFFFF)
}

const backlightHz = 1000

func (b *Board) pwm(n int) (PWM, error) {
	slice, err := machine.PWMPeripheral(machine.Pin(n))
	if err != nil {
		return nil, errcode.UnknownPin
	}
	ctrl := pwmGroupBySlice(slice)
	if err := ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(backlightHz)}); err != nil {
		return nil, err
	}
	ch, err := ctrl.Channel(machine.Pin(n))
	if err != nil {
		return nil, err
	}
	return rp2PWM{ctrl: ctrl, ch: ch}, nil
}

// ---- misc ----

type rp2Watchdog struct{}

func (rp2Watchdog) Start(timeout time.Duration) error {
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: uint32(timeout / time.Millisecond),
	}); err != nil {
		return err
	}
	return machine.Watchdog.Start()
}

func (rp2Watchdog) Update() { machine.Watchdog.Update() }

func (b *Board) watchdog() Watchdog    { return b.wdt }
func (b *Board) serial() io.Writer     { return b.console }
func (b *Board) sleep(d time.Duration) { time.Sleep(d) }
