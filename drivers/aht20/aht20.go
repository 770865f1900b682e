// Package aht20 drives the AHT20 temperature/humidity sensor over I2C.
//
// A measurement is two-phase:
//
//	d.Trigger()          // start a conversion
//	err := d.Collect(&s) // ErrNotReady while the busy bit is set
//
// Read wraps both with the conversion delay, bounded polling and a small
// number of whole-measurement retries. Every frame is checked against the
// sensor's CRC-8 before it is decoded.
//
// I2C.Tx must perform a write followed by a repeated-start read when both w
// and r are provided.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Address is the fixed bus address.
const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08

	fullScale = 1 << 20
)

var (
	ErrTimeout       = errors.New("aht20: timeout")
	ErrNotReady      = errors.New("aht20: not ready")
	ErrCRC           = errors.New("aht20: crc mismatch")
	ErrNotCalibrated = errors.New("aht20: calibration bit not set")
)

// Config controls timing. Zero fields take the datasheet defaults.
type Config struct {
	Address uint16
	// Time between Collect attempts while the device is busy. Default 2 ms.
	PollInterval time.Duration
	// Bound on polling after the conversion delay. Default 100 ms.
	CollectTimeout time.Duration
	// Nominal conversion time. Default 80 ms.
	TriggerHint time.Duration
	// Whole-measurement attempts in Read. Default 4.
	Attempts int
	// Pause between failed attempts. Default 100 ms.
	Backoff time.Duration
	// Sleep replaces time.Sleep; tests pass a no-op.
	Sleep func(time.Duration)
}

func (c Config) withDefaults() Config {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Millisecond
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 100 * time.Millisecond
	}
	if c.TriggerHint <= 0 {
		c.TriggerHint = 80 * time.Millisecond
	}
	if c.Attempts <= 0 {
		c.Attempts = 4
	}
	if c.Backoff <= 0 {
		c.Backoff = 100 * time.Millisecond
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}

// Device is one sensor on a bus.
type Device struct {
	bus  drivers.I2C
	cfg  Config
	buf  [7]byte
	last Sample
}

// New returns a device with default timing. It does not touch the bus.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, cfg: Config{}.withDefaults()}
}

// Configure applies cfg and makes sure the sensor is calibrated, sending the
// initialise command if the status byte says it is not.
func (d *Device) Configure(cfg Config) error {
	d.cfg = cfg.withDefaults()
	st, err := d.Status()
	if err != nil {
		return err
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	d.cfg.Sleep(10 * time.Millisecond)
	if st, err = d.Status(); err != nil {
		return err
	}
	if st&statusCalibrated == 0 {
		return ErrNotCalibrated
	}
	return nil
}

// Reset issues a soft reset. Configure must be called again afterwards.
func (d *Device) Reset() error {
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdSoftReset}, nil); err != nil {
		return err
	}
	d.cfg.Sleep(20 * time.Millisecond)
	return nil
}

func (d *Device) Status() (byte, error) {
	var st [1]byte
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdStatus}, st[:]); err != nil {
		return 0, err
	}
	return st[0], nil
}

// Trigger starts a conversion and returns immediately.
func (d *Device) Trigger() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

func (d *Device) TriggerHint() time.Duration { return d.cfg.TriggerHint }

// Collect reads one frame. ErrNotReady means the conversion is still running.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.cfg.Address, nil, data); err != nil {
		return err
	}
	if data[0]&statusBusy != 0 || data[0]&statusCalibrated == 0 {
		return ErrNotReady
	}
	if CRC8(data[:6]) != data[6] {
		return ErrCRC
	}
	s := Sample{
		RawHumidity: uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4,
		RawTemp:     uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}
	d.last = s
	if out != nil {
		*out = s
	}
	return nil
}

// Read runs a full measurement with retries.
func (d *Device) Read() (Sample, error) {
	var err error
	for attempt := 0; attempt < d.cfg.Attempts; attempt++ {
		if attempt > 0 {
			d.cfg.Sleep(d.cfg.Backoff)
		}
		if err = d.Trigger(); err != nil {
			continue
		}
		d.cfg.Sleep(d.cfg.TriggerHint)
		var s Sample
		if err = d.poll(&s); err == nil {
			return s, nil
		}
	}
	return Sample{}, err
}

func (d *Device) poll(s *Sample) error {
	polls := int(d.cfg.CollectTimeout / d.cfg.PollInterval)
	for i := 0; ; i++ {
		err := d.Collect(s)
		if err != ErrNotReady {
			return err
		}
		if i >= polls {
			return ErrTimeout
		}
		d.cfg.Sleep(d.cfg.PollInterval)
	}
}

// Last returns the most recent good sample.
func (d *Device) Last() Sample { return d.last }

// Sample holds the 20-bit raw readings.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

func (s Sample) Celsius() float32 {
	return float32(s.RawTemp)*200/fullScale - 50
}

func (s Sample) RelHumidity() float32 {
	return float32(s.RawHumidity) * 100 / fullScale
}

// DeciCelsius returns tenths of °C without floating point.
func (s Sample) DeciCelsius() int32 {
	return int32(int64(s.RawTemp)*2000/fullScale) - 500
}

// DeciRelHumidity returns tenths of %RH.
func (s Sample) DeciRelHumidity() int32 {
	return int32(int64(s.RawHumidity) * 1000 / fullScale)
}

// CRC8 is the sensor's checksum: polynomial 0x31, initial value 0xFF.
func CRC8(b []byte) byte {
	crc := byte(0xFF)
	for _, v := range b {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Frame encodes raw readings the way the sensor reports them, with an idle
// calibrated status byte and a valid checksum.
func Frame(s Sample) [7]byte {
	var f [7]byte
	f[0] = 0x18
	f[1] = byte(s.RawHumidity >> 12)
	f[2] = byte(s.RawHumidity >> 4)
	f[3] = byte(s.RawHumidity<<4) | byte(s.RawTemp>>16)&0x0F
	f[4] = byte(s.RawTemp >> 8)
	f[5] = byte(s.RawTemp)
	f[6] = CRC8(f[:6])
	return f
}

// FromUnits converts °C and %RH to raw readings, saturating at the sensor's
// range.
func FromUnits(celsius, rh float32) Sample {
	return Sample{
		RawHumidity: toRaw(rh / 100),
		RawTemp:     toRaw((celsius + 50) / 200),
	}
}

func toRaw(frac float32) uint32 {
	switch {
	case frac <= 0:
		return 0
	case frac >= 1:
		return fullScale - 1
	}
	return uint32(frac * fullScale)
}
