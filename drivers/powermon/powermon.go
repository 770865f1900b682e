// Package powermon measures battery voltage through a resistor divider and
// load current through a Hall-effect sensor, both on ADC inputs.
package powermon

import "sync"

// ADC is one analog input scaled to the full 16-bit range.
type ADC interface {
	Get() uint16
}

// Config describes the analog front end. Zero fields take the defaults of
// the reference board.
type Config struct {
	// Samples averaged per measurement. Default 128.
	Samples int
	// Sensor output change per amp, in volts. Default 0.066.
	SensitivityVPerA float32
	// Sensor output at zero current, in volts. Default 1.65.
	ZeroOffsetV float32
	// Battery voltage per volt at the ADC pin. Default 5.7.
	DividerRatio float32
	// ADC reference voltage. Default 3.3.
	VRef float32
}

func (c Config) withDefaults() Config {
	if c.Samples <= 0 {
		c.Samples = 128
	}
	if c.SensitivityVPerA <= 0 {
		c.SensitivityVPerA = 0.066
	}
	if c.ZeroOffsetV <= 0 {
		c.ZeroOffsetV = 1.65
	}
	if c.DividerRatio <= 0 {
		c.DividerRatio = 5.7
	}
	if c.VRef <= 0 {
		c.VRef = 3.3
	}
	return c
}

// Reading is one averaged measurement.
type Reading struct {
	VoltageV float32
	CurrentA float32
	PowerW   float32
	Valid    bool
}

// Monitor samples both channels.
type Monitor struct {
	current, voltage ADC

	mu   sync.Mutex
	cfg  Config
	zero float32
	last Reading
}

func New(current, voltage ADC, cfg Config) *Monitor {
	cfg = cfg.withDefaults()
	return &Monitor{current: current, voltage: voltage, cfg: cfg, zero: cfg.ZeroOffsetV}
}

func (m *Monitor) volts(raw uint16) float32 {
	return float32(raw) * m.cfg.VRef / 0xFFFF
}

// averages reads both channels n times, interleaved, and returns the mean
// pin voltages.
func (m *Monitor) averages(n int) (cur, volt float32) {
	var sc, sv float32
	for i := 0; i < n; i++ {
		sc += m.volts(m.current.Get())
		sv += m.volts(m.voltage.Get())
	}
	return sc / float32(n), sv / float32(n)
}

// CalibrateZero measures the current sensor's idle output over rounds
// measurements. The result replaces the configured offset only if it lies
// within a quarter of it; otherwise the configured offset is kept. It
// returns the offset in use.
func (m *Monitor) CalibrateZero(rounds int) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rounds <= 0 {
		return m.zero
	}
	var sum float32
	for i := 0; i < rounds; i++ {
		c, _ := m.averages(m.cfg.Samples)
		sum += c
	}
	avg := sum / float32(rounds)
	nominal := m.cfg.ZeroOffsetV
	if avg > nominal*0.75 && avg < nominal*1.25 {
		m.zero = avg
	} else {
		println("[powermon] zero offset", int(avg*1000), "mV out of range, keeping nominal")
		m.zero = nominal
	}
	return m.zero
}

// Measure takes one averaged reading.
func (m *Monitor) Measure() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, v := m.averages(m.cfg.Samples)
	r := Reading{
		VoltageV: v * m.cfg.DividerRatio,
		CurrentA: (c - m.zero) / m.cfg.SensitivityVPerA,
		Valid:    true,
	}
	r.PowerW = r.VoltageV * r.CurrentA
	m.last = r
	return r
}

// Last returns the most recent reading; Valid is false before the first.
func (m *Monitor) Last() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// RawFor returns the ADC code that reads as v volts at the pin. Simulators
// use it to drive inputs.
func RawFor(v, vref float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= vref {
		return 0xFFFF
	}
	return uint16(v/vref*0xFFFF + 0.5)
}
