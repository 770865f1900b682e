//go:build !rp2040

package platform

import (
	"sync"

	"invmon/drivers/aht20"
	"invmon/errcode"

	"tinygo.org/x/drivers"
)

// SimAHT20 is a temperature/humidity sensor model that speaks the AHT20 I2C
// protocol. Conversions complete immediately.
type SimAHT20 struct {
	mu         sync.Mutex
	celsius    float32
	rh         float32
	calibrated bool
	pending    bool
	fail       error
	triggers   int
}

var _ drivers.I2C = (*SimAHT20)(nil)

func NewSimAHT20(celsius, rh float32) *SimAHT20 {
	return &SimAHT20{celsius: celsius, rh: rh}
}

// Set changes the ambient conditions reported by the next conversion.
func (s *SimAHT20) Set(celsius, rh float32) {
	s.mu.Lock()
	s.celsius, s.rh = celsius, rh
	s.mu.Unlock()
}

// Fail makes every transaction return err until cleared with nil.
func (s *SimAHT20) Fail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *SimAHT20) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}

func (s *SimAHT20) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr != aht20.Address {
		return errcode.Error
	}
	if s.fail != nil {
		return s.fail
	}
	if len(w) > 0 {
		switch w[0] {
		case 0x71:
			if len(r) > 0 {
				r[0] = 0x10
				if s.calibrated {
					r[0] |= 0x08
				}
			}
		case 0xBE:
			s.calibrated = true
		case 0xBA:
			s.calibrated = false
		case 0xAC:
			s.pending = true
			s.triggers++
		}
		return nil
	}
	if !s.pending || !s.calibrated {
		for i := range r {
			r[i] = 0x80
		}
		return nil
	}
	s.pending = false
	f := aht20.Frame(aht20.FromUnits(s.celsius, s.rh))
	copy(r, f[:])
	return nil
}
