package conv

import "math"

// MaxPrec bounds the fractional digits Ftoa will produce.
const MaxPrec = 9

// Ftoa writes f in fixed-point form with prec fractional digits into the
// tail of buf, rounding half away from zero. Magnitudes that do not fit a
// uint64 after scaling are written as Inf. buf should hold 32 bytes.
func Ftoa(buf []byte, f float64, prec int) []byte {
	switch {
	case math.IsNaN(f):
		return tail(buf, "NaN")
	case math.IsInf(f, 1):
		return tail(buf, "+Inf")
	case math.IsInf(f, -1):
		return tail(buf, "-Inf")
	}
	if prec < 0 {
		prec = 0
	}
	if prec > MaxPrec {
		prec = MaxPrec
	}
	neg := f < 0
	if neg {
		f = -f
	}
	scale := uint64(1)
	for j := 0; j < prec; j++ {
		scale *= 10
	}
	v := f*float64(scale) + 0.5
	if v >= math.MaxUint64 {
		if neg {
			return tail(buf, "-Inf")
		}
		return tail(buf, "+Inf")
	}
	u := uint64(v)
	whole, frac := u/scale, u%scale

	i := len(buf)
	if prec > 0 {
		for j := 0; j < prec && i > 0; j++ {
			i--
			buf[i] = byte('0' + frac%10)
			frac /= 10
		}
		if i > 0 {
			i--
			buf[i] = '.'
		}
	}
	i -= len(Utoa(buf[:i], whole))
	if neg && u != 0 && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

func tail(buf []byte, s string) []byte {
	if len(buf) < len(s) {
		return buf[:0]
	}
	i := len(buf) - len(s)
	copy(buf[i:], s)
	return buf[i:]
}
