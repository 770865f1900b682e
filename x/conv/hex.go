package conv

const (
	lowerHex = "0123456789abcdef"
	upperHex = "0123456789ABCDEF"
)

// Hex writes n in base 16 without prefix or padding into the tail of buf.
func Hex(buf []byte, n uint64, upper bool) []byte {
	digits := lowerHex
	if upper {
		digits = upperHex
	}
	i := len(buf)
	if i == 0 {
		return buf
	}
	if n == 0 {
		buf[i-1] = '0'
		return buf[i-1:]
	}
	for n > 0 && i > 0 {
		i--
		buf[i] = digits[n&0xF]
		n >>= 4
	}
	return buf[i:]
}
