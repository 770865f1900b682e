// Package fmtx is the fmt subset used for console lines and alert text. Host
// builds delegate to fmt; rp2040 builds format with Append, which keeps the
// fmt machinery and its reflection out of the image.
package fmtx

import (
	"unicode/utf8"

	"invmon/x/conv"
)

// Append formats according to format and appends the result to dst.
// Supported: %s %d %x %X %f %t %v %% with the '-' and '0' flags, width and
// precision. Unlike fmt, %v on a float prints six fractional digits.
func Append(dst []byte, format string, args ...any) []byte {
	var scratch [40]byte
	ai := 0
	for i := 0; i < len(format); {
		c := format[i]
		if c != '%' {
			dst = append(dst, c)
			i++
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			dst = append(dst, '%')
			i++
			continue
		}
		var left, zero bool
		for ; i < len(format); i++ {
			if format[i] == '-' {
				left = true
			} else if format[i] == '0' {
				zero = true
			} else {
				break
			}
		}
		width, prec := -1, -1
		i = parseNum(format, i, &width)
		if i < len(format) && format[i] == '.' {
			prec = 0
			i = parseNum(format, i+1, &prec)
		}
		if i >= len(format) {
			return append(dst, "%!(NOVERB)"...)
		}
		verb := format[i]
		i++
		if ai >= len(args) {
			dst = append(dst, '%', '!', verb, '(', 'M', 'I', 'S', 'S', 'I', 'N', 'G', ')')
			continue
		}
		arg := args[ai]
		ai++

		var s []byte
		numeric := true
		switch verb {
		case 'd':
			s = formatInt(scratch[:], arg)
		case 'x', 'X':
			s = formatHex(scratch[:], arg, verb == 'X')
		case 'f':
			if prec < 0 {
				prec = 6
			}
			s = formatFloat(scratch[:], arg, prec)
		case 's', 'v', 't':
			numeric = false
			switch v := arg.(type) {
			case string:
				s = []byte(v)
			case []byte:
				s = v
			case bool:
				s = formatBool(v)
			case error:
				s = []byte(v.Error())
			case interface{ String() string }:
				s = []byte(v.String())
			case float32, float64:
				numeric = true
				if prec < 0 {
					prec = 6
				}
				s = formatFloat(scratch[:], arg, prec)
			default:
				numeric = true
				s = formatInt(scratch[:], arg)
			}
			if !numeric && prec >= 0 && prec < len(s) {
				s = s[:prec]
			}
		default:
			s = append(scratch[:0], '%', '!', verb)
		}
		dst = pad(dst, s, width, left, zero && numeric)
	}
	return dst
}

func pad(dst, s []byte, width int, left, zero bool) []byte {
	n := width - utf8.RuneCount(s)
	if n <= 0 {
		return append(dst, s...)
	}
	if left {
		dst = append(dst, s...)
		for ; n > 0; n-- {
			dst = append(dst, ' ')
		}
		return dst
	}
	if zero {
		if len(s) > 0 && s[0] == '-' {
			dst = append(dst, '-')
			s = s[1:]
		}
		for ; n > 0; n-- {
			dst = append(dst, '0')
		}
		return append(dst, s...)
	}
	for ; n > 0; n-- {
		dst = append(dst, ' ')
	}
	return append(dst, s...)
}

func formatBool(v bool) []byte {
	if v {
		return []byte("true")
	}
	return []byte("false")
}

func formatInt(buf []byte, v any) []byte {
	switch x := v.(type) {
	case int:
		return conv.Itoa(buf, int64(x))
	case int8:
		return conv.Itoa(buf, int64(x))
	case int16:
		return conv.Itoa(buf, int64(x))
	case int32:
		return conv.Itoa(buf, int64(x))
	case int64:
		return conv.Itoa(buf, x)
	}
	if u, ok := unsigned(v); ok {
		return conv.Utoa(buf, u)
	}
	return append(buf[:0], "%!d(BADTYPE)"...)
}

func formatHex(buf []byte, v any, upper bool) []byte {
	if u, ok := unsigned(v); ok {
		return conv.Hex(buf, u, upper)
	}
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	default:
		return append(buf[:0], "%!x(BADTYPE)"...)
	}
	if n >= 0 {
		return conv.Hex(buf, uint64(n), upper)
	}
	out := conv.Hex(buf[1:], uint64(-n), upper)
	i := len(buf) - len(out) - 1
	buf[i] = '-'
	return buf[i:]
}

func unsigned(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	case uintptr:
		return uint64(x), true
	}
	return 0, false
}

func formatFloat(buf []byte, v any, prec int) []byte {
	switch x := v.(type) {
	case float32:
		return conv.Ftoa(buf, float64(x), prec)
	case float64:
		return conv.Ftoa(buf, x, prec)
	}
	return append(buf[:0], "%!f(BADTYPE)"...)
}

func parseNum(s string, i int, out *int) int {
	start, n := i, 0
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i > start {
		*out = n
	}
	return i
}
