//go:build rp2040

package fmtx

import "io"

func Sprintf(format string, a ...any) string {
	return string(Append(nil, format, a...))
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return w.Write(Append(nil, format, a...))
}

func Errorf(format string, a ...any) error {
	return &stringError{Sprintf(format, a...)}
}

type stringError struct{ s string }

func (e *stringError) Error() string { return e.s }
