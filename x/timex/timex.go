package timex

import "time"

// NowMs returns Unix milliseconds.
func NowMs() int64 { return time.Now().UnixMilli() }

// PeriodFromHz returns the period in nanoseconds; 0 Hz is treated as 1 Hz.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return 1_000_000_000 / uint64(freqHz)
}

// Ms converts a millisecond count from configuration to a Duration, using
// def when ms is not positive.
func Ms(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
