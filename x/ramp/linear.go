// Package ramp steps a level towards a target over a fixed duration.
package ramp

import (
	"time"

	"invmon/x/mathx"
)

// Step applies a level.
type Step func(level uint16)

// Tick waits d and reports whether to keep going.
type Tick func(d time.Duration) bool

// Sleeper returns a Tick that sleeps unless stop is closed first.
func Sleeper(stop <-chan struct{}) Tick {
	return func(d time.Duration) bool {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return true
		case <-stop:
			return false
		}
	}
}

// Linear moves from cur to to in steps equal increments spread over d,
// calling set after each tick. It runs on the caller's goroutine and returns
// early, leaving the last applied level, when tick reports false. steps <= 1
// or d <= 0 applies to immediately. It reports whether to was reached.
func Linear(cur, to uint16, d time.Duration, steps int, tick Tick, set Step) bool {
	if steps <= 1 || d <= 0 || cur == to {
		set(to)
		return true
	}
	per := d / time.Duration(steps)
	if per <= 0 {
		per = time.Millisecond
	}
	span := int32(to) - int32(cur)
	lo, hi := mathx.Min(cur, to), mathx.Max(cur, to)
	for i := 1; i < steps; i++ {
		if !tick(per) {
			return false
		}
		v := int32(cur) + span*int32(i)/int32(steps)
		set(mathx.Clamp(uint16(v), lo, hi))
	}
	if !tick(per) {
		return false
	}
	set(to)
	return true
}
