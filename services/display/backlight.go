package display

import (
	"sync"
	"time"

	"invmon/x/mathx"
	"invmon/x/ramp"
)

// PWM is the backlight channel, such as platform.PWM.
type PWM interface {
	Set(level uint16)
	Top() uint16
}

// Backlight fades a PWM channel between brightness percentages.
type Backlight struct {
	pwm   PWM
	fade  time.Duration
	steps int

	mu    sync.Mutex
	level uint16
	pct   uint16
	stop  chan struct{}
	wg    sync.WaitGroup
}

func NewBacklight(pwm PWM, fade time.Duration) *Backlight {
	b := &Backlight{pwm: pwm, fade: fade, steps: 16, pct: 100, level: pwm.Top()}
	pwm.Set(b.level)
	return b
}

// Percent is the last requested brightness.
func (b *Backlight) Percent() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pct
}

// Level is the duty currently applied.
func (b *Backlight) Level() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

// Set starts a fade to pct, cancelling any fade in progress.
func (b *Backlight) Set(pct uint16) {
	b.cancel()
	b.mu.Lock()
	b.pct = mathx.Min(pct, 100)
	from, to := b.level, mathx.Scale(b.pct, b.pwm.Top())
	stop := make(chan struct{})
	b.stop = stop
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ramp.Linear(from, to, b.fade, b.steps, ramp.Sleeper(stop), func(l uint16) {
			b.pwm.Set(l)
			b.mu.Lock()
			b.level = l
			b.mu.Unlock()
		})
	}()
}

func (b *Backlight) cancel() {
	b.mu.Lock()
	stop := b.stop
	b.stop = nil
	b.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	b.wg.Wait()
}

// Close stops any fade in progress.
func (b *Backlight) Close() { b.cancel() }

// DimPercent maps inactivity to brightness: full, then 50%, 25% and off
// once idle reaches each of after.
func DimPercent(idle time.Duration, after [3]time.Duration) uint16 {
	switch {
	case idle >= after[2]:
		return 0
	case idle >= after[1]:
		return 25
	case idle >= after[0]:
		return 50
	}
	return 100
}
