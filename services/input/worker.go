// Package input turns button edges into actions on input/button.
package input

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"invmon/bus"
	"invmon/types"
	"invmon/x/timex"
)

// TopicButton carries types.ButtonEvent.
var TopicButton = bus.T("input", "button")

const (
	ActionNext      = "next"
	ActionPrev      = "prev"
	ActionBLEToggle = "ble_toggle"
)

// Pin is a GPIO input with edge interrupts, such as platform.InputPin.
type Pin interface {
	Get() bool
	SetIRQ(handler func()) error
	ClearIRQ() error
}

// Button binds a pin to actions. Action fires on press when LongAction is
// empty, otherwise on release before the long-press time; LongAction fires
// once the button has been held that long.
type Button struct {
	Name       string
	Pin        Pin
	ActiveLow  bool
	Action     string
	LongAction string
}

type isrEvent struct {
	idx   int
	level bool
}

type watch struct {
	Button
	pressed   bool
	lastEvent time.Time
	long      *time.Timer
	longFired bool
}

// Worker debounces button interrupts on one goroutine. The ISR handler only
// reads the pin and does a non-blocking send.
type Worker struct {
	debounce time.Duration
	longHold time.Duration

	isrQ  chan isrEvent
	longQ chan int
	drops uint32

	mu      sync.Mutex
	watches []*watch

	stopped chan struct{}
}

func New(cfg types.ButtonConfig) *Worker {
	return &Worker{
		debounce: timex.Ms(cfg.DebounceMS, 50*time.Millisecond),
		longHold: timex.Ms(cfg.LongPressMS, 2*time.Second),
		isrQ:     make(chan isrEvent, 32),
		longQ:    make(chan int, 4),
		stopped:  make(chan struct{}),
	}
}

// Register arms the IRQ for b.
func (w *Worker) Register(b Button) error {
	w.mu.Lock()
	idx := len(w.watches)
	wh := &watch{Button: b}
	wh.pressed = w.logical(wh, b.Pin.Get())
	w.watches = append(w.watches, wh)
	w.mu.Unlock()

	return b.Pin.SetIRQ(func() {
		l := b.Pin.Get()
		select {
		case w.isrQ <- isrEvent{idx: idx, level: l}:
		default:
			atomic.AddUint32(&w.drops, 1)
		}
	})
}

func (w *Worker) logical(wh *watch, raw bool) bool {
	if wh.ActiveLow {
		return !raw
	}
	return raw
}

// Start runs the worker until ctx is cancelled, publishing on conn.
func (w *Worker) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		defer close(w.stopped)
		defer w.disarm()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.edge(conn, ev)
			case idx := <-w.longQ:
				w.held(conn, idx)
			}
		}
	}()
}

func (w *Worker) Wait() { <-w.stopped }

func (w *Worker) ISRDrops() uint32 { return atomic.LoadUint32(&w.drops) }

func (w *Worker) watch(idx int) *watch {
	w.mu.Lock()
	defer w.mu.Unlock()
	if idx < 0 || idx >= len(w.watches) {
		return nil
	}
	return w.watches[idx]
}

func (w *Worker) edge(conn *bus.Connection, ev isrEvent) {
	wh := w.watch(ev.idx)
	if wh == nil {
		return
	}
	now := time.Now()
	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < w.debounce {
		return
	}
	down := w.logical(wh, ev.level)
	if down == wh.pressed {
		return
	}
	wh.pressed = down
	wh.lastEvent = now

	switch {
	case down && wh.LongAction == "":
		w.emit(conn, wh.Action)
	case down:
		wh.longFired = false
		idx := ev.idx
		wh.long = time.AfterFunc(w.longHold, func() {
			select {
			case w.longQ <- idx:
			default:
			}
		})
	case wh.long != nil:
		if wh.long.Stop() {
			w.emit(conn, wh.Action)
		} else if !wh.longFired {
			// Timer fired but its event is still queued.
			wh.longFired = true
			w.emit(conn, wh.LongAction)
		}
		wh.long = nil
	}
}

func (w *Worker) held(conn *bus.Connection, idx int) {
	wh := w.watch(idx)
	if wh == nil || !wh.pressed || wh.longFired {
		return
	}
	wh.longFired = true
	w.emit(conn, wh.LongAction)
}

func (w *Worker) emit(conn *bus.Connection, action string) {
	if action == "" {
		return
	}
	conn.Publish(conn.NewMessage(TopicButton, types.ButtonEvent{Action: action, TSms: timex.NowMs()}, false))
}

func (w *Worker) disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wh := range w.watches {
		_ = wh.Pin.ClearIRQ()
		if wh.long != nil {
			wh.long.Stop()
		}
	}
}
