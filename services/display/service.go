// Package display renders the status screens through the flush engine and
// manages the backlight.
package display

import (
	"context"
	"sync/atomic"
	"time"

	"invmon/bus"
	"invmon/drivers/tft"
	"invmon/errcode"
	"invmon/services/alerts"
	"invmon/services/input"
	"invmon/services/monitor"
	"invmon/types"
	"invmon/x/mathx"
)

// Panel is the part of *tft.Handle the screens need.
type Panel interface {
	Config() tft.Config
	IsReady() bool
	Flush(r tft.Rect, pixels []uint16, done tft.Callback) error
	SetScreen(color uint16, done tft.Callback) error
}

type Options struct {
	// Redraw at most this often.
	Refresh time.Duration
	// Inactivity before 50%, 25% and off.
	DimAfter [3]time.Duration
	// How long an alert replaces the header colour.
	PopupHold time.Duration
}

// OptionsFrom builds Options from the board's display section.
func OptionsFrom(cfg types.DisplayConfig) Options {
	o := Options{Refresh: 200 * time.Millisecond, PopupHold: 5 * time.Second}
	def := types.DefaultAppConfig().Display.DimAfterS
	for i := range o.DimAfter {
		s := cfg.DimAfterS[i]
		if s <= 0 {
			s = def[i]
		}
		o.DimAfter[i] = time.Duration(s) * time.Second
	}
	return o
}

// Stats counts flush outcomes reported by the engine.
type Stats struct {
	Frames   uint32
	Flushed  uint32
	Failed   uint32
	Rejected uint32
}

type Service struct {
	panel Panel
	bl    *Backlight
	opts  Options

	screen     Screen
	snap       types.Snapshot
	tr         alerts.Tracker
	popup      types.Alert
	popupUntil time.Time
	lastInput  time.Time
	dirty      bool
	clear      bool

	row    []uint16
	rowsPB int // rows per flush

	frames, flushed, failed, rejected uint32
	failStreak                        uint32

	done chan struct{}
}

// New returns a display service; bl may be nil when the board has no
// dimmable backlight.
func New(panel Panel, bl *Backlight, opts Options) *Service {
	def := OptionsFrom(types.DisplayConfig{})
	if opts.Refresh <= 0 {
		opts.Refresh = def.Refresh
	}
	if opts.DimAfter[2] <= 0 {
		opts.DimAfter = def.DimAfter
	}
	if opts.PopupHold <= 0 {
		opts.PopupHold = def.PopupHold
	}
	cfg := panel.Config()
	rows := mathx.Max(cfg.BufferLines, 1)
	return &Service{
		panel:  panel,
		bl:     bl,
		opts:   opts,
		row:    make([]uint16, int(cfg.Width)*rows),
		rowsPB: rows,
		clear:  true,
		done:   make(chan struct{}),
	}
}

func (s *Service) Stats() Stats {
	return Stats{
		Frames:   atomic.LoadUint32(&s.frames),
		Flushed:  atomic.LoadUint32(&s.flushed),
		Failed:   atomic.LoadUint32(&s.failed),
		Rejected: atomic.LoadUint32(&s.rejected),
	}
}

// Start runs the render loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	snaps := conn.Subscribe(monitor.TopicSnapshot)
	alertSub := conn.Subscribe(alerts.TopicAlert)
	buttons := conn.Subscribe(input.TopicButton)
	s.lastInput = time.Now()

	go func() {
		defer close(s.done)
		defer snaps.Unsubscribe()
		defer alertSub.Unsubscribe()
		defer buttons.Unsubscribe()
		if s.bl != nil {
			defer s.bl.Close()
		}

		tick := time.NewTicker(s.opts.Refresh)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				println("[display] stopping")
				return
			case msg := <-snaps.Channel():
				if snap, ok := msg.Payload.(types.Snapshot); ok {
					s.snap = snap
					s.tr.Update(snap)
					s.dirty = true
				}
			case msg := <-alertSub.Channel():
				if a, ok := msg.Payload.(types.Alert); ok {
					s.popup = a
					s.popupUntil = time.Now().Add(s.opts.PopupHold)
					s.dirty = true
				}
			case msg := <-buttons.Channel():
				if ev, ok := msg.Payload.(types.ButtonEvent); ok {
					s.button(ev)
				}
			case now := <-tick.C:
				s.idle(now)
				if !s.popupUntil.IsZero() && now.After(s.popupUntil) {
					s.popupUntil = time.Time{}
					s.dirty = true
				}
				if s.dirty || s.clear {
					s.render()
				}
			}
		}
	}()
}

func (s *Service) Wait() { <-s.done }

func (s *Service) button(ev types.ButtonEvent) {
	s.lastInput = time.Now()
	if s.bl != nil && s.bl.Percent() != 100 {
		s.bl.Set(100)
	}
	switch ev.Action {
	case input.ActionNext:
		s.screen = s.screen.Next()
	case input.ActionPrev:
		s.screen = s.screen.Prev()
	default:
		return
	}
	s.clear = true
	s.dirty = true
}

func (s *Service) idle(now time.Time) {
	if s.bl == nil {
		return
	}
	if pct := DimPercent(now.Sub(s.lastInput), s.opts.DimAfter); pct != s.bl.Percent() {
		s.bl.Set(pct)
	}
}

// render draws the current screen. Nothing is submitted while the engine is
// busy; the frame stays dirty and is retried on the next tick.
func (s *Service) render() {
	if !s.panel.IsReady() {
		return
	}
	cfg := s.panel.Config()
	w, h := int(cfg.Width), int(cfg.Height)

	if s.clear {
		if err := s.panel.SetScreen(Black, s.result); err != nil {
			s.reject("clear", err)
			return
		}
		s.clear = false
	}

	worst, alerting := s.tr.Worst()
	f := Layout(s.screen, s.snap, worst, alerting, h)
	header := f.Header
	if !s.popupUntil.IsZero() {
		header = severityColor(s.popup.Severity)
	}

	bands := append([]Bar{
		{Y: 0, H: headerRows, Frac: 1, FG: header},
		{Y: headerRows, H: statusRows, Frac: 1, FG: f.Status},
	}, f.Bars...)
	for _, b := range bands {
		if err := s.drawBar(b, w); err != nil {
			s.reject("bar", err)
			return
		}
	}
	s.dirty = false
	atomic.AddUint32(&s.frames, 1)
}

func (s *Service) drawBar(b Bar, w int) error {
	split := int(b.Frac * float32(w))
	for y := b.Y; y < b.Y+b.H; y += s.rowsPB {
		rows := mathx.Min(s.rowsPB, b.Y+b.H-y)
		px := s.row[:w*rows]
		for i := range px {
			if i%w < split {
				px[i] = b.FG
			} else {
				px[i] = b.BG
			}
		}
		r := tft.Rect{X1: 0, Y1: uint16(y), X2: uint16(w - 1), Y2: uint16(y + rows - 1)}
		if err := s.panel.Flush(r, px, s.result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reject(op string, err error) {
	atomic.AddUint32(&s.rejected, 1)
	s.dirty = true
	println("[display]", op, "rejected:", err.Error())
}

// result runs on the engine worker.
func (s *Service) result(err error) {
	if err == nil {
		atomic.AddUint32(&s.flushed, 1)
		atomic.StoreUint32(&s.failStreak, 0)
		return
	}
	atomic.AddUint32(&s.failed, 1)
	if errcode.Of(err) == errcode.TransferFailed {
		if n := atomic.AddUint32(&s.failStreak, 1); n == 3 || n%50 == 0 {
			println("[display] repeated transfer failures:", n, err.Error())
		}
	}
}
