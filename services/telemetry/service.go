// Package telemetry forwards snapshots to a BLE peer and the serial console.
package telemetry

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"invmon/bus"
	"invmon/services/input"
	"invmon/services/monitor"
	"invmon/types"
	"invmon/x/timex"
)

// TopicEnabled carries the retained notification state as a bool.
var TopicEnabled = bus.T("telemetry", "enabled")

// Notifier pushes one characteristic value to subscribed peers.
type Notifier interface {
	Notify(id CharID, value []byte) error
}

type Service struct {
	ble     Notifier
	serial  io.Writer
	period  time.Duration
	enabled atomic.Bool

	sent, errs uint32
	done       chan struct{}
}

// New returns a telemetry service. ble or serial may be nil.
func New(ble Notifier, serial io.Writer, cfg types.TelemetryConfig) *Service {
	s := &Service{
		ble:    ble,
		serial: serial,
		period: timex.Ms(cfg.PeriodMS, 2*time.Second),
		done:   make(chan struct{}),
	}
	if !cfg.SerialLine {
		s.serial = nil
	}
	s.enabled.Store(cfg.BLE && ble != nil)
	return s
}

func (s *Service) Enabled() bool { return s.enabled.Load() }

// Sent counts characteristic updates pushed to the peer.
func (s *Service) Sent() uint32 { return atomic.LoadUint32(&s.sent) }

func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	snaps := conn.Subscribe(monitor.TopicSnapshot)
	buttons := conn.Subscribe(input.TopicButton)
	conn.Publish(conn.NewMessage(TopicEnabled, s.Enabled(), true))

	go func() {
		defer close(s.done)
		defer snaps.Unsubscribe()
		defer buttons.Unsubscribe()

		tick := time.NewTicker(s.period)
		defer tick.Stop()
		var last types.Snapshot
		have := false
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-snaps.Channel():
				if snap, ok := msg.Payload.(types.Snapshot); ok {
					last, have = snap, true
				}
			case msg := <-buttons.Channel():
				if ev, ok := msg.Payload.(types.ButtonEvent); ok && ev.Action == input.ActionBLEToggle && s.ble != nil {
					on := !s.enabled.Load()
					s.enabled.Store(on)
					println("[telemetry] notifications enabled:", on)
					conn.Publish(conn.NewMessage(TopicEnabled, on, true))
				}
			case <-tick.C:
				if have {
					s.push(last)
				}
			}
		}
	}()
}

func (s *Service) Wait() { <-s.done }

func (s *Service) push(snap types.Snapshot) {
	if s.serial != nil {
		if err := WriteLine(s.serial, snap); err != nil {
			println("[telemetry] serial:", err.Error())
		}
	}
	if s.ble == nil || !s.enabled.Load() {
		return
	}
	for id, v := range Encode(snap) {
		if v == nil {
			continue
		}
		if err := s.ble.Notify(CharID(id), v); err != nil {
			// Log the first failure of a burst only.
			if atomic.AddUint32(&s.errs, 1) == 1 {
				println("[telemetry] notify", Chars[id].Name, err.Error())
			}
			continue
		}
		atomic.StoreUint32(&s.errs, 0)
		atomic.AddUint32(&s.sent, 1)
	}
}
