// Package watchdog feeds the hardware watchdog and prints a heartbeat.
package watchdog

import (
	"context"
	"time"

	"invmon/bus"
	"invmon/services/config"
	"invmon/types"
	"invmon/x/timex"
)

var topicConfigWatchdog = config.Topic("watchdog")

// Dog is the hardware watchdog, such as platform.Watchdog.
type Dog interface {
	Start(timeout time.Duration) error
	Update()
}

type Service struct {
	dog      Dog
	timeout  time.Duration
	interval time.Duration
	// Heartbeat lines are printed every beatEvery feeds.
	beatEvery int
	done      chan struct{}
}

func New(dog Dog, cfg types.WatchdogConfig) *Service {
	def := types.DefaultAppConfig().Watchdog
	return &Service{
		dog:       dog,
		timeout:   timex.Ms(cfg.TimeoutMS, time.Duration(def.TimeoutMS)*time.Millisecond),
		interval:  timex.Ms(cfg.IntervalMS, time.Duration(def.IntervalMS)*time.Millisecond),
		beatEvery: 10,
		done:      make(chan struct{}),
	}
}

// Start arms the watchdog and feeds it until ctx is cancelled. The feed
// interval follows config/watchdog and is kept below the timeout.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if err := s.dog.Start(s.timeout); err != nil {
		close(s.done)
		return err
	}
	cfgSub := conn.Subscribe(topicConfigWatchdog)
	go s.serviceLoop(ctx, cfgSub)
	return nil
}

func (s *Service) Wait() { <-s.done }

func (s *Service) serviceLoop(ctx context.Context, cfgSub *bus.Subscription) {
	defer close(s.done)
	defer cfgSub.Unsubscribe()

	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	start := time.Now()
	feeds := 0

	for {
		select {
		case <-ctx.Done():
			println("[watchdog] stopping")
			return
		case t := <-tick.C:
			s.dog.Update()
			if feeds++; feeds%s.beatEvery == 0 {
				println("[watchdog] alive", int64(t.Sub(start)/time.Second), "s")
			}
		case msg := <-cfgSub.Channel():
			wc, ok := msg.Payload.(types.WatchdogConfig)
			if !ok || wc.IntervalMS <= 0 {
				continue
			}
			iv := time.Duration(wc.IntervalMS) * time.Millisecond
			if iv >= s.timeout {
				iv = s.timeout / 2
			}
			if iv != s.interval {
				s.interval = iv
				tick.Reset(iv)
				println("[watchdog] feed interval set to", wc.IntervalMS, "ms")
			}
		}
	}
}
