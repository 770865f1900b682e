// Package alerts turns snapshots into level-change alerts.
package alerts

import (
	"context"

	"invmon/bus"
	"invmon/services/monitor"
	"invmon/types"
)

// TopicAlert carries one types.Alert per level change.
var TopicAlert = bus.T("monitor", "alert")

type Service struct {
	tr   Tracker
	done chan struct{}
}

func New() *Service { return &Service{done: make(chan struct{})} }

// Start subscribes to snapshots and publishes an Alert per level change.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(monitor.TopicSnapshot)
	go func() {
		defer close(s.done)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sub.Channel():
				snap, ok := msg.Payload.(types.Snapshot)
				if !ok {
					continue
				}
				for _, a := range s.tr.Update(snap) {
					println("[alerts]", a.Severity.String(), a.Title)
					conn.Publish(conn.NewMessage(TopicAlert, a, false))
				}
			}
		}
	}()
}

func (s *Service) Wait() { <-s.done }
