package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invmon/bus"
	"invmon/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDog struct {
	mu      sync.Mutex
	timeout time.Duration
	feeds   int
	err     error
}

func (d *fakeDog) Start(t time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeout = t
	return d.err
}

func (d *fakeDog) Update() { d.mu.Lock(); d.feeds++; d.mu.Unlock() }

func (d *fakeDog) count() int { d.mu.Lock(); defer d.mu.Unlock(); return d.feeds }

func TestFeedsAndFollowsConfig(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	dog := &fakeDog{}
	svc := New(dog, types.WatchdogConfig{TimeoutMS: 1000, IntervalMS: 500})

	ctx, cancel := context.WithCancel(context.Background())
	if err := svc.Start(ctx, b.NewConnection("watchdog")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if dog.timeout != time.Second {
		t.Fatalf("timeout = %v", dog.timeout)
	}

	// Faster feeding via retained config.
	conn.Publish(conn.NewMessage(topicConfigWatchdog, types.WatchdogConfig{TimeoutMS: 1000, IntervalMS: 5}, true))
	deadline := time.Now().Add(time.Second)
	for dog.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	svc.Wait()
	if dog.count() < 5 {
		t.Fatalf("fed %d times", dog.count())
	}
}

func TestStartFailure(t *testing.T) {
	b := bus.NewBus(4)
	dog := &fakeDog{err: errors.New("no watchdog")}
	svc := New(dog, types.WatchdogConfig{})
	if err := svc.Start(context.Background(), b.NewConnection("watchdog")); err == nil {
		t.Fatalf("expected start error")
	}
	svc.Wait()
}
