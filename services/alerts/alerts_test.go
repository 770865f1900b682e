package alerts

import (
	"context"
	"testing"
	"time"

	"invmon/bus"
	"invmon/services/monitor"
	"invmon/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func nominal() types.Snapshot {
	return types.Snapshot{
		TempC: 25, Humidity: 45, VoltageV: 12.2, CurrentA: 3, BatteryPercent: 80,
		EnvValid: true, PowerValid: true,
	}
}

func TestLevelBoundaries(t *testing.T) {
	for _, c := range []struct {
		q    Quantity
		v    float32
		want int
	}{
		{Voltage, 9.0, 1}, {Voltage, 9.01, 2}, {Voltage, 10.5, 2}, {Voltage, 12.6, 0}, {Voltage, 12.61, 3},
		{Current, -15, 1}, {Current, -10, 2}, {Current, 0, 0}, {Current, 25, 3}, {Current, 20, 4},
		{Temperature, 0, 1}, {Temperature, 10, 2}, {Temperature, 30, 0}, {Temperature, 60, 3}, {Temperature, 45, 4},
		{Humidity, 10, 1}, {Humidity, 20, 2}, {Humidity, 50, 0}, {Humidity, 80, 3}, {Humidity, 70, 4},
		{Battery, 5, 1}, {Battery, 10, 2}, {Battery, 15, 3}, {Battery, 50, 4}, {Battery, 50.5, 0},
	} {
		if got := Level(c.q, c.v); got != c.want {
			t.Fatalf("Level(%s, %v) = %d, want %d", c.q, c.v, got, c.want)
		}
	}
}

func TestTrackerEmitsOnlyOnChange(t *testing.T) {
	var tr Tracker
	if got := tr.Update(nominal()); len(got) != 0 {
		t.Fatalf("nominal snapshot raised %+v", got)
	}

	s := nominal()
	s.VoltageV = 8.5
	got := tr.Update(s)
	if len(got) != 1 {
		t.Fatalf("want one alert, got %+v", got)
	}
	a := got[0]
	if a.Severity != types.SeverityCritical || a.Title != "VOLTAGE TOO LOW!" {
		t.Fatalf("unexpected alert: %+v", a)
	}
	if want := "8.50V  threshold: 9.0V\nBattery near empty.\nShutdown imminent."; a.Body != want {
		t.Fatalf("body = %q, want %q", a.Body, want)
	}

	// Same level again is quiet.
	s.VoltageV = 8.4
	if got := tr.Update(s); len(got) != 0 {
		t.Fatalf("repeat level raised %+v", got)
	}
	if sev, ok := tr.Worst(); !ok || sev != types.SeverityCritical {
		t.Fatalf("Worst = %v %v", sev, ok)
	}

	// Recovery is quiet; re-entry raises again.
	if got := tr.Update(nominal()); len(got) != 0 {
		t.Fatalf("recovery raised %+v", got)
	}
	if _, ok := tr.Worst(); ok {
		t.Fatalf("levels not cleared after recovery")
	}
	s.VoltageV = 10
	if got := tr.Update(s); len(got) != 1 || got[0].Title != "VOLTAGE LOW!" {
		t.Fatalf("re-entry: %+v", got)
	}
}

func TestTrackerSkipsInvalidSensors(t *testing.T) {
	var tr Tracker
	s := nominal()
	s.EnvValid = false
	s.TempC, s.Humidity = 0, 0
	if got := tr.Update(s); len(got) != 0 {
		t.Fatalf("invalid env raised %+v", got)
	}

	s = nominal()
	s.TempC, s.Humidity, s.BatteryPercent = 65, 85, 40
	got := tr.Update(s)
	if len(got) != 3 {
		t.Fatalf("want three alerts, got %+v", got)
	}
	if got[0].Title != "TEMPERATURE TOO HIGH!" || got[1].Title != "HUMIDITY TOO HIGH!" || got[2].Title != "BATTERY SoC NOTICE!" {
		t.Fatalf("unexpected order or titles: %+v", got)
	}
	if got[2].Severity != types.SeverityInfo || got[2].Body != "40.00%  threshold: 50%\nBattery below half." {
		t.Fatalf("battery notice: %+v", got[2])
	}
}

func TestServicePublishesAlerts(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	alerts := conn.Subscribe(TopicAlert)

	ctx, cancel := context.WithCancel(context.Background())
	svc := New()
	svc.Start(ctx, b.NewConnection("alerts"))

	s := nominal()
	s.CurrentA = 22
	conn.Publish(conn.NewMessage(monitor.TopicSnapshot, s, true))

	select {
	case msg := <-alerts.Channel():
		a, ok := msg.Payload.(types.Alert)
		if !ok || a.Title != "LOAD CURRENT HIGH!" || a.Severity != types.SeverityWarning {
			t.Fatalf("unexpected payload: %+v", msg.Payload)
		}
		if a.Body != "22.00A  threshold: 20.0A\nLoad approaching limit." {
			t.Fatalf("body = %q", a.Body)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for alert")
	}

	cancel()
	svc.Wait()
}
