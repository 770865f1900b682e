package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"invmon/bus"
	"invmon/drivers/aht20"
	"invmon/drivers/powermon"
	"invmon/types"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pw(v, i float32) powermon.Reading {
	return powermon.Reading{VoltageV: v, CurrentA: i, PowerW: v * i, Valid: true}
}

func within(got, want, tol uint64) bool {
	if got > want {
		return got-want <= tol
	}
	return want-got <= tol
}

func TestComputeStatesAndRuntime(t *testing.T) {
	env := Env{TempC: 25, Humidity: 40, Valid: true}

	s := Compute(env, pw(12.6, 0), 35)
	if s.BatteryPercent != 100 || s.Battery != types.BatteryIdle || s.Inverter != types.InverterIdle {
		t.Fatalf("full idle battery: %+v", s)
	}
	if s.RuntimeS != types.RuntimeUnbounded {
		t.Fatalf("zero current runtime = %d", s.RuntimeS)
	}

	s = Compute(env, pw(9.3, 5), 35)
	if s.Battery != types.BatteryDischarging || s.Inverter != types.InverterActive {
		t.Fatalf("discharging: %+v", s)
	}
	if s.BatteryPercent < 49.9 || s.BatteryPercent > 50.1 {
		t.Fatalf("percent %v", s.BatteryPercent)
	}
	// 17.5 Ah left at 5 A is 3.5 h.
	if !within(s.RuntimeS, 12600, 5) {
		t.Fatalf("runtime %d", s.RuntimeS)
	}

	s = Compute(env, pw(9.3, -3.5), 35)
	if s.Battery != types.BatteryRecharging || s.Inverter != types.InverterIdle {
		t.Fatalf("recharging: %+v", s)
	}
	// 17.5 Ah to full at 3.5 A is 5 h.
	if !within(s.RuntimeS, 18000, 5) {
		t.Fatalf("charge time %d", s.RuntimeS)
	}

	s = Compute(env, pw(12.6, 0.001), 35)
	if s.RuntimeS != MaxRuntimeS {
		t.Fatalf("runtime not capped: %d", s.RuntimeS)
	}

	s = Compute(env, pw(11, -1), 35)
	if s.Battery != types.BatteryIdle || s.RuntimeS != types.RuntimeUnbounded {
		t.Fatalf("small charge current: %+v", s)
	}

	s = Compute(env, pw(5, 1), 35)
	if s.BatteryPercent != 0 {
		t.Fatalf("percent not clamped: %v", s.BatteryPercent)
	}
}

func TestComputeValidation(t *testing.T) {
	s := Compute(Env{TempC: 90, Humidity: 40, Valid: true}, pw(17, 1), 35)
	if s.EnvValid || s.PowerValid {
		t.Fatalf("out-of-range readings accepted: %+v", s)
	}
	s = Compute(Env{TempC: 20, Humidity: 101, Valid: true}, pw(12, -31), 35)
	if s.EnvValid || s.PowerValid {
		t.Fatalf("out-of-range readings accepted: %+v", s)
	}
	s = Compute(Env{TempC: -40, Humidity: 0, Valid: true}, powermon.Reading{VoltageV: 12}, 35)
	if !s.EnvValid || s.PowerValid || s.VoltageV != 0 {
		t.Fatalf("boundary env / invalid power: %+v", s)
	}
}

type fakeEnv struct {
	mu    sync.Mutex
	s     aht20.Sample
	err   error
	reads int
}

func (f *fakeEnv) Read() (aht20.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.s, f.err
}

type fakePower struct{ r powermon.Reading }

func (f *fakePower) Measure() powermon.Reading { return f.r }

func TestServicePublishesSnapshots(t *testing.T) {
	env := &fakeEnv{s: aht20.FromUnits(30, 55)}
	power := &fakePower{r: pw(12.0, 3)}
	svc := New(env, power, types.SensorConfig{AHTPeriodM: 5, ADCPeriodM: 1, CalcPeriod: 2})

	b := bus.NewBus(8)
	conn := b.NewConnection("monitor")
	sub := b.NewConnection("test").Subscribe(TopicSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx, conn)
	defer func() {
		cancel()
		svc.Wait()
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			s, ok := m.Payload.(types.Snapshot)
			if !ok {
				t.Fatalf("payload %T", m.Payload)
			}
			if !s.EnvValid || !s.PowerValid {
				continue
			}
			if s.TempC < 29.9 || s.TempC > 30.1 || s.Battery != types.BatteryDischarging || s.TSms == 0 {
				t.Fatalf("snapshot %+v", s)
			}
			if !m.Retained {
				t.Fatal("snapshot not retained")
			}
			if svc.Latest().VoltageV != 12.0 {
				t.Fatalf("latest %+v", svc.Latest())
			}
			return
		case <-deadline:
			t.Fatal("no valid snapshot published")
		}
	}
}

func TestServiceInvalidatesAfterRepeatedEnvFailures(t *testing.T) {
	env := &fakeEnv{s: aht20.FromUnits(20, 50)}
	svc := New(env, &fakePower{}, types.SensorConfig{})

	svc.sampleEnv()
	env.err = errors.New("nack")
	svc.sampleEnv()
	if !svc.envVal.Valid {
		t.Fatal("single failure should keep the last value")
	}
	svc.sampleEnv()
	if svc.envVal.Valid {
		t.Fatal("repeated failures should invalidate")
	}
}
