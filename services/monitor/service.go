// Package monitor samples the sensors and publishes the computed system
// snapshot.
package monitor

import (
	"context"
	"sync"
	"time"

	"invmon/bus"
	"invmon/drivers/aht20"
	"invmon/drivers/powermon"
	"invmon/types"
)

// TopicSnapshot carries the retained types.Snapshot.
var TopicSnapshot = bus.T("monitor", "snapshot")

// EnvSensor is a temperature/humidity source such as *aht20.Device.
type EnvSensor interface {
	Read() (aht20.Sample, error)
}

// PowerSensor is a voltage/current source such as *powermon.Monitor.
type PowerSensor interface {
	Measure() powermon.Reading
}

// Service runs three periodic jobs: environment sampling, power sampling and
// snapshot calculation. Environment reads block for a conversion, so they
// run on their own goroutine.
type Service struct {
	env   EnvSensor
	power PowerSensor
	cfg   types.SensorConfig

	mu     sync.Mutex
	envVal Env
	pwVal  powermon.Reading
	last   types.Snapshot
	envErr int

	wg sync.WaitGroup
}

func New(env EnvSensor, power PowerSensor, cfg types.SensorConfig) *Service {
	def := types.DefaultAppConfig().Sensors
	if cfg.AHTPeriodM <= 0 {
		cfg.AHTPeriodM = def.AHTPeriodM
	}
	if cfg.ADCPeriodM <= 0 {
		cfg.ADCPeriodM = def.ADCPeriodM
	}
	if cfg.CalcPeriod <= 0 {
		cfg.CalcPeriod = def.CalcPeriod
	}
	if cfg.CapacityAh <= 0 {
		cfg.CapacityAh = def.CapacityAh
	}
	return &Service{env: env, power: power, cfg: cfg}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Start launches the sampling loops. They stop when ctx is cancelled; Wait
// blocks until they have.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	s.wg.Add(2)
	go s.envLoop(ctx)
	go s.mainLoop(ctx, conn)
}

func (s *Service) Wait() { s.wg.Wait() }

// Latest returns the last published snapshot.
func (s *Service) Latest() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Service) envLoop(ctx context.Context) {
	defer s.wg.Done()
	tick := time.NewTicker(ms(s.cfg.AHTPeriodM))
	defer tick.Stop()
	for {
		s.sampleEnv()
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func (s *Service) sampleEnv() {
	smp, err := s.env.Read()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.envErr++
		// One failed read keeps the previous value; repeated failures
		// invalidate it.
		if s.envErr > 1 {
			s.envVal.Valid = false
		}
		println("[monitor] env read:", err.Error())
		return
	}
	s.envErr = 0
	s.envVal = Env{TempC: smp.Celsius(), Humidity: smp.RelHumidity(), Valid: true}
}

func (s *Service) mainLoop(ctx context.Context, conn *bus.Connection) {
	defer s.wg.Done()
	adc := time.NewTicker(ms(s.cfg.ADCPeriodM))
	defer adc.Stop()
	calc := time.NewTicker(ms(s.cfg.CalcPeriod))
	defer calc.Stop()
	for {
		select {
		case <-ctx.Done():
			println("[monitor] stopping")
			return
		case <-adc.C:
			r := s.power.Measure()
			s.mu.Lock()
			s.pwVal = r
			s.mu.Unlock()
		case now := <-calc.C:
			s.publish(conn, now)
		}
	}
}

func (s *Service) publish(conn *bus.Connection, now time.Time) {
	s.mu.Lock()
	snap := Compute(s.envVal, s.pwVal, s.cfg.CapacityAh)
	snap.TSms = now.UnixMilli()
	s.last = snap
	s.mu.Unlock()
	if !snap.EnvValid && !snap.PowerValid {
		return
	}
	conn.Publish(conn.NewMessage(TopicSnapshot, snap, true))
}
