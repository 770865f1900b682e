package tft

import (
	"time"

	"invmon/types"

	"tinygo.org/x/drivers"
)

// Pin is a claimed push-pull output.
type Pin interface {
	Set(high bool)
}

// Resources hands out exclusive board resources to a handle. devID names the
// claimant so the registry can report conflicts.
type Resources interface {
	ClaimOutput(devID string, pin int) (Pin, error)
	ReleasePin(devID string, pin int)
	ClaimSPI(devID string, cfg types.SPIConfig) (drivers.SPI, error)
	ReleaseSPI(devID string, bus string) error
	Sleep(d time.Duration)
}

// AsyncBus is implemented by buses that run a write in the background, such
// as a DMA channel. done is called exactly once, possibly from interrupt
// context, when the transfer finishes.
type AsyncBus interface {
	StartTx(w []byte, done func(err error)) error
}
