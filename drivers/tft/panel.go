package tft

import "time"

// MIPI DCS commands shared by the supported controllers.
const (
	SWRESET = 0x01
	SLPOUT  = 0x11
	NORON   = 0x13
	INVOFF  = 0x20
	GAMSET  = 0x26
	DISPON  = 0x29
	CASET   = 0x2A
	RASET   = 0x2B
	RAMWR   = 0x2C
	MADCTL  = 0x36
	COLMOD  = 0x3A
)

// Command is one step of a bring-up table.
type Command struct {
	Cmd   byte
	Data  []byte
	Delay time.Duration
}

// Panel describes a controller model. A MADCTL entry in Init carries no data;
// the byte for the configured rotation is taken from MADCTL.
type Panel struct {
	Name string

	// Native size at Rotation0.
	Width  uint16
	Height uint16

	// Defaults for Config fields left zero.
	Clock       uint32
	Retries     int
	BufferLines int

	// Hardware reset pulse timing.
	ResetLow  time.Duration
	ResetWait time.Duration

	MADCTL [4]byte
	Init   []Command
}
