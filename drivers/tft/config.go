package tft

import (
	"time"

	"invmon/errcode"
	"invmon/types"

	"tinygo.org/x/drivers"
)

// Engine defaults applied to zero-valued Config fields.
const (
	DefaultTimeout       = 50 * time.Millisecond
	DefaultQueueSize     = 10
	DefaultTaskPriority  = 8
	DefaultTaskCore      = 1
	DefaultTaskStackSize = 4096
)

// Config is supplied to Init and is immutable afterwards.
type Config struct {
	SPI types.SPIConfig

	DC  int // data/command select
	RST int // hardware reset, active low

	// Active area in pixels after rotation. Zero takes the panel's native size.
	Width  uint16
	Height uint16

	Rotation drivers.Rotation

	// Attempts per request before it is reported as failed.
	MaxRetries int
	QueueSize  int
	// Scanlines held by the DMA scratch buffer.
	BufferLines int
	// Bound on every internal wait (mutex, permit, enqueue, transfer done).
	Timeout time.Duration

	// Recorded for schedulers that honour them; goroutines are not pinned.
	TaskPriority  int
	TaskCore      int
	TaskStackSize int
}

// Rect is an inclusive pixel rectangle.
type Rect struct {
	X1, Y1, X2, Y2 uint16
}

func (r Rect) Width() int  { return int(r.X2) - int(r.X1) + 1 }
func (r Rect) Height() int { return int(r.Y2) - int(r.Y1) + 1 }
func (r Rect) Area() int   { return r.Width() * r.Height() }

func (c Config) withDefaults(p *Panel) Config {
	if c.Width == 0 {
		c.Width = p.Width
	}
	if c.Height == 0 {
		c.Height = p.Height
	}
	if c.SPI.Frequency == 0 {
		c.SPI.Frequency = p.Clock
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = p.Retries
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.BufferLines <= 0 {
		c.BufferLines = p.BufferLines
	}
	if c.BufferLines > int(c.Height) {
		c.BufferLines = int(c.Height)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TaskPriority <= 0 {
		c.TaskPriority = DefaultTaskPriority
	}
	if c.TaskCore < 0 {
		c.TaskCore = DefaultTaskCore
	}
	if c.TaskStackSize <= 0 {
		c.TaskStackSize = DefaultTaskStackSize
	}
	return c
}

func (c Config) validate(p *Panel) error {
	long, short := p.Width, p.Height
	if short > long {
		long, short = short, long
	}
	w, h := c.Width, c.Height
	if h < w {
		w, h = h, w
	}
	switch {
	case w > short || h > long:
		return &errcode.E{C: errcode.InvalidArgument, Op: "init", Msg: "area exceeds panel"}
	case c.Rotation > drivers.Rotation270:
		return &errcode.E{C: errcode.InvalidArgument, Op: "init", Msg: "rotation"}
	case c.DC < 0 || c.RST < 0 || c.DC == c.RST:
		return &errcode.E{C: errcode.InvalidArgument, Op: "init", Msg: "control pins"}
	case c.SPI.Bus == "":
		return &errcode.E{C: errcode.InvalidArgument, Op: "init", Msg: "spi bus"}
	}
	return nil
}

// check validates a flush rectangle and pixel count against the active area
// and buffer capacity.
func (c Config) check(r Rect, count, capacity int) error {
	switch {
	case r.X1 > r.X2 || r.Y1 > r.Y2:
		return errcode.InvalidArgument
	case r.X2 >= c.Width || r.Y2 >= c.Height:
		return errcode.InvalidArgument
	case count == 0 || count != r.Area() || count > capacity:
		return errcode.InvalidArgument
	}
	return nil
}
