//go:build !rp2040

package platform

import (
	"errors"
	"sync"

	"invmon/drivers/tft"
	"invmon/errcode"

	"tinygo.org/x/drivers"
)

// ErrInjected is returned by SimPanel for scripted failures.
var ErrInjected = errors.New("simpanel: injected bus error")

// SimPanel models a TFT controller on SPI. It decodes DC-qualified traffic,
// tracks the active window and writes RAMWR pixel streams into a framebuffer.
type SimPanel struct {
	mu   sync.Mutex
	dc   *SimPin
	w, h int
	fb   []uint16

	async   bool
	cmd     byte
	cmds    []byte
	params  map[byte][]byte
	win     tft.Rect
	windows []tft.Rect
	cursor  int
	bursts  int
	failing int

	inflight bool
	stall    chan struct{}
}

var _ drivers.SPI = (*SimPanel)(nil)

func NewSimPanel(w, h int, dc *SimPin) *SimPanel {
	return &SimPanel{dc: dc, w: w, h: h, fb: make([]uint16, w*h), params: map[byte][]byte{}}
}

// FailNext makes the next n pixel bursts fail.
func (p *SimPanel) FailNext(n int) {
	p.mu.Lock()
	p.failing = n
	p.mu.Unlock()
}

func (p *SimPanel) Transfer(b byte) (byte, error) {
	return 0, p.Tx([]byte{b}, nil)
}

func (p *SimPanel) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dc.Get() {
		p.cmd = w[0]
		p.cmds = append(p.cmds, w[0])
		if p.cmd == tft.RAMWR {
			p.cursor = 0
		}
		return nil
	}
	return p.dataLocked(w)
}

// caller holds lock
func (p *SimPanel) dataLocked(w []byte) error {
	switch p.cmd {
	case tft.CASET:
		p.win.X1, p.win.X2 = be16(w[0:]), be16(w[2:])
	case tft.RASET:
		p.win.Y1, p.win.Y2 = be16(w[0:]), be16(w[2:])
		p.windows = append(p.windows, p.win)
	case tft.RAMWR:
		if p.failing > 0 {
			p.failing--
			return ErrInjected
		}
		p.bursts++
		width := max(p.win.Width(), 1)
		for i := 0; i+1 < len(w); i += 2 {
			x := int(p.win.X1) + p.cursor%width
			y := int(p.win.Y1) + p.cursor/width
			if x < p.w && y < p.h {
				p.fb[y*p.w+x] = be16(w[i:])
			}
			p.cursor++
		}
	default:
		p.params[p.cmd] = append([]byte(nil), w...)
	}
	return nil
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

// Pixel returns the colour stored at (x, y).
func (p *SimPanel) Pixel(x, y int) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fb[y*p.w+x]
}

// Commands returns every command byte seen so far.
func (p *SimPanel) Commands() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.cmds...)
}

// Param returns the last parameter bytes written after cmd.
func (p *SimPanel) Param(cmd byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.params[cmd]...)
}

func (p *SimPanel) Windows() []tft.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tft.Rect(nil), p.windows...)
}

// Bursts counts pixel streams that reached the framebuffer.
func (p *SimPanel) Bursts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bursts
}

// StallBursts keeps async bursts in flight until release is called.
func (p *SimPanel) StallBursts() (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.stall = ch
	p.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.stall = nil
			p.mu.Unlock()
			close(ch)
		})
	}
}

// asyncPanel completes pixel bursts from another goroutine, like a DMA
// channel. While a burst is in flight the bus refuses other traffic.
type asyncPanel struct{ *SimPanel }

var _ tft.AsyncBus = asyncPanel{}

func (a asyncPanel) Tx(w, r []byte) error {
	a.mu.Lock()
	busy := a.inflight
	a.mu.Unlock()
	if busy {
		return errcode.Busy
	}
	return a.SimPanel.Tx(w, r)
}

func (a asyncPanel) StartTx(w []byte, done func(error)) error {
	a.mu.Lock()
	if a.inflight {
		a.mu.Unlock()
		return errcode.Busy
	}
	a.inflight = true
	stall := a.stall
	a.mu.Unlock()
	go func() {
		if stall != nil {
			<-stall
		}
		a.mu.Lock()
		err := a.dataLocked(w)
		a.inflight = false
		a.mu.Unlock()
		done(err)
	}()
	return nil
}
