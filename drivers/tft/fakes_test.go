package tft

import (
	"errors"
	"sync"
	"time"

	"invmon/errcode"
	"invmon/types"

	"tinygo.org/x/drivers"
)

const (
	testDC  = 19
	testRST = 21
)

var errBus = errors.New("spi: bus error")

func testPanel() *Panel {
	return &Panel{
		Name:        "testpanel",
		Width:       240,
		Height:      320,
		Clock:       1_000_000,
		Retries:     3,
		BufferLines: 40,
		ResetLow:    10 * time.Millisecond,
		ResetWait:   120 * time.Millisecond,
		MADCTL:      [4]byte{0x08, 0x48, 0x88, 0xB8},
		Init: []Command{
			{Cmd: SWRESET, Delay: 150 * time.Millisecond},
			{Cmd: COLMOD, Data: []byte{0x55}},
			{Cmd: MADCTL},
			{Cmd: SLPOUT, Delay: 120 * time.Millisecond},
			{Cmd: DISPON},
		},
	}
}

func testConfig() Config {
	return Config{
		SPI:     types.SPIConfig{Bus: "spi0", SCK: 2, SDO: 3, SDI: types.NoPin, CS: types.NoPin},
		DC:      testDC,
		RST:     testRST,
		Timeout: 100 * time.Millisecond,
	}
}

// fakePin records the last level written.
type fakePin struct {
	mu    sync.Mutex
	level bool
}

func (p *fakePin) Set(high bool) { p.mu.Lock(); p.level = high; p.mu.Unlock() }
func (p *fakePin) get() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.level }

// fakeBus decodes controller traffic the way a panel would: a byte written
// with DC low is a command, bytes with DC high are its parameters.
type fakeBus struct {
	mu      sync.Mutex
	dc      *fakePin
	lastCmd byte
	cmds    []byte
	madctl  []byte
	casets  int
	ramwrs  int
	windows []Rect
	bursts  [][]byte
	col     [2]uint16

	// Fault injection; n counts from 1.
	failCmd    func(cmd byte) bool
	failWindow func(n int) bool
	failBurst  func(n int) bool
	// When set, each burst blocks until the channel yields.
	gate chan struct{}
	// Observed at the start of each burst.
	onBurst func()
}

func (b *fakeBus) Transfer(w byte) (byte, error) { return 0, nil }

func (b *fakeBus) Tx(w, r []byte) error {
	if !b.dc.get() {
		return b.command(w[0])
	}
	b.mu.Lock()
	cmd := b.lastCmd
	b.mu.Unlock()
	if cmd == RAMWR {
		return b.pixels(w)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch cmd {
	case MADCTL:
		b.madctl = append(b.madctl, w[0])
	case CASET:
		b.col = [2]uint16{uint16(w[0])<<8 | uint16(w[1]), uint16(w[2])<<8 | uint16(w[3])}
	case RASET:
		b.windows = append(b.windows, Rect{
			X1: b.col[0], X2: b.col[1],
			Y1: uint16(w[0])<<8 | uint16(w[1]), Y2: uint16(w[2])<<8 | uint16(w[3]),
		})
	}
	return nil
}

func (b *fakeBus) command(c byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastCmd = c
	b.cmds = append(b.cmds, c)
	if b.failCmd != nil && b.failCmd(c) {
		return errBus
	}
	switch c {
	case CASET:
		b.casets++
		if b.failWindow != nil && b.failWindow(b.casets) {
			return errBus
		}
	case RAMWR:
		b.ramwrs++
	}
	return nil
}

func (b *fakeBus) pixels(w []byte) error {
	if b.onBurst != nil {
		b.onBurst()
	}
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failBurst != nil && b.failBurst(b.ramwrs) {
		return errBus
	}
	b.bursts = append(b.bursts, append([]byte(nil), w...))
	return nil
}

func (b *fakeBus) counts() (casets, ramwrs, bursts int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.casets, b.ramwrs, len(b.bursts)
}

// asyncBus completes bursts from another goroutine, like a DMA interrupt.
// Completions for bursts listed in drop are never delivered; bursts listed
// in late finish after the given delay.
type asyncBus struct {
	*fakeBus
	mu       sync.Mutex
	started  int
	inflight int
	overlap  int
	drop     map[int]bool
	late     map[int]time.Duration
	wg       sync.WaitGroup
}

func (a *asyncBus) StartTx(w []byte, done func(error)) error {
	a.mu.Lock()
	a.started++
	n := a.started
	a.inflight++
	if a.inflight > 1 {
		a.overlap++
	}
	delay := a.late[n]
	a.mu.Unlock()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if delay > 0 {
			time.Sleep(delay)
		}
		err := a.fakeBus.pixels(w)
		a.mu.Lock()
		a.inflight--
		a.mu.Unlock()
		if a.drop[n] {
			return
		}
		done(err)
	}()
	return nil
}

// fakeResources is an in-memory board.
type fakeResources struct {
	mu      sync.Mutex
	pins    map[int]*fakePin
	owners  map[int]string
	spiBusy bool
	bus     drivers.SPI
	fb      *fakeBus
	spiErr  error
	slept   time.Duration
}

func newFakeResources() *fakeResources {
	r := &fakeResources{pins: map[int]*fakePin{}, owners: map[int]string{}}
	r.fb = &fakeBus{dc: r.pin(testDC)}
	r.bus = r.fb
	return r
}

// withAsync swaps in a bus that reports completion asynchronously.
func (r *fakeResources) withAsync(drop ...int) *asyncBus {
	a := &asyncBus{fakeBus: r.fb, drop: map[int]bool{}, late: map[int]time.Duration{}}
	for _, n := range drop {
		a.drop[n] = true
	}
	r.bus = a
	return a
}

func (r *fakeResources) pin(n int) *fakePin {
	p, ok := r.pins[n]
	if !ok {
		p = &fakePin{}
		r.pins[n] = p
	}
	return p
}

func (r *fakeResources) ClaimOutput(devID string, n int) (Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.owners[n]; taken {
		return nil, errcode.PinInUse
	}
	r.owners[n] = devID
	return r.pin(n), nil
}

func (r *fakeResources) ReleasePin(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[n] == devID {
		delete(r.owners, n)
	}
}

func (r *fakeResources) ClaimSPI(devID string, cfg types.SPIConfig) (drivers.SPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spiErr != nil {
		return nil, r.spiErr
	}
	if r.spiBusy {
		return nil, errcode.BusInUse
	}
	r.spiBusy = true
	return r.bus, nil
}

func (r *fakeResources) ReleaseSPI(devID, bus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spiBusy = false
	return nil
}

func (r *fakeResources) Sleep(d time.Duration) {
	r.mu.Lock()
	r.slept += d
	r.mu.Unlock()
}

func (r *fakeResources) claimed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.owners)
	if r.spiBusy {
		n++
	}
	return n
}
