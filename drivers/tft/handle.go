// Package tft is an asynchronous flush engine for SPI TFT controllers.
//
// A Handle owns one panel. Flush copies pixels into a single DMA scratch
// buffer guarded by a permit, queues the request and returns; a worker
// goroutine programs the active rectangle, streams the pixels with bounded
// retries and reports the outcome through the request's Callback exactly once.
package tft

import (
	"strconv"
	"sync/atomic"

	"invmon/errcode"
	"invmon/x/mathx"

	"go.uber.org/multierr"
	"tinygo.org/x/drivers"
)

// Debug enables per-transfer logging on the console.
var Debug = false

// Handle is an initialised panel. It is obtained from Pool.Init and is
// invalid after Deinit.
type Handle struct {
	id    int
	name  string
	pool  *Pool
	panel *Panel
	cfg   Config
	res   Resources

	mu          lock
	state       State
	initialized bool
	shutdown    bool

	spi    drivers.SPI
	dc     Pin
	rst    Pin
	tx     *transport
	arb    *arbiter
	queue  requestQueue
	exited chan struct{}

	stats counters
}

func newHandle(p *Pool, slot int, cfg Config, res Resources) *Handle {
	return &Handle{
		id:    slot,
		name:  p.panel.Name + "." + strconv.Itoa(slot),
		pool:  p,
		panel: p.panel,
		cfg:   cfg,
		res:   res,
		mu:    newLock(),
	}
}

// ID is the handle's pool slot.
func (h *Handle) ID() int { return h.id }

// Config returns the effective configuration after defaults.
func (h *Handle) Config() Config { return h.cfg }

// Capacity is the scratch buffer size in pixels.
func (h *Handle) Capacity() int { return int(h.cfg.Width) * h.cfg.BufferLines }

func (h *Handle) Stats() Stats { return h.stats.snapshot() }

// open claims resources, starts the worker and brings the panel up. On
// failure everything created so far is released.
func (h *Handle) open() (err error) {
	worker := false
	defer func() {
		if err == nil {
			return
		}
		if worker {
			h.stopWorker()
		}
		if cerr := h.releaseResources(); cerr != nil {
			println("[tft]", h.name, "init cleanup:", cerr.Error())
		}
	}()

	if h.dc, err = h.res.ClaimOutput(h.name, h.cfg.DC); err != nil {
		return err
	}
	if h.rst, err = h.res.ClaimOutput(h.name, h.cfg.RST); err != nil {
		return err
	}
	if h.spi, err = h.res.ClaimSPI(h.name, h.cfg.SPI); err != nil {
		return err
	}

	h.tx = newTransport(h.spi, h.dc, h.cfg.Timeout)
	h.arb = newArbiter(h.Capacity())
	h.queue = make(requestQueue, h.cfg.QueueSize)
	h.exited = make(chan struct{})
	go h.run()
	worker = true

	h.tx.reset(h.rst, h.panel, h.res.Sleep)
	if err = h.tx.bringUp(h.panel, int(h.cfg.Rotation), h.res.Sleep); err != nil {
		return err
	}

	h.mu.hold()
	h.initialized = true
	h.state = Idle
	h.mu.release()
	if Debug {
		println("[tft]", h.name, "ready", h.cfg.Width, "x", h.cfg.Height, "buffer", h.Capacity())
	}
	return nil
}

// stopWorker raises the shutdown flag, wakes the worker and waits for it to
// exit. The handle lock is not held while waiting.
func (h *Handle) stopWorker() {
	h.mu.hold()
	h.shutdown = true
	h.queue.put(request{wake: true}, 0)
	h.mu.release()
	<-h.exited
}

func (h *Handle) releaseResources() error {
	var err error
	if h.spi != nil {
		err = multierr.Append(err, h.res.ReleaseSPI(h.name, h.cfg.SPI.Bus))
		h.spi = nil
	}
	if h.rst != nil {
		h.res.ReleasePin(h.name, h.cfg.RST)
		h.rst = nil
	}
	if h.dc != nil {
		h.res.ReleasePin(h.name, h.cfg.DC)
		h.dc = nil
	}
	return err
}

// Deinit stops the worker, fails any queued requests with InvalidState and
// returns the handle's resources to the pool. It must not be called from a
// flush callback.
func (h *Handle) Deinit() error {
	if h == nil {
		return errcode.InvalidArgument
	}
	if !h.mu.acquire(h.cfg.Timeout) {
		return &errcode.E{C: errcode.Timeout, Op: "deinit", Msg: "handle lock"}
	}
	if !h.initialized || h.shutdown {
		h.mu.release()
		return errcode.InvalidState
	}
	h.shutdown = true
	h.queue.put(request{wake: true}, 0)
	h.mu.release()

	<-h.exited

	h.mu.hold()
	h.initialized = false
	h.mu.release()

	err := h.releaseResources()
	h.pool.free(h)
	if Debug {
		println("[tft]", h.name, "deinit")
	}
	return err
}

// IsReady reports whether the handle is initialised and the worker is idle.
// It is advisory; Flush is still bounded by the queue.
func (h *Handle) IsReady() bool {
	if h == nil || !h.mu.acquire(h.cfg.Timeout) {
		return false
	}
	ok := h.initialized && !h.shutdown && h.state == Idle
	h.mu.release()
	return ok
}

func (h *Handle) accepting() error {
	if !h.mu.acquire(h.cfg.Timeout) {
		return &errcode.E{C: errcode.Timeout, Op: "flush", Msg: "handle lock"}
	}
	ok := h.initialized && !h.shutdown
	h.mu.release()
	if !ok {
		return errcode.InvalidState
	}
	return nil
}

// Flush queues pixels (native RGB565, one per pixel of r in row-major order)
// for transfer into r. A nil error means done will be called exactly once
// with the transfer outcome. QueueFull is both returned and passed to done.
func (h *Handle) Flush(r Rect, pixels []uint16, done Callback) error {
	if h == nil {
		return errcode.InvalidArgument
	}
	if err := h.accepting(); err != nil {
		return err
	}
	if err := h.cfg.check(r, len(pixels), h.Capacity()); err != nil {
		return err
	}
	return h.submit(r, done, func() []byte { return h.arb.fill(pixels) })
}

// submit queues a request and passes QueueFull to done as well as returning it.
func (h *Handle) submit(r Rect, done Callback, fill func() []byte) error {
	err := h.enqueue(r, done, fill)
	if err == errcode.QueueFull && done != nil {
		done(err)
	}
	return err
}

// enqueue takes the permit, fills the buffer and queues the request. done
// is only ever called by the worker.
func (h *Handle) enqueue(r Rect, done Callback, fill func() []byte) error {
	if !h.arb.acquire(h.cfg.Timeout) {
		return &errcode.E{C: errcode.Timeout, Op: "flush", Msg: "DMA buffer busy"}
	}
	data := fill()

	if !h.mu.acquire(h.cfg.Timeout) {
		h.arb.release()
		return &errcode.E{C: errcode.Timeout, Op: "flush", Msg: "handle lock"}
	}
	if !h.initialized || h.shutdown {
		h.mu.release()
		h.arb.release()
		return errcode.InvalidState
	}
	if !h.queue.put(request{rect: r, data: data, done: done}, h.cfg.Timeout) {
		h.mu.release()
		h.arb.release()
		atomic.AddUint32(&h.stats.queueFull, 1)
		return errcode.QueueFull
	}
	h.mu.release()
	return nil
}

// SetScreen fills the whole active area with color using buffer-sized
// horizontal bands. done is called once, after the last band, with the first
// failure seen by any band. If any band finds the queue full, SetScreen
// returns QueueFull and passes it to done; bands already queued still run.
func (h *Handle) SetScreen(color uint16, done Callback) error {
	if h == nil {
		return errcode.InvalidArgument
	}
	if err := h.accepting(); err != nil {
		return err
	}
	w, height := int(h.cfg.Width), int(h.cfg.Height)
	rows := h.Capacity() / w
	bands := int(mathx.CeilDiv(uint(height), uint(rows)))

	// Band callbacks all run on the worker.
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for i := 0; i < bands; i++ {
		y1 := i * rows
		y2 := mathx.Min(y1+rows, height) - 1
		n := w * (y2 - y1 + 1)
		cb := Callback(record)
		if i == bands-1 {
			cb = func(err error) {
				if err == nil {
					err = first
				}
				if done != nil {
					done(err)
				}
			}
		}
		r := Rect{X1: 0, Y1: uint16(y1), X2: uint16(w - 1), Y2: uint16(y2)}
		err := h.enqueue(r, cb, func() []byte { return h.arb.fillColor(color, n) })
		if err == errcode.QueueFull && done != nil {
			done(err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
