package tft

import (
	"sync/atomic"

	"invmon/errcode"
)

// State is the worker's view of the panel.
type State uint8

const (
	Idle State = iota
	Busy
)

func (s State) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

// Stats counts request outcomes since Init.
type Stats struct {
	Completed uint32
	Failed    uint32
	Retries   uint32
	QueueFull uint32
}

type counters struct {
	completed, failed, retries, queueFull uint32
}

func (c *counters) snapshot() Stats {
	return Stats{
		Completed: atomic.LoadUint32(&c.completed),
		Failed:    atomic.LoadUint32(&c.failed),
		Retries:   atomic.LoadUint32(&c.retries),
		QueueFull: atomic.LoadUint32(&c.queueFull),
	}
}

// run is the transfer worker. It exits once it observes the shutdown flag
// after a dequeue, completing anything still queued with InvalidState.
func (h *Handle) run() {
	defer close(h.exited)
	for {
		req, ok := h.queue.get(h.cfg.Timeout)
		if h.stopping() {
			if ok {
				h.abandon(req)
			}
			for {
				r, more := h.queue.tryGet()
				if !more {
					break
				}
				h.abandon(r)
			}
			if Debug {
				println("[tft]", h.name, "worker exit")
			}
			return
		}
		if !ok || req.wake {
			continue
		}
		h.process(req)
	}
}

func (h *Handle) stopping() bool {
	h.mu.hold()
	s := h.shutdown
	h.mu.release()
	return s
}

func (h *Handle) abandon(req request) {
	if req.wake {
		return
	}
	h.arb.release()
	h.complete(req, errcode.InvalidState)
}

func (h *Handle) process(req request) {
	if !h.mu.acquire(h.cfg.Timeout) {
		h.arb.release()
		h.complete(req, &errcode.E{C: errcode.Timeout, Op: "flush", Msg: "state lock"})
		return
	}
	h.state = Busy
	h.mu.release()

	var err error
	for attempt := 1; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			atomic.AddUint32(&h.stats.retries, 1)
		}
		h.tx.settle()
		if err = h.tx.setWindow(req.rect); err != nil {
			if Debug {
				println("[tft]", h.name, "window attempt", attempt, "failed:", err.Error())
			}
			continue
		}
		if err = h.tx.burst(req.data); err == nil {
			break
		}
		if Debug {
			println("[tft]", h.name, "burst attempt", attempt, "failed:", err.Error())
		}
	}

	h.mu.hold()
	h.state = Idle
	h.mu.release()
	h.arb.release()

	if err != nil {
		err = &errcode.E{C: errcode.TransferFailed, Op: "flush", Msg: "retries exhausted", Err: err}
	}
	h.complete(req, err)
}

func (h *Handle) complete(req request, err error) {
	if err != nil {
		atomic.AddUint32(&h.stats.failed, 1)
	} else {
		atomic.AddUint32(&h.stats.completed, 1)
	}
	if req.done != nil {
		req.done(err)
	}
}
