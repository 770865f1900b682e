package tft

import (
	"sync"

	"invmon/errcode"
)

// Pool holds up to a fixed number of handles for one panel model. A
// singleton pool returns the live handle instead of failing when it is full.
type Pool struct {
	mu        sync.Mutex
	panel     *Panel
	slots     []*Handle
	singleton bool
}

// NewPool returns a pool of n handles for panel.
func NewPool(panel *Panel, n int) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{panel: panel, slots: make([]*Handle, n)}
}

// NewSingleton returns a pool with one slot whose Init is idempotent.
func NewSingleton(panel *Panel) *Pool {
	p := NewPool(panel, 1)
	p.singleton = true
	return p
}

func (p *Pool) Panel() *Panel { return p.panel }

// InUse counts live handles.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, h := range p.slots {
		if h != nil {
			n++
		}
	}
	return n
}

// Init validates cfg, applies defaults and brings a panel up on a free slot.
// The pool lock is held for the whole bring-up.
func (p *Pool) Init(cfg Config, res Resources) (*Handle, error) {
	if res == nil {
		return nil, &errcode.E{C: errcode.InvalidArgument, Op: "init", Msg: "nil resources"}
	}
	cfg = cfg.withDefaults(p.panel)
	if err := cfg.validate(p.panel); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.singleton && p.slots[0] != nil {
		return p.slots[0], nil
	}
	slot := -1
	for i, h := range p.slots {
		if h == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, &errcode.E{C: errcode.NoMemory, Op: "init", Msg: "no free " + p.panel.Name + " handle"}
	}

	h := newHandle(p, slot, cfg, res)
	if err := h.open(); err != nil {
		return nil, err
	}
	p.slots[slot] = h
	return h, nil
}

func (p *Pool) free(h *Handle) {
	p.mu.Lock()
	if p.slots[h.id] == h {
		p.slots[h.id] = nil
	}
	p.mu.Unlock()
}
