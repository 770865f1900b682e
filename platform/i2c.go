package platform

import (
	"time"

	"invmon/errcode"

	"tinygo.org/x/drivers"
)

type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

// i2cOwner runs every transaction for one bus on a single goroutine.
type i2cOwner struct {
	id     string
	hw     drivers.I2C
	pins   [2]int
	users  int
	reqs   chan i2cReq
	quit   chan struct{}
	exited chan struct{}
}

func newI2COwner(id string, hw drivers.I2C) *i2cOwner {
	o := &i2cOwner{
		id:     id,
		hw:     hw,
		reqs:   make(chan i2cReq, 16),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go o.loop()
	return o
}

func (o *i2cOwner) loop() {
	defer close(o.exited)
	for {
		select {
		case req := <-o.reqs:
			err := o.hw.Tx(req.addr, req.w, req.r)
			select {
			case req.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *i2cOwner) stop() error {
	close(o.quit)
	select {
	case <-o.exited:
		return nil
	case <-time.After(time.Second):
		return &errcode.E{C: errcode.Timeout, Op: "i2c close", Msg: o.id}
	}
}

// sharedI2C adapts the owner to drivers.I2C with bounded enqueue and
// completion waits.
type sharedI2C struct {
	o       *i2cOwner
	timeout time.Duration
}

var _ drivers.I2C = (*sharedI2C)(nil)

func (d *sharedI2C) Tx(addr uint16, w, r []byte) error {
	select {
	case <-d.o.quit:
		return errcode.UnknownBus
	default:
	}
	req := i2cReq{addr: addr, w: w, r: r, done: make(chan error, 1)}

	t := time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case d.o.reqs <- req:
	case <-d.o.quit:
		return errcode.UnknownBus
	case <-t.C:
		return errcode.Busy
	}

	select {
	case err := <-req.done:
		return err
	case <-t.C:
		return errcode.Timeout
	}
}
