package tft

import (
	"encoding/binary"
	"sync/atomic"
	"time"
)

// arbiter guards the DMA scratch buffer with a single permit. The permit is
// taken by the producer before filling the buffer and returned by the worker
// once the transfer reading it has finished.
type arbiter struct {
	permit chan struct{}
	buf    []byte
	held   int32
}

func newArbiter(pixels int) *arbiter {
	a := &arbiter{
		permit: make(chan struct{}, 1),
		buf:    make([]byte, 2*pixels),
	}
	a.permit <- struct{}{}
	return a
}

func (a *arbiter) capacity() int { return len(a.buf) / 2 }

func (a *arbiter) acquire(d time.Duration) bool {
	select {
	case <-a.permit:
		atomic.AddInt32(&a.held, 1)
		return true
	default:
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-a.permit:
		atomic.AddInt32(&a.held, 1)
		return true
	case <-t.C:
		return false
	}
}

func (a *arbiter) release() {
	if atomic.AddInt32(&a.held, -1) < 0 {
		panic("tft: DMA permit released twice")
	}
	select {
	case a.permit <- struct{}{}:
	default:
	}
}

// fill copies px into the buffer in wire (big-endian) order.
func (a *arbiter) fill(px []uint16) []byte {
	for i, p := range px {
		binary.BigEndian.PutUint16(a.buf[2*i:], p)
	}
	return a.buf[:2*len(px)]
}

// fillColor repeats one colour n times.
func (a *arbiter) fillColor(c uint16, n int) []byte {
	hi, lo := byte(c>>8), byte(c)
	b := a.buf[:2*n]
	for i := 0; i < len(b); i += 2 {
		b[i], b[i+1] = hi, lo
	}
	return b
}
