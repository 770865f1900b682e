package tft

import (
	"time"

	"invmon/errcode"
)

// Callback receives the outcome of a flush exactly once.
type Callback func(err error)

// request is one flush handed from the caller to the worker. data views the
// arbiter buffer; the sender holds the permit until the worker releases it.
type request struct {
	rect Rect
	data []byte
	done Callback
	wake bool // shutdown sentinel, carries no permit
}

type requestQueue chan request

func (q requestQueue) put(r request, d time.Duration) bool {
	select {
	case q <- r:
		return true
	default:
	}
	if d <= 0 {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case q <- r:
		return true
	case <-t.C:
		return false
	}
}

func (q requestQueue) get(d time.Duration) (request, bool) {
	select {
	case r := <-q:
		return r, true
	default:
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case r := <-q:
		return r, true
	case <-t.C:
		return request{}, false
	}
}

// tryGet never blocks.
func (q requestQueue) tryGet() (request, bool) {
	select {
	case r := <-q:
		return r, true
	default:
		return request{}, false
	}
}

// Notify adapts a result channel to a Callback. The send does not block, so
// ch needs room for every result it is expected to carry.
func Notify(ch chan<- error) Callback {
	return func(err error) {
		select {
		case ch <- err:
		default:
		}
	}
}

// Wait blocks for one result from ch. It returns errcode.Timeout if none
// arrives within d.
func Wait(ch <-chan error, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case err := <-ch:
		return err
	case <-t.C:
		return &errcode.E{C: errcode.Timeout, Op: "wait", Msg: "no flush result"}
	}
}

// lock is a mutex that can be acquired with a deadline.
type lock chan struct{}

func newLock() lock { return make(lock, 1) }

func (l lock) acquire(d time.Duration) bool {
	select {
	case l <- struct{}{}:
		return true
	default:
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case l <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

func (l lock) hold()    { l <- struct{}{} }
func (l lock) release() { <-l }
