package tft

import (
	"time"

	"invmon/errcode"

	"tinygo.org/x/drivers"
)

// completion reports the outcome of the transfer numbered seq.
type completion struct {
	seq uint32
	err error
}

// signal carries transfer completions from interrupt context. post never
// blocks and never allocates. It holds a few slots so a late completion from
// an abandoned transfer cannot crowd out the current one.
type signal chan completion

const signalSlots = 4

func newSignal() signal { return make(signal, signalSlots) }

func (s signal) post(seq uint32, err error) {
	select {
	case s <- completion{seq: seq, err: err}:
	default:
	}
}

// drain discards completions already delivered.
func (s signal) drain() {
	for {
		select {
		case <-s:
		default:
			return
		}
	}
}

// wait returns the completion for seq, discarding any other posting. It
// reports false when none arrives within d.
func (s signal) wait(seq uint32, d time.Duration) (bool, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case c := <-s:
			if c.seq == seq {
				return true, c.err
			}
		case <-t.C:
			return false, nil
		}
	}
}

// transport performs single exchanges with the controller: a command byte
// with DC low, parameter bytes with DC high, or a pixel burst.
type transport struct {
	spi     drivers.SPI
	async   AsyncBus
	dc      Pin
	done    signal
	timeout time.Duration

	// seq numbers async bursts. pending is set while burst seq has timed
	// out without reporting completion.
	seq     uint32
	pending bool

	cmd [1]byte
	win [4]byte
}

func newTransport(spi drivers.SPI, dc Pin, timeout time.Duration) *transport {
	t := &transport{spi: spi, dc: dc, done: newSignal(), timeout: timeout}
	if a, ok := spi.(AsyncBus); ok {
		t.async = a
	}
	return t
}

func (t *transport) command(c byte) error {
	t.dc.Set(false)
	t.cmd[0] = c
	if err := t.spi.Tx(t.cmd[:], nil); err != nil {
		return errcode.Wrap(errcode.TransferFailed, "command", err)
	}
	return nil
}

func (t *transport) data(b []byte) error {
	t.dc.Set(true)
	if err := t.spi.Tx(b, nil); err != nil {
		return errcode.Wrap(errcode.TransferFailed, "data", err)
	}
	return nil
}

func (t *transport) send(c byte, b []byte) error {
	if err := t.command(c); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return t.data(b)
}

// setWindow programs the active rectangle with big-endian column and row bounds.
func (t *transport) setWindow(r Rect) error {
	t.win = [4]byte{byte(r.X1 >> 8), byte(r.X1), byte(r.X2 >> 8), byte(r.X2)}
	if err := t.send(CASET, t.win[:]); err != nil {
		return err
	}
	t.win = [4]byte{byte(r.Y1 >> 8), byte(r.Y1), byte(r.Y2 >> 8), byte(r.Y2)}
	return t.send(RASET, t.win[:])
}

// burst writes a big-endian RGB565 stream into the active rectangle. On an
// AsyncBus it waits for the completion of this burst only; a missed
// completion counts as a failed attempt.
func (t *transport) burst(px []byte) error {
	if err := t.command(RAMWR); err != nil {
		return err
	}
	t.dc.Set(true)
	if t.async == nil {
		if err := t.spi.Tx(px, nil); err != nil {
			return errcode.Wrap(errcode.TransferFailed, "burst", err)
		}
		return nil
	}
	t.done.drain()
	t.seq++
	seq, sig := t.seq, t.done
	if err := t.async.StartTx(px, func(err error) { sig.post(seq, err) }); err != nil {
		return errcode.Wrap(errcode.TransferFailed, "burst", err)
	}
	ok, err := t.done.wait(seq, t.timeout)
	if !ok {
		t.pending = true
		return &errcode.E{C: errcode.Timeout, Op: "burst", Msg: "no transfer-complete signal"}
	}
	if err != nil {
		return errcode.Wrap(errcode.TransferFailed, "burst", err)
	}
	return nil
}

// settle gives a timed-out burst one more timeout to finish before the bus
// is used again. A completion that never arrives is abandoned; its late
// posting is ignored by sequence number.
func (t *transport) settle() {
	if !t.pending {
		return
	}
	t.pending = false
	t.done.wait(t.seq, t.timeout)
}

// reset pulses the reset line low.
func (t *transport) reset(rst Pin, p *Panel, sleep func(time.Duration)) {
	rst.Set(true)
	rst.Set(false)
	sleep(p.ResetLow)
	rst.Set(true)
	sleep(p.ResetWait)
}

// bringUp sends the panel's initialisation table.
func (t *transport) bringUp(p *Panel, rot int, sleep func(time.Duration)) error {
	for _, c := range p.Init {
		data := c.Data
		if c.Cmd == MADCTL && data == nil {
			data = []byte{p.MADCTL[rot&3]}
		}
		if err := t.send(c.Cmd, data); err != nil {
			return err
		}
		if c.Delay > 0 {
			sleep(c.Delay)
		}
	}
	return nil
}
