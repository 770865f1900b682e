//go:build rp2040

package platform

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
	"runtime/volatile"
	"sync"
	"unsafe"

	"invmon/errcode"
)

// dmaChannel overlays one channel's register block.
type dmaChannel struct {
	READ_ADDR            volatile.Register32
	WRITE_ADDR           volatile.Register32
	TRANS_COUNT          volatile.Register32
	CTRL_TRIG            volatile.Register32
	AL1_CTRL             volatile.Register32
	AL1_READ_ADDR        volatile.Register32
	AL1_WRITE_ADDR       volatile.Register32
	AL1_TRANS_COUNT_TRIG volatile.Register32
	AL2_CTRL             volatile.Register32
	AL2_TRANS_COUNT      volatile.Register32
	AL2_READ_ADDR        volatile.Register32
	AL2_WRITE_ADDR_TRIG  volatile.Register32
	AL3_CTRL             volatile.Register32
	AL3_WRITE_ADDR       volatile.Register32
	AL3_TRANS_COUNT      volatile.Register32
	AL3_READ_ADDR_TRIG   volatile.Register32
}

const (
	dmaChannels = 12

	dreqSPI0TX = 16
	dreqSPI1TX = 18
)

var (
	dmaRegs = unsafe.Slice((*dmaChannel)(unsafe.Pointer(&rp.DMA.CH0_READ_ADDR)), dmaChannels)

	dmaMu       sync.Mutex
	dmaReserved uint16
	// dmaOwners maps a channel to the SPI it feeds; read from the IRQ.
	dmaOwners [dmaChannels]*rp2SPI
)

func init() {
	interrupt.New(rp.IRQ_DMA_IRQ_0, dmaIRQ).Enable()
}

func reserveDMA(s *rp2SPI) (uint8, error) {
	dmaMu.Lock()
	defer dmaMu.Unlock()
	for ch := uint8(0); ch < dmaChannels; ch++ {
		if dmaReserved&(1<<ch) == 0 {
			dmaReserved |= 1 << ch
			dmaOwners[ch] = s
			return ch, nil
		}
	}
	return 0, &errcode.E{C: errcode.NoMemory, Op: "spi", Msg: "no free DMA channel"}
}

// dmaIRQ acknowledges finished channels and completes their transfers.
func dmaIRQ(interrupt.Interrupt) {
	st := rp.DMA.INTS0.Get()
	rp.DMA.INTS0.Set(st)
	for ch := uint8(0); ch < dmaChannels; ch++ {
		if st&(1<<ch) != 0 && dmaOwners[ch] != nil {
			dmaOwners[ch].finish()
		}
	}
}

// rp2SPI adds DMA-driven pixel bursts to a hardware SPI block. The burst is
// paced by the SPI TX DREQ and its completion is reported from the DMA
// interrupt once the shifter is idle. Only one transfer may be in flight;
// both StartTx and Tx refuse with Busy until it has finished.
type rp2SPI struct {
	*machine.SPI
	ch   uint8
	dreq uint32

	inflight volatile.Register8
	done     func(error)
}

func newRP2SPI(hw *machine.SPI, dreq uint32) (*rp2SPI, error) {
	s := &rp2SPI{SPI: hw, dreq: dreq}
	ch, err := reserveDMA(s)
	if err != nil {
		return nil, err
	}
	s.ch = ch
	hw.Bus.SSPDMACR.SetBits(rp.SPI0_SSPDMACR_TXDMAE)
	rp.DMA.INTE0.SetBits(1 << ch)
	return s, nil
}

func (s *rp2SPI) busy() bool { return s.inflight.Get() != 0 }

func (s *rp2SPI) Tx(w, r []byte) error {
	if s.busy() {
		return errcode.Busy
	}
	return s.SPI.Tx(w, r)
}

func (s *rp2SPI) StartTx(w []byte, done func(error)) error {
	if s.busy() {
		return errcode.Busy
	}
	if len(w) == 0 {
		done(nil)
		return nil
	}
	s.done = done
	s.inflight.Set(1)
	c := &dmaRegs[s.ch]
	c.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(unsafe.SliceData(w)))))
	c.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(&s.Bus.SSPDR))))
	c.TRANS_COUNT.Set(uint32(len(w)))
	c.CTRL_TRIG.Set(rp.DMA_CH0_CTRL_TRIG_INCR_READ |
		rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_SIZE_BYTE<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos |
		uint32(s.ch)<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos |
		s.dreq<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos |
		rp.DMA_CH0_CTRL_TRIG_EN)
	return nil
}

// finish runs in interrupt context.
func (s *rp2SPI) finish() {
	for s.Bus.SSPSR.HasBits(rp.SPI0_SSPSR_BSY) {
	}
	for s.Bus.SSPSR.HasBits(rp.SPI0_SSPSR_RNE) {
		s.Bus.SSPDR.Get()
	}
	done := s.done
	s.done = nil
	s.inflight.Set(0)
	if done != nil {
		done(nil)
	}
}
