// Package ili9341 binds the flush engine to ILI9341 240x320 controllers.
package ili9341

import (
	"time"

	"invmon/drivers/tft"
)

// MaxInstances is the number of panels that may be driven at once.
const MaxInstances = 2

const (
	pwctrB  = 0xCF
	pwrOn   = 0xED
	dtcA    = 0xE8
	pwctrA  = 0xCB
	prc     = 0xF7
	pwctr1  = 0xC0
	pwctr2  = 0xC1
	vmctr1  = 0xC5
	vmctr2  = 0xC7
	vscrsad = 0x37
	frmctr1 = 0xB1
	dfunctr = 0xB6
	gamma3  = 0xF2
	gmctrp1 = 0xE0
	gmctrn1 = 0xE1
)

// Panel is the ILI9341 controller description.
var Panel = tft.Panel{
	Name:        "ili9341",
	Width:       240,
	Height:      320,
	Clock:       40_000_000,
	Retries:     4,
	BufferLines: 32,
	ResetLow:    10 * time.Millisecond,
	ResetWait:   120 * time.Millisecond,
	// MY/MX/MV combinations with the BGR bit set.
	MADCTL: [4]byte{0x08, 0x48, 0x88, 0xB8},
	Init: []tft.Command{
		{Cmd: tft.SWRESET, Delay: 150 * time.Millisecond},
		{Cmd: 0xEF, Data: []byte{0x03, 0x80, 0x02}},
		{Cmd: pwctrB, Data: []byte{0x00, 0xC1, 0x30}},
		{Cmd: pwrOn, Data: []byte{0x64, 0x03, 0x12, 0x81}},
		{Cmd: dtcA, Data: []byte{0x85, 0x00, 0x78}},
		{Cmd: pwctrA, Data: []byte{0x39, 0x2C, 0x00, 0x34, 0x02}},
		{Cmd: prc, Data: []byte{0x20}},
		{Cmd: dtcA, Data: []byte{0x00, 0x00}},
		{Cmd: pwctr1, Data: []byte{0x23}},
		{Cmd: pwctr2, Data: []byte{0x10}},
		{Cmd: vmctr1, Data: []byte{0x3E, 0x28}},
		{Cmd: vmctr2, Data: []byte{0x86}},
		{Cmd: vscrsad, Data: []byte{0x00}},
		{Cmd: tft.COLMOD, Data: []byte{0x55}}, // 16 bpp
		{Cmd: frmctr1, Data: []byte{0x00, 0x18}},
		{Cmd: dfunctr, Data: []byte{0x08, 0x82, 0x27}},
		{Cmd: gamma3, Data: []byte{0x00}},
		{Cmd: tft.GAMSET, Data: []byte{0x01}},
		{Cmd: gmctrp1, Data: []byte{0x0F, 0x31, 0x2B, 0x0C, 0x0E, 0x08, 0x4E, 0xF1, 0x37, 0x07, 0x10, 0x03, 0x0E, 0x09, 0x00}},
		{Cmd: gmctrn1, Data: []byte{0x00, 0x0E, 0x14, 0x03, 0x11, 0x07, 0x31, 0xC1, 0x48, 0x08, 0x0F, 0x0C, 0x31, 0x36, 0x0F}},
		{Cmd: tft.MADCTL},
		{Cmd: tft.INVOFF},
		{Cmd: tft.SLPOUT, Delay: 150 * time.Millisecond},
		{Cmd: tft.DISPON, Delay: 20 * time.Millisecond},
	},
}

var pool = tft.NewPool(&Panel, MaxInstances)

// Init brings up an ILI9341 on a free instance slot. It fails with
// errcode.NoMemory when MaxInstances panels are already live.
func Init(cfg tft.Config, res tft.Resources) (*tft.Handle, error) {
	return pool.Init(cfg, res)
}

// InUse reports how many instances are live.
func InUse() int { return pool.InUse() }
