// Package st7735 binds the flush engine to ST7735 128x160 controllers.
// There is a single panel per process; Init on a live panel returns it.
package st7735

import (
	"time"

	"invmon/drivers/tft"
)

const (
	frmctr1 = 0xB1
	frmctr2 = 0xB2
	frmctr3 = 0xB3
	invctr  = 0xB4
	pwctr1  = 0xC0
	pwctr2  = 0xC1
	pwctr3  = 0xC2
	pwctr4  = 0xC3
	pwctr5  = 0xC4
	vmctr1  = 0xC5
	gmctrp1 = 0xE0
	gmctrn1 = 0xE1
)

var Panel = tft.Panel{
	Name:        "st7735",
	Width:       128,
	Height:      160,
	Clock:       15_000_000,
	Retries:     3,
	BufferLines: 64,
	ResetLow:    10 * time.Millisecond,
	ResetWait:   120 * time.Millisecond,
	MADCTL:      [4]byte{0xC0, 0xA0, 0x00, 0x60},
	Init: []tft.Command{
		{Cmd: tft.SWRESET, Delay: 150 * time.Millisecond},
		{Cmd: tft.SLPOUT, Delay: 500 * time.Millisecond},
		{Cmd: frmctr1, Data: []byte{0x01, 0x2C, 0x2D}},
		{Cmd: frmctr2, Data: []byte{0x01, 0x2C, 0x2D}},
		{Cmd: frmctr3, Data: []byte{0x01, 0x2C, 0x2D, 0x01, 0x2C, 0x2D}},
		{Cmd: invctr, Data: []byte{0x07}},
		{Cmd: pwctr1, Data: []byte{0xA2, 0x02, 0x84}},
		{Cmd: pwctr2, Data: []byte{0xC5}},
		{Cmd: pwctr3, Data: []byte{0x0A, 0x00}},
		{Cmd: pwctr4, Data: []byte{0x8A, 0x2A}},
		{Cmd: pwctr5, Data: []byte{0x8A, 0xEE}},
		{Cmd: vmctr1, Data: []byte{0x0E}},
		{Cmd: tft.INVOFF},
		{Cmd: tft.MADCTL},
		{Cmd: tft.COLMOD, Data: []byte{0x05}},
		{Cmd: gmctrp1, Data: []byte{0x02, 0x1C, 0x07, 0x12, 0x37, 0x32, 0x29, 0x2D, 0x29, 0x25, 0x2B, 0x39, 0x00, 0x01, 0x03, 0x10}},
		{Cmd: gmctrn1, Data: []byte{0x03, 0x1D, 0x07, 0x06, 0x2E, 0x2C, 0x29, 0x2D, 0x2E, 0x2E, 0x37, 0x3F, 0x00, 0x00, 0x02, 0x10}},
		{Cmd: tft.NORON, Delay: 10 * time.Millisecond},
		{Cmd: tft.DISPON, Delay: 100 * time.Millisecond},
	},
}

var singleton = tft.NewSingleton(&Panel)

// Init brings the panel up, or returns the live handle.
func Init(cfg tft.Config, res tft.Resources) (*tft.Handle, error) {
	return singleton.Init(cfg, res)
}
