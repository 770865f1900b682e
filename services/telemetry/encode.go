package telemetry

import (
	"encoding/binary"
	"math"

	"invmon/types"
)

// CharID indexes the exported GATT characteristics.
type CharID uint8

const (
	Temperature CharID = iota
	Humidity
	Voltage
	Current
	Power
	StateOfCharge
	Runtime
	NumChars
)

// Char describes where a value lives in the GATT table.
type Char struct {
	Service uint16
	UUID    uint16
	Name    string
}

// Chars follows the Bluetooth SIG assigned numbers: Environmental Sensing,
// the power characteristics under 0x181F, and Battery.
var Chars = [NumChars]Char{
	Temperature:   {0x181A, 0x2A6E, "temperature"},
	Humidity:      {0x181A, 0x2A6F, "humidity"},
	Voltage:       {0x181F, 0x2B18, "voltage"},
	Current:       {0x181F, 0x2AEE, "current"},
	Power:         {0x181F, 0x2B05, "power"},
	StateOfCharge: {0x180F, 0x2A19, "soc"},
	Runtime:       {0x180F, 0x2B2E, "runtime"},
}

// Hundredths encodes v*100 as a little-endian int16, saturating at the
// int16 range.
func Hundredths(v float32) []byte {
	x := float64(v) * 100
	switch {
	case math.IsNaN(x):
		x = 0
	case x > math.MaxInt16:
		x = math.MaxInt16
	case x < math.MinInt16:
		x = math.MinInt16
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(int16(x)))
	return b[:]
}

// Seconds encodes a runtime as a little-endian uint32; unbounded and
// oversized values become 0xFFFFFFFF.
func Seconds(s uint64) []byte {
	if s > math.MaxUint32 {
		s = math.MaxUint32
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(s))
	return b[:]
}

// Encode returns the characteristic values for s. Entries whose sensor is
// invalid are nil.
func Encode(s types.Snapshot) [NumChars][]byte {
	var out [NumChars][]byte
	if s.EnvValid {
		out[Temperature] = Hundredths(s.TempC)
		out[Humidity] = Hundredths(s.Humidity)
	}
	if s.PowerValid {
		out[Voltage] = Hundredths(s.VoltageV)
		out[Current] = Hundredths(s.CurrentA)
		out[Power] = Hundredths(s.PowerW)
		out[StateOfCharge] = Hundredths(s.BatteryPercent)
		out[Runtime] = Seconds(s.RuntimeS)
	}
	return out
}

// services lists the distinct GATT services in table order.
func services() []uint16 {
	var out []uint16
	for _, c := range Chars {
		if len(out) == 0 || out[len(out)-1] != c.Service {
			out = append(out, c.Service)
		}
	}
	return out
}

func width(id CharID) int {
	if id == Runtime {
		return 4
	}
	return 2
}
