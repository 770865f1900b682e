//go:build rp2040 && !cyw43439

package telemetry

import "invmon/errcode"

// BLE is unavailable on boards without a radio.
type BLE struct{}

func StartBLE(name string) (*BLE, error) {
	return nil, &errcode.E{C: errcode.Error, Op: "ble", Msg: "no radio on this board"}
}

func (b *BLE) Notify(id CharID, value []byte) error { return errcode.InvalidState }
