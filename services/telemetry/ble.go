//go:build !rp2040 || cyw43439

package telemetry

import (
	"invmon/errcode"

	"tinygo.org/x/bluetooth"
)

// BLE is a GATT peripheral exposing Chars with read and notify permission.
type BLE struct {
	handles [NumChars]bluetooth.Characteristic
}

// StartBLE enables the default adapter, registers the services and starts
// advertising under name.
func StartBLE(name string) (*BLE, error) {
	if name == "" {
		name = "invmon"
	}
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, errcode.Wrap(errcode.Error, "ble enable", err)
	}
	b := &BLE{}
	var uuids []bluetooth.UUID
	for _, svc := range services() {
		var chars []bluetooth.CharacteristicConfig
		for id, c := range Chars {
			if c.Service != svc {
				continue
			}
			chars = append(chars, bluetooth.CharacteristicConfig{
				Handle: &b.handles[id],
				UUID:   bluetooth.New16BitUUID(c.UUID),
				Value:  make([]byte, width(CharID(id))),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			})
		}
		u := bluetooth.New16BitUUID(svc)
		if err := adapter.AddService(&bluetooth.Service{UUID: u, Characteristics: chars}); err != nil {
			return nil, errcode.Wrap(errcode.Error, "ble add service", err)
		}
		uuids = append(uuids, u)
	}
	adv := adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: uuids,
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.Error, "ble advertise", err)
	}
	if err := adv.Start(); err != nil {
		return nil, errcode.Wrap(errcode.Error, "ble advertise", err)
	}
	return b, nil
}

func (b *BLE) Notify(id CharID, value []byte) error {
	if id >= NumChars {
		return errcode.InvalidArgument
	}
	_, err := b.handles[id].Write(value)
	return err
}
