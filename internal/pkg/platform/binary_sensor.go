package platform

import (
	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

type binarySensorDescription struct {
	Description
	isOn func(d *fritz.Device) *bool
}

var binarySensorDescriptions = []binarySensorDescription{
	{
		Description: Description{
			Key:         "alarm",
			Name:        "Alarm",
			DeviceClass: model.DeviceClassWindow,
			Suitable:    (*fritz.Device).HasAlarm,
		},
		isOn: func(d *fritz.Device) *bool { return d.AlertState },
	},
	{
		Description: Description{
			Key:            "lock",
			Name:           "Button lock via UI",
			DeviceClass:    model.DeviceClassLock,
			EntityCategory: model.EntityCategoryConfig,
			Suitable:       func(d *fritz.Device) bool { return d.Lock != nil },
		},
		// lock device class: on means unlocked
		isOn: func(d *fritz.Device) *bool { return not(d.Lock) },
	},
	{
		Description: Description{
			Key:            "device_lock",
			Name:           "Button lock on device",
			DeviceClass:    model.DeviceClassLock,
			EntityCategory: model.EntityCategoryConfig,
			Suitable:       func(d *fritz.Device) bool { return d.DeviceLock != nil },
		},
		isOn: func(d *fritz.Device) *bool { return not(d.DeviceLock) },
	},
}

type BinarySensorEntity struct {
	deviceEntity
	isOn func(d *fritz.Device) *bool
}

func newBinarySensors(c Coordinator, device *fritz.Device) []Entity {
	var out []Entity
	for i := range binarySensorDescriptions {
		desc := binarySensorDescriptions[i]
		if !desc.Suitable(device) {
			continue
		}
		out = append(out, &BinarySensorEntity{
			deviceEntity: newDeviceEntity(c, model.BinarySensor, device.AIN, &desc.Description),
			isOn:         desc.isOn,
		})
	}
	return out
}

func (e *BinarySensorEntity) State() (string, map[string]any) {
	device := e.data()
	if device == nil {
		return model.StateUnknown, nil
	}
	v := e.isOn(device)
	if v == nil {
		return model.StateUnknown, nil
	}
	return onOff(*v), nil
}

func not(v *bool) *bool {
	if v == nil {
		return nil
	}
	n := !*v
	return &n
}
