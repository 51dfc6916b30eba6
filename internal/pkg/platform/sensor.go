package platform

import (
	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

type sensorDescription struct {
	Description
	value func(d *fritz.Device) *float64
}

var sensorDescriptions = []sensorDescription{
	{
		Description: Description{
			Key:         "temperature",
			Name:        "Temperature",
			DeviceClass: model.DeviceClassTemperature,
			StateClass:  model.StateClassMeasurement,
			Unit:        model.NumericUnitDegreeC,
			Suitable: func(d *fritz.Device) bool {
				return d.HasTemperatureSensor() && !d.HasThermostat()
			},
		},
		value: func(d *fritz.Device) *float64 { return d.Temperature },
	},
	{
		Description: Description{
			Key:         "humidity",
			Name:        "Humidity",
			DeviceClass: model.DeviceClassHumidity,
			StateClass:  model.StateClassMeasurement,
			Unit:        model.NumericUnitPercent,
			Suitable:    func(d *fritz.Device) bool { return d.RelHumidity != nil },
		},
		value: func(d *fritz.Device) *float64 { return intValue(d.RelHumidity) },
	},
	{
		Description: Description{
			Key:            "battery",
			Name:           "Battery",
			DeviceClass:    model.DeviceClassBattery,
			EntityCategory: model.EntityCategoryDiagnostic,
			Unit:           model.NumericUnitPercent,
			Suitable:       func(d *fritz.Device) bool { return d.BatteryLevel != nil },
		},
		value: func(d *fritz.Device) *float64 { return intValue(d.BatteryLevel) },
	},
	{
		Description: Description{
			Key:         "power_consumption",
			Name:        "Power consumption",
			DeviceClass: model.DeviceClassPower,
			StateClass:  model.StateClassMeasurement,
			Unit:        model.NumericUnitWatt,
			Suitable:    (*fritz.Device).HasPowerMeter,
		},
		value: func(d *fritz.Device) *float64 { return milli(d.Power) },
	},
	{
		Description: Description{
			Key:         "voltage",
			Name:        "Voltage",
			DeviceClass: model.DeviceClassVoltage,
			StateClass:  model.StateClassMeasurement,
			Unit:        model.NumericUnitVolt,
			Suitable:    (*fritz.Device).HasPowerMeter,
		},
		value: func(d *fritz.Device) *float64 { return milli(d.Voltage) },
	},
	{
		Description: Description{
			Key:         "electric_current",
			Name:        "Electric current",
			DeviceClass: model.DeviceClassCurrent,
			StateClass:  model.StateClassMeasurement,
			Unit:        model.NumericUnitAmp,
			Suitable:    (*fritz.Device).HasPowerMeter,
		},
		value: electricCurrent,
	},
	{
		Description: Description{
			Key:         "total_energy",
			Name:        "Total energy",
			DeviceClass: model.DeviceClassEnergy,
			StateClass:  model.StateClassTotalIncreasing,
			Unit:        model.NumericUnitKiloWattHour,
			Suitable:    (*fritz.Device).HasPowerMeter,
		},
		value: func(d *fritz.Device) *float64 { return milli(d.Energy) },
	},
	{
		Description: Description{
			Key:            "comfort_temperature",
			Name:           "Comfort temperature",
			DeviceClass:    model.DeviceClassTemperature,
			EntityCategory: model.EntityCategoryDiagnostic,
			Unit:           model.NumericUnitDegreeC,
			Suitable: func(d *fritz.Device) bool {
				return d.HasThermostat() && d.ComfortTemperature != nil
			},
		},
		value: func(d *fritz.Device) *float64 { return d.ComfortTemperature },
	},
	{
		Description: Description{
			Key:            "eco_temperature",
			Name:           "Eco temperature",
			DeviceClass:    model.DeviceClassTemperature,
			EntityCategory: model.EntityCategoryDiagnostic,
			Unit:           model.NumericUnitDegreeC,
			Suitable: func(d *fritz.Device) bool {
				return d.HasThermostat() && d.EcoTemperature != nil
			},
		},
		value: func(d *fritz.Device) *float64 { return d.EcoTemperature },
	},
}

// SensorEntity reports one numeric measurement of a device.
type SensorEntity struct {
	deviceEntity
	value func(d *fritz.Device) *float64
}

func newSensors(c Coordinator, device *fritz.Device) []Entity {
	var out []Entity
	for i := range sensorDescriptions {
		desc := sensorDescriptions[i]
		if !desc.Suitable(device) {
			continue
		}
		out = append(out, &SensorEntity{
			deviceEntity: newDeviceEntity(c, model.Sensor, device.AIN, &desc.Description),
			value:        desc.value,
		})
	}
	return out
}

func (e *SensorEntity) State() (string, map[string]any) {
	device := e.data()
	if device == nil {
		return model.StateUnknown, nil
	}
	v := e.value(device)
	if v == nil {
		return model.StateUnknown, nil
	}
	return formatFloat(*v), nil
}

func electricCurrent(d *fritz.Device) *float64 {
	if d.Power == nil || d.Voltage == nil || *d.Voltage == 0 {
		v := 0.0
		return &v
	}
	v := round(*d.Power / *d.Voltage, 3)
	return &v
}

func milli(v *float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v / 1000
	return &s
}

func intValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
