package platform

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

const (
	CommandMode        = "mode"
	CommandTemperature = "temperature"
	CommandPreset      = "preset"

	HVACModeHeat = "heat"
	HVACModeOff  = "off"

	PresetComfort = "comfort"
	PresetEco     = "eco"

	MinTemperature  = 8.0
	MaxTemperature  = 28.0
	TemperatureStep = 0.5

	// reported set points for a fully open or closed valve
	onReportTemperature  = 30.0
	offReportTemperature = 0.0
)

// ClimateEntity is a radiator thermostat. Its unique id is the AIN.
type ClimateEntity struct {
	deviceEntity
	client Client
}

func newClimate(c Coordinator, client Client, device *fritz.Device) *ClimateEntity {
	return &ClimateEntity{
		deviceEntity: newDeviceEntity(c, model.Climate, device.AIN, nil),
		client:       client,
	}
}

// TargetTemperature maps the hub's on and off markers onto reportable values.
func (e *ClimateEntity) TargetTemperature() *float64 {
	device := e.data()
	if device == nil || device.TargetTemperature == nil {
		return nil
	}
	t := *device.TargetTemperature
	switch t {
	case fritz.TemperatureOn:
		t = onReportTemperature
	case fritz.TemperatureOff:
		t = offReportTemperature
	}
	return &t
}

func (e *ClimateEntity) HVACMode() string {
	target := e.TargetTemperature()
	if target != nil && *target == offReportTemperature {
		return HVACModeOff
	}
	return HVACModeHeat
}

func (e *ClimateEntity) PresetMode() string {
	device := e.data()
	if device == nil || device.TargetTemperature == nil {
		return ""
	}
	switch {
	case device.ComfortTemperature != nil && *device.TargetTemperature == *device.ComfortTemperature:
		return PresetComfort
	case device.EcoTemperature != nil && *device.TargetTemperature == *device.EcoTemperature:
		return PresetEco
	}
	return ""
}

// State returns the hvac mode; temperatures travel as attributes.
func (e *ClimateEntity) State() (string, map[string]any) {
	device := e.data()
	if device == nil {
		return model.StateUnknown, nil
	}
	attrs := map[string]any{
		"hvac_mode": e.HVACMode(),
	}
	if device.ActualTemperature != nil {
		attrs["current_temperature"] = *device.ActualTemperature
	}
	if target := e.TargetTemperature(); target != nil {
		attrs["temperature"] = *target
	}
	if preset := e.PresetMode(); preset != "" {
		attrs["preset_mode"] = preset
	}
	setAttr(attrs, "battery_low", device.BatteryLow)
	setAttr(attrs, "battery_level", device.BatteryLevel)
	setAttr(attrs, "holiday_mode", device.HolidayActive)
	setAttr(attrs, "summer_mode", device.SummerActive)
	setAttr(attrs, "window_open", device.WindowOpen)
	setAttr(attrs, "boost_mode", device.BoostActive)
	return e.HVACMode(), attrs
}

// HandleCommand accepts "temperature" with a set point in °C, "mode" with
// heat or off and "preset" with comfort or eco.
func (e *ClimateEntity) HandleCommand(ctx context.Context, command, payload string) error {
	device := e.data()
	if device == nil {
		return ErrUnavailable
	}
	payload = strings.ToLower(strings.TrimSpace(payload))

	switch command {
	case CommandTemperature:
		celsius, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
		}
		if celsius == offReportTemperature {
			celsius = fritz.TemperatureOff
		}
		return e.client.SetTargetTemperature(ctx, e.ain, celsius)
	case CommandMode:
		switch payload {
		case HVACModeOff:
			return e.client.SetTargetTemperature(ctx, e.ain, fritz.TemperatureOff)
		case HVACModeHeat:
			return e.setTemperature(ctx, device.ComfortTemperature)
		}
	case CommandPreset:
		switch payload {
		case PresetComfort:
			return e.setTemperature(ctx, device.ComfortTemperature)
		case PresetEco:
			return e.setTemperature(ctx, device.EcoTemperature)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
}

func (e *ClimateEntity) setTemperature(ctx context.Context, celsius *float64) error {
	if celsius == nil {
		return fmt.Errorf("%w: no preset temperature reported", ErrInvalidPayload)
	}
	return e.client.SetTargetTemperature(ctx, e.ain, *celsius)
}

func setAttr[T any](attrs map[string]any, key string, v *T) {
	if v != nil {
		attrs[key] = *v
	}
}
