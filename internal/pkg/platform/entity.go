package platform

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrLocked         = errors.New("settings are locked on the device")
	ErrUnavailable    = errors.New("entity unavailable")
)

// Coordinator is the data source every entity reads from.
type Coordinator interface {
	Data() *fritz.Data
	LastUpdateSuccess() bool
	ConfigurationURL() string
}

// Client executes entity commands on the hub.
type Client interface {
	SetSwitchState(ctx context.Context, ain string, on bool) error
	SetTargetTemperature(ctx context.Context, ain string, celsius float64) error
	ApplyTemplate(ctx context.Context, ain string) error
}

// Entity is one host entity backed by a hub device or template.
type Entity interface {
	AIN() string
	UniqueID() string
	Platform() model.Platform
	Name() string
	Description() *Description
	DeviceInfo() model.DeviceInfo
	Available() bool
	// State returns the state payload and extra attributes.
	State() (string, map[string]any)
}

// Commander is implemented by entities that accept commands.
type Commander interface {
	HandleCommand(ctx context.Context, command, payload string) error
}

// Description describes one measurement or flag of a device. Entities with a
// description get "<ain>_<key>" as unique id.
type Description struct {
	Key            string
	Name           string
	DeviceClass    model.DeviceClass
	StateClass     model.StateClass
	EntityCategory model.EntityCategory
	Unit           model.NumericUnit
	Suitable       func(d *fritz.Device) bool
}

type base struct {
	coordinator Coordinator
	platform    model.Platform
	ain         string
	description *Description
}

func (b *base) AIN() string { return b.ain }

func (b *base) UniqueID() string {
	if b.description != nil {
		return b.ain + "_" + b.description.Key
	}
	return b.ain
}

func (b *base) Platform() model.Platform { return b.platform }

func (b *base) Description() *Description { return b.description }

// deviceEntity is an entity reading from coordinator.Data().Devices.
type deviceEntity struct {
	base
}

func newDeviceEntity(c Coordinator, p model.Platform, ain string, d *Description) deviceEntity {
	return deviceEntity{base{coordinator: c, platform: p, ain: ain, description: d}}
}

func (e *deviceEntity) data() *fritz.Device {
	data := e.coordinator.Data()
	if data == nil {
		return nil
	}
	return data.Devices[e.ain]
}

func (e *deviceEntity) Name() string {
	device := e.data()
	if device == nil {
		return e.ain
	}
	if e.description != nil && e.description.Name != "" {
		return device.Name + " " + e.description.Name
	}
	return device.Name
}

// Available requires a successful last poll and the device to be present.
func (e *deviceEntity) Available() bool {
	device := e.data()
	return e.coordinator.LastUpdateSuccess() && device != nil && device.Present
}

// DeviceInfo links sub units to their main device by AIN connection.
func (e *deviceEntity) DeviceInfo() model.DeviceInfo {
	device := e.data()
	if device == nil {
		return model.DeviceInfo{Identifiers: []model.Identifier{{Domain: model.Domain, ID: e.ain}}}
	}
	main, unit := device.DeviceAndUnitID()
	if unit != "" {
		return model.DeviceInfo{
			Connections: []model.Connection{{Type: model.ConnectionAIN, ID: main}},
		}
	}
	return model.DeviceInfo{
		Identifiers: []model.Identifier{{Domain: model.Domain, ID: e.ain}},
		SwVersion:   device.FwVersion,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func onOff(v bool) string {
	if v {
		return model.StateOn
	}
	return model.StateOff
}
