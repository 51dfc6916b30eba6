package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

const CommandSwitch = "switch"

// SwitchEntity is a switchable outlet. Its unique id is the AIN.
type SwitchEntity struct {
	deviceEntity
	client Client
}

func newSwitch(c Coordinator, client Client, device *fritz.Device) *SwitchEntity {
	return &SwitchEntity{
		deviceEntity: newDeviceEntity(c, model.Switch, device.AIN, nil),
		client:       client,
	}
}

func (e *SwitchEntity) State() (string, map[string]any) {
	device := e.data()
	if device == nil || device.SwitchState == nil {
		return model.StateUnknown, nil
	}
	return onOff(*device.SwitchState), nil
}

// HandleCommand accepts "switch" with ON or OFF.
func (e *SwitchEntity) HandleCommand(ctx context.Context, command, payload string) error {
	if command != CommandSwitch {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	device := e.data()
	if device == nil {
		return ErrUnavailable
	}
	if device.Lock != nil && *device.Lock {
		return fmt.Errorf("%w: %s", ErrLocked, device.Name)
	}

	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case model.StateOn:
		return e.client.SetSwitchState(ctx, e.ain, true)
	case model.StateOff:
		return e.client.SetSwitchState(ctx, e.ain, false)
	}
	return fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
}
