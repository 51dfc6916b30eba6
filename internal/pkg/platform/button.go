package platform

import (
	"context"
	"fmt"

	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

const (
	CommandPress = "press"

	templateManufacturer = "AVM"
	templateModel        = "SmartHome Template"
)

// ButtonEntity applies a hub template. Its unique id is the template AIN.
type ButtonEntity struct {
	base
	client Client
}

func newButton(c Coordinator, client Client, template *fritz.Template) *ButtonEntity {
	return &ButtonEntity{
		base:   base{coordinator: c, platform: model.Button, ain: template.AIN},
		client: client,
	}
}

func (e *ButtonEntity) data() *fritz.Template {
	data := e.coordinator.Data()
	if data == nil {
		return nil
	}
	return data.Templates[e.ain]
}

func (e *ButtonEntity) Name() string {
	if t := e.data(); t != nil {
		return t.Name
	}
	return e.ain
}

func (e *ButtonEntity) Available() bool {
	return e.coordinator.LastUpdateSuccess() && e.data() != nil
}

func (e *ButtonEntity) DeviceInfo() model.DeviceInfo {
	return model.DeviceInfo{
		Identifiers:      []model.Identifier{{Domain: model.Domain, ID: e.ain}},
		Name:             e.Name(),
		Manufacturer:     templateManufacturer,
		Model:            templateModel,
		ConfigurationURL: e.coordinator.ConfigurationURL(),
	}
}

// Buttons are stateless.
func (e *ButtonEntity) State() (string, map[string]any) {
	return model.StateUnknown, nil
}

func (e *ButtonEntity) HandleCommand(ctx context.Context, command, _ string) error {
	if command != CommandPress {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return e.client.ApplyTemplate(ctx, e.ain)
}
