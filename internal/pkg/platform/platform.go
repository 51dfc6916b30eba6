package platform

import (
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

// DeviceEntities builds the entities of every platform for the given device AINs.
func DeviceEntities(c Coordinator, client Client, ains []string) []Entity {
	data := c.Data()
	if data == nil {
		return nil
	}

	var out []Entity
	for _, ain := range ains {
		device, ok := data.Devices[ain]
		if !ok {
			continue
		}
		out = append(out, newBinarySensors(c, device)...)
		if device.HasThermostat() {
			out = append(out, newClimate(c, client, device))
		}
		out = append(out, newSensors(c, device)...)
		if device.HasSwitch() {
			out = append(out, newSwitch(c, client, device))
		}
	}
	return out
}

// TemplateEntities builds one button per template AIN.
func TemplateEntities(c Coordinator, client Client, ains []string) []Entity {
	data := c.Data()
	if data == nil {
		return nil
	}

	var out []Entity
	for _, ain := range ains {
		if template, ok := data.Templates[ain]; ok {
			out = append(out, newButton(c, client, template))
		}
	}
	return out
}

// Config describes e to the host transports.
func Config(e Entity, entityID string, device model.DeviceEntry) model.EntityConfig {
	cfg := model.EntityConfig{
		EntityID: entityID,
		UniqueID: e.UniqueID(),
		Platform: e.Platform(),
		Name:     e.Name(),
		Device:   device,
	}
	if d := e.Description(); d != nil {
		cfg.DeviceClass = d.DeviceClass
		cfg.StateClass = d.StateClass
		cfg.EntityCategory = d.EntityCategory
		cfg.Unit = string(d.Unit)
	}
	if e.Platform() == model.Switch {
		cfg.DeviceClass = model.DeviceClassOutlet
	}
	_, cfg.Commandable = e.(Commander)
	return cfg
}
