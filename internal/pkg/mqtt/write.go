package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/platform"
)

const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"
	payloadPress        = "PRESS"
)

// TopicID turns a unique id into a topic segment. AINs contain spaces.
func TopicID(uniqueID string) string {
	return strings.ReplaceAll(slug.Make(uniqueID), "-", "_")
}

func entityTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s", baseTopic, TopicID(uniqueID))
}

func (s *service) configTopic(p model.Platform, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/config", s.discoveryPrefix, p, TopicID(uniqueID))
}

// RegisterEntity publishes the retained discovery config of entity.
func (s *service) RegisterEntity(_ context.Context, entity model.EntityConfig) error {
	topic := s.configTopic(entity.Platform, entity.UniqueID)
	payload, err := json.Marshal(registerMessage(entity))
	if err != nil {
		return err
	}
	if err := s.publish(topic, 1, true, payload); err != nil {
		return err
	}
	s.topics.Store(TopicID(entity.UniqueID), entity.UniqueID)
	s.configured.Store(entity.UniqueID, topic)
	return nil
}

// RemoveEntity clears the retained discovery config and state of entity.
func (s *service) RemoveEntity(_ context.Context, entity model.EntityConfig) error {
	topic := s.configTopic(entity.Platform, entity.UniqueID)
	if err := s.publish(topic, 1, true, []byte{}); err != nil {
		return err
	}
	if err := s.publish(entityTopic(entity.UniqueID)+"/availability", 1, true, []byte{}); err != nil {
		return err
	}
	s.topics.Delete(TopicID(entity.UniqueID))
	s.configured.Delete(entity.UniqueID)
	return nil
}

// Write publishes state and availability of every entity.
func (s *service) Write(_ context.Context, states []model.EntityState) error {
	for _, state := range states {
		if err := s.PublishState(state); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) PublishState(state model.EntityState) error {
	base := entityTopic(state.UniqueID)

	availability := availabilityOffline
	if state.Available {
		availability = availabilityOnline
	}
	if err := s.publish(base+"/availability", 1, true, availability); err != nil {
		return err
	}

	payload := map[string]any{}
	for k, v := range state.Attributes {
		payload[k] = v
	}
	payload["state"] = state.State
	payload["timestamp"] = state.TimeStamp
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.publish(base+"/state", 0, false, data); err != nil {
		return err
	}
	s.logger.Debug("published state", zap.String("entity_id", state.EntityID), zap.String("state", state.State))
	return nil
}

func registerMessage(entity model.EntityConfig) model.RegisterMessage {
	name := entity.Name
	msg := model.RegisterMessage{
		Tilda:             entityTopic(entity.UniqueID),
		Name:              &name,
		ID:                entity.UniqueID,
		ObjectID:          objectID(entity.EntityID),
		AvailabilityTopic: "~/availability",
		DeviceClass:       entity.DeviceClass,
		StateClass:        entity.StateClass,
		EntityCategory:    entity.EntityCategory,
		Unit:              entity.Unit,
		Device:            registerDevice(entity.Device),
	}

	switch entity.Platform {
	case model.Sensor:
		msg.StateTopic = "~/state"
		msg.ValueTemplate = "{{ value_json.state }}"
	case model.BinarySensor:
		msg.StateTopic = "~/state"
		msg.ValueTemplate = "{{ value_json.state }}"
		msg.PayloadOn = model.StateOn
		msg.PayloadOff = model.StateOff
	case model.Switch:
		msg.StateTopic = "~/state"
		msg.ValueTemplate = "{{ value_json.state }}"
		msg.CommandTopic = "~/" + platform.CommandSwitch + "/set"
		msg.PayloadOn = model.StateOn
		msg.PayloadOff = model.StateOff
	case model.Button:
		msg.CommandTopic = "~/" + platform.CommandPress + "/set"
		msg.PayloadPress = payloadPress
	case model.Climate:
		msg.JSONAttributesTopic = "~/state"
		msg.Modes = []string{platform.HVACModeHeat, platform.HVACModeOff}
		msg.ModeStateTopic = "~/state"
		msg.ModeStateTemplate = "{{ value_json.hvac_mode }}"
		msg.ModeCommandTopic = "~/" + platform.CommandMode + "/set"
		msg.TemperatureStateTopic = "~/state"
		msg.TemperatureStateTmpl = "{{ value_json.temperature }}"
		msg.TemperatureCommandTopic = "~/" + platform.CommandTemperature + "/set"
		msg.CurrentTemperatureTopic = "~/state"
		msg.CurrentTemperatureTmpl = "{{ value_json.current_temperature }}"
		msg.PresetModes = []string{platform.PresetComfort, platform.PresetEco}
		msg.PresetModeStateTopic = "~/state"
		msg.PresetModeStateTemplate = "{{ value_json.preset_mode | default('none') }}"
		msg.PresetModeCommandTopic = "~/" + platform.CommandPreset + "/set"
		msg.MinTemp = platform.MinTemperature
		msg.MaxTemp = platform.MaxTemperature
		msg.TempStep = platform.TemperatureStep
		msg.TemperatureUnit = "C"
		msg.Unit = ""
	}
	return msg
}

func registerDevice(device model.DeviceEntry) model.RegisterDevice {
	identifiers := lo.Map(device.Identifiers, func(i model.Identifier, _ int) string {
		return i.Domain + "_" + TopicID(i.ID)
	})
	if len(identifiers) == 0 {
		identifiers = []string{model.Domain + "_" + device.ID}
	}
	return model.RegisterDevice{
		Name:        device.DisplayName(),
		Identifiers: identifiers,
		Connections: lo.Map(device.Connections, func(c model.Connection, _ int) []string {
			return []string{c.Type, c.ID}
		}),
		Model:            device.Model,
		Manufacturer:     device.Manufacturer,
		SwVersion:        device.SwVersion,
		ConfigurationURL: device.ConfigurationURL,
	}
}

func objectID(entityID string) string {
	_, id, found := strings.Cut(entityID, ".")
	if !found {
		return entityID
	}
	return id
}
