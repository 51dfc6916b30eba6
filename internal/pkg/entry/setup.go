package entry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/contxt"
	"github.com/anicoll/fritzhome-integration/internal/pkg/coordinator"
	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/platform"
)

const issueDeletedDevice = "deleted_device"

// updateUniqueID migrates unique ids written by older releases.
func (e *Entry) updateUniqueID(entity model.EntityEntry) (string, bool) {
	if entity.UnitOfMeasurement == string(model.NumericUnitDegreeC) && !strings.Contains(entity.UniqueID, "_temperature") {
		newUniqueID := entity.UniqueID + "_temperature"
		e.logger.Info("migrating unique_id", zap.String("from", entity.UniqueID), zap.String("to", newUniqueID))
		return newUniqueID, true
	}
	if entity.Platform == model.BinarySensor && !strings.Contains(entity.UniqueID, "_") {
		newUniqueID := entity.UniqueID + "_alarm"
		e.logger.Info("migrating unique_id", zap.String("from", entity.UniqueID), zap.String("to", newUniqueID))
		return newUniqueID, true
	}
	return "", false
}

// removeSubDevices drops registry devices that were once created for sub
// units. Automations and scripts still pointing at them get an issue.
func (e *Entry) removeSubDevices(ctx context.Context, data *fritz.Data) error {
	toRemove := map[string]string{}
	for ain, device := range data.Devices {
		if _, unit := device.DeviceAndUnitID(); unit == "" {
			continue
		}
		if entry, ok := e.registry.GetDevice(model.Identifier{Domain: model.Domain, ID: ain}); ok {
			toRemove[entry.ID] = entry.DisplayName()
		}
	}

	ids := lo.Keys(toRemove)
	sort.Strings(ids)

	for _, id := range ids {
		var referencing []string
		if e.refs != nil {
			referencing = e.refs.EntitiesReferencing(id)
		}
		if len(referencing) == 0 {
			continue
		}
		err := e.registry.CreateIssue(ctx, model.Issue{
			Domain:         model.Domain,
			IssueID:        issueDeletedDevice + "_" + id,
			Severity:       model.IssueSeverityError,
			IsFixable:      false,
			IsPersistent:   true,
			TranslationKey: issueDeletedDevice,
			TranslationPlaceholders: map[string]string{
				"device_name": toRemove[id],
				"device_id":   id,
				"entities": strings.Join(lo.Map(referencing, func(entityID string, _ int) string {
					return "- `" + entityID + "`"
				}), "\n"),
			},
		})
		if err != nil {
			return fmt.Errorf("creating issue for device %s: %w", id, err)
		}
	}

	for _, id := range ids {
		e.logger.Info("removing sub unit device", zap.String("device_id", id), zap.String("name", toRemove[id]))
		if err := e.registry.RemoveDevice(ctx, id); err != nil {
			return fmt.Errorf("removing device %s: %w", id, err)
		}
	}
	return nil
}

func (e *Entry) createMainDevices(ctx context.Context, coord *coordinator.Coordinator) error {
	for ain, device := range coord.Data().Devices {
		if _, unit := device.DeviceAndUnitID(); unit != "" {
			continue
		}
		_, err := e.registry.GetOrCreateDevice(ctx, e.ID(), model.DeviceInfo{
			Identifiers:      []model.Identifier{{Domain: model.Domain, ID: ain}},
			Connections:      []model.Connection{{Type: model.ConnectionAIN, ID: ain}},
			Name:             device.Name,
			Manufacturer:     device.Manufacturer,
			Model:            device.ProductName,
			SwVersion:        device.FwVersion,
			ConfigurationURL: coord.ConfigurationURL(),
		})
		if err != nil {
			return fmt.Errorf("creating device %s: %w", ain, err)
		}
	}
	return nil
}

// forwardPlatforms creates the entities of all platforms and keeps them in
// sync with later polls.
func (e *Entry) forwardPlatforms(ctx context.Context, client Client, coord *coordinator.Coordinator) error {
	data := coord.Data()
	entities := platform.DeviceEntities(coord, client, lo.Keys(data.Devices))
	entities = append(entities, platform.TemplateEntities(coord, client, lo.Keys(data.Templates))...)
	if err := e.addEntities(ctx, entities); err != nil {
		return err
	}

	coord.OnNewDevices(func(ains []string) {
		ctx := contxt.NewContext(listenerTimeout)
		if err := e.addEntities(ctx, platform.DeviceEntities(coord, client, ains)); err != nil {
			e.logger.Error("failed to add new devices", zap.Strings("ains", ains), zap.Error(err))
		}
	})
	coord.OnNewTemplates(func(ains []string) {
		ctx := contxt.NewContext(listenerTimeout)
		if err := e.addEntities(ctx, platform.TemplateEntities(coord, client, ains)); err != nil {
			e.logger.Error("failed to add new templates", zap.Strings("ains", ains), zap.Error(err))
		}
	})
	coord.AddListener(func() {
		e.publishStates(contxt.NewContext(listenerTimeout))
	})

	e.publishStates(ctx)
	return nil
}

// addEntities registers entities with the registry and the publishers.
// Entities already loaded are skipped.
func (e *Entry) addEntities(ctx context.Context, entities []platform.Entity) error {
	e.addMu.Lock()
	defer e.addMu.Unlock()
	sort.Slice(entities, func(i, j int) bool { return entities[i].UniqueID() < entities[j].UniqueID() })

	for _, entity := range entities {
		e.mu.RLock()
		_, loaded := e.entities[entity.UniqueID()]
		e.mu.RUnlock()
		if loaded {
			continue
		}

		device, err := e.registry.GetOrCreateDevice(ctx, e.ID(), entity.DeviceInfo())
		if err != nil {
			return fmt.Errorf("device for %s: %w", entity.UniqueID(), err)
		}

		var unit string
		if d := entity.Description(); d != nil {
			unit = string(d.Unit)
		}
		entry, err := e.registry.GetOrCreateEntity(ctx, model.EntityEntry{
			UniqueID:          entity.UniqueID(),
			Platform:          entity.Platform(),
			ConfigEntryID:     e.ID(),
			DeviceID:          device.ID,
			OriginalName:      entity.Name(),
			UnitOfMeasurement: unit,
		})
		if err != nil {
			return fmt.Errorf("entity %s: %w", entity.UniqueID(), err)
		}

		if err := e.publisher.RegisterEntity(ctx, platform.Config(entity, entry.EntityID, device)); err != nil {
			return fmt.Errorf("registering %s: %w", entry.EntityID, err)
		}

		e.mu.Lock()
		e.entities[entity.UniqueID()] = entity
		e.mu.Unlock()
		e.logger.Debug("entity added", zap.String("entity_id", entry.EntityID), zap.String("unique_id", entity.UniqueID()))
	}
	return nil
}
