package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

var (
	ErrUniqueIDConflict = errors.New("unique id already in use")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrEntityNotFound   = errors.New("entity not found")
)

// Registry is the device, entity and issue registry of the host. Reads are
// served from memory, every mutation is written through to the Store.
type Registry struct {
	store  Store
	logger *zap.Logger

	mu       sync.RWMutex
	devices  map[string]model.DeviceEntry
	entities map[string]model.EntityEntry
	// (platform, unique id) -> entity id
	uniqueIDs map[string]string
	issues    map[string]model.Issue

	removedListeners []func(model.EntityEntry)
}

// New loads all records from store.
func New(ctx context.Context, store Store) (*Registry, error) {
	r := &Registry{
		store:     store,
		logger:    zap.L(),
		devices:   map[string]model.DeviceEntry{},
		entities:  map[string]model.EntityEntry{},
		uniqueIDs: map[string]string{},
		issues:    map[string]model.Issue{},
	}

	devices, err := store.LoadDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading devices: %w", err)
	}
	for _, d := range devices {
		r.devices[d.ID] = d
	}

	entities, err := store.LoadEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading entities: %w", err)
	}
	for _, e := range entities {
		r.entities[e.EntityID] = e
		r.uniqueIDs[uniqueKey(e.Platform, e.UniqueID)] = e.EntityID
	}

	issues, err := store.LoadIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading issues: %w", err)
	}
	for _, i := range issues {
		r.issues[issueKey(i.Domain, i.IssueID)] = i
	}

	r.logger.Debug("registry loaded",
		zap.Int("devices", len(r.devices)),
		zap.Int("entities", len(r.entities)),
		zap.Int("issues", len(r.issues)),
	)
	return r, nil
}

// OnEntityRemoved registers fn to be called for every entity removed from
// the registry, including entities removed together with their device.
func (r *Registry) OnEntityRemoved(fn func(model.EntityEntry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removedListeners = append(r.removedListeners, fn)
}

// ################################
// devices

// GetDevice returns the device carrying any of identifiers.
func (r *Registry) GetDevice(identifiers ...model.Identifier) (model.DeviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findDevice(identifiers, nil)
}

func (r *Registry) Device(id string) (model.DeviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	return d, ok
}

// Devices returns all devices ordered by name.
func (r *Registry) Devices() []model.DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortDevices(lo.Values(r.devices))
}

func (r *Registry) DevicesForEntry(entryID string) []model.DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortDevices(lo.Filter(lo.Values(r.devices), func(d model.DeviceEntry, _ int) bool {
		return lo.Contains(d.ConfigEntries, entryID)
	}))
}

// GetOrCreateDevice looks a device up by the identifiers and connections of
// info and creates it when none matches. Non-empty fields of info overwrite
// the stored ones.
func (r *Registry) GetOrCreateDevice(ctx context.Context, entryID string, info model.DeviceInfo) (model.DeviceEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.findDevice(info.Identifiers, info.Connections)
	if !ok {
		device = model.DeviceEntry{ID: uuid.NewString()}
	}

	device.ConfigEntries = lo.Uniq(append(device.ConfigEntries, entryID))
	device.Identifiers = lo.Uniq(append(device.Identifiers, info.Identifiers...))
	device.Connections = lo.Uniq(append(device.Connections, info.Connections...))
	device.Name = lo.CoalesceOrEmpty(info.Name, device.Name)
	device.Manufacturer = lo.CoalesceOrEmpty(info.Manufacturer, device.Manufacturer)
	device.Model = lo.CoalesceOrEmpty(info.Model, device.Model)
	device.SwVersion = lo.CoalesceOrEmpty(info.SwVersion, device.SwVersion)
	device.ConfigurationURL = lo.CoalesceOrEmpty(info.ConfigurationURL, device.ConfigurationURL)
	device.UpdatedAt = time.Now()

	if err := r.store.SaveDevice(ctx, device); err != nil {
		return model.DeviceEntry{}, err
	}
	if !ok {
		r.logger.Info("device created", zap.String("device_id", device.ID), zap.String("name", device.Name))
	}
	r.devices[device.ID] = device
	return device, nil
}

// RemoveDevice deletes a device and every entity attached to it.
func (r *Registry) RemoveDevice(ctx context.Context, id string) error {
	r.mu.Lock()
	device, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	var removed []model.EntityEntry
	for _, e := range r.entities {
		if e.DeviceID != id {
			continue
		}
		if err := r.deleteEntity(ctx, e); err != nil {
			r.mu.Unlock()
			return err
		}
		removed = append(removed, e)
	}
	if err := r.store.DeleteDevice(ctx, id); err != nil {
		r.mu.Unlock()
		return err
	}
	delete(r.devices, id)
	listeners := r.removedListeners
	r.mu.Unlock()

	r.logger.Info("device removed", zap.String("device_id", id), zap.String("name", device.DisplayName()), zap.Int("entities", len(removed)))
	notify(listeners, removed...)
	return nil
}

func (r *Registry) findDevice(identifiers []model.Identifier, connections []model.Connection) (model.DeviceEntry, bool) {
	for _, d := range r.devices {
		for _, i := range identifiers {
			if d.HasIdentifier(i) {
				return d, true
			}
		}
		for _, c := range connections {
			if d.HasConnection(c) {
				return d, true
			}
		}
	}
	return model.DeviceEntry{}, false
}

// ################################
// entities

// EntitiesForEntry returns the entities of a config entry ordered by entity id.
func (r *Registry) EntitiesForEntry(entryID string) []model.EntityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortEntities(lo.Filter(lo.Values(r.entities), func(e model.EntityEntry, _ int) bool {
		return e.ConfigEntryID == entryID
	}))
}

func (r *Registry) Entities() []model.EntityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortEntities(lo.Values(r.entities))
}

// EntityID resolves the entity id registered for (platform, uniqueID).
func (r *Registry) EntityID(platform model.Platform, uniqueID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.uniqueIDs[uniqueKey(platform, uniqueID)]
	return id, ok
}

// GetOrCreateEntity registers want by (platform, unique id). An existing
// entity keeps its entity id; a new one gets an id derived from its name.
func (r *Registry) GetOrCreateEntity(ctx context.Context, want model.EntityEntry) (model.EntityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entity := want
	if id, ok := r.uniqueIDs[uniqueKey(want.Platform, want.UniqueID)]; ok {
		entity.EntityID = id
	} else {
		entity.EntityID = r.generateEntityID(want.Platform, lo.CoalesceOrEmpty(want.OriginalName, want.UniqueID))
		r.logger.Info("entity created", zap.String("entity_id", entity.EntityID), zap.String("unique_id", entity.UniqueID))
	}
	entity.UpdatedAt = time.Now()

	if err := r.store.SaveEntity(ctx, entity); err != nil {
		return model.EntityEntry{}, err
	}
	r.entities[entity.EntityID] = entity
	r.uniqueIDs[uniqueKey(entity.Platform, entity.UniqueID)] = entity.EntityID
	return entity, nil
}

func (r *Registry) RemoveEntity(ctx context.Context, entityID string) error {
	r.mu.Lock()
	entity, ok := r.entities[entityID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	if err := r.deleteEntity(ctx, entity); err != nil {
		r.mu.Unlock()
		return err
	}
	listeners := r.removedListeners
	r.mu.Unlock()

	r.logger.Info("entity removed", zap.String("entity_id", entityID), zap.String("unique_id", entity.UniqueID))
	notify(listeners, entity)
	return nil
}

// MigrateEntries calls fn for every entity of entryID. When fn returns a new
// unique id the entity is updated; a unique id that is already taken on the
// same platform aborts the migration.
func (r *Registry) MigrateEntries(ctx context.Context, entryID string, fn func(model.EntityEntry) (string, bool)) error {
	for _, entity := range r.EntitiesForEntry(entryID) {
		newUniqueID, ok := fn(entity)
		if !ok || newUniqueID == entity.UniqueID {
			continue
		}
		if err := r.updateUniqueID(ctx, entity.EntityID, newUniqueID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) updateUniqueID(ctx context.Context, entityID, newUniqueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entity, ok := r.entities[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	if other, taken := r.uniqueIDs[uniqueKey(entity.Platform, newUniqueID)]; taken {
		return fmt.Errorf("%w: %s is used by %s", ErrUniqueIDConflict, newUniqueID, other)
	}

	oldKey := uniqueKey(entity.Platform, entity.UniqueID)
	entity.UniqueID = newUniqueID
	entity.UpdatedAt = time.Now()
	if err := r.store.SaveEntity(ctx, entity); err != nil {
		return err
	}
	delete(r.uniqueIDs, oldKey)
	r.uniqueIDs[uniqueKey(entity.Platform, newUniqueID)] = entityID
	r.entities[entityID] = entity
	return nil
}

// deleteEntity expects r.mu to be held.
func (r *Registry) deleteEntity(ctx context.Context, entity model.EntityEntry) error {
	if err := r.store.DeleteEntity(ctx, entity.EntityID); err != nil {
		return err
	}
	delete(r.entities, entity.EntityID)
	delete(r.uniqueIDs, uniqueKey(entity.Platform, entity.UniqueID))
	return nil
}

// generateEntityID expects r.mu to be held.
func (r *Registry) generateEntityID(platform model.Platform, name string) string {
	objectID := strings.ReplaceAll(slug.Make(name), "-", "_")
	if objectID == "" {
		objectID = "unnamed_device"
	}
	base := fmt.Sprintf("%s.%s", platform, objectID)
	id := base
	for n := 2; ; n++ {
		if _, taken := r.entities[id]; !taken {
			return id
		}
		id = base + "_" + strconv.Itoa(n)
	}
}

// ################################
// issues

// CreateIssue creates or replaces an issue. A replaced issue keeps its
// creation time.
func (r *Registry) CreateIssue(ctx context.Context, issue model.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := issueKey(issue.Domain, issue.IssueID)
	if existing, ok := r.issues[key]; ok {
		issue.CreatedAt = existing.CreatedAt
	} else {
		issue.CreatedAt = time.Now()
	}
	if err := r.store.SaveIssue(ctx, issue); err != nil {
		return err
	}
	r.issues[key] = issue
	r.logger.Warn("issue created",
		zap.String("issue_id", issue.IssueID),
		zap.String("severity", string(issue.Severity)),
		zap.String("translation_key", issue.TranslationKey),
	)
	return nil
}

func (r *Registry) Issues() []model.Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	issues := lo.Values(r.issues)
	sort.Slice(issues, func(i, j int) bool { return issues[i].IssueID < issues[j].IssueID })
	return issues
}

func notify(listeners []func(model.EntityEntry), entities ...model.EntityEntry) {
	for _, e := range entities {
		for _, fn := range listeners {
			fn(e)
		}
	}
}

func sortDevices(devices []model.DeviceEntry) []model.DeviceEntry {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}

func sortEntities(entities []model.EntityEntry) []model.EntityEntry {
	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })
	return entities
}

func uniqueKey(platform model.Platform, uniqueID string) string {
	return string(platform) + "\x00" + uniqueID
}

func issueKey(domain, issueID string) string {
	return domain + "\x00" + issueID
}
