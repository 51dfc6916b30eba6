// Package entry runs one FRITZ!SmartHome config entry: it logs in to the hub,
// keeps the device and entity registries in line with what the hub reports
// and exposes the resulting entities through the publishers.
package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/config"
	"github.com/anicoll/fritzhome-integration/internal/pkg/contxt"
	"github.com/anicoll/fritzhome-integration/internal/pkg/coordinator"
	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/platform"
	"github.com/anicoll/fritzhome-integration/internal/pkg/registry"
)

const (
	listenerTimeout = 30 * time.Second
	logoutTimeout   = 10 * time.Second
)

var (
	ErrNotLoaded      = errors.New("config entry not loaded")
	ErrDeviceInUse    = errors.New("device is still reported by the hub")
	ErrEntityNotFound = errors.New("entity not found")
	ErrNotCommandable = errors.New("entity does not accept commands")
)

// Client is the hub client an entry drives.
type Client interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	HasTemplates(ctx context.Context) (bool, error)
	UpdateDevices(ctx context.Context) (map[string]*fritz.Device, error)
	UpdateTemplates(ctx context.Context) (map[string]*fritz.Template, error)
	SetSwitchState(ctx context.Context, ain string, on bool) error
	SetTargetTemperature(ctx context.Context, ain string, celsius float64) error
	ApplyTemplate(ctx context.Context, ain string) error
	BaseURL() string
}

// Publisher receives entity registrations and state changes.
type Publisher interface {
	RegisterEntity(ctx context.Context, entity model.EntityConfig) error
	RemoveEntity(ctx context.Context, entity model.EntityConfig) error
	PublishStates(ctx context.Context, states []model.EntityState) error
}

// References resolves automations and scripts using a device.
type References interface {
	EntitiesReferencing(deviceID string) []string
}

type Entry struct {
	cfg       *config.FritzConfig
	newClient func(*config.FritzConfig) Client
	registry  *registry.Registry
	refs      References
	publisher Publisher
	logger    *zap.Logger

	// addMu makes the loaded check and registration in addEntities atomic.
	addMu sync.Mutex

	mu          sync.RWMutex
	coordinator *coordinator.Coordinator
	entities    map[string]platform.Entity
	onUnload    []func(ctx context.Context)
	stopRun     context.CancelFunc
	runDone     chan struct{}
}

func New(cfg *config.FritzConfig, newClient func(*config.FritzConfig) Client, reg *registry.Registry, refs References, pub Publisher) *Entry {
	e := &Entry{
		cfg:       cfg,
		newClient: newClient,
		registry:  reg,
		refs:      refs,
		publisher: pub,
		logger:    zap.L().With(zap.String("entry_id", cfg.EntryID)),
		entities:  map[string]platform.Entity{},
	}
	reg.OnEntityRemoved(e.onEntityRemoved)
	return e
}

func (e *Entry) ID() string {
	return e.cfg.EntryID
}

// Setup brings the entry up. It returns model.ErrEntryNotReady when the hub
// cannot be reached and model.ErrEntryAuthFailed when it rejects the
// credentials. A failed setup leaves no hub session behind.
func (e *Entry) Setup(ctx context.Context) (err error) {
	client := e.newClient(e.cfg)

	if err := client.Login(ctx); err != nil {
		return mapError(err)
	}
	defer func() {
		if err == nil {
			return
		}
		e.mu.Lock()
		e.coordinator = nil
		e.mu.Unlock()
		if logoutErr := client.Logout(contxt.NewContext(logoutTimeout)); logoutErr != nil {
			e.logger.Warn("logout failed", zap.Error(logoutErr))
		}
	}()

	hasTemplates, err := client.HasTemplates(ctx)
	if err != nil {
		return mapError(err)
	}
	e.logger.Debug("enable smarthome templates", zap.Bool("has_templates", hasTemplates))

	coord := coordinator.New(client, e.registry, e.ID(), hasTemplates, e.cfg.PollInterval)
	if err := coord.FirstRefresh(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.coordinator = coord
	e.mu.Unlock()

	if err := e.registry.MigrateEntries(ctx, e.ID(), e.updateUniqueID); err != nil {
		return fmt.Errorf("migrating unique ids: %w", err)
	}

	if err := e.removeSubDevices(ctx, coord.Data()); err != nil {
		return err
	}

	if err := e.createMainDevices(ctx, coord); err != nil {
		return err
	}

	if err := e.forwardPlatforms(ctx, client, coord); err != nil {
		return err
	}

	e.mu.Lock()
	e.onUnload = append(e.onUnload, func(ctx context.Context) {
		if err := client.Logout(ctx); err != nil {
			e.logger.Warn("logout failed", zap.Error(err))
		}
	})
	e.mu.Unlock()

	e.logger.Info("config entry set up", zap.Int("entities", len(e.Entities())))
	return nil
}

// Run polls the hub until ctx is done or the entry is unloaded. It returns
// nil when stopped by Unload.
func (e *Entry) Run(ctx context.Context) error {
	e.mu.Lock()
	coord := e.coordinator
	if coord == nil {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.stopRun, e.runDone = cancel, done
	e.mu.Unlock()

	defer func() {
		cancel()
		close(done)
		e.mu.Lock()
		if e.runDone == done {
			e.stopRun, e.runDone = nil, nil
		}
		e.mu.Unlock()
	}()

	err := coord.Run(runCtx)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}
	return err
}

// Unload stops polling, runs the unload hooks (hub logout), marks every
// entity unavailable and drops runtime data.
func (e *Entry) Unload(ctx context.Context) error {
	e.mu.Lock()
	coord := e.coordinator
	entities := e.entities
	hooks := e.onUnload
	stop, done := e.stopRun, e.runDone
	e.coordinator = nil
	e.entities = map[string]platform.Entity{}
	e.onUnload = nil
	e.stopRun, e.runDone = nil, nil
	e.mu.Unlock()

	if coord == nil {
		return ErrNotLoaded
	}
	if stop != nil {
		stop()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	coord.ClearListeners()

	for _, hook := range hooks {
		hook(ctx)
	}

	states := make([]model.EntityState, 0, len(entities))
	for _, entity := range entities {
		s := e.state(entity)
		s.Available = false
		states = append(states, s)
	}
	if err := e.publisher.PublishStates(ctx, states); err != nil {
		return err
	}
	e.logger.Info("config entry unloaded")
	return nil
}

// RemoveConfigEntryDevice reports whether device may be removed: never while
// the hub still reports one of its AINs as device or template.
func (e *Entry) RemoveConfigEntryDevice(device model.DeviceEntry) bool {
	e.mu.RLock()
	coord := e.coordinator
	e.mu.RUnlock()
	if coord == nil {
		return true
	}

	data := coord.Data()
	for _, identifier := range device.Identifiers {
		if identifier.Domain == model.Domain && data.Contains(identifier.ID) {
			return false
		}
	}
	return true
}

// RemoveDevice removes a device from the registry if RemoveConfigEntryDevice allows it.
func (e *Entry) RemoveDevice(ctx context.Context, deviceID string) error {
	device, ok := e.registry.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrDeviceNotFound, deviceID)
	}
	if !e.RemoveConfigEntryDevice(device) {
		return fmt.Errorf("%w: %s", ErrDeviceInUse, device.DisplayName())
	}
	return e.registry.RemoveDevice(ctx, deviceID)
}

// HandleCommand executes command on the entity with uniqueID and refreshes.
func (e *Entry) HandleCommand(ctx context.Context, uniqueID, command, payload string) error {
	e.mu.RLock()
	entity, ok := e.entities[uniqueID]
	coord := e.coordinator
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, uniqueID)
	}
	commander, ok := entity.(platform.Commander)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCommandable, uniqueID)
	}

	e.logger.Info("command", zap.String("unique_id", uniqueID), zap.String("command", command), zap.String("payload", payload))
	if err := commander.HandleCommand(ctx, command, payload); err != nil {
		return err
	}
	if coord != nil {
		return coord.Refresh(ctx)
	}
	return nil
}

// Entities returns the loaded entities ordered by unique id.
func (e *Entry) Entities() []platform.Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]platform.Entity, 0, len(e.entities))
	for _, entity := range e.entities {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID() < out[j].UniqueID() })
	return out
}

// States returns the current state of every loaded entity.
func (e *Entry) States() []model.EntityState {
	entities := e.Entities()
	states := make([]model.EntityState, 0, len(entities))
	for _, entity := range entities {
		states = append(states, e.state(entity))
	}
	return states
}

func (e *Entry) state(entity platform.Entity) model.EntityState {
	entityID, _ := e.registry.EntityID(entity.Platform(), entity.UniqueID())
	state, attrs := entity.State()
	s := model.EntityState{
		EntityID:   entityID,
		UniqueID:   entity.UniqueID(),
		Platform:   entity.Platform(),
		State:      state,
		Available:  entity.Available(),
		Attributes: attrs,
		TimeStamp:  time.Now(),
	}
	if d := entity.Description(); d != nil {
		s.Unit = string(d.Unit)
	}
	return s
}

func (e *Entry) publishStates(ctx context.Context) {
	if err := e.publisher.PublishStates(ctx, e.States()); err != nil {
		e.logger.Error("failed to publish states", zap.Error(err))
	}
}

func (e *Entry) onEntityRemoved(removed model.EntityEntry) {
	if removed.ConfigEntryID != e.ID() {
		return
	}
	e.mu.Lock()
	delete(e.entities, removed.UniqueID)
	e.mu.Unlock()

	err := e.publisher.RemoveEntity(contxt.NewContext(listenerTimeout), model.EntityConfig{
		EntityID: removed.EntityID,
		UniqueID: removed.UniqueID,
		Platform: removed.Platform,
	})
	if err != nil {
		e.logger.Error("failed to withdraw entity", zap.String("entity_id", removed.EntityID), zap.Error(err))
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, fritz.ErrConnection):
		return fmt.Errorf("%w: %w", model.ErrEntryNotReady, err)
	case errors.Is(err, fritz.ErrLogin):
		return fmt.Errorf("%w: %w", model.ErrEntryAuthFailed, err)
	}
	return err
}
