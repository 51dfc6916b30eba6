package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

// Client is the part of the hub client the coordinator polls with.
type Client interface {
	Login(ctx context.Context) error
	UpdateDevices(ctx context.Context) (map[string]*fritz.Device, error)
	UpdateTemplates(ctx context.Context) (map[string]*fritz.Template, error)
	BaseURL() string
}

// Registry is the part of the host registry the coordinator prunes.
type Registry interface {
	EntitiesForEntry(entryID string) []model.EntityEntry
	RemoveEntity(ctx context.Context, entityID string) error
	DevicesForEntry(entryID string) []model.DeviceEntry
	RemoveDevice(ctx context.Context, id string) error
}

// Coordinator polls the hub for one config entry and shares the result with
// every entity of that entry.
type Coordinator struct {
	client       Client
	registry     Registry
	entryID      string
	hasTemplates bool
	interval     time.Duration
	logger       *zap.Logger

	// refreshMu serializes polls so listeners see each change once.
	refreshMu sync.Mutex

	mu                sync.RWMutex
	data              *fritz.Data
	lastUpdateSuccess bool
	lastErr           error

	listeners            []func()
	newDeviceListeners   []func(ains []string)
	newTemplateListeners []func(ains []string)
}

func New(client Client, registry Registry, entryID string, hasTemplates bool, interval time.Duration) *Coordinator {
	return &Coordinator{
		client:       client,
		registry:     registry,
		entryID:      entryID,
		hasTemplates: hasTemplates,
		interval:     interval,
		logger:       zap.L().With(zap.String("entry_id", entryID)),
	}
}

// Data returns the result of the last successful poll.
func (c *Coordinator) Data() *fritz.Data {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdateSuccess
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Coordinator) HasTemplates() bool {
	return c.hasTemplates
}

func (c *Coordinator) ConfigurationURL() string {
	return c.client.BaseURL()
}

// AddListener registers fn to be called after every refresh, successful or not.
func (c *Coordinator) AddListener(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnNewDevices registers fn to be called with the AINs of devices reported
// for the first time since the first refresh.
func (c *Coordinator) OnNewDevices(fn func(ains []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newDeviceListeners = append(c.newDeviceListeners, fn)
}

func (c *Coordinator) OnNewTemplates(fn func(ains []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newTemplateListeners = append(c.newTemplateListeners, fn)
}

// ClearListeners drops every registered listener.
func (c *Coordinator) ClearListeners() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = nil
	c.newDeviceListeners = nil
	c.newTemplateListeners = nil
}

// FirstRefresh runs the initial poll of a config entry. Hub errors are
// mapped onto the failure signals a config entry reports back.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	data, err := c.fetch(ctx)
	if err != nil {
		c.setFailed(err)
		if errors.Is(err, fritz.ErrLogin) {
			return fmt.Errorf("%w: %w", model.ErrEntryAuthFailed, err)
		}
		return fmt.Errorf("%w: %w", model.ErrEntryNotReady, err)
	}

	c.mu.Lock()
	c.data = data
	c.lastUpdateSuccess = true
	c.lastErr = nil
	c.mu.Unlock()

	c.cleanupRemovedDevices(ctx, data)
	c.logger.Info("first refresh done", zap.Int("devices", len(data.Devices)), zap.Int("templates", len(data.Templates)))
	return nil
}

// Refresh polls the hub once and notifies listeners. It returns
// model.ErrEntryAuthFailed when the hub rejects the credentials on re-login.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	data, err := c.fetch(ctx)
	if err != nil {
		wasSuccessful := c.LastUpdateSuccess()
		c.setFailed(err)
		if wasSuccessful {
			c.logger.Error("error fetching hub data", zap.Error(err))
		}
		c.notify()
		if errors.Is(err, fritz.ErrLogin) {
			return fmt.Errorf("%w: %w", model.ErrEntryAuthFailed, err)
		}
		return fmt.Errorf("%w: %w", model.ErrUpdateFailed, err)
	}

	c.mu.Lock()
	previous := c.data
	c.data = data
	if !c.lastUpdateSuccess {
		c.logger.Info("fetching hub data recovered")
	}
	c.lastUpdateSuccess = true
	c.lastErr = nil
	deviceListeners := c.newDeviceListeners
	templateListeners := c.newTemplateListeners
	c.mu.Unlock()

	if previous != nil {
		if ains := newKeys(previous.Devices, data.Devices); len(ains) > 0 {
			c.logger.Info("new devices reported", zap.Strings("ains", ains))
			for _, fn := range deviceListeners {
				fn(ains)
			}
		}
		if ains := newKeys(previous.Templates, data.Templates); len(ains) > 0 {
			c.logger.Info("new templates reported", zap.Strings("ains", ains))
			for _, fn := range templateListeners {
				fn(ains)
			}
		}
	}

	c.cleanupRemovedDevices(ctx, data)
	c.notify()
	return nil
}

// Run refreshes on every tick until ctx is done. It stops with
// model.ErrEntryAuthFailed once the hub rejects the credentials, so the
// rejected login is not retried into the hub's login block time.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := c.Refresh(ctx)
			if errors.Is(err, model.ErrEntryAuthFailed) {
				c.logger.Error("hub rejected the credentials, polling stopped", zap.Error(err))
				return err
			}
			if err != nil {
				c.logger.Debug("refresh failed", zap.Error(err))
			}
		}
	}
}

func (c *Coordinator) fetch(ctx context.Context) (*fritz.Data, error) {
	devices, err := c.client.UpdateDevices(ctx)
	if errors.Is(err, fritz.ErrHTTP) {
		// session expired, log in again once
		if err := c.client.Login(ctx); err != nil {
			return nil, err
		}
		devices, err = c.client.UpdateDevices(ctx)
	}
	if err != nil {
		return nil, err
	}

	templates := map[string]*fritz.Template{}
	if c.hasTemplates {
		templates, err = c.client.UpdateTemplates(ctx)
		if errors.Is(err, fritz.ErrHTTP) {
			if err := c.client.Login(ctx); err != nil {
				return nil, err
			}
			templates, err = c.client.UpdateTemplates(ctx)
		}
		if err != nil {
			return nil, err
		}
	}

	return &fritz.Data{Devices: devices, Templates: templates}, nil
}

// cleanupRemovedDevices drops entities and devices of this entry whose AIN
// is no longer reported by the hub.
func (c *Coordinator) cleanupRemovedDevices(ctx context.Context, data *fritz.Data) {
	if c.registry == nil {
		return
	}

	for _, entity := range c.registry.EntitiesForEntry(c.entryID) {
		ain, _, _ := strings.Cut(entity.UniqueID, "_")
		if data.Contains(ain) {
			continue
		}
		c.logger.Info("removing obsolete entity", zap.String("entity_id", entity.EntityID), zap.String("unique_id", entity.UniqueID))
		if err := c.registry.RemoveEntity(ctx, entity.EntityID); err != nil {
			c.logger.Error("failed to remove entity", zap.String("entity_id", entity.EntityID), zap.Error(err))
		}
	}

	for _, device := range c.registry.DevicesForEntry(c.entryID) {
		reported := lo.ContainsBy(device.Identifiers, func(i model.Identifier) bool {
			return i.Domain == model.Domain && data.Contains(i.ID)
		})
		if reported {
			continue
		}
		c.logger.Info("removing obsolete device", zap.String("device_id", device.ID), zap.String("name", device.DisplayName()))
		if err := c.registry.RemoveDevice(ctx, device.ID); err != nil {
			c.logger.Error("failed to remove device", zap.String("device_id", device.ID), zap.Error(err))
		}
	}
}

func (c *Coordinator) setFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUpdateSuccess = false
	c.lastErr = err
}

func (c *Coordinator) notify() {
	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

func newKeys[T any](previous, current map[string]T) []string {
	keys := lo.Filter(lo.Keys(current), func(k string, _ int) bool {
		_, ok := previous[k]
		return !ok
	})
	sort.Strings(keys)
	return keys
}
