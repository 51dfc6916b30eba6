package publisher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("publisher already registered")

// publisher receives entity state changes.
type publisher interface {
	Write(ctx context.Context, states []model.EntityState) error
}

// entityRegistrar is implemented by publishers that announce entities, such
// as MQTT discovery.
type entityRegistrar interface {
	RegisterEntity(ctx context.Context, entity model.EntityConfig) error
	RemoveEntity(ctx context.Context, entity model.EntityConfig) error
}

// Publishers fans entity registrations and state changes out to every
// registered publisher. States are only forwarded when they changed.
type Publishers struct {
	mu         sync.RWMutex
	publishers map[string]publisher
	states     sync.Map
	logger     *zap.Logger
}

func New() *Publishers {
	return &Publishers{
		publishers: map[string]publisher{},
		logger:     zap.L(),
	}
}

func (p *Publishers) RegisterPublisher(name string, pub publisher) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.publishers[name]; ok {
		return fmt.Errorf("%w: %s", errAlreadyRegistered, name)
	}
	p.publishers[name] = pub
	return nil
}

func (p *Publishers) RegisterEntity(ctx context.Context, entity model.EntityConfig) error {
	for name, pub := range p.snapshot() {
		registrar, ok := pub.(entityRegistrar)
		if !ok {
			continue
		}
		if err := registrar.RegisterEntity(ctx, entity); err != nil {
			p.logger.Error("failed to register entity", zap.Error(err), zap.String("entity_id", entity.EntityID), zap.String("publisher", name))
			continue
		}
		p.logger.Debug("registered entity", zap.String("entity_id", entity.EntityID), zap.String("publisher", name))
	}
	return nil
}

// RemoveEntity withdraws entity and forgets its last published state.
func (p *Publishers) RemoveEntity(ctx context.Context, entity model.EntityConfig) error {
	p.states.Delete(entity.UniqueID)
	for name, pub := range p.snapshot() {
		registrar, ok := pub.(entityRegistrar)
		if !ok {
			continue
		}
		if err := registrar.RemoveEntity(ctx, entity); err != nil {
			p.logger.Error("failed to remove entity", zap.Error(err), zap.String("entity_id", entity.EntityID), zap.String("publisher", name))
			continue
		}
		p.logger.Debug("removed entity", zap.String("entity_id", entity.EntityID), zap.String("publisher", name))
	}
	return nil
}

// PublishStates forwards the states that changed since the last call.
func (p *Publishers) PublishStates(ctx context.Context, states []model.EntityState) error {
	changed := make([]model.EntityState, 0, len(states))
	for _, s := range states {
		if p.shouldUpdate(s) {
			changed = append(changed, s)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	for name, pub := range p.snapshot() {
		if err := pub.Write(ctx, changed); err != nil {
			p.logger.Error("failed to publish states", zap.Error(err), zap.String("publisher", name))
			continue
		}
		p.logger.Debug("updated entities", zap.Int("count", len(changed)), zap.String("publisher", name))
	}
	return nil
}

// Forget drops every remembered state so the next PublishStates sends all.
func (p *Publishers) Forget() {
	p.states.Range(func(k, _ any) bool {
		p.states.Delete(k)
		return true
	})
}

func (p *Publishers) snapshot() map[string]publisher {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]publisher, len(p.publishers))
	for k, v := range p.publishers {
		out[k] = v
	}
	return out
}

func (p *Publishers) shouldUpdate(s model.EntityState) bool {
	fingerprint := fingerprint(s)
	old, exists := p.states.Load(s.UniqueID)
	if exists && old.(string) == fingerprint {
		return false
	}
	if !exists {
		p.logger.Info("configured entity", zap.String("entity_id", s.EntityID), zap.String("state", s.State))
	}
	p.states.Store(s.UniqueID, fingerprint)
	return true
}

func fingerprint(s model.EntityState) string {
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := fmt.Sprintf("%s|%t|%s", s.State, s.Available, s.Unit)
	for _, k := range keys {
		out += fmt.Sprintf("|%s=%v", k, s.Attributes[k])
	}
	return out
}
