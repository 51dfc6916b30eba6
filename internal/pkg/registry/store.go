package registry

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

// Store persists registry records. Entities are keyed by entity id, devices
// by device id and issues by (domain, issue id).
type Store interface {
	LoadDevices(ctx context.Context) ([]model.DeviceEntry, error)
	SaveDevice(ctx context.Context, device model.DeviceEntry) error
	DeleteDevice(ctx context.Context, id string) error

	LoadEntities(ctx context.Context) ([]model.EntityEntry, error)
	SaveEntity(ctx context.Context, entity model.EntityEntry) error
	DeleteEntity(ctx context.Context, entityID string) error

	LoadIssues(ctx context.Context) ([]model.Issue, error)
	SaveIssue(ctx context.Context, issue model.Issue) error
}

// MemoryStore keeps registry records in process memory. It is used when no
// database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	devices  map[string]model.DeviceEntry
	entities map[string]model.EntityEntry
	issues   map[string]model.Issue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:  map[string]model.DeviceEntry{},
		entities: map[string]model.EntityEntry{},
		issues:   map[string]model.Issue{},
	}
}

func (m *MemoryStore) LoadDevices(context.Context) ([]model.DeviceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Values(m.devices), nil
}

func (m *MemoryStore) SaveDevice(_ context.Context, device model.DeviceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = device
	return nil
}

func (m *MemoryStore) DeleteDevice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, id)
	return nil
}

func (m *MemoryStore) LoadEntities(context.Context) ([]model.EntityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Values(m.entities), nil
}

func (m *MemoryStore) SaveEntity(_ context.Context, entity model.EntityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[entity.EntityID] = entity
	return nil
}

func (m *MemoryStore) DeleteEntity(_ context.Context, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, entityID)
	return nil
}

func (m *MemoryStore) LoadIssues(context.Context) ([]model.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Values(m.issues), nil
}

func (m *MemoryStore) SaveIssue(_ context.Context, issue model.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[issueKey(issue.Domain, issue.IssueID)] = issue
	return nil
}
