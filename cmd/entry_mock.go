package cmd

import (
	"context"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

// MockEntry is a mock implementation of the Entry interface.
type MockEntry struct {
	SetupFunc         func(ctx context.Context) error
	RunFunc           func(ctx context.Context) error
	UnloadFunc        func(ctx context.Context) error
	HandleCommandFunc func(ctx context.Context, uniqueID, command, payload string) error
	RemoveDeviceFunc  func(ctx context.Context, deviceID string) error
	StatesFunc        func() []model.EntityState
}

func (m *MockEntry) Setup(ctx context.Context) error {
	if m.SetupFunc != nil {
		return m.SetupFunc(ctx)
	}
	return nil
}

// Run blocks until ctx is done unless RunFunc is set.
func (m *MockEntry) Run(ctx context.Context) error {
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockEntry) Unload(ctx context.Context) error {
	if m.UnloadFunc != nil {
		return m.UnloadFunc(ctx)
	}
	return nil
}

func (m *MockEntry) HandleCommand(ctx context.Context, uniqueID, command, payload string) error {
	if m.HandleCommandFunc != nil {
		return m.HandleCommandFunc(ctx, uniqueID, command, payload)
	}
	return nil
}

func (m *MockEntry) RemoveDevice(ctx context.Context, deviceID string) error {
	if m.RemoveDeviceFunc != nil {
		return m.RemoveDeviceFunc(ctx, deviceID)
	}
	return nil
}

func (m *MockEntry) States() []model.EntityState {
	if m.StatesFunc != nil {
		return m.StatesFunc()
	}
	return nil
}
