package entry

import (
	"context"

	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
)

// MockClient is a Client whose methods are backed by func fields. Unset
// fields succeed with zero values.
type MockClient struct {
	LoginFunc                func(ctx context.Context) error
	LogoutFunc               func(ctx context.Context) error
	HasTemplatesFunc         func(ctx context.Context) (bool, error)
	UpdateDevicesFunc        func(ctx context.Context) (map[string]*fritz.Device, error)
	UpdateTemplatesFunc      func(ctx context.Context) (map[string]*fritz.Template, error)
	SetSwitchStateFunc       func(ctx context.Context, ain string, on bool) error
	SetTargetTemperatureFunc func(ctx context.Context, ain string, celsius float64) error
	ApplyTemplateFunc        func(ctx context.Context, ain string) error
}

func (m *MockClient) Login(ctx context.Context) error {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx)
	}
	return nil
}

func (m *MockClient) Logout(ctx context.Context) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}

func (m *MockClient) HasTemplates(ctx context.Context) (bool, error) {
	if m.HasTemplatesFunc != nil {
		return m.HasTemplatesFunc(ctx)
	}
	return false, nil
}

func (m *MockClient) UpdateDevices(ctx context.Context) (map[string]*fritz.Device, error) {
	if m.UpdateDevicesFunc != nil {
		return m.UpdateDevicesFunc(ctx)
	}
	return map[string]*fritz.Device{}, nil
}

func (m *MockClient) UpdateTemplates(ctx context.Context) (map[string]*fritz.Template, error) {
	if m.UpdateTemplatesFunc != nil {
		return m.UpdateTemplatesFunc(ctx)
	}
	return map[string]*fritz.Template{}, nil
}

func (m *MockClient) SetSwitchState(ctx context.Context, ain string, on bool) error {
	if m.SetSwitchStateFunc != nil {
		return m.SetSwitchStateFunc(ctx, ain, on)
	}
	return nil
}

func (m *MockClient) SetTargetTemperature(ctx context.Context, ain string, celsius float64) error {
	if m.SetTargetTemperatureFunc != nil {
		return m.SetTargetTemperatureFunc(ctx, ain, celsius)
	}
	return nil
}

func (m *MockClient) ApplyTemplate(ctx context.Context, ain string) error {
	if m.ApplyTemplateFunc != nil {
		return m.ApplyTemplateFunc(ctx, ain)
	}
	return nil
}

func (m *MockClient) BaseURL() string {
	return "http://fritz.box"
}
