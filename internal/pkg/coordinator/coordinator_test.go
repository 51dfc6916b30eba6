package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/registry"
)

const entryID = "fritzbox_test"

// MockClient is a func-field implementation of Client.
type MockClient struct {
	mu                  sync.Mutex
	logins              int
	LoginFunc           func(ctx context.Context) error
	UpdateDevicesFunc   func(ctx context.Context) (map[string]*fritz.Device, error)
	UpdateTemplatesFunc func(ctx context.Context) (map[string]*fritz.Template, error)
}

func (m *MockClient) Login(ctx context.Context) error {
	m.mu.Lock()
	m.logins++
	m.mu.Unlock()
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx)
	}
	return nil
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

func (m *MockClient) BaseURL() string { return "http://fritz.box" }

func (m *MockClient) loginCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins
}

func devices(ains ...string) map[string]*fritz.Device {
	out := map[string]*fritz.Device{}
	for _, ain := range ains {
		out[ain] = &fritz.Device{AIN: ain, Name: ain, Present: true}
	}
	return out
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.New(context.Background(), registry.NewMemoryStore())
	require.NoError(t, err)
	return r
}

func TestFirstRefresh_ErrorMapping(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))

	tests := map[string]struct {
		err  error
		want error
	}{
		"connection error": {err: fmt.Errorf("%w: dial tcp", fritz.ErrConnection), want: model.ErrEntryNotReady},
		"login rejected":   {err: fmt.Errorf("%w: user", fritz.ErrLogin), want: model.ErrEntryAuthFailed},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			client := &MockClient{
				UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) { return nil, tt.err },
			}
			c := New(client, nil, entryID, false, time.Minute)

			err := c.FirstRefresh(context.Background())
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.False(t, c.LastUpdateSuccess())
			assert.Nil(t, c.Data())
		})
	}
}

func TestFirstRefresh_ReloginFailure(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	client := &MockClient{
		LoginFunc: func(context.Context) error { return fritz.ErrLogin },
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) {
			return nil, fmt.Errorf("%w: 403", fritz.ErrHTTP)
		},
	}
	c := New(client, nil, entryID, false, time.Minute)

	err := c.FirstRefresh(context.Background())
	assert.True(t, errors.Is(err, model.ErrEntryAuthFailed), "got %v", err)
	assert.Equal(t, 1, client.loginCount())
}

func TestRefresh_SessionExpiredRelogin(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	calls := 0
	client := &MockClient{
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) {
			calls++
			if calls == 1 {
				return nil, fmt.Errorf("%w: 403", fritz.ErrHTTP)
			}
			return devices("ain1"), nil
		},
		UpdateTemplatesFunc: func(context.Context) (map[string]*fritz.Template, error) {
			return map[string]*fritz.Template{"tmp1": {AIN: "tmp1"}}, nil
		},
	}
	c := New(client, nil, entryID, true, time.Minute)

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 1, client.loginCount())
	assert.True(t, c.LastUpdateSuccess())
	assert.True(t, c.Data().Contains("ain1"))
	assert.True(t, c.Data().Contains("tmp1"))
}

func TestRefresh_FailureNotifiesListeners(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	fail := false
	client := &MockClient{
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) {
			if fail {
				return nil, fritz.ErrConnection
			}
			return devices("ain1"), nil
		},
	}
	c := New(client, nil, entryID, false, time.Minute)
	notified := 0
	c.AddListener(func() { notified++ })

	require.NoError(t, c.FirstRefresh(context.Background()))
	fail = true
	err := c.Refresh(context.Background())
	assert.True(t, errors.Is(err, model.ErrUpdateFailed))
	assert.False(t, c.LastUpdateSuccess())
	assert.True(t, errors.Is(c.LastError(), fritz.ErrConnection))
	assert.Equal(t, 1, notified)
	// data of the last successful poll is kept
	assert.True(t, c.Data().Contains("ain1"))
}

func TestRefresh_NewDevices(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	current := devices("ain1")
	client := &MockClient{
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) { return current, nil },
	}
	c := New(client, nil, entryID, false, time.Minute)
	var reported []string
	c.OnNewDevices(func(ains []string) { reported = append(reported, ains...) })

	require.NoError(t, c.FirstRefresh(context.Background()))
	assert.Empty(t, reported)

	current = devices("ain1", "ain3", "ain2")
	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, []string{"ain2", "ain3"}, reported)
}

func TestRefresh_RemovesObsoleteDevices(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	ctx := context.Background()
	reg := newTestRegistry(t)

	for _, ain := range []string{"ain1", "ain2"} {
		device, err := reg.GetOrCreateDevice(ctx, entryID, model.DeviceInfo{
			Identifiers: []model.Identifier{{Domain: model.Domain, ID: ain}},
			Name:        ain,
		})
		require.NoError(t, err)
		for _, uid := range []string{ain, ain + "_temperature"} {
			_, err := reg.GetOrCreateEntity(ctx, model.EntityEntry{
				Platform:      model.Sensor,
				UniqueID:      uid,
				ConfigEntryID: entryID,
				DeviceID:      device.ID,
				OriginalName:  uid,
			})
			require.NoError(t, err)
		}
	}

	current := devices("ain1", "ain2")
	client := &MockClient{
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) { return current, nil },
	}
	c := New(client, reg, entryID, false, time.Minute)
	require.NoError(t, c.FirstRefresh(ctx))
	assert.Len(t, reg.EntitiesForEntry(entryID), 4)
	assert.Len(t, reg.DevicesForEntry(entryID), 2)

	current = devices("ain1")
	require.NoError(t, c.Refresh(ctx))

	assert.Len(t, reg.EntitiesForEntry(entryID), 2)
	for _, e := range reg.EntitiesForEntry(entryID) {
		assert.Contains(t, e.UniqueID, "ain1")
	}
	remaining := reg.DevicesForEntry(entryID)
	require.Len(t, remaining, 1)
	assert.Equal(t, "ain1", remaining[0].Name)
}

func TestRun_StopsOnContextDone(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	var mu sync.Mutex
	polls := 0
	client := &MockClient{
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) {
			mu.Lock()
			polls++
			mu.Unlock()
			return devices("ain1"), nil
		},
	}
	c := New(client, nil, entryID, false, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, polls, 1)
}

func TestRefresh_ReloginRejected(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	expired := false
	client := &MockClient{
		LoginFunc: func(context.Context) error { return fmt.Errorf("%w: user", fritz.ErrLogin) },
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) {
			if expired {
				return nil, fmt.Errorf("%w: 403", fritz.ErrHTTP)
			}
			return devices("ain1"), nil
		},
	}
	c := New(client, nil, entryID, false, time.Minute)
	require.NoError(t, c.FirstRefresh(context.Background()))

	expired = true
	err := c.Refresh(context.Background())
	assert.True(t, errors.Is(err, model.ErrEntryAuthFailed), "got %v", err)
	assert.False(t, errors.Is(err, model.ErrUpdateFailed))
	assert.False(t, c.LastUpdateSuccess())
}

func TestRun_StopsWhenReloginRejected(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	client := &MockClient{
		LoginFunc: func(context.Context) error { return fritz.ErrLogin },
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) {
			return nil, fmt.Errorf("%w: 403", fritz.ErrHTTP)
		},
	}
	c := New(client, nil, entryID, false, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := c.Run(ctx)
	assert.True(t, errors.Is(err, model.ErrEntryAuthFailed), "got %v", err)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, 1, client.loginCount())
}

func TestRefresh_ConcurrentNewDevicesReportedOnce(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	var mu sync.Mutex
	current := devices("ain1")
	client := &MockClient{
		UpdateDevicesFunc: func(context.Context) (map[string]*fritz.Device, error) {
			mu.Lock()
			defer mu.Unlock()
			out := map[string]*fritz.Device{}
			for k, v := range current {
				out[k] = v
			}
			return out, nil
		},
	}
	c := New(client, nil, entryID, false, time.Minute)
	require.NoError(t, c.FirstRefresh(context.Background()))

	var reportedMu sync.Mutex
	var reported []string
	c.OnNewDevices(func(ains []string) {
		reportedMu.Lock()
		defer reportedMu.Unlock()
		reported = append(reported, ains...)
	})

	mu.Lock()
	current = devices("ain1", "ain2")
	mu.Unlock()

	var calls sync.WaitGroup
	for range 8 {
		calls.Add(1)
		go func() {
			defer calls.Done()
			assert.NoError(t, c.Refresh(context.Background()))
		}()
	}
	calls.Wait()

	reportedMu.Lock()
	defer reportedMu.Unlock()
	assert.Equal(t, []string{"ain2"}, reported)
}

func TestClearListeners(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	c := New(&MockClient{}, nil, entryID, false, time.Minute)
	notified := 0
	c.AddListener(func() { notified++ })
	c.OnNewDevices(func([]string) { notified++ })

	c.ClearListeners()
	require.NoError(t, c.Refresh(context.Background()))
	assert.Zero(t, notified)
}
