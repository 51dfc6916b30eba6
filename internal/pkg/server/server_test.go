package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/fritzhome-integration/internal/pkg/config"
	"github.com/anicoll/fritzhome-integration/internal/pkg/entry"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/registry"
	"github.com/anicoll/fritzhome-integration/pkg/hasher"
	"github.com/anicoll/fritzhome-integration/pkg/sockets"
)

const (
	testPassword = "correct horse"
	testSecret   = "jwt-secret"
)

type mockEntry struct {
	RemoveDeviceFunc func(ctx context.Context, deviceID string) error
	states           []model.EntityState
}

func (m *mockEntry) RemoveDevice(ctx context.Context, deviceID string) error {
	if m.RemoveDeviceFunc != nil {
		return m.RemoveDeviceFunc(ctx, deviceID)
	}
	return nil
}

func (m *mockEntry) States() []model.EntityState {
	return m.states
}

type fakeRegistry struct{}

func (fakeRegistry) Devices() []model.DeviceEntry {
	return []model.DeviceEntry{{ID: "dev-1", Name: "Plug"}}
}

func (fakeRegistry) Entities() []model.EntityEntry {
	return []model.EntityEntry{{EntityID: "switch.plug", UniqueID: "11111 1111111", Platform: model.Switch}}
}

func (fakeRegistry) Issues() []model.Issue {
	return []model.Issue{{Domain: model.Domain, IssueID: "deleted_device_dev-2"}}
}

type fakeHistory struct {
	entityID string
	from, to *time.Time
}

func (f *fakeHistory) GetProperties(_ context.Context, entityID string, from, to *time.Time) (model.Properties, error) {
	f.entityID, f.from, f.to = entityID, from, to
	return model.Properties{{Id: 1, EntityID: entityID, Value: "4.5"}}, nil
}

func newTestServer(t *testing.T, withAuth bool, e *mockEntry, history historyService, ws http.Handler) *httptest.Server {
	t.Helper()
	cfg := &config.APIConfig{JWTSecret: testSecret, TokenTTL: time.Hour}
	if withAuth {
		hash, err := hasher.HashPassword([]byte(testPassword))
		require.NoError(t, err)
		cfg.PasswordHash = hash
	}
	srv := httptest.NewServer(New(cfg, e, fakeRegistry{}, history, ws))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/auth/token", "", tokenRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), out.ExpiresAt, time.Minute)
	return out.Token
}

func TestAuth(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	srv := newTestServer(t, true, &mockEntry{}, nil, nil)

	resp := do(t, http.MethodGet, srv.URL+"/devices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/auth/token", "", tokenRequest{Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/devices", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tokenSubject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	resp = do(t, http.MethodGet, srv.URL+"/devices", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// a non positive ttl falls back to the default
	fallback, expiresAt, err := generateToken(testSecret, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(defaultTokenTTL), expiresAt, time.Minute)
	resp = do(t, http.MethodGet, srv.URL+"/devices", fallback, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	other, _, err := generateToken("other-secret", time.Hour)
	require.NoError(t, err)
	resp = do(t, http.MethodGet, srv.URL+"/devices", other, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := login(t, srv)
	resp = do(t, http.MethodGet, srv.URL+"/devices", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var devices []model.DeviceEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.Equal(t, "dev-1", devices[0].ID)
}

func TestOpenAPI(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	srv := newTestServer(t, false, &mockEntry{states: []model.EntityState{{EntityID: "switch.plug", State: model.StateOn}}}, nil, nil)

	resp := do(t, http.MethodGet, srv.URL+"/issues", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var issues []model.Issue
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&issues))
	assert.Equal(t, "deleted_device_dev-2", issues[0].IssueID)

	resp = do(t, http.MethodGet, srv.URL+"/entities", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/states", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var states []model.EntityState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&states))
	assert.Equal(t, model.StateOn, states[0].State)

	resp = do(t, http.MethodPost, srv.URL+"/auth/token", "", tokenRequest{Password: testPassword})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// no history without a database
	resp = do(t, http.MethodGet, srv.URL+"/entities/switch.plug/history", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteDevice(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	e := &mockEntry{RemoveDeviceFunc: func(_ context.Context, id string) error {
		switch id {
		case "in-use":
			return fmt.Errorf("%w: Plug", entry.ErrDeviceInUse)
		case "missing":
			return fmt.Errorf("%w: missing", registry.ErrDeviceNotFound)
		case "broken":
			return fmt.Errorf("store unavailable")
		}
		return nil
	}}
	srv := newTestServer(t, false, e, nil, nil)

	tests := map[string]int{
		"in-use":  http.StatusConflict,
		"missing": http.StatusNotFound,
		"broken":  http.StatusInternalServerError,
		"dev-9":   http.StatusNoContent,
	}
	for id, status := range tests {
		t.Run(id, func(t *testing.T) {
			resp := do(t, http.MethodDelete, srv.URL+"/devices/"+id, "", nil)
			assert.Equal(t, status, resp.StatusCode)
		})
	}
}

func TestHistory(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	history := &fakeHistory{}
	srv := newTestServer(t, false, &mockEntry{}, history, nil)

	resp := do(t, http.MethodGet, srv.URL+"/entities/sensor.plug_power/history?from=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/entities/sensor.plug_power/history?from=2026-10-01T00:00:00Z&to=2026-10-02T00:00:00Z", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var props model.Properties
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&props))
	require.Len(t, props, 1)
	assert.Equal(t, "sensor.plug_power", history.entityID)
	require.NotNil(t, history.from)
	assert.Equal(t, 2026, history.from.Year())

	resp = do(t, http.MethodGet, srv.URL+"/entities/sensor.plug_power/history", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, history.from)
}

func TestWebsocket(t *testing.T) {
	// the upgraded request is logged once the client leaves, possibly after the test
	zap.ReplaceGlobals(zap.NewNop())
	hub := sockets.New()
	t.Cleanup(func() { _ = hub.Close() })
	srv := newTestServer(t, true, &mockEntry{}, nil, hub)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(url+"?access_token="+login(t, srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Write(context.Background(), []model.EntityState{{EntityID: "switch.plug", State: model.StateOff}}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, body, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(body), "switch.plug")
}
