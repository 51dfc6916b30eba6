package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/config"
	"github.com/anicoll/fritzhome-integration/internal/pkg/entry"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/registry"
	"github.com/anicoll/fritzhome-integration/pkg/hasher"
)

const maxBodyBytes = 1 << 20

type entryService interface {
	RemoveDevice(ctx context.Context, deviceID string) error
	States() []model.EntityState
}

type registryService interface {
	Devices() []model.DeviceEntry
	Entities() []model.EntityEntry
	Issues() []model.Issue
}

type historyService interface {
	GetProperties(ctx context.Context, entityID string, from, to *time.Time) (model.Properties, error)
}

type server struct {
	cfg      *config.APIConfig
	entry    entryService
	registry registryService
	history  historyService
	ws       http.Handler
	logger   *zap.Logger
}

// New returns the REST and websocket API. history and ws may be nil, their
// routes are not mounted then. Without a password hash the API is open.
func New(cfg *config.APIConfig, e entryService, reg registryService, history historyService, ws http.Handler) http.Handler {
	s := &server{cfg: cfg, entry: e, registry: reg, history: history, ws: ws, logger: zap.L()}

	r := chi.NewRouter()
	r.Use(LoggingMiddleware)

	if s.authEnabled() {
		r.Post("/auth/token", s.postToken)
	}
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/devices", s.getDevices)
		r.Delete("/devices/{id}", s.deleteDevice)
		r.Get("/entities", s.getEntities)
		r.Get("/issues", s.getIssues)
		r.Get("/states", s.getStates)
		if history != nil {
			r.Get("/entities/{entity_id}/history", s.getHistory)
		}
		if ws != nil {
			r.Handle("/ws", ws)
		}
	})
	return r
}

func (s *server) getDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Devices())
}

func (s *server) getEntities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Entities())
}

func (s *server) getIssues(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Issues())
}

func (s *server) getStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.entry.States())
}

func (s *server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.entry.RemoveDevice(r.Context(), id)
	switch {
	case err == nil:
		s.logger.Info("device removed via api", zap.String("device_id", id))
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, entry.ErrDeviceInUse):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, registry.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		handleError(w, err)
	}
}

func (s *server) getHistory(w http.ResponseWriter, r *http.Request) {
	from, err := parseTime(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	props, err := s.history.GetProperties(r.Context(), chi.URLParam(r, "entity_id"), from, to)
	if err != nil {
		handleError(w, err)
		return
	}
	if props == nil {
		props = model.Properties{}
	}
	writeJSON(w, http.StatusOK, props)
}

type tokenRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *server) postToken(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[tokenRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !hasher.PasswordCorrect(req.Password, s.cfg.PasswordHash) {
		s.logger.Warn("invalid api password", zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}

	token, expiresAt, err := generateToken(s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func handleError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err)
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
