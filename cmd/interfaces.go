package cmd

import (
	"context"
	"time"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/mqtt"
)

// Entry defines what run expects from a config entry.
type Entry interface {
	Setup(ctx context.Context) error
	Run(ctx context.Context) error
	Unload(ctx context.Context) error
	HandleCommand(ctx context.Context, uniqueID, command, payload string) error
	RemoveDevice(ctx context.Context, deviceID string) error
	States() []model.EntityState
}

// CommandSource delivers entity commands from the host, e.g. MQTT.
type CommandSource interface {
	Subscribe(ctx context.Context, handler mqtt.CommandHandler) error
}

// Database is the optional persistence layer.
type Database interface {
	Cleanup(ctx context.Context) error
	GetProperties(ctx context.Context, entityID string, from, to *time.Time) (model.Properties, error)
}
