// Package influx writes numeric entity states to InfluxDB.
package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/config"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

const (
	measurement    = "entity_state"
	connectTimeout = 10 * time.Second
)

var (
	ErrDisabled         = errors.New("influxdb is not configured")
	ErrConnectionFailed = errors.New("influxdb connection failed")
)

type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *zap.Logger
}

// Connect returns ErrDisabled when no URL is configured.
func Connect(ctx context.Context, cfg *config.InfluxConfig) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, influxdb2.DefaultOptions())

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Client{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   zap.L().With(zap.String("bucket", cfg.Bucket)),
	}, nil
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.client.Close()
	return nil
}

// Write stores every available state that has a numeric value. Switch and
// binary sensor states are written as 1 and 0.
func (c *Client) Write(ctx context.Context, states []model.EntityState) error {
	points := make([]*write.Point, 0, len(states))
	for _, s := range states {
		if !s.Available {
			continue
		}
		value, ok := numeric(s.State)
		if !ok {
			continue
		}
		points = append(points, write.NewPoint(
			measurement,
			map[string]string{
				"entity_id": s.EntityID,
				"unique_id": s.UniqueID,
				"platform":  s.Platform.String(),
				"unit":      s.Unit,
			},
			map[string]any{"value": value},
			s.TimeStamp,
		))
	}
	if len(points) == 0 {
		return nil
	}
	if err := c.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	c.logger.Debug("states written", zap.Int("points", len(points)))
	return nil
}

func numeric(state string) (float64, bool) {
	switch state {
	case model.StateOn:
		return 1, true
	case model.StateOff:
		return 0, true
	}
	v, err := strconv.ParseFloat(state, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
