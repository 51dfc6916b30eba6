package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/fritzhome-integration/internal/pkg/automation"
	"github.com/anicoll/fritzhome-integration/internal/pkg/config"
	"github.com/anicoll/fritzhome-integration/internal/pkg/contxt"
	"github.com/anicoll/fritzhome-integration/internal/pkg/database"
	"github.com/anicoll/fritzhome-integration/internal/pkg/database/migration"
	"github.com/anicoll/fritzhome-integration/internal/pkg/entry"
	"github.com/anicoll/fritzhome-integration/internal/pkg/fritz"
	"github.com/anicoll/fritzhome-integration/internal/pkg/influx"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/mqtt"
	"github.com/anicoll/fritzhome-integration/internal/pkg/publisher"
	"github.com/anicoll/fritzhome-integration/internal/pkg/registry"
	"github.com/anicoll/fritzhome-integration/internal/pkg/server"
)

const (
	retryDelay      = 5 * time.Second
	maxRetryDelay   = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

var (
	errCron             = errors.New("cron error")
	ErrReauthRequired   = errors.New("hub rejected the credentials, reauthentication required")
	errNoHubCredentials = errors.New("fritz-username and fritz-password are required")
)

func FritzCommand(ctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(ctx, cfg)
	if cfg.FritzCfg.Username == "" || cfg.FritzCfg.Password == "" {
		return errNoHubCredentials
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	err = run(ctx.Context, cfg)
	if errors.Is(err, context.Canceled) {
		logger.Info("stopped")
		return nil
	}
	return err
}

// applyFlags overrides the environment defaults with flags given on the
// command line.
func applyFlags(ctx *cli.Context, cfg *config.Config) {
	setString := func(name string, dst *string) {
		if ctx.IsSet(name) {
			*dst = ctx.String(name)
		}
	}
	setString("fritz-entry-id", &cfg.FritzCfg.EntryID)
	setString("fritz-host", &cfg.FritzCfg.Host)
	setString("fritz-username", &cfg.FritzCfg.Username)
	setString("fritz-password", &cfg.FritzCfg.Password)
	setString("mqtt-host", &cfg.MqttCfg.Host)
	setString("mqtt-user", &cfg.MqttCfg.Username)
	setString("mqtt-pass", &cfg.MqttCfg.Password)
	setString("mqtt-discovery-prefix", &cfg.MqttCfg.DiscoveryPrefix)
	setString("influx-url", &cfg.InfluxCfg.URL)
	setString("influx-token", &cfg.InfluxCfg.Token)
	setString("influx-org", &cfg.InfluxCfg.Org)
	setString("influx-bucket", &cfg.InfluxCfg.Bucket)
	setString("api-addr", &cfg.APICfg.Addr)
	setString("api-password-hash", &cfg.APICfg.PasswordHash)
	setString("api-jwt-secret", &cfg.APICfg.JWTSecret)
	setString("database-url", &cfg.DatabaseURL)
	setString("migrations-folder", &cfg.MigrationsDir)
	setString("automations-file", &cfg.AutomationsFile)
	setString("cleanup-schedule", &cfg.CleanupSchedule)
	setString("log-level", &cfg.LogLevel)
	if ctx.IsSet("fritz-ssl") {
		cfg.FritzCfg.Ssl = ctx.Bool("fritz-ssl")
	}
	if ctx.IsSet("poll-interval") {
		cfg.FritzCfg.PollInterval = ctx.Duration("poll-interval")
	}
	if ctx.IsSet("api-token-ttl") {
		cfg.APICfg.TokenTTL = ctx.Duration("api-token-ttl")
	}
	cfg.FritzCfg.EntryID = lo.CoalesceOrEmpty(cfg.FritzCfg.EntryID, cfg.FritzCfg.Host)
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

// run wires storage, transports and the config entry, then serves until ctx
// is done or a component fails.
func run(ctx context.Context, cfg *config.Config) error {
	logger := zap.L()
	pubs := publisher.New()

	var store registry.Store = registry.NewMemoryStore()
	var db Database
	if cfg.DatabaseURL != "" {
		if err := migration.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		pg, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pubs.RegisterPublisher("postgres", pg); err != nil {
			return err
		}
		store, db = pg, pg
	} else {
		logger.Warn("no database configured, registries are kept in memory")
	}

	influxClient, err := influx.Connect(ctx, cfg.InfluxCfg)
	switch {
	case err == nil:
		defer influxClient.Close()
		if err := pubs.RegisterPublisher("influx", influxClient); err != nil {
			return err
		}
	case !errors.Is(err, influx.ErrDisabled):
		return err
	}

	var commands CommandSource
	if cfg.MqttCfg.Host != "" {
		opts := mqtt.NewClientOptions(cfg.MqttCfg.Host, cfg.MqttCfg.Username, cfg.MqttCfg.Password)
		// a reconnected broker may have lost retained states, resend all on the next poll
		opts.SetOnConnectHandler(func(paho_mqtt.Client) { pubs.Forget() })
		mqttSvc := mqtt.New(paho_mqtt.NewClient(opts), cfg.MqttCfg.DiscoveryPrefix)
		if err := mqttSvc.Connect(); err != nil {
			return fmt.Errorf("connecting to mqtt: %w", err)
		}
		defer mqttSvc.Close()
		if err := pubs.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
		commands = mqttSvc
	}

	var e *entry.Entry
	hub := newHub(func() Entry {
		if e == nil {
			return nil
		}
		return e
	})
	defer hub.Close()
	if err := pubs.RegisterPublisher("websocket", hub); err != nil {
		return err
	}

	refs, err := automation.Load(cfg.AutomationsFile)
	if err != nil {
		return err
	}
	reg, err := registry.New(ctx, store)
	if err != nil {
		return err
	}

	e = entry.New(cfg.FritzCfg, newFritzClient, reg, refs, pubs)
	handler := server.New(cfg.APICfg, e, reg, db, hub)
	return serve(ctx, cfg, e, commands, db, handler)
}

func newFritzClient(cfg *config.FritzConfig) entry.Client {
	return fritz.New(cfg)
}

func serve(ctx context.Context, cfg *config.Config, e Entry, commands CommandSource, db Database, handler http.Handler) error {
	errorChan := make(chan error, 100)
	logger := zap.L()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return runEntry(ctx, e, retryDelay)
	})

	if commands != nil {
		eg.Go(func() error {
			return commands.Subscribe(ctx, e.HandleCommand)
		})
	}

	if db != nil {
		eg.Go(func() error {
			return cronDbCleanup(ctx, db, cfg.CleanupSchedule, errorChan)
		})
	}

	if handler != nil {
		eg.Go(func() error {
			return serveHTTP(ctx, cfg.APICfg.Addr, handler)
		})
	}

	eg.Go(func() error {
		// handle any async errors from service
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
				logger.Warn("async error", zap.Error(err))
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

// runEntry sets the entry up, retrying with backoff while the hub is not
// ready, and polls until ctx is done.
func runEntry(ctx context.Context, e Entry, delay time.Duration) error {
	logger := zap.L()
	for {
		err := e.Setup(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, model.ErrEntryAuthFailed) {
			return fmt.Errorf("%w: %w", ErrReauthRequired, err)
		}
		if !errors.Is(err, model.ErrEntryNotReady) {
			return err
		}
		logger.Warn("hub not ready, retrying", zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}

	defer func() {
		if err := e.Unload(contxt.NewContext(shutdownTimeout)); err != nil {
			logger.Error("unload failed", zap.Error(err))
		}
	}()
	err := e.Run(ctx)
	if errors.Is(err, model.ErrEntryAuthFailed) {
		return fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}
	return err
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Handler:      handler,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(contxt.NewContext(shutdownTimeout)); err != nil {
			zap.L().Error("http shutdown failed", zap.Error(err))
		}
	}()

	zap.L().Info("api listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func cronDbCleanup(ctx context.Context, db Database, schedule string, errChan chan error) error {
	if err := db.Cleanup(ctx); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := db.Cleanup(ctx); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- fmt.Errorf("%w: %w", errCron, err)
			return
		}
		zap.L().Info("database cleaned up")
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
