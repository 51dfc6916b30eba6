package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/fritzhome-integration/internal/pkg/config"
	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
	"github.com/anicoll/fritzhome-integration/internal/pkg/mqtt"
)

type fakeCommands struct {
	subscribed chan mqtt.CommandHandler
}

func (f *fakeCommands) Subscribe(ctx context.Context, handler mqtt.CommandHandler) error {
	f.subscribed <- handler
	<-ctx.Done()
	return ctx.Err()
}

type fakeDatabase struct {
	cleanups atomic.Int32
	err      error
}

func (f *fakeDatabase) Cleanup(context.Context) error {
	f.cleanups.Add(1)
	return f.err
}

func (f *fakeDatabase) GetProperties(context.Context, string, *time.Time, *time.Time) (model.Properties, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		FritzCfg:        &config.FritzConfig{EntryID: "fritz.box", Host: "fritz.box"},
		MqttCfg:         &config.MqttConfig{},
		InfluxCfg:       &config.InfluxConfig{},
		APICfg:          &config.APIConfig{Addr: "127.0.0.1:0"},
		CleanupSchedule: "0 3 * * *",
	}
}

func TestRunEntry_AuthFailed(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	e := &MockEntry{
		SetupFunc: func(context.Context) error {
			return fmt.Errorf("%w: invalid credentials", model.ErrEntryAuthFailed)
		},
	}

	err := runEntry(context.Background(), e, time.Millisecond)
	assert.True(t, errors.Is(err, ErrReauthRequired), "got %v", err)
	assert.True(t, errors.Is(err, model.ErrEntryAuthFailed))
}

func TestRunEntry_RetriesUntilReady(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	var attempts, unloads atomic.Int32
	e := &MockEntry{
		SetupFunc: func(context.Context) error {
			if attempts.Add(1) < 3 {
				return fmt.Errorf("%w: connection refused", model.ErrEntryNotReady)
			}
			return nil
		},
		UnloadFunc: func(context.Context) error {
			unloads.Add(1)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runEntry(ctx, e, time.Millisecond) }()

	require.Eventually(t, func() bool { return attempts.Load() == 3 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("runEntry did not return")
	}
	assert.Equal(t, int32(1), unloads.Load())
}

func TestRunEntry_ReloginRejectedWhilePolling(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	var unloads atomic.Int32
	e := &MockEntry{
		RunFunc: func(context.Context) error {
			return fmt.Errorf("%w: fritz: login failed", model.ErrEntryAuthFailed)
		},
		UnloadFunc: func(context.Context) error {
			unloads.Add(1)
			return nil
		},
	}

	err := runEntry(context.Background(), e, time.Millisecond)
	assert.True(t, errors.Is(err, ErrReauthRequired), "got %v", err)
	assert.Equal(t, int32(1), unloads.Load())
}

func TestServe_ReloginRejectedStops(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	e := &MockEntry{
		RunFunc: func(context.Context) error { return model.ErrEntryAuthFailed },
	}
	commands := &fakeCommands{subscribed: make(chan mqtt.CommandHandler, 1)}

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), testConfig(), e, commands, &fakeDatabase{}, nil) }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrReauthRequired), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestRunEntry_OtherError(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	boom := errors.New("boom")
	e := &MockEntry{SetupFunc: func(context.Context) error { return boom }}

	assert.ErrorIs(t, runEntry(context.Background(), e, time.Millisecond), boom)
}

func TestRunEntry_CancelledWhileWaiting(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	e := &MockEntry{SetupFunc: func(context.Context) error { return model.ErrEntryNotReady }}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := runEntry(ctx, e, time.Hour)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestServe_RoutesCommands(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	var mu sync.Mutex
	var got []string
	e := &MockEntry{
		HandleCommandFunc: func(_ context.Context, uniqueID, command, payload string) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, uniqueID+" "+command+" "+payload)
			return nil
		},
	}
	commands := &fakeCommands{subscribed: make(chan mqtt.CommandHandler, 1)}
	db := &fakeDatabase{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, testConfig(), e, commands, db, nil) }()

	handler := <-commands.subscribed
	require.NoError(t, handler(ctx, "11111 1111111", "switch", "ON"))
	mu.Lock()
	assert.Equal(t, []string{"11111 1111111 switch ON"}, got)
	mu.Unlock()

	require.Eventually(t, func() bool { return db.cleanups.Load() == 1 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestServe_AuthFailedStops(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	e := &MockEntry{SetupFunc: func(context.Context) error { return model.ErrEntryAuthFailed }}

	err := serve(context.Background(), testConfig(), e, nil, &fakeDatabase{}, nil)
	assert.True(t, errors.Is(err, ErrReauthRequired), "got %v", err)
}

func TestCronDbCleanup_InitialFailure(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	db := &fakeDatabase{err: errors.New("relation does not exist")}

	err := cronDbCleanup(context.Background(), db, "0 3 * * *", make(chan error, 1))
	assert.EqualError(t, err, "relation does not exist")
}

func TestCronDbCleanup_InvalidSchedule(t *testing.T) {
	zap.ReplaceGlobals(zaptest.NewLogger(t))

	err := cronDbCleanup(context.Background(), &fakeDatabase{}, "every day", make(chan error, 1))
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	cfg := testConfig()
	cfg.FritzCfg.EntryID = ""
	cfg.FritzCfg.PollInterval = 30 * time.Second

	app := &cli.App{
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			applyFlags(c, cfg)
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"fritzhome", "--fritz-host", "192.168.178.1", "--fritz-ssl", "--mqtt-host", "tcp://broker:1883"}))

	assert.Equal(t, "192.168.178.1", cfg.FritzCfg.Host)
	assert.Equal(t, "192.168.178.1", cfg.FritzCfg.EntryID)
	assert.True(t, cfg.FritzCfg.Ssl)
	assert.Equal(t, "tcp://broker:1883", cfg.MqttCfg.Host)
	// not given, the environment default stays
	assert.Equal(t, 30*time.Second, cfg.FritzCfg.PollInterval)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("DEBUG")
	require.NoError(t, err)
	_, err = newLogger("chatty")
	assert.Error(t, err)
}
