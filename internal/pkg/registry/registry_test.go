package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

const entryID = "fritzbox_test"

func newTestRegistry(t *testing.T) (*Registry, *MemoryStore) {
	t.Helper()
	zap.ReplaceGlobals(zaptest.NewLogger(t))
	store := NewMemoryStore()
	r, err := New(context.Background(), store)
	require.NoError(t, err)
	return r, store
}

func TestGetOrCreateDevice(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.GetOrCreateDevice(ctx, entryID, model.DeviceInfo{
		Identifiers:  []model.Identifier{{Domain: model.Domain, ID: "08761 0000434"}},
		Connections:  []model.Connection{{Type: model.ConnectionAIN, ID: "08761 0000434"}},
		Name:         "Steckdose",
		Manufacturer: "AVM",
		Model:        "FRITZ!DECT 200",
		SwVersion:    "04.25",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []string{entryID}, created.ConfigEntries)

	// a sub unit links by connection only and resolves to the same device
	linked, err := r.GetOrCreateDevice(ctx, entryID, model.DeviceInfo{
		Connections: []model.Connection{{Type: model.ConnectionAIN, ID: "08761 0000434"}},
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, linked.ID)
	assert.Equal(t, "Steckdose", linked.Name)

	updated, err := r.GetOrCreateDevice(ctx, entryID, model.DeviceInfo{
		Identifiers: []model.Identifier{{Domain: model.Domain, ID: "08761 0000434"}},
		SwVersion:   "04.26",
	})
	require.NoError(t, err)
	assert.Equal(t, "04.26", updated.SwVersion)
	assert.Len(t, updated.Identifiers, 1)

	found, ok := r.GetDevice(model.Identifier{Domain: model.Domain, ID: "08761 0000434"})
	require.True(t, ok)
	assert.Equal(t, created.ID, found.ID)

	_, ok = r.GetDevice(model.Identifier{Domain: model.Domain, ID: "missing"})
	assert.False(t, ok)

	persisted, err := store.LoadDevices(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "04.26", persisted[0].SwVersion)
}

func TestGetOrCreateEntity(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := r.GetOrCreateEntity(ctx, model.EntityEntry{
		Platform:      model.Sensor,
		UniqueID:      "08761 0000434_temperature",
		ConfigEntryID: entryID,
		OriginalName:  "Steckdose Temperature",
	})
	require.NoError(t, err)
	assert.Equal(t, "sensor.steckdose_temperature", first.EntityID)

	again, err := r.GetOrCreateEntity(ctx, model.EntityEntry{
		Platform:      model.Sensor,
		UniqueID:      "08761 0000434_temperature",
		ConfigEntryID: entryID,
		OriginalName:  "Renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, first.EntityID, again.EntityID)

	clash, err := r.GetOrCreateEntity(ctx, model.EntityEntry{
		Platform:      model.Sensor,
		UniqueID:      "other_temperature",
		ConfigEntryID: entryID,
		OriginalName:  "Steckdose Temperature",
	})
	require.NoError(t, err)
	assert.Equal(t, "sensor.steckdose_temperature_2", clash.EntityID)

	id, ok := r.EntityID(model.Sensor, "other_temperature")
	assert.True(t, ok)
	assert.Equal(t, clash.EntityID, id)
	assert.Len(t, r.EntitiesForEntry(entryID), 2)
	assert.Empty(t, r.EntitiesForEntry("other"))
}

func TestRemoveDevice_RemovesEntities(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	var removed []string
	r.OnEntityRemoved(func(e model.EntityEntry) { removed = append(removed, e.EntityID) })

	device, err := r.GetOrCreateDevice(ctx, entryID, model.DeviceInfo{
		Identifiers: []model.Identifier{{Domain: model.Domain, ID: "11630 0133008-1"}},
		Name:        "Window",
	})
	require.NoError(t, err)
	entity, err := r.GetOrCreateEntity(ctx, model.EntityEntry{
		Platform:      model.BinarySensor,
		UniqueID:      "11630 0133008-1_alarm",
		ConfigEntryID: entryID,
		DeviceID:      device.ID,
		OriginalName:  "Window Alarm",
	})
	require.NoError(t, err)

	require.NoError(t, r.RemoveDevice(ctx, device.ID))
	assert.Equal(t, []string{entity.EntityID}, removed)

	_, ok := r.Device(device.ID)
	assert.False(t, ok)
	_, ok = r.EntityID(model.BinarySensor, entity.UniqueID)
	assert.False(t, ok)

	entities, err := store.LoadEntities(ctx)
	require.NoError(t, err)
	assert.Empty(t, entities)

	err = r.RemoveDevice(ctx, device.ID)
	assert.True(t, errors.Is(err, ErrDeviceNotFound))
}

func TestMigrateEntries(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, e := range []model.EntityEntry{
		{Platform: model.Sensor, UniqueID: "ain1", UnitOfMeasurement: string(model.NumericUnitDegreeC), OriginalName: "a"},
		{Platform: model.BinarySensor, UniqueID: "ain2", OriginalName: "b"},
		{Platform: model.Sensor, UniqueID: "ain3_power", UnitOfMeasurement: string(model.NumericUnitWatt), OriginalName: "c"},
	} {
		e.ConfigEntryID = entryID
		_, err := r.GetOrCreateEntity(ctx, e)
		require.NoError(t, err)
	}

	err := r.MigrateEntries(ctx, entryID, func(e model.EntityEntry) (string, bool) {
		if e.UniqueID == "ain3_power" {
			return "", false
		}
		return e.UniqueID + "_new", true
	})
	require.NoError(t, err)

	got := map[string]string{}
	for _, e := range r.EntitiesForEntry(entryID) {
		got[e.EntityID] = e.UniqueID
	}
	want := map[string]string{
		"sensor.a":        "ain1_new",
		"binary_sensor.b": "ain2_new",
		"sensor.c":        "ain3_power",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unique ids mismatch (-want +got):\n%s", diff)
	}
}

func TestMigrateEntries_Conflict(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, uid := range []string{"ain1", "ain1_temperature"} {
		_, err := r.GetOrCreateEntity(ctx, model.EntityEntry{Platform: model.Sensor, UniqueID: uid, ConfigEntryID: entryID, OriginalName: uid})
		require.NoError(t, err)
	}

	err := r.MigrateEntries(ctx, entryID, func(e model.EntityEntry) (string, bool) {
		if e.UniqueID == "ain1" {
			return "ain1_temperature", true
		}
		return "", false
	})
	assert.True(t, errors.Is(err, ErrUniqueIDConflict), "got %v", err)

	_, ok := r.EntityID(model.Sensor, "ain1")
	assert.True(t, ok)
}

func TestCreateIssue(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	issue := model.Issue{
		Domain:         model.Domain,
		IssueID:        "deleted_device_abc",
		Severity:       model.IssueSeverityError,
		IsPersistent:   true,
		TranslationKey: "deleted_device",
	}
	require.NoError(t, r.CreateIssue(ctx, issue))
	first := r.Issues()[0].CreatedAt

	issue.TranslationPlaceholders = map[string]string{"device_id": "abc"}
	require.NoError(t, r.CreateIssue(ctx, issue))

	issues := r.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, first, issues[0].CreatedAt)
	assert.Equal(t, "abc", issues[0].TranslationPlaceholders["device_id"])

	persisted, err := store.LoadIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestNew_LoadsFromStore(t *testing.T) {
	_, store := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, store.SaveDevice(ctx, model.DeviceEntry{ID: "d1", Name: "Plug", ConfigEntries: []string{entryID}}))
	require.NoError(t, store.SaveEntity(ctx, model.EntityEntry{EntityID: "switch.plug", Platform: model.Switch, UniqueID: "ain", ConfigEntryID: entryID, DeviceID: "d1"}))

	r, err := New(ctx, store)
	require.NoError(t, err)

	assert.Len(t, r.DevicesForEntry(entryID), 1)
	id, ok := r.EntityID(model.Switch, "ain")
	assert.True(t, ok)
	assert.Equal(t, "switch.plug", id)
}
