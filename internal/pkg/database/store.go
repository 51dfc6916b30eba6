package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

// ################################
// devices

func (db *Database) LoadDevices(ctx context.Context) ([]model.DeviceEntry, error) {
	const query = `
	SELECT id, config_entries, identifiers, connections, name, name_by_user, manufacturer, model, sw_version, configuration_url, updated_at
	FROM device
	ORDER BY id;
	`
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DeviceEntry, error) {
		var d model.DeviceEntry
		err := row.Scan(&d.ID, &d.ConfigEntries, &d.Identifiers, &d.Connections, &d.Name, &d.NameByUser,
			&d.Manufacturer, &d.Model, &d.SwVersion, &d.ConfigurationURL, &d.UpdatedAt)
		return d, err
	})
}

func (db *Database) SaveDevice(ctx context.Context, d model.DeviceEntry) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO device (id, config_entries, identifiers, connections, name, name_by_user, manufacturer, model, sw_version, configuration_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			config_entries = EXCLUDED.config_entries,
			identifiers = EXCLUDED.identifiers,
			connections = EXCLUDED.connections,
			name = EXCLUDED.name,
			name_by_user = EXCLUDED.name_by_user,
			manufacturer = EXCLUDED.manufacturer,
			model = EXCLUDED.model,
			sw_version = EXCLUDED.sw_version,
			configuration_url = EXCLUDED.configuration_url,
			updated_at = EXCLUDED.updated_at;`,
		d.ID, nonNil(d.ConfigEntries), nonNil(d.Identifiers), nonNil(d.Connections), d.Name, d.NameByUser,
		d.Manufacturer, d.Model, d.SwVersion, d.ConfigurationURL, d.UpdatedAt)
	return err
}

func (db *Database) DeleteDevice(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM device WHERE id = $1`, id)
	return err
}

// ################################
// entities

func (db *Database) LoadEntities(ctx context.Context) ([]model.EntityEntry, error) {
	const query = `
	SELECT entity_id, unique_id, platform, config_entry_id, device_id, original_name, unit_of_measurement, updated_at
	FROM entity
	ORDER BY entity_id;
	`
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EntityEntry, error) {
		var e model.EntityEntry
		var platform string
		err := row.Scan(&e.EntityID, &e.UniqueID, &platform, &e.ConfigEntryID, &e.DeviceID, &e.OriginalName, &e.UnitOfMeasurement, &e.UpdatedAt)
		e.Platform = model.Platform(platform)
		return e, err
	})
}

func (db *Database) SaveEntity(ctx context.Context, e model.EntityEntry) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO entity (entity_id, unique_id, platform, config_entry_id, device_id, original_name, unit_of_measurement, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (entity_id) DO UPDATE SET
			unique_id = EXCLUDED.unique_id,
			platform = EXCLUDED.platform,
			config_entry_id = EXCLUDED.config_entry_id,
			device_id = EXCLUDED.device_id,
			original_name = EXCLUDED.original_name,
			unit_of_measurement = EXCLUDED.unit_of_measurement,
			updated_at = EXCLUDED.updated_at;`,
		e.EntityID, e.UniqueID, e.Platform.String(), e.ConfigEntryID, e.DeviceID, e.OriginalName, e.UnitOfMeasurement, e.UpdatedAt)
	return err
}

func (db *Database) DeleteEntity(ctx context.Context, entityID string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM entity WHERE entity_id = $1`, entityID)
	return err
}

// ################################
// issues

func (db *Database) LoadIssues(ctx context.Context) ([]model.Issue, error) {
	const query = `
	SELECT domain, issue_id, severity, is_fixable, is_persistent, translation_key, translation_placeholders, created_at
	FROM issue
	ORDER BY issue_id;
	`
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Issue, error) {
		var i model.Issue
		var severity string
		err := row.Scan(&i.Domain, &i.IssueID, &severity, &i.IsFixable, &i.IsPersistent, &i.TranslationKey, &i.TranslationPlaceholders, &i.CreatedAt)
		i.Severity = model.IssueSeverity(severity)
		return i, err
	})
}

func (db *Database) SaveIssue(ctx context.Context, i model.Issue) error {
	placeholders := i.TranslationPlaceholders
	if placeholders == nil {
		placeholders = map[string]string{}
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO issue (domain, issue_id, severity, is_fixable, is_persistent, translation_key, translation_placeholders, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (domain, issue_id) DO UPDATE SET
			severity = EXCLUDED.severity,
			is_fixable = EXCLUDED.is_fixable,
			is_persistent = EXCLUDED.is_persistent,
			translation_key = EXCLUDED.translation_key,
			translation_placeholders = EXCLUDED.translation_placeholders;`,
		i.Domain, i.IssueID, string(i.Severity), i.IsFixable, i.IsPersistent, i.TranslationKey, placeholders, i.CreatedAt)
	return err
}

// nonNil keeps empty lists as [] instead of JSON null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
