package database

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

// Write stores one history sample per available entity state. Unknown
// states and stateless buttons are skipped.
func (db *Database) Write(ctx context.Context, states []model.EntityState) error {
	batch := &pgx.Batch{}
	for _, s := range states {
		if !s.Available || s.State == model.StateUnknown || s.Platform == model.Button {
			continue
		}
		batch.Queue(`
			INSERT INTO property (time_stamp, unit_of_measurement, value, entity_id, unique_id)
			VALUES ($1, $2, $3, $4, $5)
		`, s.TimeStamp, s.Unit, s.State, s.EntityID, s.UniqueID)
	}
	if batch.Len() == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
