package database

import (
	"context"
	"time"
)

const retention = 8 * 24 * time.Hour

// Cleanup removes history samples older than eight days.
func (db *Database) Cleanup(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, "DELETE FROM property WHERE time_stamp < $1", time.Now().Add(-retention)); err != nil {
		return err
	}
	return nil
}
