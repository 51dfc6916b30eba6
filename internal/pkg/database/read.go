package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anicoll/fritzhome-integration/internal/pkg/model"
)

// GetProperties returns the history of entityID between from and to, newest
// first. Without a range the last two days are returned.
func (db *Database) GetProperties(ctx context.Context, entityID string, from, to *time.Time) (model.Properties, error) {
	if from == nil || to == nil {
		now := time.Now()
		twoDaysAgo := now.AddDate(0, 0, -2)
		from, to = &twoDaysAgo, &now
	}
	const query = `
	SELECT id, time_stamp, unit_of_measurement, value, entity_id, unique_id
	FROM property
	WHERE entity_id = $1 AND time_stamp BETWEEN $2 AND $3
	ORDER BY time_stamp DESC;
	`

	rows, err := db.pool.Query(ctx, query, entityID, from, to)
	if err != nil {
		return nil, err
	}
	return scanProperties(rows)
}

// GetLatestProperties returns the newest sample of every entity.
func (db *Database) GetLatestProperties(ctx context.Context) (model.Properties, error) {
	const query = `
	SELECT DISTINCT ON (entity_id) id, time_stamp, unit_of_measurement, value, entity_id, unique_id
	FROM property
	ORDER BY entity_id, time_stamp DESC;
	`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanProperties(rows)
}

func scanProperties(rows pgx.Rows) (model.Properties, error) {
	defer rows.Close()

	var properties model.Properties
	for rows.Next() {
		var property model.Property
		if err := rows.Scan(&property.Id, &property.TimeStamp, &property.Unit, &property.Value, &property.EntityID, &property.UniqueID); err != nil {
			return nil, err
		}
		properties = append(properties, property)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return properties, nil
}
