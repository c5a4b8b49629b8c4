// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package greenhouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/ventigrow/internal/platform/database/schema"
	"github.com/taibuivan/ventigrow/pkg/uuid"
)

var (
	readingTable   = schema.GreenhouseReading
	thresholdTable = schema.GreenhouseThreshold
	settingTable   = schema.GreenhouseSetting
)

// PostgresRepository implements [Repository] on the greenhouse schema.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-backed greenhouse repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// # Readings

// InsertReading persists a reading, assigning its ID.
func (repository *PostgresRepository) InsertReading(context context.Context, reading *Reading) error {
	reading.ID = uuid.New()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5)`,
		readingTable.Table, strings.Join(readingTable.Columns(), ", "))

	_, err := repository.pool.Exec(context, query,
		reading.ID,
		reading.Temperature,
		reading.Humidity,
		reading.CO2,
		reading.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres_reading_insert_failed: %w", err)
	}
	return nil
}

/*
LatestReading returns the most recent reading.

Returns:
  - *Reading: The newest row
  - error: ErrNoReadings if nothing was recorded yet
*/
func (repository *PostgresRepository) LatestReading(context context.Context) (*Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s DESC LIMIT 1`,
		strings.Join(readingTable.Columns(), ", "), readingTable.Table, readingTable.RecordedAt)

	reading := &Reading{}
	err := repository.pool.QueryRow(context, query).Scan(
		&reading.ID,
		&reading.Temperature,
		&reading.Humidity,
		&reading.CO2,
		&reading.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoReadings
		}
		return nil, fmt.Errorf("postgres_reading_latest_failed: %w", err)
	}
	return reading, nil
}

// ReadingsSince returns readings recorded at or after since, oldest first.
func (repository *PostgresRepository) ReadingsSince(context context.Context, since time.Time) ([]Reading, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s >= $1 ORDER BY %s ASC`,
		strings.Join(readingTable.Columns(), ", "), readingTable.Table,
		readingTable.RecordedAt, readingTable.RecordedAt)

	rows, err := repository.pool.Query(context, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres_reading_history_failed: %w", err)
	}

	readings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Reading, error) {
		var reading Reading
		err := row.Scan(&reading.ID, &reading.Temperature, &reading.Humidity, &reading.CO2, &reading.Timestamp)
		return reading, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres_reading_history_scan_failed: %w", err)
	}
	return readings, nil
}

// # Thresholds

// ListThresholds returns the stored thresholds. Metrics without a row are absent.
func (repository *PostgresRepository) ListThresholds(context context.Context) ([]Thresholds, error) {
	query := fmt.Sprintf(`SELECT %s, %s, %s, %s FROM %s`,
		thresholdTable.Metric, thresholdTable.Min, thresholdTable.Max, thresholdTable.UpdatedAt, thresholdTable.Table)

	rows, err := repository.pool.Query(context, query)
	if err != nil {
		return nil, fmt.Errorf("postgres_threshold_list_failed: %w", err)
	}

	thresholds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Thresholds, error) {
		var item Thresholds
		err := row.Scan(&item.Metric, &item.Min, &item.Max, &item.UpdatedAt)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres_threshold_list_scan_failed: %w", err)
	}
	return thresholds, nil
}

// UpsertThreshold stores the band for one metric and sets UpdatedAt.
func (repository *PostgresRepository) UpsertThreshold(context context.Context, thresholds *Thresholds) error {
	thresholds.UpdatedAt = time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)
		ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s`,
		thresholdTable.Table,
		thresholdTable.Metric, thresholdTable.Min, thresholdTable.Max, thresholdTable.UpdatedAt,
		thresholdTable.Metric,
		thresholdTable.Min, thresholdTable.Min,
		thresholdTable.Max, thresholdTable.Max,
		thresholdTable.UpdatedAt, thresholdTable.UpdatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		thresholds.Metric, thresholds.Min, thresholds.Max, thresholds.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres_threshold_upsert_failed: %w", err)
	}
	return nil
}

// # Settings

// GetSetting returns a console setting and when it last changed.
func (repository *PostgresRepository) GetSetting(context context.Context, key string) (string, time.Time, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = $1`,
		settingTable.Value, settingTable.UpdatedAt, settingTable.Table, settingTable.Key)

	var (
		value     string
		updatedAt time.Time
	)
	err := repository.pool.QueryRow(context, query, key).Scan(&value, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, ErrSettingNotFound
		}
		return "", time.Time{}, fmt.Errorf("postgres_setting_get_failed: %w", err)
	}
	return value, updatedAt, nil
}

// PutSetting stores a console setting.
func (repository *PostgresRepository) PutSetting(context context.Context, key, value string) (time.Time, error) {
	updatedAt := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s) VALUES ($1, $2, $3)
		ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s, %s = EXCLUDED.%s`,
		settingTable.Table, settingTable.Key, settingTable.Value, settingTable.UpdatedAt,
		settingTable.Key,
		settingTable.Value, settingTable.Value,
		settingTable.UpdatedAt, settingTable.UpdatedAt,
	)

	if _, err := repository.pool.Exec(context, query, key, value, updatedAt); err != nil {
		return time.Time{}, fmt.Errorf("postgres_setting_put_failed: %w", err)
	}
	return updatedAt, nil
}
