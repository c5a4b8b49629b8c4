// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/ventigrow/internal/platform/database/schema"
	"github.com/taibuivan/ventigrow/pkg/pointer"
)

var profileTable = schema.UserProfile

// PostgresStore implements the profile record store on users.profile.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL-backed profile store.
func NewStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
GetByKey retrieves the profile for an identity ID.

Parameters:
  - context: context.Context
  - id: string (identity ID)

Returns:
  - *Profile: Hydrated entity
  - error: ErrNotFound or database errors
*/
func (store *PostgresStore) GetByKey(context context.Context, id string) (*Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		strings.Join(profileTable.Columns(), ", "), profileTable.Table, profileTable.ID)

	profile := &Profile{}
	err := store.pool.QueryRow(context, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.Gender,
		&profile.Mobile,
		&profile.AvatarURL,
		&profile.AvatarPath,
		&profile.Location,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres_profile_get_failed: %w", err)
	}

	return profile, nil
}

/*
Upsert writes the whole record, inserting or replacing by ID.

Writing the same record twice leaves the same row.

Parameters:
  - context: context.Context
  - profile: *Profile (text fields are cleaned; UpdatedAt is set)

Returns:
  - error: Database errors
*/
func (store *PostgresStore) Upsert(context context.Context, profile *Profile) error {
	profile.Name = CleanText(profile.Name)
	for _, field := range []**string{&profile.Gender, &profile.Mobile, &profile.Location} {
		if *field != nil {
			*field = pointer.To(CleanText(**field))
		}
	}
	profile.UpdatedAt = time.Now().UTC()

	columns := profileTable.Columns()
	assignments := make([]string, 0, len(columns)-1)
	for _, column := range columns[1:] {
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (%s) DO UPDATE SET %s`,
		profileTable.Table, strings.Join(columns, ", "),
		profileTable.ID, strings.Join(assignments, ", "),
	)

	_, err := store.pool.Exec(context, query,
		profile.ID,
		profile.Name,
		profile.Gender,
		profile.Mobile,
		profile.AvatarURL,
		profile.AvatarPath,
		profile.Location,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_profile_upsert_failed: %w", err)
	}
	return nil
}

/*
Update changes only the columns present in patch.

An empty string stores NULL for optional columns.

Returns:
  - error: ErrNotFound when no row exists, or database errors
*/
func (store *PostgresStore) Update(context context.Context, id string, patch Patch) error {
	patch = patch.Clean()

	var (
		assignments []string
		args        = []any{id}
	)
	set := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		set(profileTable.Name, *patch.Name)
	}
	optional := []struct {
		column string
		value  *string
	}{
		{profileTable.Gender, patch.Gender},
		{profileTable.Mobile, patch.Mobile},
		{profileTable.AvatarURL, patch.AvatarURL},
		{profileTable.AvatarPath, patch.AvatarPath},
		{profileTable.Location, patch.Location},
	}
	for _, field := range optional {
		if field.value != nil {
			set(field.column, pointer.NilIfEmpty(*field.value))
		}
	}
	set(profileTable.UpdatedAt, time.Now().UTC())

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $1`,
		profileTable.Table, strings.Join(assignments, ", "), profileTable.ID)

	tag, err := store.pool.Exec(context, query, args...)
	if err != nil {
		return fmt.Errorf("postgres_profile_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
