// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/ventigrow/internal/platform/database/schema"
	"github.com/taibuivan/ventigrow/internal/platform/dberr"
)

// # Account Repository

// PostgresAccountRepository implements [AccountRepository] on users.identity.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

var (
	identityTable = schema.UserIdentity

	accountColumns = strings.Join([]string{
		identityTable.ID, identityTable.Email, identityTable.PasswordHash,
		identityTable.EmailVerified, identityTable.Metadata, identityTable.CreatedAt,
	}, ", ")
)

func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	var metadata []byte

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.EmailVerified,
		&metadata,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &account.Metadata); err != nil {
			return nil, fmt.Errorf("postgres_account_metadata_decode_failed: %w", err)
		}
	}
	return account, nil
}

/*
FindByID retrieves an account by its identity ID.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Account: Hydrated entity
  - error: ErrAccountNotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, accountColumns, identityTable.Table, identityTable.ID)

	account, err := scanAccount(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("postgres_account_find_by_id_failed: %w", err)
	}
	return account, nil
}

/*
FindByEmail retrieves an account by its normalised email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Account: Hydrated entity
  - error: ErrAccountNotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, accountColumns, identityTable.Table, identityTable.Email)

	account, err := scanAccount(repository.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("postgres_account_find_by_email_failed: %w", err)
	}
	return account, nil
}

/*
Create inserts a new account row.

Parameters:
  - context: context.Context
  - account: *Account (CreatedAt is set when zero)

Returns:
  - error: ErrEmailTaken on a duplicate email, or database errors
*/
func (repository *PostgresAccountRepository) Create(context context.Context, account *Account) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		identityTable.Table, accountColumns, identityTable.UpdatedAt,
	)

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	metadata, err := json.Marshal(account.Metadata)
	if err != nil {
		return fmt.Errorf("postgres_account_metadata_encode_failed: %w", err)
	}

	_, err = repository.pool.Exec(context, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.EmailVerified,
		metadata,
		account.CreatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("postgres_account_create_failed: %w", err)
	}
	return nil
}

// UpdatePassword replaces only the password hash.
func (repository *PostgresAccountRepository) UpdatePassword(context context.Context, id, passwordHash string) error {
	return repository.setColumn(context, "update_password", identityTable.PasswordHash, id, passwordHash)
}

// UpdateMetadata replaces the metadata bag.
func (repository *PostgresAccountRepository) UpdateMetadata(context context.Context, id string, metadata map[string]string) error {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("postgres_account_metadata_encode_failed: %w", err)
	}
	return repository.setColumn(context, "update_metadata", identityTable.Metadata, id, encoded)
}

// MarkVerified flags the email as confirmed.
func (repository *PostgresAccountRepository) MarkVerified(context context.Context, id string) error {
	return repository.setColumn(context, "mark_verified", identityTable.EmailVerified, id, true)
}

// setColumn updates one column of exactly one row.
func (repository *PostgresAccountRepository) setColumn(context context.Context, op, column, id string, value any) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = NOW() WHERE %s = $1`,
		identityTable.Table, column, identityTable.UpdatedAt, identityTable.ID)

	tag, err := repository.pool.Exec(context, query, id, value)
	if err != nil {
		return fmt.Errorf("postgres_account_%s_failed: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
