// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"time"
)

// # Account Data Access

// AccountRepository defines the data access contract for identity accounts.
type AccountRepository interface {

	/*
		FindByID returns the account with the given ID.

		Returns:
		  - *Account: Hydrated entity
		  - error: ErrAccountNotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*Account, error)

	/*
		FindByEmail returns the account registered under a normalised email.

		Returns:
		  - *Account: Hydrated entity
		  - error: ErrAccountNotFound or storage failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		Create persists a brand-new account.

		Returns:
		  - error: ErrEmailTaken when the email is registered, or storage failures
	*/
	Create(context context.Context, account *Account) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(context context.Context, id, passwordHash string) error

	// UpdateMetadata replaces the metadata bag.
	UpdateMetadata(context context.Context, id string, metadata map[string]string) error

	// MarkVerified flags the email as confirmed.
	MarkVerified(context context.Context, id string) error
}

// # Volatile Data Access

// RefreshRecord is the server-side state behind one refresh token.
type RefreshRecord struct {
	SessionID string    `json:"sid"`
	UserID    string    `json:"uid"`
	ExpiresAt time.Time `json:"exp"`
}

// RefreshRepository stores refresh sessions keyed by the token hash.
type RefreshRepository interface {
	Save(context context.Context, tokenHash string, record RefreshRecord, ttl time.Duration) error

	// Find returns ErrInvalidToken when the hash is unknown or expired.
	Find(context context.Context, tokenHash string) (*RefreshRecord, error)

	Revoke(context context.Context, tokenHash string) error
}

// OneTimeTokenRepository stores single-use tokens (reset, verification) keyed by hash.
type OneTimeTokenRepository interface {
	Set(context context.Context, tokenHash, userID string, ttl time.Duration) error

	// Consume atomically reads and deletes the token. It returns ErrInvalidToken when absent.
	Consume(context context.Context, tokenHash string) (string, error)
}

// ClientSessionRepository persists the signed-in session of one client.
type ClientSessionRepository interface {
	// Load returns nil, nil when the client has no session.
	Load(context context.Context, clientID string) (*Session, error)

	Save(context context.Context, clientID string, session *Session, ttl time.Duration) error

	Clear(context context.Context, clientID string) error
}
