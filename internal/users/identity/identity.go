// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity is the console's identity provider.

It authenticates operator credentials, issues and refreshes sessions, runs the
password-reset and email-verification flows, and pushes session-change events
to subscribers.

# Architecture

  - Accounts: PostgreSQL (users.identity), see [PostgresAccountRepository].
  - Refresh sessions and one-time tokens: Redis, stored hashed.
  - Client session persistence: Redis, keyed by client ID, so a restarted
    console picks up where it left off.
  - Events: Redis pub/sub on one channel per client ID, see [EventBus].

Nothing outside this package reads those stores directly; consumers go
through [Client].
*/
package identity

import (
	"net/http"
	"time"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
)

// # Domain Entities

// Identity is the provider's authenticated principal.
type Identity struct {
	ID            string            `json:"id"`
	Email         string            `json:"email"`
	EmailVerified bool              `json:"email_verified"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Name returns the display name recorded in the identity metadata, if any.
func (identity Identity) Name() string {
	return identity.Metadata[MetadataName]
}

// Account is an Identity plus its credential. It never leaves this package's stores.
type Account struct {
	Identity
	PasswordHash string
}

// Session is an issued access/refresh token pair.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Event names a session change pushed to subscribers.
type Event string

const (
	EventSignedIn       Event = "signed_in"
	EventSignedOut      Event = "signed_out"
	EventTokenRefreshed Event = "token_refreshed"
	EventUserUpdated    Event = "user_updated"
)

// Change is one pushed session-change notification. Session is nil for signed_out.
type Change struct {
	Event   Event    `json:"event"`
	Session *Session `json:"session,omitempty"`
}

// UserAttributes is the input of [Client.UpdateUser]. Data is merged into the metadata.
type UserAttributes struct {
	Password *string
	Data     map[string]string
}

// OTPType selects which one-time token flow [Client.VerifyOTP] completes.
type OTPType string

const (
	OTPEmail    OTPType = "email"
	OTPRecovery OTPType = "recovery"
)

// # Errors

var (
	ErrInvalidCredentials = apperr.Unauthorized("Invalid login credentials")
	ErrEmailTaken         = apperr.Conflict("User already registered")
	ErrWeakPassword       = apperr.ValidationError("Password should be at least 6 characters",
		apperr.FieldError{Field: FieldPassword, Message: "Password should be at least 6 characters"})
	ErrInvalidEmail = apperr.ValidationError("Unable to validate email address: invalid format",
		apperr.FieldError{Field: FieldEmail, Message: "Must be a valid email address"})
	ErrInvalidToken      = apperr.Unauthorized("Token has expired or is invalid")
	ErrEmailNotConfirmed = apperr.New("EMAIL_NOT_CONFIRMED", "Email not confirmed", http.StatusBadRequest)
	ErrNoSession         = apperr.Unauthorized("Auth session missing")
	ErrRateLimited       = apperr.RateLimited(int(SignInThrottleWindow.Seconds()))
	ErrAccountNotFound   = apperr.NotFound("Identity")
)

// # Field Identifiers

const (
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldToken      = "token"
	FieldType       = "type"
	FieldRedirectTo = "redirect_to"

	// MetadataName is the metadata key holding the display name given at signup.
	MetadataName = "name"
)
