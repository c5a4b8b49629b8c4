// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/platform/sec"
	"github.com/taibuivan/ventigrow/internal/platform/validate"
	"github.com/taibuivan/ventigrow/pkg/textnorm"
	"github.com/taibuivan/ventigrow/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer signs access tokens. [*sec.TokenService] satisfies it.
type TokenIssuer interface {
	GenerateAccessToken(userID, email, sessionID string, timeToLive time.Duration) (string, time.Time, error)
}

// Options tunes provider policy.
type Options struct {
	// ClientID keys the persisted session and the event channel.
	ClientID string

	// RequireEmailConfirmation blocks sign-in until the email is verified.
	RequireEmailConfirmation bool

	// ConfirmURL is the link target mailed after signup.
	ConfirmURL string

	// ResetURL is the recovery link target used when the caller names none.
	ResetURL string

	// RedirectOrigins lists the origins a caller-supplied recovery target may
	// point at. The origins of ConfirmURL and ResetURL are always accepted.
	RedirectOrigins []string

	// AccessTokenTTL overrides [AccessTokenTTL] when non-zero.
	AccessTokenTTL time.Duration
}

// Stores groups the persistence collaborators of a [Client].
type Stores struct {
	Accounts      AccountRepository
	Refresh       RefreshRepository
	ResetTokens   OneTimeTokenRepository
	VerifyTokens  OneTimeTokenRepository
	ClientSession ClientSessionRepository
}

// Client is the identity provider as seen by one console client.
//
// Session-changing operations (sign-in, refresh, sign-out, user update) are
// serialized so the persisted session and the published event order agree.
type Client struct {
	options Options
	stores  Stores
	bus     *EventBus
	tokens  TokenIssuer
	mailer  Mailer
	logger  *slog.Logger
	now     func() time.Time

	sessionMutex sync.Mutex
	wake         chan struct{}

	limiterMutex sync.Mutex
	limiters     map[string]*signInLimiter
}

// signInLimiter is the throttle bucket of one email.
type signInLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClient constructs a new identity [Client] with necessary dependencies.
func NewClient(options Options, stores Stores, bus *EventBus, tokens TokenIssuer, mailer Mailer, logger *slog.Logger) *Client {
	if options.AccessTokenTTL <= 0 {
		options.AccessTokenTTL = AccessTokenTTL
	}
	return &Client{
		options:  options,
		stores:   stores,
		bus:      bus,
		tokens:   tokens,
		mailer:   mailer,
		logger:   logger,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		limiters: make(map[string]*signInLimiter),
	}
}

// # Session Retrieval

/*
GetSession returns the persisted session of this client.

An expired access token is refreshed first. A session whose refresh token is
no longer valid is cleared and reported as absent.

Returns:
  - *Session: The live session, or nil when signed out
  - error: Store faults only
*/
func (client *Client) GetSession(context context.Context) (*Session, error) {
	session, err := client.stores.ClientSession.Load(context, client.options.ClientID)
	if err != nil || session == nil {
		return nil, err
	}

	if client.now().Before(session.ExpiresAt) {
		return session, nil
	}

	client.sessionMutex.Lock()
	defer client.sessionMutex.Unlock()

	refreshed, err := client.refreshLocked(context, session)
	if errors.Is(err, ErrInvalidToken) {
		client.dropLocked(context)
		return nil, nil
	}
	return refreshed, err
}

// OnSessionChange registers callback for every session change of this client.
func (client *Client) OnSessionChange(context context.Context, callback func(Change)) (func(), error) {
	return client.bus.Subscribe(context, callback)
}

// # Authentication Flow

/*
SignInWithPassword verifies credentials and establishes a session.

Success is announced through a signed_in event; the caller is not handed the session.

Returns:
  - error: ErrInvalidCredentials, ErrEmailNotConfirmed, ErrRateLimited, or store faults
*/
func (client *Client) SignInWithPassword(context context.Context, email, password string) error {
	email = textnorm.Email(email)

	if !client.allowSignIn(email) {
		return ErrRateLimited
	}

	account, err := client.stores.Accounts.FindByEmail(context, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Same answer, and the same bcrypt cost, as a wrong password.
			sec.CheckPasswordHash(password, "")
			return ErrInvalidCredentials
		}
		return fmt.Errorf("identity_sign_in_lookup_failed: %w", err)
	}

	if !sec.CheckPasswordHash(password, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	if client.options.RequireEmailConfirmation && !account.EmailVerified {
		return ErrEmailNotConfirmed
	}

	_, err = client.establish(context, account.Identity)
	return err
}

/*
SignUp registers a new identity.

When email confirmation is required, a confirmation link is mailed and no
session is created. Otherwise the identity is verified immediately and a
signed_in event follows.

Parameters:
  - context: context.Context
  - email: string
  - password: string (at least 6 characters)
  - metadata: map[string]string (stored on the identity, e.g. "name")

Returns:
  - *Identity: The created identity
  - error: ErrInvalidEmail, ErrWeakPassword, ErrEmailTaken, or store faults
*/
func (client *Client) SignUp(context context.Context, email, password string, metadata map[string]string) (*Identity, error) {
	email = textnorm.Email(email)

	if (&validate.Validator{}).Email(FieldEmail, email).HasErrors() {
		return nil, ErrInvalidEmail
	}
	if (&validate.Validator{}).Password(FieldPassword, password).HasErrors() {
		return nil, ErrWeakPassword
	}

	passwordHash, err := sec.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("identity_sign_up_hash_failed: %w", err)
	}

	account := &Account{
		Identity: Identity{
			ID:            uuid.New(),
			Email:         email,
			EmailVerified: !client.options.RequireEmailConfirmation,
			Metadata:      cleanMetadata(metadata),
			CreatedAt:     client.now().UTC(),
		},
		PasswordHash: passwordHash,
	}

	if err := client.stores.Accounts.Create(context, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("identity_sign_up_create_failed: %w", err)
	}

	if client.options.RequireEmailConfirmation {
		if err := client.sendOneTimeLink(context, client.stores.VerifyTokens, account.Identity,
			VerificationTokenTTL, client.options.ConfirmURL, OTPEmail, "Confirm your VentiGrow account"); err != nil {
			// The account is kept; a new link can be requested.
			client.logger.WarnContext(context, "identity_confirmation_mail_failed",
				slog.String("user_id", account.ID), slog.Any("error", err))
		}
		return &account.Identity, nil
	}

	if _, err := client.establish(context, account.Identity); err != nil {
		return nil, err
	}
	return &account.Identity, nil
}

/*
SignOut revokes the current session and announces signed_out.

It is idempotent: without a session it still announces signed_out so that
subscribers converge.
*/
func (client *Client) SignOut(context context.Context) error {
	client.sessionMutex.Lock()
	defer client.sessionMutex.Unlock()

	session, err := client.stores.ClientSession.Load(context, client.options.ClientID)
	if err != nil {
		return fmt.Errorf("identity_sign_out_load_failed: %w", err)
	}

	if session != nil {
		if err := client.stores.Refresh.Revoke(context, sec.HashToken(session.RefreshToken)); err != nil {
			return fmt.Errorf("identity_sign_out_revoke_failed: %w", err)
		}
	}

	if err := client.stores.ClientSession.Clear(context, client.options.ClientID); err != nil {
		return fmt.Errorf("identity_sign_out_clear_failed: %w", err)
	}

	return client.bus.Publish(context, Change{Event: EventSignedOut})
}

// # Account Maintenance

/*
UpdateUser changes the password and/or merges metadata of the signed-in identity.

Returns:
  - *Identity: The updated identity
  - error: ErrNoSession, ErrWeakPassword, or store faults
*/
func (client *Client) UpdateUser(context context.Context, attributes UserAttributes) (*Identity, error) {
	if attributes.Password != nil && (&validate.Validator{}).Password(FieldPassword, *attributes.Password).HasErrors() {
		return nil, ErrWeakPassword
	}

	client.sessionMutex.Lock()
	defer client.sessionMutex.Unlock()

	session, err := client.stores.ClientSession.Load(context, client.options.ClientID)
	if err != nil {
		return nil, fmt.Errorf("identity_update_user_load_failed: %w", err)
	}
	if session == nil {
		return nil, ErrNoSession
	}
	userID := session.User.ID

	if attributes.Password != nil {
		passwordHash, err := sec.HashPassword(*attributes.Password)
		if err != nil {
			return nil, fmt.Errorf("identity_update_user_hash_failed: %w", err)
		}
		if err := client.stores.Accounts.UpdatePassword(context, userID, passwordHash); err != nil {
			return nil, fmt.Errorf("identity_update_user_password_failed: %w", err)
		}
	}

	if len(attributes.Data) > 0 {
		merged := maps.Clone(session.User.Metadata)
		if merged == nil {
			merged = map[string]string{}
		}
		maps.Copy(merged, cleanMetadata(attributes.Data))
		if err := client.stores.Accounts.UpdateMetadata(context, userID, merged); err != nil {
			return nil, fmt.Errorf("identity_update_user_metadata_failed: %w", err)
		}
	}

	account, err := client.stores.Accounts.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("identity_update_user_reload_failed: %w", err)
	}

	session.User = account.Identity
	if err := client.stores.ClientSession.Save(context, client.options.ClientID, session, RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("identity_update_user_persist_failed: %w", err)
	}

	if err := client.bus.Publish(context, Change{Event: EventUserUpdated, Session: session}); err != nil {
		return nil, err
	}
	return &account.Identity, nil
}

/*
ResetPasswordForEmail mails a recovery link to email.

The result never reveals whether the email is registered. An empty target
falls back to [Options.ResetURL]; any other target must be an absolute URL
on an accepted origin.

Parameters:
  - redirectTarget: string (the page the link opens; token and type are appended)

Returns:
  - error: A validation error for a rejected target, or store faults
*/
func (client *Client) ResetPasswordForEmail(context context.Context, email, redirectTarget string) error {
	target, err := client.resolveRedirect(redirectTarget)
	if err != nil {
		return err
	}

	account, err := client.stores.Accounts.FindByEmail(context, textnorm.Email(email))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("identity_reset_lookup_failed: %w", err)
	}

	return client.sendOneTimeLink(context, client.stores.ResetTokens, account.Identity,
		ResetTokenTTL, target, OTPRecovery, "Reset your VentiGrow password")
}

/*
VerifyOTP redeems a one-time token and signs the identity in.

  - OTPEmail confirms the email address.
  - OTPRecovery signs the identity in so the password can be changed.

Returns:
  - *Identity: The signed-in identity
  - error: ErrInvalidToken for unknown, used, or expired tokens
*/
func (client *Client) VerifyOTP(context context.Context, token string, otpType OTPType) (*Identity, error) {
	var repository OneTimeTokenRepository
	switch otpType {
	case OTPEmail:
		repository = client.stores.VerifyTokens
	case OTPRecovery:
		repository = client.stores.ResetTokens
	default:
		return nil, apperr.ValidationError("Unsupported verification type",
			apperr.FieldError{Field: FieldType, Message: "Must be one of: email, recovery"})
	}

	userID, err := repository.Consume(context, sec.HashToken(token))
	if err != nil {
		return nil, err
	}

	if otpType == OTPEmail {
		if err := client.stores.Accounts.MarkVerified(context, userID); err != nil {
			return nil, fmt.Errorf("identity_verify_mark_failed: %w", err)
		}
	}

	account, err := client.stores.Accounts.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("identity_verify_lookup_failed: %w", err)
	}

	if _, err := client.establish(context, account.Identity); err != nil {
		return nil, err
	}
	return &account.Identity, nil
}

// # Session Issuance

// establish replaces any current session with a fresh one for identity and announces signed_in.
func (client *Client) establish(context context.Context, identity Identity) (*Session, error) {
	client.sessionMutex.Lock()
	defer client.sessionMutex.Unlock()

	if previous, err := client.stores.ClientSession.Load(context, client.options.ClientID); err == nil && previous != nil {
		if err := client.stores.Refresh.Revoke(context, sec.HashToken(previous.RefreshToken)); err != nil {
			client.logger.WarnContext(context, "identity_previous_session_revoke_failed", slog.Any("error", err))
		}
	}

	session, err := client.issueLocked(context, uuid.New(), identity)
	if err != nil {
		return nil, err
	}

	if err := client.bus.Publish(context, Change{Event: EventSignedIn, Session: session}); err != nil {
		return nil, err
	}

	client.poke()
	return session, nil
}

// issueLocked mints tokens, stores the refresh record, and persists the session.
func (client *Client) issueLocked(context context.Context, sessionID string, identity Identity) (*Session, error) {
	accessToken, expiresAt, err := client.tokens.GenerateAccessToken(identity.ID, identity.Email, sessionID, client.options.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("identity_access_token_failed: %w", err)
	}

	refreshToken, err := sec.GenerateSecureToken(SecureTokenLength)
	if err != nil {
		return nil, fmt.Errorf("identity_refresh_token_failed: %w", err)
	}

	record := RefreshRecord{
		SessionID: sessionID,
		UserID:    identity.ID,
		ExpiresAt: client.now().Add(RefreshTokenTTL),
	}
	if err := client.stores.Refresh.Save(context, sec.HashToken(refreshToken), record, RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("identity_refresh_save_failed: %w", err)
	}

	session := &Session{
		ID:           sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresAt:    expiresAt,
		User:         identity,
	}
	if err := client.stores.ClientSession.Save(context, client.options.ClientID, session, RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("identity_session_persist_failed: %w", err)
	}

	return session, nil
}

// # Helpers

// sendOneTimeLink stores a hashed token and mails target?token=…&type=….
func (client *Client) sendOneTimeLink(context context.Context, repository OneTimeTokenRepository, identity Identity,
	ttl time.Duration, target string, otpType OTPType, subject string) error {

	token, err := sec.GenerateSecureToken(SecureTokenLength)
	if err != nil {
		return fmt.Errorf("identity_one_time_token_failed: %w", err)
	}

	if err := repository.Set(context, sec.HashToken(token), identity.ID, ttl); err != nil {
		return fmt.Errorf("identity_one_time_token_save_failed: %w", err)
	}

	link, err := buildLink(target, token, otpType)
	if err != nil {
		return err
	}

	return client.mailer.Send(context, Message{To: identity.Email, Subject: subject, Link: link})
}

// buildLink appends the token and type query parameters to target.
func buildLink(target, token string, otpType OTPType) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", invalidRedirect("Must be a valid URL")
	}

	query := parsed.Query()
	query.Set(FieldToken, token)
	query.Set(FieldType, string(otpType))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// resolveRedirect picks the recovery link target and checks its origin.
func (client *Client) resolveRedirect(target string) (string, error) {
	if target == "" {
		target = client.options.ResetURL
	}

	parsed, err := url.Parse(target)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", invalidRedirect("Must be an absolute http(s) URL")
	}

	origin := originOf(parsed)
	for _, allowed := range client.redirectOrigins() {
		if origin == allowed {
			return target, nil
		}
	}
	client.logger.Warn("identity_redirect_rejected", slog.String("origin", origin))
	return "", invalidRedirect("Must point at the console")
}

func (client *Client) redirectOrigins() []string {
	origins := make([]string, 0, len(client.options.RedirectOrigins)+2)
	for _, candidate := range append([]string{client.options.ConfirmURL, client.options.ResetURL}, client.options.RedirectOrigins...) {
		if parsed, err := url.Parse(strings.TrimSpace(candidate)); err == nil && parsed.Host != "" {
			origins = append(origins, originOf(parsed))
		}
	}
	return origins
}

// originOf returns scheme://host[:port] in lower case.
func originOf(target *url.URL) string {
	return strings.ToLower(target.Scheme + "://" + target.Host)
}

func invalidRedirect(message string) error {
	return apperr.ValidationError("Invalid redirect target",
		apperr.FieldError{Field: FieldRedirectTo, Message: message})
}

// allowSignIn applies the per-email sign-in throttle.
func (client *Client) allowSignIn(email string) bool {
	client.limiterMutex.Lock()
	defer client.limiterMutex.Unlock()

	entry, found := client.limiters[email]
	if !found {
		entry = &signInLimiter{limiter: rate.NewLimiter(rate.Every(SignInThrottleWindow), SignInThrottleBurst)}
		client.limiters[email] = entry
	}
	entry.lastSeen = client.now()
	return entry.limiter.Allow()
}

// sweepLimiters evicts buckets idle long enough to have refilled completely.
func (client *Client) sweepLimiters() {
	client.limiterMutex.Lock()
	defer client.limiterMutex.Unlock()

	cutoff := client.now().Add(-signInLimiterIdleTTL)
	for email, entry := range client.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(client.limiters, email)
		}
	}
}

// cleanMetadata normalises metadata values and drops empty ones.
func cleanMetadata(metadata map[string]string) map[string]string {
	cleaned := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if value = textnorm.Text(value); value != "" {
			cleaned[key] = value
		}
	}
	return cleaned
}

// poke wakes the auto-refresh loop without blocking.
func (client *Client) poke() {
	select {
	case client.wake <- struct{}{}:
	default:
	}
}
