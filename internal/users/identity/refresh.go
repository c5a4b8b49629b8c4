// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/platform/sec"
)

/*
Run keeps the persisted session fresh until ctx is cancelled.

Shortly before the access token expires the session is rotated and a
token_refreshed event is published. When rotation is refused (revoked refresh
token, deleted identity) the session is dropped and signed_out is published.
Store faults are retried. Idle sign-in throttle buckets are evicted on the
same loop.
*/
func (client *Client) Run(ctx context.Context) error {
	client.logger.Info("identity_auto_refresh_started", slog.String("client_id", client.options.ClientID))

	sweep := time.NewTicker(signInLimiterSweepInterval)
	defer sweep.Stop()

	timer := time.NewTimer(client.autoRefresh(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			client.logger.Info("identity_auto_refresh_stopped")
			return nil
		case <-sweep.C:
			client.sweepLimiters()
			continue
		case <-client.wake:
		case <-timer.C:
		}
		timer.Reset(client.autoRefresh(ctx))
	}
}

// autoRefresh refreshes the persisted session when it is due and returns the delay until the next check.
func (client *Client) autoRefresh(ctx context.Context) time.Duration {
	client.sessionMutex.Lock()
	defer client.sessionMutex.Unlock()

	session, err := client.stores.ClientSession.Load(ctx, client.options.ClientID)
	if err != nil {
		client.logger.WarnContext(ctx, "identity_auto_refresh_load_failed", slog.Any("error", err))
		return faultRetryInterval
	}
	if session == nil {
		return idleCheckInterval
	}

	if due := session.ExpiresAt.Sub(client.now()) - client.refreshMargin(); due > 0 {
		return due
	}

	refreshed, err := client.refreshLocked(ctx, session)
	switch {
	case errors.Is(err, ErrInvalidToken):
		client.logger.InfoContext(ctx, "identity_session_expired", slog.String("user_id", session.User.ID))
		client.dropLocked(ctx)
		return idleCheckInterval
	case err != nil:
		client.logger.WarnContext(ctx, "identity_auto_refresh_failed", slog.Any("error", err))
		return faultRetryInterval
	}

	return max(refreshed.ExpiresAt.Sub(client.now())-client.refreshMargin(), time.Second)
}

// refreshLocked rotates the refresh token of session and announces token_refreshed.
//
// Returns ErrInvalidToken when the session can no longer be refreshed.
func (client *Client) refreshLocked(context context.Context, session *Session) (*Session, error) {
	tokenHash := sec.HashToken(session.RefreshToken)

	record, err := client.stores.Refresh.Find(context, tokenHash)
	if err != nil {
		return nil, err
	}

	account, err := client.stores.Accounts.FindByID(context, record.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("identity_refresh_lookup_failed: %w", err)
	}

	if err := client.stores.Refresh.Revoke(context, tokenHash); err != nil {
		return nil, fmt.Errorf("identity_refresh_revoke_failed: %w", err)
	}

	refreshed, err := client.issueLocked(context, record.SessionID, account.Identity)
	if err != nil {
		return nil, err
	}

	if err := client.bus.Publish(context, Change{Event: EventTokenRefreshed, Session: refreshed}); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// dropLocked clears a dead session and announces signed_out.
func (client *Client) dropLocked(context context.Context) {
	if err := client.stores.ClientSession.Clear(context, client.options.ClientID); err != nil {
		client.logger.WarnContext(context, "identity_session_clear_failed", slog.Any("error", err))
	}
	if err := client.bus.Publish(context, Change{Event: EventSignedOut}); err != nil {
		client.logger.WarnContext(context, "identity_signed_out_publish_failed", slog.Any("error", err))
	}
}

// refreshMargin shrinks for short-lived tokens so a refresh never fires immediately after issue.
func (client *Client) refreshMargin() time.Duration {
	return min(RefreshMargin, client.options.AccessTokenTTL/3)
}
