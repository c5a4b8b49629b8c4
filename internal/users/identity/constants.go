// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import "time"

// # Token Lifetimes

const (
	// AccessTokenTTL is how long an access token stays valid.
	AccessTokenTTL = 15 * time.Minute

	// RefreshTokenTTL bounds an idle session.
	RefreshTokenTTL = 30 * 24 * time.Hour

	// RefreshMargin is how long before expiry the auto-refresh loop rotates the session.
	RefreshMargin = 60 * time.Second

	// ResetTokenTTL is how long a password recovery token stays valid.
	ResetTokenTTL = 1 * time.Hour

	// VerificationTokenTTL is how long an email confirmation token stays valid.
	VerificationTokenTTL = 24 * time.Hour

	// SecureTokenLength is the entropy, in bytes, of refresh and one-time tokens.
	SecureTokenLength = 32

	// TokenTypeBearer is the only token type issued.
	TokenTypeBearer = "bearer"
)

// # Auto-refresh Loop

const (
	// idleCheckInterval is how often Run looks for a session when none is persisted.
	idleCheckInterval = 1 * time.Minute

	// faultRetryInterval is how soon Run retries after a store fault.
	faultRetryInterval = 10 * time.Second
)

// # Sign-in Throttle

const (
	// SignInThrottleWindow and SignInThrottleBurst allow a burst of attempts per
	// email, then one more per window.
	SignInThrottleWindow = 12 * time.Second
	SignInThrottleBurst  = 5

	// signInLimiterIdleTTL is how long a bucket takes to refill completely.
	// Evicting it after that is indistinguishable from keeping it.
	signInLimiterIdleTTL = SignInThrottleWindow * SignInThrottleBurst

	// signInLimiterSweepInterval is how often Run evicts idle buckets.
	signInLimiterSweepInterval = 1 * time.Minute
)
