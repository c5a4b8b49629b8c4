// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/ventigrow/internal/platform/validate"
	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/internal/users/profile"
	"github.com/taibuivan/ventigrow/pkg/pointer"
	"github.com/taibuivan/ventigrow/pkg/textnorm"
)

// pendingAvatarOwner groups avatars uploaded before the identity exists.
const pendingAvatarOwner = "signup"

// # Inputs & Results

// SignupInput carries the signup form. Avatar is raw image bytes and optional.
type SignupInput struct {
	Email    string
	Password string
	Name     string
	Gender   *string
	Mobile   *string
	Avatar   []byte
}

// SignupResult reports the created identity.
//
// VerificationPending means the provider wants the email confirmed before
// it will issue a session.
type SignupResult struct {
	UserID              string `json:"user_id"`
	VerificationPending bool   `json:"verification_pending"`
}

// ProfileUpdate is a partial profile change. Email is not part of it; it
// changes only through the identity provider.
type ProfileUpdate struct {
	Name     *string
	Gender   *string
	Mobile   *string
	Location *string

	// Avatar replaces the current avatar. RemoveAvatar clears it.
	Avatar       []byte
	RemoveAvatar bool
}

// # Operations

/*
Login asks the provider to verify credentials.

It never sets the state itself; the signed_in event that follows a
successful login does.

Returns:
  - error: *Error of kind InvalidCredentials, ValidationFailure or NetworkOrProviderFault
*/
func (manager *Manager) Login(ctx context.Context, email, password string) error {
	email = textnorm.Email(email)

	validator := &validate.Validator{}
	validator.Required(identity.FieldEmail, email).Email(identity.FieldEmail, email)
	validator.Required(identity.FieldPassword, password)
	if err := validator.Err(); err != nil {
		return manager.reject("login", validationFailure(err))
	}

	manager.begin()
	return manager.end(ctx, "login", manager.provider.SignInWithPassword(ctx, email, password))
}

/*
Signup creates an identity and its profile.

The avatar is stored first. A failed upload drops the avatar and signup
carries on. The profile is upserted with every supplied field once the
identity exists. Signup does not authenticate; when verification is not
required the provider's signed_in event does.

Returns:
  - *SignupResult: The new identity ID and whether verification is pending
  - error: *Error
*/
func (manager *Manager) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	email := textnorm.Email(input.Email)
	fields := profile.Patch{Name: &input.Name, Gender: input.Gender, Mobile: input.Mobile}.Clean()

	validator := &validate.Validator{}
	validator.Required(identity.FieldEmail, email).Email(identity.FieldEmail, email)
	if err := validator.Err(); err != nil {
		return nil, manager.reject("signup", validationFailure(err))
	}
	if err := fields.Validate(); err != nil {
		return nil, manager.reject("signup", validationFailure(err))
	}
	if (&validate.Validator{}).Password(identity.FieldPassword, input.Password).HasErrors() {
		return nil, manager.reject("signup", classify(identity.ErrWeakPassword))
	}

	manager.begin()

	var avatarPath, avatarURL *string
	if len(input.Avatar) > 0 {
		path, err := manager.blobs.Put(ctx, pendingAvatarOwner, input.Avatar)
		if err != nil {
			manager.logger.WarnContext(ctx, "avatar_upload_failed", slog.String("operation", "signup"), slog.Any("error", err))
		} else {
			locator := manager.blobs.PublicLocator(path)
			avatarPath, avatarURL = &path, &locator
		}
	}

	created, err := manager.provider.SignUp(ctx, email, input.Password, map[string]string{
		identity.MetadataName: *fields.Name,
	})
	if err != nil {
		manager.discardAvatar(ctx, avatarPath)
		return nil, manager.end(ctx, "signup", err)
	}

	record := &profile.Profile{
		ID:         created.ID,
		Name:       *fields.Name,
		Gender:     emptyToNil(fields.Gender),
		Mobile:     emptyToNil(fields.Mobile),
		AvatarURL:  avatarURL,
		AvatarPath: avatarPath,
	}
	if err := manager.profiles.Upsert(ctx, record); err != nil {
		return nil, manager.end(ctx, "signup", &Error{Kind: KindNetworkOrProviderFault, Message: messageStoreFault, cause: err})
	}
	manager.adoptProfile(record)

	if err := manager.end(ctx, "signup", nil); err != nil {
		return nil, err
	}

	return &SignupResult{UserID: created.ID, VerificationPending: !created.EmailVerified}, nil
}

/*
Logout asks the provider to end the session.

The view keeps the current user until signed_out arrives. If it has not
arrived within the logout grace period the manager moves to ANONYMOUS on its
own. A provider failure is returned, and the grace fallback still applies.
*/
func (manager *Manager) Logout(ctx context.Context) error {
	manager.mutex.Lock()
	if manager.state.status == StatusAuthenticated {
		manager.requestLogoutLocked()
	}
	manager.mutex.Unlock()

	manager.begin()
	return manager.end(ctx, "logout", manager.provider.SignOut(ctx))
}

/*
UpdateProfile writes a partial profile change for the signed-in operator.

An existing profile is updated in place; a missing one is created from the
current view plus the change. A new avatar is stored before the profile
points at it, and the old blob is deleted only after the profile write.
When the view holds no profile the old avatar path is read from the store.
The view is updated without waiting for a provider event.

Returns:
  - *UserView: The merged view after the change
  - error: *Error of kind Unauthenticated, ValidationFailure or NetworkOrProviderFault
*/
func (manager *Manager) UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserView, error) {
	manager.mutex.Lock()
	if manager.state.status != StatusAuthenticated {
		manager.mutex.Unlock()
		return nil, manager.reject("update_profile", unauthenticated())
	}
	user := *manager.state.user
	previous := manager.state.record
	manager.mutex.Unlock()

	patch := profile.Patch{
		Name:     update.Name,
		Gender:   update.Gender,
		Mobile:   update.Mobile,
		Location: update.Location,
	}.Clean()
	if err := patch.Validate(); err != nil {
		return nil, manager.reject("update_profile", validationFailure(err))
	}

	manager.begin()

	var storedPath *string
	switch {
	case len(update.Avatar) > 0:
		path, err := manager.blobs.Put(ctx, user.ID, update.Avatar)
		if err != nil {
			manager.logger.WarnContext(ctx, "avatar_upload_failed", slog.String("operation", "update_profile"), slog.Any("error", err))
			break
		}
		locator := manager.blobs.PublicLocator(path)
		storedPath = &path
		patch.AvatarPath, patch.AvatarURL = &path, &locator
	case update.RemoveAvatar:
		empty := ""
		patch.AvatarPath, patch.AvatarURL = &empty, &empty
	}

	if patch.IsEmpty() {
		if err := manager.end(ctx, "update_profile", nil); err != nil {
			return nil, err
		}
		return &user, nil
	}

	if patch.AvatarPath != nil && previous == nil {
		previous = manager.storedProfile(ctx, user.ID)
	}

	err := manager.profiles.Update(ctx, user.ID, patch)
	if errors.Is(err, profile.ErrNotFound) {
		record := patch.Apply(seedRecord(&user, previous))
		err = manager.profiles.Upsert(ctx, &record)
	}
	if err != nil {
		manager.discardAvatar(ctx, storedPath)
		return nil, manager.end(ctx, "update_profile", &Error{Kind: KindNetworkOrProviderFault, Message: messageStoreFault, cause: err})
	}

	if patch.AvatarPath != nil && previous != nil && previous.AvatarPath != nil && *previous.AvatarPath != *patch.AvatarPath {
		manager.discardAvatar(ctx, previous.AvatarPath)
	}

	merged := manager.mergeProfile(user.ID, patch)
	if err := manager.end(ctx, "update_profile", nil); err != nil {
		return nil, err
	}
	if merged == nil {
		return &user, nil
	}
	return merged, nil
}

// ChangePassword sets a new password for the signed-in operator.
func (manager *Manager) ChangePassword(ctx context.Context, password string) error {
	if !manager.Current().Authenticated() {
		return manager.reject("change_password", unauthenticated())
	}
	if (&validate.Validator{}).Password(identity.FieldPassword, password).HasErrors() {
		return manager.reject("change_password", classify(identity.ErrWeakPassword))
	}

	manager.begin()
	_, err := manager.provider.UpdateUser(ctx, identity.UserAttributes{Password: &password})
	return manager.end(ctx, "change_password", err)
}

// RequestPasswordReset mails a recovery link pointing at redirectTarget.
func (manager *Manager) RequestPasswordReset(ctx context.Context, email, redirectTarget string) error {
	email = textnorm.Email(email)

	validator := &validate.Validator{}
	validator.Required(identity.FieldEmail, email).Email(identity.FieldEmail, email)
	if err := validator.Err(); err != nil {
		return manager.reject("password_reset", validationFailure(err))
	}

	manager.begin()
	return manager.end(ctx, "password_reset", manager.provider.ResetPasswordForEmail(ctx, email, redirectTarget))
}

// VerifyEmail completes an email-confirmation or recovery link. The session follows as signed_in.
func (manager *Manager) VerifyEmail(ctx context.Context, token string, otpType identity.OTPType) error {
	validator := &validate.Validator{}
	validator.Required(identity.FieldToken, token)
	validator.OneOf(identity.FieldType, string(otpType), string(identity.OTPEmail), string(identity.OTPRecovery))
	if err := validator.Err(); err != nil {
		return manager.reject("verify_email", validationFailure(err))
	}

	manager.begin()
	_, err := manager.provider.VerifyOTP(ctx, token, otpType)
	return manager.end(ctx, "verify_email", err)
}

// # Operation Bookkeeping

func (manager *Manager) begin() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	manager.pending++
	manager.failure = nil
	manager.publishLocked()
}

// end clears one in-flight operation and records its failure, if any.
func (manager *Manager) end(ctx context.Context, operation string, err error) error {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	manager.pending--
	if err == nil {
		manager.publishLocked()
		return nil
	}

	failure := classify(err)
	manager.recordFailureLocked(ctx, operation, failure)
	manager.publishLocked()
	return failure
}

// reject records a failure raised before the provider was called.
func (manager *Manager) reject(operation string, failure *Error) error {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	manager.recordFailureLocked(context.Background(), operation, failure)
	manager.publishLocked()
	return failure
}

func (manager *Manager) recordFailureLocked(ctx context.Context, operation string, failure *Error) {
	manager.failure = failure
	manager.recorder.RecordSessionFailure(string(failure.Kind))

	level := slog.LevelInfo
	if failure.Kind == KindNetworkOrProviderFault {
		level = slog.LevelWarn
	}
	manager.logger.Log(ctx, level, "session_operation_failed",
		slog.String("operation", operation),
		slog.String("kind", string(failure.Kind)),
		slog.Any("error", failure.cause),
	)
}

// mergeProfile applies patch to the visible user if it is still the same operator.
func (manager *Manager) mergeProfile(userID string, patch profile.Patch) *UserView {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.state.status != StatusAuthenticated || manager.state.user.ID != userID {
		return nil
	}

	record := patch.Apply(seedRecord(manager.state.user, manager.state.record))
	record.UpdatedAt = time.Now().UTC()

	next := manager.state
	next.record = &record
	next.user = buildUserView(next.session.User, &record)
	manager.state = next
	manager.adopted = nil

	user := *next.user
	return &user
}

/*
adoptProfile makes a freshly written signup profile visible.

An auto-confirmed signup emits signed_in before the row is written, so the
reconciliation for it may already have settled on the identity-only view.
The record is merged into that view, or kept for a reconciliation that is
still in flight.
*/
func (manager *Manager) adoptProfile(record *profile.Profile) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	adopted := *record
	manager.adopted = &adopted

	if manager.state.status != StatusAuthenticated || manager.state.user.ID != record.ID || manager.state.record != nil {
		return
	}

	next := manager.state
	next.record = &adopted
	next.user = buildUserView(next.session.User, &adopted)
	manager.state = next
}

// storedProfile reads the row the view could not load, so a replaced avatar can still be found.
func (manager *Manager) storedProfile(ctx context.Context, userID string) *profile.Profile {
	record, err := manager.profiles.GetByKey(ctx, userID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		manager.logger.WarnContext(ctx, "profile_lookup_failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	return record
}

func (manager *Manager) discardAvatar(ctx context.Context, path *string) {
	if path == nil || *path == "" {
		return
	}
	if err := manager.blobs.Delete(ctx, *path); err != nil {
		manager.logger.WarnContext(ctx, "avatar_delete_failed", slog.String("path", *path), slog.Any("error", err))
	}
}

// seedRecord is the profile a partial update starts from.
func seedRecord(user *UserView, record *profile.Profile) profile.Profile {
	if record != nil {
		return *record
	}
	return profile.Profile{
		ID:        user.ID,
		Name:      user.Name,
		Gender:    user.Gender,
		Mobile:    user.Mobile,
		AvatarURL: user.AvatarURL,
		Location:  user.Location,
	}
}

func emptyToNil(value *string) *string {
	return pointer.NilIfEmpty(pointer.Val(value))
}
