// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"time"

	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/internal/users/profile"
)

// Status is the tag of the session state machine.
type Status string

const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusLoading       Status = "LOADING"
	StatusAuthenticated Status = "AUTHENTICATED"
	StatusAnonymous     Status = "ANONYMOUS"
	StatusError         Status = "ERROR"
)

// UserView is the merged projection of an Identity and its Profile.
//
// Email always comes from the identity provider.
type UserView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	Gender    *string    `json:"gender,omitempty"`
	Mobile    *string    `json:"mobile,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
	Location  *string    `json:"location,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// View is the reactive surface: the legacy four fields plus the status tag.
//
// User is non-nil exactly when Status is AUTHENTICATED, and so is Session.
type View struct {
	Status    Status            `json:"status"`
	User      *UserView         `json:"user"`
	Session   *identity.Session `json:"session"`
	Loading   bool              `json:"loading"`
	Error     *string           `json:"error"`
	ErrorKind Kind              `json:"error_kind,omitempty"`
}

// Authenticated reports whether the view carries a signed-in operator.
func (view View) Authenticated() bool {
	return view.Status == StatusAuthenticated
}

// state is the single source the View is derived from.
type state struct {
	status  Status
	session *identity.Session
	// record is nil when the profile lookup degraded to identity-only data.
	record *profile.Profile
	user   *UserView
	// message is the ERROR payload. It stays visible after ERROR resolves to ANONYMOUS.
	message string
}

// buildUserView merges identity and profile. A nil record yields the degraded view.
func buildUserView(user identity.Identity, record *profile.Profile) *UserView {
	view := &UserView{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name(),
	}
	if record == nil {
		return view
	}

	if record.Name != "" {
		view.Name = record.Name
	}
	view.Gender = record.Gender
	view.Mobile = record.Mobile
	view.AvatarURL = record.AvatarURL
	view.Location = record.Location
	if !record.UpdatedAt.IsZero() {
		updatedAt := record.UpdatedAt
		view.UpdatedAt = &updatedAt
	}
	return view
}
