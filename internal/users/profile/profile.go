// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package profile is the application-owned store of operator profile fields.

A profile is keyed by the identity ID issued by the identity provider. It is
created at signup, changed through partial updates, and never deleted here.

# Text Hygiene

Every text field is stripped of markup (bluemonday strict policy), NFC
normalised, and whitespace-collapsed before it reaches storage.
*/
package profile

import (
	"html"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/platform/validate"
	"github.com/taibuivan/ventigrow/pkg/pointer"
	"github.com/taibuivan/ventigrow/pkg/textnorm"
)

// # Domain Entities

// Profile is the mutable, user-facing record of one operator.
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Gender     *string   `json:"gender,omitempty"`
	Mobile     *string   `json:"mobile,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	AvatarPath *string   `json:"-"`
	Location   *string   `json:"location,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Patch is a partial update. A nil field is left untouched; an empty string
// clears an optional field.
type Patch struct {
	Name       *string
	Gender     *string
	Mobile     *string
	AvatarURL  *string
	AvatarPath *string
	Location   *string
}

// IsEmpty reports whether the patch changes nothing.
func (patch Patch) IsEmpty() bool {
	return patch.Name == nil && patch.Gender == nil && patch.Mobile == nil &&
		patch.AvatarURL == nil && patch.AvatarPath == nil && patch.Location == nil
}

// Apply returns a copy of profile with the patch merged in.
func (patch Patch) Apply(profile Profile) Profile {
	if patch.Name != nil {
		profile.Name = *patch.Name
	}
	profile.Gender = mergeOptional(profile.Gender, patch.Gender)
	profile.Mobile = mergeOptional(profile.Mobile, patch.Mobile)
	profile.AvatarURL = mergeOptional(profile.AvatarURL, patch.AvatarURL)
	profile.AvatarPath = mergeOptional(profile.AvatarPath, patch.AvatarPath)
	profile.Location = mergeOptional(profile.Location, patch.Location)
	return profile
}

func mergeOptional(current, update *string) *string {
	switch {
	case update == nil:
		return current
	case *update == "":
		return nil
	default:
		return pointer.To(*update)
	}
}

// # Errors & Limits

// ErrNotFound is returned by [PostgresStore.GetByKey] and [PostgresStore.Update] for unknown IDs.
var ErrNotFound = apperr.NotFound("Profile")

// Gender values accepted by the console.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

const (
	FieldName     = "name"
	FieldGender   = "gender"
	FieldMobile   = "mobile"
	FieldLocation = "location"

	maxNameLength     = 120
	maxLocationLength = 200
)

// # Validation & Sanitising

var textPolicy = bluemonday.StrictPolicy()

// CleanText strips markup and normalises s for storage.
func CleanText(s string) string {
	return textnorm.Text(html.UnescapeString(textPolicy.Sanitize(s)))
}

// Clean returns the patch with every text field sanitised.
func (patch Patch) Clean() Patch {
	cleaned := patch
	for _, field := range []**string{&cleaned.Name, &cleaned.Gender, &cleaned.Mobile, &cleaned.Location} {
		if *field != nil {
			*field = pointer.To(CleanText(**field))
		}
	}
	return cleaned
}

// Validate checks a cleaned patch.
func (patch Patch) Validate() error {
	validator := &validate.Validator{}

	if patch.Name != nil {
		validator.Required(FieldName, *patch.Name).MaxLen(FieldName, *patch.Name, maxNameLength)
	}
	if patch.Gender != nil && *patch.Gender != "" {
		validator.OneOf(FieldGender, *patch.Gender, GenderMale, GenderFemale, GenderOther)
	}
	if patch.Mobile != nil {
		validator.Phone(FieldMobile, *patch.Mobile)
	}
	if patch.Location != nil {
		validator.MaxLen(FieldLocation, *patch.Location, maxLocationLength)
	}

	return validator.Err()
}
