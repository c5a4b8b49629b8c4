// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/users/profile"
	"github.com/taibuivan/ventigrow/pkg/pointer"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Alice", "Alice"},
		{"strips_markup", "<b>Alice</b><script>alert(1)</script>", "Alice"},
		{"keeps_ampersand", "Tom & Jerry", "Tom & Jerry"},
		{"collapses_space", "  Bay   4 ", "Bay 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, profile.CleanText(tt.in))
		})
	}
}

/*
TestPatch_Apply checks nil keeps, empty clears, and values replace.
*/
func TestPatch_Apply(t *testing.T) {
	base := profile.Profile{
		ID:       "op-1",
		Name:     "Alice",
		Gender:   pointer.To("female"),
		Mobile:   pointer.To("+84 912 345 678"),
		Location: pointer.To("Da Lat"),
	}

	patched := profile.Patch{
		Name:   pointer.To("Alicia"),
		Mobile: pointer.To(""),
	}.Apply(base)

	assert.Equal(t, "Alicia", patched.Name)
	assert.Nil(t, patched.Mobile)
	assert.Equal(t, "female", *patched.Gender)
	assert.Equal(t, "Da Lat", *patched.Location)

	// The original is untouched.
	assert.Equal(t, "+84 912 345 678", *base.Mobile)
}

func TestPatch_ApplyIsIdempotent(t *testing.T) {
	patch := profile.Patch{Name: pointer.To("X"), Location: pointer.To("Greenhouse 2")}
	once := patch.Apply(profile.Profile{ID: "op-1", Name: "Alice"})
	twice := patch.Apply(once)
	assert.Equal(t, once, twice)
}

func TestPatch_Validate(t *testing.T) {
	tests := []struct {
		name    string
		patch   profile.Patch
		invalid []string
	}{
		{"empty_patch", profile.Patch{}, nil},
		{"valid", profile.Patch{Name: pointer.To("Bob"), Gender: pointer.To("male"), Mobile: pointer.To("0912345678")}, nil},
		{"clear_gender", profile.Patch{Gender: pointer.To("")}, nil},
		{"blank_name", profile.Patch{Name: pointer.To("")}, []string{"name"}},
		{"bad_gender", profile.Patch{Gender: pointer.To("robot")}, []string{"gender"}},
		{"bad_mobile", profile.Patch{Mobile: pointer.To("call me")}, []string{"mobile"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Clean().Validate()
			if tt.invalid == nil {
				assert.NoError(t, err)
				return
			}
			appError := apperr.As(err)
			require.NotNil(t, appError)
			var fields []string
			for _, detail := range appError.Details {
				fields = append(fields, detail.Field)
			}
			assert.Equal(t, tt.invalid, fields)
		})
	}
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, profile.Patch{}.IsEmpty())
	assert.False(t, profile.Patch{Location: pointer.To("")}.IsEmpty())
}
