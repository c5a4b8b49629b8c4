// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/platform/dberr"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, dberr.Wrap(nil, "Profile"))

	notFound := apperr.As(dberr.Wrap(fmt.Errorf("query: %w", pgx.ErrNoRows), "Profile"))
	require.NotNil(t, notFound)
	assert.Equal(t, "NOT_FOUND", notFound.Code)

	conflict := apperr.As(dberr.Wrap(&pgconn.PgError{Code: "23505"}, "Identity"))
	require.NotNil(t, conflict)
	assert.Equal(t, "CONFLICT", conflict.Code)
	assert.True(t, dberr.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))

	internal := apperr.As(dberr.Wrap(errors.New("connection reset"), "Reading"))
	require.NotNil(t, internal)
	assert.Equal(t, "INTERNAL_ERROR", internal.Code)
}
