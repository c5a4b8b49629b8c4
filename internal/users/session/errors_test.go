// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ventigrow/internal/platform/respond"
	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/internal/users/session"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   session.Kind
		status int
	}{
		{"invalid_credentials", identity.ErrInvalidCredentials, session.KindInvalidCredentials, http.StatusUnauthorized},
		{"email_not_confirmed", identity.ErrEmailNotConfirmed, session.KindInvalidCredentials, http.StatusUnauthorized},
		{"rate_limited", identity.ErrRateLimited, session.KindNetworkOrProviderFault, http.StatusServiceUnavailable},
		{"fault", errStoreDown, session.KindNetworkOrProviderFault, http.StatusServiceUnavailable},
		{"invalid_token", identity.ErrInvalidToken, session.KindValidationFailure, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, session.Options{})
			h.provider.signInErr = tt.err
			h.start(t)

			err := h.manager.Login(context.Background(), "a@b.com", "secret1")
			require.Error(t, err)
			assert.True(t, session.IsKind(err, tt.kind), "got %v", err)

			appError := respond.Resolve(err)
			assert.Equal(t, string(tt.kind), appError.Code)
			assert.Equal(t, tt.status, appError.HTTPStatus)
		})
	}
}
