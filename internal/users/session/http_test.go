// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/platform/middleware"
	"github.com/taibuivan/ventigrow/internal/platform/sec"
	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/internal/users/session"
)

type fakeVerifier map[string]*sec.AuthClaims

func (verifier fakeVerifier) VerifyToken(token string) (*sec.AuthClaims, error) {
	if claims, ok := verifier[token]; ok {
		return claims, nil
	}
	return nil, apperr.Unauthorized("bad token")
}

type devPolicy struct{}

func (devPolicy) IsDevelopment() bool      { return true }
func (devPolicy) AllowedOrigins() []string { return nil }

type viewEnvelope struct {
	Data session.View `json:"data"`
}

type errorEnvelope struct {
	Code string `json:"code"`
}

func newRouter(h *harness) http.Handler {
	verifier := fakeVerifier{
		"access-s1": {UserID: "u1", SessionID: "s1"},
		"stale":     {UserID: "u1", SessionID: "s0"},
	}
	handler := session.NewHandler(h.manager, verifier, devPolicy{})

	router := chi.NewRouter()
	router.Use(middleware.Authenticate(verifier))
	router.Get("/session/stream", handler.Stream)
	router.Mount("/session", handler.Routes())
	return router
}

func doRequest(router http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestHandler_ViewRedactsForOtherCallers(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.startSignedIn(t, newSession("s1", "u1", "a@b.com", "A"))
	router := newRouter(h)

	tests := []struct {
		name  string
		token string
		owner bool
	}{
		{"anonymous_caller", "", false},
		{"other_session", "stale", false},
		{"session_owner", "access-s1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := doRequest(router, http.MethodGet, "/session/", "", tt.token)
			require.Equal(t, http.StatusOK, recorder.Code)
			assert.NotContains(t, recorder.Body.String(), "refresh-s1")

			var envelope viewEnvelope
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
			assert.Equal(t, session.StatusAuthenticated, envelope.Data.Status)
			assert.False(t, envelope.Data.Loading)

			if !tt.owner {
				assert.Nil(t, envelope.Data.User)
				assert.Nil(t, envelope.Data.Session)
				assert.NotContains(t, recorder.Body.String(), "a@b.com")
				return
			}
			require.NotNil(t, envelope.Data.User)
			assert.Equal(t, "a@b.com", envelope.Data.User.Email)
			require.NotNil(t, envelope.Data.Session)
			assert.Equal(t, "access-s1", envelope.Data.Session.AccessToken)
			assert.Empty(t, envelope.Data.Session.RefreshToken)
		})
	}
}

func TestHandler_ViewKeepsErrorForOtherCallers(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.start(t)
	router := newRouter(h)

	recorder := doRequest(router, http.MethodPost, "/session/login", `{"email":"bad","password":"secret1"}`, "")
	require.Equal(t, http.StatusBadRequest, recorder.Code, recorder.Body.String())

	recorder = doRequest(router, http.MethodGet, "/session/", "", "")
	var envelope viewEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	assert.Equal(t, session.StatusAnonymous, envelope.Data.Status)
	require.NotNil(t, envelope.Data.Error)
	assert.Equal(t, session.KindValidationFailure, envelope.Data.ErrorKind)
}

func TestHandler_Login(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.provider.emitOnSignIn = true
	h.provider.signInSession = newSession("s1", "u1", "a@b.com", "A")
	h.start(t)
	router := newRouter(h)

	recorder := doRequest(router, http.MethodPost, "/session/login", `{"email":"A@b.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var envelope viewEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	assert.Equal(t, "access-s1", envelope.Data.Session.AccessToken)
	assert.Equal(t, "a@b.com", envelope.Data.User.Email)
}

func TestHandler_LoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.provider.signInErr = identity.ErrInvalidCredentials
	h.start(t)

	recorder := doRequest(newRouter(h), http.MethodPost, "/session/login", `{"email":"a@b.com","password":"nope12"}`, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	var envelope errorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	assert.Equal(t, "INVALID_CREDENTIALS", envelope.Code)
}

func TestHandler_SignupWeakPassword(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.start(t)

	recorder := doRequest(newRouter(h), http.MethodPost, "/session/signup",
		`{"email":"a@b.com","password":"123","name":"Alice"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestHandler_SignupPending(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.provider.requireVerification = true
	h.start(t)

	recorder := doRequest(newRouter(h), http.MethodPost, "/session/signup",
		`{"email":"a@b.com","password":"pw123456","name":"Alice","gender":"female"}`, "")
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var envelope struct {
		Data struct {
			UserID              string        `json:"user_id"`
			VerificationPending bool          `json:"verification_pending"`
			View                *session.View `json:"view"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	assert.True(t, envelope.Data.VerificationPending)
	assert.NotEmpty(t, envelope.Data.UserID)
	assert.Nil(t, envelope.Data.View)
}

func TestHandler_ProfileRequiresOwner(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.startSignedIn(t, newSession("s1", "u1", "a@b.com", "A"))
	router := newRouter(h)

	for _, token := range []string{"", "stale"} {
		recorder := doRequest(router, http.MethodPatch, "/session/profile", `{"name":"B"}`, token)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	}

	recorder := doRequest(router, http.MethodPatch, "/session/profile", `{"name":"<i>B</i>","location":"Bay 1"}`, "access-s1")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var envelope struct {
		Data session.UserView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	assert.Equal(t, "B", envelope.Data.Name)
	assert.Equal(t, "Bay 1", *envelope.Data.Location)
}

func TestHandler_Logout(t *testing.T) {
	h := newHarness(t, session.Options{LogoutGrace: time.Minute})
	h.startSignedIn(t, newSession("s1", "u1", "a@b.com", "A"))
	router := newRouter(h)

	recorder := doRequest(router, http.MethodPost, "/session/logout", "", "access-s1")
	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Equal(t, 1, h.provider.signOutCalls)
}

func TestHandler_Stream(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.start(t)

	server := httptest.NewServer(newRouter(h))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/stream?access_token=access-s1"
	connection, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer connection.Close()

	var view session.View
	require.NoError(t, connection.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, connection.ReadJSON(&view))
	assert.Equal(t, session.StatusAnonymous, view.Status)

	h.provider.emit(identity.EventSignedIn, newSession("s1", "u1", "a@b.com", "A"))
	for view.Status != session.StatusAuthenticated {
		require.NoError(t, connection.ReadJSON(&view))
	}
	require.NotNil(t, view.Session)
	assert.Equal(t, "access-s1", view.Session.AccessToken)
	assert.Empty(t, view.Session.RefreshToken)
}

func TestHandler_StreamRedactsForOtherCallers(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.startSignedIn(t, newSession("s1", "u1", "a@b.com", "A"))

	server := httptest.NewServer(newRouter(h))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/stream"
	connection, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer connection.Close()

	var view session.View
	require.NoError(t, connection.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, connection.ReadJSON(&view))
	assert.Equal(t, session.StatusAuthenticated, view.Status)
	assert.Nil(t, view.User)
	assert.Nil(t, view.Session)
}

func TestHandler_StreamRejectsBadToken(t *testing.T) {
	h := newHarness(t, session.Options{})
	h.start(t)

	server := httptest.NewServer(newRouter(h))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/stream?access_token=forged"
	_, response, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, response)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
}
