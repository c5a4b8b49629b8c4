// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/taibuivan/ventigrow/internal/platform/constants"
	"github.com/taibuivan/ventigrow/internal/platform/ctxutil"
	"github.com/taibuivan/ventigrow/internal/platform/middleware"
	requestutil "github.com/taibuivan/ventigrow/internal/platform/request"
	"github.com/taibuivan/ventigrow/internal/platform/respond"
	"github.com/taibuivan/ventigrow/internal/platform/sec"
	"github.com/taibuivan/ventigrow/internal/users/identity"
	"github.com/taibuivan/ventigrow/pkg/textnorm"
)

// sessionWaitTimeout bounds how long login and verification wait for the signed_in event.
const sessionWaitTimeout = 5 * time.Second

// Handler exposes the session manager over HTTP.
type Handler struct {
	manager  *Manager
	verifier middleware.TokenVerifier
	upgrader websocket.Upgrader
}

// NewHandler constructs a session [Handler].
//
// The stream accepts cross-origin upgrades from origins the policy allows.
func NewHandler(manager *Manager, verifier middleware.TokenVerifier, policy middleware.OriginPolicy) *Handler {
	return &Handler{
		manager:  manager,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(request *http.Request) bool {
				origin := request.Header.Get(constants.HeaderOrigin)
				return origin == "" || middleware.AllowsOrigin(policy, origin) || sameHost(request, origin)
			},
		},
	}
}

// Routes returns the request/response endpoints. The stream is served by [Handler.Stream].
//
// # Endpoints
//   - GET    /                 : Current view
//   - POST   /login            : Sign in
//   - POST   /signup           : Create an account
//   - POST   /logout           : Sign out (session required)
//   - PATCH  /profile          : Partial profile update (session required)
//   - POST   /password/reset   : Mail a recovery link
//   - POST   /password/verify  : Complete an email or recovery link
//   - POST   /password/change  : Set a new password (session required)
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.getView)
	router.Post("/login", handler.login)
	router.Post("/signup", handler.signup)
	router.Post("/password/reset", handler.requestPasswordReset)
	router.Post("/password/verify", handler.verify)

	router.Group(func(router chi.Router) {
		router.Use(handler.manager.RequireAuthenticated)

		router.Post("/logout", handler.logout)
		router.Patch("/profile", handler.updateProfile)
		router.Post("/password/change", handler.changePassword)
	})

	return router
}

/*
RequireAuthenticated admits requests whose bearer token belongs to the
operator the manager currently holds. Mount it after [middleware.Authenticate].
*/
func (manager *Manager) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !ownsSession(manager.Current(), ctxutil.GetAuthUser(request.Context())) {
			respond.Error(writer, request, unauthenticated())
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// # View

/*
GET /api/v1/session.

Description: Returns the current view. The operator and the access token are
included only for the bearer of the current session; other callers see the
status, loading flag and error. The refresh token never leaves the server.
*/
func (handler *Handler) getView(writer http.ResponseWriter, request *http.Request) {
	view := handler.manager.Current()
	respond.OK(writer, presentView(view, ownsSession(view, ctxutil.GetAuthUser(request.Context()))))
}

// # Credentials

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*
POST /api/v1/session/login.

Response:
  - 200: View: Signed in, access token included
  - 202: View: Credentials accepted, signed_in not yet applied
  - 400: VALIDATION_FAILURE
  - 401: INVALID_CREDENTIALS
  - 503: NETWORK_OR_PROVIDER_FAULT
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	previous := sessionID(handler.manager.Current())
	if err := handler.manager.Login(request.Context(), input.Email, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondWithSession(writer, request, previous, textnorm.Email(input.Email))
}

type signupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Gender   *string `json:"gender"`
	Mobile   *string `json:"mobile"`
	// Avatar is base64 encoded image data.
	Avatar []byte `json:"avatar"`
}

type signupResponse struct {
	*SignupResult
	View *View `json:"view,omitempty"`
}

/*
POST /api/v1/session/signup.

Response:
  - 201: signupResponse: Account created; view is set when no verification is pending
  - 400: VALIDATION_FAILURE
  - 409: ACCOUNT_ALREADY_EXISTS
  - 422: WEAK_PASSWORD
*/
func (handler *Handler) signup(writer http.ResponseWriter, request *http.Request) {
	var input signupRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	previous := sessionID(handler.manager.Current())
	result, err := handler.manager.Signup(request.Context(), SignupInput{
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
		Gender:   input.Gender,
		Mobile:   input.Mobile,
		Avatar:   input.Avatar,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	response := signupResponse{SignupResult: result}
	if !result.VerificationPending {
		if view, ok := handler.awaitSession(request.Context(), previous, textnorm.Email(input.Email)); ok {
			presented := presentView(view, true)
			response.View = &presented
		}
	}
	respond.Created(writer, response)
}

/*
POST /api/v1/session/logout.

Response:
  - 202: View: Sign-out requested; the view changes when signed_out arrives
  - 503: NETWORK_OR_PROVIDER_FAULT
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if err := handler.manager.Logout(request.Context()); err != nil {
		respond.Error(writer, request, err)
		return
	}
	view := handler.manager.Current()
	respond.Accepted(writer, presentView(view, ownsSession(view, ctxutil.GetAuthUser(request.Context()))))
}

// # Profile

type updateProfileRequest struct {
	Name         *string `json:"name"`
	Gender       *string `json:"gender"`
	Mobile       *string `json:"mobile"`
	Location     *string `json:"location"`
	Avatar       []byte  `json:"avatar"`
	RemoveAvatar bool    `json:"remove_avatar"`
}

/*
PATCH /api/v1/session/profile.

Description: Applies a partial profile update. Email cannot be changed here.

Response:
  - 200: UserView
  - 400: VALIDATION_FAILURE
  - 401: UNAUTHENTICATED
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	var input updateProfileRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.manager.UpdateProfile(request.Context(), ProfileUpdate{
		Name:         input.Name,
		Gender:       input.Gender,
		Mobile:       input.Mobile,
		Location:     input.Location,
		Avatar:       input.Avatar,
		RemoveAvatar: input.RemoveAvatar,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Password Flows

type passwordResetRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to"`
}

// requestPasswordReset answers 202 whether or not the email is registered.
func (handler *Handler) requestPasswordReset(writer http.ResponseWriter, request *http.Request) {
	var input passwordResetRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.manager.RequestPasswordReset(request.Context(), input.Email, input.RedirectTo); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Accepted(writer, nil)
}

type verifyRequest struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	var input verifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	previous := sessionID(handler.manager.Current())
	if err := handler.manager.VerifyEmail(request.Context(), input.Token, identity.OTPType(input.Type)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondWithSession(writer, request, previous, "")
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.manager.ChangePassword(request.Context(), input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Helpers

// respondWithSession writes the new session once signed_in has been applied, or 202 if it is late.
func (handler *Handler) respondWithSession(writer http.ResponseWriter, request *http.Request, previous, email string) {
	view, ok := handler.awaitSession(request.Context(), previous, email)
	if !ok {
		respond.Accepted(writer, presentView(view, false))
		return
	}
	respond.OK(writer, presentView(view, true))
}

// awaitSession waits for an authenticated view with a session other than previous.
// A non-empty email must match the signed-in operator.
func (handler *Handler) awaitSession(ctx context.Context, previous, email string) (View, bool) {
	updates, unsubscribe := handler.manager.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(sessionWaitTimeout)
	defer timer.Stop()

	for {
		select {
		case view, ok := <-updates:
			if !ok {
				return handler.manager.Current(), false
			}
			if view.Authenticated() && view.Session.ID != previous && (email == "" || view.User.Email == email) {
				return view, true
			}
		case <-timer.C:
			return handler.manager.Current(), false
		case <-ctx.Done():
			return handler.manager.Current(), false
		}
	}
}

/*
presentView shapes a view for one caller.

The owner of the current session sees the operator and the access token.
Anyone else sees only the status, the loading flag and the error. The
refresh token never leaves the server.
*/
func presentView(view View, owner bool) View {
	if !owner {
		return View{Status: view.Status, Loading: view.Loading, Error: view.Error, ErrorKind: view.ErrorKind}
	}
	if view.Session == nil {
		return view
	}
	session := *view.Session
	session.RefreshToken = ""
	view.Session = &session
	return view
}

// ownsSession reports whether claims were issued for the view's current session.
func ownsSession(view View, claims *sec.AuthClaims) bool {
	return claims != nil && view.Authenticated() &&
		claims.UserID == view.User.ID && claims.SessionID == view.Session.ID
}

func sessionID(view View) string {
	if view.Session == nil {
		return ""
	}
	return view.Session.ID
}
