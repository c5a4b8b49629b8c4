// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"errors"
	"net/http"

	"github.com/taibuivan/ventigrow/internal/platform/apperr"
	"github.com/taibuivan/ventigrow/internal/users/identity"
)

// Kind is the closed set of failures the manager reports to callers.
type Kind string

const (
	KindInvalidCredentials     Kind = "INVALID_CREDENTIALS"
	KindAccountAlreadyExists   Kind = "ACCOUNT_ALREADY_EXISTS"
	KindWeakPassword           Kind = "WEAK_PASSWORD"
	KindNetworkOrProviderFault Kind = "NETWORK_OR_PROVIDER_FAULT"
	KindValidationFailure      Kind = "VALIDATION_FAILURE"
	KindUnauthenticated        Kind = "UNAUTHENTICATED"
)

// Error is a classified failure with a human-readable message.
//
// The underlying provider or store error is kept for logging and is never rendered.
type Error struct {
	Kind    Kind
	Message string
	Details []apperr.FieldError
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

var kindStatus = map[Kind]int{
	KindInvalidCredentials:     http.StatusUnauthorized,
	KindAccountAlreadyExists:   http.StatusConflict,
	KindWeakPassword:           http.StatusUnprocessableEntity,
	KindNetworkOrProviderFault: http.StatusServiceUnavailable,
	KindValidationFailure:      http.StatusBadRequest,
	KindUnauthenticated:        http.StatusUnauthorized,
}

// AppError maps the failure onto the HTTP error envelope.
func (e *Error) AppError() *apperr.AppError {
	appError := apperr.New(string(e.Kind), e.Message, kindStatus[e.Kind])
	appError.Details = e.Details
	appError.Cause = e.cause
	return appError
}

// IsKind reports whether err is an [*Error] of the given kind.
func IsKind(err error, kind Kind) bool {
	var sessionError *Error
	return errors.As(err, &sessionError) && sessionError.Kind == kind
}

const (
	messageUnauthenticated = "You must be signed in to do that"
	messageProviderFault   = "The account service is unavailable, please try again"
	messageStoreFault      = "Your profile could not be saved, please try again"
)

func unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: messageUnauthenticated}
}

// validationFailure wraps a field validation error from the validate package.
func validationFailure(err error) *Error {
	failure := &Error{Kind: KindValidationFailure, Message: err.Error(), cause: err}
	if appError := apperr.As(err); appError != nil {
		failure.Details = appError.Details
	}
	return failure
}

// classify maps an identity provider error onto the closed taxonomy.
func classify(err error) *Error {
	var sessionError *Error
	if errors.As(err, &sessionError) {
		return sessionError
	}

	failure := &Error{cause: err}
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		failure.Kind = KindInvalidCredentials
	case errors.Is(err, identity.ErrEmailNotConfirmed):
		failure.Kind = KindInvalidCredentials
	case errors.Is(err, identity.ErrEmailTaken):
		failure.Kind = KindAccountAlreadyExists
	case errors.Is(err, identity.ErrWeakPassword):
		failure.Kind = KindWeakPassword
	case errors.Is(err, identity.ErrNoSession):
		failure.Kind = KindUnauthenticated
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrInvalidToken):
		failure.Kind = KindValidationFailure
	case errors.Is(err, identity.ErrRateLimited):
		failure.Kind = KindNetworkOrProviderFault
	default:
		if appError := apperr.As(err); appError != nil && appError.HTTPStatus == http.StatusBadRequest {
			failure.Kind = KindValidationFailure
			failure.Details = appError.Details
			break
		}
		failure.Kind = KindNetworkOrProviderFault
		failure.Message = messageProviderFault
		return failure
	}

	failure.Message = err.Error()
	return failure
}
