package http

import (
	"errors"
	"net/http"

	"expensebook/internal/auth"
	"expensebook/internal/core"
)

// statusFor maps a domain error to the HTTP status shown to the client.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case isValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnauthenticated), errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidMonthKey,
		core.ErrInvalidAmount,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrInvalidRange,
		core.ErrMissingCredentials,
		ErrInvalidStep,
		auth.ErrInvalidEmail,
		auth.ErrWeakPassword,
		auth.ErrPasswordTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// userMessage is the text shown for err. Upstream failures are shown
// verbatim; unexpected errors are not.
func userMessage(err error) string {
	switch statusFor(err) {
	case http.StatusInternalServerError:
		return "Something went wrong, please try again"
	case http.StatusUnauthorized:
		if errors.Is(err, core.ErrInvalidCredentials) {
			return "Wrong username or password"
		}
		return "Please log in"
	case http.StatusNotFound:
		return "Record not found"
	default:
		return err.Error()
	}
}
