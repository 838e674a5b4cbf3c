package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// AuthError means the stored mail credentials are missing, expired or revoked.
// A sync run that hits it stops without creating events.
type AuthError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s auth error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s auth error: %s", e.Provider, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// TransientProviderError is a network, timeout or rate-limit failure worth retrying.
type TransientProviderError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *TransientProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s transient error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s transient error: %s", e.Provider, e.Message)
}

func (e *TransientProviderError) Unwrap() error {
	return e.Cause
}

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransient reports whether err is or wraps a *TransientProviderError.
func IsTransient(err error) bool {
	var transient *TransientProviderError
	return errors.As(err, &transient)
}

// classifyGoogleError maps Gmail API and OAuth failures onto the error taxonomy.
// Errors that fit neither category are wrapped unchanged.
func classifyGoogleError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" || retrieveErr.ErrorCode == "unauthorized_client" ||
			(retrieveErr.Response != nil && (retrieveErr.Response.StatusCode == http.StatusBadRequest ||
				retrieveErr.Response.StatusCode == http.StatusUnauthorized)) {
			return &AuthError{Provider: "gmail", Message: "token refresh rejected", Cause: err}
		}
		return &TransientProviderError{Provider: "gmail", Message: "token refresh failed", Cause: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return &AuthError{Provider: "gmail", Message: msg, Cause: err}
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			return &TransientProviderError{Provider: "gmail", Message: msg, Cause: err}
		}
		return fmt.Errorf("%s: %w", msg, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientProviderError{Provider: "gmail", Message: msg, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientProviderError{Provider: "gmail", Message: msg, Cause: err}
	}

	return fmt.Errorf("%s: %w", msg, err)
}
