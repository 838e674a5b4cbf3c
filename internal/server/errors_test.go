package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-tracker/internal/mail"
	"github.com/jonathan/job-tracker/internal/pipeline"
	"github.com/jonathan/job-tracker/internal/status"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &ErrNotFound{Resource: "application", ID: "x"}, http.StatusNotFound},
		{"unknown event", fmt.Errorf("reprocess: %w", pipeline.ErrEventNotFound), http.StatusNotFound},
		{"validation", &ErrValidation{Field: "subject", Message: "required"}, http.StatusBadRequest},
		{"sync running", &ErrSyncInProgress{}, http.StatusConflict},
		{"data error", &pipeline.DataError{Record: "application", Message: "missing company"}, http.StatusUnprocessableEntity},
		{"auth", &mail.AuthError{Provider: "gmail", Message: "token revoked"}, http.StatusUnauthorized},
		{"wrapped auth", fmt.Errorf("sync: %w", &mail.AuthError{Provider: "imap", Message: "bad login"}), http.StatusUnauthorized},
		{"persistence", &status.PersistenceError{Message: "write failed"}, http.StatusServiceUnavailable},
		{"transient", &mail.TransientProviderError{Provider: "imap", Message: "timeout"}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrValidation_Error(t *testing.T) {
	assert.Equal(t, "validation error: subject - required", (&ErrValidation{Field: "subject", Message: "required"}).Error())
	assert.Equal(t, "validation error: bad body", (&ErrValidation{Message: "bad body"}).Error())
}

func TestValidationError_NamesFirstField(t *testing.T) {
	type req struct {
		Status string `validate:"oneof=applied rejected"`
	}
	err := validationError(validator.New().Struct(req{Status: "lost"}))

	var ve *ErrValidation
	if assert.ErrorAs(t, err, &ve) {
		assert.Equal(t, "Status", ve.Field)
		assert.Contains(t, ve.Message, "oneof")
	}
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}
