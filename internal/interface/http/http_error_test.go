package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
)

func TestDomainErrorStatus(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"invalid input", apperrors.Wrap(apperrors.CodeInvalidInput, "priority cannot be negative", nil), http.StatusBadRequest, "invalid_request", "priority cannot be negative"},
		{"missing faq", apperrors.Wrap(apperrors.CodeNotFound, "faq not found", nil), http.StatusNotFound, apperrors.CodeNotFound, "faq not found"},
		{"bad credentials", apperrors.Wrap(auth.CodeInvalidCredentials, "invalid email or password", nil), http.StatusUnauthorized, auth.CodeInvalidCredentials, "invalid email or password"},
		{"run in progress", fmt.Errorf("trigger: %w", apperrors.Wrap(faqanalysis.CodeRunning, "faq analysis already running", faqanalysis.ErrRunInProgress)), http.StatusConflict, faqanalysis.CodeRunning, "faq analysis already running"},
		{"analysis disabled", apperrors.Wrap(faqanalysis.CodeDisabled, "faq analysis is disabled", faqanalysis.ErrDisabled), http.StatusServiceUnavailable, faqanalysis.CodeDisabled, "faq analysis is disabled"},
		{"provider down", apperrors.Wrap(apperrors.CodeProviderError, "speech provider unavailable", errors.New("dial tcp")), http.StatusBadGateway, apperrors.CodeProviderError, "speech provider unavailable"},
		{"unmapped code", apperrors.Wrap(apperrors.CodeStoreError, "list faqs", errors.New("disk full")), http.StatusInternalServerError, "faq_failed", "list faqs"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "faq_failed", "boom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domainError(tc.err, "faq_failed")
			require.Equal(t, tc.status, got.Status)
			require.Equal(t, tc.code, got.Code)
			require.Equal(t, tc.message, got.Message)
			require.ErrorIs(t, got, tc.err)
		})
	}
}

func TestAsHTTPError(t *testing.T) {
	explicit := badRequest("id must be a positive integer", nil)
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"recorded http error", explicit, http.StatusBadRequest, "invalid_request"},
		{"wrapped http error", fmt.Errorf("handler: %w", explicit), http.StatusBadRequest, "invalid_request"},
		{"unmapped service error", apperrors.Wrap(auth.CodeEmailExists, "email already registered", nil), http.StatusConflict, auth.CodeEmailExists},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := asHTTPError(tc.err)
			require.Equal(t, tc.status, got.Status)
			require.Equal(t, tc.code, got.Code)
		})
	}
	require.Nil(t, asHTTPError(nil))
}

func TestHTTPErrorMessageFallback(t *testing.T) {
	var nilErr *HTTPError
	require.Empty(t, nilErr.Error())
	require.Equal(t, "missing token", NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing token", nil).Error())
	require.Equal(t, "boom", NewHTTPError(http.StatusInternalServerError, "internal_error", "", errors.New("boom")).Error())
}
