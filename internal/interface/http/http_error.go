package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/eldertech-assistant/internal/domain/auth"
	"github.com/yanqian/eldertech-assistant/internal/domain/faqanalysis"
	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
)

// HTTPError is the transport form of a failed request: the status line plus the
// {"error": {"code", "message"}} body written by errorHandler.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *HTTPError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

func badRequest(message string, err error) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, "invalid_request", message, err)
}

// codeStatus maps service error codes onto response statuses.
var codeStatus = map[string]int{
	apperrors.CodeInvalidInput:     http.StatusBadRequest,
	apperrors.CodeNotFound:         http.StatusNotFound,
	auth.CodeUserNotFound:          http.StatusNotFound,
	apperrors.CodeUnauthorized:     http.StatusUnauthorized,
	auth.CodeInvalidCredentials:    http.StatusUnauthorized,
	auth.CodeInvalidToken:          http.StatusUnauthorized,
	apperrors.CodeForbidden:        http.StatusForbidden,
	apperrors.CodeConflict:         http.StatusConflict,
	auth.CodeEmailExists:           http.StatusConflict,
	auth.CodeUsernameExists:        http.StatusConflict,
	faqanalysis.CodeRunning:        http.StatusConflict,
	faqanalysis.CodeDisabled:       http.StatusServiceUnavailable,
	faqanalysis.CodeBudgetExceeded: http.StatusServiceUnavailable,
	apperrors.CodeLLMError:         http.StatusBadGateway,
	apperrors.CodeProviderError:    http.StatusBadGateway,
}

// domainError maps a service error onto an HTTPError. Codes without a status
// become a 500 carrying fallback.
func domainError(err error, fallback string) *HTTPError {
	code := apperrors.CodeOf(err)
	status, ok := codeStatus[code]
	switch {
	case !ok:
		status, code = http.StatusInternalServerError, fallback
	case status == http.StatusBadRequest:
		code = "invalid_request"
	}
	return NewHTTPError(status, code, apperrors.MessageOf(err, errMessage(err)), err)
}

// asHTTPError resolves the error a handler recorded on the gin context. Service
// errors that reached the context unmapped still get their status.
func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if _, ok := codeStatus[apperrors.CodeOf(err)]; ok {
		return domainError(err, "internal_error")
	}
	return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
