package faqanalysis

import "errors"

// Error codes carried by apperrors.AppError values from this package.
const (
	CodeConfigInvalid  = "analysis_config_invalid"
	CodeBudgetExceeded = "analysis_budget_exceeded"
	CodeDisabled       = "analysis_disabled"
	CodeRunning        = "analysis_running"
	CodeCanceled       = "analysis_canceled"
)

var (
	// ErrConfigInvalid rejects a run before any work starts.
	ErrConfigInvalid = errors.New("faq analysis configuration invalid")
	// ErrBudgetExceeded aborts a run that outlived its time budget; it emits nothing.
	ErrBudgetExceeded = errors.New("faq analysis time budget exceeded")
	// ErrDisabled is returned when analysis is switched off.
	ErrDisabled = errors.New("faq analysis disabled")
	// ErrRunInProgress rejects a run while another one holds the service.
	ErrRunInProgress = errors.New("faq analysis already running")
)
