package dto

import (
	"errors"
	"net/http"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// Error codes follow ERR_<DESCRIPTION>.
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeUnavailable  = "ERR_UNAVAILABLE"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
)

// Sync specific codes
const (
	// ErrCodeBatchBusy: another worker is creating the batch
	ErrCodeBatchBusy = "ERR_BATCH_BUSY"
	// ErrCodeSchedulerStopped: the background runner is disabled or stopped
	ErrCodeSchedulerStopped = "ERR_SCHEDULER_STOPPED"
	// ErrCodeStepFailed: a step ran and the batch recorded the failure
	ErrCodeStepFailed = "ERR_STEP_FAILED"
	// ErrCodeNotConfigured: ERP or storefront credentials are missing or rejected
	ErrCodeNotConfigured = "ERR_NOT_CONFIGURED"
)

var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeBatchBusy:        http.StatusConflict,
	ErrCodeSchedulerStopped: http.StatusServiceUnavailable,
	ErrCodeStepFailed:       http.StatusBadGateway,
	ErrCodeNotConfigured:    http.StatusFailedDependency,
}

// GetHTTPStatus returns the status for code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorCodeFor classifies a domain or integration error. Errors it does not
// recognise are internal.
func ErrorCodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, stocksync.ErrBatchNotFound),
		errors.Is(err, stocksync.ErrSiteNotFound),
		errors.Is(err, stocksync.ErrSiteResultNotFound):
		return ErrCodeNotFound
	case errors.Is(err, stocksync.ErrActiveBatchExists),
		errors.Is(err, stocksync.ErrLockNotObtained):
		return ErrCodeConflict
	case errors.Is(err, stocksync.ErrInvalidSite),
		errors.Is(err, stocksync.ErrInvalidTransition):
		return ErrCodeInvalidInput
	case errors.Is(err, stocksync.ErrNoSitesConfigured),
		errors.Is(err, integration.ErrErpNotConfigured),
		errors.Is(err, integration.ErrStorefrontNotConfigured),
		errors.Is(err, integration.ErrAuthFailed):
		return ErrCodeNotConfigured
	case errors.Is(err, integration.ErrUpstreamUnavailable),
		errors.Is(err, integration.ErrRateLimited):
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}
