package integration

import (
	"context"
	"errors"
	"net"
)

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// Configuration errors
	ErrErpNotConfigured        = errors.New("integration: ERP credentials not configured")
	ErrStorefrontNotConfigured = errors.New("integration: storefront credentials not configured")

	// Upstream errors
	ErrUpstreamUnavailable = errors.New("integration: upstream temporarily unavailable")
	ErrRateLimited         = errors.New("integration: upstream rate limited")
	ErrRequestFailed       = errors.New("integration: upstream request failed")
	ErrInvalidResponse     = errors.New("integration: invalid upstream response")
	ErrAuthFailed          = errors.New("integration: upstream authentication failed")

	// Data errors
	ErrProductNotFound = errors.New("integration: storefront product not found")
	ErrInvalidSku      = errors.New("integration: invalid SKU")
)

// ErrorKind classifies a failure for per-item accounting.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindRateLimited   ErrorKind = "rate_limited"
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindPermanent     ErrorKind = "permanent"
	ErrorKindConfiguration ErrorKind = "configuration"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// IsRetryable reports whether a later invocation may succeed without intervention.
func (k ErrorKind) IsRetryable() bool {
	return k == ErrorKindRateLimited || k == ErrorKindTransient
}

// ClassifyError maps an upstream error onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrInvalidSku):
		return ErrorKindNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimited
	case errors.Is(err, ErrErpNotConfigured), errors.Is(err, ErrStorefrontNotConfigured),
		errors.Is(err, ErrAuthFailed):
		return ErrorKindConfiguration
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTransient
	}
	return ErrorKindPermanent
}

// IsConfigurationError reports whether err is fatal to a batch.
func IsConfigurationError(err error) bool {
	return ClassifyError(err) == ErrorKindConfiguration
}
