package idp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies validation, transport and upstream failures.
type ErrorKind string

const (
	KindValidation           ErrorKind = "validation"
	KindUnsupportedProvider  ErrorKind = "unsupported_provider"
	KindInvalidDomainFormat  ErrorKind = "invalid_domain_format"
	KindInvalidCredentials   ErrorKind = "invalid_credentials"
	KindRateLimited          ErrorKind = "rate_limited"
	KindQuotaExceeded        ErrorKind = "quota_exceeded"
	KindTimeout              ErrorKind = "timeout"
	KindGenericAPI           ErrorKind = "generic_api_error"
	KindUnreachable          ErrorKind = "unreachable"
	KindMalformedResponse    ErrorKind = "malformed_response"
	KindIntegrationNotFound  ErrorKind = "integration_not_found"
	KindIntegrationNotActive ErrorKind = "integration_not_active"
)

// Phase selects which HTTP status table applies to an error.
type Phase int

const (
	// PhaseRegistration covers validation and the connection test run by POST /idp.
	PhaseRegistration Phase = iota
	// PhaseFetch covers catalog retrieval.
	PhaseFetch
)

// Error is the single error type surfaced by this package.
// Message is safe to show to the registrant; Err keeps the underlying cause for logs.
type Error struct {
	Kind           ErrorKind
	Provider       ProviderType
	Message        string
	UpstreamStatus int
	Fields         []string
	RetryAfter     time.Duration
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status surfaced for this error in the given phase.
func (e *Error) StatusCode(phase Phase) int {
	switch e.Kind {
	case KindValidation, KindUnsupportedProvider, KindInvalidDomainFormat, KindIntegrationNotActive:
		return http.StatusBadRequest
	case KindIntegrationNotFound:
		return http.StatusNotFound
	case KindRateLimited, KindQuotaExceeded:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindInvalidCredentials:
		if phase == PhaseFetch {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case KindGenericAPI, KindUnreachable:
		if phase == PhaseFetch {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	case KindMalformedResponse:
		if phase == PhaseFetch {
			return http.StatusInternalServerError
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns err as an *Error, wrapping foreign errors as a generic provider failure.
func AsError(provider ProviderType, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:     KindGenericAPI,
		Provider: provider,
		Message:  fmt.Sprintf("%s request failed", provider.DisplayName()),
		Err:      err,
	}
}

// NewMissingFieldsError lists every missing required field.
func NewMissingFieldsError(provider ProviderType, fields []string) *Error {
	return &Error{
		Kind:     KindValidation,
		Provider: provider,
		Message:  "Missing required fields: " + strings.Join(fields, ", "),
		Fields:   append([]string(nil), fields...),
	}
}

// NewValidationError reports a malformed field value.
func NewValidationError(provider ProviderType, field, reason string) *Error {
	return &Error{
		Kind:     KindValidation,
		Provider: provider,
		Message:  fmt.Sprintf("Invalid field %s: %s", field, reason),
		Fields:   []string{field},
	}
}

func NewUnsupportedProviderError(providerType string) *Error {
	return &Error{
		Kind:    KindUnsupportedProvider,
		Message: fmt.Sprintf("Unsupported provider type: %q", providerType),
	}
}

func NewInvalidDomainFormatError(domain string) *Error {
	return &Error{
		Kind:     KindInvalidDomainFormat,
		Provider: ProviderOkta,
		Message:  fmt.Sprintf("Invalid domain format: %q is not an <org>.okta.com domain", domain),
		Fields:   []string{"domain"},
	}
}

func NewInvalidCredentialsError(provider ProviderType, detail string, cause error) *Error {
	return &Error{
		Kind:     KindInvalidCredentials,
		Provider: provider,
		Message:  "Invalid credentials: " + detail,
		Err:      cause,
	}
}

func NewRateLimitedError(provider ProviderType, retryAfter time.Duration) *Error {
	return &Error{
		Kind:           KindRateLimited,
		Provider:       provider,
		Message:        fmt.Sprintf("Service temporarily unavailable: %s rate limit exceeded, retry later", provider.DisplayName()),
		UpstreamStatus: http.StatusTooManyRequests,
		RetryAfter:     retryAfter,
	}
}

func NewQuotaExceededError(provider ProviderType, retryAfter time.Duration) *Error {
	return &Error{
		Kind:           KindQuotaExceeded,
		Provider:       provider,
		Message:        fmt.Sprintf("Service temporarily unavailable: %s API quota exceeded", provider.DisplayName()),
		UpstreamStatus: http.StatusForbidden,
		RetryAfter:     retryAfter,
	}
}

func NewTimeoutError(provider ProviderType, cause error) *Error {
	return &Error{
		Kind:     KindTimeout,
		Provider: provider,
		Message:  fmt.Sprintf("Request timeout: %s did not respond in time", provider.DisplayName()),
		Err:      cause,
	}
}

func NewGenericAPIError(provider ProviderType, status int) *Error {
	return &Error{
		Kind:           KindGenericAPI,
		Provider:       provider,
		Message:        fmt.Sprintf("%s API error (status %d)", provider.DisplayName(), status),
		UpstreamStatus: status,
	}
}

func NewUnreachableError(provider ProviderType, cause error) *Error {
	return &Error{
		Kind:     KindUnreachable,
		Provider: provider,
		Message:  fmt.Sprintf("Connection to %s failed", provider.DisplayName()),
		Err:      cause,
	}
}

func NewMalformedResponseError(provider ProviderType, detail string, cause error) *Error {
	return &Error{
		Kind:     KindMalformedResponse,
		Provider: provider,
		Message:  fmt.Sprintf("Data processing error: %s %s", provider.DisplayName(), detail),
		Err:      cause,
	}
}

func NewIntegrationNotFoundError(id string) *Error {
	return &Error{
		Kind:    KindIntegrationNotFound,
		Message: "IDP not found",
		Fields:  []string{"idp_id"},
		Err:     fmt.Errorf("integration %q does not exist", id),
	}
}

func NewIntegrationNotActiveError(provider ProviderType, status Status) *Error {
	return &Error{
		Kind:     KindIntegrationNotActive,
		Provider: provider,
		Message:  fmt.Sprintf("IDP not active (status: %s)", status),
	}
}
