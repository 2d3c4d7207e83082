package dtos

import "errors"

// ErrorKind classifies a failure for HTTP status mapping and worker retry
// decisions. Kinds, not concrete type names, per the error taxonomy.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindAuthentication    ErrorKind = "authentication"
	KindPolicy            ErrorKind = "policy"
	KindDependency        ErrorKind = "dependency"
	KindNotFound          ErrorKind = "not_found"
	KindTerminalDelivery  ErrorKind = "terminal_delivery"
	KindTransientDelivery ErrorKind = "transient_delivery"
)

// Failure is the typed result threaded through ingress and the worker
// pipeline in place of exceptions-for-control-flow.
type Failure struct {
	Kind      ErrorKind
	Code      string
	Detail    string
	Retryable bool
}

func (f *Failure) Error() string {
	if f.Detail != "" {
		return f.Code + ": " + f.Detail
	}
	return f.Code
}

func NewFailure(kind ErrorKind, code, detail string, retryable bool) *Failure {
	return &Failure{Kind: kind, Code: code, Detail: detail, Retryable: retryable}
}

// Ingress-specific failure codes.
var (
	ErrAlreadyProcessed     = func(detail string) *Failure { return NewFailure(KindPolicy, "AlreadyProcessed", detail, false) }
	ErrUserServiceUnavailable = func(detail string) *Failure {
		return NewFailure(KindDependency, "UserServiceUnavailable", detail, true)
	}
	ErrBlockedByPreference = func(detail string) *Failure { return NewFailure(KindPolicy, "BlockedByPreference", detail, false) }
	ErrMissingRecipient    = func(detail string) *Failure { return NewFailure(KindValidation, "MissingRecipient", detail, false) }
	ErrQueueUnavailable    = func(detail string) *Failure { return NewFailure(KindDependency, "QueueUnavailable", detail, true) }
	ErrRateLimitExceeded   = func(detail string) *Failure { return NewFailure(KindPolicy, "RateLimitExceeded", detail, false) }
	ErrValidation          = func(detail string) *Failure { return NewFailure(KindValidation, "ValidationFailed", detail, false) }
	ErrUnauthorized        = func(detail string) *Failure { return NewFailure(KindAuthentication, "Unauthorized", detail, false) }
	ErrNotFound            = func(detail string) *Failure { return NewFailure(KindNotFound, "NotFound", detail, false) }
)

// AsFailure unwraps err into a *Failure, or wraps it as an opaque dependency
// failure if it isn't already one.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(KindDependency, "Internal", err.Error(), true)
}

// StatusCode maps a Failure to the HTTP status the ingress API returns.
func (f *Failure) StatusCode() int {
	if f.Code == "RateLimitExceeded" {
		return 429
	}
	switch f.Kind {
	case KindValidation:
		return 400
	case KindAuthentication:
		return 401
	case KindPolicy:
		return 403
	case KindNotFound:
		return 404
	case KindDependency:
		return 503
	default:
		return 500
	}
}
