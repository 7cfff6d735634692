package models

import (
	"math"
	"slices"
	"time"
)

// ErrorKind classifies a task failure.
type ErrorKind string

const (
	ErrorKindTransientService     ErrorKind = "transient-service"
	ErrorKindResourceExhausted    ErrorKind = "resource-exhausted"
	ErrorKindClientTimeout        ErrorKind = "client-timeout"
	ErrorKindConnectorServerError ErrorKind = "connector-server-error"
	ErrorKindDomainInvalid        ErrorKind = "domain-invalid"
)

// Retryable is false only for domain-invalid; a policy may still decline to
// list a retryable kind.
func (k ErrorKind) Retryable() bool {
	return k != ErrorKindDomainInvalid
}

const (
	DefaultRetryIntervalSeconds = 2
	DefaultRetryMaxAttempts     = 6
	DefaultRetryBackoffRate     = 2
)

// DefaultRetryableKinds is the set every task in the import workflow retries.
var DefaultRetryableKinds = []ErrorKind{
	ErrorKindTransientService,
	ErrorKindResourceExhausted,
	ErrorKindClientTimeout,
}

// RetryPolicy retries errors of the listed kinds. MaxAttempts counts the first
// attempt, so MaxAttempts 1 means no retry.
type RetryPolicy struct {
	ErrorEquals     []ErrorKind `json:"errorEquals"                yaml:"errorEquals"               validate:"required,min=1,dive,oneof=transient-service resource-exhausted client-timeout connector-server-error domain-invalid"`
	IntervalSeconds float64     `json:"intervalSeconds"            yaml:"intervalSeconds"           validate:"gt=0"`
	MaxAttempts     int         `json:"maxAttempts"                yaml:"maxAttempts"               validate:"min=1"`
	BackoffRate     float64     `json:"backoffRate"                yaml:"backoffRate"               validate:"gte=1"`
	MaxDelaySeconds float64     `json:"maxDelaySeconds,omitempty" yaml:"maxDelaySeconds,omitempty" validate:"gte=0"`
}

// DefaultRetryPolicy returns the policy used by every task of the import workflow.
func DefaultRetryPolicy(extra ...ErrorKind) RetryPolicy {
	kinds := slices.Clone(DefaultRetryableKinds)
	kinds = append(kinds, extra...)

	return RetryPolicy{
		ErrorEquals:     kinds,
		IntervalSeconds: DefaultRetryIntervalSeconds,
		MaxAttempts:     DefaultRetryMaxAttempts,
		BackoffRate:     DefaultRetryBackoffRate,
	}
}

// Matches reports whether the policy retries errors of kind.
func (p RetryPolicy) Matches(kind ErrorKind) bool {
	return kind.Retryable() && slices.Contains(p.ErrorEquals, kind)
}

// Delay returns the wait before retry number attempt (1-based), expressed in
// multiples of unit: interval * rate^(attempt-1), capped by MaxDelaySeconds.
func (p RetryPolicy) Delay(attempt int, unit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	seconds := p.IntervalSeconds * math.Pow(p.BackoffRate, float64(attempt-1))
	if p.MaxDelaySeconds > 0 && seconds > p.MaxDelaySeconds {
		seconds = p.MaxDelaySeconds
	}

	return time.Duration(seconds * float64(unit))
}
