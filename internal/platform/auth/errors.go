package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/namaste/namaste/internal/platform/fhir"
)

// ErrorKind classifies why a token was rejected.
type ErrorKind int

const (
	KindTokenMalformed ErrorKind = iota + 1
	KindTokenExpired
	KindClaimsInvalid
	KindKeyFetchFailed
	KindServiceUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindTokenMalformed:
		return "token_malformed"
	case KindTokenExpired:
		return "token_expired"
	case KindClaimsInvalid:
		return "claims_invalid"
	case KindKeyFetchFailed:
		return "key_fetch_failed"
	case KindServiceUnavailable:
		return "service_unavailable"
	}
	return "unknown"
}

// Code is the machine-readable code carried on the OperationOutcome.
func (k ErrorKind) Code() string {
	switch k {
	case KindTokenMalformed:
		return "ABHA_TOKEN_MALFORMED"
	case KindTokenExpired:
		return "ABHA_TOKEN_EXPIRED"
	case KindClaimsInvalid:
		return "ABHA_TOKEN_INVALID"
	case KindKeyFetchFailed:
		return "KEY_FETCH_FAILED"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	}
	return "INTERNAL_ERROR"
}

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindKeyFetchFailed:
		return http.StatusBadGateway
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

// VerifyError is returned by Verifier.Verify. Stage is the last state the
// token reached before rejection.
type VerifyError struct {
	Kind   ErrorKind
	Stage  State
	Reason string
	Err    error
}

func (e *VerifyError) Error() string {
	msg := "abha token verification failed: " + e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Is matches the kind-only sentinels below.
func (e *VerifyError) Is(target error) bool {
	t, ok := target.(*VerifyError)
	if !ok {
		return false
	}
	return t.Reason == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrTokenMalformed     = &VerifyError{Kind: KindTokenMalformed}
	ErrTokenExpired       = &VerifyError{Kind: KindTokenExpired}
	ErrClaimsInvalid      = &VerifyError{Kind: KindClaimsInvalid}
	ErrKeyFetchFailed     = &VerifyError{Kind: KindKeyFetchFailed}
	ErrServiceUnavailable = &VerifyError{Kind: KindServiceUnavailable}
)

func reject(kind ErrorKind, stage State, reason string, err error) *VerifyError {
	return &VerifyError{Kind: kind, Stage: stage, Reason: reason, Err: err}
}

// Outcome maps a verification error to its HTTP status and OperationOutcome.
func Outcome(err error) (int, *fhir.OperationOutcome) {
	var ve *VerifyError
	if !errors.As(err, &ve) {
		return http.StatusUnauthorized, fhir.SecurityOutcome(KindClaimsInvalid.Code(), "token verification failed")
	}
	diag := fmt.Sprintf("token rejected: %s", ve.Kind)
	if ve.Reason != "" {
		diag += " (" + ve.Reason + ")"
	}
	if ve.Kind.HTTPStatus() == http.StatusUnauthorized {
		return ve.Kind.HTTPStatus(), fhir.SecurityOutcome(ve.Kind.Code(), diag)
	}
	return ve.Kind.HTTPStatus(), fhir.ExceptionOutcome(ve.Kind.Code(), diag)
}
