package fhir

import "fmt"

// OperationOutcome severity levels defined by FHIR R4.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes defined by FHIR R4.
const (
	IssueTypeInvalid       = "invalid"
	IssueTypeStructure     = "structure"
	IssueTypeRequired      = "required"
	IssueTypeNotFound      = "not-found"
	IssueTypeProcessing    = "processing"
	IssueTypeSecurity      = "security"
	IssueTypeThrottled     = "throttled"
	IssueTypeNotSupported  = "not-supported"
	IssueTypeTooCostly     = "too-costly"
	IssueTypeException     = "exception"
	IssueTypeTimeout       = "timeout"
	IssueTypeInformational = "informational"
)

// ErrorCodeSystem identifies the machine-readable error codes attached to
// issue details (ABHA_TOKEN_EXPIRED, KEY_FETCH_FAILED, ...).
const ErrorCodeSystem = "http://terminology.gov.in/namaste/CodeSystem/error-code"

// OutcomeBuilder provides a fluent API for constructing OperationOutcome resources.
type OutcomeBuilder struct {
	outcome *OperationOutcome
}

func NewOutcomeBuilder() *OutcomeBuilder {
	return &OutcomeBuilder{
		outcome: &OperationOutcome{ResourceType: "OperationOutcome"},
	}
}

// AddIssue adds a single issue to the OperationOutcome.
func (b *OutcomeBuilder) AddIssue(severity, code, diagnostics string) *OutcomeBuilder {
	b.outcome.Issue = append(b.outcome.Issue, OperationOutcomeIssue{
		Severity:    severity,
		Code:        code,
		Diagnostics: diagnostics,
	})
	return b
}

// AddCodedIssue adds an issue whose details carry an application error code.
func (b *OutcomeBuilder) AddCodedIssue(severity, code, errorCode, diagnostics string) *OutcomeBuilder {
	b.outcome.Issue = append(b.outcome.Issue, OperationOutcomeIssue{
		Severity:    severity,
		Code:        code,
		Diagnostics: diagnostics,
		Details: &CodeableConcept{
			Coding: []Coding{{System: ErrorCodeSystem, Code: errorCode}},
			Text:   diagnostics,
		},
	})
	return b
}

func (b *OutcomeBuilder) Build() *OperationOutcome {
	return b.outcome
}

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}

// ErrorCode returns the application error code of the first issue, if any.
func (o *OperationOutcome) ErrorCode() string {
	for _, issue := range o.Issue {
		if issue.Details == nil {
			continue
		}
		for _, c := range issue.Details.Coding {
			if c.System == ErrorCodeSystem {
				return c.Code
			}
		}
	}
	return ""
}

// ValidationOutcome creates an OperationOutcome for validation errors.
func ValidationOutcome(field, message string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    IssueSeverityError,
				Code:        IssueTypeInvalid,
				Diagnostics: fmt.Sprintf("%s: %s", field, message),
				Expression:  []string{field},
			},
		},
	}
}

// RequiredFieldOutcome creates an OperationOutcome for a missing required field.
func RequiredFieldOutcome(field string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    IssueSeverityError,
				Code:        IssueTypeRequired,
				Diagnostics: fmt.Sprintf("%s is required", field),
				Expression:  []string{field},
			},
		},
	}
}

// SecurityOutcome is the 401 body for a rejected credential.
func SecurityOutcome(errorCode, diagnostics string) *OperationOutcome {
	return NewOutcomeBuilder().AddCodedIssue(IssueSeverityError, IssueTypeSecurity, errorCode, diagnostics).Build()
}

// ExceptionOutcome is the 5xx body for an upstream or internal failure.
func ExceptionOutcome(errorCode, diagnostics string) *OperationOutcome {
	return NewOutcomeBuilder().AddCodedIssue(IssueSeverityError, IssueTypeException, errorCode, diagnostics).Build()
}

// InternalErrorOutcome creates an OperationOutcome for internal server errors.
func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}

// SuccessOutcome creates a success OperationOutcome with severity=information.
func SuccessOutcome(message string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityInformation, IssueTypeInformational, message)
}

// ThrottleOutcome is the 429 body.
func ThrottleOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeThrottled, "rate limit exceeded")
}
