package fhir

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorMapping binds a sentinel error to the status and issue type it is
// rendered with.
type ErrorMapping struct {
	Target    error
	Status    int
	IssueType string
}

// NotFound maps target to a 404 not-found outcome.
func NotFound(target error) ErrorMapping {
	return ErrorMapping{Target: target, Status: http.StatusNotFound, IssueType: IssueTypeNotFound}
}

// Invalid maps target to a 400 invalid outcome.
func Invalid(target error) ErrorMapping {
	return ErrorMapping{Target: target, Status: http.StatusBadRequest, IssueType: IssueTypeInvalid}
}

// Classify returns the status and OperationOutcome for err using the first
// mapping whose Target matches. ok is false when nothing matched.
func Classify(err error, mappings ...ErrorMapping) (status int, outcome *OperationOutcome, ok bool) {
	for _, m := range mappings {
		if errors.Is(err, m.Target) {
			return m.Status, NewOperationOutcome(IssueSeverityError, m.IssueType, err.Error()), true
		}
	}
	return 0, nil, false
}

// ErrorResponse writes err as an OperationOutcome when a mapping matches.
// Unmatched errors are returned so the echo error handler renders a 500.
func ErrorResponse(c echo.Context, err error, mappings ...ErrorMapping) error {
	if status, outcome, ok := Classify(err, mappings...); ok {
		return c.JSON(status, outcome)
	}
	return err
}
