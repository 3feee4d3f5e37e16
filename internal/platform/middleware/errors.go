package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/fhir"
)

// HTTPErrorHandler renders every error that escapes a handler as an
// OperationOutcome. Handlers that already wrote a response are left alone.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				err = he.Internal
			}
		}

		if status >= 500 {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Int("status", status).Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, OutcomeForStatus(status, msg))
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

// OutcomeForStatus maps an HTTP status to the matching OperationOutcome.
func OutcomeForStatus(status int, msg string) *fhir.OperationOutcome {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeInvalid, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeSecurity, msg)
	case http.StatusNotFound:
		return fhir.NotFoundOutcome(msg)
	case http.StatusMethodNotAllowed:
		return fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotSupported, msg)
	case http.StatusRequestEntityTooLarge:
		return fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeTooCostly, msg)
	case http.StatusTooManyRequests:
		return fhir.ThrottleOutcome()
	case http.StatusGatewayTimeout:
		return fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeTimeout, msg)
	}
	if status >= 500 {
		return fhir.InternalErrorOutcome(msg)
	}
	return fhir.ErrorOutcome(msg)
}
