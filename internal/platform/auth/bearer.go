package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/platform/fhir"
)

type contextKey string

const (
	payloadKey contextKey = "token_payload"
	tokenKey   contextKey = "access_token"
)

// BearerToken extracts the token from an "Authorization: Bearer <t>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// BearerAuth verifies the bearer token on every request and stores the
// payload on both the echo context and the request context. Rejections are
// written directly as OperationOutcome so the ABHA error code survives.
func BearerAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="abha"`)
				return c.JSON(http.StatusUnauthorized,
					fhir.SecurityOutcome("AUTHENTICATION_REQUIRED", "missing or invalid authorization header"))
			}

			payload, err := v.Verify(c.Request().Context(), token)
			if err != nil {
				status, outcome := Outcome(err)
				if status == http.StatusUnauthorized {
					c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="abha", error="invalid_token"`)
				}
				return c.JSON(status, outcome)
			}

			c.Set(string(payloadKey), payload)
			c.Set("abha_number", payload.ABHANumber)
			c.SetRequest(c.Request().WithContext(WithPayload(c.Request().Context(), payload, token)))
			return next(c)
		}
	}
}

// WithPayload attaches a verified payload and its raw token to ctx.
func WithPayload(ctx context.Context, p *TokenPayload, token string) context.Context {
	ctx = context.WithValue(ctx, payloadKey, p)
	return context.WithValue(ctx, tokenKey, token)
}

// PayloadFromContext returns the verified payload, or nil.
func PayloadFromContext(ctx context.Context) *TokenPayload {
	p, _ := ctx.Value(payloadKey).(*TokenPayload)
	return p
}

// TokenFromContext returns the raw bearer token the payload came from.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// PayloadFromEcho returns the payload stored by BearerAuth, or nil.
func PayloadFromEcho(c echo.Context) *TokenPayload {
	p, _ := c.Get(string(payloadKey)).(*TokenPayload)
	return p
}
