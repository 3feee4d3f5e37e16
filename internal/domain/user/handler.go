package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/platform/auth"
	"github.com/namaste/namaste/internal/platform/fhir"
)

// Handler exposes login, token verification and user administration.
type Handler struct {
	svc      *Service
	verifier auth.TokenVerifier
}

func NewHandler(svc *Service, verifier auth.TokenVerifier) *Handler {
	return &Handler{svc: svc, verifier: verifier}
}

// RegisterRoutes mounts the public auth routes on api and the user routes
// behind bearer authentication.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.POST("/token/verify", h.VerifyToken)

	users := api.Group("/users", auth.BearerAuth(h.verifier))
	users.GET("/profile", h.GetProfile)
	users.PUT("/profile", h.UpdateProfile)
	users.GET("/stats", h.Stats)
	users.GET("/recent", h.Recent)
	users.GET("/search", h.Search)
	users.POST("/:abhaId/deactivate", h.Deactivate)
}

var errorMappings = []fhir.ErrorMapping{
	fhir.Invalid(ErrInvalidInput),
	fhir.Invalid(ErrSelfDeactivation),
	fhir.NotFound(ErrUserNotFound),
	{Target: ErrUserInactive, Status: http.StatusForbidden, IssueType: fhir.IssueTypeSecurity},
}

type tokenBody struct {
	Token     string `json:"token"`
	ABHAToken string `json:"abhaToken"`
}

// requestToken takes the token from the body, falling back to the
// Authorization header.
func requestToken(c echo.Context) (string, bool) {
	var body tokenBody
	_ = c.Bind(&body)
	for _, t := range []string{body.Token, body.ABHAToken} {
		if t != "" {
			return t, true
		}
	}
	return auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(c echo.Context) error {
	token, ok := requestToken(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, fhir.RequiredFieldOutcome("token"))
	}
	session, err := h.svc.Login(c.Request().Context(), token)
	if err != nil {
		var ve *auth.VerifyError
		if errors.As(err, &ve) {
			status, outcome := auth.Outcome(err)
			return c.JSON(status, outcome)
		}
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, session)
}

// VerifyToken handles POST /api/v1/token/verify. Rejected tokens are a 200
// with valid=false; key service failures keep their 502/503 status.
func (h *Handler) VerifyToken(c echo.Context) error {
	token, ok := requestToken(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, fhir.RequiredFieldOutcome("token"))
	}
	v, err := h.svc.VerifyToken(c.Request().Context(), token)
	if err != nil {
		status, outcome := auth.Outcome(err)
		return c.JSON(status, outcome)
	}
	return c.JSON(http.StatusOK, v)
}

func caller(c echo.Context) string {
	if p := auth.PayloadFromEcho(c); p != nil {
		return p.ABHANumber
	}
	return ""
}

// GetProfile handles GET /api/v1/users/profile
func (h *Handler) GetProfile(c echo.Context) error {
	u, err := h.svc.Profile(c.Request().Context(), caller(c))
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateProfile handles PUT /api/v1/users/profile
func (h *Handler) UpdateProfile(c echo.Context) error {
	var upd ContactUpdate
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "invalid request body"))
	}
	u, err := h.svc.UpdateContact(c.Request().Context(), caller(c), upd)
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, u)
}

// Stats handles GET /api/v1/users/stats
func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func queryLimit(c echo.Context) int {
	n, _ := strconv.Atoi(c.QueryParam("limit"))
	return n
}

func listResponse(users []*User) map[string]interface{} {
	if users == nil {
		users = []*User{}
	}
	return map[string]interface{}{"users": users, "total": len(users)}
}

// Recent handles GET /api/v1/users/recent?limit=
func (h *Handler) Recent(c echo.Context) error {
	users, err := h.svc.Recent(c.Request().Context(), queryLimit(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listResponse(users))
}

// Search handles GET /api/v1/users/search?q=&limit=
func (h *Handler) Search(c echo.Context) error {
	users, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), queryLimit(c))
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, listResponse(users))
}

// Deactivate handles POST /api/v1/users/:abhaId/deactivate
func (h *Handler) Deactivate(c echo.Context) error {
	target := c.Param("abhaId")
	if err := h.svc.Deactivate(c.Request().Context(), caller(c), target); err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, fhir.SuccessOutcome("user "+target+" deactivated"))
}
