package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/concierge/internal/profile"
	"github.com/hrygo/concierge/server/service/concierge"
)

// Machine-readable error codes returned with 4xx/5xx responses.
const (
	CodeInvalidBody   = "invalid_body"
	CodeMissingText   = "missing_message"
	CodeMissingQuery  = "missing_query"
	CodeMissingPrefix = "missing_prefix"
	CodeInvalidLimit  = "invalid_limit"
	CodeInternal      = "internal_error"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type APIV1Service struct {
	Profile   *profile.Profile
	Concierge *concierge.Concierge
}

func NewAPIV1Service(profile *profile.Profile, c *concierge.Concierge) *APIV1Service {
	return &APIV1Service{Profile: profile, Concierge: c}
}

// RegisterRoutes mounts the v1 API under g (usually /api/v1).
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.POST("/concierge/analyze", s.Analyze)
	g.POST("/concierge/query", s.Query)
	g.GET("/concierge/cache", s.CacheStats)
	g.DELETE("/concierge/cache", s.ClearCache)

	g.GET("/locations/resolve", s.ResolveLocation)
	g.GET("/locations/autocomplete", s.AutocompleteLocations)
}

func respondError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{Code: code, Message: message})
}

func respondInternal(c echo.Context) error {
	return respondError(c, http.StatusInternalServerError, CodeInternal, "internal error")
}
