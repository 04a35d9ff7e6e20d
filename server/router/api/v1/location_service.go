package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/concierge/ai/location"
)

type resolveResponse struct {
	Found    bool               `json:"found"`
	Method   string             `json:"method,omitempty"`
	Location *location.Document `json:"location,omitempty"`
}

type autocompleteResponse struct {
	Items []location.Document `json:"items"`
}

// ResolveLocation resolves ?province= by exact name tiers or ?text= by
// scanning the text. Not found is a 200 with found=false.
func (s *APIV1Service) ResolveLocation(c echo.Context) error {
	province := strings.TrimSpace(c.QueryParam("province"))
	text := strings.TrimSpace(c.QueryParam("text"))
	if province == "" && text == "" {
		return respondError(c, http.StatusBadRequest, CodeMissingQuery, "either province or text is required")
	}

	ctx := c.Request().Context()
	resolver := s.Concierge.Resolver
	var (
		doc    *location.Document
		method string
		err    error
	)
	if province != "" {
		method = "province_exact"
		doc, err = resolver.FindByProvinceExact(ctx, province)
	} else {
		method = "text"
		doc, err = resolver.FindInText(ctx, text)
	}
	if err != nil {
		slog.ErrorContext(ctx, "location lookup failed", "method", method, "error", err)
		return respondInternal(c)
	}
	if doc == nil {
		return c.JSON(http.StatusOK, resolveResponse{Found: false})
	}
	return c.JSON(http.StatusOK, resolveResponse{Found: true, Method: method, Location: doc})
}

// AutocompleteLocations lists locations whose name starts with ?prefix=.
func (s *APIV1Service) AutocompleteLocations(c echo.Context) error {
	prefix := strings.TrimSpace(c.QueryParam("prefix"))
	if prefix == "" {
		return respondError(c, http.StatusBadRequest, CodeMissingPrefix, "prefix is required")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return respondError(c, http.StatusBadRequest, CodeInvalidLimit, "limit must be a non-negative integer")
		}
		limit = n
	}

	ctx := c.Request().Context()
	docs, err := s.Concierge.Resolver.Autocomplete(ctx, prefix, limit)
	if err != nil {
		slog.ErrorContext(ctx, "autocomplete failed", "prefix", prefix, "error", err)
		return respondInternal(c)
	}
	return c.JSON(http.StatusOK, autocompleteResponse{Items: docs})
}
