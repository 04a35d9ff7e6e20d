package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/concierge/ai/retrieval"
	"github.com/hrygo/concierge/ai/routing"
	"github.com/hrygo/concierge/ai/textnorm"
)

type analyzeRequest struct {
	Message string `json:"message"`
}

// Analyze classifies a single message without touching the cache.
func (s *APIV1Service) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, CodeInvalidBody, "request body must be a JSON object")
	}
	if strings.TrimSpace(req.Message) == "" {
		return respondError(c, http.StatusBadRequest, CodeMissingText, "message is required")
	}

	ctx := c.Request().Context()
	result, err := s.Concierge.Router.Analyze(ctx, req.Message)
	if err != nil {
		if errors.Is(err, routing.ErrEmptyInput) {
			return respondError(c, http.StatusBadRequest, CodeMissingText, "message is required")
		}
		slog.ErrorContext(ctx, "analyze failed", "error", err)
		return respondInternal(c)
	}
	return c.JSON(http.StatusOK, result)
}

// Query runs the full pipeline and returns the possibly cached answer.
func (s *APIV1Service) Query(c echo.Context) error {
	var req retrieval.Request
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, CodeInvalidBody, "request body must be a JSON object")
	}
	if strings.TrimSpace(req.Message) == "" {
		return respondError(c, http.StatusBadRequest, CodeMissingText, "message is required")
	}

	ctx := c.Request().Context()
	resp, err := s.Concierge.Pipeline.Handle(ctx, &req)
	if err != nil {
		if errors.Is(err, routing.ErrEmptyInput) {
			return respondError(c, http.StatusBadRequest, CodeMissingText, "message is required")
		}
		slog.ErrorContext(ctx, "concierge query failed", "error", err)
		return respondInternal(c)
	}
	return c.JSON(http.StatusOK, resp)
}

// CacheStats reports retrieval cache counters.
func (s *APIV1Service) CacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Concierge.Pipeline.Cache().Stats())
}

// ClearCache drops cached responses. With ?province= only the entries
// composed for that location go, which is the invalidation hook after its
// data changes; without it the whole cache is cleared.
func (s *APIV1Service) ClearCache(c echo.Context) error {
	ctx := c.Request().Context()
	cache := s.Concierge.Pipeline.Cache()

	if name := strings.TrimSpace(c.QueryParam("province")); name != "" {
		norm := textnorm.Normalize(name)
		doc, err := s.Concierge.Resolver.FindByProvinceExact(ctx, name)
		if err != nil {
			slog.ErrorContext(ctx, "resolve province for invalidation failed", "province", name, "error", err)
			return respondInternal(c)
		}
		if doc != nil {
			norm = doc.Norm
		}
		n, err := cache.InvalidatePrefix(ctx, retrieval.ProvincePrefix(norm))
		if err != nil {
			slog.ErrorContext(ctx, "cache invalidation failed", "backend", cache.Name(), "province", norm, "error", err)
			return respondInternal(c)
		}
		slog.InfoContext(ctx, "retrieval cache invalidated", "backend", cache.Name(), "province", norm, "count", n)
		return c.JSON(http.StatusOK, map[string]any{"province": norm, "invalidated": n, "backend": cache.Name()})
	}

	if err := cache.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "cache clear failed", "backend", cache.Name(), "error", err)
		return respondInternal(c)
	}
	slog.InfoContext(ctx, "retrieval cache cleared", "backend", cache.Name())
	return c.JSON(http.StatusOK, map[string]any{"cleared": true, "backend": cache.Name()})
}
