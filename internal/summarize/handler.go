// Package summarize serves POST /summarize/, the only metered operation:
// gate -> cache -> upstream -> cache commit + usage increment.
package summarize

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/edusummarizer/hub/internal/api"
	"github.com/edusummarizer/hub/internal/auth"
	"github.com/edusummarizer/hub/internal/cache"
	"github.com/edusummarizer/hub/internal/inference"
	"github.com/edusummarizer/hub/internal/quota"
	"github.com/edusummarizer/hub/internal/users"
)

const maxTextLength = 10000

type Handler struct {
	gate  *quota.Gate
	cache cache.Store
	ai    *inference.Client
}

func NewHandler(gate *quota.Gate, cacheStore cache.Store, ai *inference.Client) *Handler {
	return &Handler{gate: gate, cache: cacheStore, ai: ai}
}

type Request struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
	MinLength int    `json:"min_length"`
}

type Response struct {
	Summary    string     `json:"summary"`
	UsageCount int        `json:"usage_count"`
	Tier       users.Tier `json:"tier"`
}

func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if req.MaxLength == 0 {
		req.MaxLength = 150
	}
	if req.MinLength == 0 {
		req.MinLength = 50
	}

	if strings.TrimSpace(req.Text) == "" {
		api.HandleError(w, api.NewValidationError("Text cannot be empty"))
		return
	}
	if len(req.Text) > maxTextLength {
		api.HandleError(w, api.NewValidationError("Text is too long (max 10000 characters)"))
		return
	}

	if err := h.gate.Check(r.Context(), user); err != nil {
		api.HandleError(w, err)
		return
	}

	key := cache.Key("summarize", req.Text, req.MaxLength, req.MinLength)
	if summary, ok, err := h.cache.Get(r.Context(), key); err != nil {
		slog.Warn("cache lookup failed", "error", err)
	} else if ok {
		// Cache hit: no upstream call, so no usage increment.
		api.JSON(w, http.StatusOK, Response{
			Summary:    summary,
			UsageCount: user.UsageCount,
			Tier:       user.Tier,
		})
		return
	}

	summary, err := h.ai.Summarize(r.Context(), req.Text, req.MaxLength, req.MinLength)
	if err != nil {
		api.HandleError(w, mapInferenceError(err))
		return
	}

	// Success path: commit the cache entry and the usage counter. Failures
	// here are logged but do not fail the response.
	if err := h.cache.Set(r.Context(), key, summary); err != nil {
		slog.Warn("cache set failed", "error", err)
	}
	h.gate.RecordUse(r.Context(), user)

	api.JSON(w, http.StatusOK, Response{
		Summary:    summary,
		UsageCount: user.UsageCount,
		Tier:       user.Tier,
	})
}

func mapInferenceError(err error) error {
	switch {
	case errors.Is(err, inference.ErrNotConfigured):
		return api.ErrNotConfigured
	case errors.Is(err, inference.ErrTimeout):
		return api.ErrUpstreamTimeout
	case errors.Is(err, inference.ErrEmptyResult):
		return api.NewUpstreamError("AI service error: empty result")
	}
	var upErr *inference.UpstreamError
	if errors.As(err, &upErr) {
		return api.NewUpstreamError("AI service error: " + upErr.Message)
	}
	slog.Error("summarize failed", "error", err)
	return api.ErrInternalServer
}
