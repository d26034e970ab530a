// Package translate serves POST /translate/. Translation is quota-gated but
// never increments the usage counter; only summarization is metered.
package translate

import (
	"encoding/json"
	"errors"
	"fmt"
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

const maxTextLength = 5000

// supportedLanguages lists the target codes the translation models exist
// for. Order is fixed so the validation message is stable.
var supportedLanguages = []string{"es", "fr", "de", "it", "pt", "zh", "ja", "ko"}

func isSupported(lang string) bool {
	for _, code := range supportedLanguages {
		if code == lang {
			return true
		}
	}
	return false
}

type Handler struct {
	gate  *quota.Gate
	cache cache.Store
	ai    *inference.Client
}

func NewHandler(gate *quota.Gate, cacheStore cache.Store, ai *inference.Client) *Handler {
	return &Handler{gate: gate, cache: cacheStore, ai: ai}
}

type Request struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type Response struct {
	TranslatedText string     `json:"translated_text"`
	Tier           users.Tier `json:"tier"`
}

func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
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

	if strings.TrimSpace(req.Text) == "" {
		api.HandleError(w, api.NewValidationError("Text cannot be empty"))
		return
	}
	if len(req.Text) > maxTextLength {
		api.HandleError(w, api.NewValidationError("Text is too long (max 5000 characters)"))
		return
	}
	if !isSupported(req.TargetLanguage) {
		detail := fmt.Sprintf("Unsupported target language %q. Supported languages: %s",
			req.TargetLanguage, strings.Join(supportedLanguages, ", "))
		api.HandleError(w, api.NewValidationError(detail))
		return
	}

	if err := h.gate.Check(r.Context(), user); err != nil {
		api.HandleError(w, err)
		return
	}

	key := cache.Key("translate", req.Text, req.TargetLanguage)
	if translated, ok, err := h.cache.Get(r.Context(), key); err != nil {
		slog.Warn("cache lookup failed", "error", err)
	} else if ok {
		api.JSON(w, http.StatusOK, Response{TranslatedText: translated, Tier: user.Tier})
		return
	}

	translated, err := h.ai.Translate(r.Context(), req.Text, req.TargetLanguage)
	if err != nil {
		api.HandleError(w, mapInferenceError(err))
		return
	}

	if err := h.cache.Set(r.Context(), key, translated); err != nil {
		slog.Warn("cache set failed", "error", err)
	}

	api.JSON(w, http.StatusOK, Response{TranslatedText: translated, Tier: user.Tier})
}

func mapInferenceError(err error) error {
	switch {
	case errors.Is(err, inference.ErrNotConfigured):
		return api.ErrNotConfigured
	case errors.Is(err, inference.ErrTimeout):
		return api.ErrUpstreamTimeout
	case errors.Is(err, inference.ErrEmptyResult):
		return api.NewUpstreamError("Translation service error: empty result")
	}
	var upErr *inference.UpstreamError
	if errors.As(err, &upErr) {
		return api.NewUpstreamError("Translation service error: " + upErr.Message)
	}
	slog.Error("translate failed", "error", err)
	return api.ErrInternalServer
}
