package quiz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/edusummarizer/hub/internal/api"
	"github.com/edusummarizer/hub/internal/auth"
	"github.com/edusummarizer/hub/internal/cache"
	"github.com/edusummarizer/hub/internal/quota"
	"github.com/edusummarizer/hub/internal/users"
)

type Handler struct {
	gate  *quota.Gate
	cache cache.Store
}

func NewHandler(gate *quota.Gate, cacheStore cache.Store) *Handler {
	return &Handler{gate: gate, cache: cacheStore}
}

type Request struct {
	Summary      string `json:"summary"`
	NumQuestions int    `json:"num_questions"`
}

type Response struct {
	Questions []Question `json:"questions"`
	Tier      users.Tier `json:"tier"`
}

func (h *Handler) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	req := Request{NumQuestions: 5}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if strings.TrimSpace(req.Summary) == "" {
		api.HandleError(w, api.NewValidationError("Summary cannot be empty"))
		return
	}
	if req.NumQuestions < 1 {
		api.HandleError(w, api.NewValidationError("num_questions must be at least 1"))
		return
	}

	// The gate enforces the free-tier question ceiling and still runs the
	// lazy usage reset, but quiz generation never increments the counter.
	if err := h.gate.CheckQuestionCount(r.Context(), user, req.NumQuestions); err != nil {
		api.HandleError(w, err)
		return
	}

	key := cache.Key("quiz", req.Summary, req.NumQuestions)
	if raw, ok, err := h.cache.Get(r.Context(), key); err != nil {
		slog.Warn("cache lookup failed", "error", err)
	} else if ok {
		var questions []Question
		if err := json.Unmarshal([]byte(raw), &questions); err == nil {
			api.JSON(w, http.StatusOK, Response{Questions: questions, Tier: user.Tier})
			return
		}
		slog.Warn("discarding undecodable cached quiz", "key", key)
	}

	questions := Generate(req.Summary, req.NumQuestions)

	if raw, err := json.Marshal(questions); err == nil {
		if err := h.cache.Set(r.Context(), key, string(raw)); err != nil {
			slog.Warn("cache set failed", "error", err)
		}
	}

	api.JSON(w, http.StatusOK, Response{Questions: questions, Tier: user.Tier})
}
