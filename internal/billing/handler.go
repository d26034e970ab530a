package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/edusummarizer/hub/internal/api"
	"github.com/edusummarizer/hub/internal/auth"
)

// maxWebhookBody caps webhook payload reads. Stripe events are small.
const maxWebhookBody = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type CreateSubscriptionRequest struct {
	PriceID string `json:"price_id"`
}

type CreateSubscriptionResponse struct {
	ClientSecret   string `json:"client_secret"`
	SubscriptionID string `json:"subscription_id"`
}

func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.PriceID) == "" {
		api.HandleError(w, api.NewValidationError("price_id is required"))
		return
	}

	clientSecret, subscriptionID, err := h.service.CreateSubscription(r.Context(), user, req.PriceID)
	if err != nil {
		// Stripe's message is surfaced so the frontend can show why the
		// subscription could not be created.
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	api.JSON(w, http.StatusOK, CreateSubscriptionResponse{
		ClientSecret:   clientSecret,
		SubscriptionID: subscriptionID,
	})
}

// Webhook receives Stripe events. It is unauthenticated; trust comes from the
// signature header alone.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("Invalid payload"))
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			api.HandleError(w, api.NewBadRequestError("Invalid signature"))
			return
		}
		slog.Error("webhook processing failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{"status": "success"})
}
