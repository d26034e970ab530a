package billing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/edusummarizer/hub/internal/auth"
	"github.com/edusummarizer/hub/internal/config"
	"github.com/edusummarizer/hub/internal/users"
)

const webhookSecret = "whsec_test_secret"

func newBillingFixture(t *testing.T) (*Handler, *users.MemoryRepository, *users.User) {
	t.Helper()
	repo := users.NewMemoryRepository()
	svc := users.NewService(repo)
	user, err := svc.Create(t.Context(), "tester", "tester@example.com", "hash")
	require.NoError(t, err)

	billing := NewService(svc, config.StripeConfig{
		SecretKey:     "sk_test_key",
		WebhookSecret: webhookSecret,
	})
	return NewHandler(billing), repo, user
}

// signPayload produces a Stripe-Signature header value for the payload the
// same way Stripe does: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func webhookEvent(eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"object": "event",
		"api_version": %q,
		"type": %q,
		"data": {
			"object": {
				"id": "in_test_1",
				"object": "invoice",
				"customer_email": "tester@example.com",
				"subscription": "sub_test_123"
			}
		}
	}`, stripe.APIVersion, eventType))
}

func postWebhook(t *testing.T, h *Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func TestWebhook_PaymentSucceededUpgradesUser(t *testing.T) {
	h, repo, user := newBillingFixture(t)
	payload := webhookEvent("invoice.payment_succeeded")

	rec := postWebhook(t, h, payload, signPayload(payload, webhookSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	stored, err := repo.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierPremium, stored.Tier)
	require.NotNil(t, stored.SubscriptionID)
	assert.Equal(t, "sub_test_123", *stored.SubscriptionID)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	h, repo, user := newBillingFixture(t)
	payload := webhookEvent("invoice.payment_succeeded")

	t.Run("wrong secret", func(t *testing.T) {
		rec := postWebhook(t, h, payload, signPayload(payload, "whsec_wrong", time.Now()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"detail":"Invalid signature"}`, rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		rec := postWebhook(t, h, payload, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		rec := postWebhook(t, h, payload, signPayload(payload, webhookSecret, time.Now().Add(-time.Hour)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	stored, err := repo.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierFree, stored.Tier, "unverified events must not change tiers")
}

func TestWebhook_PaymentFailedKeepsTier(t *testing.T) {
	h, repo, user := newBillingFixture(t)
	payload := webhookEvent("invoice.payment_failed")

	rec := postWebhook(t, h, payload, signPayload(payload, webhookSecret, time.Now()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	stored, err := repo.GetByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, users.TierFree, stored.Tier)
}

func TestWebhook_UnhandledEventTypeAcknowledged(t *testing.T) {
	h, _, _ := newBillingFixture(t)
	payload := webhookEvent("customer.subscription.updated")

	rec := postWebhook(t, h, payload, signPayload(payload, webhookSecret, time.Now()))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSubscription_Validation(t *testing.T) {
	h, _, user := newBillingFixture(t)

	body := strings.NewReader(`{"price_id": "  "}`)
	req := httptest.NewRequest(http.MethodPost, "/stripe/create-subscription", body)
	req = req.WithContext(auth.WithUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.CreateSubscription(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"price_id is required"}`, rec.Body.String())
}

func TestCreateSubscription_RequiresAuthenticatedUser(t *testing.T) {
	h, _, _ := newBillingFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/stripe/create-subscription",
		strings.NewReader(`{"price_id":"price_premium"}`))
	rec := httptest.NewRecorder()
	h.CreateSubscription(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
