package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusummarizer/hub/internal/api"
	"github.com/edusummarizer/hub/internal/auth"
	"github.com/edusummarizer/hub/internal/billing"
	"github.com/edusummarizer/hub/internal/cache"
	"github.com/edusummarizer/hub/internal/config"
	"github.com/edusummarizer/hub/internal/inference"
	"github.com/edusummarizer/hub/internal/quiz"
	"github.com/edusummarizer/hub/internal/quota"
	"github.com/edusummarizer/hub/internal/summarize"
	"github.com/edusummarizer/hub/internal/translate"
	"github.com/edusummarizer/hub/internal/upload"
	"github.com/edusummarizer/hub/internal/users"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"summary_text":"routed summary"}]`)
	}))
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := users.NewMemoryRepository()
	userSvc := users.NewService(repo)
	jwtManager := auth.NewJWTManager("test-secret-at-least-32-characters!", 30*time.Minute)
	authHandler := auth.NewHandler(jwtManager, userSvc)

	gate := quota.NewGate(repo)
	store := cache.NewRedisStore(rdb, time.Hour)
	ai := inference.NewClient(config.InferenceConfig{
		APIKey:  "hf_test_key",
		BaseURL: upstream.URL,
		Timeout: 5 * time.Second,
	})

	billingSvc := billing.NewService(userSvc, config.StripeConfig{
		SecretKey:     "sk_test",
		WebhookSecret: "whsec_test",
	})

	return api.NewRouter(nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Me:       authHandler.Me,

		Summarize:    summarize.NewHandler(gate, store, ai).Summarize,
		Translate:    translate.NewHandler(gate, store, ai).Translate,
		GenerateQuiz: quiz.NewHandler(gate, store).GenerateQuiz,
		Upload:       upload.NewHandler().Upload,

		CreateSubscription: billing.NewHandler(billingSvc).CreateSubscription,
		StripeWebhook:      billing.NewHandler(billingSvc).Webhook,

		AuthMiddleware: auth.Middleware(jwtManager, userSvc),
	})
}

func postJSON(t *testing.T, router http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := postJSON(t, router, "/auth/register", "", map[string]string{
		"username": "student",
		"email":    "student@example.com",
		"password": "supersecret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	require.Equal(t, "bearer", token.TokenType)
	return token.AccessToken
}

func TestRouter_RootAndHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to EduSummarizer Hub API"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestRouter_ReadinessDegradedWithoutDatabase(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestRouter_RegisterLoginAndSummarize(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router)

	// Login with the same credentials works too.
	rec := postJSON(t, router, "/auth/login", "", map[string]string{
		"email":    "student@example.com",
		"password": "supersecret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/summarize/", token, map[string]any{"text": "a long article"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "routed summary")

	// /auth/me reflects the consumed usage.
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	var me struct {
		Email      string `json:"email"`
		UsageCount int    `json:"usage_count"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &me))
	assert.Equal(t, "student@example.com", me.Email)
	assert.Equal(t, 1, me.UsageCount)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/summarize/", "/translate/", "/quiz/", "/upload/", "/stripe/create-subscription"} {
		rec := postJSON(t, router, path, "", map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "expected %s to require auth", path)
		assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())
	}
}

func TestRouter_WebhookIsPublic(t *testing.T) {
	router := newTestRouter(t)

	// No bearer token: the route is reachable and fails on the signature,
	// not on authentication.
	rec := postJSON(t, router, "/stripe/webhook", "", map[string]any{"type": "invoice.payment_succeeded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid signature"}`, rec.Body.String())
}

func TestRouter_QuizAndTranslateRoutes(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router)

	rec := postJSON(t, router, "/quiz/", token, map[string]any{
		"summary":       "photosynthesis converts sunlight into chemical energy",
		"num_questions": 2,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/translate/", token, map[string]any{
		"text":            "hello",
		"target_language": "xx",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported target language")
}
