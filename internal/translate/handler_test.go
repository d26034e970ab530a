package translate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusummarizer/hub/internal/auth"
	"github.com/edusummarizer/hub/internal/cache"
	"github.com/edusummarizer/hub/internal/config"
	"github.com/edusummarizer/hub/internal/inference"
	"github.com/edusummarizer/hub/internal/quota"
	"github.com/edusummarizer/hub/internal/users"
)

type fixture struct {
	handler  *Handler
	repo     *users.MemoryRepository
	user     *users.User
	upstream *httptest.Server
	calls    atomic.Int64
}

func newFixture(t *testing.T, upstreamFn http.HandlerFunc) *fixture {
	t.Helper()

	f := &fixture{}
	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		upstreamFn(w, r)
	}))
	t.Cleanup(f.upstream.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisStore(rdb, time.Hour)

	f.repo = users.NewMemoryRepository()
	svc := users.NewService(f.repo)
	user, err := svc.Create(t.Context(), "tester", "tester@example.com", "hash")
	require.NoError(t, err)
	f.user = user

	ai := inference.NewClient(config.InferenceConfig{
		APIKey:  "hf_test_key",
		BaseURL: f.upstream.URL,
		Timeout: 5 * time.Second,
	})
	f.handler = NewHandler(quota.NewGate(f.repo), store, ai)
	return f
}

func (f *fixture) do(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/translate/", bytes.NewReader(raw))
	req = req.WithContext(auth.WithUser(req.Context(), f.user))
	rec := httptest.NewRecorder()
	f.handler.Translate(rec, req)
	return rec
}

func translationUpstream(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"translation_text":%q}]`, text)
	}
}

func TestTranslate_Success(t *testing.T) {
	f := newFixture(t, translationUpstream("hola mundo"))

	rec := f.do(t, map[string]any{"text": "hello world", "target_language": "es"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hola mundo", resp.TranslatedText)
	assert.Equal(t, users.TierFree, resp.Tier)
}

func TestTranslate_DoesNotConsumeQuota(t *testing.T) {
	f := newFixture(t, translationUpstream("bonjour"))

	for i := 0; i < 5; i++ {
		rec := f.do(t, map[string]any{"text": fmt.Sprintf("hello %d", i), "target_language": "fr"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	stored, err := f.repo.GetByID(t.Context(), f.user.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UsageCount, "translation must not increment usage")
}

func TestTranslate_QuotaStillGatesExhaustedUsers(t *testing.T) {
	f := newFixture(t, translationUpstream("unused"))
	for i := 0; i < quota.FreeMonthlyLimit; i++ {
		require.NoError(t, f.repo.IncrementUsage(t.Context(), f.user.ID))
	}
	f.user.UsageCount = quota.FreeMonthlyLimit

	rec := f.do(t, map[string]any{"text": "hello", "target_language": "es"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, f.calls.Load())
}

func TestTranslate_UnsupportedLanguage(t *testing.T) {
	f := newFixture(t, translationUpstream("unused"))

	rec := f.do(t, map[string]any{"text": "hello", "target_language": "xx"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `Unsupported target language \"xx\"`)
	assert.Contains(t, body, strings.Join(supportedLanguages, ", "))
	assert.Zero(t, f.calls.Load())
}

func TestTranslate_Validation(t *testing.T) {
	f := newFixture(t, translationUpstream("unused"))

	t.Run("empty text", func(t *testing.T) {
		rec := f.do(t, map[string]any{"text": " ", "target_language": "es"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"detail":"Text cannot be empty"}`, rec.Body.String())
	})

	t.Run("text too long", func(t *testing.T) {
		rec := f.do(t, map[string]any{
			"text":            strings.Repeat("a", maxTextLength+1),
			"target_language": "es",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"detail":"Text is too long (max 5000 characters)"}`, rec.Body.String())
	})
}

func TestTranslate_CacheHitSkipsUpstream(t *testing.T) {
	f := newFixture(t, translationUpstream("ciao"))
	body := map[string]any{"text": "hello", "target_language": "it"}

	f.do(t, body)
	f.do(t, body)
	assert.EqualValues(t, 1, f.calls.Load())

	// A different target language is a different cache entry.
	f.do(t, map[string]any{"text": "hello", "target_language": "de"})
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestTranslate_UpstreamFailure(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model loading"}`, http.StatusServiceUnavailable)
	})

	rec := f.do(t, map[string]any{"text": "hello", "target_language": "es"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Translation service error")
}
