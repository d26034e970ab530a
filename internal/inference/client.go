// Package inference wraps the Hugging Face Inference API calls behind the
// summarize and translate endpoints.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/edusummarizer/hub/internal/config"
	"github.com/edusummarizer/hub/internal/metrics"
)

const (
	summarizeModel    = "facebook/bart-large-cnn"
	translateModelFmt = "Helsinki-NLP/opus-mt-en-%s"
)

var (
	// ErrNotConfigured means the provider API key is missing.
	ErrNotConfigured = errors.New("inference provider not configured")

	// ErrTimeout means the upstream call exceeded the request timeout.
	ErrTimeout = errors.New("inference request timed out")

	// ErrEmptyResult means the upstream call succeeded but produced no text.
	ErrEmptyResult = errors.New("inference returned an empty result")
)

// UpstreamError carries a transport or provider failure message.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
	}
	return e.Message
}

// Client calls the external text-inference provider. Calls are not retried
// and, once dispatched, are not aborted on client disconnect.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.InferenceConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type summarizeParams struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

type summarizeRequest struct {
	Inputs     string          `json:"inputs"`
	Parameters summarizeParams `json:"parameters"`
}

type translateRequest struct {
	Inputs string `json:"inputs"`
}

// Summarize forwards text to the summarization model and returns the
// generated summary.
func (c *Client) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	payload := summarizeRequest{
		Inputs: text,
		Parameters: summarizeParams{
			MaxLength: maxLength,
			MinLength: minLength,
			DoSample:  false,
		},
	}
	return c.generate(ctx, "summarize", summarizeModel, payload, "summary_text")
}

// Translate forwards text to the translation model for the given target
// language code. The caller is responsible for validating the code against
// the supported allow-list.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	model := fmt.Sprintf(translateModelFmt, targetLang)
	return c.generate(ctx, "translate", model, translateRequest{Inputs: text}, "translation_text")
}

func (c *Client) generate(ctx context.Context, op, model string, payload any, field string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			metrics.InferenceRequestsTotal.WithLabelValues(op, "timeout").Inc()
			return "", ErrTimeout
		}
		metrics.InferenceRequestsTotal.WithLabelValues(op, "error").Inc()
		return "", &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(op, "error").Inc()
		return "", &UpstreamError{Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.InferenceRequestsTotal.WithLabelValues(op, "error").Inc()
		return "", &UpstreamError{Status: resp.StatusCode, Message: string(respBody)}
	}

	text, err := extractText(respBody, field)
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(op, "error").Inc()
		return "", err
	}

	metrics.InferenceRequestsTotal.WithLabelValues(op, "ok").Inc()
	return text, nil
}

// extractText pulls the generated field out of the provider's response,
// which is a one-element array of objects.
func extractText(body []byte, field string) (string, error) {
	var results []map[string]any
	if err := json.Unmarshal(body, &results); err != nil {
		return "", &UpstreamError{Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if len(results) == 0 {
		return "", ErrEmptyResult
	}
	text, _ := results[0][field].(string)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
