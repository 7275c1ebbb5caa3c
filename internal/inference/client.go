package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"doceval/internal/common"
	"doceval/internal/corpus"
)

// layoutPrompt asks the model for the structured layout-extraction output
// this harness normalizes and scores.
const layoutPrompt = "Extract all layout information and text content from this document. " +
	"Return as JSON with layout elements, text, tables, and formulas."

// Config holds remote-endpoint settings for the client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// Status is the outcome of an inference call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Response is the outcome of driving one sample through the remote
// endpoint, including exhausted-retry failures. Failures are data, not
// control flow: the orchestrator records them and continues the corpus.
type Response struct {
	SampleID      string
	Status        Status
	FailureReason string
	RawOutput     []byte
	Latency       time.Duration
	Attempts      int
}

// Client wraps the remote OCR endpoint: request construction, per-attempt
// timeout, retry with backoff, and raw response decoding. Safe for
// concurrent use; all per-call state is local.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger

	// overridable in tests for deterministic, fast retries
	jitter func(time.Duration) time.Duration
	sleep  func(context.Context, time.Duration) error
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "DotsOCR"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 24000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        logger,
		jitter:     Jitter,
		sleep:      sleepCtx,
	}
}

// Infer drives one sample through the endpoint with up to MaxRetries
// attempts. Transient failures (network, 5xx, 429) are retried with
// exponential backoff and jitter; other rejections fail immediately.
func (c *Client) Infer(ctx context.Context, sample corpus.Sample) Response {
	rid := uuid.New().String()
	start := time.Now()

	dataURL, mimeType, err := corpus.ReadAsDataURL(sample)
	if err != nil {
		c.log.Error("infer.encode_failed", "req_id", rid, "sample_id", sample.ID, "error", err)
		return Response{
			SampleID:      sample.ID,
			Status:        StatusFailure,
			FailureReason: err.Error(),
			Latency:       time.Since(start),
			Attempts:      0,
		}
	}

	c.log.Info("infer.start",
		"req_id", rid,
		"sample_id", sample.ID,
		"model", c.cfg.Model,
		"mime", mimeType,
		"size_bytes", sample.SizeBytes,
	)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		attempts = attempt
		raw, err := c.attempt(ctx, rid, dataURL)
		if err == nil {
			c.log.Info("infer.ok",
				"req_id", rid,
				"sample_id", sample.ID,
				"attempts", attempt,
				"raw_bytes", len(raw),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return Response{
				SampleID:  sample.ID,
				Status:    StatusSuccess,
				RawOutput: raw,
				Latency:   time.Since(start),
				Attempts:  attempt,
			}
		}
		lastErr = err

		if attempt < c.cfg.MaxRetries && common.IsTransient(err) {
			delay := c.jitter(Backoff(attempt, baseDelay, maxDelay))
			c.log.Warn("infer.retry",
				"req_id", rid,
				"sample_id", sample.ID,
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", err,
			)
			if serr := c.sleep(ctx, delay); serr != nil {
				lastErr = fmt.Errorf("%w: %v", common.ErrTransport, serr)
				break
			}
			continue
		}
		break
	}

	c.log.Error("infer.failed",
		"req_id", rid,
		"sample_id", sample.ID,
		"attempts", attempts,
		"error", lastErr,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Response{
		SampleID:      sample.ID,
		Status:        StatusFailure,
		FailureReason: lastErr.Error(),
		Latency:       time.Since(start),
		Attempts:      attempts,
	}
}

// attempt performs a single chat/completions round trip and returns the
// model's message content.
func (c *Client) attempt(ctx context.Context, rid, dataURL string) ([]byte, error) {
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"stream":      false,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": layoutPrompt},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", common.ErrRemoteRejection, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrRemoteRejection, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.log.Warn("infer.body_close_error", "req_id", rid, "error", cerr)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", common.ErrTransport, err)
	}

	if err := classifyStatus(resp.StatusCode, raw); err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", common.ErrRemoteRejection, err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", common.ErrRemoteRejection)
	}
	return []byte(strings.TrimSpace(cc.Choices[0].Message.Content)), nil
}

// classifyStatus maps an HTTP status to the retry taxonomy: 429 and 5xx
// are transient, other non-2xx are rejections that fail immediately.
func classifyStatus(code int, body []byte) error {
	switch {
	case code/100 == 2:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", common.ErrRateLimit, code)
	case code/100 == 5:
		return fmt.Errorf("%w: status %d", common.ErrTransport, code)
	default:
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return fmt.Errorf("%w: status %d: %s", common.ErrRemoteRejection, code, msg)
	}
}
