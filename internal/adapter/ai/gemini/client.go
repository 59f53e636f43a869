// Package gemini implements domain.TextGenerator against the Google
// generative-language API. One client serves both AI endpoints; model name,
// timeout, temperature, and safety threshold come from configuration.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/config"
	"github.com/oceralabs/ocera/internal/domain"
	"github.com/oceralabs/ocera/pkg/retryx"
)

// Client calls the generateContent endpoint with bounded retries.
type Client struct {
	cfg   config.Config
	hc    *http.Client
	retry retryx.Config
}

// New constructs a Client. The HTTP client timeout bounds each attempt; the
// retry budget bounds the logical call.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.AITimeout},
		retry: retryx.Config{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
			Jitter:      cfg.RetryJitter,
		},
	}
}

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig generationConf `json:"generationConfig"`
	SafetySettings   []safetySet    `json:"safetySettings"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConf struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type safetySet struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateResponse struct {
	Candidates []struct {
		FinishReason string `json:"finishReason"`
		Content      struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one logical generateContent call, retried on transient
// failure. Safety suppression is not an error: it returns SafetyBlocked so the
// caller can degrade.
func (c *Client) Generate(ctx context.Context, prompt string) (domain.Generation, error) {
	if c.cfg.GoogleAIAPIKey == "" {
		return domain.Generation{}, fmt.Errorf("%w: GOOGLE_AI_API_KEY missing", domain.ErrNotConfigured)
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConf{
			Temperature:     c.cfg.AITemperature,
			MaxOutputTokens: c.cfg.AIMaxTokens,
			TopP:            0.8,
			TopK:            40,
		},
		SafetySettings: []safetySet{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: c.cfg.AISafety},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: c.cfg.AISafety},
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Generation{}, fmt.Errorf("op=gemini.Generate: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.GoogleAIBaseURL, c.cfg.GoogleAIModel)

	out, err := retryx.Do(ctx, c.retry, "gemini.generate", func(ctx context.Context) (generateResponse, error) {
		start := time.Now()
		// Recreate the request each attempt; bodies are consumed.
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.cfg.GoogleAIAPIKey), bytes.NewReader(b))
		if err != nil {
			return generateResponse{}, err
		}
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.UpstreamRequestsTotal.WithLabelValues("gemini", "generate").Inc()
		observability.UpstreamRequestDuration.WithLabelValues("gemini", "generate").Observe(time.Since(start).Seconds())
		if err != nil {
			return generateResponse{}, err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return generateResponse{}, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet := string(bodyBytes)
			if len(snippet) > 512 {
				snippet = snippet[:512]
			}
			slog.Warn("gemini non-2xx",
				slog.Int("status", resp.StatusCode),
				slog.String("model", c.cfg.GoogleAIModel),
				slog.String("body", snippet))
			return generateResponse{}, &retryx.StatusError{Status: resp.StatusCode, Msg: upstreamMessage(bodyBytes, resp.StatusCode)}
		}
		var gr generateResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			slog.Error("gemini decode error", slog.Any("error", err))
			return generateResponse{}, err
		}
		return gr, nil
	})
	if err != nil {
		return domain.Generation{}, c.wrapErr(err)
	}

	if len(out.Candidates) == 0 {
		// Empty candidate list without an error status; the normalizer treats
		// empty text as the fallback trigger.
		return domain.Generation{}, nil
	}
	cand := out.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return domain.Generation{SafetyBlocked: true}, nil
	}
	if len(cand.Content.Parts) == 0 {
		return domain.Generation{}, nil
	}
	return domain.Generation{Text: cand.Content.Parts[0].Text}, nil
}

// upstreamMessage maps provider statuses to stable operator-facing messages,
// appending the provider's own message when present.
func upstreamMessage(body []byte, status int) string {
	var msg string
	switch {
	case status == 400:
		msg = "invalid request format or content blocked by safety filters"
	case status == 401:
		msg = "invalid API key or authentication failed"
	case status == 403:
		msg = "API access forbidden"
	case status == 429:
		msg = "rate limit exceeded"
	case status >= 500:
		msg = "generative-language service temporarily unavailable"
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		if msg != "" {
			return msg + ": " + parsed.Error.Message
		}
		return parsed.Error.Message
	}
	return msg
}

// wrapErr maps a final (post-retry) error onto the domain taxonomy.
func (c *Client) wrapErr(err error) error {
	var se *retryx.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == 429:
			return fmt.Errorf("%w: %s", domain.ErrUpstreamRateLimit, se.Msg)
		case se.Status >= 400 && se.Status < 500:
			return fmt.Errorf("%w: %v", domain.ErrUpstreamClient, se)
		default:
			return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, se)
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}
