// Package lemonsqueezy implements domain.PaymentProvider for Lemon Squeezy.
package lemonsqueezy

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/config"
	"github.com/oceralabs/ocera/internal/domain"
)

// Provider calls the Lemon Squeezy JSON:API and verifies its webhooks.
type Provider struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Provider.
func New(cfg config.Config) *Provider {
	return &Provider{cfg: cfg, hc: &http.Client{Timeout: 30 * time.Second}}
}

// Name implements domain.PaymentProvider.
func (p *Provider) Name() string { return "lemonsqueezy" }

// CreateCheckout creates a checkout for the configured store and variant. The
// user id travels in checkout_data.custom so webhooks can attribute events.
func (p *Provider) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	if p.cfg.LemonSqueezyAPIKey == "" || p.cfg.LemonSqueezyStoreID == "" || p.cfg.LemonSqueezyVariantID == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: lemonsqueezy store configuration missing", domain.ErrNotConfigured)
	}
	payload := map[string]any{
		"data": map[string]any{
			"type": "checkouts",
			"attributes": map[string]any{
				"checkout_data": map[string]any{
					"email": req.Email,
					"custom": map[string]any{
						"user_id": req.UserID,
						"plan":    req.Plan,
					},
				},
			},
			"relationships": map[string]any{
				"store": map[string]any{
					"data": map[string]any{"type": "stores", "id": p.cfg.LemonSqueezyStoreID},
				},
				"variant": map[string]any{
					"data": map[string]any{"type": "variants", "id": p.cfg.LemonSqueezyVariantID},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("op=lemonsqueezy.CreateCheckout: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.LemonSqueezyBaseURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("op=lemonsqueezy.CreateCheckout: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.LemonSqueezyAPIKey)
	httpReq.Header.Set("Accept", "application/vnd.api+json")
	httpReq.Header.Set("Content-Type", "application/vnd.api+json")

	start := time.Now()
	resp, err := p.hc.Do(httpReq)
	observability.UpstreamRequestsTotal.WithLabelValues("lemonsqueezy", "checkout").Inc()
	observability.UpstreamRequestDuration.WithLabelValues("lemonsqueezy", "checkout").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%w: lemonsqueezy checkout: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%w: lemonsqueezy checkout: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return domain.CheckoutSession{}, fmt.Errorf("%w: lemonsqueezy checkout: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
		}
		return domain.CheckoutSession{}, fmt.Errorf("%w: lemonsqueezy checkout: status %d", domain.ErrUpstreamClient, resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("op=lemonsqueezy.CreateCheckout: decode: %w", err)
	}
	if parsed.Data.Attributes.URL == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: lemonsqueezy checkout missing url", domain.ErrUpstreamClient)
	}
	return domain.CheckoutSession{
		CheckoutURL: parsed.Data.Attributes.URL,
		Reference:   parsed.Data.ID,
	}, nil
}

// VerifySignature checks the X-Signature header: HMAC-SHA256 of the raw body
// keyed with the signing secret, hex encoded.
func (p *Provider) VerifySignature(body []byte, signature string) bool {
	if p.cfg.LemonSqueezySigningKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.cfg.LemonSqueezySigningKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook decodes a Lemon Squeezy event. order_created and
// subscription_created/resumed/unpaused activate; subscription_cancelled and
// subscription_expired deactivate; everything else is ignored.
func (p *Provider) ParseWebhook(body []byte) (domain.WebhookEvent, error) {
	var evt struct {
		Meta struct {
			EventName  string `json:"event_name"`
			CustomData struct {
				UserID string `json:"user_id"`
				Plan   string `json:"plan"`
			} `json:"custom_data"`
		} `json:"meta"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("op=lemonsqueezy.ParseWebhook: %w", err)
	}

	out := domain.WebhookEvent{
		UserID:         evt.Meta.CustomData.UserID,
		Plan:           evt.Meta.CustomData.Plan,
		SubscriptionID: evt.Data.ID,
	}
	switch evt.Meta.EventName {
	case "order_created", "subscription_created", "subscription_resumed", "subscription_unpaused":
		out.Kind = domain.WebhookSubscriptionActivated
	case "subscription_cancelled", "subscription_expired":
		out.Kind = domain.WebhookSubscriptionDeactivated
	default:
		out.Kind = domain.WebhookIgnored
	}
	return out, nil
}
