// Package paystack implements domain.PaymentProvider for Paystack.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/config"
	"github.com/oceralabs/ocera/internal/domain"
)

// premiumAmountKobo is the monthly premium price in the smallest currency
// unit (NGN kobo).
const premiumAmountKobo = 500000

// Provider calls the Paystack REST API and verifies its webhooks.
type Provider struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Provider.
func New(cfg config.Config) *Provider {
	return &Provider{cfg: cfg, hc: &http.Client{Timeout: 30 * time.Second}}
}

// Name implements domain.PaymentProvider.
func (p *Provider) Name() string { return "paystack" }

// CreateCheckout initializes a transaction and returns the hosted payment
// page. The user id rides in metadata so the webhook can attribute the event.
func (p *Provider) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	if p.cfg.PaystackSecretKey == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: PAYSTACK_SECRET_KEY missing", domain.ErrNotConfigured)
	}
	payload := map[string]any{
		"email":    req.Email,
		"amount":   premiumAmountKobo,
		"channels": []string{"card", "bank", "ussd", "mobile_money"},
		"metadata": map[string]any{
			"user_id": req.UserID,
			"plan":    req.Plan,
		},
	}
	if p.cfg.PaystackCallbackURL != "" {
		payload["callback_url"] = p.cfg.PaystackCallbackURL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("op=paystack.CreateCheckout: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.PaystackBaseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("op=paystack.CreateCheckout: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.PaystackSecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.hc.Do(httpReq)
	observability.UpstreamRequestsTotal.WithLabelValues("paystack", "initialize").Inc()
	observability.UpstreamRequestDuration.WithLabelValues("paystack", "initialize").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%w: paystack initialize: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%w: paystack initialize: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return domain.CheckoutSession{}, fmt.Errorf("%w: paystack initialize: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
		}
		return domain.CheckoutSession{}, fmt.Errorf("%w: paystack initialize: status %d", domain.ErrUpstreamClient, resp.StatusCode)
	}

	var parsed struct {
		Status bool `json:"status"`
		Data   struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("op=paystack.CreateCheckout: decode: %w", err)
	}
	if !parsed.Status || parsed.Data.AuthorizationURL == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: paystack initialize rejected: %s", domain.ErrUpstreamClient, parsed.Message)
	}
	return domain.CheckoutSession{
		CheckoutURL: parsed.Data.AuthorizationURL,
		Reference:   parsed.Data.Reference,
	}, nil
}

// VerifySignature checks the x-paystack-signature header: HMAC-SHA512 of the
// raw body keyed with the secret key, hex encoded.
func (p *Provider) VerifySignature(body []byte, signature string) bool {
	if p.cfg.PaystackSecretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.cfg.PaystackSecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// ParseWebhook decodes a Paystack event into the provider-neutral shape.
// charge.success and subscription.create/enable activate; subscription.disable
// and subscription.not_renew deactivate; everything else is ignored.
func (p *Provider) ParseWebhook(body []byte) (domain.WebhookEvent, error) {
	var evt struct {
		Event string `json:"event"`
		Data  struct {
			SubscriptionCode string `json:"subscription_code"`
			Metadata         struct {
				UserID string `json:"user_id"`
				Plan   string `json:"plan"`
			} `json:"metadata"`
			Customer struct {
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("op=paystack.ParseWebhook: %w", err)
	}

	out := domain.WebhookEvent{
		UserID:         evt.Data.Metadata.UserID,
		Plan:           evt.Data.Metadata.Plan,
		SubscriptionID: evt.Data.SubscriptionCode,
	}
	switch evt.Event {
	case "charge.success", "subscription.create", "subscription.enable":
		out.Kind = domain.WebhookSubscriptionActivated
	case "subscription.disable", "subscription.not_renew":
		out.Kind = domain.WebhookSubscriptionDeactivated
	default:
		out.Kind = domain.WebhookIgnored
	}
	return out, nil
}
