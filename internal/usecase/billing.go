package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/domain"
)

// BillingService creates checkout sessions on the active provider and applies
// webhook events from any registered provider. Webhook routes stay live for
// every provider so in-flight subscriptions survive a provider switch.
type BillingService struct {
	Active    domain.PaymentProvider
	Providers map[string]domain.PaymentProvider
	Users     domain.UserRepository
	Now       func() time.Time
}

// NewBillingService registers the given providers and marks one active for
// checkout creation.
func NewBillingService(active domain.PaymentProvider, users domain.UserRepository, providers ...domain.PaymentProvider) BillingService {
	m := make(map[string]domain.PaymentProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return BillingService{Active: active, Providers: m, Users: users, Now: time.Now}
}

// CreateCheckout starts a checkout session for the premium plan on the active
// provider.
func (s BillingService) CreateCheckout(ctx context.Context, userID, email string) (domain.CheckoutSession, error) {
	if s.Active == nil {
		return domain.CheckoutSession{}, fmt.Errorf("%w: no payment provider configured", domain.ErrNotConfigured)
	}
	if email == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: email is required", domain.ErrInvalidArgument)
	}
	session, err := s.Active.CreateCheckout(ctx, domain.CheckoutRequest{
		UserID: userID,
		Email:  email,
		Plan:   domain.PlanPremium,
	})
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("op=billing.CreateCheckout: %w", err)
	}
	slog.Info("checkout session created",
		slog.String("provider", s.Active.Name()),
		slog.String("user_id", userID))
	return session, nil
}

// HandleWebhook verifies the signature, decodes the event, and applies it.
// Signature failures are ErrUnauthorized; events for other products or
// lifecycle noise decode to an ignored kind and succeed without a write.
func (s BillingService) HandleWebhook(ctx context.Context, providerName string, body []byte, signature string) error {
	provider, ok := s.Providers[providerName]
	if !ok {
		return fmt.Errorf("%w: unknown payment provider %q", domain.ErrNotFound, providerName)
	}
	if !provider.VerifySignature(body, signature) {
		observability.WebhooksTotal.WithLabelValues(providerName, "bad_signature").Inc()
		return fmt.Errorf("%w: webhook signature verification failed", domain.ErrUnauthorized)
	}
	event, err := provider.ParseWebhook(body)
	if err != nil {
		observability.WebhooksTotal.WithLabelValues(providerName, "bad_payload").Inc()
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	switch event.Kind {
	case domain.WebhookSubscriptionActivated:
		if event.UserID == "" {
			observability.WebhooksTotal.WithLabelValues(providerName, "bad_payload").Inc()
			return fmt.Errorf("%w: webhook event missing user reference", domain.ErrInvalidArgument)
		}
		// Activations run a rolling one-month window; each renewal webhook
		// pushes the expiry forward.
		expires := s.Now().AddDate(0, 1, 0)
		update := domain.SubscriptionUpdate{
			Plan:           domain.PlanPremium,
			Status:         domain.SubscriptionActive,
			SubscriptionID: event.SubscriptionID,
			ExpiresAt:      &expires,
		}
		if err := s.Users.UpdateSubscription(ctx, event.UserID, update); err != nil {
			observability.WebhooksTotal.WithLabelValues(providerName, "error").Inc()
			return fmt.Errorf("op=billing.HandleWebhook: %w", err)
		}
		observability.WebhooksTotal.WithLabelValues(providerName, "activated").Inc()
		slog.Info("subscription activated",
			slog.String("provider", providerName),
			slog.String("user_id", event.UserID))
	case domain.WebhookSubscriptionDeactivated:
		if event.UserID == "" {
			observability.WebhooksTotal.WithLabelValues(providerName, "bad_payload").Inc()
			return fmt.Errorf("%w: webhook event missing user reference", domain.ErrInvalidArgument)
		}
		update := domain.SubscriptionUpdate{
			Plan:           domain.PlanFree,
			Status:         domain.SubscriptionCanceled,
			SubscriptionID: event.SubscriptionID,
		}
		if err := s.Users.UpdateSubscription(ctx, event.UserID, update); err != nil {
			observability.WebhooksTotal.WithLabelValues(providerName, "error").Inc()
			return fmt.Errorf("op=billing.HandleWebhook: %w", err)
		}
		observability.WebhooksTotal.WithLabelValues(providerName, "deactivated").Inc()
		slog.Info("subscription deactivated",
			slog.String("provider", providerName),
			slog.String("user_id", event.UserID))
	default:
		observability.WebhooksTotal.WithLabelValues(providerName, "ignored").Inc()
	}
	return nil
}
