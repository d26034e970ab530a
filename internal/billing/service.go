// Package billing bridges subscription lifecycle events from Stripe into the
// user tier model. Stripe owns the payment state; this package only creates
// subscriptions and reacts to invoice webhooks.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/subscription"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/edusummarizer/hub/internal/config"
	"github.com/edusummarizer/hub/internal/users"
)

// ErrInvalidSignature means the webhook payload failed signature
// verification and must not be trusted.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type Service struct {
	users         *users.Service
	webhookSecret string
}

func NewService(usersSvc *users.Service, cfg config.StripeConfig) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{
		users:         usersSvc,
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateSubscription creates a Stripe customer for the user and an incomplete
// subscription on the given price. The returned client secret lets the
// frontend confirm the initial payment; the tier upgrade itself only happens
// when the invoice.payment_succeeded webhook arrives.
func (s *Service) CreateSubscription(ctx context.Context, user *users.User, priceID string) (clientSecret, subscriptionID string, err error) {
	custParams := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Username),
	}
	custParams.Context = ctx
	cust, err := customer.New(custParams)
	if err != nil {
		return "", "", fmt.Errorf("creating customer: %w", err)
	}

	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(cust.ID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	subParams.Context = ctx
	subParams.AddExpand("latest_invoice.payment_intent")

	sub, err := subscription.New(subParams)
	if err != nil {
		return "", "", fmt.Errorf("creating subscription: %w", err)
	}
	if sub.LatestInvoice == nil || sub.LatestInvoice.PaymentIntent == nil {
		return "", "", fmt.Errorf("subscription %s has no payment intent", sub.ID)
	}

	return sub.LatestInvoice.PaymentIntent.ClientSecret, sub.ID, nil
}

// HandleWebhook verifies and dispatches a Stripe webhook event. Unhandled
// event types are acknowledged without action so Stripe does not retry them.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "invoice.payment_succeeded":
		return s.handlePaymentSucceeded(ctx, event)
	case "invoice.payment_failed":
		// Stripe retries the charge on its own schedule; the user keeps
		// their current tier until the subscription is actually canceled.
		slog.Warn("invoice payment failed", "event_id", event.ID)
		return nil
	default:
		slog.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("unmarshaling invoice: %w", err)
	}
	if invoice.CustomerEmail == "" {
		slog.Warn("paid invoice has no customer email", "invoice_id", invoice.ID)
		return nil
	}

	var subscriptionID string
	if invoice.Subscription != nil {
		subscriptionID = invoice.Subscription.ID
	}

	if err := s.users.SetTier(ctx, invoice.CustomerEmail, users.TierPremium, subscriptionID); err != nil {
		return fmt.Errorf("upgrading user tier: %w", err)
	}
	slog.Info("user upgraded to premium", "email", invoice.CustomerEmail, "subscription_id", subscriptionID)
	return nil
}
