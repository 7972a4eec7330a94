/**
 * @description
 * Webhook subscription management and delivery authentication.
 *
 * Subscription bootstrap runs at service start: if an active subscription
 * already exists nothing happens, otherwise a fresh 32-byte secret is minted,
 * registered with Dwolla, and stored (encrypted) locally. Bootstrap failure
 * pages the on-call but does not stop the service; API operations keep
 * working without webhooks, only asynchronous status updates are lost.
 *
 * Delivery authentication computes HMAC-SHA256 over the raw request body with
 * each active subscription's secret and compares hex digests in constant
 * time. Iterating every active subscription is what makes zero-downtime
 * secret rotation possible.
 */

package app

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/domain"
	"github.com/splitpay/payment-service/pkg/alerting"
)

const webhookSecretBytes = 32

// EnsureWebhookSubscription guarantees exactly one active Dwolla webhook
// subscription pointed at this service's delivery endpoint. Safe to call on
// every boot.
func (s *Service) EnsureWebhookSubscription(ctx context.Context) error {
	s.subscriptionMu.Lock()
	defer s.subscriptionMu.Unlock()

	existing, err := s.repo.FindActiveWebhookSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load webhook subscriptions: %w", err)
	}
	if len(existing) > 0 {
		log.Printf("EnsureWebhookSubscription: %d active subscription(s) present, nothing to create", len(existing))
		return nil
	}

	secretBytes := make([]byte, webhookSecretBytes)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	subscriptionURL, err := s.dwollaClient.CreateWebhookSubscription(ctx, s.webhookURL, secret)
	if err != nil {
		return fmt.Errorf("failed to register webhook subscription: %w", err)
	}

	sub := &domain.WebhookSubscription{
		UUID:                  uuid.New(),
		Secret:                secret,
		DwollaSubscriptionURL: subscriptionURL,
		IsActive:              true,
	}
	if err := s.repo.CreateWebhookSubscription(ctx, sub); err != nil {
		// The provider will now sign deliveries with a secret we failed to
		// store; every delivery will be rejected until this is fixed.
		return fmt.Errorf("subscription %s registered but not persisted: %w", subscriptionURL, err)
	}

	log.Printf("EnsureWebhookSubscription: registered subscription %s for endpoint %s", resourceIDFromURL(subscriptionURL), s.webhookURL)
	return nil
}

// BootstrapWebhookSubscription wraps EnsureWebhookSubscription for startup:
// on failure it alerts the on-call and returns nil so the service still comes
// up. Synchronous API operations do not depend on webhook delivery.
func (s *Service) BootstrapWebhookSubscription(ctx context.Context) error {
	if err := s.EnsureWebhookSubscription(ctx); err != nil {
		log.Printf("level=error component=webhooks msg=\"webhook subscription bootstrap failed\" err=%v", err)
		s.alerts.Alert(ctx, alerting.SeverityCritical,
			fmt.Sprintf("dwolla webhook subscription bootstrap failed, asynchronous status updates are down: %v", err))
		return nil
	}
	return nil
}

// RotateWebhookSecret registers a new subscription with a fresh secret and
// deactivates the previous ones. Deliveries signed with the old secret keep
// validating until the old rows are deactivated, so rotation loses no events.
func (s *Service) RotateWebhookSecret(ctx context.Context) error {
	s.subscriptionMu.Lock()
	defer s.subscriptionMu.Unlock()

	previous, err := s.repo.FindActiveWebhookSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load webhook subscriptions: %w", err)
	}

	secretBytes := make([]byte, webhookSecretBytes)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	subscriptionURL, err := s.dwollaClient.CreateWebhookSubscription(ctx, s.webhookURL, secret)
	if err != nil {
		return fmt.Errorf("failed to register webhook subscription: %w", err)
	}
	sub := &domain.WebhookSubscription{
		UUID:                  uuid.New(),
		Secret:                secret,
		DwollaSubscriptionURL: subscriptionURL,
		IsActive:              true,
	}
	if err := s.repo.CreateWebhookSubscription(ctx, sub); err != nil {
		return fmt.Errorf("subscription %s registered but not persisted: %w", subscriptionURL, err)
	}

	for _, old := range previous {
		if err := s.repo.DeactivateWebhookSubscription(ctx, old.UUID); err != nil {
			return fmt.Errorf("failed to deactivate subscription %s: %w", old.UUID, err)
		}
	}
	log.Printf("RotateWebhookSecret: rotated to subscription %s, deactivated %d prior", sub.UUID, len(previous))
	return nil
}

// VerifyWebhookSignature authenticates a raw webhook delivery body against
// the signature header Dwolla sent. The body must be the exact bytes on the
// wire; verification happens before any JSON parsing. Returns true when any
// active subscription's secret produces a matching digest.
func (s *Service) VerifyWebhookSignature(ctx context.Context, rawBody []byte, signature string) (bool, error) {
	subs, err := s.repo.FindActiveWebhookSubscriptions(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load webhook subscriptions: %w", err)
	}

	provided := []byte(signature)
	for _, sub := range subs {
		mac := hmac.New(sha256.New, []byte(sub.Secret))
		mac.Write(rawBody)
		expected := []byte(hex.EncodeToString(mac.Sum(nil)))
		if hmac.Equal(expected, provided) {
			return true, nil
		}
	}
	return false, nil
}
