/**
 * @description
 * Inbound webhook event processing. A delivery that survives signature
 * verification lands here: it is deduplicated (Redis fast path, then the
 * durable event log), routed by topic, and recorded. Dwolla re-delivers
 * events and webhook ordering is not guaranteed, so every handler in this
 * file must tolerate duplicates and out-of-order arrival.
 *
 * Transfer topics never trust the status implied by the topic name. The
 * transfer is re-fetched from the provider and the authoritative status is
 * applied; a stale delivery then converges to the same state as a fresh one.
 */

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/splitpay/payment-service/internal/domain"
	"github.com/splitpay/payment-service/internal/store"
	"github.com/splitpay/payment-service/pkg/alerting"
	"github.com/splitpay/payment-service/pkg/rabbitmq"
)

// RedisEventDeduper is a best-effort duplicate-delivery filter in front of
// the durable webhook event log. Losing Redis only costs extra trips to the
// database; correctness comes from the log itself.
type RedisEventDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisEventDeduper creates a deduper. ttl bounds how long an event id is
// remembered; Dwolla's re-delivery window is hours, not days.
func NewRedisEventDeduper(client redis.UniversalClient, ttl time.Duration) *RedisEventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventDeduper{client: client, ttl: ttl}
}

// MarkSeen records an event id and reports whether it was already present.
// Errors degrade to "not seen" so Redis unavailability never drops an event.
func (d *RedisEventDeduper) MarkSeen(ctx context.Context, eventID string) bool {
	if d == nil || d.client == nil || eventID == "" {
		return false
	}
	set, err := d.client.SetNX(ctx, "payment:webhook_event:"+eventID, 1, d.ttl).Result()
	if err != nil {
		log.Printf("level=warn component=webhook_dedupe msg=\"redis setnx failed; falling through to event log\" err=%v", err)
		return false
	}
	return !set
}

// ProcessWebhookEvent routes a verified webhook payload. rawBody is the exact
// delivery body, retained in the durable event log for audit and replay.
func (s *Service) ProcessWebhookEvent(ctx context.Context, payload domain.WebhookPayload, rawBody []byte) error {
	if s.dedupe.MarkSeen(ctx, payload.ID) {
		log.Printf("ProcessWebhookEvent: duplicate delivery %s (%s) dropped by redis", payload.ID, payload.Topic)
		return nil
	}
	seen, err := s.repo.HasProcessedWebhookEvent(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("failed to check event log: %w", err)
	}
	if seen {
		log.Printf("ProcessWebhookEvent: duplicate delivery %s (%s) dropped by event log", payload.ID, payload.Topic)
		return nil
	}

	entry := domain.WebhookEventLogEntry{
		EventID: payload.ID,
		Topic:   payload.Topic,
		Payload: json.RawMessage(rawBody),
	}

	switch {
	case payload.Topic.IsTransferTopic():
		txID, err := s.handleTransferEvent(ctx, payload)
		if err != nil {
			return err
		}
		entry.TransactionID = txID
	default:
		if err := s.handleCustomerEvent(ctx, payload); err != nil {
			return err
		}
	}

	if err := s.repo.LogWebhookEvent(ctx, entry); err != nil {
		return fmt.Errorf("failed to log event %s: %w", payload.ID, err)
	}
	return nil
}

// handleTransferEvent resolves the local transaction behind a transfer topic
// and refreshes its status from the provider. An unknown transfer resource is
// logged and skipped; transfers created outside this service (for example
// directly in the dashboard) produce webhooks too.
func (s *Service) handleTransferEvent(ctx context.Context, payload domain.WebhookPayload) (uuid.UUID, error) {
	tx, err := s.repo.FindTransactionByTransferID(ctx, payload.ResourceID)
	if err != nil {
		if err == store.ErrTransactionNotFound {
			log.Printf("handleTransferEvent: no transaction for transfer %s (topic %s), skipping", payload.ResourceID, payload.Topic)
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to resolve transfer %s: %w", payload.ResourceID, err)
	}

	if err := s.RefreshTransferStatus(ctx, tx); err != nil {
		return tx.ID, err
	}

	switch payload.Topic {
	case domain.TopicBankTransferFailed, domain.TopicBankTransferCreationFailed, domain.TopicTransferFailed:
		s.alerts.Alert(ctx, alerting.SeverityWarning,
			fmt.Sprintf("dwolla reported a failed transfer: transaction=%s transfer=%s topic=%s", tx.ID, payload.ResourceID, payload.Topic))
	}
	return tx.ID, nil
}

// handleCustomerEvent applies customer lifecycle and funding source topics.
func (s *Service) handleCustomerEvent(ctx context.Context, payload domain.WebhookPayload) error {
	switch payload.Topic {
	case domain.TopicCustomerVerified:
		return s.applyCustomerStatus(ctx, payload.ResourceID, domain.CustomerStatusVerified, false)
	case domain.TopicCustomerSuspended:
		s.alerts.Alert(ctx, alerting.SeverityCritical,
			fmt.Sprintf("dwolla suspended customer %s", payload.ResourceID))
		return s.applyCustomerStatus(ctx, payload.ResourceID, domain.CustomerStatusSuspended, false)
	case domain.TopicCustomerActivated:
		return s.applyCustomerStatus(ctx, payload.ResourceID, domain.CustomerStatusVerified, false)
	case domain.TopicCustomerDeactivated:
		return s.applyCustomerStatus(ctx, payload.ResourceID, domain.CustomerStatusDeactivated, false)
	case domain.TopicCustomerReverificationNeeded, domain.TopicCustomerVerificationDocumentNeeded:
		return s.applyCustomerStatus(ctx, payload.ResourceID, domain.CustomerStatusNone, true)
	case domain.TopicCustomerCreated,
		domain.TopicFundingSourceAdded, domain.TopicFundingSourceRemoved,
		domain.TopicFundingSourceVerified, domain.TopicFundingSourceUnverified,
		domain.TopicFundingSourceUpdated:
		// Informational; local state for these transitions is written
		// synchronously by the operation that caused them.
		log.Printf("handleCustomerEvent: acknowledged %s for resource %s", payload.Topic, payload.ResourceID)
		return nil
	case domain.TopicFundingSourceNegative:
		s.alerts.Alert(ctx, alerting.SeverityCritical,
			fmt.Sprintf("funding source %s has a negative balance", payload.ResourceID))
		return nil
	default:
		log.Printf("handleCustomerEvent: unhandled topic %s for resource %s", payload.Topic, payload.ResourceID)
		return nil
	}
}

// applyCustomerStatus persists a customer status transition and publishes it.
// status CustomerStatusNone leaves the stored status untouched and only flips
// the re-verification flag.
func (s *Service) applyCustomerStatus(ctx context.Context, dwollaCustomerID string, status domain.CustomerStatus, reverificationNeeded bool) error {
	user, err := s.repo.FindUserByCustomerID(ctx, dwollaCustomerID)
	if err != nil {
		if err == store.ErrUserNotFound {
			log.Printf("applyCustomerStatus: no user for customer %s, skipping", dwollaCustomerID)
			return nil
		}
		return fmt.Errorf("failed to resolve customer %s: %w", dwollaCustomerID, err)
	}

	if status != domain.CustomerStatusNone {
		if err := s.repo.UpdateUserCustomerStatus(ctx, user.ID, status); err != nil {
			return fmt.Errorf("failed to update customer status for user %s: %w", user.ID, err)
		}
		user.DwollaCustomerStatus = status
		// A verification outcome settles any outstanding re-verification ask.
		if err := s.repo.SetReverificationNeeded(ctx, user.ID, false); err != nil {
			return fmt.Errorf("failed to clear reverification flag for user %s: %w", user.ID, err)
		}
		user.ReverificationNeeded = false
	}
	if reverificationNeeded {
		if err := s.repo.SetReverificationNeeded(ctx, user.ID, true); err != nil {
			return fmt.Errorf("failed to flag reverification for user %s: %w", user.ID, err)
		}
		user.ReverificationNeeded = true
	}

	event := rabbitmq.CustomerStatusEvent{
		UserID:               user.ID,
		DwollaCustomerID:     dwollaCustomerID,
		Status:               string(user.DwollaCustomerStatus),
		ReverificationNeeded: user.ReverificationNeeded,
		Timestamp:            time.Now().UTC(),
	}
	if err := s.eventProducer.PublishCustomerStatusEvent(ctx, event); err != nil {
		log.Printf("applyCustomerStatus: failed to publish status event for user %s: %v", user.ID, err)
	}
	return nil
}
