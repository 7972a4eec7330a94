/**
 * @description
 * This file defines the webhook-subscription entity, the inbound webhook
 * payload shape, and the catalogue of Dwolla webhook topics the service
 * routes on. Dwolla signs each delivery with the shared secret registered at
 * subscription time; the raw request body must be verified against that
 * signature before any of these types are populated.
 */

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookSubscription is a registration telling Dwolla where, and signed with
// what secret, to deliver asynchronous event notifications. At most one row is
// active at a time under normal operation; during a secret rotation window two
// may be active simultaneously and inbound deliveries validate against either.
type WebhookSubscription struct {
	UUID                  uuid.UUID `json:"uuid"`
	Secret                string    `json:"-"`
	DwollaSubscriptionURL string    `json:"dwolla_subscription_url"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// WebhookLink is one HATEOAS link in a Dwolla webhook payload.
type WebhookLink struct {
	Href string `json:"href"`
}

// WebhookPayload is the body of an inbound Dwolla webhook delivery.
type WebhookPayload struct {
	ID         string                 `json:"id"`
	ResourceID string                 `json:"resourceId"`
	Topic      WebhookTopic           `json:"topic"`
	Links      map[string]WebhookLink `json:"_links"`
	Created    time.Time              `json:"created"`
}

// WebhookEventLogEntry is the durable record of a processed webhook delivery.
// Dwolla can deliver the same event more than once; the log is the idempotency
// check for transfer-status processing.
type WebhookEventLogEntry struct {
	EventID       string          `json:"event_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Topic         WebhookTopic    `json:"topic"`
	Payload       json.RawMessage `json:"payload"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// WebhookTopic is the enumerated Dwolla event name carried in a webhook.
type WebhookTopic string

// Customer lifecycle topics.
const (
	TopicCustomerCreated                    WebhookTopic = "customer_created"
	TopicCustomerReverificationNeeded       WebhookTopic = "customer_reverification_needed"
	TopicCustomerVerificationDocumentNeeded WebhookTopic = "customer_verification_document_needed"
	TopicCustomerVerified                   WebhookTopic = "customer_verified"
	TopicCustomerSuspended                  WebhookTopic = "customer_suspended"
	TopicCustomerActivated                  WebhookTopic = "customer_activated"
	TopicCustomerDeactivated                WebhookTopic = "customer_deactivated"
)

// Funding source topics.
const (
	TopicFundingSourceAdded      WebhookTopic = "customer_funding_source_added"
	TopicFundingSourceRemoved    WebhookTopic = "customer_funding_source_removed"
	TopicFundingSourceVerified   WebhookTopic = "customer_funding_source_verified"
	TopicFundingSourceUnverified WebhookTopic = "customer_funding_source_unverified"
	TopicFundingSourceNegative   WebhookTopic = "customer_funding_source_negative"
	TopicFundingSourceUpdated    WebhookTopic = "customer_funding_source_updated"
)

// Transfer topics. Bank-transfer topics cover the leg between a customer's
// bank and the Dwolla platform; transfer topics cover the balance leg. Both
// resolve to the same local transaction via the transfer resource id.
const (
	TopicBankTransferCreated        WebhookTopic = "customer_bank_transfer_created"
	TopicBankTransferCancelled      WebhookTopic = "customer_bank_transfer_cancelled"
	TopicBankTransferFailed         WebhookTopic = "customer_bank_transfer_failed"
	TopicBankTransferCreationFailed WebhookTopic = "customer_bank_transfer_creation_failed"
	TopicBankTransferCompleted      WebhookTopic = "customer_bank_transfer_completed"
	TopicTransferCreated            WebhookTopic = "customer_transfer_created"
	TopicTransferCancelled          WebhookTopic = "customer_transfer_cancelled"
	TopicTransferFailed             WebhookTopic = "customer_transfer_failed"
	TopicTransferCompleted          WebhookTopic = "customer_transfer_completed"
)

// IsTransferTopic reports whether the topic concerns a transfer resource.
func (t WebhookTopic) IsTransferTopic() bool {
	switch t {
	case TopicBankTransferCreated, TopicBankTransferCancelled, TopicBankTransferFailed,
		TopicBankTransferCreationFailed, TopicBankTransferCompleted,
		TopicTransferCreated, TopicTransferCancelled, TopicTransferFailed, TopicTransferCompleted:
		return true
	}
	return false
}
