/**
 * @description
 * This package provides a simple producer for publishing payment events to
 * RabbitMQ. It encapsulates the logic for connecting to RabbitMQ and
 * publishing a message to a specific exchange and routing key.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// PaymentEventsExchange is the durable topic exchange all payment-service
// events are published to.
const PaymentEventsExchange = "payment_events"

// Routing keys on the payment events exchange.
const (
	RoutingKeyTransferStatus = "transfer.status"
	RoutingKeyCustomerStatus = "customer.status"
)

// TransferStatusEvent is published whenever a transfer's authoritative status
// changes, for consumption by the notification and ledger services.
type TransferStatusEvent struct {
	TransactionID    uuid.UUID `json:"transaction_id"`
	DwollaTransferID string    `json:"dwolla_transfer_id"`
	Status           string    `json:"status"`
	AmountCents      int64     `json:"amount_cents"`
	FeeCents         int64     `json:"fee_cents"`
	Timestamp        time.Time `json:"timestamp"`
}

// CustomerStatusEvent is published when a customer's verification status
// changes or re-verification becomes necessary.
type CustomerStatusEvent struct {
	UserID               uuid.UUID `json:"user_id"`
	DwollaCustomerID     string    `json:"dwolla_customer_id"`
	Status               string    `json:"status"`
	ReverificationNeeded bool      `json:"reverification_needed"`
	Timestamp            time.Time `json:"timestamp"`
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishTransferStatusEvent(ctx context.Context, event TransferStatusEvent) error
	PublishCustomerStatusEvent(ctx context.Context, event CustomerStatusEvent) error
	Close()
}

// EventProducerFallback is a minimal no-op publisher used when RabbitMQ is unavailable at startup.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"publish skipped\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) PublishTransferStatusEvent(ctx context.Context, event TransferStatusEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"transfer status event publish skipped\" transaction_id=%s status=%s", event.TransactionID, event.Status)
	return nil
}

func (p *EventProducerFallback) PublishCustomerStatusEvent(ctx context.Context, event CustomerStatusEvent) error {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"customer status event publish skipped\" user_id=%s status=%s", event.UserID, event.Status)
	return nil
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates and returns a new EventProducer.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// Publish sends a message to a specific exchange with a routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	// Ensure the exchange exists (durable topic)
	if err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		// Attempt simple channel reopen once
		if p.conn != nil {
			if ch, chErr := p.conn.Channel(); chErr == nil {
				p.channel = ch
				if err2 := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err2 != nil {
					return err2
				}
			} else {
				return chErr
			}
		} else {
			return err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	err = p.channel.PublishWithContext(publishCtx, exchange, routingKey, false, false, publishing)
	if err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		// One-shot retry: reopen channel and try again
		if p.conn != nil {
			if ch, chErr := p.conn.Channel(); chErr == nil {
				p.channel = ch
				if exErr := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); exErr == nil {
					if retryErr := p.channel.PublishWithContext(publishCtx, exchange, routingKey, false, false, publishing); retryErr == nil {
						return nil
					}
				}
			}
		}
		return err
	}
	return nil
}

// PublishTransferStatusEvent publishes a transfer status change to the
// payment events exchange.
func (p *EventProducer) PublishTransferStatusEvent(ctx context.Context, event TransferStatusEvent) error {
	return p.Publish(ctx, PaymentEventsExchange, RoutingKeyTransferStatus, event)
}

// PublishCustomerStatusEvent publishes a customer verification status change
// to the payment events exchange.
func (p *EventProducer) PublishCustomerStatusEvent(ctx context.Context, event CustomerStatusEvent) error {
	return p.Publish(ctx, PaymentEventsExchange, RoutingKeyCustomerStatus, event)
}

// Close gracefully shuts down the channel and connection.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
