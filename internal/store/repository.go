/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the payment-service needs. Keeping the interface separate from the
 * PostgreSQL implementation lets the application layer be tested with plain
 * struct stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For entity identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrSubscriptionNotFound = errors.New("webhook subscription not found")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User projection methods
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByCustomerID(ctx context.Context, dwollaCustomerID string) (*domain.User, error)
	UpdateUserCustomer(ctx context.Context, userID uuid.UUID, customerID, customerURL string) error
	UpdateUserCustomerStatus(ctx context.Context, userID uuid.UUID, status domain.CustomerStatus) error
	SetReverificationNeeded(ctx context.Context, userID uuid.UUID, needed bool) error

	// Linked account methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.UserAccount, error)
	UpdateAccountFundingSource(ctx context.Context, accountID uuid.UUID, fundingSourceID, fundingSourceURL string) error
	MarkFundingSourceRemoved(ctx context.Context, accountID uuid.UUID) error

	// Transaction methods
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionByTransferID(ctx context.Context, dwollaTransferID string) (*domain.Transaction, error)
	UpdateTransactionTransfer(ctx context.Context, transactionID uuid.UUID, transferID, transferURL string, status domain.TransferStatus) error
	UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransferStatus) error
	IncrementRetrievalAttempts(ctx context.Context, transactionID uuid.UUID) error
	ListPendingTransferTransactions(ctx context.Context, limit int) ([]domain.Transaction, error)

	// Webhook subscription methods
	FindActiveWebhookSubscriptions(ctx context.Context) ([]domain.WebhookSubscription, error)
	CreateWebhookSubscription(ctx context.Context, sub *domain.WebhookSubscription) error
	DeactivateWebhookSubscription(ctx context.Context, subscriptionUUID uuid.UUID) error

	// Webhook event log methods
	HasProcessedWebhookEvent(ctx context.Context, eventID string) (bool, error)
	LogWebhookEvent(ctx context.Context, entry domain.WebhookEventLogEntry) error
}
