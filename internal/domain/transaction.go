/**
 * @description
 * This file defines the settlement transaction model for the payment-service.
 * A Transaction is one funds movement between two linked bank accounts,
 * created by the agreement/settlement collaborators and carried through the
 * Dwolla transfer lifecycle by this service.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (cents) to
 *   avoid floating-point inaccuracies; the decimal-string form Dwolla expects
 *   is produced only at the provider-call boundary.
 * - The idempotency token is minted once, when the transaction row is created,
 *   and is sent on every create-transfer attempt so a retried request can never
 *   move money twice.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferStatus is the lifecycle status of a Dwolla transfer.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusProcessed TransferStatus = "processed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// IsTerminal reports whether no further provider mutation should be attempted.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferStatusProcessed || s == TransferStatusFailed || s == TransferStatusCancelled
}

// Transaction is the central record for one settlement between two users.
// It maps directly to the `transactions` table.
type Transaction struct {
	ID                   uuid.UUID      `json:"id"`
	SourceUserID         uuid.UUID      `json:"source_user_id"`
	DestinationUserID    uuid.UUID      `json:"destination_user_id"`
	SourceAccountID      uuid.UUID      `json:"source_account_id"`
	DestinationAccountID uuid.UUID      `json:"destination_account_id"`
	AmountCents          int64          `json:"amount_cents"`
	FeeCents             int64          `json:"fee_cents"`
	IdempotencyToken     string         `json:"-"`
	DwollaTransferID     *string        `json:"dwolla_transfer_id,omitempty"`
	DwollaTransferURL    *string        `json:"dwolla_transfer_url,omitempty"`
	Status               TransferStatus `json:"status"`
	RetrievalAttempts    int            `json:"retrieval_attempts"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// HasTransfer reports whether the transaction has been submitted to Dwolla.
// A transaction without a transfer URL is a valid, expected state (queued but
// never sent), not an error.
func (t *Transaction) HasTransfer() bool {
	return t.DwollaTransferURL != nil && *t.DwollaTransferURL != ""
}
