/**
 * @description
 * Transfer orchestration: submitting settlement transactions to Dwolla,
 * reading their authoritative status back, and cancelling them. The provider
 * is the arbiter of transfer state; this file never invents a status the
 * provider has not reported.
 *
 * Key invariants:
 * - Every create attempt for a transaction sends the same Idempotency-Key,
 *   the token minted when the transaction row was created. Dwolla collapses
 *   duplicate submissions, so money moves at most once per transaction.
 * - A zero or negative fee omits the fees block from the request entirely;
 *   Dwolla rejects an empty fees array.
 * - Amounts convert from cents to decimal strings only here, at the boundary.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/domain"
	"github.com/splitpay/payment-service/pkg/dwollaclient"
	"github.com/splitpay/payment-service/pkg/rabbitmq"
)

// CreateTransfer submits a settlement transaction to Dwolla, moving
// AmountCents from the source account's funding source to the destination's.
// When FeeCents is positive a facilitator fee charged to the source customer
// rides along on the same transfer.
func (s *Service) CreateTransfer(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	if tx.HasTransfer() {
		log.Printf("CreateTransfer: transaction %s already submitted as transfer %s", tx.ID, *tx.DwollaTransferID)
		return tx, ErrTransferAlreadySubmitted
	}

	source, err := s.repo.FindAccountByID(ctx, tx.SourceAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find source account: %w", err)
	}
	destination, err := s.repo.FindAccountByID(ctx, tx.DestinationAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find destination account: %w", err)
	}
	if !source.HasFundingSource() || !destination.HasFundingSource() {
		return nil, ErrNoFundingSource
	}

	req := dwollaclient.TransferRequest{
		Links: dwollaclient.TransferLinks{
			Source:      dwollaclient.Link{Href: *source.DwollaFundingSourceURL},
			Destination: dwollaclient.Link{Href: *destination.DwollaFundingSourceURL},
		},
		Amount: dwollaclient.Amount{
			Value:    formatAmountCents(tx.AmountCents),
			Currency: "USD",
		},
		Clearing:      &dwollaclient.Clearing{Destination: "next-available"},
		CorrelationID: tx.ID.String(),
	}
	if tx.FeeCents > 0 {
		sourceUser, err := s.repo.FindUserByID(ctx, tx.SourceUserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find source user: %w", err)
		}
		if !sourceUser.HasCustomer() {
			return nil, ErrNotRegistered
		}
		req.Fees = []dwollaclient.Fee{{
			Links: dwollaclient.FeeLinks{
				ChargeTo: dwollaclient.Link{Href: *sourceUser.DwollaCustomerURL},
			},
			Amount: dwollaclient.Amount{
				Value:    formatAmountCents(tx.FeeCents),
				Currency: "USD",
			},
		}}
	}

	transferURL, err := s.dwollaClient.CreateTransfer(ctx, req, tx.IdempotencyToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer for transaction %s: %w", tx.ID, err)
	}

	transferID := resourceIDFromURL(transferURL)
	if err := s.repo.UpdateTransactionTransfer(ctx, tx.ID, transferID, transferURL, domain.TransferStatusPending); err != nil {
		return nil, fmt.Errorf("transfer %s created but not persisted for transaction %s: %w", transferID, tx.ID, err)
	}

	tx.DwollaTransferID = &transferID
	tx.DwollaTransferURL = &transferURL
	tx.Status = domain.TransferStatusPending
	log.Printf("CreateTransfer: submitted transaction %s as transfer %s amount=%d fee=%d", tx.ID, transferID, tx.AmountCents, tx.FeeCents)
	return tx, nil
}

// GetTransfer fetches the authoritative provider view of a transaction's
// transfer. A transaction never submitted returns nil without touching the
// provider; absence of a transfer is an expected state.
func (s *Service) GetTransfer(ctx context.Context, transactionID uuid.UUID) (*dwollaclient.Transfer, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	if !tx.HasTransfer() {
		return nil, nil
	}
	return s.dwollaClient.GetTransfer(ctx, *tx.DwollaTransferURL)
}

// CancelTransfer requests cancellation of a transaction's transfer. The
// provider decides whether the transfer is still cancellable; a rejection is
// surfaced, not masked. A transaction with no transfer cancels trivially.
func (s *Service) CancelTransfer(ctx context.Context, transactionID uuid.UUID) error {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("failed to find transaction: %w", err)
	}
	if !tx.HasTransfer() {
		log.Printf("CancelTransfer: transaction %s has no transfer, nothing to cancel", tx.ID)
		return nil
	}
	if tx.Status.IsTerminal() {
		return ErrTransferTerminal
	}

	if err := s.dwollaClient.CancelTransfer(ctx, *tx.DwollaTransferURL); err != nil {
		return fmt.Errorf("failed to cancel transfer %s: %w", *tx.DwollaTransferID, err)
	}
	return s.applyTransferStatus(ctx, tx, domain.TransferStatusCancelled)
}

// RefreshTransferStatus re-fetches a transaction's transfer from the provider
// and applies the reported status. Used by both the webhook pipeline and the
// polling job so that the two converge on the same provider truth.
func (s *Service) RefreshTransferStatus(ctx context.Context, tx *domain.Transaction) error {
	if !tx.HasTransfer() {
		return nil
	}
	if tx.Status.IsTerminal() {
		return nil
	}

	transfer, err := s.dwollaClient.GetTransfer(ctx, *tx.DwollaTransferURL)
	if err != nil {
		return fmt.Errorf("failed to fetch transfer %s: %w", *tx.DwollaTransferID, err)
	}
	return s.applyTransferStatus(ctx, tx, mapProviderTransferStatus(transfer.Status))
}

// applyTransferStatus persists a status transition and, when the status
// actually changed, publishes the change for downstream services. Terminal
// rows are left alone; the store enforces the same rule, so stale webhook
// deliveries and the poller cannot regress a finished transfer.
func (s *Service) applyTransferStatus(ctx context.Context, tx *domain.Transaction, status domain.TransferStatus) error {
	if tx.Status.IsTerminal() || status == tx.Status {
		return nil
	}
	if err := s.repo.UpdateTransactionStatus(ctx, tx.ID, status); err != nil {
		return fmt.Errorf("failed to update transaction %s status: %w", tx.ID, err)
	}
	tx.Status = status

	transferID := ""
	if tx.DwollaTransferID != nil {
		transferID = *tx.DwollaTransferID
	}
	event := rabbitmq.TransferStatusEvent{
		TransactionID:    tx.ID,
		DwollaTransferID: transferID,
		Status:           string(status),
		AmountCents:      tx.AmountCents,
		FeeCents:         tx.FeeCents,
		Timestamp:        time.Now().UTC(),
	}
	if err := s.eventProducer.PublishTransferStatusEvent(ctx, event); err != nil {
		// The status is persisted; downstream catch-up happens through the
		// poller and the next webhook delivery.
		log.Printf("applyTransferStatus: failed to publish status event for transaction %s: %v", tx.ID, err)
	}
	return nil
}

// mapProviderTransferStatus normalizes Dwolla's transfer status vocabulary
// onto the local lifecycle.
func mapProviderTransferStatus(status string) domain.TransferStatus {
	switch status {
	case "processed":
		return domain.TransferStatusProcessed
	case "failed":
		return domain.TransferStatusFailed
	case "cancelled":
		return domain.TransferStatusCancelled
	default:
		return domain.TransferStatusPending
	}
}
