/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL the payment-service runs against the
 * users, user_accounts, transactions, dwolla_webhook_subscriptions, and
 * dwolla_webhook_events tables.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/splitpay/payment-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db      *pgxpool.Pool
	secrets *SecretCipher
}

// NewPostgresRepository creates a new instance of PostgresRepository. The
// cipher is applied to webhook subscription secrets on the way in and out.
func NewPostgresRepository(db *pgxpool.Pool, secrets *SecretCipher) *PostgresRepository {
	return &PostgresRepository{db: db, secrets: secrets}
}

// FindUserByID retrieves a user projection by its ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT id, first_name, last_name, email, address_one, address_two, city, state,
		       postal_code, date_of_birth, last_four_of_ssn, dwolla_customer_id,
		       dwolla_customer_url, dwolla_customer_status, reverification_needed
		FROM users
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.AddressOne, &user.AddressTwo, &user.City, &user.State,
		&user.PostalCode, &user.DateOfBirth, &user.LastFourOfSSN,
		&user.DwollaCustomerID, &user.DwollaCustomerURL,
		&user.DwollaCustomerStatus, &user.ReverificationNeeded,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByCustomerID resolves the user a Dwolla customer resource belongs
// to. Webhook payloads carry the provider's resource id, not ours.
func (r *PostgresRepository) FindUserByCustomerID(ctx context.Context, dwollaCustomerID string) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT id, first_name, last_name, email, address_one, address_two, city, state,
		       postal_code, date_of_birth, last_four_of_ssn, dwolla_customer_id,
		       dwolla_customer_url, dwolla_customer_status, reverification_needed
		FROM users
		WHERE dwolla_customer_id = $1
	`
	err := r.db.QueryRow(ctx, query, dwollaCustomerID).Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.AddressOne, &user.AddressTwo, &user.City, &user.State,
		&user.PostalCode, &user.DateOfBirth, &user.LastFourOfSSN,
		&user.DwollaCustomerID, &user.DwollaCustomerURL,
		&user.DwollaCustomerStatus, &user.ReverificationNeeded,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUserCustomer stores the provider identifiers after customer creation.
func (r *PostgresRepository) UpdateUserCustomer(ctx context.Context, userID uuid.UUID, customerID, customerURL string) error {
	query := `
		UPDATE users
		SET dwolla_customer_id = $2, dwolla_customer_url = $3,
		    dwolla_customer_status = COALESCE(NULLIF(dwolla_customer_status, ''), 'unverified'),
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, userID, customerID, customerURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserCustomerStatus records a verification status transition.
func (r *PostgresRepository) UpdateUserCustomerStatus(ctx context.Context, userID uuid.UUID, status domain.CustomerStatus) error {
	query := `UPDATE users SET dwolla_customer_status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetReverificationNeeded flags a user whose customer record requires
// re-verification with the provider.
func (r *PostgresRepository) SetReverificationNeeded(ctx context.Context, userID uuid.UUID, needed bool) error {
	query := `UPDATE users SET reverification_needed = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, userID, needed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// FindAccountByID retrieves a linked bank account by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.UserAccount, error) {
	var account domain.UserAccount
	query := `
		SELECT id, user_id, account_name, dwolla_funding_source_id,
		       dwolla_funding_source_url, funding_source_removed, created_at, updated_at
		FROM user_accounts
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID, &account.UserID, &account.AccountName,
		&account.DwollaFundingSourceID, &account.DwollaFundingSourceURL,
		&account.FundingSourceRemoved, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpdateAccountFundingSource stores the provider identifiers after funding
// source registration and clears any prior removed flag.
func (r *PostgresRepository) UpdateAccountFundingSource(ctx context.Context, accountID uuid.UUID, fundingSourceID, fundingSourceURL string) error {
	query := `
		UPDATE user_accounts
		SET dwolla_funding_source_id = $2, dwolla_funding_source_url = $3,
		    funding_source_removed = FALSE, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, accountID, fundingSourceID, fundingSourceURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// MarkFundingSourceRemoved soft-deletes the funding source. The row and its
// provider identifiers are kept for audit; only the removed flag flips.
func (r *PostgresRepository) MarkFundingSourceRemoved(ctx context.Context, accountID uuid.UUID) error {
	query := `UPDATE user_accounts SET funding_source_removed = TRUE, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// FindTransactionByID retrieves a settlement transaction by its ID.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	return r.findTransaction(ctx, `WHERE id = $1`, transactionID)
}

// FindTransactionByTransferID resolves the local transaction a Dwolla
// transfer resource belongs to.
func (r *PostgresRepository) FindTransactionByTransferID(ctx context.Context, dwollaTransferID string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, `WHERE dwolla_transfer_id = $1`, dwollaTransferID)
}

func (r *PostgresRepository) findTransaction(ctx context.Context, where string, arg interface{}) (*domain.Transaction, error) {
	var tx domain.Transaction
	query := `
		SELECT id, source_user_id, destination_user_id, source_account_id,
		       destination_account_id, amount_cents, fee_cents, idempotency_token,
		       dwolla_transfer_id, dwolla_transfer_url, status, retrieval_attempts,
		       created_at, updated_at
		FROM transactions
	` + where
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&tx.ID, &tx.SourceUserID, &tx.DestinationUserID, &tx.SourceAccountID,
		&tx.DestinationAccountID, &tx.AmountCents, &tx.FeeCents, &tx.IdempotencyToken,
		&tx.DwollaTransferID, &tx.DwollaTransferURL, &tx.Status, &tx.RetrievalAttempts,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// UpdateTransactionTransfer stores the provider transfer identifiers after
// transfer creation.
func (r *PostgresRepository) UpdateTransactionTransfer(ctx context.Context, transactionID uuid.UUID, transferID, transferURL string, status domain.TransferStatus) error {
	query := `
		UPDATE transactions
		SET dwolla_transfer_id = $2, dwolla_transfer_url = $3, status = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, transactionID, transferID, transferURL, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// UpdateTransactionStatus transitions a transaction's transfer status.
// Terminal states are final: a row already in processed/failed/cancelled is
// never moved again, regardless of delivery order.
func (r *PostgresRepository) UpdateTransactionStatus(ctx context.Context, transactionID uuid.UUID, status domain.TransferStatus) error {
	query := `
		UPDATE transactions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('processed', 'failed', 'cancelled')
	`
	_, err := r.db.Exec(ctx, query, transactionID, status)
	return err
}

// IncrementRetrievalAttempts bumps the count of status polls for a transaction.
func (r *PostgresRepository) IncrementRetrievalAttempts(ctx context.Context, transactionID uuid.UUID) error {
	query := `UPDATE transactions SET retrieval_attempts = retrieval_attempts + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(ctx, query, transactionID)
	return err
}

// ListPendingTransferTransactions returns submitted transactions still
// awaiting a terminal status, oldest first, for the polling job.
func (r *PostgresRepository) ListPendingTransferTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT id, source_user_id, destination_user_id, source_account_id,
		       destination_account_id, amount_cents, fee_cents, idempotency_token,
		       dwolla_transfer_id, dwolla_transfer_url, status, retrieval_attempts,
		       created_at, updated_at
		FROM transactions
		WHERE status = 'pending' AND dwolla_transfer_url IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.SourceUserID, &tx.DestinationUserID, &tx.SourceAccountID,
			&tx.DestinationAccountID, &tx.AmountCents, &tx.FeeCents, &tx.IdempotencyToken,
			&tx.DwollaTransferID, &tx.DwollaTransferURL, &tx.Status, &tx.RetrievalAttempts,
			&tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// FindActiveWebhookSubscriptions returns every subscription with is_active =
// TRUE, oldest first. More than one row is only expected during a secret
// rotation window.
func (r *PostgresRepository) FindActiveWebhookSubscriptions(ctx context.Context) ([]domain.WebhookSubscription, error) {
	query := `
		SELECT uuid, secret, dwolla_subscription_url, is_active, created_at, updated_at
		FROM dwolla_webhook_subscriptions
		WHERE is_active = TRUE
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.WebhookSubscription
	for rows.Next() {
		var sub domain.WebhookSubscription
		var sealed string
		if err := rows.Scan(&sub.UUID, &sealed, &sub.DwollaSubscriptionURL, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		secret, err := r.secrets.Decrypt(sealed)
		if err != nil {
			return nil, err
		}
		sub.Secret = secret
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CreateWebhookSubscription persists a new subscription with its secret
// encrypted at rest.
func (r *PostgresRepository) CreateWebhookSubscription(ctx context.Context, sub *domain.WebhookSubscription) error {
	sealed, err := r.secrets.Encrypt(sub.Secret)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO dwolla_webhook_subscriptions (uuid, secret, dwolla_subscription_url, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, sub.UUID, sealed, sub.DwollaSubscriptionURL, sub.IsActive).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
}

// DeactivateWebhookSubscription flips a subscription's is_active flag off.
// Rows are never deleted; an inactive row documents a completed rotation.
func (r *PostgresRepository) DeactivateWebhookSubscription(ctx context.Context, subscriptionUUID uuid.UUID) error {
	query := `UPDATE dwolla_webhook_subscriptions SET is_active = FALSE, updated_at = NOW() WHERE uuid = $1`
	tag, err := r.db.Exec(ctx, query, subscriptionUUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// HasProcessedWebhookEvent reports whether a delivery with this provider
// event id has already been logged. Dwolla may deliver events more than once.
func (r *PostgresRepository) HasProcessedWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM dwolla_webhook_events WHERE event_id = $1)`
	if err := r.db.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// LogWebhookEvent durably records a processed delivery. The primary key on
// event_id makes the log safe against concurrent duplicate deliveries.
func (r *PostgresRepository) LogWebhookEvent(ctx context.Context, entry domain.WebhookEventLogEntry) error {
	query := `
		INSERT INTO dwolla_webhook_events (event_id, transaction_id, topic, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, entry.EventID, entry.TransactionID, entry.Topic, entry.Payload)
	return err
}
