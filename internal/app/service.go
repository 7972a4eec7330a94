/**
 * @description
 * This file contains the core business logic for the payment-service. The
 * `Service` struct orchestrates the Dwolla customer lifecycle and funding
 * source management, coordinating between the database repository, the Dwolla
 * API client, and the message broker.
 *
 * Key features:
 * - Lazily creates provider customer records the first time a user needs one.
 * - Keeps customer creation idempotent: a second create call for a registered
 *   user becomes an update of the existing record.
 * - Never sends identity-document fields (ssn, date of birth, last name) on
 *   updates to an already-verified customer; Dwolla rejects them.
 * - Treats funding source removal as idempotent: removing an account that has
 *   no funding source is a logged no-op, not an error.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/dwollaclient, pkg/rabbitmq, pkg/alerting: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/domain"
	"github.com/splitpay/payment-service/internal/store"
	"github.com/splitpay/payment-service/pkg/alerting"
	"github.com/splitpay/payment-service/pkg/dwollaclient"
	"github.com/splitpay/payment-service/pkg/rabbitmq"
)

// Service provides the core business logic for the payment-service.
type Service struct {
	repo          store.Repository
	dwollaClient  *dwollaclient.Client
	eventProducer rabbitmq.Publisher
	alerts        *alerting.Client
	webhookURL    string
	dedupe        *RedisEventDeduper

	// Serializes subscription bootstrap and rotation so concurrent callers
	// cannot each register a subscription against an empty store.
	subscriptionMu sync.Mutex
}

// NewService creates a new payment service instance. webhookURL is the
// publicly reachable endpoint Dwolla deliveries are subscribed to; dedupe may
// be nil when Redis is unavailable.
func NewService(repo store.Repository, dwolla *dwollaclient.Client, producer rabbitmq.Publisher, alerts *alerting.Client, webhookURL string, dedupe *RedisEventDeduper) *Service {
	return &Service{
		repo:          repo,
		dwollaClient:  dwolla,
		eventProducer: producer,
		alerts:        alerts,
		webhookURL:    webhookURL,
		dedupe:        dedupe,
	}
}

// resourceIDFromURL extracts the trailing resource id from a Dwolla resource URL.
func resourceIDFromURL(resourceURL string) string {
	trimmed := strings.TrimSuffix(resourceURL, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// CreateCustomer registers a platform user as an unverified Dwolla customer.
// Calling it for a user who already has a customer record updates that record
// instead, so retried requests converge on the same provider state.
func (s *Service) CreateCustomer(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.HasCustomer() {
		log.Printf("CreateCustomer: user %s already registered, updating existing customer %s", user.ID, *user.DwollaCustomerID)
		if err := s.UpdateCustomer(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	if user.FirstName == "" || user.LastName == "" {
		return nil, ErrMissingLegalName
	}

	req := s.customerRequest(user)
	customerURL, err := s.dwollaClient.CreateCustomer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer for user %s: %w", user.ID, err)
	}

	customerID := resourceIDFromURL(customerURL)
	if err := s.repo.UpdateUserCustomer(ctx, user.ID, customerID, customerURL); err != nil {
		// The provider record exists but our row does not point at it. The
		// next create attempt recovers it because creation correlates on the
		// user id, so surface the error without retrying here.
		return nil, fmt.Errorf("customer %s created but not persisted for user %s: %w", customerID, user.ID, err)
	}

	user.DwollaCustomerID = &customerID
	user.DwollaCustomerURL = &customerURL
	if user.DwollaCustomerStatus == domain.CustomerStatusNone {
		user.DwollaCustomerStatus = domain.CustomerStatusUnverified
	}
	log.Printf("CreateCustomer: registered user %s as customer %s", user.ID, customerID)
	return user, nil
}

// UpdateCustomer pushes the user's current profile to their existing customer
// record. For customers Dwolla has already verified, the identity-document
// fields are stripped from the payload; sending them alongside an update is
// rejected by the provider.
func (s *Service) UpdateCustomer(ctx context.Context, user *domain.User) error {
	if !user.HasCustomer() {
		return ErrNotRegistered
	}

	req := s.customerRequest(user)
	if user.DwollaCustomerStatus == domain.CustomerStatusVerified {
		req.SSN = ""
		req.DateOfBirth = ""
		req.LastName = ""
	}

	if err := s.dwollaClient.UpdateCustomer(ctx, *user.DwollaCustomerURL, req); err != nil {
		return fmt.Errorf("failed to update customer %s: %w", *user.DwollaCustomerID, err)
	}
	return nil
}

// UpdateCustomerByID is the id-keyed convenience form used by the API layer.
func (s *Service) UpdateCustomerByID(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	return s.UpdateCustomer(ctx, user)
}

// DeactivateCustomer deactivates a user's customer record at the provider.
// A user without a customer record deactivates trivially.
func (s *Service) DeactivateCustomer(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if !user.HasCustomer() {
		log.Printf("DeactivateCustomer: user %s has no customer record, nothing to deactivate", user.ID)
		return nil
	}

	if err := s.dwollaClient.DeactivateCustomer(ctx, *user.DwollaCustomerURL); err != nil {
		return fmt.Errorf("failed to deactivate customer %s: %w", *user.DwollaCustomerID, err)
	}
	return s.repo.UpdateUserCustomerStatus(ctx, user.ID, domain.CustomerStatusDeactivated)
}

// customerRequest builds the provider payload from the user projection.
// Absent optional fields stay zero-valued so they are omitted from the JSON
// body entirely.
func (s *Service) customerRequest(user *domain.User) dwollaclient.CustomerRequest {
	req := dwollaclient.CustomerRequest{
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		Type:          "personal",
		CorrelationID: user.ID.String(),
	}
	if user.AddressOne != nil {
		req.Address1 = *user.AddressOne
	}
	if user.AddressTwo != nil {
		req.Address2 = *user.AddressTwo
	}
	if user.City != nil {
		req.City = *user.City
	}
	if user.State != nil {
		req.State = *user.State
	}
	if user.PostalCode != nil {
		req.PostalCode = *user.PostalCode
	}
	if user.DateOfBirth != nil {
		req.DateOfBirth = user.DateOfBirth.Format("2006-01-02")
	}
	if user.LastFourOfSSN != nil {
		req.SSN = *user.LastFourOfSSN
	}
	return req
}

// GetCustomer fetches the provider's current view of a user's customer record.
func (s *Service) GetCustomer(ctx context.Context, userID uuid.UUID) (*dwollaclient.Customer, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !user.HasCustomer() {
		return nil, ErrNotRegistered
	}
	return s.dwollaClient.GetCustomer(ctx, *user.DwollaCustomerURL)
}

// ListTransfers lists a user's transfers as the provider sees them,
// optionally filtered by provider status.
func (s *Service) ListTransfers(ctx context.Context, userID uuid.UUID, status string) ([]dwollaclient.Transfer, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !user.HasCustomer() {
		return nil, ErrNotRegistered
	}
	list, err := s.dwollaClient.ListTransfers(ctx, *user.DwollaCustomerURL, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers for user %s: %w", user.ID, err)
	}
	return list.Embedded.Transfers, nil
}

// GetFundingSource fetches the provider's current view of an account's
// funding source.
func (s *Service) GetFundingSource(ctx context.Context, accountID uuid.UUID) (*dwollaclient.FundingSource, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account.DwollaFundingSourceURL == nil || *account.DwollaFundingSourceURL == "" {
		return nil, ErrNoFundingSource
	}
	return s.dwollaClient.GetFundingSource(ctx, *account.DwollaFundingSourceURL)
}

// FundingSourceInput carries either a bank-link-provider processor token or
// raw routing/account numbers for direct registration. Exactly one of the two
// forms must be supplied.
type FundingSourceInput struct {
	ProcessorToken  string
	RoutingNumber   string
	AccountNumber   string
	BankAccountType string
	Name            string
}

// ErrInvalidFundingSource is returned when neither a processor token nor a
// routing/account number pair was supplied.
var ErrInvalidFundingSource = errors.New("funding source requires a processor token or routing and account numbers")

// CreateFundingSource registers a bank account as a Dwolla funding source,
// either through the bank-link provider's processor token or by raw
// routing/account numbers. The owning user is registered as a customer first
// if they are not already.
func (s *Service) CreateFundingSource(ctx context.Context, accountID uuid.UUID, input FundingSourceInput) (*domain.UserAccount, error) {
	hasToken := input.ProcessorToken != ""
	hasAccountNumbers := input.RoutingNumber != "" && input.AccountNumber != ""
	if !hasToken && !hasAccountNumbers {
		return nil, ErrInvalidFundingSource
	}

	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	user, err := s.repo.FindUserByID(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account owner: %w", err)
	}
	if !user.HasCustomer() {
		user, err = s.CreateCustomer(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	}

	name := input.Name
	if name == "" {
		name = account.AccountName
	}
	if name == "" {
		name = fmt.Sprintf("%s %s's account", user.FirstName, user.LastName)
	}
	fundingSourceURL, err := s.dwollaClient.CreateFundingSource(ctx, *user.DwollaCustomerURL, dwollaclient.FundingSourceRequest{
		Name:            name,
		PlaidToken:      input.ProcessorToken,
		RoutingNumber:   input.RoutingNumber,
		AccountNumber:   input.AccountNumber,
		BankAccountType: input.BankAccountType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create funding source for account %s: %w", account.ID, err)
	}

	fundingSourceID := resourceIDFromURL(fundingSourceURL)
	if err := s.repo.UpdateAccountFundingSource(ctx, account.ID, fundingSourceID, fundingSourceURL); err != nil {
		return nil, fmt.Errorf("funding source %s created but not persisted for account %s: %w", fundingSourceID, account.ID, err)
	}

	account.DwollaFundingSourceID = &fundingSourceID
	account.DwollaFundingSourceURL = &fundingSourceURL
	account.FundingSourceRemoved = false
	log.Printf("CreateFundingSource: registered account %s as funding source %s", account.ID, fundingSourceID)
	return account, nil
}

// RemoveFundingSource detaches an account's funding source at the provider
// and soft-deletes it locally. An account without a funding source is a
// logged no-op; unlink flows retry and must stay idempotent.
func (s *Service) RemoveFundingSource(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to find account: %w", err)
	}
	if !account.HasFundingSource() {
		log.Printf("RemoveFundingSource: account %s has no active funding source, nothing to remove", account.ID)
		return nil
	}

	if err := s.dwollaClient.RemoveFundingSource(ctx, *account.DwollaFundingSourceURL); err != nil {
		return fmt.Errorf("failed to remove funding source %s: %w", *account.DwollaFundingSourceID, err)
	}
	return s.repo.MarkFundingSourceRemoved(ctx, account.ID)
}

// ListFundingSources returns the user's funding sources as the provider
// currently sees them.
func (s *Service) ListFundingSources(ctx context.Context, userID uuid.UUID) ([]dwollaclient.FundingSource, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !user.HasCustomer() {
		return nil, ErrNotRegistered
	}
	return s.dwollaClient.ListFundingSources(ctx, *user.DwollaCustomerURL)
}

// Balance is the point-in-time balance of one of a customer's Dwolla
// balance-type funding sources. The provider's decimal string is kept for
// display; the integer cents value is the one to do arithmetic with.
type Balance struct {
	FundingSourceID string    `json:"funding_source_id"`
	Amount          string    `json:"amount"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	AsOf            time.Time `json:"as_of"`
}

// GetBalances reads the live balance of every balance-type funding source the
// customer holds. Values are fetched from the provider on every call; they
// are the authoritative figures, not cached projections. A customer with no
// balance-type source gets an empty list, which is a valid state.
func (s *Service) GetBalances(ctx context.Context, userID uuid.UUID) ([]Balance, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !user.HasCustomer() {
		return nil, ErrNotRegistered
	}

	sources, err := s.dwollaClient.ListFundingSources(ctx, *user.DwollaCustomerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list funding sources for user %s: %w", user.ID, err)
	}

	balances := make([]Balance, 0)
	for i := range sources {
		if sources[i].Type != "balance" || sources[i].Removed {
			continue
		}
		balanceLink, ok := sources[i].Links["self"]
		if !ok {
			return nil, fmt.Errorf("balance funding source %s has no self link", sources[i].ID)
		}
		resp, err := s.dwollaClient.GetBalance(ctx, balanceLink.Href+"/balance")
		if err != nil {
			return nil, fmt.Errorf("failed to read balance for user %s: %w", user.ID, err)
		}
		cents, err := parseAmountToCents(resp.Balance.Value)
		if err != nil {
			return nil, fmt.Errorf("provider returned unparseable balance %q: %w", resp.Balance.Value, err)
		}
		balances = append(balances, Balance{
			FundingSourceID: sources[i].ID,
			Amount:          resp.Balance.Value,
			AmountCents:     cents,
			Currency:        resp.Balance.Currency,
			AsOf:            time.Now().UTC(),
		})
	}
	return balances, nil
}
