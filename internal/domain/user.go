/**
 * @description
 * This file defines the user and linked-account projections owned by the
 * payment-service. These rows mirror the identity data managed by the rest of
 * the platform, extended with the Dwolla identifiers this service is the sole
 * writer of (customer URL/ID, verification status, funding source URL/ID).
 *
 * @notes
 * - The Dwolla identifiers are nullable: a user only gets a customer record
 *   lazily, the first time they link a bank account or take part in a transfer.
 * - Provider resources are always addressed by the stored URL, never rebuilt
 *   from an ID, so a provider-side URL scheme change cannot orphan records.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// CustomerStatus is the provider-side verification status of a customer record.
type CustomerStatus string

const (
	CustomerStatusNone        CustomerStatus = ""
	CustomerStatusUnverified  CustomerStatus = "unverified"
	CustomerStatusVerified    CustomerStatus = "verified"
	CustomerStatusSuspended   CustomerStatus = "suspended"
	CustomerStatusDeactivated CustomerStatus = "deactivated"
)

// User is the payment-service projection of a platform user.
type User struct {
	ID                   uuid.UUID      `json:"id"`
	FirstName            string         `json:"first_name"`
	LastName             string         `json:"last_name"`
	Email                string         `json:"email"`
	AddressOne           *string        `json:"address_one,omitempty"`
	AddressTwo           *string        `json:"address_two,omitempty"`
	City                 *string        `json:"city,omitempty"`
	State                *string        `json:"state,omitempty"`
	PostalCode           *string        `json:"postal_code,omitempty"`
	DateOfBirth          *time.Time     `json:"date_of_birth,omitempty"`
	LastFourOfSSN        *string        `json:"-"`
	DwollaCustomerID     *string        `json:"dwolla_customer_id,omitempty"`
	DwollaCustomerURL    *string        `json:"dwolla_customer_url,omitempty"`
	DwollaCustomerStatus CustomerStatus `json:"dwolla_customer_status"`
	ReverificationNeeded bool           `json:"reverification_needed"`
}

// HasCustomer reports whether the user has been registered with the provider.
func (u *User) HasCustomer() bool {
	return u.DwollaCustomerURL != nil && *u.DwollaCustomerURL != ""
}

// UserAccount is a bank account a user has linked through the bank-link
// provider. At most one funding source exists per account; once removed it is
// soft-deleted and may never be used as a transfer endpoint again.
type UserAccount struct {
	ID                     uuid.UUID `json:"id"`
	UserID                 uuid.UUID `json:"user_id"`
	AccountName            string    `json:"account_name"`
	DwollaFundingSourceID  *string   `json:"dwolla_funding_source_id,omitempty"`
	DwollaFundingSourceURL *string   `json:"dwolla_funding_source_url,omitempty"`
	FundingSourceRemoved   bool      `json:"funding_source_removed"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// HasFundingSource reports whether the account is registered as a usable
// transfer endpoint.
func (a *UserAccount) HasFundingSource() bool {
	return a.DwollaFundingSourceURL != nil && *a.DwollaFundingSourceURL != "" && !a.FundingSourceRemoved
}
