/**
 * @description
 * Request and response types for the Dwolla REST API. Dwolla is a HAL-style
 * API: resources are addressed by URL, related resources hang off `_links`,
 * and create operations answer with a `Location` header instead of a body.
 *
 * @notes
 * - Monetary values cross this boundary as two-decimal strings (e.g. "50.00");
 *   the rest of the service works exclusively in integer minor units.
 * - Optional request fields use `omitempty` so absent values are omitted from
 *   the payload entirely. Dwolla rejects explicit nulls on several customer
 *   fields, and rejects an empty `fees` array on transfers, so omission is a
 *   correctness requirement rather than cosmetics.
 */

package dwollaclient

// Link is one HAL link on a Dwolla resource.
type Link struct {
	Href         string `json:"href"`
	Type         string `json:"type,omitempty"`
	ResourceType string `json:"resource-type,omitempty"`
}

// CustomerRequest is the payload for creating or updating a customer. The
// same shape serves both; updates to a verified customer must not carry
// ssn/dateOfBirth/lastName, which callers enforce by clearing those fields.
type CustomerRequest struct {
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Email         string `json:"email,omitempty"`
	Type          string `json:"type,omitempty"`
	Address1      string `json:"address1,omitempty"`
	Address2      string `json:"address2,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	DateOfBirth   string `json:"dateOfBirth,omitempty"`
	SSN           string `json:"ssn,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Status        string `json:"status,omitempty"`
}

// Customer is a Dwolla customer resource.
type Customer struct {
	Links         map[string]Link `json:"_links"`
	ID            string          `json:"id"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	Email         string          `json:"email"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Created       string          `json:"created"`
	Address1      string          `json:"address1,omitempty"`
	City          string          `json:"city,omitempty"`
	State         string          `json:"state,omitempty"`
	PostalCode    string          `json:"postalCode,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// FundingSourceRequest registers a bank account as a funding source, either
// by raw routing/account number or by a bank-link-provider processor token.
type FundingSourceRequest struct {
	RoutingNumber   string `json:"routingNumber,omitempty"`
	AccountNumber   string `json:"accountNumber,omitempty"`
	BankAccountType string `json:"bankAccountType,omitempty"`
	Name            string `json:"name"`
	PlaidToken      string `json:"plaidToken,omitempty"`
}

// FundingSource is a Dwolla funding source resource, either a linked bank
// account (`type == "bank"`) or a processor-held balance (`type == "balance"`).
type FundingSource struct {
	Links           map[string]Link `json:"_links"`
	ID              string          `json:"id"`
	Status          string          `json:"status"`
	Type            string          `json:"type"`
	BankAccountType string          `json:"bankAccountType,omitempty"`
	Name            string          `json:"name"`
	Created         string          `json:"created"`
	Removed         bool            `json:"removed"`
	Channels        []string        `json:"channels,omitempty"`
	BankName        string          `json:"bankName,omitempty"`
	Fingerprint     string          `json:"fingerprint,omitempty"`
}

// FundingSourceList is the embedded list response for a customer's funding sources.
type FundingSourceList struct {
	Embedded struct {
		FundingSources []FundingSource `json:"funding-sources"`
	} `json:"_embedded"`
}

// Amount is a monetary value in Dwolla's decimal-string form.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// FeeLinks names the party a fee is charged to.
type FeeLinks struct {
	ChargeTo Link `json:"charge-to"`
}

// Fee is one facilitator-fee line item on a transfer request.
type Fee struct {
	Links  FeeLinks `json:"_links"`
	Amount Amount   `json:"amount"`
}

// TransferLinks carries the source and destination funding-source URLs.
type TransferLinks struct {
	Source      Link `json:"source"`
	Destination Link `json:"destination"`
}

// Clearing selects the ACH clearing strategy for a transfer.
type Clearing struct {
	Destination string `json:"destination"`
}

// TransferRequest initiates a funds movement between two funding sources.
// Fees must be omitted entirely (not sent empty) when no fee is charged.
type TransferRequest struct {
	Links         TransferLinks `json:"_links"`
	Amount        Amount        `json:"amount"`
	Fees          []Fee         `json:"fees,omitempty"`
	Clearing      *Clearing     `json:"clearing,omitempty"`
	CorrelationID string        `json:"correlationId,omitempty"`
}

// Transfer is a Dwolla transfer resource.
type Transfer struct {
	Links         map[string]Link `json:"_links"`
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Amount        Amount          `json:"amount"`
	Created       string          `json:"created"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// TransferList is the embedded list response for a customer's transfers.
type TransferList struct {
	Embedded struct {
		Transfers []Transfer `json:"transfers"`
	} `json:"_embedded"`
}

// BalanceResponse is the live balance of a balance-type funding source.
type BalanceResponse struct {
	Balance     Amount `json:"balance"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// WebhookSubscriptionRequest registers a delivery endpoint and shared secret.
type WebhookSubscriptionRequest struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type removedUpdate struct {
	Removed bool `json:"removed"`
}

type statusUpdate struct {
	Status string `json:"status"`
}
