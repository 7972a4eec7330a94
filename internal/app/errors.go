package app

import "errors"

var (
	// ErrNotRegistered is returned when an operation needs a provider customer
	// record the user does not have yet.
	ErrNotRegistered = errors.New("user has no payment provider customer record")

	// ErrMissingLegalName is returned when customer creation is attempted for a
	// user without a first and last name on file.
	ErrMissingLegalName = errors.New("user is missing a legal first or last name")

	// ErrNoFundingSource is returned when a transfer endpoint is requested for
	// an account with no usable funding source.
	ErrNoFundingSource = errors.New("account has no active funding source")

	// ErrTransferAlreadySubmitted is returned when transfer creation is
	// attempted for a transaction that already holds a provider transfer.
	ErrTransferAlreadySubmitted = errors.New("transaction already has a transfer")

	// ErrTransferTerminal is returned when a mutation is attempted against a
	// transfer in a terminal status.
	ErrTransferTerminal = errors.New("transfer is in a terminal status")
)
