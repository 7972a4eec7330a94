/**
 * @description
 * This file contains the HTTP handlers for the payment-service's internal API
 * endpoints. Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP response.
 * They act as the bridge between the web layer and the business logic layer.
 *
 * Error mapping: store sentinels become 404s, operations against users or
 * accounts missing their provider identifiers become 401s, provider
 * validation rejections become 422s, and provider outages become 502s so
 * callers can tell our fault from Dwolla's.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For URL parameter extraction.
 * - internal/app, internal/store: For service logic and custom errors.
 * - pkg/dwollaclient: For provider error classification.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/splitpay/payment-service/internal/app"
	"github.com/splitpay/payment-service/internal/store"
	"github.com/splitpay/payment-service/pkg/dwollaclient"
)

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service *app.Service
}

// NewPaymentHandlers creates a new handler set backed by the given service.
func NewPaymentHandlers(service *app.Service) *PaymentHandlers {
	return &PaymentHandlers{service: service}
}

type createCustomerRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type createFundingSourceRequest struct {
	AccountID       uuid.UUID `json:"account_id"`
	ProcessorToken  string    `json:"processor_token,omitempty"`
	RoutingNumber   string    `json:"routing_number,omitempty"`
	AccountNumber   string    `json:"account_number,omitempty"`
	BankAccountType string    `json:"bank_account_type,omitempty"`
	Name            string    `json:"name,omitempty"`
}

type createTransferRequest struct {
	TransactionID uuid.UUID `json:"transaction_id"`
}

// CreateCustomerHandler registers a user as a Dwolla customer. Repeated calls
// for the same user are safe; they converge on an update of the existing record.
func (h *PaymentHandlers) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.CreateCustomer(r.Context(), req.UserID)
	if err != nil {
		h.writeServiceError(w, err, "CreateCustomerHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// UpdateCustomerHandler pushes the user's current profile to the provider.
func (h *PaymentHandlers) UpdateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.service.UpdateCustomerByID(r.Context(), userID); err != nil {
		h.writeServiceError(w, err, "UpdateCustomerHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeactivateCustomerHandler deactivates the user's customer record.
func (h *PaymentHandlers) DeactivateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.service.DeactivateCustomer(r.Context(), userID); err != nil {
		h.writeServiceError(w, err, "DeactivateCustomerHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// GetCustomerHandler returns the provider's current view of a user's customer
// record.
func (h *PaymentHandlers) GetCustomerHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "GetCustomerHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, customer)
}

// ListTransfersHandler lists a user's transfers as the provider sees them. An
// optional "status" query parameter filters by provider status.
func (h *PaymentHandlers) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	transfers, err := h.service.ListTransfers(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, err, "ListTransfersHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"transfers": transfers})
}

// CreateFundingSourceHandler registers a bank account as a funding source,
// from either a bank-link processor token or raw routing/account numbers.
func (h *PaymentHandlers) CreateFundingSourceHandler(w http.ResponseWriter, r *http.Request) {
	var req createFundingSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.CreateFundingSource(r.Context(), req.AccountID, app.FundingSourceInput{
		ProcessorToken:  req.ProcessorToken,
		RoutingNumber:   req.RoutingNumber,
		AccountNumber:   req.AccountNumber,
		BankAccountType: req.BankAccountType,
		Name:            req.Name,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidFundingSource) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeServiceError(w, err, "CreateFundingSourceHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// GetFundingSourceHandler returns the provider's current view of an account's
// funding source.
func (h *PaymentHandlers) GetFundingSourceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	source, err := h.service.GetFundingSource(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, err, "GetFundingSourceHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, source)
}

// RemoveFundingSourceHandler detaches an account's funding source. Removing an
// account with nothing to remove succeeds.
func (h *PaymentHandlers) RemoveFundingSourceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid account ID")
		return
	}

	if err := h.service.RemoveFundingSource(r.Context(), accountID); err != nil {
		h.writeServiceError(w, err, "RemoveFundingSourceHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// CreateTransferHandler submits a transaction to Dwolla as a transfer. A
// transaction already submitted answers 200 with the existing transfer rather
// than creating a second one.
func (h *PaymentHandlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.CreateTransfer(r.Context(), req.TransactionID)
	if err != nil {
		if errors.Is(err, app.ErrTransferAlreadySubmitted) {
			h.writeJSON(w, http.StatusOK, tx)
			return
		}
		h.writeServiceError(w, err, "CreateTransferHandler")
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

// GetTransferHandler returns the provider's current view of a transaction's
// transfer, or 204 when the transaction was never submitted.
func (h *PaymentHandlers) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	transfer, err := h.service.GetTransfer(r.Context(), transactionID)
	if err != nil {
		h.writeServiceError(w, err, "GetTransferHandler")
		return
	}
	if transfer == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, transfer)
}

// CancelTransferHandler asks the provider to cancel a transaction's transfer.
func (h *PaymentHandlers) CancelTransferHandler(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	if err := h.service.CancelTransfer(r.Context(), transactionID); err != nil {
		if errors.Is(err, app.ErrTransferTerminal) {
			h.writeError(w, http.StatusConflict, "Transfer is already in a terminal status")
			return
		}
		h.writeServiceError(w, err, "CancelTransferHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// RotateWebhookSecretHandler swaps the webhook subscription for one with a
// fresh secret. In-flight deliveries signed with the old secret keep verifying
// until the old subscription is deactivated.
func (h *PaymentHandlers) RotateWebhookSecretHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RotateWebhookSecret(r.Context()); err != nil {
		h.writeServiceError(w, err, "RotateWebhookSecretHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rotated"})
}

// writeServiceError maps application and provider errors onto HTTP statuses.
func (h *PaymentHandlers) writeServiceError(w http.ResponseWriter, err error, op string) {
	log.Printf("%s: %v", op, err)

	switch {
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotRegistered),
		errors.Is(err, app.ErrNoFundingSource),
		errors.Is(err, app.ErrMissingLegalName):
		// Operations against users or accounts lacking their provider
		// identifiers are unauthorized, not merely invalid.
		h.writeError(w, http.StatusUnauthorized, err.Error())
	default:
		var apiErr *dwollaclient.APIError
		if errors.As(err, &apiErr) {
			if apiErr.IsValidation() {
				h.writeError(w, http.StatusUnprocessableEntity, apiErr.Message)
				return
			}
			h.writeError(w, http.StatusBadGateway, "Payment provider is unavailable")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *PaymentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PaymentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
