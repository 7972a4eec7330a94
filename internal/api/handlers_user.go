/**
 * @description
 * User-facing read handlers. These sit behind the session JWT middleware and
 * operate on the authenticated user, never on an id from the request.
 */

package api

import "net/http"

// GetBalanceHandler returns the live balance of every balance-type funding
// source the authenticated user holds. A user with none gets an empty list.
func (h *PaymentHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetSessionUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	balances, err := h.service.GetBalances(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "GetBalanceHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"balances": balances})
}

// ListFundingSourcesHandler returns the authenticated user's funding sources
// as the provider currently sees them.
func (h *PaymentHandlers) ListFundingSourcesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetSessionUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sources, err := h.service.ListFundingSources(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "ListFundingSourcesHandler")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"funding_sources": sources})
}
