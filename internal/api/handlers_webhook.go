/**
 * @description
 * The Dwolla webhook delivery endpoint. The handler order is load-bearing:
 * the raw body is read first, the HMAC signature is verified against those
 * exact bytes, and only then is the payload parsed. Re-serialized JSON is
 * not byte-identical to the wire form, so verifying anything but the raw
 * body would reject every legitimate delivery.
 */

package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/splitpay/payment-service/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the delivery body.
const SignatureHeader = "X-Request-Signature-SHA-256"

const maxWebhookBodyBytes = 1 << 20 // 1 MiB

// WebhookHandler authenticates and processes a Dwolla webhook delivery.
func (h *PaymentHandlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		h.writeError(w, http.StatusUnauthorized, "Missing signature header")
		return
	}

	valid, err := h.service.VerifyWebhookSignature(r.Context(), rawBody, signature)
	if err != nil {
		log.Printf("WebhookHandler: signature verification errored: %v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !valid {
		log.Printf("WebhookHandler: rejected delivery with invalid signature")
		h.writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	if err := h.service.ProcessWebhookEvent(r.Context(), payload, rawBody); err != nil {
		// A 5xx tells Dwolla to re-deliver; processing is idempotent so the
		// retry is safe.
		log.Printf("WebhookHandler: failed to process event %s (%s): %v", payload.ID, payload.Topic, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to process event")
		return
	}

	w.WriteHeader(http.StatusOK)
}
