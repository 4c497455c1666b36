package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"go.uber.org/zap"

	"venuePresenceAPI/internal/logger"
	"venuePresenceAPI/internal/types/credit"
	"venuePresenceAPI/middleware"
	"venuePresenceAPI/services"
)

type CreditCheckout interface {
	Packs() []credit.Pack
	CreateCheckout(ctx context.Context, userID, priceID string) (*credit.CheckoutResponse, error)
	ApplyPaidTransaction(ctx context.Context, tx *paddle.Transaction) (bool, error)
}

// WebhookVerifier checks the Paddle-Signature header of a request.
type WebhookVerifier interface {
	Verify(r *http.Request) (bool, error)
}

type PaddleHandler struct {
	checkout CreditCheckout
	verifier WebhookVerifier
}

func NewPaddleHandler(checkout CreditCheckout, verifier WebhookVerifier) *PaddleHandler {
	return &PaddleHandler{
		checkout: checkout,
		verifier: verifier,
	}
}

func (h *PaddleHandler) GetPacks(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.checkout.Packs())
}

func (h *PaddleHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var reqBody credit.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil || reqBody.PriceID == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.checkout.CreateCheckout(ctx, clerkID, reqBody.PriceID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// PaddleWebhookHandler grants credits for paid transactions. Storage
// failures answer 500 so Paddle redelivers; everything else is acknowledged.
func (h *PaddleHandler) PaddleWebhookHandler(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to read body")
		return
	}
	r.Body.Close()
	// The verifier reads the body again.
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	valid, err := h.verifier.Verify(r)
	if err != nil {
		logger.Log.Warn("Paddle webhook verification failed", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "Verification failed")
		return
	}
	if !valid {
		respondWithError(w, http.StatusForbidden, "Invalid signature")
		return
	}

	type WebhookPartial struct {
		EventID   string               `json:"event_id"`
		EventType paddle.EventTypeName `json:"event_type"`
	}

	var webhook WebhookPartial
	if err := json.Unmarshal(bodyBytes, &webhook); err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to parse JSON")
		return
	}

	if webhook.EventType != paddle.EventTypeNameTransactionPaid {
		logger.Log.Debug("Ignoring Paddle event", zap.String("event_type", string(webhook.EventType)))
		respondWithJSON(w, http.StatusOK, map[string]string{"id": webhook.EventID, "status": "ignored"})
		return
	}

	var fullEvent struct {
		Data paddle.Transaction `json:"data"`
	}
	if err := json.Unmarshal(bodyBytes, &fullEvent); err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to parse transaction")
		return
	}

	granted, err := h.checkout.ApplyPaidTransaction(r.Context(), &fullEvent.Data)
	switch {
	case errors.Is(err, services.ErrUnattributed):
		logger.Log.Warn("Paid transaction without credit metadata", zap.String("transaction_id", fullEvent.Data.ID))
		respondWithJSON(w, http.StatusOK, map[string]string{"id": fullEvent.Data.ID, "status": "ignored"})
		return
	case err != nil:
		respondWithServiceError(w, r, err)
		return
	}

	status := "duplicate"
	if granted {
		status = "granted"
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": fullEvent.Data.ID, "status": status})
}
