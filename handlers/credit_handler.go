package handlers

import (
	"context"
	"net/http"
	"time"

	"venuePresenceAPI/internal/types/credit"
	"venuePresenceAPI/middleware"
)

type CreditReader interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	ListEntries(ctx context.Context, userID string) ([]credit.Entry, error)
}

type CreditHandler struct {
	credits CreditReader
}

func NewCreditHandler(credits CreditReader) *CreditHandler {
	return &CreditHandler{credits: credits}
}

func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	balance, err := h.credits.GetBalance(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, credit.BalanceResponse{Balance: balance})
}

func (h *CreditHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	entries, err := h.credits.ListEntries(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []credit.Entry{}
	}

	respondWithJSON(w, http.StatusOK, entries)
}
