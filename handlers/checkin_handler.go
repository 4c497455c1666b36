package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"venuePresenceAPI/internal/types/checkin"
	"venuePresenceAPI/middleware"
	"venuePresenceAPI/services"
)

type CheckInHandler struct {
	presence PresenceService
	codes    CheckInCodes
}

func NewCheckInHandler(presence PresenceService, codes CheckInCodes) *CheckInHandler {
	return &CheckInHandler{
		presence: presence,
		codes:    codes,
	}
}

func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req checkin.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VenueID == "" {
		respondWithError(w, http.StatusBadRequest, "venue_id is required")
		return
	}

	coords, err := coordinate(req.Latitude, req.Longitude)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.presence.CheckIn(ctx, clerkID, req.VenueID, coords, services.CheckInOptions{})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// CheckInWithCode redeems a staff-issued QR code.
func (h *CheckInHandler) CheckInWithCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req checkin.QRCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	coords, err := coordinate(req.Latitude, req.Longitude)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.codes.Redeem(ctx, clerkID, req.Token, coords)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// GetActiveCheckIn answers 204 when the user is not checked in anywhere.
func (h *CheckInHandler) GetActiveCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	active, err := h.presence.GetActiveCheckIn(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if active == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondWithJSON(w, http.StatusOK, active)
}
