package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"venuePresenceAPI/internal/logger"
	"venuePresenceAPI/services"
	"venuePresenceAPI/utils"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

type tooFarAwayResponse struct {
	Error      string  `json:"error"`
	DistanceKm float64 `json:"distance_km"`
	Distance   string  `json:"distance"`
}

// respondWithServiceError maps domain errors onto status codes. Anything
// unrecognised is logged and reported as a server error.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var tooFar *services.TooFarAwayError
	switch {
	case errors.As(err, &tooFar):
		km := tooFar.DistanceKm
		respondWithJSON(w, http.StatusForbidden, tooFarAwayResponse{
			Error:      "Too far away from venue",
			DistanceKm: km,
			Distance:   utils.FormatDistance(&km),
		})
	case errors.Is(err, services.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, services.ErrVenueNotFound):
		respondWithError(w, http.StatusNotFound, "Venue not found")
	case errors.Is(err, services.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, services.ErrMissingLocation):
		respondWithError(w, http.StatusBadRequest, "Location is required to check in")
	case errors.Is(err, services.ErrNotCheckedIn):
		respondWithError(w, http.StatusForbidden, "Check in at this venue to see who is here")
	case errors.Is(err, services.ErrNotEmployee):
		respondWithError(w, http.StatusForbidden, "Only venue staff can do that")
	case errors.Is(err, services.ErrInvalidToken):
		respondWithError(w, http.StatusBadRequest, "Invalid or expired check-in code")
	case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrUnknownPack):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, "Server error")
	}
}
