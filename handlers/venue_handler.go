package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"venuePresenceAPI/internal/types/checkin"
	"venuePresenceAPI/internal/types/user"
	"venuePresenceAPI/internal/types/venue"
	"venuePresenceAPI/middleware"
	"venuePresenceAPI/services"
)

type PresenceService interface {
	RefreshCatalog(ctx context.Context, userID string, location *venue.Coordinate) []venue.Venue
	CheckIn(ctx context.Context, userID, venueID string, coords *venue.Coordinate, opts services.CheckInOptions) (*checkin.CheckIn, error)
	GetActiveCheckIn(ctx context.Context, userID string) (*checkin.CheckIn, error)
	FetchActiveUsersForVenue(ctx context.Context, requesterID, venueID string) ([]user.Guest, error)
}

type CheckInCodes interface {
	Generate(ctx context.Context, staffID, venueID string) (*venue.CheckInCode, error)
	Redeem(ctx context.Context, userID, token string, coords *venue.Coordinate) (*checkin.CheckIn, error)
}

var errBadLocation = errors.New("latitude and longitude must be given together and be in range")

type VenueHandler struct {
	presence PresenceService
	codes    CheckInCodes
}

func NewVenueHandler(presence PresenceService, codes CheckInCodes) *VenueHandler {
	return &VenueHandler{
		presence: presence,
		codes:    codes,
	}
}

// GetAllVenues serves the discovery catalog, nearest first when the caller
// passes lat and lng.
func (h *VenueHandler) GetAllVenues(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	location, err := queryLocation(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, h.presence.RefreshCatalog(ctx, clerkID, location))
}

func (h *VenueHandler) GetVenueGuests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	guests, err := h.presence.FetchActiveUsersForVenue(ctx, clerkID, mux.Vars(r)["venueID"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, guests)
}

// GetCheckInCode issues a QR check-in code for staff of the venue.
func (h *VenueHandler) GetCheckInCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	code, err := h.codes.Generate(ctx, clerkID, mux.Vars(r)["venueID"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, code)
}

func queryLocation(r *http.Request) (*venue.Coordinate, error) {
	q := r.URL.Query()
	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, errBadLocation
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, errBadLocation
	}
	return coordinate(&lat, &lng)
}

func coordinate(lat, lng *float64) (*venue.Coordinate, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, errBadLocation
	}
	c := &venue.Coordinate{Latitude: *lat, Longitude: *lng}
	if !c.Valid() {
		return nil, errBadLocation
	}
	return c, nil
}
