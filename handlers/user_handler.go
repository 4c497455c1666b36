package handlers

import (
	"context"
	"net/http"
	"time"

	"venuePresenceAPI/internal/types/user"
	"venuePresenceAPI/middleware"
)

type ProfileReader interface {
	GetProfile(ctx context.Context, clerkID string) (*user.Profile, error)
}

type UserHandler struct {
	profiles ProfileReader
}

func NewUserHandler(profiles ProfileReader) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// GetMe returns the caller's synced profile. A user the Clerk webhook has
// not delivered yet gets 404.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	profile, err := h.profiles.GetProfile(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if profile == nil {
		respondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}
