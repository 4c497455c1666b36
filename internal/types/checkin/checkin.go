package checkin

import (
	"time"
)

// Window is how long a check-in stays live after it is created.
const Window = 2 * time.Hour

type CheckIn struct {
	ID        string    `db:"id"         json:"id"`
	VenueID   string    `db:"venue_id"   json:"venue_id"`
	UserID    string    `db:"user_id"    json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// LiveAt reports whether the check-in has not yet expired at t.
func (c *CheckIn) LiveAt(t time.Time) bool {
	return c != nil && c.ExpiresAt.After(t)
}

type CheckInRequest struct {
	VenueID   string   `json:"venue_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type QRCheckInRequest struct {
	Token     string   `json:"token"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Event is published after a successful check-in.
type Event struct {
	Type    string   `json:"type"`
	CheckIn *CheckIn `json:"checkin"`
}
