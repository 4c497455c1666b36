package venue

import (
	"time"
)

type VenueCategory string

const (
	CategoryClub     VenueCategory = "Club"
	CategoryBar      VenueCategory = "Bar"
	CategoryPianoBar VenueCategory = "Piano Bar"
	CategoryBeachBar VenueCategory = "Beach Bar"
	CategoryRooftop  VenueCategory = "Rooftop"
	CategoryPub      VenueCategory = "Pub"
	CategoryLounge   VenueCategory = "Lounge"
)

// Coordinate is a WGS84 point. A missing location is a nil *Coordinate, never (0,0).
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is inside the latitude/longitude ranges.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

type Venue struct {
	ID          string        `db:"id"           json:"id"`
	Name        string        `db:"name"         json:"name"`
	City        string        `db:"city"         json:"city"`
	Country     string        `db:"country"      json:"country"`
	VenueType   VenueCategory `db:"venue_type"   json:"venue_type"`
	ImageURL    string        `db:"image_url"    json:"image_url"`
	Description string        `db:"description"  json:"description"`
	Rating      float64       `db:"rating"       json:"rating"`
	Capacity    int           `db:"capacity"     json:"capacity"`
	Features    []string      `db:"features"     json:"features"`

	Coordinate *Coordinate `db:"-"           json:"coordinate,omitempty"`
	MapVisible bool        `db:"map_visible" json:"map_visible"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Derived per read, never stored on the venue row.
	ActiveUserCount int      `db:"-" json:"active_user_count"`
	DistanceKm      *float64 `db:"-" json:"distance_km,omitempty"`
	DistanceStr     string   `db:"-" json:"distance_str,omitempty"`
	IsCheckedIn     bool     `db:"-" json:"is_checked_in"`
}

// CachedCatalog is the snapshot persisted by the presence cache.
type CachedCatalog struct {
	Venues   []Venue   `json:"venues"`
	CachedAt time.Time `json:"cached_at"`
}

// CheckInCode is a short-lived, staff-issued code that lets a guest check in
// without passing the proximity gate.
type CheckInCode struct {
	VenueID   string    `json:"venue_id"`
	Token     string    `json:"token"`
	QRCodePNG string    `json:"qr_code_png"`
	ExpiresAt time.Time `json:"expires_at"`
}
