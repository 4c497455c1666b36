package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"venuePresenceAPI/internal/types/venue"
)

type VenueService struct {
	db DBPool
}

func NewVenueService(db DBPool) *VenueService {
	return &VenueService{db: db}
}

const venueColumns = `
	v.id::text,
	v.name,
	v.city,
	v.country,
	v.venue_type,
	v.image_url,
	v.description,
	v.rating,
	v.capacity,
	COALESCE(v.features, '{}') AS features,
	v.latitude,
	v.longitude,
	v.map_visible,
	v.created_at
`

// ListVenues returns every venue in server order, hidden ones included.
func (s *VenueService) ListVenues(ctx context.Context) ([]venue.Venue, error) {
	query := `SELECT` + venueColumns + `FROM venues v ORDER BY v.created_at, v.id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query venues: %w", err)
	}
	defer rows.Close()

	venues := []venue.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return venues, nil
}

func (s *VenueService) GetVenue(ctx context.Context, venueID string) (*venue.Venue, error) {
	query := `SELECT` + venueColumns + `FROM venues v WHERE v.id::text = $1`

	v, err := scanVenue(s.db.QueryRow(ctx, query, venueID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return v, nil
}

// IsVenueEmployee reports whether userID is on the venue's staff list.
func (s *VenueService) IsVenueEmployee(ctx context.Context, venueID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM venue_employees
			WHERE venue_id::text = $1 AND user_id = $2
		)
	`

	var exists bool
	if err := s.db.QueryRow(ctx, query, venueID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check venue employee: %w", err)
	}
	return exists, nil
}

func scanVenue(row pgx.Row) (*venue.Venue, error) {
	var (
		v        venue.Venue
		lat, lng *float64
		category string
	)

	err := row.Scan(
		&v.ID,
		&v.Name,
		&v.City,
		&v.Country,
		&category,
		&v.ImageURL,
		&v.Description,
		&v.Rating,
		&v.Capacity,
		&v.Features,
		&lat,
		&lng,
		&v.MapVisible,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan venue row: %w", err)
	}

	v.VenueType = venue.VenueCategory(category)
	if lat != nil && lng != nil {
		v.Coordinate = &venue.Coordinate{Latitude: *lat, Longitude: *lng}
	}

	return &v, nil
}
