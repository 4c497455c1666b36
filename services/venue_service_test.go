package services

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuePresenceAPI/internal/types/venue"
)

var venueRowColumns = []string{
	"id", "name", "city", "country", "venue_type", "image_url", "description",
	"rating", "capacity", "features", "latitude", "longitude", "map_visible", "created_at",
}

func floatPtr(f float64) *float64 { return &f }

func newMockVenues(t *testing.T) (pgxmock.PgxPoolIface, *VenueService) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewVenueService(mock)
}

func TestVenueService_ListVenues(t *testing.T) {
	mock, venues := newMockVenues(t)

	mock.ExpectQuery("FROM venues v ORDER BY").
		WillReturnRows(pgxmock.NewRows(venueRowColumns).
			AddRow("v1", "Soho", "Prishtina", "Kosovo", "Club", "", "", 4.5, 300, []string{"dj"},
				floatPtr(42.6629), floatPtr(21.1655), true, ledgerNow).
			AddRow("v2", "Backroom", "Prishtina", "Kosovo", "Bar", "", "", 4.0, 40, []string{},
				(*float64)(nil), (*float64)(nil), false, ledgerNow))

	list, err := venues.ListVenues(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, venue.CategoryClub, list[0].VenueType)
	require.NotNil(t, list[0].Coordinate)
	assert.InDelta(t, 42.6629, list[0].Coordinate.Latitude, 1e-9)
	assert.True(t, list[0].MapVisible)

	assert.Nil(t, list[1].Coordinate)
	assert.False(t, list[1].MapVisible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueService_GetVenueNotFound(t *testing.T) {
	mock, venues := newMockVenues(t)

	mock.ExpectQuery("FROM venues v WHERE").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := venues.GetVenue(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

func TestVenueService_IsVenueEmployee(t *testing.T) {
	mock, venues := newMockVenues(t)

	mock.ExpectQuery("FROM venue_employees").
		WithArgs("v1", "staff_1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := venues.IsVenueEmployee(context.Background(), "v1", "staff_1")
	require.NoError(t, err)
	assert.True(t, ok)
}
