package services

import "venuePresenceAPI/internal/types/venue"

// seedVenues is served when neither the database nor the cache can
// produce a catalog, so discovery is never empty.
var seedVenues = []venue.Venue{
	{
		ID:         "seed-prishtina-soho",
		Name:       "Soho Lounge",
		City:       "Prishtina",
		Country:    "Kosovo",
		VenueType:  venue.CategoryLounge,
		Rating:     4.6,
		Capacity:   180,
		Features:   []string{"cocktails", "dj"},
		Coordinate: &venue.Coordinate{Latitude: 42.6629, Longitude: 21.1655},
		MapVisible: true,
	},
	{
		ID:         "seed-prishtina-rooftop",
		Name:       "Sky Rooftop",
		City:       "Prishtina",
		Country:    "Kosovo",
		VenueType:  venue.CategoryRooftop,
		Rating:     4.4,
		Capacity:   120,
		Features:   []string{"view", "terrace"},
		Coordinate: &venue.Coordinate{Latitude: 42.6597, Longitude: 21.1621},
		MapVisible: true,
	},
	{
		ID:         "seed-vlore-beach",
		Name:       "Lungomare Beach Bar",
		City:       "Vlore",
		Country:    "Albania",
		VenueType:  venue.CategoryBeachBar,
		Rating:     4.3,
		Capacity:   250,
		Features:   []string{"beach", "live music"},
		Coordinate: &venue.Coordinate{Latitude: 40.4711, Longitude: 19.4914},
		MapVisible: true,
	},
}

// SeedVenues returns a copy of the built-in fallback catalog.
func SeedVenues() []venue.Venue {
	out := make([]venue.Venue, len(seedVenues))
	copy(out, seedVenues)
	return out
}
