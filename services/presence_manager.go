package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/metrics"
	"venuePresenceAPI/internal/types/checkin"
	"venuePresenceAPI/internal/types/user"
	"venuePresenceAPI/internal/types/venue"
	"venuePresenceAPI/utils"
)

// ProximityLimitMeters is the furthest a user may be from a venue to check in
// without an override signal.
const ProximityLimitMeters = 50.0

// activeMemoTTL bounds how long a looked-up active check-in is reused.
const activeMemoTTL = time.Minute

type VenueCatalog interface {
	ListVenues(ctx context.Context) ([]venue.Venue, error)
	GetVenue(ctx context.Context, venueID string) (*venue.Venue, error)
}

type CheckInStore interface {
	GetActive(ctx context.Context, userID string) (*checkin.CheckIn, error)
	Create(ctx context.Context, userID, venueID string) (*checkin.CheckIn, error)
	CountActiveByVenue(ctx context.Context, venueIDs []string) (map[string]int, error)
	ListActiveGuests(ctx context.Context, venueID string) ([]user.Guest, error)
}

type CheckInOptions struct {
	// OverrideProximity skips the distance gate; set for QR check-ins,
	// which carry their own proof of presence.
	OverrideProximity bool
}

type PresenceManager struct {
	venues VenueCatalog
	ledger CheckInStore
	cache  *PresenceCache
	events PresenceEvents
	clock  clock.Clock
	active *gocache.Cache
	logger *zap.Logger
}

func NewPresenceManager(
	venues VenueCatalog,
	ledger CheckInStore,
	cache *PresenceCache,
	events PresenceEvents,
	clk clock.Clock,
	logger *zap.Logger,
) *PresenceManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = NoopPresenceEvents()
	}
	return &PresenceManager{
		venues: venues,
		ledger: ledger,
		cache:  cache,
		events: events,
		clock:  clk,
		active: gocache.New(activeMemoTTL, 5*time.Minute),
		logger: logger,
	}
}

// RefreshCatalog returns the discoverable venues with live guest counts,
// annotated for userID and sorted by distance from location when it is
// known. It never fails: remote errors fall back to the cache, then to the
// seed list.
func (m *PresenceManager) RefreshCatalog(ctx context.Context, userID string, location *venue.Coordinate) []venue.Venue {
	catalog := m.loadCatalog(ctx)

	if location != nil {
		m.cache.CacheUserLocation(ctx, userID, *location)
	} else if cached, ok := m.cache.GetCachedUserLocation(ctx, userID); ok {
		location = cached
	}

	var activeVenueID string
	if userID != "" {
		active, err := m.GetActiveCheckIn(ctx, userID)
		if err != nil {
			m.logger.Warn("Could not resolve active check-in for catalog", zap.String("user_id", userID), zap.Error(err))
		} else if active != nil {
			activeVenueID = active.VenueID
		}
	}

	out := make([]venue.Venue, len(catalog))
	for i, v := range catalog {
		v.DistanceKm = nil
		v.DistanceStr = ""
		if km, ok := utils.DistanceKm(location, v.Coordinate); ok {
			d := km
			v.DistanceKm = &d
			v.DistanceStr = utils.FormatDistance(&d)
		}
		v.IsCheckedIn = activeVenueID != "" && v.ID == activeVenueID
		out[i] = v
	}

	if location != nil {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DistanceKm, out[j].DistanceKm
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return *a < *b
		})
	}

	return out
}

func (m *PresenceManager) loadCatalog(ctx context.Context) []venue.Venue {
	var (
		venues []venue.Venue
		counts map[string]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		venues, err = m.venues.ListVenues(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = m.ledger.CountActiveByVenue(gctx, nil)
		return err
	})

	err := g.Wait()
	if err == nil {
		joined := make([]venue.Venue, 0, len(venues))
		for _, v := range venues {
			if !v.MapVisible {
				continue
			}
			v.ActiveUserCount = counts[v.ID]
			joined = append(joined, v)
		}
		m.cache.CacheCatalog(ctx, joined)
		metrics.CatalogSource.WithLabelValues("remote").Inc()
		return joined
	}
	m.logger.Warn("Catalog fetch failed, falling back", zap.Error(err))

	if cached, ok := m.cache.GetCachedCatalog(ctx); ok {
		metrics.CatalogSource.WithLabelValues("cache").Inc()
		return cached
	}

	metrics.CatalogSource.WithLabelValues("seed").Inc()
	return SeedVenues()
}

// CheckIn verifies presence and records a new check-in for userID,
// superseding any previous one. coords is the position the client just
// measured; without it only an override can succeed.
func (m *PresenceManager) CheckIn(ctx context.Context, userID, venueID string, coords *venue.Coordinate, opts CheckInOptions) (*checkin.CheckIn, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	v, err := m.resolveVenue(ctx, venueID)
	if err != nil {
		metrics.CheckIns.WithLabelValues("venue_error").Inc()
		return nil, err
	}
	if v.Coordinate == nil {
		metrics.CheckIns.WithLabelValues("missing_location").Inc()
		return nil, ErrMissingLocation
	}

	location := coords
	if location == nil {
		location, _ = m.cache.GetCachedUserLocation(ctx, userID)
	}
	distanceKm, known := utils.DistanceKm(location, v.Coordinate)

	if !opts.OverrideProximity {
		if coords == nil || !known {
			metrics.CheckIns.WithLabelValues("missing_location").Inc()
			return nil, ErrMissingLocation
		}
		if distanceKm*1000 > ProximityLimitMeters {
			metrics.CheckIns.WithLabelValues("too_far").Inc()
			return nil, &TooFarAwayError{DistanceKm: distanceKm}
		}
	}

	if coords != nil {
		m.cache.CacheUserLocation(ctx, userID, *coords)
	}

	created, err := m.ledger.Create(ctx, userID, v.ID)
	if err != nil {
		metrics.CheckIns.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("failed to check in: %w", err)
	}

	m.active.Set(userID, created, activeMemoTTL)
	metrics.CheckIns.WithLabelValues("ok").Inc()
	m.logger.Info("User checked in",
		zap.String("user_id", userID),
		zap.String("venue_id", v.ID),
		zap.Bool("override", opts.OverrideProximity),
		zap.Time("expires_at", created.ExpiresAt),
	)

	if err := m.events.CheckedIn(ctx, created); err != nil {
		m.logger.Warn("Failed to publish check-in event", zap.String("venue_id", v.ID), zap.Error(err))
	}

	// Recompute counts and the checked-in flag so the cached catalog agrees.
	m.RefreshCatalog(ctx, userID, location)

	return created, nil
}

// GetActiveCheckIn returns the user's live check-in or nil. Lookups are
// memoized briefly; a check-in on this instance replaces the memo.
func (m *PresenceManager) GetActiveCheckIn(ctx context.Context, userID string) (*checkin.CheckIn, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	now := m.clock.Now()
	if cached, ok := m.active.Get(userID); ok {
		c, _ := cached.(*checkin.CheckIn)
		if c == nil {
			return nil, nil
		}
		if c.LiveAt(now) {
			return c, nil
		}
		m.active.Delete(userID)
		return nil, nil
	}

	c, err := m.ledger.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.active.Set(userID, c, activeMemoTTL)

	if !c.LiveAt(now) {
		return nil, nil
	}
	return c, nil
}

// FetchActiveUsersForVenue lists the other guests currently checked in at
// venueID. The requester must hold a live check-in at the same venue.
func (m *PresenceManager) FetchActiveUsersForVenue(ctx context.Context, requesterID, venueID string) ([]user.Guest, error) {
	active, err := m.GetActiveCheckIn(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if active == nil || active.VenueID != venueID {
		return nil, ErrNotCheckedIn
	}

	guests, err := m.ledger.ListActiveGuests(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guests: %w", err)
	}

	others := make([]user.Guest, 0, len(guests))
	for _, g := range guests {
		if g.UserID != requesterID {
			others = append(others, g)
		}
	}
	return others, nil
}

func (m *PresenceManager) resolveVenue(ctx context.Context, venueID string) (*venue.Venue, error) {
	if venueID == "" {
		return nil, ErrVenueNotFound
	}

	v, err := m.venues.GetVenue(ctx, venueID)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, ErrVenueNotFound) {
		return nil, err
	}

	m.logger.Warn("Venue lookup failed, trying cached catalog", zap.String("venue_id", venueID), zap.Error(err))
	if cached, ok := m.cache.GetCachedCatalog(ctx); ok {
		for i := range cached {
			if cached[i].ID == venueID {
				return &cached[i], nil
			}
		}
	}

	return nil, fmt.Errorf("failed to resolve venue: %w", err)
}
