package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/types/venue"
)

// CatalogTTL is how long a cached catalog snapshot stays usable.
const CatalogTTL = 30 * time.Minute

const (
	catalogKey          = "catalog"
	userLocationKeyBase = "user_location:"
)

// PresenceCache is an advisory store for the venue catalog and each user's
// last-known location. Storage errors are logged and swallowed; a failed
// read behaves like a miss.
type PresenceCache struct {
	store  KeyValueStore
	clock  clock.Clock
	ttl    time.Duration
	logger *zap.Logger
}

func NewPresenceCache(store KeyValueStore, clk clock.Clock, logger *zap.Logger) *PresenceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceCache{store: store, clock: clk, ttl: CatalogTTL, logger: logger}
}

// CacheCatalog overwrites the snapshot with venues stamped at the current time.
func (c *PresenceCache) CacheCatalog(ctx context.Context, venues []venue.Venue) {
	snapshot := venue.CachedCatalog{Venues: venues, CachedAt: c.clock.Now()}

	data, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.Warn("Failed to encode catalog snapshot", zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, catalogKey, string(data)); err != nil {
		c.logger.Warn("Failed to cache catalog", zap.Error(err))
	}
}

// GetCachedCatalog returns the snapshot while it is younger than the TTL.
// An expired or unreadable snapshot is purged and reported as absent.
func (c *PresenceCache) GetCachedCatalog(ctx context.Context) ([]venue.Venue, bool) {
	raw, ok, err := c.store.Get(ctx, catalogKey)
	if err != nil {
		c.logger.Warn("Failed to read cached catalog", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var snapshot venue.CachedCatalog
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		c.logger.Warn("Discarding corrupt catalog snapshot", zap.Error(err))
		c.purgeCatalog(ctx)
		return nil, false
	}

	if c.clock.Now().Sub(snapshot.CachedAt) >= c.ttl {
		c.purgeCatalog(ctx)
		return nil, false
	}

	return snapshot.Venues, true
}

// CacheUserLocation remembers the user's last reported coordinate. No TTL:
// a stale location is still a fine fallback map centre.
func (c *PresenceCache) CacheUserLocation(ctx context.Context, userID string, coord venue.Coordinate) {
	if userID == "" {
		return
	}

	data, err := json.Marshal(coord)
	if err != nil {
		c.logger.Warn("Failed to encode user location", zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, userLocationKeyBase+userID, string(data)); err != nil {
		c.logger.Warn("Failed to cache user location", zap.String("user_id", userID), zap.Error(err))
	}
}

func (c *PresenceCache) GetCachedUserLocation(ctx context.Context, userID string) (*venue.Coordinate, bool) {
	if userID == "" {
		return nil, false
	}

	raw, ok, err := c.store.Get(ctx, userLocationKeyBase+userID)
	if err != nil {
		c.logger.Warn("Failed to read cached user location", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var coord venue.Coordinate
	if err := json.Unmarshal([]byte(raw), &coord); err != nil {
		c.logger.Warn("Discarding corrupt user location", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}

	return &coord, true
}

func (c *PresenceCache) purgeCatalog(ctx context.Context) {
	if err := c.store.Delete(ctx, catalogKey); err != nil {
		c.logger.Warn("Failed to purge catalog snapshot", zap.Error(err))
	}
}
