package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"venuePresenceAPI/internal/common/clock"
	"venuePresenceAPI/internal/types/venue"
)

type PresenceCacheTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	clock  *clock.Fake
	cache  *PresenceCache
}

func (s *PresenceCacheTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})

	store, err := NewRedisStore(s.client, "presence:")
	s.Require().NoError(err)

	s.clock = clock.NewFake(time.Date(2025, 4, 5, 22, 0, 0, 0, time.UTC))
	s.cache = NewPresenceCache(store, s.clock, nil)
}

func (s *PresenceCacheTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestPresenceCacheTestSuite(t *testing.T) {
	suite.Run(t, new(PresenceCacheTestSuite))
}

func (s *PresenceCacheTestSuite) TestCatalogWithinTTL() {
	ctx := context.Background()
	venues := []venue.Venue{
		{ID: "v1", Name: "Soho", Coordinate: &venue.Coordinate{Latitude: 42.66, Longitude: 21.16}, MapVisible: true, ActiveUserCount: 3},
		{ID: "v2", Name: "Rooftop"},
	}

	s.cache.CacheCatalog(ctx, venues)
	s.True(s.mr.Exists("presence:catalog"))

	s.clock.Advance(29 * time.Minute)
	got, ok := s.cache.GetCachedCatalog(ctx)
	s.Require().True(ok)
	s.Equal(venues, got)
}

func (s *PresenceCacheTestSuite) TestCatalogExpiresAndIsPurged() {
	ctx := context.Background()
	s.cache.CacheCatalog(ctx, []venue.Venue{{ID: "v1"}})

	s.clock.Advance(31 * time.Minute)
	got, ok := s.cache.GetCachedCatalog(ctx)
	s.False(ok)
	s.Nil(got)
	s.False(s.mr.Exists("presence:catalog"))
}

func (s *PresenceCacheTestSuite) TestCatalogOverwrite() {
	ctx := context.Background()
	s.cache.CacheCatalog(ctx, []venue.Venue{{ID: "old"}})
	s.clock.Advance(25 * time.Minute)
	s.cache.CacheCatalog(ctx, []venue.Venue{{ID: "new"}})
	s.clock.Advance(25 * time.Minute)

	got, ok := s.cache.GetCachedCatalog(ctx)
	s.Require().True(ok)
	s.Require().Len(got, 1)
	s.Equal("new", got[0].ID)
}

func (s *PresenceCacheTestSuite) TestCorruptSnapshotIsDiscarded() {
	ctx := context.Background()
	s.Require().NoError(s.mr.Set("presence:catalog", "{not json"))

	_, ok := s.cache.GetCachedCatalog(ctx)
	s.False(ok)
	s.False(s.mr.Exists("presence:catalog"))
}

func (s *PresenceCacheTestSuite) TestUserLocationHasNoTTL() {
	ctx := context.Background()
	s.cache.CacheUserLocation(ctx, "user_1", venue.Coordinate{Latitude: 40.47, Longitude: 19.49})

	s.clock.Advance(48 * time.Hour)
	got, ok := s.cache.GetCachedUserLocation(ctx, "user_1")
	s.Require().True(ok)
	s.Equal(40.47, got.Latitude)

	_, ok = s.cache.GetCachedUserLocation(ctx, "user_2")
	s.False(ok)
}

func (s *PresenceCacheTestSuite) TestStorageFailureReadsAsMiss() {
	ctx := context.Background()
	s.cache.CacheCatalog(ctx, []venue.Venue{{ID: "v1"}})
	s.mr.Close()

	_, ok := s.cache.GetCachedCatalog(ctx)
	s.False(ok)

	// Writes must not panic or surface errors either.
	s.cache.CacheCatalog(ctx, []venue.Venue{{ID: "v2"}})
	s.cache.CacheUserLocation(ctx, "user_1", venue.Coordinate{})
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (brokenStore) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (brokenStore) Delete(context.Context, string) error      { return errors.New("disk on fire") }

func TestPresenceCache_MemoryStore(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2025, 4, 5, 22, 0, 0, 0, time.UTC))
	cache := NewPresenceCache(NewMemoryStore(), clk, nil)

	cache.CacheCatalog(ctx, []venue.Venue{{ID: "v1"}})
	clk.Advance(10 * time.Minute)

	got, ok := cache.GetCachedCatalog(ctx)
	assert.True(t, ok)
	assert.Len(t, got, 1)

	clk.Advance(20 * time.Minute)
	_, ok = cache.GetCachedCatalog(ctx)
	assert.False(t, ok, "exactly 30 minutes old is no longer valid")
}

func TestPresenceCache_BrokenStoreIsAdvisory(t *testing.T) {
	ctx := context.Background()
	cache := NewPresenceCache(brokenStore{}, clock.NewFake(time.Now()), nil)

	cache.CacheCatalog(ctx, []venue.Venue{{ID: "v1"}})
	_, ok := cache.GetCachedCatalog(ctx)
	assert.False(t, ok)

	_, ok = cache.GetCachedUserLocation(ctx, "user_1")
	assert.False(t, ok)
}
