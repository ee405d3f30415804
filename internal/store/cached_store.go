package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

const (
	listingsVersionKey   = "listings:version"
	listingsSnapshotKeyV = "listings:all:v"
)

// SnapshotClient is the part of *redis.Client the listing cache uses.
type SnapshotClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// CachedListingStore keeps a JSON snapshot of ListAll in Redis. Snapshots
// are keyed by a version counter that every write bumps, so a read that
// loaded rows before a write can only store them under a version nobody
// reads any more. Redis failures are logged and the inner store is used
// directly.
type CachedListingStore struct {
	ListingStore
	client SnapshotClient
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedListingStore(inner ListingStore, client SnapshotClient, ttl time.Duration, log *zap.Logger) *CachedListingStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedListingStore{ListingStore: inner, client: client, ttl: ttl, log: log}
}

func snapshotKey(version int64) string {
	return listingsSnapshotKeyV + strconv.FormatInt(version, 10)
}

func (s *CachedListingStore) version(ctx context.Context) (int64, error) {
	v, err := s.client.Get(ctx, listingsVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *CachedListingStore) ListAll(ctx context.Context) ([]models.Listing, error) {
	version, err := s.version(ctx)
	if err != nil {
		s.log.Warn("listing cache version read failed", zap.Error(err))
		return s.ListingStore.ListAll(ctx)
	}
	key := snapshotKey(version)

	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var listings []models.Listing
		jsonErr := json.Unmarshal(data, &listings)
		if jsonErr == nil {
			return listings, nil
		}
		s.log.Warn("discarding corrupt listing snapshot", zap.Error(jsonErr))
	case !errors.Is(err, redis.Nil):
		s.log.Warn("listing cache read failed", zap.Error(err))
	}

	listings, err := s.ListingStore.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(listings); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.log.Warn("listing cache write failed", zap.Error(err))
		}
	}
	return listings, nil
}

func (s *CachedListingStore) Create(ctx context.Context, listing *models.Listing) error {
	if err := s.ListingStore.Create(ctx, listing); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedListingStore) Update(ctx context.Context, listing *models.Listing) error {
	if err := s.ListingStore.Update(ctx, listing); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedListingStore) Delete(ctx context.Context, id string, driverID uint) error {
	if err := s.ListingStore.Delete(ctx, id, driverID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate moves readers to a fresh version. Old snapshots expire with
// their TTL.
func (s *CachedListingStore) invalidate(ctx context.Context) {
	if err := s.client.Incr(context.WithoutCancel(ctx), listingsVersionKey).Err(); err != nil {
		s.log.Warn("listing cache invalidation failed", zap.Error(err))
	}
}
