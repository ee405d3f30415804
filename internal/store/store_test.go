package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

func TestListingQueryNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    ListingQuery
		want  ListingQuery
		order string
	}{
		{
			name:  "defaults",
			in:    ListingQuery{},
			want:  ListingQuery{Page: 1, Limit: DefaultPageSize, SortBy: "createdAt", Order: "DESC"},
			order: "created_at DESC",
		},
		{
			name:  "limit capped",
			in:    ListingQuery{Page: 3, Limit: 1000, SortBy: "price", Order: "asc"},
			want:  ListingQuery{Page: 3, Limit: MaxPageSize, SortBy: "price", Order: "ASC"},
			order: "price ASC",
		},
		{
			name:  "unknown sort column",
			in:    ListingQuery{SortBy: "password_hash; DROP TABLE users", Order: "sideways"},
			want:  ListingQuery{Page: 1, Limit: DefaultPageSize, SortBy: "createdAt", Order: "DESC"},
			order: "created_at DESC",
		},
		{
			name:  "rating puts unrated last",
			in:    ListingQuery{SortBy: "rating"},
			want:  ListingQuery{Page: 1, Limit: DefaultPageSize, SortBy: "rating", Order: "DESC"},
			order: "rating DESC NULLS LAST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.order, got.orderClause())
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 10))
	assert.Equal(t, 1, totalPages(10, 10))
	assert.Equal(t, 2, totalPages(11, 10))
	assert.Equal(t, 3, ListingQuery{Page: 3, Limit: 10}.Normalize().Page)
	assert.Equal(t, 20, ListingQuery{Page: 3, Limit: 10}.offset())
}

type countingStore struct {
	ListingStore
	listings []models.Listing
	listAll  int
	created  int
	err      error
}

func (s *countingStore) ListAll(ctx context.Context) ([]models.Listing, error) {
	s.listAll++
	return s.listings, s.err
}

func (s *countingStore) Create(ctx context.Context, l *models.Listing) error {
	s.created++
	return s.err
}

// unreachableRedis points at a closed port so every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedListingStoreBypassesBrokenRedis(t *testing.T) {
	inner := &countingStore{listings: []models.Listing{{ID: "a"}, {ID: "b"}}}
	s := NewCachedListingStore(inner, unreachableRedis(t), time.Minute, nil)

	got, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, inner.listAll)

	require.NoError(t, s.Create(context.Background(), &models.Listing{}))
	assert.Equal(t, 1, inner.created)
}

func TestCachedListingStorePropagatesStoreErrors(t *testing.T) {
	inner := &countingStore{err: errors.New("db down")}
	s := NewCachedListingStore(inner, unreachableRedis(t), time.Minute, nil)

	_, err := s.ListAll(context.Background())
	assert.EqualError(t, err, "db down")

	assert.EqualError(t, s.Create(context.Background(), &models.Listing{}), "db down")
}

// memorySnapshots is an in-memory SnapshotClient.
type memorySnapshots struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{data: map[string]string{}}
}

func (m *memorySnapshots) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memorySnapshots) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memorySnapshots) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

// interleavingStore runs afterList once, after ListAll has taken its rows.
type interleavingStore struct {
	ListingStore
	listings  []models.Listing
	listAll   int
	afterList func()
}

func (s *interleavingStore) ListAll(ctx context.Context) ([]models.Listing, error) {
	s.listAll++
	rows := append([]models.Listing(nil), s.listings...)
	if hook := s.afterList; hook != nil {
		s.afterList = nil
		hook()
	}
	return rows, nil
}

func (s *interleavingStore) Create(ctx context.Context, l *models.Listing) error {
	s.listings = append(s.listings, *l)
	return nil
}

func TestCachedListingStoreServesSnapshotUntilWrite(t *testing.T) {
	ctx := context.Background()
	inner := &interleavingStore{listings: []models.Listing{{ID: "a"}}}
	s := NewCachedListingStore(inner, newMemorySnapshots(), time.Minute, nil)

	for i := 0; i < 3; i++ {
		got, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	assert.Equal(t, 1, inner.listAll)

	require.NoError(t, s.Create(ctx, &models.Listing{ID: "b"}))
	got, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, inner.listAll)
}

func TestCachedListingStoreDropsSnapshotLoadedBeforeWrite(t *testing.T) {
	ctx := context.Background()
	inner := &interleavingStore{listings: []models.Listing{{ID: "a"}}}
	s := NewCachedListingStore(inner, newMemorySnapshots(), time.Minute, nil)

	// A write lands between this read's database load and its cache fill.
	inner.afterList = func() {
		require.NoError(t, s.Create(ctx, &models.Listing{ID: "b"}))
	}
	stale, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	got, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, 2, inner.listAll)
}

func TestSnapshotKeyChangesWithVersion(t *testing.T) {
	assert.Equal(t, "listings:all:v0", snapshotKey(0))
	assert.NotEqual(t, snapshotKey(1), snapshotKey(2))
}
